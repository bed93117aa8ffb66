package report

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
)

var (
	// ErrInvalidRequest is returned for a backfill request that fails validation
	ErrInvalidRequest = errors.New("invalid backfill request")

	// ErrLedgerUnavailable is returned when the ledger cannot be reached before any day is processed
	ErrLedgerUnavailable = errors.New("ledger unavailable")

	// ErrBackfillAborted is returned when the ledger connection is lost mid-run
	ErrBackfillAborted = errors.New("backfill aborted")

	// ErrIndexPersistence is returned when the report index cannot be loaded or saved
	ErrIndexPersistence = errors.New("report index persistence failed")

	// ErrBackfillInProgress is returned when a backfill is started while another one runs
	ErrBackfillInProgress = errors.New("backfill already in progress")
)

// isConnectionLost reports whether err means the shared ledger connection is
// gone, so no later day can succeed either.
func isConnectionLost(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return true
	}
	return errors.Is(err, sql.ErrConnDone) || errors.Is(err, driver.ErrBadConn)
}
