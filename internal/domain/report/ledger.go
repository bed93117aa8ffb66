package report

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Transaction type codes used by the POS journal
const (
	TransTypeSale = 101

	GroupTransTypeSale = 1
)

// Status of a journal row that counts towards reports
const StatusActive = 0

// UnspecifiedLabel replaces a null or blank (sub-)category label
const UnspecifiedLabel = "UNSPECIFIED"

// LedgerEntry is one raw journal line as stored by the POS terminal.
// Monetary fields are nullable; arithmetic coerces a null to zero.
type LedgerEntry struct {
	TransType      int
	GroupTransType int
	ReceiptNumber  *int64
	SubCategoryID  *string
	CategoryID     *string
	Amount         decimal.NullDecimal
	DiscountAmount decimal.NullDecimal
	TaxInclude     decimal.NullDecimal
	Tax1Amount     decimal.NullDecimal
	Tax2Amount     decimal.NullDecimal
	Tax3Amount     decimal.NullDecimal
	Tax4Amount     decimal.NullDecimal
	Quantity       decimal.NullDecimal
	Status         int
	RecordedAt     time.Time
}

// CategoryLedgerEntry is a journal line left-joined with its category.
// GroupName and SalesFlag are null when no category matched.
type CategoryLedgerEntry struct {
	LedgerEntry
	GroupName *string
	SalesFlag decimal.NullDecimal
}

// LedgerSession is an open connection to the POS journal, reused across
// all days of a backfill run.
type LedgerSession interface {
	// DailyEntries returns the daily-summary candidate rows in [Start, End)
	DailyEntries(ctx context.Context, day BusinessDay) ([]LedgerEntry, error)

	// CategoryEntries returns the category-report rows in [Start, End],
	// joined with category metadata and filtered on the sales flag
	CategoryEntries(ctx context.Context, day BusinessDay) ([]CategoryLedgerEntry, error)

	// Close releases the connection
	Close() error
}

// LedgerConnector opens ledger sessions
type LedgerConnector interface {
	Connect(ctx context.Context) (LedgerSession, error)
}

// GroupLabel returns the trimmed label, or UnspecifiedLabel when it is null or blank
func GroupLabel(label *string) string {
	if label == nil {
		return UnspecifiedLabel
	}
	if s := strings.TrimSpace(*label); s != "" {
		return s
	}
	return UnspecifiedLabel
}

// NullAmount wraps an already parsed amount as a valid nullable decimal
func NullAmount(d decimal.Decimal) decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: d, Valid: true}
}
