package report

import "errors"

var (
	// ErrInvalidBusinessDayStart is returned for a malformed business-day start time
	ErrInvalidBusinessDayStart = errors.New("invalid business day start, expected HH:MM")

	// ErrInvalidDate is returned for a date that is not in YYYY-MM-DD form
	ErrInvalidDate = errors.New("invalid date, expected YYYY-MM-DD")

	// ErrReportNotFound is returned when no summary was persisted for a date
	ErrReportNotFound = errors.New("report not found")
)
