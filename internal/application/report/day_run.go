package report

import "time"

// DayState is the state of one business day within a backfill run
type DayState string

const (
	DayStatePending   DayState = "PENDING"
	DayStateSucceeded DayState = "SUCCEEDED"
	DayStateFailed    DayState = "FAILED"
	// DayStateSkipped is a day never attempted because the run aborted first
	DayStateSkipped DayState = "SKIPPED"
)

// DayRun tracks one business day through Pending -> Succeeded | Failed | Skipped.
// Terminal states are final.
type DayRun struct {
	Date       string
	State      DayState
	Error      string
	StartedAt  time.Time
	FinishedAt time.Time
}

// NewDayRun creates a pending day
func NewDayRun(date string, now time.Time) *DayRun {
	return &DayRun{
		Date:      date,
		State:     DayStatePending,
		StartedAt: now,
	}
}

// Succeed marks the day as summarized and persisted
func (d *DayRun) Succeed(now time.Time) bool {
	if d.State != DayStatePending {
		return false
	}
	d.State = DayStateSucceeded
	d.FinishedAt = now
	return true
}

// Fail marks the day as failed with the error message
func (d *DayRun) Fail(err error, now time.Time) bool {
	if d.State != DayStatePending {
		return false
	}
	d.State = DayStateFailed
	if err != nil {
		d.Error = err.Error()
	}
	d.FinishedAt = now
	return true
}

// Skip marks a day the run gave up on before querying it
func (d *DayRun) Skip(reason string, now time.Time) bool {
	if d.State != DayStatePending {
		return false
	}
	d.State = DayStateSkipped
	d.Error = reason
	d.StartedAt = now
	d.FinishedAt = now
	return true
}

// Duration is the wall time spent on the day
func (d *DayRun) Duration() time.Duration {
	if d.FinishedAt.IsZero() {
		return 0
	}
	return d.FinishedAt.Sub(d.StartedAt)
}

// DayFailure is one entry of the failure log
type DayFailure struct {
	Date    string `json:"date"`
	Message string `json:"message"`
}
