package report

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the ISO calendar date layout used as the key of a business day
const DateLayout = "2006-01-02"

// TimeOfDay is the wall-clock time at which a business day starts
type TimeOfDay struct {
	Hour   int
	Minute int
}

// ParseTimeOfDay parses an "HH:MM" string (a single-digit hour is accepted).
// A malformed value is a configuration error, not a per-day failure.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return TimeOfDay{}, fmt.Errorf("%w: %q", ErrInvalidBusinessDayStart, s)
	}
	hour, err := strconv.Atoi(strings.TrimSpace(hh))
	if err != nil || hour < 0 || hour > 23 {
		return TimeOfDay{}, fmt.Errorf("%w: %q", ErrInvalidBusinessDayStart, s)
	}
	minute, err := strconv.Atoi(strings.TrimSpace(mm))
	if err != nil || minute < 0 || minute > 59 {
		return TimeOfDay{}, fmt.Errorf("%w: %q", ErrInvalidBusinessDayStart, s)
	}
	return TimeOfDay{Hour: hour, Minute: minute}, nil
}

// String returns the zero-padded HH:MM form
func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// BusinessDay is a calendar date and the interval [Start, End) of ledger
// time that belongs to it.
type BusinessDay struct {
	Date  time.Time
	Start time.Time
	End   time.Time
}

// Window computes the business day for the calendar date of day.
// End is the start of the following business day, which is Start + 24h
// except across a DST transition of the location, where consecutive
// windows must still tile time without gaps or overlap.
func Window(day time.Time, start TimeOfDay) BusinessDay {
	y, m, d := day.Date()
	loc := day.Location()
	begin := time.Date(y, m, d, start.Hour, start.Minute, 0, 0, loc)
	return BusinessDay{
		Date:  time.Date(y, m, d, 0, 0, 0, 0, loc),
		Start: begin,
		End:   time.Date(y, m, d+1, start.Hour, start.Minute, 0, 0, loc),
	}
}

// Key returns the ISO date string identifying the business day
func (b BusinessDay) Key() string {
	return b.Date.Format(DateLayout)
}

// ContainsHalfOpen reports whether t falls in [Start, End)
func (b BusinessDay) ContainsHalfOpen(t time.Time) bool {
	return !t.Before(b.Start) && t.Before(b.End)
}

// ContainsClosed reports whether t falls in [Start, End]. The category
// report of the POS terminal uses this inclusive form.
func (b BusinessDay) ContainsClosed(t time.Time) bool {
	return !t.Before(b.Start) && !t.After(b.End)
}

// ParseDate parses an ISO calendar date in the given location
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	t, err := time.ParseInLocation(DateLayout, strings.TrimSpace(s), loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return t, nil
}

// DaysBetween returns every calendar date from start to end inclusive.
// It returns nil when end is before start.
func DaysBetween(start, end time.Time) []time.Time {
	sy, sm, sd := start.Date()
	ey, em, ed := end.Date()
	first := time.Date(sy, sm, sd, 0, 0, 0, 0, start.Location())
	last := time.Date(ey, em, ed, 0, 0, 0, 0, start.Location())

	var days []time.Time
	for d := first; !d.After(last); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days
}
