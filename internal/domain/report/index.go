package report

import (
	"context"
	"encoding/json"
	"sort"
	"time"
)

// IndexTimestampLayout formats the index's updated_at field
const IndexTimestampLayout = "2006-01-02 15:04:05"

// IndexDocument is the persisted form of the report index
type IndexDocument struct {
	Latest    *string  `json:"latest"`
	Dates     []string `json:"dates"`
	UpdatedAt string   `json:"updated_at,omitempty"`
}

// Index is the set of business days that have been summarized. It only
// ever grows.
type Index struct {
	dates map[string]struct{}
}

// NewIndex creates an index holding the given dates
func NewIndex(dates ...string) *Index {
	idx := &Index{dates: make(map[string]struct{}, len(dates))}
	for _, d := range dates {
		if d != "" {
			idx.dates[d] = struct{}{}
		}
	}
	return idx
}

// Record adds day to the index when the day's summaries were computed and
// persisted. Recording an existing day is a no-op. It reports whether the
// day is new.
func (i *Index) Record(day string, computed bool) bool {
	if !computed || day == "" {
		return false
	}
	if _, ok := i.dates[day]; ok {
		return false
	}
	i.dates[day] = struct{}{}
	return true
}

// Contains reports whether day has been summarized
func (i *Index) Contains(day string) bool {
	_, ok := i.dates[day]
	return ok
}

// Len returns the number of summarized days
func (i *Index) Len() int {
	return len(i.dates)
}

// Dates returns the summarized days, latest first
func (i *Index) Dates() []string {
	out := make([]string, 0, len(i.dates))
	for d := range i.dates {
		out = append(out, d)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(out)))
	return out
}

// Latest returns the lexicographically greatest date, which is the
// chronologically latest for ISO dates
func (i *Index) Latest() (string, bool) {
	dates := i.Dates()
	if len(dates) == 0 {
		return "", false
	}
	return dates[0], true
}

// Document builds the persisted form stamped with now
func (i *Index) Document(now time.Time) IndexDocument {
	doc := IndexDocument{
		Dates:     i.Dates(),
		UpdatedAt: now.Format(IndexTimestampLayout),
	}
	if latest, ok := i.Latest(); ok {
		doc.Latest = &latest
	}
	return doc
}

// EncodeIndexDocument serializes the index document as indented JSON
func EncodeIndexDocument(doc IndexDocument) ([]byte, error) {
	if doc.Dates == nil {
		doc.Dates = []string{}
	}
	return json.MarshalIndent(doc, "", "  ")
}

// DecodeIndex parses a persisted index document. Empty or corrupt data
// yields an empty index rather than an error.
func DecodeIndex(data []byte) *Index {
	if len(data) == 0 {
		return NewIndex()
	}
	var doc IndexDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return NewIndex()
	}
	return NewIndex(doc.Dates...)
}

// IndexStore persists the index document.
// Load returns an empty index when nothing has been stored yet or the stored
// document is unreadable; it returns an error only when the backing store
// itself cannot be reached.
type IndexStore interface {
	Load(ctx context.Context) (*Index, error)
	Save(ctx context.Context, doc IndexDocument) error
}

// ReportSink receives the two summaries of a business day. SaveDay must be
// all-or-nothing for the day.
type ReportSink interface {
	SaveDay(ctx context.Context, daily *DailySummary, category *CategorySummary) error
}

// ReportReader reads persisted summaries back
type ReportReader interface {
	FindDay(ctx context.Context, date string) (*DailySummary, *CategorySummary, error)
}
