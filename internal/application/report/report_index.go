package report

import (
	"context"
	"fmt"
	"time"

	"github.com/posreports/backend/internal/domain/report"
)

// ReportIndex is the in-memory view of the persisted index for one run.
// It is loaded once, grows as days succeed and is written once by Finalize.
type ReportIndex struct {
	store report.IndexStore
	index *report.Index
	now   func() time.Time
}

// LoadReportIndex reads the persisted index. An absent or unreadable
// document yields an empty index; an unreachable store is an error.
func LoadReportIndex(ctx context.Context, store report.IndexStore, now func() time.Time) (*ReportIndex, error) {
	idx, err := store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: load: %w", ErrIndexPersistence, err)
	}
	if idx == nil {
		idx = report.NewIndex()
	}
	if now == nil {
		now = time.Now
	}
	return &ReportIndex{store: store, index: idx, now: now}, nil
}

// Record adds day when its summaries were computed and persisted
func (r *ReportIndex) Record(day string, computed bool) bool {
	return r.index.Record(day, computed)
}

// Contains reports whether day is in the index
func (r *ReportIndex) Contains(day string) bool {
	return r.index.Contains(day)
}

// Len returns the number of indexed days
func (r *ReportIndex) Len() int {
	return r.index.Len()
}

// Finalize persists the index stamped with the current time
func (r *ReportIndex) Finalize(ctx context.Context) (report.IndexDocument, error) {
	doc := r.index.Document(r.now())
	if err := r.store.Save(ctx, doc); err != nil {
		return doc, fmt.Errorf("%w: save: %w", ErrIndexPersistence, err)
	}
	return doc, nil
}
