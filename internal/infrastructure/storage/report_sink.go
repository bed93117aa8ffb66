package storage

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/posreports/backend/internal/domain/report"
)

// ObjectReportSink writes each business day as two JSON documents,
// "<date>/summary_daily.json" and "<date>/category_report.json".
type ObjectReportSink struct {
	store  ObjectStore
	logger *zap.Logger
}

var (
	_ report.ReportSink   = (*ObjectReportSink)(nil)
	_ report.ReportReader = (*ObjectReportSink)(nil)
)

// NewObjectReportSink creates a sink over store
func NewObjectReportSink(store ObjectStore, logger *zap.Logger) *ObjectReportSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ObjectReportSink{store: store, logger: logger.Named("report_sink")}
}

// SaveDay stores both documents of the day. When the second write fails the
// first document is restored to its previous content, so a day is never left
// with documents from two different runs.
func (s *ObjectReportSink) SaveDay(ctx context.Context, daily *report.DailySummary, category *report.CategorySummary) error {
	if daily == nil || category == nil {
		return errors.New("both daily and category summaries are required")
	}
	if daily.Date != category.Date {
		return fmt.Errorf("summary dates differ: daily %s, category %s", daily.Date, category.Date)
	}

	dailyData, err := EncodeDailySummary(daily)
	if err != nil {
		return err
	}
	categoryData, err := EncodeCategoryReport(category)
	if err != nil {
		return err
	}

	dailyKey := DailySummaryKey(daily.Date)
	previous, err := s.store.Get(ctx, dailyKey)
	if err != nil && !errors.Is(err, ErrObjectNotFound) {
		return err
	}

	if err := s.store.Put(ctx, dailyKey, dailyData, jsonContentType); err != nil {
		return err
	}
	if err := s.store.Put(ctx, CategoryReportKey(category.Date), categoryData, jsonContentType); err != nil {
		s.restore(context.WithoutCancel(ctx), dailyKey, previous)
		return err
	}
	return nil
}

func (s *ObjectReportSink) restore(ctx context.Context, key string, previous []byte) {
	var err error
	if previous == nil {
		err = s.store.Delete(ctx, key)
	} else {
		err = s.store.Put(ctx, key, previous, jsonContentType)
	}
	if err != nil {
		s.logger.Error("Failed to roll back daily summary", zap.String("key", key), zap.Error(err))
	}
}

// FindDay reads both documents of date back
func (s *ObjectReportSink) FindDay(ctx context.Context, date string) (*report.DailySummary, *report.CategorySummary, error) {
	dailyData, err := s.store.Get(ctx, DailySummaryKey(date))
	if err != nil {
		return nil, nil, notFoundAsReport(err)
	}
	categoryData, err := s.store.Get(ctx, CategoryReportKey(date))
	if err != nil {
		return nil, nil, notFoundAsReport(err)
	}

	daily, err := DecodeDailySummary(dailyData)
	if err != nil {
		return nil, nil, err
	}
	category, err := DecodeCategoryReport(categoryData)
	if err != nil {
		return nil, nil, err
	}
	return daily, category, nil
}

func notFoundAsReport(err error) error {
	if errors.Is(err, ErrObjectNotFound) {
		return fmt.Errorf("%w: %w", report.ErrReportNotFound, err)
	}
	return err
}
