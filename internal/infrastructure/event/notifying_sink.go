package event

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/posreports/backend/internal/domain/report"
	"github.com/posreports/backend/internal/infrastructure/logger"
)

// NotifyingSink decorates a ReportSink and announces every persisted day.
// Notification is best effort: a failed publish is logged and the day
// still counts as generated.
type NotifyingSink struct {
	next      report.ReportSink
	publisher Publisher
	logger    *zap.Logger
	now       func() time.Time
}

var _ report.ReportSink = (*NotifyingSink)(nil)

// NewNotifyingSink wraps next
func NewNotifyingSink(next report.ReportSink, publisher Publisher, log *zap.Logger) *NotifyingSink {
	if log == nil {
		log = zap.NewNop()
	}
	return &NotifyingSink{
		next:      next,
		publisher: publisher,
		logger:    log.Named("notify"),
		now:       time.Now,
	}
}

// SaveDay persists through the wrapped sink, then publishes
func (s *NotifyingSink) SaveDay(ctx context.Context, daily *report.DailySummary, category *report.CategorySummary) error {
	if err := s.next.SaveDay(ctx, daily, category); err != nil {
		return err
	}

	msg := NewReportGeneratedMessage(logger.GetRunID(ctx), daily, category, s.now())
	if err := s.publisher.PublishReportGenerated(ctx, msg); err != nil {
		s.logger.Warn("Failed to publish report notification",
			zap.String("report_date", daily.Date),
			zap.Error(err),
		)
	}
	return nil
}
