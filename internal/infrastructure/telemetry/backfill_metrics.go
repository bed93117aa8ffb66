package telemetry

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/metric"
)

// ErrMeterNil is returned when a metrics recorder is built without a meter
var ErrMeterNil = errors.New("meter is nil")

// DayDurationBuckets are histogram boundaries for one day's aggregation, in ms
var DayDurationBuckets = []float64{10, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000}

// BackfillMetrics records per-day backfill outcomes
type BackfillMetrics struct {
	generated metric.Int64Counter
	failed    metric.Int64Counter
	duration  metric.Float64Histogram
}

// NewBackfillMetrics creates the backfill instruments on meter
func NewBackfillMetrics(meter metric.Meter) (*BackfillMetrics, error) {
	if meter == nil {
		return nil, ErrMeterNil
	}

	generated, err := meter.Int64Counter("backfill.days.generated",
		metric.WithDescription("Business days summarized and persisted"),
		metric.WithUnit("{day}"))
	if err != nil {
		return nil, err
	}
	failed, err := meter.Int64Counter("backfill.days.failed",
		metric.WithDescription("Business days that failed to summarize"),
		metric.WithUnit("{day}"))
	if err != nil {
		return nil, err
	}
	duration, err := meter.Float64Histogram("backfill.day.duration",
		metric.WithDescription("Time to aggregate and persist one business day"),
		metric.WithUnit("ms"),
		metric.WithExplicitBucketBoundaries(DayDurationBuckets...))
	if err != nil {
		return nil, err
	}

	return &BackfillMetrics{generated: generated, failed: failed, duration: duration}, nil
}

// DayGenerated records a successful day
func (m *BackfillMetrics) DayGenerated(ctx context.Context, elapsed time.Duration) {
	m.generated.Add(ctx, 1)
	m.duration.Record(ctx, float64(elapsed.Milliseconds()), metric.WithAttributes(AttrOutcome.String(OutcomeSucceeded)))
}

// DayFailed records a failed day
func (m *BackfillMetrics) DayFailed(ctx context.Context, elapsed time.Duration) {
	m.failed.Add(ctx, 1)
	m.duration.Record(ctx, float64(elapsed.Milliseconds()), metric.WithAttributes(AttrOutcome.String(OutcomeFailed)))
}
