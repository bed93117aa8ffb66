package logger

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type ctxKey int

const (
	loggerKey ctxKey = iota
	runIDKey
	reportDateKey
	requestIDKey
)

// WithContext returns ctx carrying log
func WithContext(ctx context.Context, log *zap.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, log)
}

// FromContext returns the logger of ctx, or a no-op logger
func FromContext(ctx context.Context) *zap.Logger {
	if log, ok := ctx.Value(loggerKey).(*zap.Logger); ok {
		return log
	}
	return zap.NewNop()
}

// WithRunID tags ctx and log with a backfill run
func WithRunID(ctx context.Context, log *zap.Logger, runID string) (context.Context, *zap.Logger) {
	return tag(ctx, log, runIDKey, "run_id", runID)
}

// WithReportDate tags ctx and log with the business day (YYYY-MM-DD) being
// summarized or served.
func WithReportDate(ctx context.Context, log *zap.Logger, date string) (context.Context, *zap.Logger) {
	return tag(ctx, log, reportDateKey, "report_date", date)
}

// WithRequestID tags ctx and log with an HTTP request
func WithRequestID(ctx context.Context, log *zap.Logger, requestID string) (context.Context, *zap.Logger) {
	return tag(ctx, log, requestIDKey, "request_id", requestID)
}

// tag stores value in ctx under key and attaches log, enriched with the
// same value, as the context logger.
func tag(ctx context.Context, log *zap.Logger, key ctxKey, field, value string) (context.Context, *zap.Logger) {
	enriched := log.With(zap.String(field, value))
	return WithContext(context.WithValue(ctx, key, value), enriched), enriched
}

func value(ctx context.Context, key ctxKey) string {
	v, _ := ctx.Value(key).(string)
	return v
}

// GetRunID returns the backfill run of ctx, or ""
func GetRunID(ctx context.Context) string { return value(ctx, runIDKey) }

// GetReportDate returns the business day of ctx, or ""
func GetReportDate(ctx context.Context) string { return value(ctx, reportDateKey) }

// GetRequestID returns the HTTP request of ctx, or ""
func GetRequestID(ctx context.Context) string { return value(ctx, requestIDKey) }

// L returns the context logger with the trace_id and span_id of the span
// active in ctx, so that backfill logs can be joined with their traces.
//
//	logger.L(ctx).Info("Backfill started", zap.Int("days", n))
func L(ctx context.Context) *zap.Logger {
	log := FromContext(ctx)
	sc := trace.SpanFromContext(ctx).SpanContext()
	if !sc.IsValid() {
		return log
	}
	return log.With(
		zap.String("trace_id", sc.TraceID().String()),
		zap.String("span_id", sc.SpanID().String()),
	)
}
