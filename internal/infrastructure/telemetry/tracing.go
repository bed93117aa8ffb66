package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// InstrumentationName scopes the backfill spans and instruments
const InstrumentationName = "github.com/posreports/backend/backfill"

// Span and metric attributes
var (
	AttrRunID      = attribute.Key("backfill.run_id")
	AttrReportDate = attribute.Key("report.date")
	AttrDays       = attribute.Key("backfill.days")
	AttrGenerated  = attribute.Key("backfill.generated")
	AttrFailed     = attribute.Key("backfill.failed")
	AttrOutcome    = attribute.Key("outcome")
)

// Outcome values
const (
	OutcomeSucceeded = "succeeded"
	OutcomeFailed    = "failed"
)

// StartRun opens the span of a whole backfill run
func StartRun(ctx context.Context, runID string, days int) (context.Context, trace.Span) {
	return otel.Tracer(InstrumentationName).Start(ctx, "backfill.run",
		trace.WithAttributes(AttrRunID.String(runID), AttrDays.Int(days)))
}

// StartDay opens the span of one business day, normally under the run span
func StartDay(ctx context.Context, date string) (context.Context, trace.Span) {
	return otel.Tracer(InstrumentationName).Start(ctx, "backfill.day",
		trace.WithAttributes(AttrReportDate.String(date)))
}

// Finish records err, or success when it is nil, adds attrs and ends span
func Finish(span trace.Span, err error, attrs ...attribute.KeyValue) {
	if span == nil {
		return
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		attrs = append(attrs, AttrOutcome.String(OutcomeFailed))
	} else {
		span.SetStatus(codes.Ok, "")
		attrs = append(attrs, AttrOutcome.String(OutcomeSucceeded))
	}
	span.SetAttributes(attrs...)
	span.End()
}
