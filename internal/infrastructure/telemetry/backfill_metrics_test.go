package telemetry_test

import (
	"context"
	"testing"
	"time"

	"github.com/posreports/backend/internal/infrastructure/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap/zaptest"
)

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := make(map[string]metricdata.Metrics)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func TestBackfillMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := telemetry.NewBackfillMetrics(mp.Meter("test"))
	require.NoError(t, err)

	ctx := context.Background()
	m.DayGenerated(ctx, 120*time.Millisecond)
	m.DayGenerated(ctx, 80*time.Millisecond)
	m.DayFailed(ctx, 3*time.Second)

	metrics := collect(t, reader)

	generated, ok := metrics["backfill.days.generated"].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, generated.DataPoints, 1)
	assert.Equal(t, int64(2), generated.DataPoints[0].Value)

	failed, ok := metrics["backfill.days.failed"].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	assert.Equal(t, int64(1), failed.DataPoints[0].Value)

	duration, ok := metrics["backfill.day.duration"].Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	assert.Len(t, duration.DataPoints, 2, "one series per outcome")
	assert.Equal(t, "ms", metrics["backfill.day.duration"].Unit)
}

func TestNewBackfillMetrics_NilMeter(t *testing.T) {
	_, err := telemetry.NewBackfillMetrics(nil)
	assert.ErrorIs(t, err, telemetry.ErrMeterNil)
}

func TestExporters_Disabled(t *testing.T) {
	ctx := context.Background()

	e, err := telemetry.StartExporters(ctx, telemetry.ExportConfig{ServiceName: "test"}, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.False(t, e.TracesEnabled())
	assert.False(t, e.MetricsEnabled())
	assert.False(t, e.LogsEnabled())
	assert.Nil(t, e.Meter("x"))
	assert.False(t, e.EnableSpanProfiles())
	assert.NoError(t, e.ForceFlush(ctx))
	assert.NoError(t, e.Shutdown(ctx))
	assert.NoError(t, e.Shutdown(ctx))
}

func TestExporters_MetricsOnly(t *testing.T) {
	ctx := context.Background()

	// the gRPC exporter dials lazily, so no collector is needed to start
	e, err := telemetry.StartExporters(ctx, telemetry.ExportConfig{
		Endpoint:    "localhost:4317",
		Insecure:    true,
		ServiceName: "test",
		Metrics:     true,
	}, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.True(t, e.MetricsEnabled())
	assert.False(t, e.TracesEnabled())
	assert.NotNil(t, e.Meter("pos-reports/backfill"))

	shutdownCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	_ = e.Shutdown(shutdownCtx)
	assert.False(t, e.MetricsEnabled())
}
