// Package bootstrap assembles the backfill and API processes from
// configuration: logging, telemetry, the ledger, the report stores and the
// backfill service.
package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/posreports/backend/internal/infrastructure/config"
	"github.com/posreports/backend/internal/infrastructure/logger"
	"github.com/posreports/backend/internal/infrastructure/telemetry"
)

// NewLogger builds the logger of process from the log section
func NewLogger(cfg *config.Config, process string) (*zap.Logger, error) {
	return logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
		Fields: map[string]string{"process": process, "env": cfg.App.Env},
	})
}

// Telemetry owns the OTLP exporters and the profiler of one process
type Telemetry struct {
	Export   *telemetry.Exporters
	Profiler *telemetry.Profiler
}

// SetupTelemetry starts what the telemetry section enables for process
// ("backfill" or "server") and returns log teed into the OTLP log exporter
// when log export is on.
func SetupTelemetry(ctx context.Context, cfg *config.Config, process string, log *zap.Logger) (*Telemetry, *zap.Logger, error) {
	tc := cfg.Telemetry
	t := &Telemetry{}

	var err error
	t.Export, err = telemetry.StartExporters(ctx, telemetry.ExportConfig{
		Endpoint:        tc.CollectorEndpoint,
		Insecure:        tc.Insecure,
		ServiceName:     tc.ServiceName,
		ServiceVersion:  cfg.App.Version,
		Traces:          tc.Enabled,
		SamplingRatio:   tc.SamplingRatio,
		Metrics:         tc.MetricsEnabled,
		MetricsInterval: tc.MetricsInterval,
		Logs:            tc.LogsEnabled,
	}, log)
	if err != nil {
		return nil, log, fmt.Errorf("otlp export: %w", err)
	}

	t.Profiler, err = telemetry.StartProfiler(telemetry.ProfilerConfig{
		Enabled:           tc.ProfilingEnabled,
		ServerAddress:     tc.ProfilingServerAddress,
		ApplicationName:   tc.ServiceName,
		BasicAuthUser:     tc.ProfilingAuthUser,
		BasicAuthPassword: tc.ProfilingAuthPassword,
		Process:           process,
		Types:             tc.ProfilingTypes,
	}, log)
	if err != nil {
		_ = t.Shutdown(ctx)
		return nil, log, fmt.Errorf("profiling: %w", err)
	}
	if tc.SpanProfilesEnabled && t.Profiler.Running() && !t.Export.EnableSpanProfiles() {
		log.Warn("Span profiles need tracing enabled")
	}

	return t, t.Export.Bridge(log, logger.ParseLevel(cfg.Log.Level)), nil
}

// MeterFor returns a meter for name, or nil when metrics are disabled
func (t *Telemetry) MeterFor(name string) metric.Meter {
	if t == nil {
		return nil
	}
	return t.Export.Meter(name)
}

// DBTracing returns the gorm tracing plugin for a connection, or nil when
// database tracing is disabled.
func DBTracing(cfg *config.Config, dbName string, log *zap.Logger) *telemetry.DBTracingPlugin {
	if !cfg.Telemetry.Enabled || !cfg.Telemetry.DBTraceEnabled {
		return nil
	}
	return telemetry.NewDBTracingPlugin(telemetry.DBTracingConfig{
		Enabled:        true,
		DBName:         dbName,
		QueryVariables: cfg.Telemetry.DBLogFullSQL,
		SlowAfter:      cfg.Telemetry.DBSlowQueryThresh,
	}, log)
}

// Shutdown stops the profiler and flushes every provider
func (t *Telemetry) Shutdown(ctx context.Context) error {
	var errs []error
	if t.Profiler != nil {
		errs = append(errs, t.Profiler.Stop())
	}
	errs = append(errs, t.Export.Shutdown(ctx))
	return errors.Join(errs...)
}
