// Package telemetry exports backfill and API traces, metrics and logs over
// OTLP, and optionally runs the Pyroscope profiler.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	otelpyroscope "github.com/grafana/otel-profiling-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/log/global"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.37.0"
	"go.uber.org/zap"
)

// ExportConfig selects the signals a process sends to the collector. Every
// signal shares the endpoint and the service resource.
type ExportConfig struct {
	Endpoint       string
	Insecure       bool
	ServiceName    string
	ServiceVersion string

	Traces        bool
	SamplingRatio float64

	Metrics         bool
	MetricsInterval time.Duration

	Logs bool
}

func (c ExportConfig) any() bool {
	return c.Traces || c.Metrics || c.Logs
}

// Exporters owns the SDK provider of each enabled signal and installs it
// globally. Disabled signals keep the global no-op provider.
type Exporters struct {
	log     *zap.Logger
	service string

	traces  *sdktrace.TracerProvider
	metrics *sdkmetric.MeterProvider
	logs    *sdklog.LoggerProvider

	spanProfiles atomic.Bool
}

// StartExporters starts the providers cfg enables. On failure the providers
// already started are shut down again.
func StartExporters(ctx context.Context, cfg ExportConfig, log *zap.Logger) (*Exporters, error) {
	e := &Exporters{log: log, service: cfg.ServiceName}
	if !cfg.any() {
		log.Info("OTLP export disabled")
		return e, nil
	}

	res, err := newResource(cfg.ServiceName, cfg.ServiceVersion)
	if err != nil {
		return nil, err
	}

	steps := []struct {
		on    bool
		start func(context.Context, ExportConfig, *resource.Resource) error
	}{
		{cfg.Traces, e.startTraces},
		{cfg.Metrics, e.startMetrics},
		{cfg.Logs, e.startLogs},
	}
	for _, step := range steps {
		if !step.on {
			continue
		}
		if err := step.start(ctx, cfg, res); err != nil {
			return nil, errors.Join(err, e.Shutdown(ctx))
		}
	}

	log.Info("OTLP export started",
		zap.String("collector_endpoint", cfg.Endpoint),
		zap.String("service_name", cfg.ServiceName),
		zap.Bool("traces", cfg.Traces),
		zap.Bool("metrics", cfg.Metrics),
		zap.Bool("logs", cfg.Logs),
	)
	return e, nil
}

func (e *Exporters) startTraces(ctx context.Context, cfg ExportConfig, res *resource.Resource) error {
	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}
	exporter, err := otlptracegrpc.New(ctx, opts...)
	if err != nil {
		return fmt.Errorf("trace exporter: %w", err)
	}

	e.traces = sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(samplerFor(cfg.SamplingRatio))),
	)
	otel.SetTracerProvider(e.traces)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	return nil
}

func (e *Exporters) startMetrics(ctx context.Context, cfg ExportConfig, res *resource.Resource) error {
	opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	}
	exporter, err := otlpmetricgrpc.New(ctx, opts...)
	if err != nil {
		return fmt.Errorf("metric exporter: %w", err)
	}

	interval := cfg.MetricsInterval
	if interval <= 0 {
		interval = time.Minute
	}
	e.metrics = sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(interval))),
	)
	otel.SetMeterProvider(e.metrics)
	return nil
}

func (e *Exporters) startLogs(ctx context.Context, cfg ExportConfig, res *resource.Resource) error {
	opts := []otlploggrpc.Option{otlploggrpc.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlploggrpc.WithInsecure())
	}
	exporter, err := otlploggrpc.New(ctx, opts...)
	if err != nil {
		return fmt.Errorf("log exporter: %w", err)
	}

	e.logs = sdklog.NewLoggerProvider(
		sdklog.WithResource(res),
		sdklog.WithProcessor(sdklog.NewBatchProcessor(exporter)),
	)
	global.SetLoggerProvider(e.logs)
	return nil
}

// samplerFor keeps every trace at 1 and none at 0
func samplerFor(ratio float64) sdktrace.Sampler {
	switch {
	case ratio >= 1:
		return sdktrace.AlwaysSample()
	case ratio <= 0:
		return sdktrace.NeverSample()
	default:
		return sdktrace.TraceIDRatioBased(ratio)
	}
}

func newResource(service, version string) (*resource.Resource, error) {
	if version == "" {
		version = "dev"
	}
	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(service),
			semconv.ServiceVersion(version),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("telemetry resource: %w", err)
	}
	return res, nil
}

// TracesEnabled reports whether spans are exported
func (e *Exporters) TracesEnabled() bool { return e != nil && e.traces != nil }

// MetricsEnabled reports whether metrics are exported
func (e *Exporters) MetricsEnabled() bool { return e != nil && e.metrics != nil }

// LogsEnabled reports whether log records are exported
func (e *Exporters) LogsEnabled() bool { return e != nil && e.logs != nil }

// Meter returns a meter of the metric provider, or nil when metrics are
// not exported so that callers can skip building instruments.
func (e *Exporters) Meter(name string) metric.Meter {
	if !e.MetricsEnabled() {
		return nil
	}
	return e.metrics.Meter(name)
}

// EnableSpanProfiles labels profiles with the span that was active while
// they were sampled. The profiler must already be running. It reports
// whether span profiles are on.
func (e *Exporters) EnableSpanProfiles() bool {
	if !e.TracesEnabled() {
		return false
	}
	if e.spanProfiles.CompareAndSwap(false, true) {
		otel.SetTracerProvider(otelpyroscope.NewTracerProvider(e.traces))
		e.log.Info("Span profiles enabled", zap.String("service_name", e.service))
	}
	return true
}

// ForceFlush exports everything buffered so far
func (e *Exporters) ForceFlush(ctx context.Context) error {
	if e == nil {
		return nil
	}
	var errs []error
	if e.traces != nil {
		errs = append(errs, e.traces.ForceFlush(ctx))
	}
	if e.metrics != nil {
		errs = append(errs, e.metrics.ForceFlush(ctx))
	}
	if e.logs != nil {
		errs = append(errs, e.logs.ForceFlush(ctx))
	}
	return errors.Join(errs...)
}

// Shutdown flushes and stops every provider. Later calls are no-ops.
func (e *Exporters) Shutdown(ctx context.Context) error {
	if e == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var errs []error
	if e.traces != nil {
		if err := e.traces.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("trace provider: %w", err))
		}
		e.traces = nil
	}
	if e.metrics != nil {
		if err := e.metrics.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("meter provider: %w", err))
		}
		e.metrics = nil
	}
	if e.logs != nil {
		if err := e.logs.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("log provider: %w", err))
		}
		e.logs = nil
	}
	return errors.Join(errs...)
}
