package telemetry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// Telemetry owns the tracer and meter providers of the mirror process and the
// Prometheus scrape handler that goes with them
type Telemetry struct {
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
	metricsHandler http.Handler
	metricsPath    string

	shutdowns []func(context.Context) error
}

// Option configures New
type Option func(*telemetryConfig)

type telemetryConfig struct {
	config *Config
}

// WithTelemetryConfig sets the telemetry section of the mirror configuration
func WithTelemetryConfig(cfg *Config) Option {
	return func(tc *telemetryConfig) {
		tc.config = cfg
	}
}

// New builds the providers described by the configuration. A nil or disabled
// configuration yields no-op providers and no scrape handler.
// Shutdown must be called before the process exits so buffered spans are flushed.
func New(ctx context.Context, opts ...Option) (*Telemetry, error) {
	tc := &telemetryConfig{}
	for _, opt := range opts {
		opt(tc)
	}
	cfg := tc.config

	if cfg == nil || !cfg.Enabled {
		slog.Debug("Telemetry disabled")
		cfg = &Config{}
	} else if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid telemetry configuration: %w", err)
	}

	t := &Telemetry{metricsPath: cfg.Metrics.GetPath()}

	tracerProvider, err := newTracerProvider(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create tracer provider: %w", err)
	}
	t.tracerProvider = tracerProvider
	if tp, ok := tracerProvider.(*sdktrace.TracerProvider); ok {
		t.shutdowns = append(t.shutdowns, tp.Shutdown)
	}

	meterProvider, handler, err := newMeterProvider(ctx, cfg)
	if err != nil {
		_ = t.Shutdown(ctx)
		return nil, fmt.Errorf("failed to create meter provider: %w", err)
	}
	t.meterProvider = meterProvider
	t.metricsHandler = handler
	if mp, ok := meterProvider.(*sdkmetric.MeterProvider); ok {
		t.shutdowns = append(t.shutdowns, mp.Shutdown)
	}

	if cfg.Enabled {
		slog.Info("Telemetry initialized",
			"service_name", cfg.GetServiceName(),
			"service_version", cfg.GetServiceVersion(),
			"tracing", cfg.Tracing.active(),
			"metrics_path", t.MetricsPath())
	}
	return t, nil
}

// TracerProvider returns the provider sync spans and HTTP spans are created from
func (t *Telemetry) TracerProvider() trace.TracerProvider {
	return t.tracerProvider
}

// MeterProvider returns the provider the task, registry and HTTP instruments use
func (t *Telemetry) MeterProvider() metric.MeterProvider {
	return t.meterProvider
}

// MetricsHandler returns the Prometheus scrape handler, nil when metrics are disabled
func (t *Telemetry) MetricsHandler() http.Handler {
	return t.metricsHandler
}

// MetricsPath returns where MetricsHandler should be mounted
func (t *Telemetry) MetricsPath() string {
	if t.metricsPath == "" {
		return DefaultMetricsPath
	}
	return t.metricsPath
}

// Shutdown flushes and stops the SDK providers. Calling it again is harmless.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	var errs []error
	for _, shutdown := range t.shutdowns {
		if err := shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	t.shutdowns = nil

	if len(errs) > 0 {
		return fmt.Errorf("failed to shutdown telemetry: %w", errors.Join(errs...))
	}
	return nil
}
