package telemetry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// Telemetry owns the OpenTelemetry providers and the Prometheus scrape handler
type Telemetry struct {
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
	metricsHandler http.Handler
}

// Option is a function that configures the telemetry setup
type Option func(*telemetryConfig)

type telemetryConfig struct {
	config *Config
}

// WithTelemetryConfig sets the telemetry configuration
func WithTelemetryConfig(cfg *Config) Option {
	return func(tc *telemetryConfig) {
		tc.config = cfg
	}
}

// New creates the providers described by the configuration.
// With no configuration, or telemetry disabled, every provider is a no-op and
// MetricsHandler returns nil. The caller must call Shutdown.
func New(ctx context.Context, opts ...Option) (*Telemetry, error) {
	tc := &telemetryConfig{}
	for _, opt := range opts {
		opt(tc)
	}

	cfg := tc.config
	if cfg == nil || !cfg.Enabled {
		slog.Debug("Telemetry disabled")
		return newNoOpTelemetry(), nil
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid telemetry configuration: %w", err)
	}

	res, err := newResource(ctx, cfg)
	if err != nil {
		return nil, err
	}

	t := newNoOpTelemetry()

	if cfg.TracingEnabled() {
		tp, err := newTracerProvider(ctx, res, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create tracer provider: %w", err)
		}
		t.tracerProvider = tp
	} else {
		slog.Info("Tracing disabled, using no-op tracer provider")
	}

	if cfg.MetricsEnabled() {
		mp, handler, err := newMeterProvider(ctx, res, cfg)
		if err != nil {
			_ = t.Shutdown(ctx)
			return nil, fmt.Errorf("failed to create meter provider: %w", err)
		}
		t.meterProvider = mp
		t.metricsHandler = handler
	} else {
		slog.Info("Metrics disabled, using no-op meter provider")
	}

	slog.Info("Telemetry initialized",
		"service_name", cfg.GetServiceName(),
		"service_version", cfg.GetServiceVersion(),
		"tracing", cfg.TracingEnabled(),
		"metrics", cfg.MetricsEnabled(),
	)

	return t, nil
}

func newNoOpTelemetry() *Telemetry {
	return &Telemetry{
		tracerProvider: tracenoop.NewTracerProvider(),
		meterProvider:  metricnoop.NewMeterProvider(),
	}
}

func newResource(ctx context.Context, cfg *Config) (*resource.Resource, error) {
	// resource.New avoids schema URL conflicts with resource.Default()
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.GetServiceName()),
			semconv.ServiceVersion(cfg.GetServiceVersion()),
		),
		resource.WithHost(),
		resource.WithTelemetrySDK(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}
	return res, nil
}

// TracerProvider returns the configured tracer provider
func (t *Telemetry) TracerProvider() trace.TracerProvider {
	return t.tracerProvider
}

// MeterProvider returns the configured meter provider
func (t *Telemetry) MeterProvider() metric.MeterProvider {
	return t.meterProvider
}

// MetricsHandler serves the Prometheus exposition format, nil when metrics are disabled
func (t *Telemetry) MetricsHandler() http.Handler {
	return t.metricsHandler
}

// Shutdown flushes and stops the SDK providers
func (t *Telemetry) Shutdown(ctx context.Context) error {
	var errs []error

	if tp, ok := t.tracerProvider.(*sdktrace.TracerProvider); ok {
		if err := tp.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to shutdown tracer provider: %w", err))
		}
	}

	if mp, ok := t.meterProvider.(*sdkmetric.MeterProvider); ok {
		if err := mp.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to shutdown meter provider: %w", err))
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	slog.Debug("Telemetry shutdown complete")
	return nil
}
