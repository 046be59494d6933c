// Package telemetry provides OpenTelemetry instrumentation for drive-mirror.
// Metrics are exposed for Prometheus scraping and can additionally be pushed
// over OTLP; traces are exported over OTLP when enabled.
package telemetry

import (
	"errors"
	"fmt"
)

const (
	// DefaultServiceName is the default service name for telemetry
	DefaultServiceName = "drive-mirror"

	// DefaultEndpoint is the default OTLP endpoint for telemetry
	DefaultEndpoint = "localhost:4318"

	// DefaultSampling is the default trace sampling rate.
	// Sync runs are rare, so every trace is kept.
	DefaultSampling = 1.0
)

// Config represents the root telemetry configuration
type Config struct {
	// Enabled controls whether telemetry is enabled globally
	Enabled bool `yaml:"enabled"`

	// ServiceName defaults to "drive-mirror"
	ServiceName string `yaml:"serviceName,omitempty"`

	// ServiceVersion defaults to the build version
	ServiceVersion string `yaml:"serviceVersion,omitempty"`

	// Endpoint is the OTLP collector endpoint, "host:port".
	// Only used by tracing and by metrics push.
	Endpoint string `yaml:"endpoint,omitempty"`

	// Insecure allows HTTP connections to the collector
	Insecure bool `yaml:"insecure,omitempty"`

	Tracing *TracingConfig `yaml:"tracing,omitempty"`
	Metrics *MetricsConfig `yaml:"metrics,omitempty"`
}

// TracingConfig defines tracing-specific configuration
type TracingConfig struct {
	Enabled bool `yaml:"enabled"`

	// Sampling is the trace sampling ratio between 0.0 and 1.0
	Sampling float64 `yaml:"sampling,omitempty"`
}

// MetricsConfig defines metrics-specific configuration
type MetricsConfig struct {
	// Enabled exposes Prometheus metrics on /metrics
	Enabled bool `yaml:"enabled"`

	// Push additionally exports metrics to the OTLP endpoint
	Push bool `yaml:"push,omitempty"`
}

// GetServiceName returns the service name, using default if not specified
func (c *Config) GetServiceName() string {
	if c.ServiceName == "" {
		return DefaultServiceName
	}
	return c.ServiceName
}

// GetServiceVersion returns the service version, using "unknown" if not specified
func (c *Config) GetServiceVersion() string {
	if c.ServiceVersion == "" {
		return "unknown"
	}
	return c.ServiceVersion
}

// GetEndpoint returns the endpoint, using default if not specified
func (c *Config) GetEndpoint() string {
	if c.Endpoint == "" {
		return DefaultEndpoint
	}
	return c.Endpoint
}

// GetSampling returns the sampling ratio, DefaultSampling when unset
func (c *TracingConfig) GetSampling() float64 {
	if c.Sampling == 0.0 {
		return DefaultSampling
	}
	return c.Sampling
}

// TracingEnabled reports whether traces should be exported
func (c *Config) TracingEnabled() bool {
	return c != nil && c.Enabled && c.Tracing != nil && c.Tracing.Enabled
}

// MetricsEnabled reports whether metrics should be collected
func (c *Config) MetricsEnabled() bool {
	return c != nil && c.Enabled && c.Metrics != nil && c.Metrics.Enabled
}

// Validate validates the telemetry configuration
func (c *Config) Validate() error {
	if c == nil || !c.Enabled {
		return nil
	}

	var errs []error
	if c.Tracing != nil {
		if err := c.Tracing.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("tracing: %w", err))
		}
	}

	return errors.Join(errs...)
}

// Validate validates the tracing configuration
func (c *TracingConfig) Validate() error {
	if c == nil || !c.Enabled {
		return nil
	}

	if c.Sampling < 0 || c.Sampling > 1.0 {
		return fmt.Errorf("sampling must be between 0.0 and 1.0, got %f", c.Sampling)
	}

	return nil
}
