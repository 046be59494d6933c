package telemetry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigDefaults(t *testing.T) {
	t.Parallel()

	cfg := &Config{}
	assert.Equal(t, DefaultServiceName, cfg.GetServiceName())
	assert.Equal(t, "unknown", cfg.GetServiceVersion())
	assert.Equal(t, DefaultEndpoint, cfg.GetEndpoint())
	assert.Equal(t, DefaultSampling, (&TracingConfig{}).GetSampling())

	cfg = &Config{ServiceName: "nas-mirror", ServiceVersion: "v1.2.3", Endpoint: "collector:4318"}
	assert.Equal(t, "nas-mirror", cfg.GetServiceName())
	assert.Equal(t, "v1.2.3", cfg.GetServiceVersion())
	assert.Equal(t, "collector:4318", cfg.GetEndpoint())
	assert.Equal(t, 0.25, (&TracingConfig{Sampling: 0.25}).GetSampling())
}

func TestConfigEnabledFlags(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		config      *Config
		wantTracing bool
		wantMetrics bool
	}{
		{name: "nil config", config: nil},
		{
			name: "globally disabled",
			config: &Config{
				Tracing: &TracingConfig{Enabled: true},
				Metrics: &MetricsConfig{Enabled: true},
			},
		},
		{
			name:        "metrics only",
			config:      &Config{Enabled: true, Metrics: &MetricsConfig{Enabled: true}},
			wantMetrics: true,
		},
		{
			name: "both",
			config: &Config{
				Enabled: true,
				Tracing: &TracingConfig{Enabled: true},
				Metrics: &MetricsConfig{Enabled: true},
			},
			wantTracing: true,
			wantMetrics: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.wantTracing, tt.config.TracingEnabled())
			assert.Equal(t, tt.wantMetrics, tt.config.MetricsEnabled())
		})
	}
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		config  *Config
		wantErr string
	}{
		{name: "nil config", config: nil},
		{
			name:   "disabled ignores bad sampling",
			config: &Config{Tracing: &TracingConfig{Enabled: true, Sampling: 5}},
		},
		{
			name:   "disabled tracing ignores bad sampling",
			config: &Config{Enabled: true, Tracing: &TracingConfig{Sampling: -1}},
		},
		{
			name:    "sampling above one",
			config:  &Config{Enabled: true, Tracing: &TracingConfig{Enabled: true, Sampling: 1.5}},
			wantErr: "tracing: sampling must be between 0.0 and 1.0",
		},
		{
			name:    "negative sampling",
			config:  &Config{Enabled: true, Tracing: &TracingConfig{Enabled: true, Sampling: -0.1}},
			wantErr: "sampling must be between",
		},
		{
			name:   "valid",
			config: &Config{Enabled: true, Tracing: &TracingConfig{Enabled: true, Sampling: 0.5}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.config.Validate()
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			assert.NoError(t, err)
		})
	}
}
