package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	// SyncMetricsMeterName is the name used for the sync metrics meter
	SyncMetricsMeterName = "github.com/stacklok/drive-mirror/sync"

	// DriveMetricsMeterName is the name used for the drive registry meter
	DriveMetricsMeterName = "github.com/stacklok/drive-mirror/drives"
)

// Run outcomes recorded on drive_mirror_runs_total
const (
	OutcomeSuccess  = "success"
	OutcomeFailed   = "failed"
	OutcomeRejected = "rejected"
)

// SyncMetrics holds the instruments for sync runs and individual mirror operations
type SyncMetrics struct {
	runsTotal      metric.Int64Counter
	runDuration    metric.Float64Histogram
	mirrorDuration metric.Float64Histogram
	running        metric.Int64UpDownCounter
}

// NewSyncMetrics creates a new SyncMetrics instance with the given meter provider.
// If provider is nil, it returns nil (no-op metrics).
func NewSyncMetrics(provider metric.MeterProvider) (*SyncMetrics, error) {
	if provider == nil {
		return nil, nil
	}

	meter := provider.Meter(SyncMetricsMeterName)

	runsTotal, err := meter.Int64Counter(
		"drive_mirror_runs_total",
		metric.WithDescription("Number of sync requests by outcome"),
		metric.WithUnit("{run}"),
	)
	if err != nil {
		return nil, err
	}

	// Mirrors of large volumes take hours; buckets reach well past that
	runDuration, err := meter.Float64Histogram(
		"drive_mirror_run_duration_seconds",
		metric.WithDescription("Duration of complete sync runs in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(1, 10, 60, 300, 900, 1800, 3600, 7200, 14400, 28800),
	)
	if err != nil {
		return nil, err
	}

	mirrorDuration, err := meter.Float64Histogram(
		"drive_mirror_mirror_duration_seconds",
		metric.WithDescription("Duration of a single primary to secondary mirror in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(1, 10, 60, 300, 900, 1800, 3600, 7200, 14400, 28800),
	)
	if err != nil {
		return nil, err
	}

	running, err := meter.Int64UpDownCounter(
		"drive_mirror_runs_in_progress",
		metric.WithDescription("Number of sync runs currently holding the run lock"),
		metric.WithUnit("{run}"),
	)
	if err != nil {
		return nil, err
	}

	return &SyncMetrics{
		runsTotal:      runsTotal,
		runDuration:    runDuration,
		mirrorDuration: mirrorDuration,
		running:        running,
	}, nil
}

// RecordRejected counts a request that never started a run. reason is one of
// "insufficient_volumes" or "already_running".
func (m *SyncMetrics) RecordRejected(ctx context.Context, reason string, dryRun bool) {
	if m == nil {
		return
	}

	m.runsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("outcome", OutcomeRejected),
		attribute.String("reason", reason),
		attribute.Bool("dry_run", dryRun),
	))
}

// RunStarted marks a run as holding the lock
func (m *SyncMetrics) RunStarted(ctx context.Context) {
	if m == nil {
		return
	}
	m.running.Add(ctx, 1)
}

// RecordRun records the end of a run that held the lock
func (m *SyncMetrics) RecordRun(ctx context.Context, duration time.Duration, dryRun, success bool) {
	if m == nil {
		return
	}

	outcome := OutcomeSuccess
	if !success {
		outcome = OutcomeFailed
	}
	attrs := metric.WithAttributes(
		attribute.String("outcome", outcome),
		attribute.Bool("dry_run", dryRun),
	)

	m.running.Add(ctx, -1)
	m.runsTotal.Add(ctx, 1, attrs)
	m.runDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordMirror records one executor invocation
func (m *SyncMetrics) RecordMirror(ctx context.Context, target string, duration time.Duration, success bool) {
	if m == nil {
		return
	}

	m.mirrorDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String("target", target),
		attribute.Bool("success", success),
	))
}

// DriveMetrics holds the instruments describing the drive registry
type DriveMetrics struct {
	volumes metric.Int64Gauge
}

// NewDriveMetrics creates a new DriveMetrics instance with the given meter provider.
// If provider is nil, it returns nil (no-op metrics).
func NewDriveMetrics(provider metric.MeterProvider) (*DriveMetrics, error) {
	if provider == nil {
		return nil, nil
	}

	volumes, err := provider.Meter(DriveMetricsMeterName).Int64Gauge(
		"drive_mirror_volumes",
		metric.WithDescription("Number of volumes in the drive registry"),
		metric.WithUnit("{volume}"),
	)
	if err != nil {
		return nil, err
	}

	return &DriveMetrics{volumes: volumes}, nil
}

// RecordVolumes records the current registry size
func (m *DriveMetrics) RecordVolumes(ctx context.Context, count int) {
	if m == nil {
		return
	}
	m.volumes.Record(ctx, int64(count))
}
