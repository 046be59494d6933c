package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func newManualProvider(t *testing.T) (*sdkmetric.ManualReader, *sdkmetric.MeterProvider) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	return reader, mp
}

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

func TestMetricsNilProvider(t *testing.T) {
	t.Parallel()

	syncMetrics, err := NewSyncMetrics(nil)
	require.NoError(t, err)
	assert.Nil(t, syncMetrics)

	driveMetrics, err := NewDriveMetrics(nil)
	require.NoError(t, err)
	assert.Nil(t, driveMetrics)

	// nil receivers are no-ops
	ctx := context.Background()
	assert.NotPanics(t, func() {
		syncMetrics.RecordRejected(ctx, "already_running", false)
		syncMetrics.RunStarted(ctx)
		syncMetrics.RecordRun(ctx, time.Second, false, true)
		syncMetrics.RecordMirror(ctx, "nas2", time.Second, true)
		driveMetrics.RecordVolumes(ctx, 3)
	})
}

func TestSyncMetricsRecordRun(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	reader, mp := newManualProvider(t)
	m, err := NewSyncMetrics(mp)
	require.NoError(t, err)

	m.RunStarted(ctx)
	m.RecordMirror(ctx, "nas2", 2*time.Second, true)
	m.RecordMirror(ctx, "nas3", time.Second, false)
	m.RecordRun(ctx, 3*time.Second, true, false)
	m.RecordRejected(ctx, "already_running", false)

	metrics := collect(t, reader)

	runs, ok := metrics["drive_mirror_runs_total"].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, runs.DataPoints, 2)
	byOutcome := map[string]int64{}
	for _, dp := range runs.DataPoints {
		outcome, _ := dp.Attributes.Value(attribute.Key("outcome"))
		byOutcome[outcome.AsString()] += dp.Value
	}
	assert.Equal(t, map[string]int64{OutcomeFailed: 1, OutcomeRejected: 1}, byOutcome)

	inProgress, ok := metrics["drive_mirror_runs_in_progress"].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, inProgress.DataPoints, 1)
	assert.Equal(t, int64(0), inProgress.DataPoints[0].Value)

	runDuration, ok := metrics["drive_mirror_run_duration_seconds"].Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, runDuration.DataPoints, 1)
	assert.Equal(t, uint64(1), runDuration.DataPoints[0].Count)
	assert.InDelta(t, 3.0, runDuration.DataPoints[0].Sum, 0.001)

	mirrorDuration, ok := metrics["drive_mirror_mirror_duration_seconds"].Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	assert.Len(t, mirrorDuration.DataPoints, 2)
}

func TestDriveMetricsRecordVolumes(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	reader, mp := newManualProvider(t)
	m, err := NewDriveMetrics(mp)
	require.NoError(t, err)

	m.RecordVolumes(ctx, 2)
	m.RecordVolumes(ctx, 3)

	gauge, ok := collect(t, reader)["drive_mirror_volumes"].Data.(metricdata.Gauge[int64])
	require.True(t, ok)
	require.Len(t, gauge.DataPoints, 1)
	assert.Equal(t, int64(3), gauge.DataPoints[0].Value)
}
