package status

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrackerLifecycle(t *testing.T) {
	t.Parallel()

	clock := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	tr := NewTracker()
	tr.now = func() time.Time { return clock }

	s := tr.Status()
	assert.Equal(t, SyncPhaseIdle, s.Phase)
	assert.Nil(t, s.Current)
	assert.Nil(t, s.Last)

	tr.Begin("run-1", "nas1", []string{"nas2", "nas3"}, true)
	tr.TargetCompleted("nas2")

	s = tr.Status()
	assert.Equal(t, SyncPhaseSyncing, s.Phase)
	require.NotNil(t, s.Current)
	assert.Equal(t, "run-1", s.Current.RunID)
	assert.Equal(t, []string{"nas2"}, s.Current.Completed)
	assert.True(t, s.Current.DryRun)
	assert.Nil(t, s.Current.FinishedAt)

	clock = clock.Add(time.Minute)
	tr.Finish(nil)

	s = tr.Status()
	assert.Equal(t, SyncPhaseIdle, s.Phase)
	assert.Nil(t, s.Current)
	require.NotNil(t, s.Last)
	assert.Equal(t, SyncPhaseComplete, s.Last.Phase)
	require.NotNil(t, s.Last.FinishedAt)
	assert.Equal(t, time.Minute, s.Last.FinishedAt.Sub(s.Last.StartedAt))
}

func TestTrackerFailure(t *testing.T) {
	t.Parallel()

	tr := NewTracker()
	tr.Begin("run-2", "nas1", []string{"nas2", "nas3"}, false)
	tr.Finish(errors.New("mirror nas1 -> nas2 failed with exit code 23"))

	last := tr.Status().Last
	require.NotNil(t, last)
	assert.Equal(t, SyncPhaseFailed, last.Phase)
	assert.Empty(t, last.Completed)
	assert.Contains(t, last.Message, "exit code 23")
}

func TestTrackerStatusIsACopy(t *testing.T) {
	t.Parallel()

	tr := NewTracker()
	tr.Begin("run-3", "nas1", []string{"nas2"}, false)

	s := tr.Status()
	s.Current.Targets[0] = "mutated"
	s.Current.Completed = append(s.Current.Completed, "mutated")

	again := tr.Status()
	assert.Equal(t, []string{"nas2"}, again.Current.Targets)
	assert.Empty(t, again.Current.Completed)
}

func TestTrackerFinishWithoutBegin(t *testing.T) {
	t.Parallel()

	tr := NewTracker()
	tr.Finish(errors.New("ignored"))
	assert.Equal(t, SyncStatus{Phase: SyncPhaseIdle}, tr.Status())
}
