package sync

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunOnWorker(t *testing.T) {
	t.Parallel()

	t.Run("returns the result", func(t *testing.T) {
		t.Parallel()
		out, err := runOnWorker(context.Background(), func(context.Context) (string, error) {
			return "done", nil
		})
		require.NoError(t, err)
		assert.Equal(t, "done", out)
	})

	t.Run("returns the error and partial result", func(t *testing.T) {
		t.Parallel()
		boom := errors.New("boom")
		out, err := runOnWorker(context.Background(), func(context.Context) (string, error) {
			return "partial", boom
		})
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, "partial", out)
	})

	t.Run("passes cancellation through", func(t *testing.T) {
		t.Parallel()
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := runOnWorker(ctx, func(ctx context.Context) (int, error) {
			<-ctx.Done()
			return 0, ctx.Err()
		})
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestRunErrorMessage(t *testing.T) {
	t.Parallel()

	err := &RunError{
		RunID:     "r1",
		Source:    "A",
		Target:    "B",
		Completed: nil,
		Skipped:   []string{"C", "D"},
		Err:       errors.New("exit code 23"),
	}
	assert.Equal(t, "sync run r1 failed at A -> B (completed: none; skipped: C, D): exit code 23", err.Error())
}
