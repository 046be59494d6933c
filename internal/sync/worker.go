package sync

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// runOnWorker runs fn on its own goroutine and waits for it. fn must only
// communicate through its return values.
func runOnWorker[T any](ctx context.Context, fn func(context.Context) (T, error)) (T, error) {
	var result T

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		result, err = fn(gctx)
		return err
	})

	err := g.Wait()
	return result, err
}
