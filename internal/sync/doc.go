// Package sync coordinates mirror runs from the primary volume onto every
// secondary volume.
//
// # Core Interface
//
// The Coordinator accepts sync requests from any number of goroutines:
//
//	type Coordinator interface {
//	    RequestSync(ctx context.Context, dryRun bool) (*Summary, error)
//	    Status() status.SyncStatus
//	}
//
// # Run Flow
//
//  1. The drive registry snapshot is read once. Fewer than two volumes fails
//     with ErrInsufficientVolumes before the run lock is touched.
//  2. The run lock is tried without waiting. When another run holds it, the
//     request fails with ErrAlreadyRunning; requests are never queued.
//  3. Each secondary is mirrored from the primary in registry order, one at a
//     time, on a worker goroutine the caller waits for.
//  4. The first failing mirror stops the run. The returned *RunError names
//     the failing pair, the targets already mirrored and the ones skipped.
//  5. The lock is released on every exit path.
//
// # Cancellation
//
// A run is detached from the context of the request that started it, so a
// client disconnect never interrupts rsync halfway through. Runs are still
// cancelled by the coordinator's base context (application shutdown) and by
// the optional per-run timeout.
package sync
