package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/stacklok/drive-mirror/internal/drives"
	"github.com/stacklok/drive-mirror/internal/lock"
	"github.com/stacklok/drive-mirror/internal/mirror"
	"github.com/stacklok/drive-mirror/internal/otel"
	"github.com/stacklok/drive-mirror/internal/status"
	"github.com/stacklok/drive-mirror/internal/telemetry"
)

//go:generate mockgen -destination=mocks/mock_coordinator.go -package=mocks -source=coordinator.go Coordinator

const (
	// TracerName is the name of the tracer used for sync runs
	TracerName = "github.com/stacklok/drive-mirror/sync"

	// StatusOK and ResultCompleted make up the success payload
	StatusOK        = "ok"
	ResultCompleted = "Sync completed"
)

// Coordinator runs mutually exclusive sync runs
type Coordinator interface {
	// RequestSync mirrors the primary onto every secondary and blocks until the
	// run ends. It fails immediately with ErrAlreadyRunning when another run is
	// in progress.
	RequestSync(ctx context.Context, dryRun bool) (*Summary, error)

	// Status returns the current phase and the last finished run
	Status() status.SyncStatus
}

// SnapshotSource provides the drive registry view a run works on
type SnapshotSource interface {
	Snapshot() drives.Snapshot
}

// Summary describes a successful run
type Summary struct {
	Status     string    `json:"status"`
	Result     string    `json:"result"`
	RunID      string    `json:"runId"`
	DryRun     bool      `json:"dryRun"`
	Primary    string    `json:"primary"`
	Targets    []string  `json:"targets"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
}

// defaultCoordinator is the default implementation of Coordinator
type defaultCoordinator struct {
	registry   SnapshotSource
	executor   mirror.Executor
	locker     lock.Locker
	credential mirror.Credential

	tracker    *status.Tracker
	baseCtx    context.Context
	runTimeout time.Duration
	newRunID   func() string

	metrics *telemetry.SyncMetrics
	tracer  trace.Tracer
}

// Option is a function that configures the coordinator
type Option func(*defaultCoordinator)

// WithSyncMetrics sets the sync metrics for the coordinator
func WithSyncMetrics(metrics *telemetry.SyncMetrics) Option {
	return func(c *defaultCoordinator) {
		c.metrics = metrics
	}
}

// WithTracerProvider sets the provider for run spans
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *defaultCoordinator) {
		c.tracer = otel.Tracer(tp, TracerName)
	}
}

// WithRunTimeout bounds every run. Zero disables the bound.
func WithRunTimeout(d time.Duration) Option {
	return func(c *defaultCoordinator) {
		c.runTimeout = d
	}
}

// WithBaseContext sets the context whose cancellation aborts running mirrors,
// typically the application lifetime
func WithBaseContext(ctx context.Context) Option {
	return func(c *defaultCoordinator) {
		if ctx != nil {
			c.baseCtx = ctx
		}
	}
}

// WithTracker shares a status tracker with the coordinator
func WithTracker(tracker *status.Tracker) Option {
	return func(c *defaultCoordinator) {
		if tracker != nil {
			c.tracker = tracker
		}
	}
}

// New creates a new coordinator with injected dependencies
func New(
	registry SnapshotSource,
	executor mirror.Executor,
	locker lock.Locker,
	credential mirror.Credential,
	opts ...Option,
) Coordinator {
	c := &defaultCoordinator{
		registry:   registry,
		executor:   executor,
		locker:     locker,
		credential: credential,
		tracker:    status.NewTracker(),
		baseCtx:    context.Background(),
		newRunID:   uuid.NewString,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Status implements Coordinator
func (c *defaultCoordinator) Status() status.SyncStatus {
	return c.tracker.Status()
}

// RequestSync implements Coordinator
func (c *defaultCoordinator) RequestSync(ctx context.Context, dryRun bool) (*Summary, error) {
	snap := c.registry.Snapshot()
	if snap.Len() < 2 {
		slog.WarnContext(ctx, "Sync rejected, not enough volumes", "count", snap.Len())
		c.metrics.RecordRejected(ctx, ReasonInsufficientVolumes, dryRun)
		return nil, ErrInsufficientVolumes
	}

	release, err := c.locker.TryLock(ctx)
	if err != nil {
		if errors.Is(err, lock.ErrLocked) {
			slog.WarnContext(ctx, "Sync rejected, another run is in progress", "dry_run", dryRun)
			c.metrics.RecordRejected(ctx, ReasonAlreadyRunning, dryRun)
			return nil, fmt.Errorf("%w: %w", ErrAlreadyRunning, err)
		}
		return nil, fmt.Errorf("failed to acquire run lock: %w", err)
	}
	defer release()

	return c.run(ctx, snap, dryRun)
}

// run mirrors the primary onto each secondary in order. The caller holds the lock.
func (c *defaultCoordinator) run(ctx context.Context, snap drives.Snapshot, dryRun bool) (summary *Summary, runErr error) {
	runCtx, cancel := c.runContext(ctx)
	defer cancel()

	primary, _ := snap.Primary()
	targets := snap.Secondaries()
	runID := c.newRunID()
	startedAt := time.Now()

	runCtx, span := otel.StartSpan(runCtx, c.tracer, "sync.run", trace.WithAttributes(
		otel.AttrRunID.String(runID),
		otel.AttrPrimary.String(primary),
		otel.AttrTargets.StringSlice(targets),
		otel.AttrDryRun.Bool(dryRun),
	))
	defer span.End()

	logger := slog.With("run_id", runID, "dry_run", dryRun)
	logger.InfoContext(runCtx, "Starting sync run", "primary", primary, "targets", targets)

	c.tracker.Begin(runID, primary, targets, dryRun)
	c.metrics.RunStarted(runCtx)
	defer func() {
		c.tracker.Finish(runErr)
		c.metrics.RecordRun(runCtx, time.Since(startedAt), dryRun, runErr == nil)
		otel.EndStatus(span, runErr, "sync run failed")
	}()

	for i, target := range targets {
		fail := func(err error) *RunError {
			re := &RunError{
				RunID:     runID,
				Source:    primary,
				Target:    target,
				Completed: slices.Clone(targets[:i]),
				Skipped:   slices.Clone(targets[i+1:]),
				Err:       err,
			}
			logger.ErrorContext(runCtx, "Sync run failed",
				"source", primary,
				"target", target,
				"completed", re.Completed,
				"skipped", re.Skipped,
				"error", err)
			return re
		}

		if err := runCtx.Err(); err != nil {
			return nil, fail(fmt.Errorf("run cancelled before mirroring: %w", err))
		}

		mirrorStart := time.Now()
		output, err := runOnWorker(runCtx, func(ctx context.Context) (string, error) {
			return c.executor.Execute(ctx, primary, target, c.credential, dryRun)
		})
		c.metrics.RecordMirror(runCtx, target, time.Since(mirrorStart), err == nil)
		if err != nil {
			return nil, fail(err)
		}

		c.tracker.TargetCompleted(target)
		logger.InfoContext(runCtx, "Mirror completed",
			"source", primary,
			"target", target,
			"duration", time.Since(mirrorStart))
		logger.DebugContext(runCtx, "Mirror output", "target", target, "output", output)
	}

	finishedAt := time.Now()
	logger.InfoContext(runCtx, "Sync run completed", "targets", len(targets), "duration", finishedAt.Sub(startedAt))

	return &Summary{
		Status:     StatusOK,
		Result:     ResultCompleted,
		RunID:      runID,
		DryRun:     dryRun,
		Primary:    primary,
		Targets:    targets,
		StartedAt:  startedAt,
		FinishedAt: finishedAt,
	}, nil
}

// runContext keeps the request's values but not its cancellation. The run ends
// early only when the base context is done or the run timeout expires.
func (c *defaultCoordinator) runContext(ctx context.Context) (context.Context, context.CancelFunc) {
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	stop := context.AfterFunc(c.baseCtx, cancel)

	if c.runTimeout <= 0 {
		return runCtx, func() {
			stop()
			cancel()
		}
	}

	runCtx, cancelTimeout := context.WithTimeout(runCtx, c.runTimeout)
	return runCtx, func() {
		cancelTimeout()
		stop()
		cancel()
	}
}
