// Package status tracks the in-memory state of sync runs.
//
// Nothing here is persisted: after a restart the service reports Idle with no
// previous run.
package status

import (
	"slices"
	"sync"
	"time"
)

// SyncPhase represents the phase of a synchronization run
type SyncPhase string

const (
	// SyncPhaseIdle means no run holds the run lock
	SyncPhaseIdle SyncPhase = "Idle"

	// SyncPhaseSyncing means sync is currently in progress
	SyncPhaseSyncing SyncPhase = "Syncing"

	// SyncPhaseComplete means sync completed successfully
	SyncPhaseComplete SyncPhase = "Complete"

	// SyncPhaseFailed means sync failed
	SyncPhaseFailed SyncPhase = "Failed"
)

// RunRecord describes one sync run
type RunRecord struct {
	RunID   string    `json:"runId"`
	Phase   SyncPhase `json:"phase"`
	DryRun  bool      `json:"dryRun"`
	Primary string    `json:"primary"`

	// Targets are the secondaries in the order they are mirrored
	Targets []string `json:"targets"`

	// Completed are the targets mirrored successfully so far
	Completed []string `json:"completed"`

	StartedAt  time.Time  `json:"startedAt"`
	FinishedAt *time.Time `json:"finishedAt,omitempty"`

	// Message is the failure detail for failed runs
	Message string `json:"message,omitempty"`
}

func (r *RunRecord) clone() *RunRecord {
	if r == nil {
		return nil
	}
	c := *r
	c.Targets = slices.Clone(r.Targets)
	c.Completed = slices.Clone(r.Completed)
	if r.FinishedAt != nil {
		t := *r.FinishedAt
		c.FinishedAt = &t
	}
	return &c
}

// SyncStatus is a point-in-time view of the coordinator
type SyncStatus struct {
	// Phase is Syncing while a run holds the lock, Idle otherwise
	Phase SyncPhase `json:"phase"`

	// Current is the run in flight, if any
	Current *RunRecord `json:"currentRun,omitempty"`

	// Last is the most recently finished run, if any
	Last *RunRecord `json:"lastRun,omitempty"`
}

// Tracker records run transitions. It is safe for concurrent use.
type Tracker struct {
	mu      sync.RWMutex
	current *RunRecord
	last    *RunRecord
	now     func() time.Time
}

// NewTracker creates an idle tracker
func NewTracker() *Tracker {
	return &Tracker{now: time.Now}
}

// Begin marks a run as in flight
func (t *Tracker) Begin(runID, primary string, targets []string, dryRun bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.current = &RunRecord{
		RunID:     runID,
		Phase:     SyncPhaseSyncing,
		DryRun:    dryRun,
		Primary:   primary,
		Targets:   slices.Clone(targets),
		Completed: []string{},
		StartedAt: t.now(),
	}
}

// TargetCompleted appends target to the current run's completed list
func (t *Tracker) TargetCompleted(target string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.current != nil {
		t.current.Completed = append(t.current.Completed, target)
	}
}

// Finish moves the current run to Last with a Complete or Failed phase
func (t *Tracker) Finish(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.current == nil {
		return
	}

	finished := t.now()
	t.current.FinishedAt = &finished
	if err != nil {
		t.current.Phase = SyncPhaseFailed
		t.current.Message = err.Error()
	} else {
		t.current.Phase = SyncPhaseComplete
	}

	t.last = t.current
	t.current = nil
}

// Status returns a copy of the tracked state
func (t *Tracker) Status() SyncStatus {
	t.mu.RLock()
	defer t.mu.RUnlock()

	s := SyncStatus{
		Phase:   SyncPhaseIdle,
		Current: t.current.clone(),
		Last:    t.last.clone(),
	}
	if t.current != nil {
		s.Phase = SyncPhaseSyncing
	}
	return s
}
