package sync

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInsufficientVolumes is returned when the registry has fewer than two
	// volumes, so there is nothing to mirror
	ErrInsufficientVolumes = errors.New("less than 2 mounted drives found")

	// ErrAlreadyRunning is returned when another run holds the run lock.
	// Returned errors also match lock.ErrLocked.
	ErrAlreadyRunning = errors.New("sync already in progress")
)

// Reasons reported for rejected requests
const (
	ReasonInsufficientVolumes = "insufficient_volumes"
	ReasonAlreadyRunning      = "already_running"
)

// RunError is returned when a run stops at a failing mirror
type RunError struct {
	RunID string

	// Source and Target are the failing pair
	Source string
	Target string

	// Completed are the targets mirrored before the failure
	Completed []string

	// Skipped are the targets never attempted
	Skipped []string

	Err error
}

func (e *RunError) Error() string {
	return fmt.Sprintf("sync run %s failed at %s -> %s (completed: %s; skipped: %s): %v",
		e.RunID, e.Source, e.Target, listOrNone(e.Completed), listOrNone(e.Skipped), e.Err)
}

func (e *RunError) Unwrap() error {
	return e.Err
}

func listOrNone(items []string) string {
	if len(items) == 0 {
		return "none"
	}
	return strings.Join(items, ", ")
}
