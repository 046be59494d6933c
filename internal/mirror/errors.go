package mirror

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidVolume is returned for identifiers that cannot be resolved safely
// under the mount directory
var ErrInvalidVolume = errors.New("invalid volume identifier")

// ExecutionError is returned when the mirroring utility exits non-zero or
// cannot be started
type ExecutionError struct {
	// Source and Target are the volume identifiers of the failing pair
	Source string
	Target string

	// Command is the invocation that was run, never containing the credential
	Command string

	// ExitCode is the utility's exit status, -1 when it never produced one
	ExitCode int

	// Stderr is the captured diagnostic output
	Stderr string

	Err error
}

func (e *ExecutionError) Error() string {
	detail := strings.TrimSpace(e.Stderr)
	if detail == "" && e.Err != nil {
		detail = e.Err.Error()
	}
	return fmt.Sprintf("mirror %s -> %s failed with exit code %d: %s", e.Source, e.Target, e.ExitCode, detail)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}
