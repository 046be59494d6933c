package mirror

import (
	"context"
	"io"
	"os/exec"
	"time"
)

// WaitDelay bounds how long a cancelled process may keep its output pipes
// open before Run gives up on it
const WaitDelay = 10 * time.Second

// Cmd abstracts a single external process invocation for testing
type Cmd interface {
	SetStdin(io.Reader)
	SetStdout(io.Writer)
	SetStderr(io.Writer)
	Run() error
}

// CommandFactory creates a Cmd for the given command and arguments
type CommandFactory func(ctx context.Context, name string, arg ...string) Cmd

// ExecCommandContext is the production CommandFactory backed by os/exec.
// Cancelling ctx terminates the whole process tree: sudo relays SIGTERM to
// rsync, while SIGKILL would leave rsync running.
func ExecCommandContext(ctx context.Context, name string, arg ...string) Cmd {
	c := exec.CommandContext(ctx, name, arg...)
	setTerminateOnCancel(c)
	c.WaitDelay = WaitDelay
	return (*execCmd)(c)
}

// decorator isolating callers from the exec.Cmd struct fields
type execCmd exec.Cmd

var _ Cmd = &execCmd{}

func (c *execCmd) SetStdin(r io.Reader)  { c.Stdin = r }
func (c *execCmd) SetStdout(w io.Writer) { c.Stdout = w }
func (c *execCmd) SetStderr(w io.Writer) { c.Stderr = w }
func (c *execCmd) Run() error            { return (*exec.Cmd)(c).Run() }

// errToExitCode extracts the process exit status, -1 when the process never
// produced one (not found, killed by a signal, context cancelled before start)
func errToExitCode(err error) int {
	type exitCoder interface{ ExitCode() int }

	if ec, ok := err.(exitCoder); ok {
		return ec.ExitCode()
	}
	return -1
}
