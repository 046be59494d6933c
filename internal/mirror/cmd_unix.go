//go:build unix

package mirror

import (
	"errors"
	"os"
	"os/exec"
	"syscall"
)

// setTerminateOnCancel starts the command in its own process group and sends
// SIGTERM to the whole group on cancellation
func setTerminateOnCancel(c *exec.Cmd) {
	c.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	c.Cancel = func() error {
		err := syscall.Kill(-c.Process.Pid, syscall.SIGTERM)
		if errors.Is(err, syscall.ESRCH) {
			return os.ErrProcessDone
		}
		if err != nil {
			return c.Process.Signal(syscall.SIGTERM)
		}
		return nil
	}
}
