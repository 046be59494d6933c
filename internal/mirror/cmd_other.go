//go:build !unix

package mirror

import "os/exec"

func setTerminateOnCancel(*exec.Cmd) {}
