//go:build !windows

package engine

import (
	"os/exec"
	"syscall"
)

// setProcAttrs places the engine in its own process group so cancellation
// reaches `go run` children too, not just the direct process.
func setProcAttrs(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}

		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
}
