//go:build !windows

package shell

import (
	"os/exec"
	"syscall"
)

// configure runs the command in its own process group so cancellation also
// reaches the children of an interpreter.
func configure(cmd *exec.Cmd, c Command) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
}
