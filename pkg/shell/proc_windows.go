//go:build windows

package shell

import (
	"os/exec"
	"syscall"
)

func configure(cmd *exec.Cmd, c Command) {
	if line, ok := cmdLine(c); ok {
		cmd.SysProcAttr = &syscall.SysProcAttr{CmdLine: line}
	}
}
