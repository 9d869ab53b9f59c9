//go:build windows

package infrastructure

import (
	"os"
	"os/exec"
	"syscall"
)

// setProcessGroup detaches the child from the console's Ctrl+C group
func setProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		CreationFlags: syscall.CREATE_NEW_PROCESS_GROUP,
	}
}

// Windows has no SIGTERM; the first request is already forceful.
func signalTerminate(p *os.Process) error {
	return p.Kill()
}

func signalKill(p *os.Process) {
	p.Kill()
}
