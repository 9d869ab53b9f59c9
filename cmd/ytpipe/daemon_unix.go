//go:build !windows

package main

import (
	"os/exec"
	"syscall"
)

// setSysProcAttr detaches a background server from the terminal
func setSysProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setsid: true, // Create new session
	}
}
