//go:build unix

// Package sysproc starts external tools so that cancelling their context
// terminates the tool together with every child it spawned.
package sysproc

import (
	"context"
	"os/exec"
	"syscall"
	"time"
)

// waitDelay bounds how long Wait blocks on inherited pipes after the kill.
const waitDelay = 2 * time.Second

// Command is exec.CommandContext with the child placed in its own process
// group; on cancellation the whole group receives SIGKILL.
func Command(ctx context.Context, name string, args ...string) *exec.Cmd {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
	cmd.WaitDelay = waitDelay
	return cmd
}
