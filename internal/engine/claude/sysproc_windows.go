//go:build windows

package claude

import (
	"os/exec"
	"syscall"
	"time"
)

// newSysProcAttr starts the CLI in a new process group so console
// interrupts aimed at prdforge do not reach it first.
func newSysProcAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{
		CreationFlags: syscall.CREATE_NEW_PROCESS_GROUP,
	}
}

// setupProcessCleanup keeps the default cmd.Cancel (os.Process.Kill) and
// bounds how long Wait blocks on inherited pipes afterwards.
func setupProcessCleanup(cmd *exec.Cmd) {
	cmd.WaitDelay = 2 * time.Second
}
