//go:build unix

package proc

import (
	"errors"
	"os"
	"os/exec"
	"syscall"
)

// defaultShell returns the POSIX shell invocation.
func defaultShell() []string {
	return []string{"/bin/sh", "-c"}
}

// spawnAttr places the child in its own process group so the whole tree
// can be killed with a single negative-pid signal.
func spawnAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{Setpgid: true, Pgid: 0}
}

// killGroup sends SIGKILL to the child's process group. ESRCH means the
// group is already gone, which is benign.
func killGroup(cmd *exec.Cmd) {
	if cmd == nil || cmd.Process == nil {
		return
	}
	pid := cmd.Process.Pid
	if err := syscall.Kill(-pid, syscall.SIGKILL); err != nil && errors.Is(err, syscall.ESRCH) {
		return
	}
	// Fall back to the single process in case it left its group.
	_ = syscall.Kill(pid, syscall.SIGKILL)
}

// processAlive uses signal 0 to probe for existence without disturbing
// the target.
func processAlive(pid int) bool {
	err := syscall.Kill(pid, 0)
	return err == nil || errors.Is(err, syscall.EPERM)
}

// exitCodeFromState maps the OS wait status to a numeric exit code.
func exitCodeFromState(ps *os.ProcessState) int {
	if ps == nil {
		return -1
	}
	if ws, ok := ps.Sys().(syscall.WaitStatus); ok {
		if ws.Signaled() {
			return 128 + int(ws.Signal())
		}
		return ws.ExitStatus()
	}
	return ps.ExitCode()
}
