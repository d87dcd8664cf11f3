//go:build windows

package proc

import (
	"os"
	"os/exec"
	"syscall"
)

// defaultShell returns the Windows command interpreter invocation.
func defaultShell() []string {
	return []string{"cmd", "/C"}
}

// spawnAttr creates the child in a new process group so console control
// events do not propagate from the parent.
func spawnAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{CreationFlags: syscall.CREATE_NEW_PROCESS_GROUP}
}

// killGroup terminates the child process. Windows has no process-group
// kill; descendants are handled by the resource monitor where active.
func killGroup(cmd *exec.Cmd) {
	if cmd == nil || cmd.Process == nil {
		return
	}
	_ = cmd.Process.Kill()
}

// processAlive reports whether the process with the given pid exists.
func processAlive(pid int) bool {
	p, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	_ = p
	return true
}

// exitCodeFromState maps the OS wait status to a numeric exit code.
func exitCodeFromState(ps *os.ProcessState) int {
	if ps == nil {
		return -1
	}
	return ps.ExitCode()
}
