//go:build linux

package proctree

import "syscall"

// KillTree terminates every live descendant of pid, then pid itself.
// A pid that disappears between enumeration and the kill attempt already
// exited on its own; that is not an error.
func KillTree(pid int) {
	s, ok := NewSampler().(*procSampler)
	if !ok {
		return
	}
	stats, err := s.scan()
	if err != nil {
		return
	}
	members := descendants(stats, pid)

	// Children first so nothing gets a chance to respawn workers while
	// the root is still alive.
	for i := len(members) - 1; i > 0; i-- {
		_ = syscall.Kill(members[i], syscall.SIGKILL)
	}
	_ = syscall.Kill(pid, syscall.SIGKILL)
}
