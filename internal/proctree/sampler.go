// Package proctree observes and terminates a process and its descendants.
//
// The sampler is a small capability behind an interface so the polling
// monitor never depends on how the numbers are obtained; a kernel
// resource-group backed implementation can replace the /proc walker
// without touching the monitor's control logic.
package proctree

import (
	"errors"
	"time"
)

// Usage is one point-in-time observation of a process tree.
type Usage struct {
	// CPUTime is the cumulative user+system CPU time of the root and
	// every live descendant.
	CPUTime time.Duration

	// RSSBytes is the summed resident set size of the tree.
	RSSBytes int64

	// Processes counts the root plus its live descendants.
	Processes int
}

// Sampler observes resource usage of a process tree rooted at one pid.
type Sampler interface {
	// Sample returns current usage for pid and its descendants.
	// It returns ErrVanished when the root process no longer exists.
	Sample(pid int) (Usage, error)
}

// ErrVanished indicates the root process exited between samples.
// Callers treat it as benign: the process finished on its own.
var ErrVanished = errors.New("process tree vanished")

// NewSampler returns the platform sampler. On platforms without a /proc
// filesystem the sampler reports ErrUnsupported from every call.
func NewSampler() Sampler {
	return newPlatformSampler()
}

// ErrUnsupported indicates tree sampling is not available on this platform.
var ErrUnsupported = errors.New("process tree sampling not supported on this platform")
