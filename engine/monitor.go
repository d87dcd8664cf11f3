package engine

import (
	"context"
	"errors"
	"time"

	"github.com/victoralfred/termexec/internal/proctree"
)

// defaultSampleInterval is how often the monitor samples the process tree.
const defaultSampleInterval = 50 * time.Millisecond

// resourceMonitor polls a process tree against configured ceilings while
// the process is alive. It runs only when at least one of the CPU, memory
// or process-count limits is set; otherwise it simply does not exist and
// cannot block the completion path.
type resourceMonitor struct {
	sampler  proctree.Sampler
	interval time.Duration
	limits   *Limits
	command  string
}

func newResourceMonitor(sampler proctree.Sampler, interval time.Duration, limits *Limits, command string) *resourceMonitor {
	if interval <= 0 {
		interval = defaultSampleInterval
	}
	return &resourceMonitor{
		sampler:  sampler,
		interval: interval,
		limits:   limits,
		command:  command,
	}
}

// watch samples until the context is canceled, the process vanishes, or a
// ceiling is breached. It returns nil for the first two (the process
// completed on its own) and the breach error for the third. The caller
// owns termination of the tree.
func (m *resourceMonitor) watch(ctx context.Context, pid int) error {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		usage, err := m.sampler.Sample(pid)
		if err != nil {
			if errors.Is(err, proctree.ErrVanished) {
				// Exited between samples on its own; benign.
				return nil
			}
			if errors.Is(err, proctree.ErrUnsupported) {
				return nil
			}
			// Transient /proc read failure; try again next tick.
			continue
		}

		if breach := m.check(usage); breach != nil {
			return breach
		}
	}
}

// check compares one sample against every configured ceiling and returns
// the first breach found.
func (m *resourceMonitor) check(usage proctree.Usage) error {
	if m.limits.MaxCPUTime > 0 && usage.CPUTime > m.limits.MaxCPUTime {
		return NewResourceError(m.command, "cpu time",
			m.limits.MaxCPUTime.Milliseconds(), usage.CPUTime.Milliseconds())
	}
	if m.limits.MaxMemoryBytes > 0 && usage.RSSBytes > m.limits.MaxMemoryBytes {
		return NewResourceError(m.command, "memory",
			m.limits.MaxMemoryBytes, usage.RSSBytes)
	}
	if m.limits.MaxProcesses > 0 && usage.Processes > m.limits.MaxProcesses {
		return NewResourceError(m.command, "process count",
			int64(m.limits.MaxProcesses), int64(usage.Processes))
	}
	return nil
}
