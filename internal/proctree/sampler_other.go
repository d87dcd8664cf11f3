//go:build !linux

package proctree

// stubSampler is used on platforms without a /proc filesystem.
type stubSampler struct{}

func newPlatformSampler() Sampler {
	return stubSampler{}
}

// Sample always reports ErrUnsupported; the monitor skips CPU, memory and
// process-count enforcement on these platforms.
func (stubSampler) Sample(int) (Usage, error) {
	return Usage{}, ErrUnsupported
}

// KillTree is a no-op here; the process-group kill in the runner is the
// only tree termination available.
func KillTree(int) {}
