// Package engine provides the core secure command execution engine.
package engine

import (
	"fmt"
	"io"
	"path/filepath"
	"time"
)

// CommandSpec describes one command invocation. Specs are immutable once
// an invocation starts.
type CommandSpec struct {
	// Command is the raw command line passed to the shell interpreter.
	Command string

	// AllowList is the set of executable names permitted as the first
	// token of the command. nil means the engine policy (or unrestricted
	// execution) applies; an empty non-nil list rejects every command.
	AllowList []string

	// Env is merged over the minimal safe environment for the child.
	Env map[string]string

	// WorkingDir is the working directory for the command.
	WorkingDir string

	// Stdin provides input to the command.
	Stdin io.Reader

	// Limits overrides the engine's default resource limits.
	Limits *Limits

	// Metadata contains arbitrary key-value pairs for audit/tracing.
	Metadata map[string]string
}

// Limits defines resource ceilings for one invocation. Every field is
// independently optional; the zero value means unbounded for that
// dimension (the wall-clock timeout falls back to the engine default).
type Limits struct {
	// Timeout is the wall-clock deadline.
	Timeout time.Duration

	// MaxOutputBytes caps combined stdout+stderr size.
	MaxOutputBytes int64

	// MaxCPUTime caps cumulative CPU time of the process tree.
	MaxCPUTime time.Duration

	// MaxMemoryBytes caps resident memory of the process tree.
	MaxMemoryBytes int64

	// MaxProcesses caps the live process count (root plus descendants).
	MaxProcesses int
}

// Monitored reports whether any polling-enforced ceiling is configured.
// The wall clock and the output cap are enforced elsewhere and do not
// require the sampling monitor.
func (l *Limits) Monitored() bool {
	if l == nil {
		return false
	}
	return l.MaxCPUTime > 0 || l.MaxMemoryBytes > 0 || l.MaxProcesses > 0
}

// Clone returns a copy of the limits, or nil for nil.
func (l *Limits) Clone() *Limits {
	if l == nil {
		return nil
	}
	c := *l
	return &c
}

// CommandBuilder provides a fluent API for constructing command specs.
type CommandBuilder struct {
	spec *CommandSpec
	err  error
}

// NewCommand creates a new CommandBuilder for the given command line.
func NewCommand(command string) *CommandBuilder {
	return &CommandBuilder{
		spec: &CommandSpec{
			Command:  command,
			Metadata: make(map[string]string),
		},
	}
}

// WithAllowList restricts the first token of the command to the given
// executable names. Passing an empty list rejects everything.
func (b *CommandBuilder) WithAllowList(names ...string) *CommandBuilder {
	if b.err != nil {
		return b
	}
	if b.spec.AllowList == nil {
		b.spec.AllowList = make([]string, 0, len(names))
	}
	b.spec.AllowList = append(b.spec.AllowList, names...)
	return b
}

// WithTimeout sets the wall-clock deadline.
func (b *CommandBuilder) WithTimeout(timeout time.Duration) *CommandBuilder {
	if b.err != nil {
		return b
	}
	if timeout <= 0 {
		b.err = fmt.Errorf("timeout must be positive")
		return b
	}
	b.ensureLimits().Timeout = timeout
	return b
}

// WithMaxOutputBytes caps combined stdout+stderr size.
func (b *CommandBuilder) WithMaxOutputBytes(n int64) *CommandBuilder {
	if b.err != nil {
		return b
	}
	if n <= 0 {
		b.err = fmt.Errorf("output cap must be positive")
		return b
	}
	b.ensureLimits().MaxOutputBytes = n
	return b
}

// WithLimits replaces the full set of resource limits.
func (b *CommandBuilder) WithLimits(limits *Limits) *CommandBuilder {
	if b.err != nil {
		return b
	}
	b.spec.Limits = limits.Clone()
	return b
}

// WithEnv adds an environment variable for the child.
func (b *CommandBuilder) WithEnv(key, value string) *CommandBuilder {
	if b.err != nil {
		return b
	}
	if b.spec.Env == nil {
		b.spec.Env = make(map[string]string)
	}
	b.spec.Env[key] = value
	return b
}

// WithWorkingDir sets the working directory.
func (b *CommandBuilder) WithWorkingDir(dir string) *CommandBuilder {
	if b.err != nil {
		return b
	}
	b.spec.WorkingDir = dir
	return b
}

// WithStdin sets the standard input reader.
func (b *CommandBuilder) WithStdin(stdin io.Reader) *CommandBuilder {
	if b.err != nil {
		return b
	}
	b.spec.Stdin = stdin
	return b
}

// WithMetadata adds metadata for audit and tracing.
func (b *CommandBuilder) WithMetadata(key, value string) *CommandBuilder {
	if b.err != nil {
		return b
	}
	b.spec.Metadata[key] = value
	return b
}

// Build validates and returns the spec. An empty command line is allowed
// here: validation turns it into a rejected Result so the caller always
// receives a terminal value rather than a construction error.
func (b *CommandBuilder) Build() (*CommandSpec, error) {
	if b.err != nil {
		return nil, b.err
	}
	if b.spec.WorkingDir != "" && !filepath.IsAbs(b.spec.WorkingDir) {
		return nil, fmt.Errorf("%w: working directory must be an absolute path", ErrInvalidSpec)
	}
	return b.spec, nil
}

// MustBuild validates and returns the spec, panicking on error.
func (b *CommandBuilder) MustBuild() *CommandSpec {
	spec, err := b.Build()
	if err != nil {
		panic(err)
	}
	return spec
}

func (b *CommandBuilder) ensureLimits() *Limits {
	if b.spec.Limits == nil {
		b.spec.Limits = &Limits{}
	}
	return b.spec.Limits
}

// Clone creates a deep copy of the spec (the Stdin reader is shared).
func (s *CommandSpec) Clone() *CommandSpec {
	clone := &CommandSpec{
		Command:    s.Command,
		WorkingDir: s.WorkingDir,
		Stdin:      s.Stdin,
		Limits:     s.Limits.Clone(),
	}
	if s.AllowList != nil {
		clone.AllowList = append([]string(nil), s.AllowList...)
	}
	if s.Env != nil {
		clone.Env = make(map[string]string, len(s.Env))
		for k, v := range s.Env {
			clone.Env[k] = v
		}
	}
	if s.Metadata != nil {
		clone.Metadata = make(map[string]string, len(s.Metadata))
		for k, v := range s.Metadata {
			clone.Metadata[k] = v
		}
	}
	return clone
}

// String returns the raw command line.
func (s *CommandSpec) String() string {
	return s.Command
}
