// Package hooks provides extension points for the invocation lifecycle.
package hooks

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/victoralfred/termexec/engine"
)

// Hook identifies an extension point implementation.
type Hook interface {
	// Name returns a unique identifier for the hook.
	Name() string

	// Priority determines execution order (lower = earlier).
	Priority() int
}

// PreExecuteHook is called before a command is validated and spawned.
// It may return a rewritten spec.
type PreExecuteHook interface {
	Hook
	PreExecute(ctx context.Context, spec *engine.CommandSpec) (*engine.CommandSpec, error)
}

// PostExecuteHook is called after an invocation has been finalized.
type PostExecuteHook interface {
	Hook
	PostExecute(ctx context.Context, spec *engine.CommandSpec, res *engine.Result, err error) error
}

// Registry manages hook registration and invocation. It implements
// engine.Hook so it can be wired directly into an engine builder.
type Registry struct {
	preExecute  []PreExecuteHook
	postExecute []PostExecuteHook
	mu          sync.RWMutex
}

// NewRegistry creates a new hook registry.
func NewRegistry() *Registry {
	return &Registry{
		preExecute:  make([]PreExecuteHook, 0),
		postExecute: make([]PostExecuteHook, 0),
	}
}

// Register adds a hook to the registry. A hook may implement both
// phases.
func (r *Registry) Register(hook Hook) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	registered := false
	if h, ok := hook.(PreExecuteHook); ok {
		r.preExecute = append(r.preExecute, h)
		sort.Slice(r.preExecute, func(i, j int) bool {
			return r.preExecute[i].Priority() < r.preExecute[j].Priority()
		})
		registered = true
	}

	if h, ok := hook.(PostExecuteHook); ok {
		r.postExecute = append(r.postExecute, h)
		sort.Slice(r.postExecute, func(i, j int) bool {
			return r.postExecute[i].Priority() < r.postExecute[j].Priority()
		})
		registered = true
	}

	if !registered {
		return fmt.Errorf("hook %s implements no execution phase", hook.Name())
	}
	return nil
}

// Unregister removes a hook by name.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.preExecute = removeByNamePre(r.preExecute, name)
	r.postExecute = removeByNamePost(r.postExecute, name)
}

// PreExecute implements engine.Hook by running all pre-execute hooks in
// priority order.
func (r *Registry) PreExecute(ctx context.Context, spec *engine.CommandSpec) (*engine.CommandSpec, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	current := spec
	for _, hook := range r.preExecute {
		modified, err := hook.PreExecute(ctx, current)
		if err != nil {
			return nil, fmt.Errorf("hook %s: %w", hook.Name(), err)
		}
		current = modified
	}
	return current, nil
}

// PostExecute implements engine.Hook by running all post-execute hooks
// in priority order.
func (r *Registry) PostExecute(ctx context.Context, spec *engine.CommandSpec, res *engine.Result, execErr error) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, hook := range r.postExecute {
		if err := hook.PostExecute(ctx, spec, res, execErr); err != nil {
			return fmt.Errorf("hook %s: %w", hook.Name(), err)
		}
	}
	return nil
}

func removeByNamePre(hooks []PreExecuteHook, name string) []PreExecuteHook {
	result := make([]PreExecuteHook, 0, len(hooks))
	for _, h := range hooks {
		if h.Name() != name {
			result = append(result, h)
		}
	}
	return result
}

func removeByNamePost(hooks []PostExecuteHook, name string) []PostExecuteHook {
	result := make([]PostExecuteHook, 0, len(hooks))
	for _, h := range hooks {
		if h.Name() != name {
			result = append(result, h)
		}
	}
	return result
}

// LoggingHook is a built-in hook that logs invocations.
type LoggingHook struct {
	logger func(format string, args ...interface{})
}

// NewLoggingHook creates a new logging hook.
func NewLoggingHook(logger func(format string, args ...interface{})) *LoggingHook {
	return &LoggingHook{logger: logger}
}

func (h *LoggingHook) Name() string  { return "logging" }
func (h *LoggingHook) Priority() int { return 1000 }

func (h *LoggingHook) PreExecute(ctx context.Context, spec *engine.CommandSpec) (*engine.CommandSpec, error) {
	h.logger("Executing: %s", spec.Command)
	return spec, nil
}

func (h *LoggingHook) PostExecute(ctx context.Context, spec *engine.CommandSpec, res *engine.Result, err error) error {
	if err != nil {
		h.logger("Execution failed: %s - %v", spec.Command, err)
	} else {
		h.logger("Execution completed: %s - status=%s exit=%d duration=%v",
			spec.Command, res.Status, res.ExitCode, res.Duration())
	}
	return nil
}
