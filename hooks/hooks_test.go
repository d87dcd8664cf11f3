package hooks

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/victoralfred/termexec/engine"
)

// testHook implements both phases with scriptable behavior.
type testHook struct {
	name     string
	priority int
	preFunc  func(ctx context.Context, spec *engine.CommandSpec) (*engine.CommandSpec, error)
	postFunc func(ctx context.Context, spec *engine.CommandSpec, res *engine.Result, err error) error
}

func (h *testHook) Name() string  { return h.name }
func (h *testHook) Priority() int { return h.priority }

func (h *testHook) PreExecute(ctx context.Context, spec *engine.CommandSpec) (*engine.CommandSpec, error) {
	if h.preFunc != nil {
		return h.preFunc(ctx, spec)
	}
	return spec, nil
}

func (h *testHook) PostExecute(ctx context.Context, spec *engine.CommandSpec, res *engine.Result, err error) error {
	if h.postFunc != nil {
		return h.postFunc(ctx, spec, res, err)
	}
	return nil
}

// bareHook implements neither phase.
type bareHook struct{}

func (bareHook) Name() string  { return "bare" }
func (bareHook) Priority() int { return 0 }

func TestRegistry_Register(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(&testHook{name: "a"}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
}

func TestRegistry_RegisterPhaselessHook(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(bareHook{}); err == nil {
		t.Error("Expected error for a hook implementing no phase")
	}
}

func TestRegistry_PreExecutePriorityOrder(t *testing.T) {
	r := NewRegistry()
	var order []string

	mk := func(name string, priority int) *testHook {
		return &testHook{
			name:     name,
			priority: priority,
			preFunc: func(ctx context.Context, spec *engine.CommandSpec) (*engine.CommandSpec, error) {
				order = append(order, name)
				return spec, nil
			},
		}
	}

	r.Register(mk("last", 100))
	r.Register(mk("first", 1))
	r.Register(mk("middle", 50))

	spec := engine.NewCommand("echo hi").MustBuild()
	if _, err := r.PreExecute(context.Background(), spec); err != nil {
		t.Fatalf("PreExecute failed: %v", err)
	}

	want := []string{"first", "middle", "last"}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("Expected order %v, got %v", want, order)
		}
	}
}

func TestRegistry_PreExecuteRewritesSpec(t *testing.T) {
	r := NewRegistry()
	r.Register(&testHook{
		name: "rewriter",
		preFunc: func(ctx context.Context, spec *engine.CommandSpec) (*engine.CommandSpec, error) {
			modified := spec.Clone()
			modified.Command = "echo rewritten"
			return modified, nil
		},
	})

	spec := engine.NewCommand("echo original").MustBuild()
	out, err := r.PreExecute(context.Background(), spec)
	if err != nil {
		t.Fatalf("PreExecute failed: %v", err)
	}
	if out.Command != "echo rewritten" {
		t.Errorf("Expected rewritten command, got %q", out.Command)
	}
}

func TestRegistry_PreExecuteErrorNamesHook(t *testing.T) {
	r := NewRegistry()
	hookErr := fmt.Errorf("refused")
	r.Register(&testHook{
		name: "guard",
		preFunc: func(ctx context.Context, spec *engine.CommandSpec) (*engine.CommandSpec, error) {
			return nil, hookErr
		},
	})

	_, err := r.PreExecute(context.Background(), engine.NewCommand("x").MustBuild())
	if !errors.Is(err, hookErr) {
		t.Fatalf("Expected wrapped hook error, got %v", err)
	}
	if !strings.Contains(err.Error(), "guard") {
		t.Errorf("Expected hook name in error, got %q", err.Error())
	}
}

func TestRegistry_PostExecute(t *testing.T) {
	r := NewRegistry()
	called := false
	r.Register(&testHook{
		name: "observer",
		postFunc: func(ctx context.Context, spec *engine.CommandSpec, res *engine.Result, err error) error {
			called = true
			if res.Status != engine.StatusSuccess {
				t.Errorf("Unexpected status %s", res.Status)
			}
			return nil
		},
	})

	spec := engine.NewCommand("echo hi").MustBuild()
	res := &engine.Result{Status: engine.StatusSuccess}
	if err := r.PostExecute(context.Background(), spec, res, nil); err != nil {
		t.Fatalf("PostExecute failed: %v", err)
	}
	if !called {
		t.Error("Post hook was not invoked")
	}
}

func TestRegistry_Unregister(t *testing.T) {
	r := NewRegistry()
	calls := 0
	r.Register(&testHook{
		name: "removable",
		preFunc: func(ctx context.Context, spec *engine.CommandSpec) (*engine.CommandSpec, error) {
			calls++
			return spec, nil
		},
	})

	spec := engine.NewCommand("echo hi").MustBuild()
	r.PreExecute(context.Background(), spec)
	r.Unregister("removable")
	r.PreExecute(context.Background(), spec)

	if calls != 1 {
		t.Errorf("Expected 1 call after unregister, got %d", calls)
	}
}

func TestLoggingHook(t *testing.T) {
	var lines []string
	hook := NewLoggingHook(func(format string, args ...interface{}) {
		lines = append(lines, fmt.Sprintf(format, args...))
	})

	r := NewRegistry()
	if err := r.Register(hook); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	spec := engine.NewCommand("echo hi").MustBuild()
	if _, err := r.PreExecute(context.Background(), spec); err != nil {
		t.Fatalf("PreExecute failed: %v", err)
	}
	res := &engine.Result{Status: engine.StatusSuccess}
	if err := r.PostExecute(context.Background(), spec, res, nil); err != nil {
		t.Fatalf("PostExecute failed: %v", err)
	}

	if len(lines) != 2 {
		t.Fatalf("Expected 2 log lines, got %d", len(lines))
	}
	if !strings.Contains(lines[0], "echo hi") {
		t.Errorf("Expected command in log, got %q", lines[0])
	}
	if !strings.Contains(lines[1], "completed") {
		t.Errorf("Expected completion log, got %q", lines[1])
	}
}
