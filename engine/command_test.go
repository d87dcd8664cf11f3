package engine

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestNewCommand(t *testing.T) {
	spec, err := NewCommand("echo hello").Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if spec.Command != "echo hello" {
		t.Errorf("Expected command 'echo hello', got %q", spec.Command)
	}
	if spec.Limits != nil {
		t.Error("Expected no limits by default")
	}
	if spec.AllowList != nil {
		t.Error("Expected nil allow-list by default")
	}
}

func TestCommandBuilder_EmptyCommandBuilds(t *testing.T) {
	// Empty command lines go through the engine and come back as a
	// rejected Result, so Build must accept them.
	spec, err := NewCommand("").Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if spec.Command != "" {
		t.Errorf("Unexpected command: %q", spec.Command)
	}
}

func TestCommandBuilder_WithTimeout(t *testing.T) {
	spec, err := NewCommand("sleep 1").WithTimeout(5 * time.Second).Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if spec.Limits == nil || spec.Limits.Timeout != 5*time.Second {
		t.Errorf("Timeout not set: %+v", spec.Limits)
	}
}

func TestCommandBuilder_WithTimeout_Invalid(t *testing.T) {
	for _, timeout := range []time.Duration{0, -time.Second} {
		spec, err := NewCommand("echo hi").WithTimeout(timeout).Build()
		if err == nil {
			t.Errorf("Expected error for timeout %v", timeout)
		}
		if spec != nil {
			t.Error("Spec should be nil on error")
		}
	}
}

func TestCommandBuilder_WithMaxOutputBytes(t *testing.T) {
	spec, err := NewCommand("echo hi").WithMaxOutputBytes(10).Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if spec.Limits == nil || spec.Limits.MaxOutputBytes != 10 {
		t.Errorf("Output cap not set: %+v", spec.Limits)
	}
}

func TestCommandBuilder_WithMaxOutputBytes_Invalid(t *testing.T) {
	if _, err := NewCommand("echo hi").WithMaxOutputBytes(0).Build(); err == nil {
		t.Error("Expected error for zero output cap")
	}
}

func TestCommandBuilder_WithAllowList(t *testing.T) {
	spec, err := NewCommand("echo hi").WithAllowList("echo", "ls").Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if len(spec.AllowList) != 2 {
		t.Errorf("Expected 2 allow-list entries, got %d", len(spec.AllowList))
	}
}

func TestCommandBuilder_WithAllowList_Empty(t *testing.T) {
	spec, err := NewCommand("echo hi").WithAllowList().Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if spec.AllowList == nil {
		t.Error("Expected empty non-nil allow-list (rejects everything)")
	}
	if len(spec.AllowList) != 0 {
		t.Errorf("Expected empty allow-list, got %v", spec.AllowList)
	}
}

func TestCommandBuilder_WithEnv(t *testing.T) {
	spec, err := NewCommand("env").
		WithEnv("KEY1", "value1").
		WithEnv("KEY2", "value2").
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if spec.Env["KEY1"] != "value1" || spec.Env["KEY2"] != "value2" {
		t.Errorf("Env not set: %v", spec.Env)
	}
}

func TestCommandBuilder_WithWorkingDir_Relative(t *testing.T) {
	_, err := NewCommand("ls").WithWorkingDir("relative/path").Build()
	if err == nil {
		t.Fatal("Expected error for relative working directory")
	}
	if !errors.Is(err, ErrInvalidSpec) {
		t.Errorf("Expected ErrInvalidSpec, got %v", err)
	}
}

func TestCommandBuilder_WithStdin(t *testing.T) {
	stdin := strings.NewReader("input")
	spec, err := NewCommand("cat").WithStdin(stdin).Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if spec.Stdin != stdin {
		t.Error("Stdin was not set")
	}
}

func TestCommandBuilder_WithLimits(t *testing.T) {
	limits := &Limits{
		MaxCPUTime:     10 * time.Second,
		MaxMemoryBytes: 1 << 20,
		MaxProcesses:   10,
	}
	spec, err := NewCommand("echo hi").WithLimits(limits).Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if spec.Limits == limits {
		t.Error("Expected limits to be cloned, not shared")
	}
	if spec.Limits.MaxProcesses != 10 {
		t.Errorf("Limits not copied: %+v", spec.Limits)
	}
}

func TestCommandBuilder_ErrorPropagates(t *testing.T) {
	// Once a builder step fails, later steps are no-ops.
	_, err := NewCommand("echo hi").
		WithTimeout(-1).
		WithEnv("K", "V").
		Build()
	if err == nil {
		t.Error("Expected propagated error")
	}
}

func TestMustBuild_Panics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("Expected panic from MustBuild")
		}
	}()
	NewCommand("ls").WithWorkingDir("relative").MustBuild()
}

func TestLimits_Monitored(t *testing.T) {
	tests := []struct {
		name   string
		limits *Limits
		want   bool
	}{
		{"nil", nil, false},
		{"zero", &Limits{}, false},
		{"timeout only", &Limits{Timeout: time.Second}, false},
		{"output cap only", &Limits{MaxOutputBytes: 10}, false},
		{"cpu", &Limits{MaxCPUTime: time.Second}, true},
		{"memory", &Limits{MaxMemoryBytes: 1 << 20}, true},
		{"processes", &Limits{MaxProcesses: 4}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.limits.Monitored(); got != tt.want {
				t.Errorf("Monitored() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLimits_Clone(t *testing.T) {
	var nilLimits *Limits
	if nilLimits.Clone() != nil {
		t.Error("Expected nil clone of nil limits")
	}

	orig := &Limits{Timeout: time.Second, MaxProcesses: 2}
	clone := orig.Clone()
	clone.MaxProcesses = 99
	if orig.MaxProcesses != 2 {
		t.Error("Clone shares memory with original")
	}
}

func TestCommandSpec_Clone(t *testing.T) {
	spec := NewCommand("echo hi").
		WithAllowList("echo").
		WithEnv("K", "V").
		WithMetadata("trace", "abc").
		MustBuild()

	clone := spec.Clone()
	clone.AllowList[0] = "other"
	clone.Env["K"] = "changed"
	clone.Metadata["trace"] = "changed"

	if spec.AllowList[0] != "echo" {
		t.Error("Clone shares allow-list with original")
	}
	if spec.Env["K"] != "V" {
		t.Error("Clone shares env with original")
	}
	if spec.Metadata["trace"] != "abc" {
		t.Error("Clone shares metadata with original")
	}
}
