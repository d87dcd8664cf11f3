package termexec

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/victoralfred/termexec/config"
	"github.com/victoralfred/termexec/engine"
	"github.com/victoralfred/termexec/observability"
	"github.com/victoralfred/termexec/policy"
	"github.com/victoralfred/termexec/pool"
	"github.com/victoralfred/termexec/resilience"
)

// =============================================================================
// Core Types
// =============================================================================

// Engine is the primary interface for command execution.
// All command execution MUST go through this interface so validation
// and resource enforcement are applied consistently.
type Engine = engine.Engine

// CommandSpec describes one command invocation.
// Use NewCommand() to create specs.
type CommandSpec = engine.CommandSpec

// Result contains the outcome of a command invocation.
type Result = engine.Result

// Limits defines resource ceilings for an invocation.
type Limits = engine.Limits

// Status classifies how an invocation terminated.
type Status = engine.Status

// Chunk is one tagged element of a streamed invocation.
type Chunk = engine.Chunk

// StreamID tags a chunk with its originating stream.
type StreamID = engine.StreamID

// Builder creates configured Engine instances.
type Builder = engine.Builder

// CommandBuilder creates command specs with a fluent interface.
type CommandBuilder = engine.CommandBuilder

// ExecutionError is the structured error type returned for timeouts,
// resource breaches and output caps.
type ExecutionError = engine.ExecutionError

// =============================================================================
// Policy Types
// =============================================================================

// PolicyLoader loads and manages policies from YAML files.
type PolicyLoader = policy.Loader

// PolicyConfig represents a raw policy file.
type PolicyConfig = policy.Config

// CompiledPolicy is a validated, ready-to-use policy.
type CompiledPolicy = policy.CompiledPolicy

// =============================================================================
// Error Variables
// =============================================================================

// Common errors returned by the library.
var (
	// ErrRejected indicates the command failed validation.
	ErrRejected = engine.ErrRejected

	// ErrNotFound indicates the executable could not be found.
	ErrNotFound = engine.ErrNotFound

	// ErrTimeout indicates execution exceeded the wall-clock deadline.
	ErrTimeout = engine.ErrTimeout

	// ErrResourceExceeded indicates a resource ceiling was breached.
	ErrResourceExceeded = engine.ErrResourceExceeded

	// ErrOutputCapped indicates combined output exceeded its cap.
	ErrOutputCapped = engine.ErrOutputCapped

	// ErrCanceled indicates the caller canceled the invocation.
	ErrCanceled = engine.ErrCanceled

	// ErrRateLimited indicates the rate limit was exceeded.
	ErrRateLimited = engine.ErrRateLimited

	// ErrEngineShutdown indicates the engine has been shut down.
	ErrEngineShutdown = engine.ErrEngineShutdown

	// ErrInvalidSpec indicates an invalid command spec.
	ErrInvalidSpec = engine.ErrInvalidSpec
)

// =============================================================================
// Status and Exit-Code Constants
// =============================================================================

// Invocation status values.
const (
	StatusSuccess          = engine.StatusSuccess
	StatusError            = engine.StatusError
	StatusRejected         = engine.StatusRejected
	StatusNotFound         = engine.StatusNotFound
	StatusTimeout          = engine.StatusTimeout
	StatusResourceExceeded = engine.StatusResourceExceeded
	StatusOutputCapped     = engine.StatusOutputCapped
	StatusCanceled         = engine.StatusCanceled
	StatusInternalError    = engine.StatusInternalError
)

// Stream identifiers for chunk tagging.
const (
	StreamStdout = engine.StreamStdout
	StreamStderr = engine.StreamStderr
)

// Synthetic exit codes used for invocations that never produced a real
// process exit status.
const (
	ExitCodeRejected = engine.ExitCodeRejected
	ExitCodeNotFound = engine.ExitCodeNotFound
	ExitCodeInternal = engine.ExitCodeInternal
)

// =============================================================================
// Factory Functions
// =============================================================================

// New creates a new Engine with default settings: a 30 second timeout
// and a 1 MiB combined output cap, no allow-list.
//
// For production use, consider NewBuilder or NewFromConfig to wire a
// policy, rate limiting and audit logging.
func New() (Engine, error) {
	return engine.NewBuilder().
		WithDefaultLimits(&Limits{MaxOutputBytes: 1 << 20}).
		Build()
}

// NewBuilder creates a new engine builder.
//
// Example:
//
//	eng, err := termexec.NewBuilder().
//	    WithAllowList("echo", "ls").
//	    WithDefaultTimeout(30 * time.Second).
//	    Build()
func NewBuilder() *Builder {
	return engine.NewBuilder()
}

// NewBuilderFromPolicy creates an engine builder pre-configured from a
// compiled policy: its allow-list, default resource limits and rate
// limit are applied.
func NewBuilderFromPolicy(pol *CompiledPolicy) *Builder {
	b := engine.NewBuilder()
	if pol == nil {
		return b
	}
	if pol.AllowedCommands != nil {
		b.WithAllowList(pol.AllowedCommands...)
	}
	if limits := LimitsFromPolicy(pol.Limits); limits != nil {
		b.WithDefaultLimits(limits)
	}
	if pol.Limits.TimeoutMS > 0 {
		b.WithDefaultTimeout(time.Duration(pol.Limits.TimeoutMS) * time.Millisecond)
	}
	if pol.RateLimit != nil {
		cfg := resilience.DefaultRateLimiterConfig()
		cfg.DefaultLimit = pol.RateLimit.RequestsPerSecond
		cfg.DefaultBurst = pol.RateLimit.Burst
		b.WithRateLimiter(resilience.NewRateLimiter(cfg))
	}
	return b
}

// NewFromConfig creates a fully wired Engine from a configuration:
// concurrency gate, rate limiter, telemetry and audit logging.
func NewFromConfig(cfg config.Config) (Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	b := engine.NewBuilder().
		WithDefaultTimeout(cfg.Engine.DefaultTimeout).
		WithDefaultLimits(&Limits{MaxOutputBytes: cfg.Engine.DefaultMaxOutputBytes}).
		WithSampleInterval(cfg.Engine.SampleInterval)

	gate, err := pool.NewGate(cfg.Pool)
	if err != nil {
		return nil, fmt.Errorf("creating concurrency gate: %w", err)
	}
	b.WithGate(gate)

	b.WithRateLimiter(resilience.NewRateLimiter(cfg.RateLimiter))

	if cfg.Engine.EnableMetrics || cfg.Engine.EnableTracing {
		tel, err := observability.NewTelemetry(cfg.Telemetry)
		if err != nil {
			return nil, fmt.Errorf("creating telemetry: %w", err)
		}
		b.WithTelemetry(tel)
	}

	if cfg.Engine.EnableAudit && cfg.Audit.Enabled {
		logger, err := observability.NewFileAuditLogger(cfg.Audit)
		if err != nil {
			return nil, fmt.Errorf("creating audit logger: %w", err)
		}
		b.WithAuditor(observability.NewRecorder(logger))
	}

	if cfg.PolicyPath != "" {
		loader, err := policy.NewLoader(cfg.PolicyBasePath, cfg.PolicyPath)
		if err != nil {
			return nil, fmt.Errorf("opening policy: %w", err)
		}
		pol, err := loader.Load(context.Background())
		if err != nil {
			return nil, fmt.Errorf("loading policy: %w", err)
		}
		if pol.AllowedCommands != nil {
			b.WithAllowList(pol.AllowedCommands...)
		}
		if limits := LimitsFromPolicy(pol.Limits); limits != nil {
			if limits.MaxOutputBytes == 0 {
				limits.MaxOutputBytes = cfg.Engine.DefaultMaxOutputBytes
			}
			b.WithDefaultLimits(limits)
		}
		if pol.Limits.TimeoutMS > 0 {
			b.WithDefaultTimeout(time.Duration(pol.Limits.TimeoutMS) * time.Millisecond)
		}
	}

	return b.Build()
}

// =============================================================================
// Command Construction
// =============================================================================

// NewCommand creates a new CommandBuilder for the given command line.
// Call Build() on the returned builder to get the final spec.
//
// Example:
//
//	spec, err := termexec.NewCommand("git status").
//	    WithTimeout(10 * time.Second).
//	    Build()
func NewCommand(command string) *CommandBuilder {
	return engine.NewCommand(command)
}

// MustCommand creates a command spec and panics on error.
// Use only when the spec is known to be valid.
func MustCommand(command string) *CommandSpec {
	return engine.NewCommand(command).MustBuild()
}

// LimitsFromPolicy converts policy resource settings into engine
// limits. It returns nil when no dimension is set.
func LimitsFromPolicy(rc policy.ResourceConfig) *Limits {
	limits := &Limits{
		MaxOutputBytes: rc.MaxOutputBytes,
		MaxMemoryBytes: rc.MaxMemoryMB << 20,
		MaxProcesses:   rc.MaxProcesses,
	}
	if rc.TimeoutMS > 0 {
		limits.Timeout = time.Duration(rc.TimeoutMS) * time.Millisecond
	}
	if rc.MaxCPUMS > 0 {
		limits.MaxCPUTime = time.Duration(rc.MaxCPUMS) * time.Millisecond
	}
	if *limits == (Limits{}) {
		return nil
	}
	return limits
}

// =============================================================================
// Policy Loading
// =============================================================================

// LoadPolicy creates a policy loader for a YAML file. The basePath is
// the directory containing the policy file; policyFile is relative to
// it.
//
// Example policy.yaml:
//
//	version: "1.0"
//	allowed_commands:
//	  - echo
//	  - ls
//	limits:
//	  timeout_ms: 30000
//	  max_output_bytes: 1048576
//
// Example:
//
//	loader, err := termexec.LoadPolicy("/etc/termexec", "policy.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	pol, err := loader.Load(ctx)
func LoadPolicy(basePath, policyFile string) (*PolicyLoader, error) {
	return policy.NewLoader(basePath, policyFile)
}

// LoadPolicyFromPath creates a policy loader from a full file path.
func LoadPolicyFromPath(path string) (*PolicyLoader, error) {
	dir := filepath.Dir(path)
	file := filepath.Base(path)
	return policy.NewLoader(dir, file)
}

// ExamplePolicy returns an example policy configuration, a starting
// point for writing policy files.
func ExamplePolicy() *PolicyConfig {
	return policy.ExamplePolicy()
}

// =============================================================================
// Validation
// =============================================================================

// Validate checks a command line against an allow-list without
// executing it. A nil allowList leaves execution unrestricted.
func Validate(command string, allowList []string) (allowed bool, reason string) {
	d := policy.Validate(command, allowList)
	return d.Allowed, d.Reason
}

// =============================================================================
// Convenience Functions
// =============================================================================

// Run is a convenience function for one-off command execution.
// For repeated executions, create an Engine instance instead.
//
// Example:
//
//	result, err := termexec.Run(ctx, "ls -la /tmp")
func Run(ctx context.Context, command string) (*Result, error) {
	eng, err := New()
	if err != nil {
		return nil, err
	}
	defer func() {
		//nolint:errcheck // Shutdown errors are non-critical in cleanup context
		_ = eng.Shutdown(context.Background())
	}()

	spec, err := NewCommand(command).Build()
	if err != nil {
		return nil, err
	}

	return eng.Execute(ctx, spec)
}

// RunWithTimeout is a convenience function with an explicit deadline.
//
// Example:
//
//	result, err := termexec.RunWithTimeout(ctx, 5*time.Second, "sleep 10")
func RunWithTimeout(ctx context.Context, timeout time.Duration, command string) (*Result, error) {
	eng, err := NewBuilder().
		WithDefaultTimeout(timeout).
		WithDefaultLimits(&Limits{MaxOutputBytes: 1 << 20}).
		Build()
	if err != nil {
		return nil, err
	}
	defer func() {
		//nolint:errcheck // Shutdown errors are non-critical in cleanup context
		_ = eng.Shutdown(context.Background())
	}()

	spec, err := NewCommand(command).Build()
	if err != nil {
		return nil, err
	}

	return eng.Execute(ctx, spec)
}

// Stream is a convenience function that copies a command's output
// chunks to the given writers as they arrive. It returns the error the
// invocation terminated with, if any.
//
// Example:
//
//	err := termexec.Stream(ctx, os.Stdout, os.Stderr, "tail -n 100 /var/log/syslog")
func Stream(ctx context.Context, stdout, stderr io.Writer, command string) error {
	eng, err := New()
	if err != nil {
		return err
	}
	defer func() {
		//nolint:errcheck // Shutdown errors are non-critical in cleanup context
		_ = eng.Shutdown(context.Background())
	}()

	spec, err := NewCommand(command).Build()
	if err != nil {
		return err
	}

	ch, err := eng.ExecuteStream(ctx, spec)
	if err != nil {
		return err
	}

	for chunk := range ch {
		if chunk.Err != nil {
			return chunk.Err
		}
		w := stdout
		if chunk.Stream == engine.StreamStderr {
			w = stderr
		}
		if w != nil {
			if _, err := w.Write(chunk.Data); err != nil {
				return err
			}
		}
	}
	return nil
}

// =============================================================================
// Version Information
// =============================================================================

// Version returns the library version.
func Version() string {
	return "1.0.0"
}
