package engine

import (
	"context"
	"errors"
	"io"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/victoralfred/termexec/internal/envutil"
	"github.com/victoralfred/termexec/internal/proc"
	"github.com/victoralfred/termexec/internal/proctree"
	"github.com/victoralfred/termexec/policy"
)

// Engine is the secure command execution engine. All command execution
// MUST go through this interface so policy and resource controls are
// applied consistently.
//
// An Engine holds no mutable state shared across invocations beyond its
// configuration; concurrent invocations are fully independent.
type Engine interface {
	// Execute runs a command to completion and returns its consolidated
	// result. Rejection, executable-not-found and internal errors are
	// folded into the Result (reserved exit codes 126, 127, -1) with a
	// nil error. Timeout, resource-limit and output-cap breaches return
	// the partial Result together with a distinguished error.
	Execute(ctx context.Context, spec *CommandSpec) (*Result, error)

	// ExecuteStream runs a command and returns a lazy, finite,
	// non-restartable sequence of tagged output chunks. Validation
	// rejection is returned as a top-level error before any chunk is
	// produced; failures after that arrive as a final error-tagged
	// element. The caller must drain the channel or cancel ctx.
	ExecuteStream(ctx context.Context, spec *CommandSpec) (<-chan Chunk, error)

	// Shutdown rejects new invocations and waits for in-flight ones.
	Shutdown(ctx context.Context) error
}

// RateLimiter controls invocation rate per executable name.
type RateLimiter interface {
	// Allow checks if execution is allowed.
	Allow(executable string) bool
	// Wait blocks until execution is allowed.
	Wait(ctx context.Context, executable string) error
}

// Gate bounds the number of concurrently running invocations.
type Gate interface {
	// Acquire blocks until a slot is free or ctx is done.
	Acquire(ctx context.Context) error
	// Release frees the slot.
	Release()
}

// Telemetry provides observability.
type Telemetry interface {
	// StartSpan starts a new trace span.
	StartSpan(ctx context.Context, name string) (context.Context, func())
	// RecordMetric records a metric.
	RecordMetric(name string, value float64, labels map[string]string)
}

// Auditor records invocation outcomes.
type Auditor interface {
	// RecordExecution records one finalized invocation.
	RecordExecution(ctx context.Context, res *Result, execErr error, metadata map[string]string)
}

// Hook defines extension points around execution.
type Hook interface {
	// PreExecute may rewrite the spec before validation.
	PreExecute(ctx context.Context, spec *CommandSpec) (*CommandSpec, error)
	// PostExecute observes the finalized outcome.
	PostExecute(ctx context.Context, spec *CommandSpec, res *Result, err error) error
}

// process is the engine's view of one spawned OS process.
type process interface {
	Pid() int
	Stdout() io.ReadCloser
	Stderr() io.ReadCloser
	Wait() error
	Kill()
	ExitCode() int
}

// spawner creates processes. It exists so engine tests can substitute a
// fake without touching the OS.
type spawner interface {
	Spawn(ctx context.Context, config *proc.SpawnConfig) (process, error)
}

type procSpawner struct {
	runner *proc.Runner
}

func (s *procSpawner) Spawn(ctx context.Context, config *proc.SpawnConfig) (process, error) {
	p, err := s.runner.Spawn(ctx, config)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// errFinalized marks cooperative cancellation on the normal completion
// path, distinguishing it from the terminating conditions.
var errFinalized = errors.New("invocation finalized")

// engine is the default Engine implementation.
type engine struct {
	spawner        spawner
	sampler        proctree.Sampler
	rateLimiter    RateLimiter
	gate           Gate
	telemetry      Telemetry
	auditor        Auditor
	hooks          []Hook
	allowList      []string // nil = unrestricted
	defaultTimeout time.Duration
	defaultLimits  *Limits
	sampleInterval time.Duration
	wg             sync.WaitGroup
	mu             sync.RWMutex // makes the shutdown check and wg.Add atomic
	shutdown       int32
}

// Builder creates configured Engine instances.
type Builder struct {
	shell          []string
	sampler        proctree.Sampler
	rateLimiter    RateLimiter
	gate           Gate
	telemetry      Telemetry
	auditor        Auditor
	hooks          []Hook
	allowList      []string
	defaultTimeout time.Duration
	defaultLimits  *Limits
	sampleInterval time.Duration
	spawner        spawner
}

// NewBuilder creates a new engine builder.
func NewBuilder() *Builder {
	return &Builder{
		defaultTimeout: 30 * time.Second,
		sampleInterval: defaultSampleInterval,
	}
}

// WithAllowList restricts commands to the given executable names. Calling
// it with no names rejects every command.
func (b *Builder) WithAllowList(names ...string) *Builder {
	if b.allowList == nil {
		b.allowList = make([]string, 0, len(names))
	}
	b.allowList = append(b.allowList, names...)
	return b
}

// WithDefaultTimeout sets the wall-clock deadline applied when a spec
// carries none.
func (b *Builder) WithDefaultTimeout(timeout time.Duration) *Builder {
	b.defaultTimeout = timeout
	return b
}

// WithDefaultLimits sets engine-wide resource limits; per-spec limits
// override them field by field.
func (b *Builder) WithDefaultLimits(limits *Limits) *Builder {
	b.defaultLimits = limits.Clone()
	return b
}

// WithShell overrides the shell interpreter invocation.
func (b *Builder) WithShell(shell ...string) *Builder {
	b.shell = shell
	return b
}

// WithRateLimiter sets the rate limiter.
func (b *Builder) WithRateLimiter(limiter RateLimiter) *Builder {
	b.rateLimiter = limiter
	return b
}

// WithGate bounds concurrent invocations.
func (b *Builder) WithGate(gate Gate) *Builder {
	b.gate = gate
	return b
}

// WithTelemetry sets the telemetry provider.
func (b *Builder) WithTelemetry(telemetry Telemetry) *Builder {
	b.telemetry = telemetry
	return b
}

// WithAuditor sets the audit recorder.
func (b *Builder) WithAuditor(auditor Auditor) *Builder {
	b.auditor = auditor
	return b
}

// WithHooks adds execution hooks.
func (b *Builder) WithHooks(hooks ...Hook) *Builder {
	b.hooks = append(b.hooks, hooks...)
	return b
}

// WithSampler overrides the process-tree sampler.
func (b *Builder) WithSampler(sampler proctree.Sampler) *Builder {
	b.sampler = sampler
	return b
}

// WithSampleInterval sets the monitor polling interval.
func (b *Builder) WithSampleInterval(interval time.Duration) *Builder {
	b.sampleInterval = interval
	return b
}

// withSpawner is the test seam for process creation.
func (b *Builder) withSpawner(s spawner) *Builder {
	b.spawner = s
	return b
}

// Build creates the engine.
func (b *Builder) Build() (Engine, error) {
	sp := b.spawner
	if sp == nil {
		runner := proc.NewRunner()
		if len(b.shell) > 0 {
			var err error
			runner, err = proc.NewRunnerWithShell(b.shell...)
			if err != nil {
				return nil, err
			}
		}
		sp = &procSpawner{runner: runner}
	}
	sampler := b.sampler
	if sampler == nil {
		sampler = proctree.NewSampler()
	}
	return &engine{
		spawner:        sp,
		sampler:        sampler,
		rateLimiter:    b.rateLimiter,
		gate:           b.gate,
		telemetry:      b.telemetry,
		auditor:        b.auditor,
		hooks:          b.hooks,
		allowList:      b.allowList,
		defaultTimeout: b.defaultTimeout,
		defaultLimits:  b.defaultLimits,
		sampleInterval: b.sampleInterval,
	}, nil
}

// Execute runs a command synchronously.
func (e *engine) Execute(ctx context.Context, spec *CommandSpec) (*Result, error) {
	if err := e.begin(); err != nil {
		return nil, err
	}
	defer e.wg.Done()

	if e.telemetry != nil {
		var endSpan func()
		ctx, endSpan = e.telemetry.StartSpan(ctx, "engine.Execute")
		defer endSpan()
	}

	id := uuid.New().String()
	start := time.Now()

	spec, err := e.runPreHooks(ctx, spec)
	if err != nil {
		return nil, err
	}

	if decision := e.decide(spec); !decision.Allowed {
		res := e.rejectedResult(id, spec, start, decision.Reason)
		e.finish(ctx, spec, res, nil)
		return res, nil
	}

	if e.rateLimiter != nil {
		if err := e.rateLimiter.Wait(ctx, policy.Executable(spec.Command)); err != nil {
			return nil, NewRateLimitError(spec.Command)
		}
	}

	if e.gate != nil {
		if err := e.gate.Acquire(ctx); err != nil {
			return nil, err
		}
		defer e.gate.Release()
	}

	res, execErr := e.run(ctx, id, spec, start, nil)
	e.finish(ctx, spec, res, execErr)
	return res, execErr
}

// ExecuteStream runs a command, delivering output as tagged chunks.
func (e *engine) ExecuteStream(ctx context.Context, spec *CommandSpec) (<-chan Chunk, error) {
	if err := e.begin(); err != nil {
		return nil, err
	}

	if e.telemetry != nil {
		var endSpan func()
		ctx, endSpan = e.telemetry.StartSpan(ctx, "engine.ExecuteStream")
		defer endSpan()
	}

	id := uuid.New().String()
	start := time.Now()

	spec, err := e.runPreHooks(ctx, spec)
	if err != nil {
		e.wg.Done()
		return nil, err
	}

	// No chunks have been produced yet, so rejection is a top-level
	// failure rather than a terminal element.
	if decision := e.decide(spec); !decision.Allowed {
		res := e.rejectedResult(id, spec, start, decision.Reason)
		e.finish(ctx, spec, res, nil)
		e.wg.Done()
		return nil, NewRejectionError(spec.Command, decision.Reason)
	}

	ch := make(chan Chunk)
	emit := func(stream StreamID, data []byte) {
		select {
		case ch <- Chunk{Stream: stream, Data: data}:
		case <-ctx.Done():
		}
	}

	go func() {
		defer e.wg.Done()
		defer close(ch)

		if e.rateLimiter != nil {
			if err := e.rateLimiter.Wait(ctx, policy.Executable(spec.Command)); err != nil {
				e.emitTerminal(ctx, ch, NewRateLimitError(spec.Command))
				return
			}
		}
		if e.gate != nil {
			if err := e.gate.Acquire(ctx); err != nil {
				e.emitTerminal(ctx, ch, err)
				return
			}
			defer e.gate.Release()
		}

		res, execErr := e.run(ctx, id, spec, start, emit)
		e.finish(ctx, spec, res, execErr)
		if execErr != nil {
			e.emitTerminal(ctx, ch, execErr)
		}
	}()

	return ch, nil
}

// emitTerminal appends the final error-tagged element of a stream.
func (e *engine) emitTerminal(ctx context.Context, ch chan<- Chunk, err error) {
	select {
	case ch <- Chunk{Err: err}:
	case <-ctx.Done():
	}
}

// run drives one spawned process to a terminal state. Up to four
// activities progress independently: the deadline timer, the two pipe
// readers, the exit wait, and (when limits require it) the resource
// monitor. The first terminating condition records itself as the
// cancellation cause; everything else stands down cooperatively, and the
// process is confirmed dead before the result finalizes.
func (e *engine) run(ctx context.Context, id string, spec *CommandSpec, start time.Time, emit emitFunc) (*Result, error) {
	limits := e.effectiveLimits(spec)
	timeout := limits.Timeout
	if timeout <= 0 {
		timeout = e.defaultTimeout
	}

	runCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(errFinalized)

	deadline := time.AfterFunc(timeout, func() {
		cancel(NewTimeoutError(spec.Command, timeout))
	})
	defer deadline.Stop()

	env := envutil.Flatten(envutil.Merge(envutil.Minimal(), spec.Env))
	p, err := e.spawner.Spawn(runCtx, &proc.SpawnConfig{
		Command:    spec.Command,
		Env:        env,
		WorkingDir: spec.WorkingDir,
		Stdin:      spec.Stdin,
	})
	if err != nil {
		if proc.IsNotFound(err) {
			return e.spawnFailureResult(id, spec, start, StatusNotFound, ExitCodeNotFound, "command not found"), nil
		}
		return e.spawnFailureResult(id, spec, start, StatusInternalError, ExitCodeInternal, "failed to start process"), nil
	}

	// Watchdog: whatever cancels the invocation, the process group dies.
	// Kill is idempotent and benign after a normal exit.
	watchdogDone := make(chan struct{})
	go func() {
		defer close(watchdogDone)
		<-runCtx.Done()
		p.Kill()
	}()

	if limits.Monitored() {
		monitor := newResourceMonitor(e.sampler, e.sampleInterval, limits, spec.Command)
		go func() {
			if breach := monitor.watch(runCtx, p.Pid()); breach != nil {
				// Descendants first, then the root, then the group kill
				// via the watchdog.
				proctree.KillTree(p.Pid())
				cancel(breach)
			}
		}()
	}

	collector := &batchCollector{}
	sink := emit
	if sink == nil {
		sink = collector.emit
	}
	mux := newMultiplexer(limits.MaxOutputBytes, func() {
		cancel(NewOutputCapError(spec.Command, limits.MaxOutputBytes))
	})

	mux.drainBoth(runCtx, p.Stdout(), p.Stderr(), sink)
	_ = p.Wait()
	deadline.Stop()

	cause := context.Cause(runCtx)
	cancel(errFinalized)
	<-watchdogDone

	end := time.Now()
	res := &Result{
		InvocationID: id,
		Command:      spec.Command,
		ExitCode:     p.ExitCode(),
		Stdout:       string(collector.stdout),
		Stderr:       string(collector.stderr),
		StartTime:    start,
		EndTime:      end,
	}

	switch {
	case cause == nil || errors.Is(cause, errFinalized):
		switch {
		case res.ExitCode == 0:
			res.Status = StatusSuccess
		case res.ExitCode == ExitCodeNotFound:
			res.Status = StatusNotFound
		default:
			res.Status = StatusError
		}
		return res, nil
	case errors.Is(cause, ErrTimeout):
		res.Status = StatusTimeout
		return res, cause
	case errors.Is(cause, ErrResourceExceeded):
		res.Status = StatusResourceExceeded
		return res, cause
	case errors.Is(cause, ErrOutputCapped):
		res.Status = StatusOutputCapped
		return res, cause
	case errors.Is(cause, context.DeadlineExceeded):
		// The caller's own deadline fired; report it as a timeout.
		res.Status = StatusTimeout
		return res, NewTimeoutError(spec.Command, timeout)
	default:
		res.Status = StatusCanceled
		return res, NewCanceledError(spec.Command)
	}
}

// decide applies the validation policy: the per-spec allow-list when one
// is set, the engine's otherwise.
func (e *engine) decide(spec *CommandSpec) policy.Decision {
	list := spec.AllowList
	if list == nil {
		list = e.allowList
	}
	return policy.Validate(spec.Command, list)
}

// effectiveLimits merges spec limits over engine defaults field by field.
func (e *engine) effectiveLimits(spec *CommandSpec) *Limits {
	merged := e.defaultLimits.Clone()
	if merged == nil {
		merged = &Limits{}
	}
	if spec.Limits != nil {
		if spec.Limits.Timeout > 0 {
			merged.Timeout = spec.Limits.Timeout
		}
		if spec.Limits.MaxOutputBytes > 0 {
			merged.MaxOutputBytes = spec.Limits.MaxOutputBytes
		}
		if spec.Limits.MaxCPUTime > 0 {
			merged.MaxCPUTime = spec.Limits.MaxCPUTime
		}
		if spec.Limits.MaxMemoryBytes > 0 {
			merged.MaxMemoryBytes = spec.Limits.MaxMemoryBytes
		}
		if spec.Limits.MaxProcesses > 0 {
			merged.MaxProcesses = spec.Limits.MaxProcesses
		}
	}
	return merged
}

func (e *engine) rejectedResult(id string, spec *CommandSpec, start time.Time, reason string) *Result {
	now := time.Now()
	return &Result{
		InvocationID: id,
		Command:      spec.Command,
		ExitCode:     ExitCodeRejected,
		Stderr:       reason,
		StartTime:    start,
		EndTime:      now,
		Status:       StatusRejected,
	}
}

func (e *engine) spawnFailureResult(id string, spec *CommandSpec, start time.Time, status Status, code int, message string) *Result {
	now := time.Now()
	return &Result{
		InvocationID: id,
		Command:      spec.Command,
		ExitCode:     code,
		Stderr:       message,
		StartTime:    start,
		EndTime:      now,
		Status:       status,
	}
}

// finish records audit, metrics and post hooks for one finalized
// invocation. Hook errors are swallowed here: the Result already exists
// and must remain the single terminal value.
func (e *engine) finish(ctx context.Context, spec *CommandSpec, res *Result, execErr error) {
	if res == nil {
		return
	}
	if e.auditor != nil {
		e.auditor.RecordExecution(ctx, res, execErr, spec.Metadata)
	}
	if e.telemetry != nil {
		e.telemetry.RecordMetric("termexec.execution_duration_ms",
			float64(res.Duration().Milliseconds()), map[string]string{
				"executable": policy.Executable(spec.Command),
				"status":     res.Status.String(),
				"exitcode":   strconv.Itoa(res.ExitCode),
			})
	}
	for _, hook := range e.hooks {
		_ = hook.PostExecute(ctx, spec, res, execErr)
	}
}

// begin gates an invocation against shutdown and registers it.
func (e *engine) begin() error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if atomic.LoadInt32(&e.shutdown) == 1 {
		return ErrEngineShutdown
	}
	e.wg.Add(1)
	return nil
}

// Shutdown rejects new invocations and waits for in-flight ones.
func (e *engine) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	atomic.StoreInt32(&e.shutdown, 1)
	e.mu.Unlock()

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *engine) runPreHooks(ctx context.Context, spec *CommandSpec) (*CommandSpec, error) {
	current := spec
	for _, hook := range e.hooks {
		modified, err := hook.PreExecute(ctx, current)
		if err != nil {
			return nil, err
		}
		current = modified
	}
	return current, nil
}
