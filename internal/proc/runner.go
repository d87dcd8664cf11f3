// Package proc provides the internal process spawning wrapper.
// This is the ONLY package in the entire library that imports os/exec.
// All process invocation MUST go through this package.
package proc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os/exec"
	"sync"
)

// ErrNotFound is the not-found spawn error, re-exported so callers can
// classify spawn failures without importing os/exec.
var ErrNotFound = exec.ErrNotFound

// Runner spawns commands through the platform shell interpreter.
// The shell is what makes compound commands (flags, arguments, quoting)
// ergonomic for a single allowed top-level executable.
type Runner struct {
	shell []string
}

// NewRunner creates a runner using the platform default shell.
func NewRunner() *Runner {
	return &Runner{shell: defaultShell()}
}

// NewRunnerWithShell creates a runner using a custom shell invocation,
// e.g. ["/bin/bash", "-c"]. The command line is appended as the final argument.
func NewRunnerWithShell(shell ...string) (*Runner, error) {
	if len(shell) == 0 {
		return nil, errors.New("shell invocation must not be empty")
	}
	return &Runner{shell: append([]string(nil), shell...)}, nil
}

// SpawnConfig contains configuration for spawning a process.
type SpawnConfig struct {
	// Command is the raw command line passed to the shell.
	Command string

	// Env is the environment for the child. If nil, the child inherits
	// nothing beyond what the shell itself sets.
	Env []string

	// WorkingDir is the working directory. Empty means the caller's.
	WorkingDir string

	// Stdin provides input to the command.
	Stdin io.Reader
}

// Process is one spawned OS process and its two output pipes.
// A Process is owned by exactly one invocation and must not be shared.
type Process struct {
	cmd      *exec.Cmd
	stdout   io.ReadCloser
	stderr   io.ReadCloser
	killOnce sync.Once
	waitOnce sync.Once
	waitErr  error
}

// Spawn starts one child process with separate stdout and stderr pipes.
// The child is placed in its own process group (where the platform supports
// it) so the whole tree can be terminated with one signal.
func (r *Runner) Spawn(ctx context.Context, config *SpawnConfig) (*Process, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	argv := append(append([]string(nil), r.shell...), config.Command)

	// The command line reaches this point only after policy validation;
	// shell interpretation is the engine's documented contract.
	// #nosec G204 -- command text is validated upstream
	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Env = config.Env
	cmd.Dir = config.WorkingDir
	cmd.Stdin = config.Stdin
	cmd.SysProcAttr = spawnAttr()

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, err
	}

	return &Process{cmd: cmd, stdout: stdout, stderr: stderr}, nil
}

// Pid returns the process id of the root child.
func (p *Process) Pid() int {
	if p.cmd.Process == nil {
		return -1
	}
	return p.cmd.Process.Pid
}

// Stdout returns the child's standard output pipe.
// The caller must drain it to EOF before calling Wait.
func (p *Process) Stdout() io.ReadCloser { return p.stdout }

// Stderr returns the child's standard error pipe.
// The caller must drain it to EOF before calling Wait.
func (p *Process) Stderr() io.ReadCloser { return p.stderr }

// Wait reaps the child and returns its wait error. Safe to call more than
// once; subsequent calls return the first outcome.
func (p *Process) Wait() error {
	p.waitOnce.Do(func() {
		p.waitErr = p.cmd.Wait()
	})
	return p.waitErr
}

// ExitCode returns the numeric exit code of the reaped child. Valid only
// after Wait has returned.
func (p *Process) ExitCode() int {
	return ExitCode(p.waitErr)
}

// Kill forcibly terminates the process group. Idempotent, and a no-op when
// the process has already exited.
func (p *Process) Kill() {
	p.killOnce.Do(func() {
		killGroup(p.cmd)
	})
}

// Running reports whether the root process is still alive.
func (p *Process) Running() bool {
	if p.cmd.Process == nil {
		return false
	}
	if p.cmd.ProcessState != nil {
		return false
	}
	return processAlive(p.cmd.Process.Pid)
}

// ExitCode translates a Wait error into a numeric exit code.
// A normal exit yields the child's code. Death by signal yields 128+signal
// (the shell convention), so the mapping is deterministic across runs.
// A nil error means exit code 0.
func ExitCode(waitErr error) int {
	if waitErr == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(waitErr, &exitErr) {
		return exitCodeFromState(exitErr.ProcessState)
	}
	return -1
}

// IsNotFound reports whether a spawn error means the shell interpreter
// itself could not be located. PATH lookup failures surface as
// exec.ErrNotFound; absolute paths that do not exist surface as
// fs.ErrNotExist.
func IsNotFound(err error) bool {
	return errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist)
}
