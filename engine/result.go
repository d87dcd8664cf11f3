package engine

import (
	"time"
)

// Result is the single terminal record describing the outcome of one
// invocation in batch mode. It is produced exactly once and never mutated
// after creation.
type Result struct {
	// InvocationID uniquely identifies this invocation.
	InvocationID string

	// Command is the raw command line that was requested.
	Command string

	// ExitCode is the numeric exit code. Reserved values: 126 means the
	// command was rejected by policy, 127 means the executable was not
	// found, -1 means an internal execution error.
	ExitCode int

	// Stdout is the captured standard output.
	Stdout string

	// Stderr is the captured standard error. For rejected, not-found and
	// internal-error outcomes it carries the failure message.
	Stderr string

	// StartTime is when the invocation began.
	StartTime time.Time

	// EndTime is when the invocation finalized.
	EndTime time.Time

	// Status classifies the outcome.
	Status Status
}

// Duration is the wall-clock time between start and end.
func (r *Result) Duration() time.Duration {
	return r.EndTime.Sub(r.StartTime)
}

// Success reports whether the command ran and exited zero.
func (r *Result) Success() bool {
	return r.Status == StatusSuccess && r.ExitCode == 0
}

// Failed reports the opposite of Success.
func (r *Result) Failed() bool {
	return !r.Success()
}

// Status classifies the terminal state of an invocation.
type Status int

const (
	// StatusSuccess indicates a normal exit with code 0.
	StatusSuccess Status = iota
	// StatusError indicates a normal exit with a non-zero code.
	StatusError
	// StatusRejected indicates the policy check refused the command.
	StatusRejected
	// StatusNotFound indicates the executable could not be located.
	StatusNotFound
	// StatusTimeout indicates the wall-clock deadline expired.
	StatusTimeout
	// StatusResourceExceeded indicates a CPU, memory or process-count breach.
	StatusResourceExceeded
	// StatusOutputCapped indicates combined output exceeded the cap.
	StatusOutputCapped
	// StatusCanceled indicates the caller's context was canceled.
	StatusCanceled
	// StatusInternalError indicates an unexpected OS or runtime failure.
	StatusInternalError
)

// String returns the string representation of the status.
func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusError:
		return "error"
	case StatusRejected:
		return "rejected"
	case StatusNotFound:
		return "not_found"
	case StatusTimeout:
		return "timeout"
	case StatusResourceExceeded:
		return "resource_exceeded"
	case StatusOutputCapped:
		return "output_capped"
	case StatusCanceled:
		return "canceled"
	case StatusInternalError:
		return "internal_error"
	default:
		return "unknown"
	}
}

// Interrupted reports whether the status represents a policy violation that
// interrupted a running command, as opposed to a command that ran to its
// own conclusion.
func (s Status) Interrupted() bool {
	switch s {
	case StatusTimeout, StatusResourceExceeded, StatusOutputCapped, StatusCanceled:
		return true
	default:
		return false
	}
}

// StreamID tags which output channel a chunk came from.
type StreamID string

const (
	// StreamStdout tags standard output chunks.
	StreamStdout StreamID = "stdout"
	// StreamStderr tags standard error chunks.
	StreamStderr StreamID = "stderr"
)

// Chunk is one element of a streaming invocation: a tagged output
// fragment, or the terminal error element. Ordering within one stream tag
// follows the order the process wrote the bytes; no ordering holds
// between the two tags.
type Chunk struct {
	// Stream identifies the source channel. Empty on the terminal error
	// element.
	Stream StreamID

	// Data is the output fragment.
	Data []byte

	// Err is non-nil only on the final element of a failed stream.
	Err error
}
