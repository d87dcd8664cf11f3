package engine

import (
	"errors"
	"fmt"
	"time"
)

// Reserved exit codes. These are stable contracts, not arbitrary values.
const (
	// ExitCodeRejected is reported when policy validation refuses a command.
	ExitCodeRejected = 126
	// ExitCodeNotFound is reported when the executable cannot be located.
	ExitCodeNotFound = 127
	// ExitCodeInternal is the sentinel for internal execution errors.
	ExitCodeInternal = -1
)

// Sentinel errors for common conditions.
var (
	// ErrRejected indicates the command was refused by policy validation.
	ErrRejected = errors.New("command rejected by policy")

	// ErrNotFound indicates the executable could not be located.
	ErrNotFound = errors.New("executable not found")

	// ErrTimeout indicates the wall-clock deadline was exceeded.
	ErrTimeout = errors.New("execution timed out")

	// ErrResourceExceeded indicates a CPU, memory or process-count breach.
	ErrResourceExceeded = errors.New("resource limit exceeded")

	// ErrOutputCapped indicates combined output exceeded the configured cap.
	ErrOutputCapped = errors.New("output size limit exceeded")

	// ErrCanceled indicates the caller's context was canceled.
	ErrCanceled = errors.New("execution canceled")

	// ErrRateLimited indicates the rate limit was exceeded.
	ErrRateLimited = errors.New("rate limit exceeded")

	// ErrEngineShutdown indicates the engine has been shut down.
	ErrEngineShutdown = errors.New("engine shut down")

	// ErrInvalidSpec indicates an invalid command spec.
	ErrInvalidSpec = errors.New("invalid command spec")
)

// ErrorCode provides structured error classification.
type ErrorCode string

const (
	// ErrCodeRejected indicates a policy rejection.
	ErrCodeRejected ErrorCode = "REJECTED"

	// ErrCodeNotFound indicates the executable was not found.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"

	// ErrCodeTimeout indicates a wall-clock deadline breach.
	ErrCodeTimeout ErrorCode = "TIMEOUT"

	// ErrCodeResourceExceeded indicates a resource ceiling breach.
	ErrCodeResourceExceeded ErrorCode = "RESOURCE_EXCEEDED"

	// ErrCodeOutputCapped indicates the output cap was breached.
	ErrCodeOutputCapped ErrorCode = "OUTPUT_CAPPED"

	// ErrCodeCanceled indicates caller cancellation.
	ErrCodeCanceled ErrorCode = "CANCELED"

	// ErrCodeRateLimited indicates rate limiting.
	ErrCodeRateLimited ErrorCode = "RATE_LIMITED"

	// ErrCodeInternal indicates an unexpected internal failure.
	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

// ExecutionError provides detailed, caller-relayable error information.
// Details is always a short, specific message naming the violated
// constraint, never a raw internal error string.
type ExecutionError struct {
	// Op is the operation that failed.
	Op string

	// Command is the command line being executed.
	Command string

	// Err is the underlying sentinel error.
	Err error

	// Code is the structured error code.
	Code ErrorCode

	// Details names the violated constraint in caller-facing terms.
	Details string

	// Retryable indicates whether the invocation can be retried.
	Retryable bool
}

// Error returns the error message.
func (e *ExecutionError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Details)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// Is reports whether the error matches the target.
func (e *ExecutionError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// ResourceExceededError carries which ceiling was breached and by how much.
type ResourceExceededError struct {
	ExecutionError

	// Resource names the breached dimension: "cpu time", "memory" or
	// "process count".
	Resource string

	// Limit is the configured ceiling.
	Limit int64

	// Actual is the observed usage at breach time.
	Actual int64
}

// Unwrap exposes the embedded ExecutionError so errors.As can reach it.
func (e *ResourceExceededError) Unwrap() error {
	return &e.ExecutionError
}

// NewRejectionError creates a policy rejection error.
func NewRejectionError(command, reason string) error {
	return &ExecutionError{
		Op:        "validate",
		Command:   command,
		Err:       ErrRejected,
		Code:      ErrCodeRejected,
		Details:   reason,
		Retryable: false,
	}
}

// NewTimeoutError creates a wall-clock deadline error.
func NewTimeoutError(command string, timeout time.Duration) error {
	return &ExecutionError{
		Op:        "execute",
		Command:   command,
		Err:       ErrTimeout,
		Code:      ErrCodeTimeout,
		Details:   fmt.Sprintf("command timed out after %s", timeout),
		Retryable: true,
	}
}

// NewResourceError creates a resource ceiling breach error.
func NewResourceError(command, resource string, limit, actual int64) error {
	return &ResourceExceededError{
		ExecutionError: ExecutionError{
			Op:        "execute",
			Command:   command,
			Err:       ErrResourceExceeded,
			Code:      ErrCodeResourceExceeded,
			Details:   fmt.Sprintf("%s limit exceeded: %d > %d", resource, actual, limit),
			Retryable: false,
		},
		Resource: resource,
		Limit:    limit,
		Actual:   actual,
	}
}

// NewOutputCapError creates an output-size cap breach error.
func NewOutputCapError(command string, limit int64) error {
	return &ExecutionError{
		Op:        "execute",
		Command:   command,
		Err:       ErrOutputCapped,
		Code:      ErrCodeOutputCapped,
		Details:   fmt.Sprintf("command output exceeds maximum size of %d bytes", limit),
		Retryable: false,
	}
}

// NewCanceledError creates a caller-cancellation error.
func NewCanceledError(command string) error {
	return &ExecutionError{
		Op:        "execute",
		Command:   command,
		Err:       ErrCanceled,
		Code:      ErrCodeCanceled,
		Details:   "execution canceled by caller",
		Retryable: true,
	}
}

// NewRateLimitError creates a rate limit error.
func NewRateLimitError(command string) error {
	return &ExecutionError{
		Op:        "rate_limit",
		Command:   command,
		Err:       ErrRateLimited,
		Code:      ErrCodeRateLimited,
		Details:   "rate limit exceeded, retry later",
		Retryable: true,
	}
}

// IsRetryable returns true if the error is retryable.
func IsRetryable(err error) bool {
	var execErr *ExecutionError
	if errors.As(err, &execErr) {
		return execErr.Retryable
	}
	return false
}

// GetErrorCode extracts the error code from an error.
func GetErrorCode(err error) ErrorCode {
	var execErr *ExecutionError
	if errors.As(err, &execErr) {
		return execErr.Code
	}
	return ErrCodeInternal
}
