package observability

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/victoralfred/gowritter/safepath"

	"github.com/victoralfred/termexec/engine"
)

// AuditLogger provides append-only audit logging of invocations.
type AuditLogger interface {
	// Log logs an audit event.
	Log(ctx context.Context, event *AuditEvent) error

	// Close closes the audit logger.
	Close() error
}

// AuditEvent represents one audit log entry.
type AuditEvent struct {
	Timestamp  time.Time         `json:"timestamp"`
	ID         string            `json:"id"`
	Type       AuditEventType    `json:"type"`
	Command    string            `json:"command"`
	Status     string            `json:"status"`
	ExitCode   int               `json:"exit_code"`
	DurationMS int64             `json:"duration_ms"`
	Error      string            `json:"error,omitempty"`
	Output     string            `json:"output,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// AuditEventType represents the type of audit event.
type AuditEventType string

const (
	// AuditEventExecution is a completed command execution.
	AuditEventExecution AuditEventType = "execution"

	// AuditEventRejected is a policy rejection.
	AuditEventRejected AuditEventType = "rejected"

	// AuditEventTimeout is a wall-clock deadline breach.
	AuditEventTimeout AuditEventType = "timeout"

	// AuditEventResourceExceeded is a resource ceiling breach.
	AuditEventResourceExceeded AuditEventType = "resource_exceeded"

	// AuditEventOutputCapped is an output cap breach.
	AuditEventOutputCapped AuditEventType = "output_capped"

	// AuditEventError is an internal error.
	AuditEventError AuditEventType = "error"
)

// AuditConfig configures the audit logger.
type AuditConfig struct {
	Enabled       bool
	BasePath      string
	FilePath      string
	IncludeOutput bool
	MaxOutputSize int
}

// DefaultAuditConfig returns default audit configuration.
func DefaultAuditConfig() AuditConfig {
	return AuditConfig{
		Enabled:       true,
		IncludeOutput: false,
		MaxOutputSize: 1024,
		BasePath:      "/var/log",
		FilePath:      "termexec/audit.log",
	}
}

// fileAuditLogger implements AuditLogger using gowritter.
type fileAuditLogger struct {
	safePath *safepath.SafePath
	config   AuditConfig
	mu       sync.Mutex
}

// NewFileAuditLogger creates a new file-based audit logger.
func NewFileAuditLogger(config AuditConfig) (AuditLogger, error) {
	sp, err := safepath.New(config.BasePath)
	if err != nil {
		return nil, fmt.Errorf("creating safe path: %w", err)
	}
	return &fileAuditLogger{config: config, safePath: sp}, nil
}

// Log implements AuditLogger.Log.
func (l *fileAuditLogger) Log(ctx context.Context, event *AuditEvent) error {
	if !l.config.Enabled {
		return nil
	}

	if !l.config.IncludeOutput {
		event.Output = ""
	} else if len(event.Output) > l.config.MaxOutputSize {
		event.Output = event.Output[:l.config.MaxOutputSize] + "...(truncated)"
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshaling audit event: %w", err)
	}
	data = append(data, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.safePath.AppendFile(l.config.FilePath, data, 0o644); err != nil {
		return fmt.Errorf("writing audit log: %w", err)
	}
	return nil
}

// Close implements AuditLogger.Close.
func (l *fileAuditLogger) Close() error {
	return nil
}

// Recorder bridges the engine's audit seam onto an AuditLogger.
type Recorder struct {
	logger AuditLogger
}

// NewRecorder creates an engine.Auditor backed by the given logger.
func NewRecorder(logger AuditLogger) *Recorder {
	return &Recorder{logger: logger}
}

// RecordExecution implements engine.Auditor.
func (r *Recorder) RecordExecution(ctx context.Context, res *engine.Result, execErr error, metadata map[string]string) {
	event := &AuditEvent{
		Timestamp:  res.EndTime,
		ID:         res.InvocationID,
		Type:       eventType(res.Status),
		Command:    res.Command,
		Status:     res.Status.String(),
		ExitCode:   res.ExitCode,
		DurationMS: res.Duration().Milliseconds(),
		Output:     res.Stdout,
		Metadata:   metadata,
	}
	if execErr != nil {
		event.Error = execErr.Error()
	} else if res.Status == engine.StatusRejected || res.Status == engine.StatusInternalError {
		event.Error = res.Stderr
	}

	// Audit failures must not disturb the invocation outcome.
	_ = r.logger.Log(ctx, event)
}

func eventType(status engine.Status) AuditEventType {
	switch status {
	case engine.StatusRejected:
		return AuditEventRejected
	case engine.StatusTimeout:
		return AuditEventTimeout
	case engine.StatusResourceExceeded:
		return AuditEventResourceExceeded
	case engine.StatusOutputCapped:
		return AuditEventOutputCapped
	case engine.StatusInternalError:
		return AuditEventError
	default:
		return AuditEventExecution
	}
}
