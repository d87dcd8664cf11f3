package observability

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/victoralfred/termexec/engine"
)

func newTestLogger(t *testing.T, config AuditConfig) (AuditLogger, string) {
	t.Helper()
	dir := t.TempDir()
	config.BasePath = dir
	config.FilePath = "audit.log"
	logger, err := NewFileAuditLogger(config)
	if err != nil {
		t.Fatalf("NewFileAuditLogger failed: %v", err)
	}
	return logger, filepath.Join(dir, "audit.log")
}

func readEvents(t *testing.T, path string) []AuditEvent {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("Opening audit log: %v", err)
	}
	defer f.Close()

	var events []AuditEvent
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var ev AuditEvent
		if err := json.Unmarshal(scanner.Bytes(), &ev); err != nil {
			t.Fatalf("Parsing audit line %q: %v", scanner.Text(), err)
		}
		events = append(events, ev)
	}
	return events
}

func TestFileAuditLogger_WritesJSONLines(t *testing.T) {
	logger, path := newTestLogger(t, AuditConfig{Enabled: true})

	for i := 0; i < 3; i++ {
		err := logger.Log(context.Background(), &AuditEvent{
			Timestamp: time.Now(),
			ID:        "id",
			Type:      AuditEventExecution,
			Command:   "echo hi",
			Status:    "success",
		})
		if err != nil {
			t.Fatalf("Log failed: %v", err)
		}
	}

	events := readEvents(t, path)
	if len(events) != 3 {
		t.Fatalf("Expected 3 events, got %d", len(events))
	}
	if events[0].Type != AuditEventExecution {
		t.Errorf("Expected execution event, got %s", events[0].Type)
	}
	if events[0].Command != "echo hi" {
		t.Errorf("Expected command preserved, got %q", events[0].Command)
	}
}

func TestFileAuditLogger_Disabled(t *testing.T) {
	logger, path := newTestLogger(t, AuditConfig{Enabled: false})

	if err := logger.Log(context.Background(), &AuditEvent{Command: "echo hi"}); err != nil {
		t.Fatalf("Log failed: %v", err)
	}
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Error("Disabled logger must not create the log file")
	}
}

func TestFileAuditLogger_OutputExcludedByDefault(t *testing.T) {
	logger, path := newTestLogger(t, AuditConfig{Enabled: true, IncludeOutput: false})

	logger.Log(context.Background(), &AuditEvent{
		Type:   AuditEventExecution,
		Output: "sensitive output",
	})

	events := readEvents(t, path)
	if events[0].Output != "" {
		t.Errorf("Expected output stripped, got %q", events[0].Output)
	}
}

func TestFileAuditLogger_OutputTruncated(t *testing.T) {
	logger, path := newTestLogger(t, AuditConfig{
		Enabled:       true,
		IncludeOutput: true,
		MaxOutputSize: 8,
	})

	logger.Log(context.Background(), &AuditEvent{
		Type:   AuditEventExecution,
		Output: "0123456789abcdef",
	})

	events := readEvents(t, path)
	if !strings.HasPrefix(events[0].Output, "01234567") {
		t.Errorf("Expected truncated prefix, got %q", events[0].Output)
	}
	if !strings.HasSuffix(events[0].Output, "(truncated)") {
		t.Errorf("Expected truncation marker, got %q", events[0].Output)
	}
}

func TestRecorder_MapsStatusToEventType(t *testing.T) {
	tests := []struct {
		status engine.Status
		want   AuditEventType
	}{
		{engine.StatusSuccess, AuditEventExecution},
		{engine.StatusError, AuditEventExecution},
		{engine.StatusRejected, AuditEventRejected},
		{engine.StatusNotFound, AuditEventExecution},
		{engine.StatusTimeout, AuditEventTimeout},
		{engine.StatusResourceExceeded, AuditEventResourceExceeded},
		{engine.StatusOutputCapped, AuditEventOutputCapped},
		{engine.StatusInternalError, AuditEventError},
	}

	for _, tt := range tests {
		if got := eventType(tt.status); got != tt.want {
			t.Errorf("eventType(%s) = %s, want %s", tt.status, got, tt.want)
		}
	}
}

func TestRecorder_RecordExecution(t *testing.T) {
	logger, path := newTestLogger(t, AuditConfig{Enabled: true})
	recorder := NewRecorder(logger)

	start := time.Now()
	res := &engine.Result{
		InvocationID: "abc-123",
		Command:      "echo hi",
		ExitCode:     0,
		Status:       engine.StatusSuccess,
		StartTime:    start,
		EndTime:      start.Add(120 * time.Millisecond),
	}
	recorder.RecordExecution(context.Background(), res, nil, map[string]string{"user": "alice"})

	events := readEvents(t, path)
	if len(events) != 1 {
		t.Fatalf("Expected 1 event, got %d", len(events))
	}
	ev := events[0]
	if ev.ID != "abc-123" {
		t.Errorf("Expected invocation ID, got %q", ev.ID)
	}
	if ev.Status != "success" || ev.Type != AuditEventExecution {
		t.Errorf("Unexpected status/type: %s/%s", ev.Status, ev.Type)
	}
	if ev.DurationMS != 120 {
		t.Errorf("Expected 120ms duration, got %d", ev.DurationMS)
	}
	if ev.Metadata["user"] != "alice" {
		t.Errorf("Expected metadata preserved, got %v", ev.Metadata)
	}
}

func TestRecorder_RejectionCarriesReason(t *testing.T) {
	logger, path := newTestLogger(t, AuditConfig{Enabled: true})
	recorder := NewRecorder(logger)

	res := &engine.Result{
		InvocationID: "r-1",
		Command:      "rm -rf /",
		ExitCode:     126,
		Status:       engine.StatusRejected,
		Stderr:       `command "rm" not allowed`,
	}
	recorder.RecordExecution(context.Background(), res, nil, nil)

	events := readEvents(t, path)
	if events[0].Type != AuditEventRejected {
		t.Errorf("Expected rejected event, got %s", events[0].Type)
	}
	if !strings.Contains(events[0].Error, "not allowed") {
		t.Errorf("Expected rejection reason, got %q", events[0].Error)
	}
}

func TestRecorder_ExecutionErrorRecorded(t *testing.T) {
	logger, path := newTestLogger(t, AuditConfig{Enabled: true})
	recorder := NewRecorder(logger)

	res := &engine.Result{
		InvocationID: "t-1",
		Command:      "sleep 10",
		Status:       engine.StatusTimeout,
	}
	execErr := engine.NewTimeoutError("sleep 10", time.Second)
	recorder.RecordExecution(context.Background(), res, execErr, nil)

	events := readEvents(t, path)
	if events[0].Type != AuditEventTimeout {
		t.Errorf("Expected timeout event, got %s", events[0].Type)
	}
	if !strings.Contains(events[0].Error, "timed out") {
		t.Errorf("Expected timeout message, got %q", events[0].Error)
	}
}
