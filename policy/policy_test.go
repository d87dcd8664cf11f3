package policy

import (
	"strings"
	"testing"
)

func TestValidate_NilAllowListPermitsEverything(t *testing.T) {
	commands := []string{
		"echo hello",
		"ls -la /tmp",
		"echo a && echo b",
		"cat /etc/passwd | grep root",
	}

	for _, cmd := range commands {
		d := Validate(cmd, nil)
		if !d.Allowed {
			t.Errorf("Expected %q to be allowed with nil allow-list, rejected: %s", cmd, d.Reason)
		}
	}
}

func TestValidate_EmptyCommand(t *testing.T) {
	tests := []struct {
		name      string
		command   string
		allowList []string
	}{
		{"empty nil list", "", nil},
		{"whitespace nil list", "   \t  ", nil},
		{"empty with list", "", []string{"echo"}},
		{"whitespace with list", "   ", []string{"echo"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Validate(tt.command, tt.allowList)
			if d.Allowed {
				t.Error("Expected empty command to be rejected")
			}
			if d.Reason != "empty command" {
				t.Errorf("Expected reason 'empty command', got %q", d.Reason)
			}
		})
	}
}

func TestValidate_EmptyAllowListRejectsEverything(t *testing.T) {
	d := Validate("echo hello", []string{})
	if d.Allowed {
		t.Error("Expected non-nil empty allow-list to reject")
	}
	if !strings.Contains(d.Reason, "not allowed") {
		t.Errorf("Unexpected reason: %q", d.Reason)
	}
}

func TestValidate_AllowListMembership(t *testing.T) {
	allowList := []string{"echo", "ls", "date"}

	tests := []struct {
		command string
		allowed bool
	}{
		{"echo hello", true},
		{"ls -la /tmp", true},
		{"date", true},
		{"cat /etc/passwd", false},
		{"rm -rf /", false},
		{"echoo hello", false},
	}

	for _, tt := range tests {
		d := Validate(tt.command, allowList)
		if d.Allowed != tt.allowed {
			t.Errorf("Validate(%q) allowed=%v, want %v (reason: %s)",
				tt.command, d.Allowed, tt.allowed, d.Reason)
		}
	}
}

func TestValidate_DeniedOperators(t *testing.T) {
	allowList := []string{"echo"}

	tests := []struct {
		name     string
		command  string
		operator string
	}{
		{"and chain", "echo a && echo b", "&&"},
		{"or chain", "echo a || echo b", "||"},
		{"pipe", "echo secret | tee /tmp/x", "|"},
		{"semicolon", "echo a; rm -rf /", ";"},
		{"backtick", "echo `whoami`", "`"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Validate(tt.command, allowList)
			if d.Allowed {
				t.Fatalf("Expected %q to be rejected", tt.command)
			}
			if !strings.Contains(d.Reason, "shell operator") {
				t.Errorf("Expected operator rejection, got %q", d.Reason)
			}
		})
	}
}

func TestValidate_OperatorInsideQuotes(t *testing.T) {
	// The operator scan runs on the raw command line, so an operator
	// inside a quoted argument still rejects.
	d := Validate(`echo "a && b"`, []string{"echo"})
	if d.Allowed {
		t.Error("Expected quoted operator to be rejected")
	}
}

func TestValidate_MalformedQuoting(t *testing.T) {
	d := Validate(`echo "unterminated`, []string{"echo"})
	if d.Allowed {
		t.Fatal("Expected malformed quoting to be rejected")
	}
	if d.Reason != "malformed quoting in command" {
		t.Errorf("Unexpected reason: %q", d.Reason)
	}
}

func TestValidate_MalformedQuotingWithNilList(t *testing.T) {
	// Without an allow-list no tokenization happens at all.
	d := Validate(`echo "unterminated`, nil)
	if !d.Allowed {
		t.Errorf("Expected allow with nil allow-list, rejected: %s", d.Reason)
	}
}

func TestValidate_RedirectionNotDenied(t *testing.T) {
	// Redirection is outside the denied operator set.
	d := Validate("echo hello > /tmp/out", []string{"echo"})
	if !d.Allowed {
		t.Errorf("Expected redirection to pass, rejected: %s", d.Reason)
	}
}

func TestExecutable(t *testing.T) {
	tests := []struct {
		command string
		want    string
	}{
		{"echo hello world", "echo"},
		{"ls", "ls"},
		{`"quoted cmd" arg`, "quoted cmd"},
		{`echo "unterminated`, `echo "unterminated`},
		{"  spaced  ", "spaced"},
	}

	for _, tt := range tests {
		if got := Executable(tt.command); got != tt.want {
			t.Errorf("Executable(%q) = %q, want %q", tt.command, got, tt.want)
		}
	}
}
