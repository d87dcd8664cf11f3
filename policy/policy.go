// Package policy provides command validation and YAML policy loading.
package policy

import (
	"fmt"
	"strings"

	"github.com/google/shlex"
)

// deniedOperators is the fixed set of shell metacharacters reserved for
// chaining and substitution. Their presence rejects a command outright,
// regardless of whether the first token is allowed. The set is exactly
// this; redirection, globbing and variable expansion are intentionally
// outside it (see the package security note below).
var deniedOperators = []string{"&&", "||", "|", ";", "`"}

// Security note: validated commands still run through a shell
// interpreter. Redirection (>, <), globbing (*, ?), environment variable
// expansion ($VAR) and $() substitution are not in the denied set and are
// therefore not defended against. This is a known, deliberate gap: the
// allow-list bounds which executable may lead the command, not what the
// shell does around it.

// Decision is the outcome of validating one command.
type Decision struct {
	// Allowed reports whether the command may execute.
	Allowed bool

	// Reason names the violated rule when Allowed is false.
	Reason string
}

func allowed() Decision {
	return Decision{Allowed: true}
}

func rejected(reason string) Decision {
	return Decision{Reason: reason}
}

// Validate decides whether a command line may be executed under an
// allow-list. It is a pure function: no side effects, no I/O.
//
// A nil allowList permits every non-empty command. A non-nil list engages
// the full policy: quoting-aware tokenization (malformed quoting is a
// rejection, not a crash), the denied-operator scan, and first-token
// membership. An empty non-nil list therefore rejects everything.
func Validate(command string, allowList []string) Decision {
	if strings.TrimSpace(command) == "" {
		return rejected("empty command")
	}
	if allowList == nil {
		return allowed()
	}

	tokens, err := shlex.Split(command)
	if err != nil {
		return rejected("malformed quoting in command")
	}
	if len(tokens) == 0 {
		return rejected("empty command")
	}

	for _, op := range deniedOperators {
		if strings.Contains(command, op) {
			return rejected(fmt.Sprintf("shell operator %q not allowed", op))
		}
	}

	first := tokens[0]
	for _, name := range allowList {
		if first == name {
			return allowed()
		}
	}
	return rejected(fmt.Sprintf("command %q not allowed", first))
}

// Executable returns the first shell word of a command line, or the raw
// text when tokenization fails. Used for rate limiting and metrics
// labels, never for authorization.
func Executable(command string) string {
	tokens, err := shlex.Split(command)
	if err != nil || len(tokens) == 0 {
		return strings.TrimSpace(command)
	}
	return tokens[0]
}
