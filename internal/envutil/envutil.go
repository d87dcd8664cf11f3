// Package envutil builds the child process environment.
package envutil

import (
	"fmt"
	"sort"
)

// Minimal returns the minimal safe environment every child starts from.
// The shell needs PATH to resolve the command's first token; everything
// else is deliberately sparse.
func Minimal() map[string]string {
	return map[string]string{
		"PATH":   "/usr/local/bin:/usr/bin:/bin",
		"LANG":   "C.UTF-8",
		"LC_ALL": "C.UTF-8",
		"HOME":   "/tmp",
		"USER":   "nobody",
	}
}

// Merge overlays override onto base. Overrides take precedence.
func Merge(base, override map[string]string) map[string]string {
	result := make(map[string]string, len(base)+len(override))
	for k, v := range base {
		result[k] = v
	}
	for k, v := range override {
		result[k] = v
	}
	return result
}

// Flatten converts an environment map into the KEY=VALUE slice form the
// OS expects, sorted for deterministic spawns.
func Flatten(env map[string]string) []string {
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	result := make([]string, 0, len(keys))
	for _, k := range keys {
		result = append(result, fmt.Sprintf("%s=%s", k, env[k]))
	}
	return result
}
