package policy

import (
	"fmt"
)

// Config represents the YAML policy structure.
type Config struct {
	Version  string   `yaml:"version"`
	Metadata Metadata `yaml:"metadata"`

	// AllowedCommands is the executable allow-list. Omitting the key
	// leaves execution unrestricted; an empty list rejects everything.
	AllowedCommands []string `yaml:"allowed_commands"`

	Limits    ResourceConfig   `yaml:"limits"`
	RateLimit *RateLimitConfig `yaml:"rate_limit"`
	Audit     AuditConfig      `yaml:"audit"`
}

// Metadata contains policy metadata.
type Metadata struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Created     string `yaml:"created"`
	Updated     string `yaml:"updated"`
}

// ResourceConfig contains resource ceiling settings. Zero means
// unbounded for that dimension.
type ResourceConfig struct {
	// TimeoutMS is the wall-clock deadline in milliseconds.
	TimeoutMS int64 `yaml:"timeout_ms"`

	// MaxOutputBytes caps combined stdout+stderr size.
	MaxOutputBytes int64 `yaml:"max_output_bytes"`

	// MaxCPUMS caps cumulative process-tree CPU time in milliseconds.
	MaxCPUMS int64 `yaml:"max_cpu_ms"`

	// MaxMemoryMB caps process-tree resident memory in megabytes.
	MaxMemoryMB int64 `yaml:"max_memory_mb"`

	// MaxProcesses caps the live process count.
	MaxProcesses int `yaml:"max_processes"`
}

// RateLimitConfig contains rate limit settings.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained invocation rate.
	RequestsPerSecond float64 `yaml:"requests_per_second"`

	// Burst is the burst size.
	Burst int `yaml:"burst"`
}

// AuditConfig contains audit settings carried by the policy file.
type AuditConfig struct {
	Enabled       bool   `yaml:"enabled"`
	BasePath      string `yaml:"base_path"`
	FilePath      string `yaml:"file_path"`
	IncludeOutput bool   `yaml:"include_output"`
}

// CompiledPolicy is a validated, ready-to-use policy.
type CompiledPolicy struct {
	// Version is the policy schema version.
	Version string

	// AllowedCommands is the compiled allow-list (nil = unrestricted).
	AllowedCommands []string

	// Limits are the default resource ceilings.
	Limits ResourceConfig

	// RateLimit is the optional rate limit.
	RateLimit *RateLimitConfig

	// Audit carries the audit settings.
	Audit AuditConfig
}

// Validate applies the compiled allow-list to one command line.
func (p *CompiledPolicy) Validate(command string) Decision {
	return Validate(command, p.AllowedCommands)
}

// compile validates a raw config and produces the compiled policy.
func compile(config *Config) (*CompiledPolicy, error) {
	if config.Version == "" {
		return nil, fmt.Errorf("policy version is required")
	}
	if config.Limits.TimeoutMS < 0 || config.Limits.MaxOutputBytes < 0 ||
		config.Limits.MaxCPUMS < 0 || config.Limits.MaxMemoryMB < 0 ||
		config.Limits.MaxProcesses < 0 {
		return nil, fmt.Errorf("resource limits must not be negative")
	}
	if config.RateLimit != nil && config.RateLimit.RequestsPerSecond <= 0 {
		return nil, fmt.Errorf("rate limit requests_per_second must be positive")
	}

	compiled := &CompiledPolicy{
		Version:   config.Version,
		Limits:    config.Limits,
		RateLimit: config.RateLimit,
		Audit:     config.Audit,
	}
	if config.AllowedCommands != nil {
		compiled.AllowedCommands = append([]string(nil), config.AllowedCommands...)
	}
	return compiled, nil
}

// ExamplePolicy returns an example policy configuration, a starting point
// for writing policy files.
func ExamplePolicy() *Config {
	return &Config{
		Version: "1.0",
		Metadata: Metadata{
			Name:        "example",
			Description: "Allow a small set of read-only commands",
		},
		AllowedCommands: []string{"echo", "ls", "cat", "date"},
		Limits: ResourceConfig{
			TimeoutMS:      30000,
			MaxOutputBytes: 1024 * 1024,
			MaxProcesses:   16,
		},
	}
}
