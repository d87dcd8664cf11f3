// Package config provides configuration management for termexec.
package config

import (
	"time"

	"github.com/victoralfred/termexec/observability"
	"github.com/victoralfred/termexec/pool"
	"github.com/victoralfred/termexec/resilience"
)

// Config is the main configuration for termexec.
type Config struct {
	RateLimiter resilience.RateLimiterConfig
	Telemetry   observability.TelemetryConfig

	// PolicyPath names a YAML policy file relative to PolicyBasePath.
	// Empty disables policy loading; the engine then runs unrestricted.
	PolicyPath     string
	PolicyBasePath string

	Engine EngineConfig
	Audit  observability.AuditConfig
	Pool   pool.Config
}

// EngineConfig configures the execution engine.
type EngineConfig struct {
	DefaultTimeout        time.Duration
	DefaultMaxOutputBytes int64
	SampleInterval        time.Duration
	EnableMetrics         bool
	EnableTracing         bool
	EnableAudit           bool
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Engine: EngineConfig{
			DefaultTimeout:        30 * time.Second,
			DefaultMaxOutputBytes: 1 << 20,
			SampleInterval:        50 * time.Millisecond,
			EnableMetrics:         true,
			EnableTracing:         true,
			EnableAudit:           true,
		},
		Pool:        pool.DefaultConfig(),
		RateLimiter: resilience.DefaultRateLimiterConfig(),
		Telemetry:   observability.DefaultTelemetryConfig(),
		Audit:       observability.DefaultAuditConfig(),
	}
}

// DevelopmentConfig returns configuration suitable for development.
func DevelopmentConfig() Config {
	cfg := DefaultConfig()
	cfg.Engine.DefaultTimeout = 60 * time.Second
	cfg.Engine.DefaultMaxOutputBytes = 10 << 20
	cfg.RateLimiter.DefaultLimit = 1000
	cfg.RateLimiter.DefaultBurst = 2000
	cfg.Audit.IncludeOutput = true
	return cfg
}

// ProductionConfig returns configuration suitable for production.
func ProductionConfig() Config {
	cfg := DefaultConfig()
	cfg.Engine.DefaultTimeout = 30 * time.Second
	cfg.PolicyBasePath = "/etc/termexec"
	cfg.PolicyPath = "policy.yaml"
	cfg.Pool.MaxConcurrent = 50
	cfg.RateLimiter.DefaultLimit = 100
	cfg.RateLimiter.DefaultBurst = 150
	cfg.Audit.IncludeOutput = false
	return cfg
}

// RestrictedConfig returns highly restrictive configuration.
func RestrictedConfig() Config {
	cfg := ProductionConfig()
	cfg.Engine.DefaultTimeout = 10 * time.Second
	cfg.Engine.DefaultMaxOutputBytes = 256 << 10
	cfg.Pool.MaxConcurrent = 10
	cfg.RateLimiter.DefaultLimit = 10
	cfg.RateLimiter.DefaultBurst = 20
	return cfg
}

// Validate normalizes invalid values back to safe defaults.
func (c *Config) Validate() error {
	if c.Engine.DefaultTimeout <= 0 {
		c.Engine.DefaultTimeout = 30 * time.Second
	}

	if c.Engine.DefaultMaxOutputBytes <= 0 {
		c.Engine.DefaultMaxOutputBytes = 1 << 20
	}

	if c.Engine.SampleInterval <= 0 {
		c.Engine.SampleInterval = 50 * time.Millisecond
	}

	if c.Pool.MaxConcurrent <= 0 {
		c.Pool.MaxConcurrent = 100
	}

	return nil
}
