// Package resilience provides rate limiting for command invocations.
package resilience

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// RateLimiter controls invocation rate per executable name.
type RateLimiter interface {
	// Allow checks if an invocation is allowed for the given executable.
	Allow(executable string) bool

	// Wait blocks until an invocation is allowed or ctx is done.
	Wait(ctx context.Context, executable string) error

	// SetLimit updates the rate limit for one executable.
	SetLimit(executable string, limit rate.Limit, burst int)
}

// RateLimiterConfig configures the rate limiter.
type RateLimiterConfig struct {
	// DefaultLimit is the default invocations per second.
	DefaultLimit float64

	// DefaultBurst is the default burst size.
	DefaultBurst int

	// PerExecutable enables independent buckets per executable name
	// (the first shell word of the command).
	PerExecutable bool

	// ExecutableLimits contains per-executable overrides.
	ExecutableLimits map[string]ExecutableLimit
}

// ExecutableLimit defines the rate limit for one executable.
type ExecutableLimit struct {
	Limit float64
	Burst int
}

// DefaultRateLimiterConfig returns default configuration.
func DefaultRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{
		DefaultLimit:     100,
		DefaultBurst:     150,
		PerExecutable:    true,
		ExecutableLimits: make(map[string]ExecutableLimit),
	}
}

// rateLimiter implements RateLimiter with token buckets.
type rateLimiter struct {
	config        RateLimiterConfig
	globalLimiter *rate.Limiter
	limiters      map[string]*rate.Limiter
	mu            sync.RWMutex
}

// NewRateLimiter creates a new rate limiter.
func NewRateLimiter(config RateLimiterConfig) RateLimiter {
	rl := &rateLimiter{
		config:        config,
		globalLimiter: rate.NewLimiter(rate.Limit(config.DefaultLimit), config.DefaultBurst),
		limiters:      make(map[string]*rate.Limiter),
	}
	for executable, limit := range config.ExecutableLimits {
		rl.limiters[executable] = rate.NewLimiter(rate.Limit(limit.Limit), limit.Burst)
	}
	return rl
}

// Allow implements RateLimiter.Allow.
func (rl *rateLimiter) Allow(executable string) bool {
	if !rl.config.PerExecutable {
		return rl.globalLimiter.Allow()
	}
	return rl.getLimiter(executable).Allow()
}

// Wait implements RateLimiter.Wait.
func (rl *rateLimiter) Wait(ctx context.Context, executable string) error {
	if !rl.config.PerExecutable {
		return rl.globalLimiter.Wait(ctx)
	}
	return rl.getLimiter(executable).Wait(ctx)
}

// SetLimit implements RateLimiter.SetLimit.
func (rl *rateLimiter) SetLimit(executable string, limit rate.Limit, burst int) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if limiter, ok := rl.limiters[executable]; ok {
		limiter.SetLimit(limit)
		limiter.SetBurst(burst)
	} else {
		rl.limiters[executable] = rate.NewLimiter(limit, burst)
	}
}

func (rl *rateLimiter) getLimiter(executable string) *rate.Limiter {
	rl.mu.RLock()
	limiter, ok := rl.limiters[executable]
	rl.mu.RUnlock()
	if ok {
		return limiter
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()
	if limiter, ok := rl.limiters[executable]; ok {
		return limiter
	}
	limiter = rate.NewLimiter(rate.Limit(rl.config.DefaultLimit), rl.config.DefaultBurst)
	rl.limiters[executable] = limiter
	return limiter
}
