// Package pool provides a bounded concurrency gate with backpressure.
package pool

import (
	"context"
	"errors"
	"sync/atomic"
)

// Common errors.
var (
	ErrGateClosed  = errors.New("gate is closed")
	ErrInvalidSize = errors.New("gate size must be positive")
)

// Gate bounds how many invocations may run concurrently. Acquire blocks
// callers beyond the capacity until a slot frees up, providing natural
// backpressure without queueing work.
type Gate struct {
	slots   chan struct{}
	closed  atomic.Bool
	waiting atomic.Int64
}

// Config configures the gate.
type Config struct {
	// MaxConcurrent is the number of slots.
	MaxConcurrent int
}

// DefaultConfig returns the default gate configuration.
func DefaultConfig() Config {
	return Config{MaxConcurrent: 100}
}

// NewGate creates a gate with the given capacity.
func NewGate(config Config) (*Gate, error) {
	if config.MaxConcurrent <= 0 {
		return nil, ErrInvalidSize
	}
	return &Gate{
		slots: make(chan struct{}, config.MaxConcurrent),
	}, nil
}

// Acquire blocks until a slot is free, the context is done, or the gate
// is closed.
func (g *Gate) Acquire(ctx context.Context) error {
	if g.closed.Load() {
		return ErrGateClosed
	}

	g.waiting.Add(1)
	defer g.waiting.Add(-1)

	select {
	case g.slots <- struct{}{}:
		if g.closed.Load() {
			<-g.slots
			return ErrGateClosed
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release frees a previously acquired slot.
func (g *Gate) Release() {
	select {
	case <-g.slots:
	default:
		// Release without Acquire is a programming error; swallowing it
		// keeps the gate usable.
	}
}

// Close rejects all future Acquire calls. In-flight holders release
// normally.
func (g *Gate) Close() {
	g.closed.Store(true)
}

// Stats reports the current gate occupancy.
type Stats struct {
	Capacity int
	InUse    int
	Waiting  int
}

// Stats returns a point-in-time snapshot.
func (g *Gate) Stats() Stats {
	return Stats{
		Capacity: cap(g.slots),
		InUse:    len(g.slots),
		Waiting:  int(g.waiting.Load()),
	}
}
