// Package ratelimit paces browser actions across all workers of a run.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter defines the interface for rate limiting
type Limiter interface {
	// Allow reports whether an action may proceed right now, consuming the slot if so
	Allow() bool
	// Wait blocks until the next slot is available or ctx is done
	Wait(ctx context.Context) error
	// Reset restores the initial state
	Reset()
}

// PacingGate limits actions per minute across every caller sharing it.
// Slots are reserved under the limiter's lock in call order, so concurrent
// waiters are released first come, first served.
type PacingGate struct {
	mu               sync.Mutex
	limiter          *rate.Limiter
	actionsPerMinute int
	waited           time.Duration
	actions          int64
}

// NewPacingGate creates a gate allowing actionsPerMinute actions, evenly spaced.
// A non-positive value disables pacing.
func NewPacingGate(actionsPerMinute int) *PacingGate {
	g := &PacingGate{actionsPerMinute: actionsPerMinute}
	g.limiter = newLimiter(actionsPerMinute)
	return g
}

func newLimiter(actionsPerMinute int) *rate.Limiter {
	if actionsPerMinute <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(time.Minute/time.Duration(actionsPerMinute)), 1)
}

// Interval is the spacing between consecutive actions.
func (g *PacingGate) Interval() time.Duration {
	if g.actionsPerMinute <= 0 {
		return 0
	}
	return time.Minute / time.Duration(g.actionsPerMinute)
}

// Allow takes a slot if one is free now.
func (g *PacingGate) Allow() bool {
	ok := g.current().Allow()
	if ok {
		g.record(0)
	}
	return ok
}

// Wait blocks until the caller's reserved slot arrives. If ctx ends first the
// reservation is cancelled and ctx's error returned.
func (g *PacingGate) Wait(ctx context.Context) error {
	start := time.Now()
	if err := g.current().Wait(ctx); err != nil {
		return err
	}
	g.record(time.Since(start))
	return nil
}

// Reset discards pending slot reservations.
func (g *PacingGate) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.limiter = newLimiter(g.actionsPerMinute)
	g.waited = 0
	g.actions = 0
}

// Stats returns the number of admitted actions and total time spent waiting.
func (g *PacingGate) Stats() (actions int64, waited time.Duration) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.actions, g.waited
}

func (g *PacingGate) current() *rate.Limiter {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.limiter
}

func (g *PacingGate) record(waited time.Duration) {
	g.mu.Lock()
	g.actions++
	g.waited += waited
	g.mu.Unlock()
}
