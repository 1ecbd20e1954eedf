package retry

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// BackoffStrategy defines the interface for different backoff strategies
type BackoffStrategy interface {
	// NextDelay returns the wait before the retry that follows the given failed attempt (1-based)
	NextDelay(attempt int) time.Duration
}

// ExponentialBackoff computes base * 2^(attempt-1) * U(0.5, 1.5), capped at MaxDelay.
type ExponentialBackoff struct {
	BaseDelay time.Duration
	MaxDelay  time.Duration
	// Rand returns a value in [0,1); nil uses math/rand.
	Rand func() float64
}

// NewExponentialBackoff returns a jittered exponential backoff.
func NewExponentialBackoff(base, max time.Duration) *ExponentialBackoff {
	return &ExponentialBackoff{BaseDelay: base, MaxDelay: max}
}

// DefaultExponentialBackoff returns a backoff with sensible defaults
func DefaultExponentialBackoff() *ExponentialBackoff {
	return NewExponentialBackoff(2*time.Second, 60*time.Second)
}

// NextDelay calculates the next delay with exponential backoff and jitter
func (eb *ExponentialBackoff) NextDelay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	r := rand.Float64
	if eb.Rand != nil {
		r = eb.Rand
	}
	jitter := 0.5 + r()
	delay := eb.base(attempt) * jitter
	return eb.cap(delay)
}

// Bound returns the smallest and largest delay NextDelay can produce for attempt.
func (eb *ExponentialBackoff) Bound(attempt int) (lo, hi time.Duration) {
	if attempt <= 0 {
		return 0, 0
	}
	b := eb.base(attempt)
	return eb.cap(b * 0.5), eb.cap(b * 1.5)
}

func (eb *ExponentialBackoff) base(attempt int) float64 {
	return float64(eb.BaseDelay) * math.Pow(2, float64(attempt-1))
}

func (eb *ExponentialBackoff) cap(delay float64) time.Duration {
	if eb.MaxDelay > 0 && delay > float64(eb.MaxDelay) {
		return eb.MaxDelay
	}
	if delay < 0 {
		return 0
	}
	return time.Duration(delay)
}

// ConstantBackoff implements constant delay backoff
type ConstantBackoff struct {
	Delay time.Duration
}

// NextDelay returns a constant delay
func (cb *ConstantBackoff) NextDelay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	return cb.Delay
}

// Wait waits for the specified duration or until context is cancelled
func Wait(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RandomDelay waits a uniformly random duration in [min, max].
func RandomDelay(ctx context.Context, min, max time.Duration) error {
	return Wait(ctx, Between(min, max, rand.Float64))
}

// Between picks a duration in [min, max] using r.
func Between(min, max time.Duration, r func() float64) time.Duration {
	if max <= min {
		return min
	}
	return min + time.Duration(r()*float64(max-min))
}
