package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	errs "postscraper/pkg/errors"
	"postscraper/pkg/logger"
	"postscraper/pkg/ratelimit"
)

func TestExponentialBackoffWithoutJitter(t *testing.T) {
	backoff := &ExponentialBackoff{
		BaseDelay: 100 * time.Millisecond,
		MaxDelay:  1 * time.Second,
		Rand:      func() float64 { return 0.5 }, // jitter factor exactly 1.0
	}

	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{1, 100 * time.Millisecond},
		{2, 200 * time.Millisecond},
		{3, 400 * time.Millisecond},
		{4, 800 * time.Millisecond},
		{5, 1 * time.Second},
		{6, 1 * time.Second},
	}

	for _, tt := range tests {
		if got := backoff.NextDelay(tt.attempt); got != tt.expected {
			t.Errorf("NextDelay(%d) = %v, want %v", tt.attempt, got, tt.expected)
		}
	}
	if backoff.NextDelay(0) != 0 {
		t.Error("NextDelay(0) should be zero")
	}
}

func TestExponentialBackoffJitterRange(t *testing.T) {
	backoff := NewExponentialBackoff(100*time.Millisecond, time.Hour)

	seen := make(map[time.Duration]bool)
	for i := 0; i < 200; i++ {
		d := backoff.NextDelay(3)
		lo, hi := backoff.Bound(3)
		if d < lo || d > hi {
			t.Fatalf("delay %v outside [%v, %v]", d, lo, hi)
		}
		seen[d] = true
	}
	if lo, hi := backoff.Bound(3); lo != 200*time.Millisecond || hi != 600*time.Millisecond {
		t.Errorf("Bound(3) = [%v, %v], want [200ms, 600ms]", lo, hi)
	}
	if len(seen) < 2 {
		t.Error("expected jitter to vary delays")
	}
}

func TestBackoffBoundMonotonic(t *testing.T) {
	backoff := NewExponentialBackoff(250*time.Millisecond, 20*time.Second)
	prevLo, prevHi := time.Duration(0), time.Duration(0)
	for attempt := 1; attempt <= 12; attempt++ {
		lo, hi := backoff.Bound(attempt)
		if lo < prevLo || hi < prevHi {
			t.Fatalf("bound decreased at attempt %d: [%v,%v] after [%v,%v]", attempt, lo, hi, prevLo, prevHi)
		}
		if hi > 20*time.Second {
			t.Fatalf("bound %v exceeds cap", hi)
		}
		prevLo, prevHi = lo, hi
	}
}

func TestRetryWithSuccess(t *testing.T) {
	attempts := 0
	op := func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			return errs.New(errs.KindTransientNetwork, "timeout")
		}
		return nil
	}

	cfg := &Config{
		MaxAttempts: 5,
		Backoff:     &ConstantBackoff{Delay: 10 * time.Millisecond},
	}

	if err := Do(context.Background(), op, cfg); err != nil {
		t.Errorf("Expected success after retries, got error: %v", err)
	}
	if attempts != 3 {
		t.Errorf("Expected 3 attempts, got %d", attempts)
	}
}

func TestRetryWithMaxAttemptsExceeded(t *testing.T) {
	attempts := 0
	last := errs.New(errs.KindTransientNetwork, "empty response")
	op := func(ctx context.Context) error {
		attempts++
		return last
	}

	var delays []time.Duration
	cfg := &Config{
		MaxAttempts: 3,
		Backoff:     &ConstantBackoff{Delay: 5 * time.Millisecond},
		OnRetry: func(attempt int, err error, delay time.Duration) {
			delays = append(delays, delay)
		},
	}

	err := Do(context.Background(), op, cfg)
	if err == nil {
		t.Fatal("Expected error when max attempts exceeded")
	}
	if attempts != 3 {
		t.Errorf("Expected 3 attempts, got %d", attempts)
	}
	if len(delays) != 2 {
		t.Errorf("Expected 2 retry waits, got %d", len(delays))
	}
	if !errors.Is(err, ErrExhausted) {
		t.Errorf("expected ErrExhausted, got %v", err)
	}
	if !errors.Is(err, last) || errs.KindOf(err) != errs.KindTransientNetwork {
		t.Errorf("expected last error in chain, got %v", err)
	}
}

func TestTerminalErrorShortCircuits(t *testing.T) {
	attempts := 0
	block := errs.New(errs.KindTerminalBlock, "account restricted page")
	op := func(ctx context.Context) error {
		attempts++
		if attempts == 2 {
			return block
		}
		return errs.New(errs.KindTransientNetwork, "timeout")
	}

	cfg := &Config{
		MaxAttempts: 5,
		Backoff:     &ConstantBackoff{Delay: time.Millisecond},
	}

	err := Do(context.Background(), op, cfg)
	if err != block {
		t.Fatalf("expected the terminal error itself, got %v", err)
	}
	if errors.Is(err, ErrExhausted) {
		t.Error("terminal error must not be reported as exhaustion")
	}
	if attempts != 2 {
		t.Errorf("expected 2 attempts, got %d", attempts)
	}
}

func TestPermanentStopsRetryingAndKeepsKind(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), func(ctx context.Context) error {
		attempts++
		return Permanent(errs.New(errs.KindTransientNetwork, "proxy reset"))
	}, &Config{MaxAttempts: 4, Backoff: &ConstantBackoff{}})

	if attempts != 1 {
		t.Errorf("expected 1 attempt, got %d", attempts)
	}
	if errors.Is(err, ErrExhausted) {
		t.Error("a permanent error must not be reported as exhaustion")
	}
	if errs.KindOf(err) != errs.KindTransientNetwork {
		t.Errorf("expected the wrapped kind to survive, got %s", errs.KindOf(err))
	}
	if Permanent(nil) != nil {
		t.Error("Permanent(nil) should be nil")
	}
}

func TestRetryWithNonRetryableKinds(t *testing.T) {
	for _, kind := range []errs.Kind{errs.KindChallengeRequired, errs.KindAuthFailure, errs.KindSessionExpired, errs.KindExtractionGap} {
		t.Run(string(kind), func(t *testing.T) {
			attempts := 0
			want := errs.New(kind, "stop")
			err := Do(context.Background(), func(ctx context.Context) error {
				attempts++
				return want
			}, &Config{MaxAttempts: 4, Backoff: &ConstantBackoff{}})
			if err != want {
				t.Errorf("got %v, want %v", err, want)
			}
			if attempts != 1 {
				t.Errorf("expected 1 attempt, got %d", attempts)
			}
		})
	}
}

func TestRetryWithContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	attempts := 0
	op := func(ctx context.Context) error {
		attempts++
		if attempts == 2 {
			cancel()
		}
		return errs.New(errs.KindTransientNetwork, "temporary")
	}

	cfg := &Config{
		MaxAttempts: 10,
		Backoff:     &ConstantBackoff{Delay: 50 * time.Millisecond},
	}

	err := Do(ctx, op, cfg)
	if err == nil || !errors.Is(err, context.Canceled) {
		t.Errorf("Expected cancellation error, got %v", err)
	}
	if attempts != 2 {
		t.Errorf("Expected 2 attempts before cancellation, got %d", attempts)
	}
}

func TestDoWithResult(t *testing.T) {
	attempts := 0
	result, err := DoWithResult(context.Background(), func(ctx context.Context) (string, error) {
		attempts++
		if attempts < 2 {
			return "", errors.New("flaky")
		}
		return "ok", nil
	}, &Config{MaxAttempts: 3, Backoff: &ConstantBackoff{Delay: time.Millisecond}})

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "ok" {
		t.Errorf("result = %q, want ok", result)
	}
}

func TestControllerUsesPacingGate(t *testing.T) {
	gate := ratelimit.NewPacingGate(6000) // 10ms apart
	tl := logger.NewTestLogger()
	c := NewController(&Config{
		MaxAttempts: 3,
		Backoff:     &ConstantBackoff{},
		Gate:        gate,
		Logger:      tl,
	})

	attempts := 0
	n, err := Call(context.Background(), c, func(ctx context.Context) (int, error) {
		attempts++
		if attempts < 3 {
			return 0, errs.New(errs.KindTransientNetwork, "reset")
		}
		return 42, nil
	})
	if err != nil || n != 42 {
		t.Fatalf("Call() = %d, %v", n, err)
	}
	if actions, _ := gate.Stats(); actions != 3 {
		t.Errorf("expected each attempt to pass the gate, got %d", actions)
	}
	if len(tl.GetMessagesByLevel("WARN")) != 2 {
		t.Errorf("expected 2 retry warnings, got %d", len(tl.GetMessagesByLevel("WARN")))
	}
}

func TestControllerWithoutGate(t *testing.T) {
	gate := ratelimit.NewPacingGate(6000)
	c := NewController(&Config{MaxAttempts: 2, Backoff: &ConstantBackoff{}, Gate: gate}).WithoutGate()

	attempts := 0
	err := c.Do(context.Background(), func(ctx context.Context) error {
		attempts++
		if attempts == 1 {
			return errs.New(errs.KindTransientNetwork, "503")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Do() = %v", err)
	}
	if actions, _ := gate.Stats(); actions != 0 {
		t.Errorf("expected the gate to be skipped, got %d actions", actions)
	}
}

func TestBetween(t *testing.T) {
	if got := Between(time.Second, 3*time.Second, func() float64 { return 0.5 }); got != 2*time.Second {
		t.Errorf("Between() = %v, want 2s", got)
	}
	if got := Between(time.Second, time.Second, func() float64 { return 0.9 }); got != time.Second {
		t.Errorf("Between() with equal bounds = %v", got)
	}
}
