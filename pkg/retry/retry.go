package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"postscraper/pkg/config"
	errs "postscraper/pkg/errors"
	"postscraper/pkg/logger"
	"postscraper/pkg/ratelimit"
)

// Operation is a fallible, network-facing step
type Operation func(ctx context.Context) error

// OperationWithResult is a step that returns a result and might need retrying
type OperationWithResult[T any] func(ctx context.Context) (T, error)

// Config holds retry configuration
type Config struct {
	// MaxAttempts is the maximum number of attempts, including the first
	MaxAttempts int
	Backoff     BackoffStrategy
	// RetryIf determines if an error should be retried
	RetryIf func(error) bool
	// OnRetry is called before each retry wait
	OnRetry func(attempt int, err error, delay time.Duration)
	// Gate, if set, is waited on before every attempt
	Gate   ratelimit.Limiter
	Logger logger.Logger
}

// DefaultConfig returns a retry configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		MaxAttempts: 3,
		Backoff:     DefaultExponentialBackoff(),
		RetryIf:     DefaultRetryIf,
		Logger:      logger.NewNopLogger(),
	}
}

// FromConfig builds a retry configuration from the run configuration.
func FromConfig(cfg config.RetryConfig, gate ratelimit.Limiter, log logger.Logger) *Config {
	c := DefaultConfig()
	c.MaxAttempts = cfg.MaxAttempts
	c.Backoff = NewExponentialBackoff(cfg.BaseDelay, cfg.MaxDelay)
	c.Gate = gate
	if log != nil {
		c.Logger = log
	}
	return c
}

// DefaultRetryIf retries transient failures and unclassified errors.
// Terminal kinds and context cancellation are never retried.
func DefaultRetryIf(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errs.IsTerminal(err) {
		return false
	}
	switch errs.KindOf(err) {
	case errs.KindTransientNetwork, errs.KindUnknown:
		return true
	default:
		return false
	}
}

// permanentError stops the retry loop without changing the error's kind.
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth another attempt. Do returns it on the
// attempt it occurs, whatever its kind.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// ErrExhausted marks an error returned after all attempts failed.
var ErrExhausted = errors.New("max retry attempts exceeded")

// Do executes op, retrying per cfg. A terminal error is returned as is on the
// attempt it occurs. After the last attempt the last error is returned wrapped
// with ErrExhausted.
func Do(ctx context.Context, op Operation, cfg *Config) error {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	log := cfg.Logger
	if log == nil {
		log = logger.NewNopLogger()
	}
	retryIf := cfg.RetryIf
	if retryIf == nil {
		retryIf = DefaultRetryIf
	}
	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if cfg.Gate != nil {
			if err := cfg.Gate.Wait(ctx); err != nil {
				return fmt.Errorf("pacing gate: %w", err)
			}
		}

		err := op(ctx)
		if err == nil {
			if attempt > 1 {
				log.DebugWithFields("operation succeeded after retry", map[string]interface{}{
					"attempt": attempt,
				})
			}
			return nil
		}
		lastErr = err

		var stop *permanentError
		if errors.As(err, &stop) || !retryIf(err) {
			log.DebugWithFields("error is not retryable", map[string]interface{}{
				"attempt": attempt,
				"kind":    string(errs.KindOf(err)),
			})
			return err
		}
		if attempt == maxAttempts {
			break
		}

		delay := time.Duration(0)
		if cfg.Backoff != nil {
			delay = cfg.Backoff.NextDelay(attempt)
		}
		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, err, delay)
		}
		log.WithError(err).WarnWithFields("retrying operation", map[string]interface{}{
			"attempt":      attempt,
			"delay_ms":     delay.Milliseconds(),
			"max_attempts": maxAttempts,
		})

		if err := Wait(ctx, delay); err != nil {
			return fmt.Errorf("retry cancelled: %w", err)
		}
	}

	log.WithError(lastErr).ErrorWithFields("max retry attempts exceeded", map[string]interface{}{
		"attempts": maxAttempts,
	})
	return fmt.Errorf("%w (%d): %w", ErrExhausted, maxAttempts, lastErr)
}

// DoWithResult executes an operation that returns a result with retry logic
func DoWithResult[T any](ctx context.Context, op OperationWithResult[T], cfg *Config) (T, error) {
	var result T
	err := Do(ctx, func(ctx context.Context) error {
		var opErr error
		result, opErr = op(ctx)
		return opErr
	}, cfg)
	return result, err
}

// Controller wraps every network-facing step of a run. It is safe for
// concurrent use; the gate it carries is shared by all workers.
type Controller struct {
	config *Config
}

// NewController creates a controller with the given configuration
func NewController(cfg *Config) *Controller {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Controller{config: cfg}
}

// Do runs op under the controller's retry policy and pacing gate.
func (c *Controller) Do(ctx context.Context, op Operation) error {
	return Do(ctx, op, c.config)
}

// Pace waits on the pacing gate once, without retry.
func (c *Controller) Pace(ctx context.Context) error {
	if c.config.Gate == nil {
		return nil
	}
	return c.config.Gate.Wait(ctx)
}

// WithMaxAttempts returns a controller with updated max attempts
func (c *Controller) WithMaxAttempts(maxAttempts int) *Controller {
	newConfig := *c.config
	newConfig.MaxAttempts = maxAttempts
	return &Controller{config: &newConfig}
}

// WithoutGate returns a controller with the same retry policy that does not
// wait on the pacing gate. It suits calls to hosts other than the site.
func (c *Controller) WithoutGate() *Controller {
	newConfig := *c.config
	newConfig.Gate = nil
	return &Controller{config: &newConfig}
}

// WithLogger returns a controller logging to l
func (c *Controller) WithLogger(l logger.Logger) *Controller {
	newConfig := *c.config
	newConfig.Logger = l
	return &Controller{config: &newConfig}
}

// Call is the generic form of Controller.Do.
func Call[T any](ctx context.Context, c *Controller, op OperationWithResult[T]) (T, error) {
	return DoWithResult(ctx, op, c.config)
}
