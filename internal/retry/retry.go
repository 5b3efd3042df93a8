package retry

import (
	"context"
	stderrors "errors"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"fxq/internal/errors"
	"fxq/internal/logger"
)

// Config holds retry configuration
type Config struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Multiplier  float64
	// Jitter adds up to this fraction of the delay at random. Zero disables it.
	Jitter float64
}

// DefaultConfig returns retry defaults for upstream rate requests
func DefaultConfig() *Config {
	return &Config{
		MaxAttempts: 3,
		BaseDelay:   250 * time.Millisecond,
		MaxDelay:    5 * time.Second,
		Multiplier:  2.0,
		Jitter:      0.2,
	}
}

// NoRetry runs the operation exactly once
func NoRetry() *Config {
	return &Config{MaxAttempts: 1}
}

// sleep waits for d or until ctx is done. Replaced in tests.
var sleep = func(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// WithRetry executes fn with exponential backoff. Errors that are a
// *errors.QuoteError marked non-retryable stop the loop immediately; any
// other error is retried until MaxAttempts is reached.
func WithRetry(ctx context.Context, config *Config, operation string, fn func(ctx context.Context) error) error {
	if config == nil {
		config = DefaultConfig()
	}
	attempts := config.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		var qe *errors.QuoteError
		if stderrors.As(err, &qe) && !qe.IsRetryable() {
			return err
		}

		if attempt >= attempts {
			break
		}

		delay := config.delay(attempt)
		if qe != nil && qe.GetRetryAfter() > delay {
			delay = qe.GetRetryAfter()
			if config.MaxDelay > 0 && delay > config.MaxDelay {
				delay = config.MaxDelay
			}
		}
		logger.Debugf("%s failed (attempt %d/%d), retrying in %s: %v", operation, attempt, attempts, delay, err)

		if err := sleep(ctx, delay); err != nil {
			return err
		}
	}

	if attempts == 1 {
		return lastErr
	}
	return fmt.Errorf("%s failed after %d attempts: %w", operation, attempts, lastErr)
}

// Budget returns the longest time WithRetry can take when each attempt is
// bounded by perAttempt
func (c *Config) Budget(perAttempt time.Duration) time.Duration {
	attempts := c.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	total := time.Duration(attempts) * perAttempt
	wait := c.MaxDelay
	if wait <= 0 {
		wait = c.BaseDelay
	}
	wait += time.Duration(c.Jitter * float64(wait))
	return total + time.Duration(attempts-1)*wait
}

// delay returns the backoff before attempt+1
func (c *Config) delay(attempt int) time.Duration {
	mult := c.Multiplier
	if mult <= 0 {
		mult = 1
	}
	d := time.Duration(float64(c.BaseDelay) * math.Pow(mult, float64(attempt-1)))
	if c.MaxDelay > 0 && d > c.MaxDelay {
		d = c.MaxDelay
	}
	if c.Jitter > 0 && d > 0 {
		d += time.Duration(rand.Float64() * c.Jitter * float64(d))
	}
	return d
}
