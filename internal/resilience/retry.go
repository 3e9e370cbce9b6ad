package resilience

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// Backoff grows the wait between attempts geometrically from Initial,
// capped at Max when Max is positive.
type Backoff struct {
	Initial time.Duration
	Max     time.Duration
	Factor  float64
	Jitter  bool // adds up to 10% on top
}

// Delay returns the wait after the given zero-based attempt
func (b Backoff) Delay(attempt int) time.Duration {
	factor := b.Factor
	if factor < 1 {
		factor = 1
	}
	d := time.Duration(float64(b.Initial) * math.Pow(factor, float64(attempt)))
	if b.Max > 0 && d > b.Max {
		d = b.Max
	}
	if b.Jitter && d >= 10 {
		d += time.Duration(rand.Int63n(int64(d / 10)))
	}
	return d
}

// RetryConfig bounds a retried operation
type RetryConfig struct {
	MaxAttempts int
	Backoff     Backoff

	// Retryable filters errors worth another attempt; nil retries all.
	Retryable func(error) bool
	// OnRetry is called before each wait.
	OnRetry func(attempt int, err error, wait time.Duration)
}

// RetryWithConfig calls fn until it succeeds, fails with an error Retryable
// rejects, runs out of attempts or ctx ends. It returns fn's last error, or
// ctx's error if fn never ran.
func RetryWithConfig(ctx context.Context, config RetryConfig, fn func(ctx context.Context) error) error {
	attempts := max(config.MaxAttempts, 1)

	var lastErr error
	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr == nil {
				lastErr = err
			}
			return lastErr
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if attempt+1 >= attempts || (config.Retryable != nil && !config.Retryable(lastErr)) {
			return lastErr
		}

		wait := config.Backoff.Delay(attempt)
		if config.OnRetry != nil {
			config.OnRetry(attempt+1, lastErr, wait)
		}
		if !sleep(ctx, wait) {
			return lastErr
		}
	}
}

// sleep waits for d and reports false if ctx ended first
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
