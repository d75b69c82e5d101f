package resilience

import (
	"context"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"
)

// Policy controls retries with exponential backoff.
type Policy struct {
	// Attempts is the total number of tries. 1 disables retries.
	Attempts int
	// Backoff is the delay before the first retry; it doubles each time.
	Backoff time.Duration
	// MaxBackoff caps a single delay.
	MaxBackoff time.Duration
	// Jitter spreads each delay by up to this fraction in either direction.
	Jitter float64
	// Retryable overrides IsTransient.
	Retryable func(error) bool
	// OnRetry runs before each sleep.
	OnRetry func(attempt int, err error)
}

// DefaultPolicy returns the policy used for completion calls.
func DefaultPolicy() Policy {
	return Policy{
		Attempts:   3,
		Backoff:    500 * time.Millisecond,
		MaxBackoff: 20 * time.Second,
		Jitter:     0.2,
	}
}

// PolicyFromConfig builds a Policy from config values, keeping defaults for
// anything unset.
func PolicyFromConfig(attempts, initialBackoffMs int) Policy {
	p := DefaultPolicy()
	if attempts > 0 {
		p.Attempts = attempts
	}
	if initialBackoffMs > 0 {
		p.Backoff = time.Duration(initialBackoffMs) * time.Millisecond
	}
	return p
}

// Retry calls fn until it succeeds, returns a non-retryable error, the
// attempts run out, or ctx is done.
func Retry[T any](ctx context.Context, p Policy, fn func(context.Context) (T, error)) (T, error) {
	if p.Attempts <= 0 {
		p.Attempts = 1
	}
	retryable := p.Retryable
	if retryable == nil {
		retryable = IsTransient
	}

	var zero T
	var err error
	for attempt := 1; ; attempt++ {
		var v T
		v, err = fn(ctx)
		if err == nil {
			return v, nil
		}
		if attempt >= p.Attempts || ctx.Err() != nil || !retryable(err) {
			return zero, err
		}
		if p.OnRetry != nil {
			p.OnRetry(attempt, err)
		}

		timer := time.NewTimer(p.delay(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, err
		case <-timer.C:
		}
	}
}

func (p Policy) delay(attempt int) time.Duration {
	d := p.Backoff << (attempt - 1)
	if p.MaxBackoff > 0 && (d > p.MaxBackoff || d <= 0) {
		d = p.MaxBackoff
	}
	if p.Jitter > 0 {
		d += time.Duration((rand.Float64()*2 - 1) * p.Jitter * float64(d))
	}
	if d < 0 {
		return 0
	}
	return d
}

// LogRetry returns an OnRetry callback that logs through zap.
func LogRetry(operation string) func(int, error) {
	return func(attempt int, err error) {
		zap.L().Warn("resilience: retrying",
			zap.String("operation", operation),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
	}
}
