// Package resilience provides retry and circuit breaking for calls to the
// completion service.
package resilience

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// ErrOpen is returned while the breaker is rejecting calls.
var ErrOpen = eris.New("resilience: circuit open")

// Breaker opens after Threshold consecutive failures. Once Cooldown has
// elapsed it lets a single trial call through; concurrent callers are
// rejected until that call is recorded.
type Breaker struct {
	name      string
	threshold int
	cooldown  time.Duration

	mu       sync.Mutex
	failures int
	openedAt time.Time
	open     bool
	trial    bool
	now      func() time.Time
}

// NewBreaker creates a Breaker. Non-positive values fall back to 5 failures
// and a 30s cooldown.
func NewBreaker(name string, threshold int, cooldown time.Duration) *Breaker {
	if threshold <= 0 {
		threshold = 5
	}
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}
	return &Breaker{name: name, threshold: threshold, cooldown: cooldown, now: time.Now}
}

// Open reports whether calls are currently rejected.
func (b *Breaker) Open() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.open && b.now().Sub(b.openedAt) < b.cooldown
}

func (b *Breaker) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.open {
		return true
	}
	if b.trial || b.now().Sub(b.openedAt) < b.cooldown {
		return false
	}
	b.trial = true
	return true
}

func (b *Breaker) record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.trial = false
	if err == nil {
		if b.open {
			zap.L().Info("resilience: circuit closed", zap.String("breaker", b.name))
		}
		b.failures = 0
		b.open = false
		return
	}
	b.failures++
	if b.open || b.failures >= b.threshold {
		if !b.open {
			zap.L().Warn("resilience: circuit opened",
				zap.String("breaker", b.name),
				zap.Int("failures", b.failures),
			)
		}
		b.open = true
		b.openedAt = b.now()
	}
}

// Call runs fn through the breaker. Only transient errors count as failures.
func Call[T any](ctx context.Context, b *Breaker, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	if !b.allow() {
		return zero, ErrOpen
	}
	v, err := fn(ctx)
	if err != nil && !IsTransient(err) {
		b.record(nil)
		return zero, err
	}
	b.record(err)
	if err != nil {
		return zero, err
	}
	return v, nil
}
