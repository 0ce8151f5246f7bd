// Package resilience provides fault-tolerance patterns used around the
// payment providers: bounded retry with backoff, circuit breaker and bulkhead.
package resilience

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/sony/gobreaker"
)

// Config holds resilience parameters.
type Config struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	// OnRetry is called before every attempt after the first.
	OnRetry func(attempt int, lastErr error)
}

// RetryWithBackoff runs fn up to MaxAttempts times with exponential backoff + jitter.
// A MaxAttempts below one is treated as one. Context cancellation stops the loop.
func RetryWithBackoff(ctx context.Context, cfg Config, fn func() error) error {
	attempts := cfg.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		if attempt > 1 && cfg.OnRetry != nil {
			cfg.OnRetry(attempt, lastErr)
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}

		if attempt < attempts && cfg.InitialBackoff > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff(cfg.InitialBackoff, attempt)):
			}
		}
	}
	return lastErr
}

func backoff(initial time.Duration, attempt int) time.Duration {
	base := time.Duration(math.Pow(2, float64(attempt-1))) * initial
	if half := int64(base / 2); half > 0 {
		return base + time.Duration(rand.Int63n(half))
	}
	return base
}

// NewCircuitBreaker creates a circuit breaker. It trips once at least 10
// requests were seen and 80% of them failed.
func NewCircuitBreaker(name string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,                // half-open: allow 3 requests
		Interval:    60 * time.Second, // closed: reset counters every minute
		Timeout:     15 * time.Second, // open -> half-open
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 10 && failureRatio >= 0.8
		},
	})
}

// Breakers hands out one circuit breaker per key. Provider clients key them by
// establishment, so bad credentials on one establishment never open the
// circuit for the others.
type Breakers struct {
	name  string
	mu    sync.Mutex
	byKey map[string]*gobreaker.CircuitBreaker
}

// NewBreakers creates an empty breaker set for one payment provider.
func NewBreakers(name string) *Breakers {
	return &Breakers{name: name, byKey: make(map[string]*gobreaker.CircuitBreaker)}
}

// For returns the breaker of key, creating it on first use.
func (b *Breakers) For(key string) *gobreaker.CircuitBreaker {
	b.mu.Lock()
	defer b.mu.Unlock()
	cb, ok := b.byKey[key]
	if !ok {
		cb = NewCircuitBreaker(b.name + ":" + key)
		b.byKey[key] = cb
	}
	return cb
}

// Bulkhead limits concurrent access to a resource.
type Bulkhead struct {
	sem chan struct{}
}

// NewBulkhead creates a bulkhead with the given max concurrency.
func NewBulkhead(maxConcurrency int) *Bulkhead {
	if maxConcurrency < 1 {
		maxConcurrency = 1
	}
	return &Bulkhead{sem: make(chan struct{}, maxConcurrency)}
}

// Acquire blocks until a slot is available or context is cancelled.
func (b *Bulkhead) Acquire(ctx context.Context) error {
	select {
	case b.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release frees a slot.
func (b *Bulkhead) Release() {
	<-b.sem
}

// InUse reports how many slots are currently taken.
func (b *Bulkhead) InUse() int {
	return len(b.sem)
}
