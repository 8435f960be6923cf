package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/serroba/rate-gate/internal/ratelimit"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// BreakerSettings tunes the circuit breaker in front of the counter store.
type BreakerSettings struct {
	// ConsecutiveFailures trips the breaker open.
	ConsecutiveFailures uint32
	// OpenTimeout is how long the breaker stays open before probing again.
	OpenTimeout time.Duration
	// HalfOpenRequests is the number of probes allowed while half-open.
	HalfOpenRequests uint32
}

// DefaultBreakerSettings returns settings suited to a local Redis.
func DefaultBreakerSettings() BreakerSettings {
	return BreakerSettings{
		ConsecutiveFailures: 5,
		OpenTimeout:         5 * time.Second,
		HalfOpenRequests:    1,
	}
}

// BreakerCounterStore stops calling a failing counter store for a while, so
// that requests get their fallback verdict without waiting on the timeout.
type BreakerCounterStore struct {
	next ratelimit.CounterStore
	cb   *gobreaker.CircuitBreaker
}

// NewBreakerCounterStore wraps next with a circuit breaker.
func NewBreakerCounterStore(next ratelimit.CounterStore, settings BreakerSettings, logger *zap.Logger) *BreakerCounterStore {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "counter-store",
		MaxRequests: settings.HalfOpenRequests,
		Timeout:     settings.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= settings.ConsecutiveFailures
		},
		// A caller giving up says nothing about the store's health.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})

	return &BreakerCounterStore{next: next, cb: cb}
}

func (b *BreakerCounterStore) IncrementWithExpiry(
	ctx context.Context, key string, ttl time.Duration,
) (ratelimit.Counter, error) {
	res, err := b.cb.Execute(func() (interface{}, error) {
		return b.next.IncrementWithExpiry(ctx, key, ttl)
	})
	if err != nil {
		return ratelimit.Counter{}, unavailable(err)
	}

	return res.(ratelimit.Counter), nil
}

func (b *BreakerCounterStore) RemainingTTL(ctx context.Context, key string) (time.Duration, error) {
	res, err := b.cb.Execute(func() (interface{}, error) {
		return b.next.RemainingTTL(ctx, key)
	})
	if err != nil {
		return 0, unavailable(err)
	}

	return res.(time.Duration), nil
}

// State reports the breaker state: "closed", "half-open" or "open".
func (b *BreakerCounterStore) State() string {
	return b.cb.State().String()
}

func unavailable(err error) error {
	if errors.Is(err, ratelimit.ErrStoreUnavailable) {
		return err
	}

	return fmt.Errorf("%w: %w", ratelimit.ErrStoreUnavailable, err)
}

// Compile-time check.
var _ ratelimit.CounterStore = (*BreakerCounterStore)(nil)
