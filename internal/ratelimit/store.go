package ratelimit

import (
	"context"
	"errors"
	"time"
)

// ErrStoreUnavailable wraps every failure to reach or use the counter store.
var ErrStoreUnavailable = errors.New("counter store unavailable")

// Counter is the state of a client's counter right after an increment.
type Counter struct {
	Count int64
	// TTL is the remaining lifetime of the counter.
	TTL time.Duration
}

// CounterStore persists per-key counters, possibly shared between processes.
type CounterStore interface {
	// IncrementWithExpiry atomically increments the counter at key. A missing
	// counter is created with value 1 and the given ttl in the same operation.
	IncrementWithExpiry(ctx context.Context, key string, ttl time.Duration) (Counter, error)

	// RemainingTTL returns the lifetime left on key, or zero when it is absent.
	RemainingTTL(ctx context.Context, key string) (time.Duration, error)
}
