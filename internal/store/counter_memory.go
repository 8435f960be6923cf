package store

import (
	"context"
	"sync"
	"time"

	"github.com/serroba/rate-gate/internal/ratelimit"
)

type memoryCounter struct {
	count     int64
	expiresAt time.Time
}

// CounterMemoryStore is an in-process implementation of ratelimit.CounterStore.
// Its counters are not shared between processes. Expired counters are treated
// as absent on access and dropped by Sweep.
type CounterMemoryStore struct {
	mu       sync.Mutex
	counters map[string]*memoryCounter
	now      func() time.Time
}

// NewCounterMemoryStore creates a new in-memory counter store.
func NewCounterMemoryStore() *CounterMemoryStore {
	return NewCounterMemoryStoreWithClock(time.Now)
}

// NewCounterMemoryStoreWithClock creates an in-memory counter store that reads
// time from now.
func NewCounterMemoryStoreWithClock(now func() time.Time) *CounterMemoryStore {
	return &CounterMemoryStore{
		counters: make(map[string]*memoryCounter),
		now:      now,
	}
}

func (s *CounterMemoryStore) IncrementWithExpiry(
	_ context.Context, key string, ttl time.Duration,
) (ratelimit.Counter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()

	c, ok := s.counters[key]
	if !ok || !now.Before(c.expiresAt) {
		c = &memoryCounter{expiresAt: now.Add(ttl)}
		s.counters[key] = c
	}

	c.count++

	return ratelimit.Counter{Count: c.count, TTL: c.expiresAt.Sub(now)}, nil
}

func (s *CounterMemoryStore) RemainingTTL(_ context.Context, key string) (time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.counters[key]
	if !ok {
		return 0, nil
	}

	ttl := c.expiresAt.Sub(s.now())
	if ttl <= 0 {
		delete(s.counters, key)

		return 0, nil
	}

	return ttl, nil
}

// Sweep removes expired counters and returns how many were dropped.
func (s *CounterMemoryStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0

	for key, c := range s.counters {
		if !now.Before(c.expiresAt) {
			delete(s.counters, key)

			removed++
		}
	}

	return removed
}

// Compile-time check.
var _ ratelimit.CounterStore = (*CounterMemoryStore)(nil)
