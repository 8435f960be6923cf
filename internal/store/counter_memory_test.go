package store_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/serroba/rate-gate/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.now = c.now.Add(d)
}

func TestCounterMemoryStore(t *testing.T) {
	ctx := context.Background()

	t.Run("creates counter with ttl and increments it", func(t *testing.T) {
		clock := newFakeClock()
		s := store.NewCounterMemoryStoreWithClock(clock.Now)

		c1, err := s.IncrementWithExpiry(ctx, "key1", time.Minute)

		require.NoError(t, err)
		assert.Equal(t, int64(1), c1.Count)
		assert.Equal(t, time.Minute, c1.TTL)

		clock.Advance(10 * time.Second)

		c2, err := s.IncrementWithExpiry(ctx, "key1", time.Minute)

		require.NoError(t, err)
		assert.Equal(t, int64(2), c2.Count)
		assert.Equal(t, 50*time.Second, c2.TTL, "ttl is kept from the first request")
	})

	t.Run("tracks keys independently", func(t *testing.T) {
		s := store.NewCounterMemoryStore()

		_, _ = s.IncrementWithExpiry(ctx, "key1", time.Minute)
		_, _ = s.IncrementWithExpiry(ctx, "key1", time.Minute)

		c, err := s.IncrementWithExpiry(ctx, "key2", time.Minute)

		require.NoError(t, err)
		assert.Equal(t, int64(1), c.Count, "key2 should have its own counter")
	})

	t.Run("restarts the window after expiry", func(t *testing.T) {
		clock := newFakeClock()
		s := store.NewCounterMemoryStoreWithClock(clock.Now)

		_, _ = s.IncrementWithExpiry(ctx, "key1", time.Minute)
		_, _ = s.IncrementWithExpiry(ctx, "key1", time.Minute)

		clock.Advance(time.Minute)

		c, err := s.IncrementWithExpiry(ctx, "key1", time.Minute)

		require.NoError(t, err)
		assert.Equal(t, int64(1), c.Count, "expired counter should be treated as absent")
		assert.Equal(t, time.Minute, c.TTL)
	})

	t.Run("remaining ttl reports zero for absent and expired keys", func(t *testing.T) {
		clock := newFakeClock()
		s := store.NewCounterMemoryStoreWithClock(clock.Now)

		ttl, err := s.RemainingTTL(ctx, "missing")

		require.NoError(t, err)
		assert.Zero(t, ttl)

		_, _ = s.IncrementWithExpiry(ctx, "key1", time.Minute)
		clock.Advance(15 * time.Second)

		ttl, err = s.RemainingTTL(ctx, "key1")

		require.NoError(t, err)
		assert.Equal(t, 45*time.Second, ttl)

		clock.Advance(time.Hour)

		ttl, err = s.RemainingTTL(ctx, "key1")

		require.NoError(t, err)
		assert.Zero(t, ttl)
	})

	t.Run("sweep drops only expired counters", func(t *testing.T) {
		clock := newFakeClock()
		s := store.NewCounterMemoryStoreWithClock(clock.Now)

		_, _ = s.IncrementWithExpiry(ctx, "short", time.Second)
		_, _ = s.IncrementWithExpiry(ctx, "long", time.Hour)

		clock.Advance(2 * time.Second)

		assert.Equal(t, 1, s.Sweep())

		ttl, _ := s.RemainingTTL(ctx, "long")
		assert.Positive(t, ttl)
	})

	t.Run("concurrent first requests are all counted", func(t *testing.T) {
		s := store.NewCounterMemoryStore()

		const k = 50

		var wg sync.WaitGroup

		wg.Add(k)

		for range k {
			go func() {
				defer wg.Done()

				_, _ = s.IncrementWithExpiry(ctx, "shared", time.Minute)
			}()
		}

		wg.Wait()

		c, err := s.IncrementWithExpiry(ctx, "shared", time.Minute)

		require.NoError(t, err)
		assert.Equal(t, int64(k+1), c.Count)
	})
}
