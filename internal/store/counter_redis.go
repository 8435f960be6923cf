package store

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/Rican7/retry"
	"github.com/Rican7/retry/backoff"
	"github.com/Rican7/retry/strategy"
	"github.com/redis/go-redis/v9"
	"github.com/serroba/rate-gate/internal/ratelimit"
	"go.uber.org/zap"
)

// incrementScript increments the counter and sets its expiry in one round trip.
// The expiry is set on the first increment, and repaired whenever the key has
// none, so a counter can never outlive its window.
var incrementScript = redis.NewScript(`
local count = redis.call('INCR', KEYS[1])
local ttl = redis.call('PTTL', KEYS[1])
if count == 1 or ttl < 0 then
	redis.call('PEXPIRE', KEYS[1], ARGV[1])
	ttl = tonumber(ARGV[1])
end
return {count, ttl}
`)

const (
	defaultRetryAttempts = 2
	defaultRetryBase     = 10 * time.Millisecond
)

// RedisCounterStore is a Redis implementation of ratelimit.CounterStore.
// Counters are shared by every process pointed at the same Redis.
type RedisCounterStore struct {
	client     *redis.Client
	timeout    time.Duration
	retries    uint
	retryBase  time.Duration
	ownsClient bool
	logger     *zap.Logger
}

// RedisCounterOption customises a RedisCounterStore.
type RedisCounterOption func(*RedisCounterStore)

// WithTimeout bounds every store operation, retries included.
func WithTimeout(d time.Duration) RedisCounterOption {
	return func(s *RedisCounterStore) {
		s.timeout = d
	}
}

// WithRetry sets how many times a call that failed to connect is retried.
// Only connection failures are retried: a command that reached Redis may have
// incremented the counter already.
func WithRetry(attempts uint, base time.Duration) RedisCounterOption {
	return func(s *RedisCounterStore) {
		s.retries = attempts
		s.retryBase = base
	}
}

// WithLogger sets the logger used for retry diagnostics.
func WithLogger(logger *zap.Logger) RedisCounterOption {
	return func(s *RedisCounterStore) {
		s.logger = logger
	}
}

// NewRedisCounterStore creates a counter store on top of an existing client.
// The caller keeps ownership of the client.
func NewRedisCounterStore(client *redis.Client, opts ...RedisCounterOption) *RedisCounterStore {
	s := &RedisCounterStore{
		client:    client,
		timeout:   ratelimit.DefaultStoreTimeout,
		retries:   defaultRetryAttempts,
		retryBase: defaultRetryBase,
		logger:    zap.NewNop(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// DialRedisCounterStore connects to cfg.StoreEndpoint and returns a store that
// owns its client. An unreachable Redis is logged, not fatal: the limiter
// applies its failure policy until the store comes back.
func DialRedisCounterStore(
	ctx context.Context, cfg ratelimit.Config, logger *zap.Logger, opts ...RedisCounterOption,
) *RedisCounterStore {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.StoreEndpoint,
		DialTimeout:  cfg.StoreTimeout,
		ReadTimeout:  cfg.StoreTimeout,
		WriteTimeout: cfg.StoreTimeout,
		// Retries are handled by the store so that only dial failures repeat.
		MaxRetries:    -1,
		DialerRetries: 1,
	})

	opts = append([]RedisCounterOption{WithTimeout(cfg.StoreTimeout), WithLogger(logger)}, opts...)
	s := NewRedisCounterStore(client, opts...)
	s.ownsClient = true

	if err := s.Ping(ctx); err != nil {
		logger.Warn("counter store not reachable at startup",
			zap.String("endpoint", cfg.StoreEndpoint),
			zap.Error(err),
		)
	} else {
		logger.Info("connected to counter store", zap.String("endpoint", cfg.StoreEndpoint))
	}

	return s
}

func (s *RedisCounterStore) IncrementWithExpiry(
	ctx context.Context, key string, ttl time.Duration,
) (ratelimit.Counter, error) {
	ttlMs := ttl.Milliseconds()
	if ttlMs < 1 {
		ttlMs = 1
	}

	var res []int64

	err := s.do(ctx, func(ctx context.Context) error {
		var err error

		res, err = incrementScript.Run(ctx, s.client, []string{key}, ttlMs).Int64Slice()

		return err
	})
	if err != nil {
		return ratelimit.Counter{}, err
	}

	if len(res) != 2 {
		return ratelimit.Counter{}, fmt.Errorf("%w: unexpected script reply %v", ratelimit.ErrStoreUnavailable, res)
	}

	return ratelimit.Counter{
		Count: res[0],
		TTL:   time.Duration(res[1]) * time.Millisecond,
	}, nil
}

func (s *RedisCounterStore) RemainingTTL(ctx context.Context, key string) (time.Duration, error) {
	var ttl time.Duration

	err := s.do(ctx, func(ctx context.Context) error {
		var err error

		ttl, err = s.client.PTTL(ctx, key).Result()

		return err
	})
	if err != nil {
		return 0, err
	}

	// -1 (no expiry) and -2 (absent) are both reported as no remaining window.
	if ttl <= 0 {
		return 0, nil
	}

	return ttl, nil
}

// Ping checks that Redis answers within the store timeout.
func (s *RedisCounterStore) Ping(ctx context.Context) error {
	return s.do(ctx, func(ctx context.Context) error {
		return s.client.Ping(ctx).Err()
	})
}

// Shutdown closes the client if the store created it.
func (s *RedisCounterStore) Shutdown() error {
	if !s.ownsClient {
		return nil
	}

	return s.client.Close()
}

// do runs op, retrying dial failures with backoff. One store timeout covers
// every attempt and backoff. Every failure is wrapped in
// ratelimit.ErrStoreUnavailable.
func (s *RedisCounterStore) do(ctx context.Context, op func(context.Context) error) error {
	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var lastErr error

	shouldRetry := func(attempt uint) bool {
		if attempt == 0 {
			return true
		}

		if callCtx.Err() != nil || !isDialError(lastErr) {
			return false
		}

		s.logger.Debug("retrying counter store call",
			zap.Uint("attempt", attempt),
			zap.Error(lastErr),
		)

		return true
	}

	err := retry.Retry(
		func(uint) error {
			lastErr = op(callCtx)

			return lastErr
		},
		strategy.Limit(s.retries+1),
		shouldRetry,
		strategy.Backoff(backoff.BinaryExponential(s.retryBase)),
	)
	if err != nil {
		return fmt.Errorf("%w: %w", ratelimit.ErrStoreUnavailable, err)
	}

	return nil
}

func isDialError(err error) bool {
	var opErr *net.OpError

	return errors.As(err, &opErr) && opErr.Op == "dial"
}

// Compile-time check.
var _ ratelimit.CounterStore = (*RedisCounterStore)(nil)
