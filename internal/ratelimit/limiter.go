package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// failClosedRetryAfter is the retry hint sent while the store is down and the
// policy rejects.
const failClosedRetryAfter = time.Second

// Evaluator decides whether a client's request is admitted.
type Evaluator interface {
	Evaluate(ctx context.Context, clientID string) (Verdict, error)
}

// Observer receives every verdict, e.g. to export metrics.
type Observer interface {
	ObserveVerdict(v Verdict, elapsed time.Duration)
}

// NoopObserver discards verdicts.
type NoopObserver struct{}

func (NoopObserver) ObserveVerdict(Verdict, time.Duration) {}

// Option customises a FixedWindowLimiter.
type Option func(*FixedWindowLimiter)

// WithObserver reports every verdict to o.
func WithObserver(o Observer) Option {
	return func(l *FixedWindowLimiter) {
		l.observer = o
	}
}

// FixedWindowLimiter admits up to MaxRequestsPerWindow requests per client in
// windows that start at the client's first request. It holds no counter state;
// all counters live in the store, so one limiter is shared by all goroutines.
type FixedWindowLimiter struct {
	store    CounterStore
	cfg      Config
	logger   *zap.Logger
	observer Observer
}

// NewFixedWindowLimiter validates cfg and builds a limiter on top of store.
func NewFixedWindowLimiter(store CounterStore, cfg Config, logger *zap.Logger, opts ...Option) (*FixedWindowLimiter, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: counter store is required", ErrConfiguration)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	l := &FixedWindowLimiter{
		store:    store,
		cfg:      cfg,
		logger:   logger,
		observer: NoopObserver{},
	}

	for _, opt := range opts {
		opt(l)
	}

	return l, nil
}

// Config returns the limiter configuration.
func (l *FixedWindowLimiter) Config() Config {
	return l.cfg
}

// Evaluate counts the request against the client's window and returns the
// verdict. Store failures never surface as errors; they are resolved by the
// configured FailurePolicy. The only error is ErrInvalidClientID.
func (l *FixedWindowLimiter) Evaluate(ctx context.Context, clientID string) (Verdict, error) {
	start := time.Now()

	key, err := BuildKey(l.cfg.KeyPrefix, clientID)
	if err != nil {
		return Verdict{}, err
	}

	v := l.evaluate(ctx, string(key))
	l.observer.ObserveVerdict(v, time.Since(start))

	return v, nil
}

func (l *FixedWindowLimiter) evaluate(ctx context.Context, key string) Verdict {
	counter, err := l.store.IncrementWithExpiry(ctx, key, l.cfg.Window())
	if err != nil {
		return l.fallback(key, err)
	}

	if counter.Count > l.cfg.MaxRequestsPerWindow && counter.TTL <= 0 {
		counter, err = l.restartExpiredWindow(ctx, key, counter)
		if err != nil {
			return l.fallback(key, err)
		}
	}

	if counter.Count <= l.cfg.MaxRequestsPerWindow {
		return Verdict{
			Decision: Admit,
			Reason:   ReasonWithinLimit,
			Count:    counter.Count,
			Limit:    l.cfg.MaxRequestsPerWindow,
		}
	}

	retryAfter := time.Duration(ceilSeconds(counter.TTL)) * time.Second
	if retryAfter < time.Second {
		retryAfter = time.Second
	}

	return Verdict{
		Decision:   Reject,
		Reason:     ReasonLimitExceeded,
		Count:      counter.Count,
		Limit:      l.cfg.MaxRequestsPerWindow,
		RetryAfter: retryAfter,
	}
}

// restartExpiredWindow handles a rejecting count whose TTL was already gone.
// If the record is absent the old window has ended, so the request opens a
// new one instead of being rejected against a dead counter.
func (l *FixedWindowLimiter) restartExpiredWindow(ctx context.Context, key string, counter Counter) (Counter, error) {
	ttl, err := l.store.RemainingTTL(ctx, key)
	if err != nil {
		return Counter{}, err
	}

	if ttl > 0 {
		counter.TTL = ttl

		return counter, nil
	}

	l.logger.Debug("counter expired during evaluation, restarting window", zap.String("key", key))

	return l.store.IncrementWithExpiry(ctx, key, l.cfg.Window())
}

func (l *FixedWindowLimiter) fallback(key string, err error) Verdict {
	if !errors.Is(err, ErrStoreUnavailable) {
		err = fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}

	v := Verdict{
		Decision: Admit,
		Reason:   ReasonStoreFailOpen,
		Limit:    l.cfg.MaxRequestsPerWindow,
	}

	if l.cfg.FailurePolicy == FailClosed {
		v.Decision = Reject
		v.Reason = ReasonStoreFailClosed
		v.RetryAfter = failClosedRetryAfter
	}

	l.logger.Warn("counter store unavailable, applying failure policy",
		zap.String("key", key),
		zap.String("policy", string(l.cfg.FailurePolicy)),
		zap.String("decision", v.Decision.String()),
		zap.Error(err),
	)

	return v
}
