package ratelimit

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// ErrConfiguration is returned when a Config cannot be used to build a limiter.
var ErrConfiguration = errors.New("invalid rate limit configuration")

// FailurePolicy decides the verdict when the counter store cannot be reached.
type FailurePolicy string

const (
	// FailOpen admits every request while the store is unavailable.
	FailOpen FailurePolicy = "open"
	// FailClosed rejects every request while the store is unavailable.
	FailClosed FailurePolicy = "closed"
)

const (
	// DefaultKeyPrefix namespaces counter keys in the shared store.
	DefaultKeyPrefix = "rate_limit:"
	// DefaultMaxRequestsPerWindow is the per-client threshold.
	DefaultMaxRequestsPerWindow = 5
	// DefaultWindowSeconds is the TTL given to a fresh counter.
	DefaultWindowSeconds = 60
	// DefaultStoreEndpoint is the counter store address.
	DefaultStoreEndpoint = "127.0.0.1:6379"
	// DefaultStoreTimeout bounds every store operation.
	DefaultStoreTimeout = 100 * time.Millisecond
)

// Config is the immutable configuration of a fixed-window limiter.
type Config struct {
	// MaxRequestsPerWindow is the last admitted count in a window.
	MaxRequestsPerWindow int64 `validate:"min=1"`
	// WindowSeconds is the lifetime of a counter, starting at its first request.
	WindowSeconds int64 `validate:"min=1"`
	// StoreEndpoint is the host:port of the counter store.
	StoreEndpoint string `validate:"required,hostname_port"`
	// StoreTimeout bounds a single store operation, retries included.
	StoreTimeout time.Duration `validate:"gt=0"`
	// FailurePolicy has no default; it must be chosen explicitly.
	FailurePolicy FailurePolicy `validate:"required,oneof=open closed"`
	// KeyPrefix is prepended to every client identifier.
	KeyPrefix string `validate:"required,max=64"`
}

// DefaultConfig returns the reference thresholds with the given failure policy.
func DefaultConfig(policy FailurePolicy) Config {
	return Config{
		MaxRequestsPerWindow: DefaultMaxRequestsPerWindow,
		WindowSeconds:        DefaultWindowSeconds,
		StoreEndpoint:        DefaultStoreEndpoint,
		StoreTimeout:         DefaultStoreTimeout,
		FailurePolicy:        policy,
		KeyPrefix:            DefaultKeyPrefix,
	}
}

// Window returns the window length as a duration.
func (c Config) Window() time.Duration {
	return time.Duration(c.WindowSeconds) * time.Second
}

var validate = validator.New()

// Validate reports every invalid field, wrapped in ErrConfiguration.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %w", ErrConfiguration, err)
	}

	return nil
}
