package container

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/serroba/rate-gate/internal/ratelimit"
)

var validate = validator.New()

// Options are the server's command line flags. Each can also be set through
// a SERVICE_ prefixed environment variable, e.g. SERVICE_FAILURE_POLICY.
type Options struct {
	Port              int    `default:"8888"           help:"Port to listen on"                                         short:"p"`
	RedisAddr         string `default:"127.0.0.1:6379" help:"Counter store (Redis) address"                             short:"r"`
	MaxRequests       int    `default:"5"              help:"Requests admitted per client in one window"                short:"m"`
	WindowSeconds     int    `default:"60"             help:"Window length in seconds, counted from a client's first hit" short:"w"`
	FailurePolicy     string `help:"Verdict while the counter store is unavailable: open or closed (required)" short:"f"`
	StoreTimeoutMs    int    `default:"100"            help:"Timeout of one counter store operation in milliseconds, retries included" validate:"min=1"`
	RetryAttempts     int    `default:"2"              help:"Retries of a counter store call that could not connect" validate:"min=0,max=10"`
	RetryBackoffMs    int    `default:"10"             help:"Base backoff between connection retries in milliseconds" validate:"min=0"`
	BreakerFailures   int    `default:"5"              help:"Consecutive store failures that open the circuit breaker" validate:"min=1"`
	BreakerCooldownMs int    `default:"5000"           help:"How long the circuit breaker stays open in milliseconds" validate:"min=1"`
	KeyPrefix         string `default:"rate_limit:"    help:"Prefix of counter keys in the store"`
	TrustProxy        bool   `default:"false"          help:"Identify clients by X-Forwarded-For / X-Real-IP"`
	LogFormat         string `default:"console"        help:"Log format: console or json"`
	Audit             bool   `default:"false"          help:"Publish rejections and fallbacks to the audit stream"`
	DatabaseURL       string `help:"PostgreSQL URL for stored verdict events (consumer only)"`
}

// Validate checks the store tuning flags that do not end up in
// ratelimit.Config. Errors wrap ratelimit.ErrConfiguration.
func (o *Options) Validate() error {
	if err := validate.Struct(o); err != nil {
		return fmt.Errorf("%w: %w", ratelimit.ErrConfiguration, err)
	}

	return nil
}

// RateLimitConfig converts the flags into a limiter configuration.
// The result still has to be validated.
func (o *Options) RateLimitConfig() ratelimit.Config {
	return ratelimit.Config{
		MaxRequestsPerWindow: int64(o.MaxRequests),
		WindowSeconds:        int64(o.WindowSeconds),
		StoreEndpoint:        o.RedisAddr,
		StoreTimeout:         time.Duration(o.StoreTimeoutMs) * time.Millisecond,
		FailurePolicy:        ratelimit.FailurePolicy(o.FailurePolicy),
		KeyPrefix:            o.KeyPrefix,
	}
}
