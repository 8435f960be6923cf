package middleware

import (
	"context"
	"net/http"
	"strconv"

	"github.com/danielgtaylor/huma/v2"
	"github.com/serroba/rate-gate/internal/ratelimit"
	"go.uber.org/zap"
)

// Response headers describing the verdict.
const (
	HeaderLimit      = "X-RateLimit-Limit"
	HeaderRemaining  = "X-RateLimit-Remaining"
	HeaderRetryAfter = "Retry-After"
	HeaderFallback   = "X-RateLimit-Fallback"
)

// VerdictSink receives the verdict of every rate limited request.
type VerdictSink interface {
	RecordVerdict(ctx context.Context, clientID, method, path string, v ratelimit.Verdict)
}

type rateLimiterOptions struct {
	sink VerdictSink
}

// RateLimiterOption customises the RateLimiter middleware.
type RateLimiterOption func(*rateLimiterOptions)

// WithVerdictSink forwards every verdict to sink.
func WithVerdictSink(sink VerdictSink) RateLimiterOption {
	return func(o *rateLimiterOptions) {
		o.sink = sink
	}
}

// RateLimiter returns a Huma middleware that admits or rejects requests by
// client IP. Endpoints can opt out through ratelimit.MetadataKey.
//
// A request over the limit gets 429. A request rejected because the counter
// store is down gets 503, so clients and operators can tell the two apart.
func RateLimiter(
	api huma.API,
	limiter ratelimit.Evaluator,
	logger *zap.Logger,
	opts ...RateLimiterOption,
) func(ctx huma.Context, next func(huma.Context)) {
	var o rateLimiterOptions
	for _, opt := range opts {
		opt(&o)
	}

	return func(ctx huma.Context, next func(huma.Context)) {
		path := getOperationPath(ctx)

		if cfg := ratelimit.GetEndpointConfig(ctx); cfg != nil && cfg.Disabled {
			logger.Debug("rate limiting disabled for endpoint",
				zap.String("path", path), zap.String("method", ctx.Method()))
			next(ctx)

			return
		}

		clientID := clientIP(ctx)

		v, err := limiter.Evaluate(ctx.Context(), clientID)
		if err != nil {
			logger.Debug("rejecting request without a usable client id",
				zap.String("path", path), zap.Error(err))
			_ = huma.WriteErr(api, ctx, http.StatusBadRequest, "invalid client identifier", err)

			return
		}

		if o.sink != nil {
			o.sink.RecordVerdict(ctx.Context(), clientID, ctx.Method(), path, v)
		}

		writeVerdictHeaders(ctx, v)

		switch v.Reason {
		case ratelimit.ReasonWithinLimit, ratelimit.ReasonStoreFailOpen:
			next(ctx)
		case ratelimit.ReasonLimitExceeded:
			logger.Warn("rate limit exceeded",
				zap.String("client_ip", clientID),
				zap.String("path", path),
				zap.String("method", ctx.Method()),
				zap.Int64("count", v.Count),
				zap.Int64("limit", v.Limit),
				zap.Int64("retry_after_seconds", v.RetryAfterSeconds()),
			)
			_ = huma.WriteErr(api, ctx, http.StatusTooManyRequests, "rate limit exceeded")
		case ratelimit.ReasonStoreFailClosed:
			_ = huma.WriteErr(api, ctx, http.StatusServiceUnavailable, "rate limiting temporarily unavailable")
		}
	}
}

func writeVerdictHeaders(ctx huma.Context, v ratelimit.Verdict) {
	ctx.SetHeader(HeaderLimit, strconv.FormatInt(v.Limit, 10))

	switch v.Reason {
	case ratelimit.ReasonStoreFailOpen:
		ctx.SetHeader(HeaderFallback, string(ratelimit.FailOpen))
	case ratelimit.ReasonStoreFailClosed:
		ctx.SetHeader(HeaderFallback, string(ratelimit.FailClosed))
	default:
		ctx.SetHeader(HeaderRemaining, strconv.FormatInt(v.Remaining(), 10))
	}

	if !v.Admitted() {
		ctx.SetHeader(HeaderRetryAfter, strconv.FormatInt(v.RetryAfterSeconds(), 10))
	}
}

// clientIP prefers the address resolved by RequestMeta and falls back to the
// connection's remote address.
func clientIP(ctx huma.Context) string {
	if meta, ok := ClientMetaFromContext(ctx.Context()); ok && meta.ClientIP != "" {
		return meta.ClientIP
	}

	return extractClientIP(ctx, false)
}

// getOperationPath extracts the path from the operation, if available.
func getOperationPath(ctx huma.Context) string {
	if op := ctx.Operation(); op != nil {
		return op.Path
	}

	return ""
}
