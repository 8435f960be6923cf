package middleware

import (
	"context"
	"net"
	"strings"

	"github.com/danielgtaylor/huma/v2"
)

// ClientMeta describes who sent a request.
type ClientMeta struct {
	ClientIP  string
	UserAgent string
}

type clientMetaKey struct{}

// ContextWithClientMeta returns a copy of ctx carrying meta.
func ContextWithClientMeta(ctx context.Context, meta ClientMeta) context.Context {
	return context.WithValue(ctx, clientMetaKey{}, meta)
}

// ClientMetaFromContext returns the meta stored by RequestMeta, if any.
func ClientMetaFromContext(ctx context.Context) (ClientMeta, bool) {
	meta, ok := ctx.Value(clientMetaKey{}).(ClientMeta)

	return meta, ok
}

// RequestMeta is a middleware that adds client IP and user-agent to the request context.
// Forwarding headers are only honoured when trustProxy is set; otherwise a
// client could pick its own rate limit key.
func RequestMeta(_ huma.API, trustProxy bool) func(ctx huma.Context, next func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		meta := ClientMeta{
			ClientIP:  extractClientIP(ctx, trustProxy),
			UserAgent: ctx.Header("User-Agent"),
		}

		ctx = huma.WithContext(ctx, ContextWithClientMeta(ctx.Context(), meta))

		next(ctx)
	}
}

func extractClientIP(ctx huma.Context, trustProxy bool) string {
	if trustProxy {
		// Take the first IP (original client)
		if xff := ctx.Header("X-Forwarded-For"); xff != "" {
			if idx := strings.Index(xff, ","); idx != -1 {
				return strings.TrimSpace(xff[:idx])
			}

			return strings.TrimSpace(xff)
		}

		if xri := ctx.Header("X-Real-IP"); xri != "" {
			return strings.TrimSpace(xri)
		}
	}

	addr := ctx.RemoteAddr()

	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}

	return host
}
