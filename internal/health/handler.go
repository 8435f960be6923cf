package health

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/serroba/rate-gate/internal/ratelimit"
)

// Checker defines the interface for checking service health.
type Checker interface {
	Ping(ctx context.Context) error
}

// BreakerState reports the state of a circuit breaker.
type BreakerState interface {
	State() string
}

// Handler handles health check operations.
type Handler struct {
	store   Checker
	breaker BreakerState
	policy  ratelimit.FailurePolicy
}

// NewHandler creates a new health handler. breaker may be nil.
func NewHandler(store Checker, breaker BreakerState, policy ratelimit.FailurePolicy) *Handler {
	return &Handler{store: store, breaker: breaker, policy: policy}
}

// Response is the response for health check endpoint.
type Response struct {
	Body struct {
		Status        string `json:"status"`
		CounterStore  string `json:"counterStore"`
		Breaker       string `json:"breaker,omitempty"`
		FailurePolicy string `json:"failurePolicy"`
	}
}

// Check reports the counter store health. A store outage degrades the service
// but never fails the check: the limiter keeps answering with its failure policy.
func (h *Handler) Check(ctx context.Context, _ *struct{}) (*Response, error) {
	resp := &Response{}
	resp.Body.Status = "ok"
	resp.Body.FailurePolicy = string(h.policy)

	if err := h.store.Ping(ctx); err != nil {
		resp.Body.CounterStore = "unhealthy"
		resp.Body.Status = "degraded"
	} else {
		resp.Body.CounterStore = "healthy"
	}

	if h.breaker != nil {
		resp.Body.Breaker = h.breaker.State()
	}

	return resp, nil
}

// RegisterRoutes registers health check routes. Health probes are never rate limited.
func RegisterRoutes(api huma.API, h *Handler) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Service health",
		Tags:        []string{"Health"},
		Metadata: map[string]any{
			ratelimit.MetadataKey: ratelimit.EndpointConfig{Disabled: true},
		},
	}, h.Check)
}
