package health_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/serroba/rate-gate/internal/health"
	"github.com/serroba/rate-gate/internal/ratelimit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockChecker struct {
	err error
}

func (m *mockChecker) Ping(_ context.Context) error {
	return m.err
}

type fixedBreaker string

func (b fixedBreaker) State() string { return string(b) }

func TestNewHandler(t *testing.T) {
	handler := health.NewHandler(&mockChecker{}, nil, ratelimit.FailOpen)

	assert.NotNil(t, handler)
}

func TestHandler_Check(t *testing.T) {
	t.Run("returns ok when the counter store is healthy", func(t *testing.T) {
		handler := health.NewHandler(&mockChecker{}, fixedBreaker("closed"), ratelimit.FailClosed)

		resp, err := handler.Check(context.Background(), nil)

		require.NoError(t, err)
		assert.Equal(t, "ok", resp.Body.Status)
		assert.Equal(t, "healthy", resp.Body.CounterStore)
		assert.Equal(t, "closed", resp.Body.Breaker)
		assert.Equal(t, "closed", resp.Body.FailurePolicy)
	})

	t.Run("returns degraded when the counter store is unhealthy", func(t *testing.T) {
		handler := health.NewHandler(&mockChecker{err: errors.New("connection refused")}, nil, ratelimit.FailOpen)

		resp, err := handler.Check(context.Background(), nil)

		require.NoError(t, err)
		assert.Equal(t, "degraded", resp.Body.Status)
		assert.Equal(t, "unhealthy", resp.Body.CounterStore)
		assert.Empty(t, resp.Body.Breaker)
	})
}

func TestRegisterRoutes(t *testing.T) {
	router := chi.NewMux()
	api := humachi.New(router, huma.DefaultConfig("Test", "1.0.0"))

	health.RegisterRoutes(api, health.NewHandler(&mockChecker{}, nil, ratelimit.FailOpen))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"counterStore":"healthy"`)

	op := api.OpenAPI().Paths["/health"].Get
	require.NotNil(t, op)
	assert.Equal(t, ratelimit.EndpointConfig{Disabled: true}, op.Metadata[ratelimit.MetadataKey])
}
