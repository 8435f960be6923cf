package ratelimit_test

import (
	"testing"
	"time"

	"github.com/serroba/rate-gate/internal/ratelimit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := ratelimit.DefaultConfig(ratelimit.FailOpen)

	require.NoError(t, cfg.Validate())
	assert.Equal(t, int64(5), cfg.MaxRequestsPerWindow)
	assert.Equal(t, time.Minute, cfg.Window())
	assert.Equal(t, "127.0.0.1:6379", cfg.StoreEndpoint)
	assert.Equal(t, "rate_limit:", cfg.KeyPrefix)
	assert.Equal(t, ratelimit.FailOpen, cfg.FailurePolicy)
}

func TestConfig_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*ratelimit.Config)
	}{
		{"zero threshold", func(c *ratelimit.Config) { c.MaxRequestsPerWindow = 0 }},
		{"negative threshold", func(c *ratelimit.Config) { c.MaxRequestsPerWindow = -3 }},
		{"zero window", func(c *ratelimit.Config) { c.WindowSeconds = 0 }},
		{"missing endpoint", func(c *ratelimit.Config) { c.StoreEndpoint = "" }},
		{"endpoint without port", func(c *ratelimit.Config) { c.StoreEndpoint = "redis" }},
		{"zero timeout", func(c *ratelimit.Config) { c.StoreTimeout = 0 }},
		{"missing failure policy", func(c *ratelimit.Config) { c.FailurePolicy = "" }},
		{"unknown failure policy", func(c *ratelimit.Config) { c.FailurePolicy = "sometimes" }},
		{"missing key prefix", func(c *ratelimit.Config) { c.KeyPrefix = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := ratelimit.DefaultConfig(ratelimit.FailClosed)
			tt.mutate(&cfg)

			assert.ErrorIs(t, cfg.Validate(), ratelimit.ErrConfiguration)
		})
	}
}
