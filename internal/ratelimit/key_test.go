package ratelimit_test

import (
	"strings"
	"testing"

	"github.com/serroba/rate-gate/internal/ratelimit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildKey(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		clientID string
		want     ratelimit.ClientKey
	}{
		{"ipv4", "192.168.1.1", "rate_limit:192.168.1.1"},
		{"surrounding whitespace is trimmed", "  10.0.0.1 ", "rate_limit:10.0.0.1"},
		{"ipv6 is canonicalised", "2001:DB8:0:0:0:0:0:1", "rate_limit:2001:db8::1"},
		{"ipv4-mapped ipv6 collapses to ipv4", "::ffff:10.0.0.1", "rate_limit:10.0.0.1"},
		{"opaque identifiers are kept", "api-key-42", "rate_limit:api-key-42"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := ratelimit.BuildKey("rate_limit:", tt.clientID)

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBuildKey_Invalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		clientID string
	}{
		{"empty", ""},
		{"blank", "   "},
		{"inner space", "10.0.0.1 10.0.0.2"},
		{"newline", "client\nid"},
		{"too long", strings.Repeat("a", 256)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := ratelimit.BuildKey("rate_limit:", tt.clientID)

			assert.ErrorIs(t, err, ratelimit.ErrInvalidClientID)
		})
	}
}
