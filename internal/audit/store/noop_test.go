package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/serroba/rate-gate/internal/audit"
	"github.com/serroba/rate-gate/internal/audit/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNoop_SaveVerdict(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	noop := store.NewNoop(zap.New(core))

	event := &audit.VerdictEvent{
		ID:         "V1StGXR8_Z5jdHi6B-myT",
		ClientIP:   "127.0.0.1",
		Path:       "/hello",
		Reason:     "limit_exceeded",
		Count:      6,
		OccurredAt: time.Now(),
	}

	err := noop.SaveVerdict(context.Background(), event)

	require.NoError(t, err)
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "limit_exceeded", logs.All()[0].ContextMap()["reason"])
}
