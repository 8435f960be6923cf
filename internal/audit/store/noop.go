package store

import (
	"context"

	"github.com/serroba/rate-gate/internal/audit"
	"go.uber.org/zap"
)

// Noop is a no-op implementation of audit.Store that logs events.
type Noop struct {
	logger *zap.Logger
}

// NewNoop creates a new no-op audit store.
func NewNoop(logger *zap.Logger) *Noop {
	return &Noop{logger: logger}
}

func (n *Noop) SaveVerdict(_ context.Context, event *audit.VerdictEvent) error {
	n.logger.Info("verdict event received",
		zap.String("id", event.ID),
		zap.String("clientIp", event.ClientIP),
		zap.String("path", event.Path),
		zap.String("reason", event.Reason),
		zap.Int64("count", event.Count),
		zap.Time("occurredAt", event.OccurredAt),
	)

	return nil
}
