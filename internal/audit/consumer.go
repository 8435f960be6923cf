package audit

import (
	"context"
	"fmt"

	"github.com/serroba/rate-gate/internal/messaging"
	"go.uber.org/zap"
)

// NewVerdictHandler persists each event to store.
func NewVerdictHandler(store Store, logger *zap.Logger) messaging.Handler[VerdictEvent] {
	return func(ctx context.Context, event *VerdictEvent) error {
		if event.ID == "" {
			return fmt.Errorf("verdict event without id: %+v", *event)
		}

		if err := store.SaveVerdict(ctx, event); err != nil {
			return fmt.Errorf("save verdict %s: %w", event.ID, err)
		}

		logger.Debug("verdict event stored",
			zap.String("id", event.ID),
			zap.String("reason", event.Reason),
		)

		return nil
	}
}
