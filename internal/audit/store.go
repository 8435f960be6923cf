package audit

import "context"

// Store defines the interface for persisting verdict events.
type Store interface {
	SaveVerdict(ctx context.Context, event *VerdictEvent) error
}
