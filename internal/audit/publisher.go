package audit

import (
	"context"
	"time"

	"github.com/serroba/rate-gate/internal/messaging"
	"github.com/serroba/rate-gate/internal/ratelimit"
	"go.uber.org/zap"
)

// DefaultPublishTimeout bounds a single event publish.
const DefaultPublishTimeout = 250 * time.Millisecond

// Publisher turns verdicts into VerdictEvents on TopicVerdicts.
// Within-limit verdicts are not published.
type Publisher struct {
	publish   messaging.Publish[VerdictEvent]
	keyPrefix string
	newID     func() string
	now       func() time.Time
	timeout   time.Duration
	logger    *zap.Logger
}

// PublisherOption customises a Publisher.
type PublisherOption func(*Publisher)

// WithPublishTimeout bounds how long RecordVerdict waits for the stream.
func WithPublishTimeout(d time.Duration) PublisherOption {
	return func(p *Publisher) {
		p.timeout = d
	}
}

// NewPublisher creates a verdict publisher. keyPrefix must match the
// limiter's so events carry the counter key that was used.
func NewPublisher(
	publish messaging.Publish[VerdictEvent],
	keyPrefix string,
	newID func() string,
	logger *zap.Logger,
	opts ...PublisherOption,
) *Publisher {
	p := &Publisher{
		publish:   publish,
		keyPrefix: keyPrefix,
		newID:     newID,
		now:       time.Now,
		timeout:   DefaultPublishTimeout,
		logger:    logger,
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// RecordVerdict publishes v unless it is a plain admission. The publish runs
// on the request path, so it is cut off after the publish timeout. Errors are
// logged and never affect the request.
func (p *Publisher) RecordVerdict(ctx context.Context, clientID, method, path string, v ratelimit.Verdict) {
	if v.Reason == ratelimit.ReasonWithinLimit {
		return
	}

	event := &VerdictEvent{
		ID:           p.newID(),
		ClientIP:     clientID,
		Method:       method,
		Path:         path,
		Decision:     v.Decision.String(),
		Reason:       v.Reason.String(),
		Count:        v.Count,
		Limit:        v.Limit,
		RetryAfterMs: v.RetryAfter.Milliseconds(),
		OccurredAt:   p.now().UTC(),
	}

	if key, err := ratelimit.BuildKey(p.keyPrefix, clientID); err == nil {
		event.ClientKey = string(key)
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	if err := p.publish(ctx, event); err != nil {
		p.logger.Error("failed to publish verdict event",
			zap.String("id", event.ID),
			zap.String("reason", event.Reason),
			zap.Error(err),
		)
	}
}
