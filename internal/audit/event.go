package audit

import "time"

// TopicVerdicts carries every rejection and failure-policy verdict.
const TopicVerdicts = "ratelimit.verdicts"

// VerdictEvent is a non-trivial admission decision.
type VerdictEvent struct {
	ID           string    `json:"id"`
	ClientKey    string    `json:"clientKey"`
	ClientIP     string    `json:"clientIp"`
	Method       string    `json:"method"`
	Path         string    `json:"path"`
	Decision     string    `json:"decision"`
	Reason       string    `json:"reason"`
	Count        int64     `json:"count"`
	Limit        int64     `json:"limit"`
	RetryAfterMs int64     `json:"retryAfterMs,omitempty"`
	OccurredAt   time.Time `json:"occurredAt"`
}
