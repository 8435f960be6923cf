package ratelimit

import "time"

// Decision is the admission outcome of a single request.
type Decision int

const (
	// Admit lets the request proceed.
	Admit Decision = iota
	// Reject stops the request.
	Reject
)

func (d Decision) String() string {
	if d == Admit {
		return "admit"
	}

	return "reject"
}

// Reason explains how a Decision was reached.
type Reason int

const (
	// ReasonWithinLimit means the counter is at or under the threshold.
	ReasonWithinLimit Reason = iota
	// ReasonLimitExceeded means the counter passed the threshold.
	ReasonLimitExceeded
	// ReasonStoreFailOpen means the store failed and the policy admitted.
	ReasonStoreFailOpen
	// ReasonStoreFailClosed means the store failed and the policy rejected.
	ReasonStoreFailClosed
)

func (r Reason) String() string {
	switch r {
	case ReasonWithinLimit:
		return "within_limit"
	case ReasonLimitExceeded:
		return "limit_exceeded"
	case ReasonStoreFailOpen:
		return "store_unavailable_fail_open"
	case ReasonStoreFailClosed:
		return "store_unavailable_fail_closed"
	default:
		return "unknown"
	}
}

// Verdict is the result of evaluating one request.
type Verdict struct {
	Decision Decision
	Reason   Reason
	// Count is the counter value after this request; zero on store failure.
	Count int64
	// Limit is the configured threshold.
	Limit int64
	// RetryAfter is set on rejections and is at least one second.
	RetryAfter time.Duration
}

// Admitted reports whether the request may proceed.
func (v Verdict) Admitted() bool {
	return v.Decision == Admit
}

// Fallback reports whether the verdict came from the failure policy.
func (v Verdict) Fallback() bool {
	return v.Reason == ReasonStoreFailOpen || v.Reason == ReasonStoreFailClosed
}

// Remaining is the number of requests still admitted in the current window.
func (v Verdict) Remaining() int64 {
	if v.Fallback() || v.Count >= v.Limit {
		return 0
	}

	return v.Limit - v.Count
}

// RetryAfterSeconds rounds RetryAfter up to whole seconds.
func (v Verdict) RetryAfterSeconds() int64 {
	return ceilSeconds(v.RetryAfter)
}

func ceilSeconds(d time.Duration) int64 {
	if d <= 0 {
		return 0
	}

	return int64((d + time.Second - 1) / time.Second)
}
