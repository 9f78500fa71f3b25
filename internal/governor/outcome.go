package governor

import "time"

// Kind discriminates the terminal states of one invocation.
type Kind int

const (
	// KindCompleted: the solver returned a result within the deadline.
	KindCompleted Kind = iota
	// KindRejected: admission control turned the request away before
	// any solver work started.
	KindRejected
	// KindFailed: the solver (or the caller's context) errored.
	KindFailed
	// KindTimedOut: the deadline expired before the solver finished.
	KindTimedOut
	// KindConfigError: the tool has no budget entry. A programming or
	// deployment error, not a per-request condition.
	KindConfigError
)

// RejectReason says why admission control refused a request.
type RejectReason string

const (
	RejectMemoryExceeded   RejectReason = "memory_exceeded"
	RejectConcurrencyLimit RejectReason = "concurrency_limit_exceeded"
	RejectRateLimited      RejectReason = "rate_limited"
)

// Outcome is the single terminal record of one request. Exactly one is
// produced per Run call, whatever the exit path.
type Outcome struct {
	Kind      Kind
	RequestID string
	Tool      string
	Duration  time.Duration

	// Result is set for KindCompleted.
	Result any
	// Reason is set for KindRejected.
	Reason RejectReason
	// Err is set for KindFailed and KindConfigError.
	Err error
}

// Label returns a stable lowercase name for journaling and metrics.
func (o Outcome) Label() string {
	switch o.Kind {
	case KindCompleted:
		return "completed"
	case KindRejected:
		return "rejected_" + string(o.Reason)
	case KindFailed:
		return "failed"
	case KindTimedOut:
		return "timed_out"
	case KindConfigError:
		return "config_error"
	default:
		return "unknown"
	}
}
