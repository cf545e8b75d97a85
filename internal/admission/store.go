package admission

import (
	"context"
	"math"
	"time"
)

// Decision is the outcome of a single admission check.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
	// RetryAfter is the number of whole seconds until the client may retry.
	// Zero when the request was allowed.
	RetryAfter int
}

// Store decides whether a request identified by key may proceed under a
// policy. Implementations must make the filter+count+append sequence atomic
// per key: two concurrent admits with one slot left must never both succeed.
type Store interface {
	Admit(ctx context.Context, key string, policy Policy, now time.Time) (Decision, error)
	Ping(ctx context.Context) error
}

// retryAfterSeconds rounds the time until resetAt up to whole seconds,
// never reporting less than one second for a rejection.
func retryAfterSeconds(resetAt, now time.Time) int {
	secs := int(math.Ceil(resetAt.Sub(now).Seconds()))
	if secs < 1 {
		secs = 1
	}
	return secs
}
