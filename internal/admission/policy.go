package admission

import (
	"fmt"
	"time"
)

// Policy is an immutable rate-limit tier: a sliding window duration and the
// maximum number of requests a single client may be admitted within it.
// BlockFor, when set, temporarily blocks the offending IP after a rejection
// under this policy (brute-force escalation for sensitive tiers).
type Policy struct {
	Name        string
	Window      time.Duration
	MaxRequests int
	BlockFor    time.Duration
	Message     string
}

// Validate checks the policy for values that would make it meaningless.
// A failing policy is a configuration error and must stop startup.
func (p Policy) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("policy name is required")
	}
	if p.Window <= 0 {
		return fmt.Errorf("policy %q: window must be positive, got %v", p.Name, p.Window)
	}
	if p.MaxRequests <= 0 {
		return fmt.Errorf("policy %q: max_requests must be positive, got %d", p.Name, p.MaxRequests)
	}
	if p.BlockFor < 0 {
		return fmt.Errorf("policy %q: block_for must not be negative, got %v", p.Name, p.BlockFor)
	}
	return nil
}

// DefaultPolicies returns the built-in tiers used when no policy file is
// configured.
func DefaultPolicies() []Policy {
	return []Policy{
		{
			Name:        "default",
			Window:      time.Minute,
			MaxRequests: 100,
			Message:     "Too many requests. Please slow down.",
		},
		{
			Name:        "strict",
			Window:      time.Minute,
			MaxRequests: 10,
			Message:     "Rate limit exceeded for this endpoint.",
		},
		{
			Name:        "authenticated",
			Window:      time.Minute,
			MaxRequests: 1000,
			Message:     "Request quota exhausted for this account.",
		},
		{
			Name:        "auth",
			Window:      15 * time.Minute,
			MaxRequests: 5,
			BlockFor:    30 * time.Minute,
			Message:     "Too many authentication attempts. Try again later.",
		},
	}
}
