package admission

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"
)

// ErrUnknownPolicy marks a lookup for a policy name that was never
// configured. Policy names are resolved when middleware is built, so this
// is a startup-time configuration error, never a per-request condition.
var ErrUnknownPolicy = errors.New("unknown rate limit policy")

// RateLimiter applies named policies to client keys through a quota store.
type RateLimiter struct {
	store    Store
	policies map[string]Policy
}

// NewRateLimiter validates the given policies and builds the limiter.
// Duplicate names and non-positive window/limit values refuse to start.
func NewRateLimiter(store Store, policies []Policy) (*RateLimiter, error) {
	if store == nil {
		return nil, errors.New("rate limiter requires a quota store")
	}
	if len(policies) == 0 {
		return nil, errors.New("rate limiter requires at least one policy")
	}
	byName := make(map[string]Policy, len(policies))
	for _, p := range policies {
		if err := p.Validate(); err != nil {
			return nil, err
		}
		if _, dup := byName[p.Name]; dup {
			return nil, fmt.Errorf("duplicate policy %q", p.Name)
		}
		byName[p.Name] = p
	}
	return &RateLimiter{store: store, policies: byName}, nil
}

// Policy resolves a tier by name.
func (l *RateLimiter) Policy(name string) (Policy, error) {
	p, ok := l.policies[name]
	if !ok {
		return Policy{}, fmt.Errorf("%w: %q", ErrUnknownPolicy, name)
	}
	return p, nil
}

// Policies returns all configured tiers sorted by name.
func (l *RateLimiter) Policies() []Policy {
	out := make([]Policy, 0, len(l.policies))
	for _, p := range l.policies {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Check runs the sliding-window admission for clientKey under policy.
// The same client key under different policies accounts independently.
// Rejected requests never consume quota.
func (l *RateLimiter) Check(ctx context.Context, clientKey string, policy Policy, now time.Time) (Decision, error) {
	return l.store.Admit(ctx, clientKey+"|"+policy.Name, policy, now)
}
