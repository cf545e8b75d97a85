package middleware

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/promoteros/admission/internal/admission"
	"github.com/promoteros/admission/internal/request"
	"go.uber.org/zap"
)

// Pipeline composes the admission checks that gate every request before it
// reaches business logic: IP blocklist, then sliding-window rate limit,
// then (where applied) a per-operation throttle. The first rejection
// short-circuits.
type Pipeline struct {
	blocker  *admission.IPBlocker
	limiter  *admission.RateLimiter
	throttle *admission.Throttle
	log      *zap.Logger
}

// NewPipeline wires the admission components together.
func NewPipeline(blocker *admission.IPBlocker, limiter *admission.RateLimiter, throttle *admission.Throttle, log *zap.Logger) *Pipeline {
	return &Pipeline{blocker: blocker, limiter: limiter, throttle: throttle, log: log}
}

// RejectionResponse is the body returned on any admission rejection.
type RejectionResponse struct {
	Success           bool   `json:"success"`
	Error             string `json:"error"`
	Message           string `json:"message"`
	RetryAfterSeconds int    `json:"retry_after_seconds,omitempty"`
	Timestamp         string `json:"timestamp"`
	Path              string `json:"path"`
}

// Limit returns middleware enforcing the named policy. The name is resolved
// here, at construction: an unknown policy is a configuration error that
// must stop startup, never a per-request fallback.
func (p *Pipeline) Limit(policyName string) (func(http.Handler) http.Handler, error) {
	pol, err := p.limiter.Policy(policyName)
	if err != nil {
		return nil, err
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			now := time.Now()
			ip := request.ClientIP(r)

			// Blocked addresses are turned away before any quota
			// bookkeeping so they cannot poison state shared with
			// legitimate callers behind the same address.
			if p.blocker.IsBlocked(ip, now) {
				admission.RecordDecision(admission.OutcomeBlocked, pol.Name)
				p.rejectJSON(w, r, http.StatusForbidden, "Forbidden",
					"This address is blocked.", 0)
				return
			}

			key := request.FromRequest(r)
			d, err := p.limiter.Check(r.Context(), key.String(), pol, now)
			if err != nil {
				// Quota store unreachable: reject conservatively rather
				// than risk double-admitting under contention.
				admission.RecordStoreFailure()
				admission.RecordDecision(admission.OutcomeFailedClose, pol.Name)
				p.log.Error("quota_store_unavailable",
					zap.Error(err),
					zap.String("policy", pol.Name),
				)
				w.Header().Set("Retry-After", "1")
				p.rejectJSON(w, r, http.StatusTooManyRequests, "Too Many Requests",
					"Service is briefly unavailable. Retry shortly.", 1)
				return
			}

			setQuotaHeaders(w, d)

			if !d.Allowed {
				if pol.BlockFor > 0 {
					p.blocker.Block(ip, pol.BlockFor)
					p.log.Warn("client_temporarily_blocked",
						zap.String("ip", ip),
						zap.String("policy", pol.Name),
						zap.Duration("block_for", pol.BlockFor),
					)
				}
				admission.RecordDecision(admission.OutcomeLimited, pol.Name)
				w.Header().Set("Retry-After", strconv.Itoa(d.RetryAfter))
				p.rejectJSON(w, r, http.StatusTooManyRequests, "Too Many Requests",
					pol.Message, d.RetryAfter)
				return
			}

			admission.RecordDecision(admission.OutcomeAllowed, pol.Name)
			next.ServeHTTP(w, r)
		})
	}, nil
}

// ThrottleOperation returns middleware allowing the named operation at most
// once per cooldown per client. Apply it after Limit on routes fronting an
// expensive action; it is independent of the general rate-limit budget.
func (p *Pipeline) ThrottleOperation(operation string, cooldown time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			now := time.Now()
			key := request.FromRequest(r)

			permitted, retryAfter := p.throttle.TryRun(operation, key.String(), cooldown, now)
			if !permitted {
				admission.RecordDecision(admission.OutcomeThrottled, operation)
				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				p.rejectJSON(w, r, http.StatusTooManyRequests, "Too Many Requests",
					fmt.Sprintf("This operation may run once per %s per client.", cooldown), retryAfter)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// setQuotaHeaders decorates the response with informational quota headers.
// They are for caller transparency only; server-side state is never derived
// from them.
func setQuotaHeaders(w http.ResponseWriter, d admission.Decision) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
	w.Header().Set("X-RateLimit-Reset", d.ResetAt.UTC().Format(time.RFC3339))
}

func (p *Pipeline) rejectJSON(w http.ResponseWriter, r *http.Request, status int, errorType, message string, retryAfter int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	response := RejectionResponse{
		Success:           false,
		Error:             errorType,
		Message:           message,
		RetryAfterSeconds: retryAfter,
		Timestamp:         time.Now().UTC().Format(time.RFC3339),
		Path:              r.URL.Path,
	}

	if err := json.NewEncoder(w).Encode(response); err != nil {
		p.log.Error("failed_to_encode_rejection_response",
			zap.Error(err),
			zap.Int("status_code", status),
			zap.String("path", r.URL.Path),
		)
	}
}
