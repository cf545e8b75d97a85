package handlers

import (
	"crypto/subtle"
	"encoding/json"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/promoteros/admission/internal/admission"
	"go.uber.org/zap"
)

// AdminHandler exposes the block/unblock surface used by the external
// trust-and-safety process. It is never called from the request pipeline.
type AdminHandler struct {
	blocker *admission.IPBlocker
	limiter *admission.RateLimiter
	token   string
	log     *zap.Logger
}

// NewAdminHandler creates the admin API handler. token guards every route.
func NewAdminHandler(blocker *admission.IPBlocker, limiter *admission.RateLimiter, token string, log *zap.Logger) *AdminHandler {
	return &AdminHandler{blocker: blocker, limiter: limiter, token: token, log: log}
}

// RegisterRoutes mounts the admin routes on r.
func (h *AdminHandler) RegisterRoutes(r *mux.Router) {
	r.Use(h.requireToken)
	r.HandleFunc("/blocks", h.ListBlocks).Methods("GET")
	r.HandleFunc("/blocks", h.CreateBlock).Methods("POST")
	r.HandleFunc("/blocks/{ip}", h.DeleteBlock).Methods("DELETE")
	r.HandleFunc("/policies", h.ListPolicies).Methods("GET")
}

func (h *AdminHandler) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := r.Header.Get("X-Admin-Token")
		if subtle.ConstantTimeCompare([]byte(token), []byte(h.token)) != 1 {
			respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "Missing or invalid admin token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ListBlocks returns the current blocklist.
func (h *AdminHandler) ListBlocks(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.blocker.Entries(time.Now()))
}

// blockRequest is the CreateBlock body. A null or absent duration blocks
// permanently.
type blockRequest struct {
	IP         string `json:"ip"`
	DurationMS *int64 `json:"duration_ms"`
}

// CreateBlock blocks an IP, permanently or for a bounded duration.
func (h *AdminHandler) CreateBlock(w http.ResponseWriter, r *http.Request) {
	var req blockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Invalid JSON body")
		return
	}
	if net.ParseIP(req.IP) == nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "ip must be a valid IP address")
		return
	}

	var d time.Duration
	if req.DurationMS != nil {
		if *req.DurationMS <= 0 {
			respondJSONError(w, http.StatusBadRequest, "Bad Request", "duration_ms must be positive when present")
			return
		}
		d = time.Duration(*req.DurationMS) * time.Millisecond
	}

	h.blocker.Block(req.IP, d)
	h.log.Info("ip_blocked",
		zap.String("ip", req.IP),
		zap.Bool("permanent", req.DurationMS == nil),
	)
	respondJSON(w, http.StatusCreated, map[string]any{
		"ip":        req.IP,
		"permanent": req.DurationMS == nil,
	})
}

// DeleteBlock removes an IP from the blocklist entirely.
func (h *AdminHandler) DeleteBlock(w http.ResponseWriter, r *http.Request) {
	ip := mux.Vars(r)["ip"]
	if net.ParseIP(ip) == nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "ip must be a valid IP address")
		return
	}

	h.blocker.Unblock(ip)
	h.log.Info("ip_unblocked", zap.String("ip", ip))
	respondJSON(w, http.StatusOK, map[string]string{"ip": ip})
}

// policyView is the read-only admin representation of a tier.
type policyView struct {
	Name        string `json:"name"`
	WindowMS    int64  `json:"window_ms"`
	MaxRequests int    `json:"max_requests"`
	BlockForMS  int64  `json:"block_for_ms,omitempty"`
	Message     string `json:"message"`
}

// ListPolicies returns the configured rate-limit tiers.
func (h *AdminHandler) ListPolicies(w http.ResponseWriter, r *http.Request) {
	policies := h.limiter.Policies()
	views := make([]policyView, 0, len(policies))
	for _, p := range policies {
		views = append(views, policyView{
			Name:        p.Name,
			WindowMS:    p.Window.Milliseconds(),
			MaxRequests: p.MaxRequests,
			BlockForMS:  p.BlockFor.Milliseconds(),
			Message:     p.Message,
		})
	}
	respondJSON(w, http.StatusOK, views)
}
