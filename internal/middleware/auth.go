package middleware

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/promoteros/admission/internal/request"
	"go.uber.org/zap"
)

// Auth validates a bearer token and attaches its subject to the request
// context as the client identity. Only the subject is extracted; anything
// beyond caller identification belongs to the upstream identity service.
func Auth(secret string, logger *zap.Logger) func(http.Handler) http.Handler {
	key := []byte(secret)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				respondAuthError(w, http.StatusUnauthorized, "Missing Authorization header")
				return
			}

			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				respondAuthError(w, http.StatusUnauthorized, "Invalid Authorization header format")
				return
			}

			tok, err := jwt.Parse([]byte(parts[1]),
				jwt.WithKey(jwa.HS256, key),
				jwt.WithValidate(true),
			)
			if err != nil {
				logger.Debug("token_verification_failed", zap.Error(err))
				respondAuthError(w, http.StatusUnauthorized, "Invalid or expired token")
				return
			}

			sub := tok.Subject()
			if sub == "" {
				respondAuthError(w, http.StatusUnauthorized, "Token has no subject")
				return
			}

			next.ServeHTTP(w, r.WithContext(request.WithIdentity(r.Context(), sub)))
		})
	}
}

func respondAuthError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	response := map[string]any{
		"success": false,
		"error":   message,
	}
	_ = json.NewEncoder(w).Encode(response)
}
