package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/promoteros/admission/internal/request"
	"go.uber.org/zap"
)

const testSecret = "test-signing-secret"

func signedToken(t *testing.T, subject string, secret string, expiry time.Time) string {
	t.Helper()
	builder := jwt.NewBuilder().
		IssuedAt(time.Now()).
		Expiration(expiry)
	if subject != "" {
		builder = builder.Subject(subject)
	}
	tok, err := builder.Build()
	if err != nil {
		t.Fatalf("Failed to build token: %v", err)
	}
	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.HS256, []byte(secret)))
	if err != nil {
		t.Fatalf("Failed to sign token: %v", err)
	}
	return string(signed)
}

func TestAuth_ValidToken(t *testing.T) {
	t.Parallel()

	var gotIdentity string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotIdentity = request.Identity(r)
		w.WriteHeader(http.StatusOK)
	})

	mw := Auth(testSecret, zap.NewNop())
	token := signedToken(t, "user-42", testSecret, time.Now().Add(time.Hour))

	req := httptest.NewRequest("GET", "/test", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	mw(handler).ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	if gotIdentity != "user-42" {
		t.Errorf("Expected identity user-42 in context, got %q", gotIdentity)
	}
}

func TestAuth_Rejections(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		authHeader string
	}{
		{
			name:       "missing header",
			authHeader: "",
		},
		{
			name:       "not a bearer token",
			authHeader: "Basic dXNlcjpwYXNz",
		},
		{
			name:       "garbage token",
			authHeader: "Bearer not-a-jwt",
		},
	}

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("Handler must not run on rejected auth")
	})
	mw := Auth(testSecret, zap.NewNop())

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/test", nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}
			w := httptest.NewRecorder()
			mw(handler).ServeHTTP(w, req)

			if w.Code != http.StatusUnauthorized {
				t.Errorf("Expected status 401, got %d", w.Code)
			}
		})
	}
}

func TestAuth_WrongKeyAndExpiry(t *testing.T) {
	t.Parallel()

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("Handler must not run on rejected auth")
	})
	mw := Auth(testSecret, zap.NewNop())

	tests := []struct {
		name  string
		token string
	}{
		{
			name:  "signed with a different key",
			token: signedToken(t, "user-42", "other-secret", time.Now().Add(time.Hour)),
		},
		{
			name:  "expired",
			token: signedToken(t, "user-42", testSecret, time.Now().Add(-time.Hour)),
		},
		{
			name:  "no subject",
			token: signedToken(t, "", testSecret, time.Now().Add(time.Hour)),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/test", nil)
			req.Header.Set("Authorization", "Bearer "+tt.token)
			w := httptest.NewRecorder()
			mw(handler).ServeHTTP(w, req)

			if w.Code != http.StatusUnauthorized {
				t.Errorf("Expected status 401, got %d", w.Code)
			}
		})
	}
}
