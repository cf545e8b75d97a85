package request

import (
	"context"
	"net/http"
	"strings"
)

// KeyKind distinguishes how a client was identified.
type KeyKind int

const (
	// KindIP keys the client by its forwarded source address.
	KindIP KeyKind = iota
	// KindUser keys the client by its authenticated subject. Requests from
	// the same account collapse to one key even across devices.
	KindUser
)

// Key is the stable identity a request is accounted under everywhere in the
// admission layer.
type Key struct {
	Kind  KeyKind
	Value string
}

// UserKey builds a key for an authenticated subject.
func UserKey(id string) Key { return Key{Kind: KindUser, Value: id} }

// IPKey builds a key for an unauthenticated client address.
func IPKey(addr string) Key { return Key{Kind: KindIP, Value: addr} }

// String renders the key in the form used for store lookups.
func (k Key) String() string {
	if k.Kind == KindUser {
		return "user:" + k.Value
	}
	return "ip:" + k.Value
}

// unknownClient is the fallback when no address header is present at all.
const unknownClient = "unknown"

// ClientIP extracts the client address from forwarded headers, in order:
// X-Forwarded-For (first, left-most entry), X-Real-IP, Client-IP. The
// headers are trusted as-is; deployments must sit behind a proxy that
// controls them.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		if len(parts) > 0 {
			if ip := strings.TrimSpace(parts[0]); ip != "" {
				return ip
			}
		}
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	if cip := r.Header.Get("Client-IP"); cip != "" {
		return strings.TrimSpace(cip)
	}
	return unknownClient
}

type contextKey string

const identityContextKey contextKey = "identity"

// WithIdentity returns a context carrying the authenticated subject.
func WithIdentity(ctx context.Context, subject string) context.Context {
	return context.WithValue(ctx, identityContextKey, subject)
}

// Identity returns the authenticated subject from the request context, or
// the empty string when the request is anonymous.
func Identity(r *http.Request) string {
	s, _ := r.Context().Value(identityContextKey).(string)
	return s
}

// FromRequest derives the client key for a request. An authenticated
// identity takes precedence over the source address.
func FromRequest(r *http.Request) Key {
	if id := Identity(r); id != "" {
		return UserKey(id)
	}
	return IPKey(ClientIP(r))
}
