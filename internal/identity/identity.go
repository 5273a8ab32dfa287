// Package identity resolves the caller's network identity, used as the
// session key.
package identity

import (
	"context"
	"net"
	"net/http"
)

type contextKey int

const identityKey contextKey = iota

// FromContext returns the caller identity stored by Middleware, or "" when
// none could be resolved.
func FromContext(ctx context.Context) string {
	if v, ok := ctx.Value(identityKey).(string); ok {
		return v
	}
	return ""
}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// Middleware stores the caller's remote IP in the request context. Mount it
// after chi's RealIP so proxy headers are honored.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := WithIdentity(r.Context(), IPFromRequest(r))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// IPFromRequest returns the host part of RemoteAddr. The value is used
// verbatim as a key, so "::1" and "127.0.0.1" are different identities.
func IPFromRequest(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
