// Package identity resolves the calling user for request handling. The
// storefront terminates authentication at the edge proxy, which forwards the
// authenticated subject in the X-User-ID header.
package identity

import (
	"context"
	"net/http"
	"strings"
)

// Header carries the authenticated user id set by the edge proxy.
const Header = "X-User-ID"

type contextKey struct{}

// Middleware extracts the user id header and stores it on the request
// context. Requests without the header pass through anonymously; handlers
// that need a user reject them.
func Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if userID := strings.TrimSpace(r.Header.Get(Header)); userID != "" {
				r = r.WithContext(WithUserID(r.Context(), userID))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// WithUserID stores the user id on the context.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, contextKey{}, userID)
}

// UserID returns the authenticated user id, if any.
func UserID(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(contextKey{}).(string)
	if !ok || strings.TrimSpace(userID) == "" {
		return "", false
	}
	return userID, true
}
