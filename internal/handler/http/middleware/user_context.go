package middleware

import (
	"context"
	"net/http"
	"strings"
)

// userContextKey is the context key type for the resolved user identifier.
// An unexported type prevents collisions with keys from other packages.
type userContextKey struct{}

// UserIDContextKey is the context key under which UserContext stores the
// user identifier resolved from the request path.
var UserIDContextKey = userContextKey{}

// UserFromContext returns the user identifier resolved by UserContext,
// or "" when the request carries no user-scoped path.
func UserFromContext(ctx context.Context) string {
	if userID, ok := ctx.Value(UserIDContextKey).(string); ok {
		return userID
	}
	return ""
}

// UserContext resolves the user identifier from user-scoped request paths
// and stores it in the request context for downstream middleware.
//
// Recognized path shapes:
//   - /users/{user_id}/...
//   - /admin/users/{user_id}/...
//
// Requests without a user-scoped path pass through unchanged; the user
// rate limiter treats them as anonymous.
func UserContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if userID := userIDFromPath(r.URL.Path); userID != "" {
			ctx := context.WithValue(r.Context(), UserIDContextKey, userID)
			r = r.WithContext(ctx)
		}
		next.ServeHTTP(w, r)
	})
}

// userIDFromPath extracts the user segment from a user-scoped path.
func userIDFromPath(path string) string {
	trimmed := strings.TrimPrefix(path, "/admin")
	if !strings.HasPrefix(trimmed, "/users/") {
		return ""
	}
	rest := strings.TrimPrefix(trimmed, "/users/")
	if idx := strings.IndexByte(rest, '/'); idx >= 0 {
		rest = rest[:idx]
	}
	return rest
}
