package middleware

import (
	"net/http"
	"strconv"
	"strings"
)

// CORSConfig configures the CORS middleware. The feed frontend talks to
// this API from a different origin, so browsers preflight preference
// submissions and the allowed-origin set must be explicit.
type CORSConfig struct {
	// AllowedOrigins is the raw origin whitelist. Kept alongside Validator
	// so handlers can report the configured set; validation goes through
	// Validator.
	AllowedOrigins []string

	// AllowedMethods for preflight responses.
	// Default: GET, POST, PUT, DELETE, PATCH, OPTIONS.
	AllowedMethods []string

	// AllowedHeaders for preflight responses.
	// Default: Content-Type, Authorization, X-Request-ID, X-Trace-ID.
	AllowedHeaders []string

	// AllowCredentials must be true for cookie or bearer based sessions.
	AllowCredentials bool

	// MaxAge is the preflight cache lifetime in seconds. Default 86400.
	MaxAge int

	// Validator decides whether an origin is allowed.
	Validator OriginValidator

	// Logger receives policy violations and preflight traces. May be nil.
	Logger CORSLogger
}

// CORS validates the Origin header against the configured validator.
// Same-origin requests (no Origin header) pass through untouched.
// Disallowed origins get no CORS headers, which makes the browser block
// the response. Allowed preflights are answered with 204 without reaching
// the next handler.
func CORS(config CORSConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin == "" {
				next.ServeHTTP(w, r)
				return
			}

			if !config.Validator.IsAllowed(origin) {
				if config.Logger != nil {
					config.Logger.Warn("CORS: origin not allowed", map[string]interface{}{
						"origin":      origin,
						"path":        r.URL.Path,
						"method":      r.Method,
						"remote_addr": r.RemoteAddr,
					})
				}
				next.ServeHTTP(w, r)
				return
			}

			// Echo the request origin; "*" is not valid with credentials.
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")

			if r.Method == http.MethodOptions {
				w.Header().Set("Access-Control-Allow-Methods", strings.Join(config.AllowedMethods, ", "))
				w.Header().Set("Access-Control-Allow-Headers", strings.Join(config.AllowedHeaders, ", "))
				w.Header().Set("Access-Control-Max-Age", strconv.Itoa(config.MaxAge))

				if config.Logger != nil {
					config.Logger.Debug("CORS: preflight request", map[string]interface{}{
						"origin":            origin,
						"requested_method":  r.Header.Get("Access-Control-Request-Method"),
						"requested_headers": r.Header.Get("Access-Control-Request-Headers"),
					})
				}

				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
