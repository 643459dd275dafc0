package middleware

// OriginValidator decides whether an Origin header value may make
// cross-origin requests against the feed API. The whitelist validator is
// the only implementation today; the interface leaves room for pattern
// matching without touching the middleware.
type OriginValidator interface {
	// IsAllowed reports whether the origin is permitted. Empty origins
	// are never allowed.
	IsAllowed(origin string) bool

	// GetAllowedOrigins returns the configured set for logging. Must be a
	// defensive copy.
	GetAllowedOrigins() []string
}

// ConfigSource loads CORS configuration. The environment source is the
// production implementation; tests substitute in-memory sources.
type ConfigSource interface {
	// LoadOrigins returns the allowed origins. At least one valid
	// http/https origin without a path is required; loading fails closed.
	LoadOrigins() ([]string, error)

	// LoadMethods returns the allowed HTTP methods, defaulting to the
	// full GET/POST/PUT/DELETE/PATCH/OPTIONS set when unconfigured.
	LoadMethods() ([]string, error)

	// LoadHeaders returns the allowed request headers, defaulting to
	// Content-Type, Authorization, X-Request-ID, X-Trace-ID.
	LoadHeaders() ([]string, error)

	// LoadMaxAge returns the preflight cache lifetime in seconds,
	// defaulting to 86400. Negative values are invalid.
	LoadMaxAge() (int, error)
}

// CORSLogger is the logging surface the middleware needs. SlogAdapter
// wires it to slog; NoOpLogger silences it in tests.
type CORSLogger interface {
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Debug(msg string, fields map[string]interface{})
}
