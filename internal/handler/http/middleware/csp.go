package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"infinite-feed/pkg/security/csp"
)

// CSPMiddlewareConfig configures CSP header injection. The JSON endpoints
// get the strict policy; Swagger UI needs its own looser one, so policies
// are selected per path prefix.
type CSPMiddlewareConfig struct {
	// Enabled toggles the middleware, letting operators stage the rollout
	// via environment variable.
	Enabled bool

	// DefaultPolicy applies when no path prefix matches.
	DefaultPolicy *csp.CSPBuilder

	// PathPolicies maps path prefixes to policies. The longest matching
	// prefix wins.
	PathPolicies map[string]*csp.CSPBuilder

	// ReportOnly delivers the policy without enforcing it, for trialing
	// changes against the live frontend.
	ReportOnly bool
}

// CSPMiddleware applies Content-Security-Policy headers to responses.
type CSPMiddleware struct {
	config CSPMiddlewareConfig
}

// NewCSPMiddleware builds the middleware from the given configuration.
func NewCSPMiddleware(config CSPMiddlewareConfig) *CSPMiddleware {
	return &CSPMiddleware{config: config}
}

// Middleware returns the http.Handler wrapper. Requests with no matching
// policy, or an empty one, pass through without a CSP header.
func (m *CSPMiddleware) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !m.config.Enabled {
				next.ServeHTTP(w, r)
				return
			}

			policy := m.selectPolicy(r.URL.Path)
			if policy == nil {
				next.ServeHTTP(w, r)
				return
			}

			if m.config.ReportOnly {
				policy = policy.ReportOnly(true)
			}

			cspValue := policy.Build()
			if cspValue == "" {
				next.ServeHTTP(w, r)
				return
			}

			headerName := policy.HeaderName()
			w.Header().Set(headerName, cspValue)

			slog.Debug("CSP header applied",
				slog.String("path", r.URL.Path),
				slog.String("header", headerName),
				slog.String("policy", cspValue),
			)

			next.ServeHTTP(w, r)
		})
	}
}

// selectPolicy picks the longest matching path-prefix policy, falling back
// to the default.
func (m *CSPMiddleware) selectPolicy(path string) *csp.CSPBuilder {
	longestPrefix := ""
	var matchedPolicy *csp.CSPBuilder

	for prefix, policy := range m.config.PathPolicies {
		if strings.HasPrefix(path, prefix) && len(prefix) > len(longestPrefix) {
			longestPrefix = prefix
			matchedPolicy = policy
		}
	}

	if matchedPolicy != nil {
		return matchedPolicy
	}

	return m.config.DefaultPolicy
}
