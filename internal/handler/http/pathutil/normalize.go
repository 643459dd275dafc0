package pathutil

import (
	"regexp"
	"strings"
)

// PathPattern represents a regex pattern and its corresponding normalized template.
type PathPattern struct {
	Pattern  *regexp.Regexp
	Template string
}

// pathPatterns defines the list of patterns for dynamic routes.
// Patterns are evaluated in order from most specific to least specific.
// Pre-compiled at initialization for optimal performance (<1μs per operation).
var pathPatterns = []*PathPattern{
	// Per-user routes with opaque user IDs
	{Pattern: regexp.MustCompile(`^/users/[^/]+/feed$`), Template: "/users/:id/feed"},
	{Pattern: regexp.MustCompile(`^/users/[^/]+/preference$`), Template: "/users/:id/preference"},
	{Pattern: regexp.MustCompile(`^/users/[^/]+/queue$`), Template: "/users/:id/queue"},
	{Pattern: regexp.MustCompile(`^/users/[^/]+$`), Template: "/users/:id"},

	// Video routes with UUID IDs
	{Pattern: regexp.MustCompile(`^/videos/[0-9a-fA-F-]{36}$`), Template: "/videos/:id"},

	// Admin routes with opaque user IDs
	{Pattern: regexp.MustCompile(`^/admin/users/[^/]+/queue$`), Template: "/admin/users/:id/queue"},
}

// NormalizePath normalizes dynamic URL paths to prevent metrics label cardinality explosion.
// It converts paths with IDs (e.g., /users/user-42/feed) to template format
// (e.g., /users/:id/feed). Static paths remain unchanged.
//
// Performance: <1μs per operation (pre-compiled regex patterns)
//
// Examples:
//
//	NormalizePath("/users/user-42/feed")        // "/users/:id/feed"
//	NormalizePath("/users/user-7/preference")   // "/users/:id/preference"
//	NormalizePath("/admin/queue/stats")         // "/admin/queue/stats" (unchanged)
//	NormalizePath("/health")                    // "/health" (unchanged)
//	NormalizePath("/metrics")                   // "/metrics" (unchanged)
//	NormalizePath("/unknown/path/123")          // "/unknown/path/123" (no match, return original)
//
// Query parameters and trailing slashes are handled:
//
//	NormalizePath("/users/user-42/feed?limit=10")  // "/users/:id/feed"
//	NormalizePath("/users/user-42/feed/")          // "/users/:id/feed"
func NormalizePath(path string) string {
	// Strip query parameters if present
	if idx := strings.IndexByte(path, '?'); idx != -1 {
		path = path[:idx]
	}

	// Strip trailing slash if present (except for root path)
	if len(path) > 1 && path[len(path)-1] == '/' {
		path = path[:len(path)-1]
	}

	// Try to match against known patterns
	for _, p := range pathPatterns {
		if p.Pattern.MatchString(path) {
			return p.Template
		}
	}

	// No match found, return original path
	// This is safe - static paths like /health, /metrics, /admin/queue/stats
	// will pass through unchanged
	return path
}

// GetExpectedCardinality returns the expected number of unique path labels
// after normalization. This is useful for capacity planning and monitoring.
//
// Expected cardinality calculation:
//   - Static endpoints: ~8-10 (health, metrics, admin stats, etc.)
//   - Template endpoints: ~6 (users/:id/feed, videos/:id, etc.)
//   - Total: ~15-20 unique path labels
func GetExpectedCardinality() int {
	// Count template patterns
	templateCount := len(pathPatterns)

	// Estimate static endpoints
	staticCount := 10 // /health, /metrics, /admin/queue/stats, etc.

	// Total expected cardinality
	return templateCount + staticCount
}
