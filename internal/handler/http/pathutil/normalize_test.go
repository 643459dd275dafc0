package pathutil

import (
	"testing"
)

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		expected string
	}{
		// Per-user routes with IDs (should be normalized)
		{
			name:     "user feed",
			path:     "/users/user-42/feed",
			expected: "/users/:id/feed",
		},
		{
			name:     "user feed with uuid id",
			path:     "/users/550e8400-e29b-41d4-a716-446655440000/feed",
			expected: "/users/:id/feed",
		},
		{
			name:     "user feed with trailing slash",
			path:     "/users/user-42/feed/",
			expected: "/users/:id/feed",
		},
		{
			name:     "user feed with query params",
			path:     "/users/user-42/feed?limit=10&cursor=abc",
			expected: "/users/:id/feed",
		},
		{
			name:     "user preference",
			path:     "/users/user-7/preference",
			expected: "/users/:id/preference",
		},
		{
			name:     "user queue",
			path:     "/users/user-7/queue",
			expected: "/users/:id/queue",
		},
		{
			name:     "bare user",
			path:     "/users/user-7",
			expected: "/users/:id",
		},

		// Video routes with UUID IDs (should be normalized)
		{
			name:     "video by uuid",
			path:     "/videos/550e8400-e29b-41d4-a716-446655440000",
			expected: "/videos/:id",
		},

		// Admin routes with IDs (should be normalized)
		{
			name:     "admin user queue",
			path:     "/admin/users/user-42/queue",
			expected: "/admin/users/:id/queue",
		},

		// Static paths (should remain unchanged)
		{
			name:     "health endpoint",
			path:     "/health",
			expected: "/health",
		},
		{
			name:     "readiness endpoint",
			path:     "/health/ready",
			expected: "/health/ready",
		},
		{
			name:     "metrics endpoint",
			path:     "/metrics",
			expected: "/metrics",
		},
		{
			name:     "admin queue stats",
			path:     "/admin/queue/stats",
			expected: "/admin/queue/stats",
		},
		{
			name:     "admin workers",
			path:     "/admin/workers",
			expected: "/admin/workers",
		},

		// Non-matching paths (should remain unchanged)
		{
			name:     "unknown path",
			path:     "/unknown/path/123",
			expected: "/unknown/path/123",
		},
		{
			name:     "user with extra segment",
			path:     "/users/user-42/feed/extra",
			expected: "/users/user-42/feed/extra",
		},
		{
			name:     "root path",
			path:     "/",
			expected: "/",
		},
		{
			name:     "empty path",
			path:     "",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizePath(tt.path)
			if got != tt.expected {
				t.Errorf("NormalizePath(%q) = %q, want %q", tt.path, got, tt.expected)
			}
		})
	}
}

func TestGetExpectedCardinality(t *testing.T) {
	cardinality := GetExpectedCardinality()
	if cardinality <= 0 {
		t.Errorf("GetExpectedCardinality() = %d, want > 0", cardinality)
	}
	if cardinality > 50 {
		t.Errorf("GetExpectedCardinality() = %d, want <= 50 to keep label cardinality bounded", cardinality)
	}
}
