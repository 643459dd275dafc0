package pagination_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"infinite-feed/internal/common/pagination"
)

var feedPageConfig = pagination.Config{
	DefaultPage:  1,
	DefaultLimit: 20,
	MaxLimit:     100,
}

func feedRequest(t *testing.T, query string) *http.Request {
	t.Helper()
	return httptest.NewRequest(http.MethodGet, "/users/user-1/feed?"+query, nil)
}

func TestParseQueryParams(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		query     string
		wantPage  int
		wantLimit int
		wantErr   string
	}{
		{name: "page and limit given", query: "page=2&limit=30", wantPage: 2, wantLimit: 30},
		{name: "bare feed request uses defaults", query: "", wantPage: 1, wantLimit: 20},
		{name: "page only keeps default limit", query: "page=3", wantPage: 3, wantLimit: 20},
		{name: "limit only keeps first page", query: "limit=50", wantPage: 1, wantLimit: 50},
		{name: "smallest valid window", query: "page=1&limit=1", wantPage: 1, wantLimit: 1},
		{name: "limit at cap", query: "limit=100", wantPage: 1, wantLimit: 100},
		{name: "deep scroll", query: "page=999", wantPage: 999, wantLimit: 20},
		{name: "negative page", query: "page=-1", wantErr: "page must be a positive integer"},
		{name: "zero page", query: "page=0", wantErr: "page must be a positive integer"},
		{name: "non-numeric page", query: "page=first", wantErr: "page must be a positive integer"},
		{name: "negative limit", query: "limit=-10", wantErr: "limit must be between 1 and 100"},
		{name: "zero limit", query: "limit=0", wantErr: "limit must be between 1 and 100"},
		{name: "limit over cap", query: "limit=101", wantErr: "limit must be between 1 and 100"},
		{name: "non-numeric limit", query: "limit=all", wantErr: "limit must be between 1 and 100"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := pagination.ParseQueryParams(feedRequest(t, tt.query), feedPageConfig)

			if tt.wantErr != "" {
				if err == nil {
					t.Fatalf("ParseQueryParams(%q) error = nil, want %q", tt.query, tt.wantErr)
				}
				if !strings.Contains(err.Error(), tt.wantErr) {
					t.Errorf("ParseQueryParams(%q) error = %q, want it to contain %q", tt.query, err, tt.wantErr)
				}
				return
			}

			if err != nil {
				t.Fatalf("ParseQueryParams(%q) unexpected error: %v", tt.query, err)
			}
			if got.Page != tt.wantPage || got.Limit != tt.wantLimit {
				t.Errorf("ParseQueryParams(%q) = {Page:%d Limit:%d}, want {Page:%d Limit:%d}",
					tt.query, got.Page, got.Limit, tt.wantPage, tt.wantLimit)
			}
		})
	}
}
