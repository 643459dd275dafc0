package pagination_test

import (
	"testing"

	"infinite-feed/internal/common/pagination"
)

func TestDefaultConfig(t *testing.T) {
	t.Parallel()

	got := pagination.DefaultConfig()
	want := pagination.Config{DefaultPage: 1, DefaultLimit: 20, MaxLimit: 100}
	if got != want {
		t.Errorf("DefaultConfig() = %+v, want %+v", got, want)
	}
}

func TestLoadFromEnv(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want pagination.Config
	}{
		{
			name: "all variables set",
			env: map[string]string{
				"PAGINATION_DEFAULT_PAGE":  "2",
				"PAGINATION_DEFAULT_LIMIT": "30",
				"PAGINATION_MAX_LIMIT":     "200",
			},
			want: pagination.Config{DefaultPage: 2, DefaultLimit: 30, MaxLimit: 200},
		},
		{
			name: "nothing set falls back to defaults",
			env: map[string]string{
				"PAGINATION_DEFAULT_PAGE":  "",
				"PAGINATION_DEFAULT_LIMIT": "",
				"PAGINATION_MAX_LIMIT":     "",
			},
			want: pagination.DefaultConfig(),
		},
		{
			name: "unparseable values fall back to defaults",
			env: map[string]string{
				"PAGINATION_DEFAULT_PAGE":  "first",
				"PAGINATION_DEFAULT_LIMIT": "twenty",
				"PAGINATION_MAX_LIMIT":     "lots",
			},
			want: pagination.DefaultConfig(),
		},
		{
			name: "partial override keeps defaults for the rest",
			env: map[string]string{
				"PAGINATION_DEFAULT_PAGE":  "3",
				"PAGINATION_DEFAULT_LIMIT": "",
				"PAGINATION_MAX_LIMIT":     "",
			},
			want: pagination.Config{DefaultPage: 3, DefaultLimit: 20, MaxLimit: 100},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for key, value := range tt.env {
				t.Setenv(key, value)
			}

			if got := pagination.LoadFromEnv(); got != tt.want {
				t.Errorf("LoadFromEnv() = %+v, want %+v", got, tt.want)
			}
		})
	}
}
