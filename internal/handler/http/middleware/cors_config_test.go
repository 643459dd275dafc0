package middleware

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvConfigSource_LoadOrigins(t *testing.T) {
	source := &EnvConfigSource{}

	t.Run("valid list", func(t *testing.T) {
		t.Setenv("CORS_ALLOWED_ORIGINS", "https://feed.example.com, http://localhost:3000")

		origins, err := source.LoadOrigins()
		require.NoError(t, err)
		assert.Equal(t, []string{"https://feed.example.com", "http://localhost:3000"}, origins)
	})

	t.Run("unset fails closed", func(t *testing.T) {
		t.Setenv("CORS_ALLOWED_ORIGINS", "")

		_, err := source.LoadOrigins()
		assert.ErrorContains(t, err, "CORS_ALLOWED_ORIGINS")
	})

	invalid := []struct {
		name  string
		value string
	}{
		{"bad scheme", "ftp://feed.example.com"},
		{"has path", "https://feed.example.com/users"},
		{"has query", "https://feed.example.com?user=1"},
		{"has fragment", "https://feed.example.com#feed"},
		{"trailing slash", "https://feed.example.com/"},
		{"only commas", ",,,"},
	}
	for _, tc := range invalid {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("CORS_ALLOWED_ORIGINS", tc.value)

			_, err := source.LoadOrigins()
			assert.Error(t, err)
		})
	}
}

func TestEnvConfigSource_LoadMethods(t *testing.T) {
	source := &EnvConfigSource{}

	t.Run("default when unset", func(t *testing.T) {
		t.Setenv("CORS_ALLOWED_METHODS", "")

		methods, err := source.LoadMethods()
		require.NoError(t, err)
		assert.Equal(t, []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"}, methods)
	})

	t.Run("custom list uppercased", func(t *testing.T) {
		t.Setenv("CORS_ALLOWED_METHODS", "get, post")

		methods, err := source.LoadMethods()
		require.NoError(t, err)
		assert.Equal(t, []string{"GET", "POST"}, methods)
	})

	t.Run("unknown verb rejected", func(t *testing.T) {
		t.Setenv("CORS_ALLOWED_METHODS", "GET,TRACE")

		_, err := source.LoadMethods()
		assert.ErrorContains(t, err, "invalid HTTP method")
	})
}

func TestEnvConfigSource_LoadHeaders(t *testing.T) {
	source := &EnvConfigSource{}

	t.Run("default when unset", func(t *testing.T) {
		t.Setenv("CORS_ALLOWED_HEADERS", "")

		headers, err := source.LoadHeaders()
		require.NoError(t, err)
		assert.Equal(t, []string{"Content-Type", "Authorization", "X-Request-ID", "X-Trace-ID"}, headers)
	})

	t.Run("custom list", func(t *testing.T) {
		t.Setenv("CORS_ALLOWED_HEADERS", "Content-Type, X-Feed-Cursor")

		headers, err := source.LoadHeaders()
		require.NoError(t, err)
		assert.Equal(t, []string{"Content-Type", "X-Feed-Cursor"}, headers)
	})

	t.Run("only commas rejected", func(t *testing.T) {
		t.Setenv("CORS_ALLOWED_HEADERS", ",,")

		_, err := source.LoadHeaders()
		assert.Error(t, err)
	})
}

func TestEnvConfigSource_LoadMaxAge(t *testing.T) {
	source := &EnvConfigSource{}

	t.Run("default when unset", func(t *testing.T) {
		t.Setenv("CORS_MAX_AGE", "")

		maxAge, err := source.LoadMaxAge()
		require.NoError(t, err)
		assert.Equal(t, 86400, maxAge)
	})

	t.Run("custom value", func(t *testing.T) {
		t.Setenv("CORS_MAX_AGE", "600")

		maxAge, err := source.LoadMaxAge()
		require.NoError(t, err)
		assert.Equal(t, 600, maxAge)
	})

	t.Run("zero disables caching", func(t *testing.T) {
		t.Setenv("CORS_MAX_AGE", "0")

		maxAge, err := source.LoadMaxAge()
		require.NoError(t, err)
		assert.Equal(t, 0, maxAge)
	})

	t.Run("negative rejected", func(t *testing.T) {
		t.Setenv("CORS_MAX_AGE", "-1")

		_, err := source.LoadMaxAge()
		assert.ErrorContains(t, err, "non-negative")
	})

	t.Run("non-numeric rejected", func(t *testing.T) {
		t.Setenv("CORS_MAX_AGE", "one hour")

		_, err := source.LoadMaxAge()
		assert.Error(t, err)
	})
}

// fakeConfigSource drives LoadCORSConfigFromSource without environment
// variables.
type fakeConfigSource struct {
	origins    []string
	originsErr error
	methodsErr error
	headersErr error
	maxAgeErr  error
}

func (s *fakeConfigSource) LoadOrigins() ([]string, error) {
	if s.originsErr != nil {
		return nil, s.originsErr
	}
	return s.origins, nil
}

func (s *fakeConfigSource) LoadMethods() ([]string, error) {
	if s.methodsErr != nil {
		return nil, s.methodsErr
	}
	return []string{"GET", "POST"}, nil
}

func (s *fakeConfigSource) LoadHeaders() ([]string, error) {
	if s.headersErr != nil {
		return nil, s.headersErr
	}
	return []string{"Content-Type"}, nil
}

func (s *fakeConfigSource) LoadMaxAge() (int, error) {
	if s.maxAgeErr != nil {
		return 0, s.maxAgeErr
	}
	return 3600, nil
}

func TestLoadCORSConfigFromSource(t *testing.T) {
	t.Run("builds config with whitelist validator", func(t *testing.T) {
		source := &fakeConfigSource{origins: []string{"https://feed.example.com"}}

		cfg, err := LoadCORSConfigFromSource(source, &NoOpLogger{})
		require.NoError(t, err)

		assert.Equal(t, []string{"https://feed.example.com"}, cfg.AllowedOrigins)
		assert.True(t, cfg.AllowCredentials)
		assert.Equal(t, 3600, cfg.MaxAge)
		assert.True(t, cfg.Validator.IsAllowed("https://feed.example.com"))
		assert.False(t, cfg.Validator.IsAllowed("https://other.example.org"))
	})

	t.Run("propagates source errors", func(t *testing.T) {
		boom := fmt.Errorf("backing store unavailable")
		cases := []struct {
			name   string
			source *fakeConfigSource
			msg    string
		}{
			{"origins", &fakeConfigSource{originsErr: boom}, "allowed origins"},
			{"methods", &fakeConfigSource{origins: []string{"https://a.example"}, methodsErr: boom}, "allowed methods"},
			{"headers", &fakeConfigSource{origins: []string{"https://a.example"}, headersErr: boom}, "allowed headers"},
			{"max age", &fakeConfigSource{origins: []string{"https://a.example"}, maxAgeErr: boom}, "max age"},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				_, err := LoadCORSConfigFromSource(tc.source, nil)
				assert.ErrorContains(t, err, tc.msg)
			})
		}
	})
}
