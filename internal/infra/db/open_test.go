package db

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearPoolEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"DB_MAX_OPEN_CONNS",
		"DB_MAX_IDLE_CONNS",
		"DB_CONN_MAX_LIFETIME",
		"DB_CONN_MAX_IDLE_TIME",
	} {
		t.Setenv(key, "")
		_ = os.Unsetenv(key)
	}
}

func TestDefaultConnectionConfig(t *testing.T) {
	cfg := DefaultConnectionConfig()

	assert.Equal(t, 25, cfg.MaxOpenConns)
	assert.Equal(t, 10, cfg.MaxIdleConns)
	assert.Equal(t, time.Hour, cfg.ConnMaxLifetime)
	assert.Equal(t, 30*time.Minute, cfg.ConnMaxIdleTime)
}

func TestConnectionConfigFromEnv(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want ConnectionConfig
	}{
		{
			name: "no overrides",
			want: DefaultConnectionConfig(),
		},
		{
			name: "all overrides applied",
			env: map[string]string{
				"DB_MAX_OPEN_CONNS":     "100",
				"DB_MAX_IDLE_CONNS":     "50",
				"DB_CONN_MAX_LIFETIME":  "2h",
				"DB_CONN_MAX_IDLE_TIME": "45m",
			},
			want: ConnectionConfig{
				MaxOpenConns:    100,
				MaxIdleConns:    50,
				ConnMaxLifetime: 2 * time.Hour,
				ConnMaxIdleTime: 45 * time.Minute,
			},
		},
		{
			name: "partial overrides keep remaining defaults",
			env: map[string]string{
				"DB_MAX_OPEN_CONNS":    "75",
				"DB_CONN_MAX_LIFETIME": "1h30m",
			},
			want: ConnectionConfig{
				MaxOpenConns:    75,
				MaxIdleConns:    10,
				ConnMaxLifetime: 90 * time.Minute,
				ConnMaxIdleTime: 30 * time.Minute,
			},
		},
		{
			name: "unparseable values keep defaults",
			env: map[string]string{
				"DB_MAX_OPEN_CONNS":     "plenty",
				"DB_MAX_IDLE_CONNS":     "abc",
				"DB_CONN_MAX_LIFETIME":  "forever",
				"DB_CONN_MAX_IDLE_TIME": "not-a-duration",
			},
			want: DefaultConnectionConfig(),
		},
		{
			name: "zero values keep defaults",
			env: map[string]string{
				"DB_MAX_OPEN_CONNS":     "0",
				"DB_MAX_IDLE_CONNS":     "0",
				"DB_CONN_MAX_LIFETIME":  "0s",
				"DB_CONN_MAX_IDLE_TIME": "0m",
			},
			want: DefaultConnectionConfig(),
		},
		{
			name: "negative values keep defaults",
			env: map[string]string{
				"DB_MAX_OPEN_CONNS":    "-10",
				"DB_CONN_MAX_LIFETIME": "-1h",
			},
			want: DefaultConnectionConfig(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearPoolEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			assert.Equal(t, tt.want, connectionConfigFromEnv())
		})
	}
}

// Open calls log.Fatal on a missing DSN or unreachable database, so the
// failure paths are covered in the end-to-end suite. With a live
// database this exercises the full pool setup.
func TestOpen_AgainstLiveDatabase(t *testing.T) {
	if os.Getenv("DATABASE_URL") == "" {
		t.Skip("DATABASE_URL not set, skipping integration test")
	}

	t.Setenv("DB_MAX_OPEN_CONNS", "50")
	t.Setenv("DB_MAX_IDLE_CONNS", "25")

	db := Open()
	defer func() { _ = db.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	require.NoError(t, db.PingContext(ctx))
	assert.Equal(t, 50, db.Stats().MaxOpenConnections)
}
