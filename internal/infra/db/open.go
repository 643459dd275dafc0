package db

import (
	"context"
	"database/sql"
	"log"
	"log/slog"
	"os"
	"strconv"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// ConnectionConfig sizes the connection pool shared by the API handlers
// and the queue workers.
type ConnectionConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// DefaultConnectionConfig returns the production pool defaults.
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		MaxOpenConns:    25,
		MaxIdleConns:    10,
		ConnMaxLifetime: time.Hour,
		ConnMaxIdleTime: 30 * time.Minute,
	}
}

// Open connects to the queue database named by DATABASE_URL, applies the
// pool settings from the DB_* variables, and verifies the connection
// with a ping. Startup aborts on a missing DSN or an unreachable
// database rather than serving requests that would all fail.
func Open() *sql.DB {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL not set")
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		log.Fatal(err)
	}

	cfg := connectionConfigFromEnv()
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	slog.Info("database connection pool configured",
		slog.Int("max_open_conns", cfg.MaxOpenConns),
		slog.Int("max_idle_conns", cfg.MaxIdleConns),
		slog.Duration("conn_max_lifetime", cfg.ConnMaxLifetime),
		slog.Duration("conn_max_idle_time", cfg.ConnMaxIdleTime))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		log.Fatalf("failed to ping database: %v", err)
	}

	slog.Info("database connection established successfully")
	return db
}

// connectionConfigFromEnv overlays DB_MAX_OPEN_CONNS, DB_MAX_IDLE_CONNS,
// DB_CONN_MAX_LIFETIME, and DB_CONN_MAX_IDLE_TIME onto the defaults.
// Unparseable or non-positive values keep the default.
func connectionConfigFromEnv() ConnectionConfig {
	cfg := DefaultConnectionConfig()
	overlayInt("DB_MAX_OPEN_CONNS", &cfg.MaxOpenConns)
	overlayInt("DB_MAX_IDLE_CONNS", &cfg.MaxIdleConns)
	overlayDuration("DB_CONN_MAX_LIFETIME", &cfg.ConnMaxLifetime)
	overlayDuration("DB_CONN_MAX_IDLE_TIME", &cfg.ConnMaxIdleTime)
	return cfg
}

func overlayInt(name string, dst *int) {
	if v, err := strconv.Atoi(os.Getenv(name)); err == nil && v > 0 {
		*dst = v
	}
}

func overlayDuration(name string, dst *time.Duration) {
	if v, err := time.ParseDuration(os.Getenv(name)); err == nil && v > 0 {
		*dst = v
	}
}
