package worker

import (
	"fmt"
	"log/slog"
	"time"

	"infinite-feed/internal/pkg/config"
)

// WorkerConfig holds the configuration for the worker process: the polling
// loop, the bounded task pool, lease reclamation, and the maintenance
// schedule.
//
// Configuration sources:
//   - Environment variables (loaded via LoadConfigFromEnv)
//   - Default values (provided by DefaultConfig)
//
// All fields have defaults and validation rules so the worker can start
// safely even with invalid or missing configuration.
type WorkerConfig struct {
	// PollInterval is the delay between claim attempts when the queue is
	// empty or the worker is at capacity.
	// Range: 100ms-1m
	// Default: 2s
	PollInterval time.Duration

	// MaxConcurrent is the maximum number of in-flight generation tasks.
	// When at capacity the worker skips claiming until a slot frees.
	// Range: 1-16
	// Default: 2
	MaxConcurrent int

	// TaskTimeout is the wall-clock bound for a single dispatched task.
	// On expiry the task is abandoned and the item is failed.
	// Range: 10s-30m
	// Default: 5 minutes
	TaskTimeout time.Duration

	// ClaimLease is how long a claim may stay in_progress before the
	// reclamation job returns the item to pending. Must exceed TaskTimeout
	// so a live task is never reclaimed out from under its worker.
	// Range: 1m-2h
	// Default: 10 minutes
	ClaimLease time.Duration

	// HeartbeatInterval is how often the worker refreshes its record.
	// Range: 1s-5m
	// Default: 15s
	HeartbeatInterval time.Duration

	// StaleWorkerAfter is the staleness window after which the pool manager
	// reaps a worker record. Should be several heartbeat intervals.
	// Range: 10s-1h
	// Default: 1 minute
	StaleWorkerAfter time.Duration

	// MaxAttempts bounds the retry budget of a queue item.
	// Range: 1-10
	// Default: 3
	MaxAttempts int

	// PendingBacklogLimit is the pending-item count above which the pool
	// manager reports warning health.
	// Range: 1-100000
	// Default: 100
	PendingBacklogLimit int

	// MaintenanceSchedule is the cron expression for the reclaim/reap jobs.
	// Format: "minute hour day month weekday"
	// Default: "* * * * *" (every minute)
	MaintenanceSchedule string

	// Timezone is the IANA timezone name for cron scheduling.
	// Default: "UTC"
	Timezone string

	// HealthPort is the port number for the health check HTTP server.
	// Range: 1024-65535
	// Default: 9091
	HealthPort int
}

// DefaultConfig returns a WorkerConfig with production defaults. The task
// timeout leaves headroom under the claim lease so live tasks are never
// reclaimed, and the staleness window covers four missed heartbeats.
func DefaultConfig() WorkerConfig {
	return WorkerConfig{
		PollInterval:        2 * time.Second,
		MaxConcurrent:       2,
		TaskTimeout:         5 * time.Minute,
		ClaimLease:          10 * time.Minute,
		HeartbeatInterval:   15 * time.Second,
		StaleWorkerAfter:    1 * time.Minute,
		MaxAttempts:         3,
		PendingBacklogLimit: 100,
		MaintenanceSchedule: "* * * * *",
		Timezone:            "UTC",
		HealthPort:          9091,
	}
}

// Validate checks the configuration values using the reusable validators
// from internal/pkg/config. All failures are collected and returned
// together.
func (c *WorkerConfig) Validate() error {
	var errors []error

	if err := config.ValidateDuration(c.PollInterval, 100*time.Millisecond, 1*time.Minute); err != nil {
		errors = append(errors, fmt.Errorf("poll interval: %w", err))
	}
	if err := config.ValidateIntRange(c.MaxConcurrent, 1, 16); err != nil {
		errors = append(errors, fmt.Errorf("max concurrent: %w", err))
	}
	if err := config.ValidateDuration(c.TaskTimeout, 10*time.Second, 30*time.Minute); err != nil {
		errors = append(errors, fmt.Errorf("task timeout: %w", err))
	}
	if err := config.ValidateDuration(c.ClaimLease, 1*time.Minute, 2*time.Hour); err != nil {
		errors = append(errors, fmt.Errorf("claim lease: %w", err))
	}
	if c.ClaimLease <= c.TaskTimeout {
		errors = append(errors, fmt.Errorf("claim lease must exceed task timeout"))
	}
	if err := config.ValidateDuration(c.HeartbeatInterval, 1*time.Second, 5*time.Minute); err != nil {
		errors = append(errors, fmt.Errorf("heartbeat interval: %w", err))
	}
	if err := config.ValidateDuration(c.StaleWorkerAfter, 10*time.Second, 1*time.Hour); err != nil {
		errors = append(errors, fmt.Errorf("stale worker after: %w", err))
	}
	if err := config.ValidateIntRange(c.MaxAttempts, 1, 10); err != nil {
		errors = append(errors, fmt.Errorf("max attempts: %w", err))
	}
	if err := config.ValidateIntRange(c.PendingBacklogLimit, 1, 100000); err != nil {
		errors = append(errors, fmt.Errorf("pending backlog limit: %w", err))
	}
	if err := config.ValidateCronSchedule(c.MaintenanceSchedule); err != nil {
		errors = append(errors, fmt.Errorf("maintenance schedule: %w", err))
	}
	if err := config.ValidateTimezone(c.Timezone); err != nil {
		errors = append(errors, fmt.Errorf("timezone: %w", err))
	}
	if err := config.ValidateIntRange(c.HealthPort, 1024, 65535); err != nil {
		errors = append(errors, fmt.Errorf("health port: %w", err))
	}

	if len(errors) > 0 {
		return fmt.Errorf("validation failed: %v", errors)
	}

	return nil
}

// LoadConfigFromEnv loads worker configuration from environment variables
// with validation and automatic fallback to default values on failure.
//
// Fail-open strategy:
//  1. Start with DefaultConfig() as base
//  2. Load each field from its environment variable
//  3. If validation fails: use the default, log a warning, record metrics
//  4. Never return an error - always return a valid configuration
//
// Environment variables:
//   - POLL_INTERVAL: duration (default: "2s")
//   - MAX_CONCURRENT: integer 1-16 (default: 2)
//   - TASK_TIMEOUT: duration (default: "5m")
//   - CLAIM_LEASE: duration (default: "10m")
//   - HEARTBEAT_INTERVAL: duration (default: "15s")
//   - STALE_WORKER_AFTER: duration (default: "1m")
//   - MAX_ATTEMPTS: integer 1-10 (default: 3)
//   - PENDING_BACKLOG_LIMIT: integer (default: 100)
//   - MAINTENANCE_SCHEDULE: cron expression (default: "* * * * *")
//   - WORKER_TIMEZONE: IANA timezone name (default: "UTC")
//   - WORKER_HEALTH_PORT: integer 1024-65535 (default: 9091)
func LoadConfigFromEnv(logger *slog.Logger, metrics *WorkerMetrics) (*WorkerConfig, error) {
	cfg := DefaultConfig()
	fallbackApplied := false

	loadDuration := func(envKey, field string, target *time.Duration, min, max time.Duration) {
		result := config.LoadEnvDuration(envKey, *target, func(d time.Duration) error {
			return config.ValidateDuration(d, min, max)
		})
		*target = result.Value.(time.Duration)
		if result.FallbackApplied {
			fallbackApplied = true
			metrics.RecordValidationError(field)
			metrics.RecordFallback(field, "default")
			for _, warning := range result.Warnings {
				logger.Warn("Configuration fallback applied",
					slog.String("field", field),
					slog.String("env_key", envKey),
					slog.String("warning", warning))
			}
		}
	}

	loadInt := func(envKey, field string, target *int, min, max int) {
		result := config.LoadEnvInt(envKey, *target, func(v int) error {
			return config.ValidateIntRange(v, min, max)
		})
		*target = result.Value.(int)
		if result.FallbackApplied {
			fallbackApplied = true
			metrics.RecordValidationError(field)
			metrics.RecordFallback(field, "default")
			for _, warning := range result.Warnings {
				logger.Warn("Configuration fallback applied",
					slog.String("field", field),
					slog.String("env_key", envKey),
					slog.String("warning", warning))
			}
		}
	}

	loadDuration("POLL_INTERVAL", "poll_interval", &cfg.PollInterval, 100*time.Millisecond, 1*time.Minute)
	loadInt("MAX_CONCURRENT", "max_concurrent", &cfg.MaxConcurrent, 1, 16)
	loadDuration("TASK_TIMEOUT", "task_timeout", &cfg.TaskTimeout, 10*time.Second, 30*time.Minute)
	loadDuration("CLAIM_LEASE", "claim_lease", &cfg.ClaimLease, 1*time.Minute, 2*time.Hour)
	loadDuration("HEARTBEAT_INTERVAL", "heartbeat_interval", &cfg.HeartbeatInterval, 1*time.Second, 5*time.Minute)
	loadDuration("STALE_WORKER_AFTER", "stale_worker_after", &cfg.StaleWorkerAfter, 10*time.Second, 1*time.Hour)
	loadInt("MAX_ATTEMPTS", "max_attempts", &cfg.MaxAttempts, 1, 10)
	loadInt("PENDING_BACKLOG_LIMIT", "pending_backlog_limit", &cfg.PendingBacklogLimit, 1, 100000)

	result := config.LoadEnvWithFallback("MAINTENANCE_SCHEDULE", cfg.MaintenanceSchedule, config.ValidateCronSchedule)
	cfg.MaintenanceSchedule = result.Value.(string)
	if result.FallbackApplied {
		fallbackApplied = true
		metrics.RecordValidationError("maintenance_schedule")
		metrics.RecordFallback("maintenance_schedule", "default")
		for _, warning := range result.Warnings {
			logger.Warn("Configuration fallback applied",
				slog.String("field", "maintenance_schedule"),
				slog.String("warning", warning))
		}
	}

	result = config.LoadEnvWithFallback("WORKER_TIMEZONE", cfg.Timezone, config.ValidateTimezone)
	cfg.Timezone = result.Value.(string)
	if result.FallbackApplied {
		fallbackApplied = true
		metrics.RecordValidationError("timezone")
		metrics.RecordFallback("timezone", "default")
		for _, warning := range result.Warnings {
			logger.Warn("Configuration fallback applied",
				slog.String("field", "timezone"),
				slog.String("warning", warning))
		}
	}

	loadInt("WORKER_HEALTH_PORT", "health_port", &cfg.HealthPort, 1024, 65535)

	// The lease/timeout relationship cannot be validated field by field. If
	// the loaded combination is inconsistent, restore both defaults.
	if cfg.ClaimLease <= cfg.TaskTimeout {
		defaults := DefaultConfig()
		logger.Warn("Configuration fallback applied",
			slog.String("field", "claim_lease"),
			slog.String("warning", "claim lease must exceed task timeout, using defaults for both"))
		cfg.ClaimLease = defaults.ClaimLease
		cfg.TaskTimeout = defaults.TaskTimeout
		fallbackApplied = true
		metrics.RecordValidationError("claim_lease")
		metrics.RecordFallback("claim_lease", "default")
	}

	metrics.SetFallbackActive("", fallbackApplied)
	metrics.RecordLoadTimestamp()

	// Always return valid config (fail-open strategy)
	return &cfg, nil
}
