package http

import (
	"context"
	"log/slog"
	"time"

	"infinite-feed/pkg/config"
	"infinite-feed/pkg/ratelimit"
)

// memoryWarningThresholdMB is where the store is considered under pressure.
const memoryWarningThresholdMB = 80

// MemoryPressureReporter receives store memory pressure signals from the
// cleanup loop. The degradation manager implements it so a store approaching
// capacity relaxes the limits instead of evicting live counters.
type MemoryPressureReporter interface {
	OnHighMemoryPressure()
	OnNormalMemoryPressure()
}

// StartRateLimitCleanup periodically removes expired timestamps from the rate
// limit store so long-lived processes do not accumulate stale counters. The
// cutoff is 2x the window so in-flight sliding window reads never lose data
// they still need. Stops when ctx is cancelled.
//
// pressure may be nil; when set, it is notified after each pass whether the
// store's memory usage is above or below the warning threshold.
func StartRateLimitCleanup(
	ctx context.Context,
	store *ratelimit.InMemoryRateLimitStore,
	interval time.Duration,
	windowDuration time.Duration,
	limiterType string,
	pressure MemoryPressureReporter,
) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	slog.Info("rate limit cleanup started",
		slog.String("limiter_type", limiterType),
		slog.Duration("interval", interval),
		slog.Duration("window_duration", windowDuration))

	for {
		select {
		case <-ctx.Done():
			slog.Info("rate limit cleanup stopped",
				slog.String("limiter_type", limiterType))
			return

		case <-ticker.C:
			cutoff := time.Now().Add(-2 * windowDuration)
			cleanupPass(ctx, store, cutoff, limiterType, pressure)
		}
	}
}

// cleanupPass runs one sweep and reports the store's memory pressure. A
// failed stat or sweep skips the pass; the next tick retries.
func cleanupPass(
	ctx context.Context,
	store *ratelimit.InMemoryRateLimitStore,
	cutoff time.Time,
	limiterType string,
	pressure MemoryPressureReporter,
) {
	keysBefore, memoryBefore, ok := storeStats(ctx, store, limiterType, "before cleanup")
	if !ok {
		return
	}

	if err := store.Cleanup(ctx, cutoff); err != nil {
		slog.Error("rate limit cleanup failed",
			slog.String("limiter_type", limiterType),
			slog.Any("error", err))
		return
	}

	keysAfter, memoryAfter, ok := storeStats(ctx, store, limiterType, "after cleanup")
	if !ok {
		return
	}

	slog.Debug("rate limit cleanup completed",
		slog.String("limiter_type", limiterType),
		slog.Int("active_keys_before", keysBefore),
		slog.Int("active_keys_after", keysAfter),
		slog.Int("keys_removed", keysBefore-keysAfter),
		slog.Int64("memory_freed_bytes", memoryBefore-memoryAfter),
		slog.Time("cutoff_time", cutoff))

	currentMemoryMB := float64(memoryAfter) / (1024 * 1024)
	if currentMemoryMB > memoryWarningThresholdMB {
		slog.Warn("rate limit store memory usage is high",
			slog.String("limiter_type", limiterType),
			slog.Float64("memory_usage_mb", currentMemoryMB),
			slog.Int("active_keys", keysAfter))
		if pressure != nil {
			pressure.OnHighMemoryPressure()
		}
	} else if pressure != nil {
		pressure.OnNormalMemoryPressure()
	}
}

func storeStats(ctx context.Context, store *ratelimit.InMemoryRateLimitStore, limiterType, stage string) (keys int, memory int64, ok bool) {
	keys, err := store.KeyCount(ctx)
	if err != nil {
		slog.Error("failed to get key count "+stage,
			slog.String("limiter_type", limiterType),
			slog.Any("error", err))
		return 0, 0, false
	}
	memory, err = store.MemoryUsage(ctx)
	if err != nil {
		slog.Error("failed to get memory usage "+stage,
			slog.String("limiter_type", limiterType),
			slog.Any("error", err))
		return 0, 0, false
	}
	return keys, memory, true
}

// CleanupConfig holds configuration for rate limit cleanup.
type CleanupConfig struct {
	// Interval specifies how often to run cleanup. Default: 5 minutes
	Interval time.Duration
}

// DefaultCleanupInterval is the default cleanup interval if not specified.
const DefaultCleanupInterval = 5 * time.Minute

// LoadCleanupConfigFromEnv loads cleanup configuration from environment
// variables. RATELIMIT_CLEANUP_INTERVAL sets the interval; invalid values
// fall back to the default rather than failing startup.
func LoadCleanupConfigFromEnv() CleanupConfig {
	return CleanupConfig{
		Interval: config.GetEnvDuration("RATELIMIT_CLEANUP_INTERVAL", DefaultCleanupInterval),
	}
}
