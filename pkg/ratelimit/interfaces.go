package ratelimit

import (
	"context"
	"time"
)

// RateLimitStore stores request timestamps per key. Keys are opaque to
// the store; callers use prefixed client addresses ("ip:...") and hashed
// user IDs ("user:..."). Implementations must be safe for concurrent
// use.
type RateLimitStore interface {
	// AddRequest records a request timestamp for the key.
	AddRequest(ctx context.Context, key string, timestamp time.Time) error

	// GetRequests returns the key's timestamps newer than cutoff.
	GetRequests(ctx context.Context, key string, cutoff time.Time) ([]time.Time, error)

	// GetRequestCount counts the key's timestamps newer than cutoff.
	GetRequestCount(ctx context.Context, key string, cutoff time.Time) (int, error)

	// Cleanup removes timestamps at or before cutoff.
	Cleanup(ctx context.Context, cutoff time.Time) error

	// KeyCount returns the number of tracked keys.
	KeyCount(ctx context.Context) (int, error)

	// MemoryUsage estimates the store's footprint in bytes. The memory
	// pressure check uses this to decide when to degrade.
	MemoryUsage(ctx context.Context) (int64, error)
}

// AtomicRateLimitStore extends RateLimitStore with a combined
// check-and-add. The check and the add must happen under a single lock
// acquisition so concurrent requests for one key cannot race past the
// limit between the two steps.
type AtomicRateLimitStore interface {
	RateLimitStore

	// CheckAndAddRequest counts the key's requests after cutoff and
	// records the new timestamp when under limit. Returns whether the
	// request was admitted and the count after any add.
	CheckAndAddRequest(ctx context.Context, key string, timestamp time.Time, cutoff time.Time, limit int) (allowed bool, count int, err error)
}

// RateLimitAlgorithm decides whether a request fits the limit.
type RateLimitAlgorithm interface {
	// IsAllowed checks the key against limit within window, consulting
	// and updating the store.
	IsAllowed(ctx context.Context, key string, store RateLimitStore, limit int, window time.Duration) (*RateLimitDecision, error)

	// GetWindowDuration returns the window last used, for retry-after
	// and reset-time math.
	GetWindowDuration() time.Duration
}

// RateLimitMetrics records limiter activity. The Prometheus
// implementation lives in metrics_prometheus.go; tests embed NoOpMetrics
// and override what they observe.
type RateLimitMetrics interface {
	// RecordRequest counts a rate limit check for an endpoint.
	RecordRequest(limiterType, endpoint string)

	// RecordDenied counts a denied request.
	RecordDenied(limiterType, endpoint string)

	// RecordAllowed counts an admitted request.
	RecordAllowed(limiterType, endpoint string)

	// RecordCheckDuration observes how long a limit check took.
	RecordCheckDuration(limiterType string, duration time.Duration)

	// SetActiveKeys gauges the number of tracked keys.
	SetActiveKeys(limiterType string, count int)

	// RecordCircuitState gauges the breaker state ("closed", "open",
	// "half-open").
	RecordCircuitState(limiterType, state string)

	// RecordDegradationLevel gauges the degradation level (0 normal
	// through 3 disabled).
	RecordDegradationLevel(limiterType string, level int)

	// RecordEviction counts keys evicted from the store.
	RecordEviction(limiterType string, count int)
}

// Clock abstracts time.Now for tests.
type Clock interface {
	Now() time.Time
}

// SystemClock is the production Clock.
type SystemClock struct{}

func (c *SystemClock) Now() time.Time {
	return time.Now()
}
