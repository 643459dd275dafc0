package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// SlidingWindowAlgorithm counts individual request timestamps inside a
// sliding time window, avoiding the boundary bursts a fixed window
// allows. It also guards against the system clock moving backwards: a
// per-key last-seen timestamp is kept so an NTP step cannot reopen a
// spent window.
type SlidingWindowAlgorithm struct {
	clock Clock

	mu             sync.RWMutex
	lastTimestamps map[string]time.Time

	// windowDuration is the window last passed to IsAllowed, exposed via
	// GetWindowDuration for retry-after math.
	windowDuration time.Duration
}

// NewSlidingWindowAlgorithm builds the algorithm. A nil clock defaults to
// the system clock.
func NewSlidingWindowAlgorithm(clock Clock) *SlidingWindowAlgorithm {
	if clock == nil {
		clock = &SystemClock{}
	}

	return &SlidingWindowAlgorithm{
		clock:          clock,
		lastTimestamps: make(map[string]time.Time),
	}
}

// IsAllowed counts the key's requests in the window and records the new
// one when under limit. When the store implements AtomicRateLimitStore
// the check and add happen under one lock, so concurrent requests for
// the same key cannot slip past the limit between the two steps. Plain
// stores take the racy two-step path; production stores should
// implement the atomic interface.
func (a *SlidingWindowAlgorithm) IsAllowed(
	ctx context.Context,
	key string,
	store RateLimitStore,
	limit int,
	window time.Duration,
) (*RateLimitDecision, error) {
	a.windowDuration = window

	now := a.getValidTimestamp(key)
	cutoff := now.Add(-window)
	resetAt := now.Add(window)

	if atomicStore, ok := store.(AtomicRateLimitStore); ok {
		allowed, count, err := atomicStore.CheckAndAddRequest(ctx, key, now, cutoff, limit)
		if err != nil {
			return nil, fmt.Errorf("failed to check and add request: %w", err)
		}
		if !allowed {
			return denied(key, limit, now, resetAt), nil
		}
		return NewAllowedDecision(key, "unknown", limit, limit-count, resetAt), nil
	}

	count, err := store.GetRequestCount(ctx, key, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to get request count: %w", err)
	}
	if count >= limit {
		return denied(key, limit, now, resetAt), nil
	}
	if err := store.AddRequest(ctx, key, now); err != nil {
		return nil, fmt.Errorf("failed to add request: %w", err)
	}
	return NewAllowedDecision(key, "unknown", limit, limit-count-1, resetAt), nil
}

func denied(key string, limit int, now, resetAt time.Time) *RateLimitDecision {
	decision := NewDeniedDecision(key, "unknown", limit, resetAt)
	decision.RetryAfter = resetAt.Sub(now)
	return decision
}

// GetWindowDuration returns the window last passed to IsAllowed.
func (a *SlidingWindowAlgorithm) GetWindowDuration() time.Duration {
	return a.windowDuration
}

// getValidTimestamp returns the current time, pinned to the key's last
// seen timestamp if the clock has moved backwards.
func (a *SlidingWindowAlgorithm) getValidTimestamp(key string) time.Time {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.clock.Now()
	if lastSeen, ok := a.lastTimestamps[key]; ok && now.Before(lastSeen) {
		slog.Warn("clock skew detected, using last valid timestamp",
			slog.String("key", key),
			slog.Time("now", now),
			slog.Time("last_seen", lastSeen),
			slog.Duration("skew", lastSeen.Sub(now)),
		)
		return lastSeen
	}

	a.lastTimestamps[key] = now
	return now
}

// CleanupExpiredTimestamps drops last-seen entries older than maxAge so
// the skew-protection map doesn't grow with every key ever seen. Returns
// the number removed.
func (a *SlidingWindowAlgorithm) CleanupExpiredTimestamps(maxAge time.Duration) int {
	a.mu.Lock()
	defer a.mu.Unlock()

	cutoff := a.clock.Now().Add(-maxAge)
	removed := 0
	for key, timestamp := range a.lastTimestamps {
		if timestamp.Before(cutoff) {
			delete(a.lastTimestamps, key)
			removed++
		}
	}

	if removed > 0 {
		slog.Debug("cleaned up expired timestamp entries",
			slog.Int("removed", removed),
			slog.Int("remaining", len(a.lastTimestamps)),
		)
	}
	return removed
}

// GetTrackedKeysCount returns how many keys have skew-protection entries.
func (a *SlidingWindowAlgorithm) GetTrackedKeysCount() int {
	a.mu.RLock()
	defer a.mu.RUnlock()

	return len(a.lastTimestamps)
}
