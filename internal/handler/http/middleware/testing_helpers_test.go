package middleware

import (
	"context"
	"sync"
	"time"

	"infinite-feed/pkg/ratelimit"
)

// mockRateLimitStore keeps request timestamps in memory and can be forced to
// fail any operation.
type mockRateLimitStore struct {
	mu          sync.RWMutex
	requests    map[string][]time.Time
	addErr      error
	getErr      error
	getCountErr error
	cleanupErr  error
	keyCountErr error
	memoryErr   error
	keyCount    int
	memoryUsage int64
}

func newMockRateLimitStore() *mockRateLimitStore {
	return &mockRateLimitStore{requests: make(map[string][]time.Time)}
}

func (m *mockRateLimitStore) countLocked(key string, cutoff time.Time) int {
	count := 0
	for _, ts := range m.requests[key] {
		if ts.After(cutoff) {
			count++
		}
	}
	return count
}

func (m *mockRateLimitStore) AddRequest(_ context.Context, key string, timestamp time.Time) error {
	if m.addErr != nil {
		return m.addErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests[key] = append(m.requests[key], timestamp)
	return nil
}

func (m *mockRateLimitStore) GetRequests(_ context.Context, key string, cutoff time.Time) ([]time.Time, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	valid := []time.Time{}
	for _, ts := range m.requests[key] {
		if ts.After(cutoff) {
			valid = append(valid, ts)
		}
	}
	return valid, nil
}

func (m *mockRateLimitStore) GetRequestCount(_ context.Context, key string, cutoff time.Time) (int, error) {
	if m.getCountErr != nil {
		return 0, m.getCountErr
	}
	if m.getErr != nil {
		return 0, m.getErr
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.countLocked(key, cutoff), nil
}

func (m *mockRateLimitStore) Cleanup(_ context.Context, cutoff time.Time) error {
	if m.cleanupErr != nil {
		return m.cleanupErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, timestamps := range m.requests {
		var valid []time.Time
		for _, ts := range timestamps {
			if ts.After(cutoff) {
				valid = append(valid, ts)
			}
		}
		if len(valid) > 0 {
			m.requests[key] = valid
		} else {
			delete(m.requests, key)
		}
	}
	return nil
}

func (m *mockRateLimitStore) KeyCount(_ context.Context) (int, error) {
	if m.keyCountErr != nil {
		return 0, m.keyCountErr
	}
	if m.keyCount > 0 {
		return m.keyCount, nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.requests), nil
}

func (m *mockRateLimitStore) MemoryUsage(_ context.Context) (int64, error) {
	if m.memoryErr != nil {
		return 0, m.memoryErr
	}
	if m.memoryUsage > 0 {
		return m.memoryUsage, nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var usage int64
	for key, timestamps := range m.requests {
		usage += int64(len(key)) + int64(len(timestamps)*8)
	}
	return usage, nil
}

// CheckAndAddRequest satisfies AtomicRateLimitStore so the sliding window
// path under test matches production.
func (m *mockRateLimitStore) CheckAndAddRequest(_ context.Context, key string, timestamp, cutoff time.Time, limit int) (bool, int, error) {
	if m.addErr != nil {
		return false, 0, m.addErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	count := m.countLocked(key, cutoff)
	if count >= limit {
		return false, count, nil
	}
	m.requests[key] = append(m.requests[key], timestamp)
	return true, count + 1, nil
}

// mockRateLimitAlgorithm returns a fixed decision or error when set,
// otherwise counts against the store like the real algorithm.
type mockRateLimitAlgorithm struct {
	decision *ratelimit.RateLimitDecision
	err      error
	window   time.Duration
}

func (m *mockRateLimitAlgorithm) IsAllowed(ctx context.Context, key string, store ratelimit.RateLimitStore, limit int, window time.Duration) (*ratelimit.RateLimitDecision, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.decision != nil {
		return m.decision, nil
	}

	now := time.Now()
	cutoff := now.Add(-window)
	resetAt := now.Add(window)

	if atomicStore, ok := store.(ratelimit.AtomicRateLimitStore); ok {
		allowed, count, err := atomicStore.CheckAndAddRequest(ctx, key, now, cutoff, limit)
		if err != nil {
			return nil, err
		}
		if allowed {
			return ratelimit.NewAllowedDecision(key, "test", limit, limit-count, resetAt), nil
		}
		return ratelimit.NewDeniedDecision(key, "test", limit, resetAt), nil
	}

	count, err := store.GetRequestCount(ctx, key, cutoff)
	if err != nil {
		return nil, err
	}
	if count < limit {
		_ = store.AddRequest(ctx, key, now)
		return ratelimit.NewAllowedDecision(key, "test", limit, limit-count-1, resetAt), nil
	}
	return ratelimit.NewDeniedDecision(key, "test", limit, resetAt), nil
}

func (m *mockRateLimitAlgorithm) GetWindowDuration() time.Duration {
	if m.window > 0 {
		return m.window
	}
	return 1 * time.Minute
}

// mockRateLimitMetrics records only what the tests assert on; the rest of
// the interface is satisfied with no-ops.
type mockRateLimitMetrics struct {
	mu                sync.Mutex
	checkDurations    []time.Duration
	degradationLevels []int
	allowed           int
	denied            int
}

func newMockRateLimitMetrics() *mockRateLimitMetrics {
	return &mockRateLimitMetrics{}
}

func (m *mockRateLimitMetrics) RecordCheckDuration(_ string, duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checkDurations = append(m.checkDurations, duration)
}

func (m *mockRateLimitMetrics) RecordDegradationLevel(_ string, level int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.degradationLevels = append(m.degradationLevels, level)
}

func (m *mockRateLimitMetrics) RecordRequest(_, _ string) {}

func (m *mockRateLimitMetrics) RecordDenied(_, _ string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.denied++
}

func (m *mockRateLimitMetrics) RecordAllowed(_, _ string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.allowed++
}
func (m *mockRateLimitMetrics) SetActiveKeys(_ string, _ int)  {}
func (m *mockRateLimitMetrics) RecordCircuitState(_, _ string) {}
func (m *mockRateLimitMetrics) RecordEviction(_ string, _ int) {}

// mockClock is a manually advanced clock.
type mockClock struct {
	mu      sync.Mutex
	current time.Time
}

func newMockClock(start time.Time) *mockClock {
	return &mockClock{current: start}
}

func (c *mockClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

func (c *mockClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = c.current.Add(d)
}
