package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSlidingWindowAlgorithm(t *testing.T) {
	algo := NewSlidingWindowAlgorithm(nil)
	assert.NotNil(t, algo.clock, "nil clock defaults to system clock")
	assert.NotNil(t, algo.lastTimestamps)

	clock := NewMockClock(time.Now())
	algo = NewSlidingWindowAlgorithm(clock)
	assert.Same(t, Clock(clock), algo.clock)
}

func TestSlidingWindow_AllowsUnderLimit(t *testing.T) {
	ctx := context.Background()
	clock := NewMockClock(time.Now())
	algo := NewSlidingWindowAlgorithm(clock)
	store := NewInMemoryRateLimitStore(InMemoryStoreConfig{Clock: clock})

	for i := 0; i < 3; i++ {
		decision, err := algo.IsAllowed(ctx, "ip:203.0.113.7", store, 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, decision.Allowed)
		assert.Equal(t, 3, decision.Limit)
		assert.Equal(t, 2-i, decision.Remaining)
	}
}

func TestSlidingWindow_DeniesOverLimit(t *testing.T) {
	ctx := context.Background()
	clock := NewMockClock(time.Now())
	algo := NewSlidingWindowAlgorithm(clock)
	store := NewInMemoryRateLimitStore(InMemoryStoreConfig{Clock: clock})

	for i := 0; i < 2; i++ {
		_, err := algo.IsAllowed(ctx, "ip:203.0.113.7", store, 2, time.Minute)
		require.NoError(t, err)
	}

	decision, err := algo.IsAllowed(ctx, "ip:203.0.113.7", store, 2, time.Minute)
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
	assert.Zero(t, decision.Remaining)
	assert.Equal(t, time.Minute, decision.RetryAfter)

	count, _ := store.GetRequestCount(ctx, "ip:203.0.113.7", clock.Now().Add(-time.Minute))
	assert.Equal(t, 2, count, "denied request is not recorded")
}

func TestSlidingWindow_WindowSlides(t *testing.T) {
	ctx := context.Background()
	clock := NewMockClock(time.Now())
	algo := NewSlidingWindowAlgorithm(clock)
	store := NewInMemoryRateLimitStore(InMemoryStoreConfig{Clock: clock})

	_, err := algo.IsAllowed(ctx, "user:abc123", store, 1, time.Minute)
	require.NoError(t, err)

	decision, err := algo.IsAllowed(ctx, "user:abc123", store, 1, time.Minute)
	require.NoError(t, err)
	assert.False(t, decision.Allowed)

	clock.Advance(61 * time.Second)

	decision, err = algo.IsAllowed(ctx, "user:abc123", store, 1, time.Minute)
	require.NoError(t, err)
	assert.True(t, decision.Allowed, "old request aged out of the window")
}

func TestSlidingWindow_KeysAreIndependent(t *testing.T) {
	ctx := context.Background()
	clock := NewMockClock(time.Now())
	algo := NewSlidingWindowAlgorithm(clock)
	store := NewInMemoryRateLimitStore(InMemoryStoreConfig{Clock: clock})

	_, err := algo.IsAllowed(ctx, "ip:203.0.113.7", store, 1, time.Minute)
	require.NoError(t, err)

	decision, err := algo.IsAllowed(ctx, "ip:198.51.100.4", store, 1, time.Minute)
	require.NoError(t, err)
	assert.True(t, decision.Allowed, "one client's quota must not affect another")
}

func TestSlidingWindow_StoreErrorPropagates(t *testing.T) {
	ctx := context.Background()
	algo := NewSlidingWindowAlgorithm(NewMockClock(time.Now()))

	_, err := algo.IsAllowed(ctx, "ip:203.0.113.7", &failingStore{}, 5, time.Minute)
	assert.ErrorContains(t, err, "failed to")
}

// failingStore errors on every operation. It deliberately does not
// implement AtomicRateLimitStore so the fallback path is exercised too.
type failingStore struct{}

func (s *failingStore) AddRequest(context.Context, string, time.Time) error {
	return assert.AnError
}

func (s *failingStore) GetRequests(context.Context, string, time.Time) ([]time.Time, error) {
	return nil, assert.AnError
}

func (s *failingStore) GetRequestCount(context.Context, string, time.Time) (int, error) {
	return 0, assert.AnError
}

func (s *failingStore) Cleanup(context.Context, time.Time) error { return assert.AnError }

func (s *failingStore) KeyCount(context.Context) (int, error) { return 0, assert.AnError }
func (s *failingStore) MemoryUsage(context.Context) (int64, error) {
	return 0, assert.AnError
}

func TestSlidingWindow_NonAtomicFallback(t *testing.T) {
	ctx := context.Background()
	clock := NewMockClock(time.Now())
	algo := NewSlidingWindowAlgorithm(clock)

	// Plain map store without CheckAndAddRequest.
	store := &plainStore{requests: map[string][]time.Time{}}

	decision, err := algo.IsAllowed(ctx, "user:abc123", store, 2, time.Minute)
	require.NoError(t, err)
	assert.True(t, decision.Allowed)
	assert.Equal(t, 1, decision.Remaining)

	_, _ = algo.IsAllowed(ctx, "user:abc123", store, 2, time.Minute)

	decision, err = algo.IsAllowed(ctx, "user:abc123", store, 2, time.Minute)
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
}

type plainStore struct {
	mu       sync.Mutex
	requests map[string][]time.Time
}

func (s *plainStore) AddRequest(_ context.Context, key string, ts time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests[key] = append(s.requests[key], ts)
	return nil
}

func (s *plainStore) GetRequests(_ context.Context, key string, cutoff time.Time) ([]time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []time.Time
	for _, ts := range s.requests[key] {
		if ts.After(cutoff) {
			out = append(out, ts)
		}
	}
	return out, nil
}

func (s *plainStore) GetRequestCount(ctx context.Context, key string, cutoff time.Time) (int, error) {
	timestamps, _ := s.GetRequests(ctx, key, cutoff)
	return len(timestamps), nil
}

func (s *plainStore) Cleanup(context.Context, time.Time) error { return nil }

func (s *plainStore) KeyCount(context.Context) (int, error) { return 0, nil }

func (s *plainStore) MemoryUsage(context.Context) (int64, error) { return 0, nil }

func TestSlidingWindow_ClockSkewProtection(t *testing.T) {
	ctx := context.Background()
	start := time.Now()
	clock := NewMockClock(start)
	algo := NewSlidingWindowAlgorithm(clock)
	store := NewInMemoryRateLimitStore(InMemoryStoreConfig{Clock: clock})

	_, err := algo.IsAllowed(ctx, "ip:203.0.113.7", store, 10, time.Minute)
	require.NoError(t, err)

	// Clock steps backwards; the key's last-seen timestamp wins.
	clock.Set(start.Add(-30 * time.Second))
	pinned := algo.getValidTimestamp("ip:203.0.113.7")
	assert.Equal(t, start, pinned)

	// A forward clock updates last-seen again.
	clock.Set(start.Add(10 * time.Second))
	advanced := algo.getValidTimestamp("ip:203.0.113.7")
	assert.Equal(t, start.Add(10*time.Second), advanced)
}

func TestSlidingWindow_CleanupExpiredTimestamps(t *testing.T) {
	clock := NewMockClock(time.Now())
	algo := NewSlidingWindowAlgorithm(clock)
	store := NewInMemoryRateLimitStore(InMemoryStoreConfig{Clock: clock})
	ctx := context.Background()

	_, _ = algo.IsAllowed(ctx, "ip:stale", store, 10, time.Minute)
	clock.Advance(2 * time.Hour)
	_, _ = algo.IsAllowed(ctx, "ip:fresh", store, 10, time.Minute)

	assert.Equal(t, 2, algo.GetTrackedKeysCount())

	removed := algo.CleanupExpiredTimestamps(time.Hour)

	assert.Equal(t, 1, removed)
	assert.Equal(t, 1, algo.GetTrackedKeysCount())
}

func TestSlidingWindow_GetWindowDuration(t *testing.T) {
	clock := NewMockClock(time.Now())
	algo := NewSlidingWindowAlgorithm(clock)
	store := NewInMemoryRateLimitStore(InMemoryStoreConfig{Clock: clock})

	_, _ = algo.IsAllowed(context.Background(), "ip:203.0.113.7", store, 5, 15*time.Minute)

	assert.Equal(t, 15*time.Minute, algo.GetWindowDuration())
}

func TestSlidingWindow_ConcurrentSameKeyNeverOverAdmits(t *testing.T) {
	ctx := context.Background()
	clock := NewMockClock(time.Now())
	algo := NewSlidingWindowAlgorithm(clock)
	store := NewInMemoryRateLimitStore(InMemoryStoreConfig{Clock: clock})
	const limit = 10

	var wg sync.WaitGroup
	var mu sync.Mutex
	admitted := 0

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			decision, err := algo.IsAllowed(ctx, "user:abc123", store, limit, time.Minute)
			if err == nil && decision.Allowed {
				mu.Lock()
				admitted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, limit, admitted)
}
