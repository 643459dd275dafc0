// Package ratelimit provides framework-agnostic rate limiting functionality.
package ratelimit

import (
	"container/list"
	"context"
	"sync"
	"time"
)

// InMemoryRateLimitStore keeps request timestamps per key (client IP or
// user hash) in a map guarded by an RWMutex. Memory stays bounded two
// ways: a background cleanup loop drops expired timestamps, and an LRU
// eviction kicks in when the key count hits MaxKeys so a scraper cycling
// through addresses cannot grow the map without bound.
type InMemoryRateLimitStore struct {
	mu       sync.RWMutex
	requests map[string]*keyEntry
	maxKeys  int
	clock    Clock

	// lruOrder holds keys front-to-back from most to least recently used;
	// lruIndex maps a key to its element for O(1) touch and removal.
	lruOrder *list.List
	lruIndex map[string]*list.Element
}

// keyEntry holds the recorded timestamps for one key.
type keyEntry struct {
	timestamps []time.Time
	lastAccess time.Time
}

// InMemoryStoreConfig configures the store. Zero values take defaults.
type InMemoryStoreConfig struct {
	// MaxKeys caps the number of tracked keys; least recently used keys
	// are evicted past it. Default 10000.
	MaxKeys int

	// Clock provides time for tests. Default SystemClock.
	Clock Clock
}

// DefaultInMemoryStoreConfig returns the production defaults.
func DefaultInMemoryStoreConfig() InMemoryStoreConfig {
	return InMemoryStoreConfig{
		MaxKeys: 10000,
		Clock:   &SystemClock{},
	}
}

// NewInMemoryRateLimitStore builds a store, applying defaults for
// zero-valued config fields.
func NewInMemoryRateLimitStore(config InMemoryStoreConfig) *InMemoryRateLimitStore {
	if config.MaxKeys <= 0 {
		config.MaxKeys = 10000
	}
	if config.Clock == nil {
		config.Clock = &SystemClock{}
	}

	return &InMemoryRateLimitStore{
		requests: make(map[string]*keyEntry),
		maxKeys:  config.MaxKeys,
		clock:    config.Clock,
		lruOrder: list.New(),
		lruIndex: make(map[string]*list.Element),
	}
}

// touchLocked moves key to the most-recently-used position, inserting it
// if absent. Caller holds the write lock.
func (s *InMemoryRateLimitStore) touchLocked(key string) {
	if elem, ok := s.lruIndex[key]; ok {
		s.lruOrder.MoveToFront(elem)
		return
	}
	s.lruIndex[key] = s.lruOrder.PushFront(key)
}

// dropLocked removes key from the map and the LRU bookkeeping. Caller
// holds the write lock.
func (s *InMemoryRateLimitStore) dropLocked(key string) {
	delete(s.requests, key)
	if elem, ok := s.lruIndex[key]; ok {
		s.lruOrder.Remove(elem)
		delete(s.lruIndex, key)
	}
}

// recordLocked appends a timestamp for key, evicting LRU keys first if a
// new key would push the store past maxKeys. Caller holds the write lock.
func (s *InMemoryRateLimitStore) recordLocked(key string, timestamp time.Time) {
	entry, exists := s.requests[key]

	if !exists && len(s.requests) >= s.maxKeys {
		s.evictLRULocked()
	}

	if !exists {
		entry = &keyEntry{
			timestamps: make([]time.Time, 0, 100),
			lastAccess: timestamp,
		}
		s.requests[key] = entry
	} else {
		entry.lastAccess = timestamp
	}

	entry.timestamps = append(entry.timestamps, timestamp)
	s.touchLocked(key)
}

// countLocked counts timestamps for key after cutoff. Caller holds a lock.
func (s *InMemoryRateLimitStore) countLocked(key string, cutoff time.Time) int {
	entry, exists := s.requests[key]
	if !exists {
		return 0
	}
	count := 0
	for _, ts := range entry.timestamps {
		if ts.After(cutoff) {
			count++
		}
	}
	return count
}

// AddRequest records a request timestamp for the key.
func (s *InMemoryRateLimitStore) AddRequest(ctx context.Context, key string, timestamp time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.recordLocked(key, timestamp)
	return nil
}

// GetRequests returns the key's timestamps newer than cutoff.
func (s *InMemoryRateLimitStore) GetRequests(ctx context.Context, key string, cutoff time.Time) ([]time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, exists := s.requests[key]
	if !exists {
		return []time.Time{}, nil
	}

	result := make([]time.Time, 0, len(entry.timestamps))
	for _, ts := range entry.timestamps {
		if ts.After(cutoff) {
			result = append(result, ts)
		}
	}
	return result, nil
}

// GetRequestCount returns how many of the key's timestamps are newer than
// cutoff. Cheaper than GetRequests when only the count matters.
func (s *InMemoryRateLimitStore) GetRequestCount(ctx context.Context, key string, cutoff time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.countLocked(key, cutoff), nil
}

// Cleanup drops timestamps at or before cutoff, removing keys that end up
// empty. The cleanup goroutine calls this on its interval.
func (s *InMemoryRateLimitStore) Cleanup(ctx context.Context, cutoff time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var emptied []string
	for key, entry := range s.requests {
		valid := entry.timestamps[:0]
		for _, ts := range entry.timestamps {
			if ts.After(cutoff) {
				valid = append(valid, ts)
			}
		}
		if len(valid) == 0 {
			emptied = append(emptied, key)
		} else {
			entry.timestamps = valid
		}
	}

	for _, key := range emptied {
		s.dropLocked(key)
	}
	return nil
}

// KeyCount returns the number of tracked keys.
func (s *InMemoryRateLimitStore) KeyCount(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.requests), nil
}

// MemoryUsage estimates the store's footprint in bytes for the memory
// pressure check. Rough per-entry constants are fine here; the signal
// only needs to be proportional.
func (s *InMemoryRateLimitStore) MemoryUsage(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	const (
		mapEntryOverhead = 48
		timestampSize    = 24
		keyEntryOverhead = 32
		lruElementSize   = 48
	)

	var totalBytes int64
	for _, entry := range s.requests {
		totalBytes += mapEntryOverhead + keyEntryOverhead
		totalBytes += int64(len(entry.timestamps) * timestampSize)
	}
	totalBytes += int64(len(s.lruIndex) * lruElementSize)

	return totalBytes, nil
}

// evictLRULocked drops the 10% least recently used keys (at least one) so
// eviction doesn't run on every insert at capacity. Caller holds the
// write lock.
func (s *InMemoryRateLimitStore) evictLRULocked() {
	evictCount := s.maxKeys / 10
	if evictCount < 1 {
		evictCount = 1
	}

	for evicted := 0; evicted < evictCount; evicted++ {
		oldest := s.lruOrder.Back()
		if oldest == nil {
			return
		}
		s.dropLocked(oldest.Value.(string))
	}
}

// CheckAndAddRequest counts the key's requests in the window and, when
// under limit, records the new request, all under one lock acquisition.
// Doing both under the same lock is what makes concurrent requests for
// the same key unable to sneak past the limit between check and add.
func (s *InMemoryRateLimitStore) CheckAndAddRequest(ctx context.Context, key string, timestamp time.Time, cutoff time.Time, limit int) (allowed bool, count int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	currentCount := s.countLocked(key, cutoff)
	if currentCount >= limit {
		return false, currentCount, nil
	}

	s.recordLocked(key, timestamp)
	return true, currentCount + 1, nil
}
