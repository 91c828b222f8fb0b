package http

import (
	"sync"
	"time"
)

// RateLimitStore counts requests per key inside a rolling window. The
// check and the increment are one atomic operation so concurrent
// requests cannot both slip under the limit.
type RateLimitStore interface {
	// Increment records one request for key and returns the count inside
	// the current window (including this one) and the time the window
	// resets.
	Increment(key string, window time.Duration) (count int, reset time.Time)
}

// memoryRateLimitStore keeps per-key windows in process memory. When the
// store grows past maxEntries it evicts the entries whose windows expire
// soonest; losing a counter only ever under-counts, which fails open
// toward the free tier.
type memoryRateLimitStore struct {
	mu         sync.Mutex
	entries    map[string]*rateLimitEntry
	maxEntries int
	now        func() time.Time
}

type rateLimitEntry struct {
	count int
	reset time.Time
}

const defaultMaxRateLimitEntries = 10_000

// NewMemoryRateLimitStore creates an in-memory rate limit store bounded
// to roughly 10k distinct keys.
func NewMemoryRateLimitStore() RateLimitStore {
	return &memoryRateLimitStore{
		entries:    make(map[string]*rateLimitEntry),
		maxEntries: defaultMaxRateLimitEntries,
		now:        time.Now,
	}
}

func (s *memoryRateLimitStore) Increment(key string, window time.Duration) (int, time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()

	entry, ok := s.entries[key]
	if !ok || !now.Before(entry.reset) {
		if !ok && len(s.entries) >= s.maxEntries {
			s.evictLocked(now)
		}
		entry = &rateLimitEntry{reset: now.Add(window)}
		s.entries[key] = entry
	}

	entry.count++
	return entry.count, entry.reset
}

// evictLocked drops expired entries, then if still full the entry whose
// window ends soonest.
func (s *memoryRateLimitStore) evictLocked(now time.Time) {
	for key, entry := range s.entries {
		if !now.Before(entry.reset) {
			delete(s.entries, key)
		}
	}

	if len(s.entries) < s.maxEntries {
		return
	}

	var oldestKey string
	var oldestReset time.Time
	for key, entry := range s.entries {
		if oldestKey == "" || entry.reset.Before(oldestReset) {
			oldestKey = key
			oldestReset = entry.reset
		}
	}
	if oldestKey != "" {
		delete(s.entries, oldestKey)
	}
}
