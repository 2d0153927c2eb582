package session

import (
	"sync"
	"time"
)

// TimeoutTable is a generic keyed expiry tracker: "has X happened within
// the last N seconds". It backs the away-notice and mailbox-full
// throttles.
type TimeoutTable struct {
	mu      sync.Mutex
	entries map[string]time.Time
	now     func() time.Time
}

// NewTimeoutTable creates an empty table.
func NewTimeoutTable() *TimeoutTable {
	return &TimeoutTable{
		entries: make(map[string]time.Time),
		now:     time.Now,
	}
}

// Set marks a key as active for the given duration, replacing any earlier
// deadline.
func (t *TimeoutTable) Set(key string, ttl time.Duration) {
	t.mu.Lock()
	t.entries[key] = t.now().Add(ttl)
	t.mu.Unlock()
}

// Active reports whether a key is set and not yet expired.
func (t *TimeoutTable) Active(key string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	deadline, ok := t.entries[key]
	if !ok {
		return false
	}
	if t.now().After(deadline) {
		delete(t.entries, key)
		return false
	}
	return true
}

// Remove drops a key regardless of its deadline.
func (t *TimeoutTable) Remove(key string) {
	t.mu.Lock()
	delete(t.entries, key)
	t.mu.Unlock()
}

// Cleanup drops all expired keys and returns how many were removed.
func (t *TimeoutTable) Cleanup() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	removed := 0
	for key, deadline := range t.entries {
		if now.After(deadline) {
			delete(t.entries, key)
			removed++
		}
	}
	return removed
}
