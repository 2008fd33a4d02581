package correlation

import (
	"sync"
	"time"
)

// Entry links an outbound asynchronous request to the session and user that
// originated it.
type Entry struct {
	CorrelationID string
	SessionID     string
	UserID        string
	Email         string
	CreatedAt     time.Time
}

// Tracker is the short-lived map from correlation IDs to their originating
// context. Entries expire lazily on access; between accesses the map may
// grow, which the periodic sweep bounds (an accepted tradeoff — lookups
// stay correct either way).
type Tracker struct {
	mu      sync.Mutex
	entries map[string]Entry
	ttl     time.Duration
}

func NewTracker(ttl time.Duration) *Tracker {
	return &Tracker{
		entries: make(map[string]Entry),
		ttl:     ttl,
	}
}

// Track records the originating context for a correlation ID. An existing
// entry for the same ID is overwritten unconditionally: last writer wins,
// which lets the pipeline retry a request under the same ID.
func (t *Tracker) Track(correlationID, sessionID, userID, email string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.entries[correlationID] = Entry{
		CorrelationID: correlationID,
		SessionID:     sessionID,
		UserID:        userID,
		Email:         email,
		CreatedAt:     time.Now(),
	}
}

// Resolve returns the entry for correlationID, or nil when the ID is empty,
// unknown, or older than the TTL. An expired entry is removed on the lookup
// that finds it. A live entry is returned as-is: its age is not refreshed
// and it is not consumed, so later callbacks may resolve the same ID.
func (t *Tracker) Resolve(correlationID string) *Entry {
	if correlationID == "" {
		return nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[correlationID]
	if !ok {
		return nil
	}
	if time.Since(e.CreatedAt) > t.ttl {
		delete(t.entries, correlationID)
		return nil
	}
	return &e
}

// Clear removes the entry for correlationID. No-op when empty or absent.
func (t *Tracker) Clear(correlationID string) {
	if correlationID == "" {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.entries, correlationID)
}

// Len returns the current entry count, expired or not.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// Sweep removes every expired entry and returns the count. Memory hygiene
// only; Resolve behaves identically with or without it.
func (t *Tracker) Sweep() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := time.Now()
	removed := 0
	for id, e := range t.entries {
		if now.Sub(e.CreatedAt) > t.ttl {
			delete(t.entries, id)
			removed++
		}
	}
	return removed
}
