package clock

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps start instants in process memory. It is used when Redis
// is disabled and in tests; entries survive controller restarts within one
// process only.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

type memoryEntry struct {
	start     time.Time
	expiresAt time.Time
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

// SaveStart stores start for sessionID. A non-positive ttl never expires.
func (s *MemoryStore) SaveStart(_ context.Context, sessionID string, start time.Time, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := memoryEntry{start: start}
	if ttl > 0 {
		entry.expiresAt = s.now().Add(ttl)
	}
	s.entries[sessionID] = entry
	return nil
}

// LoadStart returns the stored start instant for sessionID
func (s *MemoryStore) LoadStart(_ context.Context, sessionID string) (time.Time, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[sessionID]
	if !ok {
		return time.Time{}, false, nil
	}
	if !entry.expiresAt.IsZero() && s.now().After(entry.expiresAt) {
		delete(s.entries, sessionID)
		return time.Time{}, false, nil
	}
	return entry.start, true, nil
}

// ClearStart removes the entry for sessionID
func (s *MemoryStore) ClearStart(_ context.Context, sessionID string) error {
	s.mu.Lock()
	delete(s.entries, sessionID)
	s.mu.Unlock()
	return nil
}
