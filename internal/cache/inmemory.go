package cache

import (
	"encoding/json"
	"sync"
	"time"
)

// InMemoryStore is the default Store. Entries live until overwritten; there
// is no eviction loop, so the map grows with the number of distinct keys.
type InMemoryStore struct {
	mu      sync.RWMutex
	entries map[string]*memEntry
}

type memEntry struct {
	payload     []byte
	retrievedAt time.Time
}

// NewInMemoryStore creates an empty store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		entries: make(map[string]*memEntry),
	}
}

func (s *InMemoryStore) Get(key string) (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.entries[key]
	if !ok {
		return Entry{}, false
	}
	// Return a copy to prevent mutation
	cp := make([]byte, len(entry.payload))
	copy(cp, entry.payload)
	return Entry{Key: key, Payload: cp, RetrievedAt: entry.retrievedAt}, true
}

func (s *InMemoryStore) Put(key string, payload json.RawMessage, now time.Time) {
	cp := make([]byte, len(payload))
	copy(cp, payload)
	s.mu.Lock()
	s.entries[key] = &memEntry{payload: cp, retrievedAt: now}
	s.mu.Unlock()
}

func (s *InMemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
