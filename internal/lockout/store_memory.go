package lockout

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	record    Record
	expiresAt time.Time
}

// InMemoryStore is the default single-process store. Expired entries are
// dropped lazily on read.
type InMemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

func (s *InMemoryStore) Get(_ context.Context, key string) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[key]
	if !ok {
		return nil, nil
	}
	if s.now().After(entry.expiresAt) {
		delete(s.entries, key)
		return nil, nil
	}
	record := entry.record
	return &record, nil
}

func (s *InMemoryStore) Put(_ context.Context, key string, record *Record, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[key] = memoryEntry{record: *record, expiresAt: s.now().Add(ttl)}
	return nil
}

func (s *InMemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, key)
	return nil
}
