package audit

import (
	"context"
	"sync"
)

// Store is an append-only event log.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListByAccount(ctx context.Context, accountID string) ([]Event, error)
}

// InMemoryStore keeps events in process. Fine for a single instance and for
// tests; production fans out to Kafka as well.
type InMemoryStore struct {
	mu     sync.RWMutex
	events []Event
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) Append(_ context.Context, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.events = append(s.events, event)
	return nil
}

func (s *InMemoryStore) ListByAccount(_ context.Context, accountID string) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Event
	for _, event := range s.events {
		if event.AccountID == accountID {
			out = append(out, event)
		}
	}
	return out, nil
}

// All returns every stored event in append order.
func (s *InMemoryStore) All(_ context.Context) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Event, len(s.events))
	copy(out, s.events)
	return out, nil
}
