package registry

import (
	"context"
	"fmt"
	"sync"

	"corebank/pkg/platform/sentinel"
)

// InMemoryReservationStore keeps namespace bindings in process memory. The
// single mutex makes PutIfAbsent a true atomic insert-if-absent.
type InMemoryReservationStore struct {
	mu       sync.RWMutex
	bindings map[string]string
}

// NewInMemoryReservationStore constructs an empty reservation store.
func NewInMemoryReservationStore() *InMemoryReservationStore {
	return &InMemoryReservationStore{bindings: make(map[string]string)}
}

func key(ns Namespace, value string) string {
	return string(ns) + "\x00" + value
}

func (s *InMemoryReservationStore) PutIfAbsent(_ context.Context, ns Namespace, value, accountID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key(ns, value)
	if _, ok := s.bindings[k]; ok {
		return fmt.Errorf("%s %q taken: %w", ns, value, sentinel.ErrConflict)
	}
	s.bindings[k] = accountID
	return nil
}

func (s *InMemoryReservationStore) Release(_ context.Context, ns Namespace, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.bindings, key(ns, value))
	return nil
}

func (s *InMemoryReservationStore) Lookup(_ context.Context, ns Namespace, value string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if accountID, ok := s.bindings[key(ns, value)]; ok {
		return accountID, nil
	}
	return "", fmt.Errorf("%s %q: %w", ns, value, sentinel.ErrNotFound)
}
