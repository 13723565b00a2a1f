package memory

import (
	"context"
	"sync"

	id "coldchain/pkg/domain"
	audit "coldchain/pkg/platform/audit"
)

// InMemoryStore keeps emitted events in process. Used by unit tests and by
// deployments that run without Postgres/Kafka.
type InMemoryStore struct {
	mu     sync.RWMutex
	events []audit.Event
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) Append(_ context.Context, event audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *InMemoryStore) ListByProduct(_ context.Context, productID id.ProductID) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []audit.Event
	for _, e := range s.events {
		if e.ProductID == productID {
			out = append(out, e)
		}
	}
	return out, nil
}

// All returns every recorded event in insertion order.
func (s *InMemoryStore) All() []audit.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]audit.Event{}, s.events...)
}
