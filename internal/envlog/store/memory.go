package store

import (
	"context"
	"sync"

	"coldchain/internal/envlog/models"
	id "coldchain/pkg/domain"
)

// InMemory is the in-process environmental log. Append-only.
type InMemory struct {
	mu       sync.RWMutex
	readings map[id.ProductID][]models.Reading
}

func NewInMemory() *InMemory {
	return &InMemory{readings: make(map[id.ProductID][]models.Reading)}
}

func (s *InMemory) Append(_ context.Context, r models.Reading) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.readings[r.ProductID] = append(s.readings[r.ProductID], r)
	return nil
}

func (s *InMemory) ListByProduct(_ context.Context, productID id.ProductID) ([]models.Reading, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Reading{}, s.readings[productID]...), nil
}
