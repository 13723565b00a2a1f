package store

import (
	"context"
	"sync"

	"coldchain/internal/product/models"
	id "coldchain/pkg/domain"
)

// TrailInMemory is the in-process audit trail. Append-only; nothing is ever
// mutated or removed.
type TrailInMemory struct {
	mu          sync.RWMutex
	transitions map[id.ProductID][]models.Transition
}

func NewTrailInMemory() *TrailInMemory {
	return &TrailInMemory{transitions: make(map[id.ProductID][]models.Transition)}
}

func (s *TrailInMemory) Append(_ context.Context, t models.Transition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transitions[t.ProductID] = append(s.transitions[t.ProductID], t)
	return nil
}

func (s *TrailInMemory) ListByProduct(_ context.Context, productID id.ProductID) ([]models.Transition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Transition{}, s.transitions[productID]...), nil
}
