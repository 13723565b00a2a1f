package store

import (
	"context"
	"fmt"
	"sync"

	id "coldchain/pkg/domain"
)

// InMemory is the in-process escrow ledger.
type InMemory struct {
	mu       sync.Mutex
	balances map[id.ProductID]int64
}

func NewInMemory() *InMemory {
	return &InMemory{balances: make(map[id.ProductID]int64)}
}

// Credit adds amount to the product's held balance. A zero amount is a
// no-op; zero-price listings produce legitimate zero payments.
func (s *InMemory) Credit(_ context.Context, productID id.ProductID, amount int64) error {
	if amount < 0 {
		return fmt.Errorf("credit amount cannot be negative, got %d", amount)
	}
	if amount == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.balances[productID] += amount
	return nil
}

func (s *InMemory) DebitAll(_ context.Context, productID id.ProductID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	amount := s.balances[productID]
	delete(s.balances, productID)
	return amount, nil
}

func (s *InMemory) Balance(_ context.Context, productID id.ProductID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.balances[productID], nil
}
