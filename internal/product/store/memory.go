package store

import (
	"context"
	"sync"

	"coldchain/internal/product/models"
	id "coldchain/pkg/domain"
	"coldchain/pkg/platform/sentinel"
)

// InMemory keeps products in process. Execute holds the lock during both
// validation and mutation so a transition can never race a concurrent check.
type InMemory struct {
	mu       sync.RWMutex
	products map[id.ProductID]models.Product
}

func NewInMemory() *InMemory {
	return &InMemory{products: make(map[id.ProductID]models.Product)}
}

// Create stores a new product, rejecting duplicate identifiers.
func (s *InMemory) Create(_ context.Context, p *models.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.products[p.ID]; ok {
		return sentinel.ErrAlreadyUsed
	}
	s.products[p.ID] = *p
	return nil
}

func (s *InMemory) FindByID(_ context.Context, productID id.ProductID) (*models.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if p, ok := s.products[productID]; ok {
		copied := p
		return &copied, nil
	}
	return nil, sentinel.ErrNotFound
}

// Execute atomically validates and mutates one product. The mutation is only
// applied (and persisted) when validate returns nil.
func (s *InMemory) Execute(_ context.Context, productID id.ProductID,
	validate func(*models.Product) error, mutate func(*models.Product)) (*models.Product, error) {

	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[productID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if validate != nil {
		if err := validate(&p); err != nil {
			return nil, err
		}
	}
	mutate(&p)
	s.products[productID] = p
	copied := p
	return &copied, nil
}
