package store

import (
	"context"
	"sync"

	"coldchain/internal/directory/models"
	id "coldchain/pkg/domain"
	"coldchain/pkg/platform/sentinel"
)

// InMemory keeps the directory in process. It intentionally favors clarity
// over performance.
type InMemory struct {
	mu           sync.RWMutex
	participants map[id.Identity]models.Participant
}

func NewInMemory() *InMemory {
	return &InMemory{participants: make(map[id.Identity]models.Participant)}
}

// CreateIfAbsent registers a participant, rejecting re-registration.
func (s *InMemory) CreateIfAbsent(_ context.Context, p *models.Participant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.participants[p.Identity]; ok {
		return sentinel.ErrAlreadyUsed
	}
	s.participants[p.Identity] = *p
	return nil
}

func (s *InMemory) FindByIdentity(_ context.Context, identity id.Identity) (*models.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if p, ok := s.participants[identity]; ok {
		copied := p
		return &copied, nil
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemory) Delete(_ context.Context, identity id.Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.participants[identity]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.participants, identity)
	return nil
}
