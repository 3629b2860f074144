// Package memory is the in-process matter store.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/kirillkom/filing-assembler/internal/core/domain"
)

type MatterStore struct {
	mu      sync.RWMutex
	matters map[domain.MatterKey]*domain.Matter
}

func NewMatterStore() *MatterStore {
	return &MatterStore{matters: make(map[domain.MatterKey]*domain.Matter)}
}

// Put replaces the record for the matter's key. The stored value is a copy,
// so later caller mutations are not visible to readers.
func (s *MatterStore) Put(_ context.Context, matter *domain.Matter) error {
	if matter == nil {
		return domain.Validationf("put matter", "matter is nil")
	}
	key := domain.MatterKey{ClientID: matter.ClientID, MatterID: matter.MatterID}
	if err := key.Validate(); err != nil {
		return err
	}
	stored := matter.Clone()

	s.mu.Lock()
	s.matters[key] = stored
	s.mu.Unlock()
	return nil
}

func (s *MatterStore) Get(_ context.Context, key domain.MatterKey) (*domain.Matter, error) {
	s.mu.RLock()
	matter, ok := s.matters[key]
	s.mu.RUnlock()
	if !ok {
		return nil, domain.WrapError(domain.ErrMatterNotFound, "get matter", fmt.Errorf("key=%s", key))
	}
	return matter.Clone(), nil
}
