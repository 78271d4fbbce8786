package inmemorylivestore

import (
	"context"
	"sync"

	"github.com/arkade-os/depositd/internal/core/domain"
	"github.com/arkade-os/depositd/internal/core/ports"
)

type liveStore struct {
	lock *sync.RWMutex
	tips map[string]domain.Tip
}

func NewLiveStore() ports.LiveStore {
	return &liveStore{
		lock: &sync.RWMutex{},
		tips: make(map[string]domain.Tip),
	}
}

func (s *liveStore) SetTip(_ context.Context, tip domain.Tip) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	if current, ok := s.tips[tip.Name]; ok && current.UpdatedAt > tip.UpdatedAt {
		return nil
	}
	s.tips[tip.Name] = tip
	return nil
}

func (s *liveStore) GetTip(_ context.Context, name string) (*domain.Tip, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	tip, ok := s.tips[name]
	if !ok {
		return nil, nil
	}
	return &tip, nil
}

func (s *liveStore) DeleteTip(_ context.Context, name string) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	delete(s.tips, name)
	return nil
}

func (s *liveStore) Close() {}
