package participant

import (
	"context"
	"sync"

	id "recrusearch/pkg/domain"
	"recrusearch/pkg/platform/sentinel"
)

type InMemoryStore struct {
	mu       sync.RWMutex
	profiles map[id.Identity]Profile
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{profiles: make(map[id.Identity]Profile)}
}

func (s *InMemoryStore) Create(_ context.Context, profile Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.profiles[profile.Identity]; ok {
		return sentinel.ErrConflict
	}
	s.profiles[profile.Identity] = profile
	return nil
}

func (s *InMemoryStore) FindByIdentity(_ context.Context, identity id.Identity) (Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if profile, ok := s.profiles[identity]; ok {
		return profile, nil
	}
	return Profile{}, sentinel.ErrNotFound
}
