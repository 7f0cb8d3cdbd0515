package study

import (
	"context"
	"sync"

	id "recrusearch/pkg/domain"
	"recrusearch/pkg/platform/sentinel"
)

// InMemoryStore keeps studies in a mutex-guarded map. It intentionally favors
// clarity over performance.
type InMemoryStore struct {
	mu      sync.RWMutex
	studies map[id.StudyID]Study
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{studies: make(map[id.StudyID]Study)}
}

func (s *InMemoryStore) Create(_ context.Context, record Study) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.studies[record.ID]; ok {
		return sentinel.ErrConflict
	}
	s.studies[record.ID] = record
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, studyID id.StudyID) (Study, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if record, ok := s.studies[studyID]; ok {
		return record, nil
	}
	return Study{}, sentinel.ErrNotFound
}

func (s *InMemoryStore) Close(_ context.Context, studyID id.StudyID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.studies[studyID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if record.Status != StatusActive {
		return sentinel.ErrInvalidState
	}
	record.Status = StatusClosed
	s.studies[studyID] = record
	return nil
}
