package consent

import (
	"context"
	"sync"
	"time"

	id "recrusearch/pkg/domain"
	"recrusearch/pkg/platform/sentinel"
)

// InMemoryStore keeps consent records in a mutex-guarded map. First-writer-
// wins on Create gives the same exactly-once guarantee the Postgres primary
// key does: of two racing grants, exactly one inserts and the other observes
// the conflict.
type InMemoryStore struct {
	mu      sync.RWMutex
	records map[id.ConsentKey]Record
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{records: make(map[id.ConsentKey]Record)}
}

func (s *InMemoryStore) Create(_ context.Context, record Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := record.Key()
	if _, ok := s.records[key]; ok {
		return sentinel.ErrConflict
	}
	s.records[key] = record
	return nil
}

func (s *InMemoryStore) Find(_ context.Context, key id.ConsentKey) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if record, ok := s.records[key]; ok {
		return record, nil
	}
	return Record{}, sentinel.ErrNotFound
}

func (s *InMemoryStore) Revoke(_ context.Context, key id.ConsentKey, revokedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[key]
	if !ok {
		return sentinel.ErrNotFound
	}
	if record.State != StateGranted {
		return sentinel.ErrInvalidState
	}
	record.State = StateRevoked
	record.RevokedAt = &revokedAt
	s.records[key] = record
	return nil
}

func (s *InMemoryStore) MarkClaimed(_ context.Context, key id.ConsentKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[key]
	if !ok {
		return sentinel.ErrNotFound
	}
	if record.Claimed {
		return sentinel.ErrAlreadyUsed
	}
	if record.State != StateGranted {
		return sentinel.ErrInvalidState
	}
	record.Claimed = true
	s.records[key] = record
	return nil
}
