package funds

import (
	"context"
	"fmt"
	"sync"

	"recrusearch/pkg/platform/sentinel"
)

// InMemoryStore keeps balances in a mutex-guarded map. It favors clarity over
// performance; one lock covers every transfer so debit and credit are a single
// atomic step.
type InMemoryStore struct {
	mu       sync.RWMutex
	balances map[AccountID]int64
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{balances: make(map[AccountID]int64)}
}

func (s *InMemoryStore) Balance(_ context.Context, account AccountID) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.balances[account], nil
}

func (s *InMemoryStore) Deposit(_ context.Context, account AccountID, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("deposit amount must be positive: %w", sentinel.ErrInvalidState)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.balances[account] += amount
	return nil
}

func (s *InMemoryStore) Transfer(_ context.Context, from, to AccountID, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("transfer amount must be positive: %w", sentinel.ErrInvalidState)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.balances[from] < amount {
		return fmt.Errorf("account %s holds %d, needs %d: %w", from, s.balances[from], amount, sentinel.ErrInsufficientFunds)
	}
	s.balances[from] -= amount
	s.balances[to] += amount
	return nil
}
