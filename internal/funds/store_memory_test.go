package funds

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "recrusearch/pkg/domain"
	"recrusearch/pkg/platform/sentinel"
)

func TestTransfer(t *testing.T) {
	ctx := context.Background()
	alice := CustodyAccount(id.Identity(uuid.New()))
	vault := VaultAccount(id.NewStudyID())

	t.Run("moves value atomically", func(t *testing.T) {
		store := NewInMemoryStore()
		require.NoError(t, store.Deposit(ctx, alice, 1000))
		require.NoError(t, store.Transfer(ctx, alice, vault, 400))

		from, _ := store.Balance(ctx, alice)
		to, _ := store.Balance(ctx, vault)
		assert.Equal(t, int64(600), from)
		assert.Equal(t, int64(400), to)
	})

	t.Run("overdraw fails and changes nothing", func(t *testing.T) {
		store := NewInMemoryStore()
		require.NoError(t, store.Deposit(ctx, alice, 100))
		err := store.Transfer(ctx, alice, vault, 101)
		require.ErrorIs(t, err, sentinel.ErrInsufficientFunds)

		from, _ := store.Balance(ctx, alice)
		to, _ := store.Balance(ctx, vault)
		assert.Equal(t, int64(100), from)
		assert.Equal(t, int64(0), to)
	})

	t.Run("non-positive amounts rejected", func(t *testing.T) {
		store := NewInMemoryStore()
		assert.Error(t, store.Transfer(ctx, alice, vault, 0))
		assert.Error(t, store.Transfer(ctx, alice, vault, -5))
		assert.Error(t, store.Deposit(ctx, alice, 0))
	})

	t.Run("unknown account reads as zero", func(t *testing.T) {
		store := NewInMemoryStore()
		balance, err := store.Balance(ctx, CustodyAccount(id.Identity(uuid.New())))
		require.NoError(t, err)
		assert.Zero(t, balance)
	})
}

// TestTransfer_ConcurrentDrain shows the ledger never over-disburses: many
// goroutines racing to drain one account succeed at most balance/amount times.
func TestTransfer_ConcurrentDrain(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()
	source := VaultAccount(id.NewStudyID())
	require.NoError(t, store.Deposit(ctx, source, 500))

	var wg sync.WaitGroup
	var mu sync.Mutex
	successes := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			dest := CustodyAccount(id.Identity(uuid.New()))
			if err := store.Transfer(ctx, source, dest, 100); err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 5, successes)
	remaining, _ := store.Balance(ctx, source)
	assert.Zero(t, remaining)
}
