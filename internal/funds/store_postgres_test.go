//go:build integration

package funds

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "recrusearch/pkg/domain"
	"recrusearch/pkg/platform/sentinel"
	"recrusearch/pkg/testutil/containers"
)

func TestPostgresStore_DepositAndBalance(t *testing.T) {
	pg := containers.NewPostgresContainer(t)
	store := NewPostgresStore(pg.Pool)
	ctx := context.Background()

	account := CustodyAccount(id.Identity(uuid.New()))

	// Accounts spring into existence at zero.
	balance, err := store.Balance(ctx, account)
	require.NoError(t, err)
	assert.Equal(t, int64(0), balance)

	require.NoError(t, store.Deposit(ctx, account, 500))
	require.NoError(t, store.Deposit(ctx, account, 250))

	balance, err = store.Balance(ctx, account)
	require.NoError(t, err)
	assert.Equal(t, int64(750), balance)
}

func TestPostgresStore_Transfer(t *testing.T) {
	pg := containers.NewPostgresContainer(t)
	store := NewPostgresStore(pg.Pool)
	ctx := context.Background()

	from := CustodyAccount(id.Identity(uuid.New()))
	to := VaultAccount(id.NewStudyID())
	require.NoError(t, store.Deposit(ctx, from, 1000))

	require.NoError(t, store.Transfer(ctx, from, to, 400))

	fromBalance, _ := store.Balance(ctx, from)
	toBalance, _ := store.Balance(ctx, to)
	assert.Equal(t, int64(600), fromBalance)
	assert.Equal(t, int64(400), toBalance)
}

func TestPostgresStore_TransferInsufficientFunds(t *testing.T) {
	pg := containers.NewPostgresContainer(t)
	store := NewPostgresStore(pg.Pool)
	ctx := context.Background()

	from := CustodyAccount(id.Identity(uuid.New()))
	to := VaultAccount(id.NewStudyID())
	require.NoError(t, store.Deposit(ctx, from, 100))

	err := store.Transfer(ctx, from, to, 101)
	assert.ErrorIs(t, err, sentinel.ErrInsufficientFunds)

	// Nothing moved.
	fromBalance, _ := store.Balance(ctx, from)
	toBalance, _ := store.Balance(ctx, to)
	assert.Equal(t, int64(100), fromBalance)
	assert.Equal(t, int64(0), toBalance)
}
