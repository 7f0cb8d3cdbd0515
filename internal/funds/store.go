package funds

import "context"

// Store is the fungible balance ledger.
//
// Transfer is all-or-nothing: it debits from and credits to in one atomic
// step or returns sentinel.ErrInsufficientFunds and changes nothing. Accounts
// spring into existence at zero balance; only Deposit and Transfer create
// them.
type Store interface {
	Balance(ctx context.Context, account AccountID) (int64, error)
	Deposit(ctx context.Context, account AccountID, amount int64) error
	Transfer(ctx context.Context, from, to AccountID, amount int64) error
}
