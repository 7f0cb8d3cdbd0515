package funds

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"recrusearch/pkg/platform/sentinel"
	ptx "recrusearch/pkg/platform/tx"
)

// PostgresStore persists balances in the accounts table. When the context
// carries a pgx transaction (pkg/platform/tx) all statements join it, so a
// service-level boundary can combine a transfer with consent-record updates
// in one commit.
type PostgresStore struct {
	db *pgxpool.Pool
}

func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Balance(ctx context.Context, account AccountID) (int64, error) {
	var balance int64
	err := s.queryRow(ctx,
		`SELECT balance FROM accounts WHERE account_id = $1`, account.String(),
	).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("fetch balance: %w", err)
	}
	return balance, nil
}

func (s *PostgresStore) Deposit(ctx context.Context, account AccountID, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("deposit amount must be positive: %w", sentinel.ErrInvalidState)
	}
	err := s.exec(ctx,
		`INSERT INTO accounts (account_id, balance) VALUES ($1, $2)
		 ON CONFLICT (account_id) DO UPDATE SET balance = accounts.balance + EXCLUDED.balance`,
		account.String(), amount)
	if err != nil {
		return fmt.Errorf("deposit: %w", err)
	}
	return nil
}

func (s *PostgresStore) Transfer(ctx context.Context, from, to AccountID, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("transfer amount must be positive: %w", sentinel.ErrInvalidState)
	}

	run := func(ctx context.Context, q pgx.Tx) error {
		tag, err := q.Exec(ctx,
			`UPDATE accounts SET balance = balance - $2 WHERE account_id = $1 AND balance >= $2`,
			from.String(), amount)
		if err != nil {
			return fmt.Errorf("debit %s: %w", from, err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("account %s cannot cover %d: %w", from, amount, sentinel.ErrInsufficientFunds)
		}
		_, err = q.Exec(ctx,
			`INSERT INTO accounts (account_id, balance) VALUES ($1, $2)
			 ON CONFLICT (account_id) DO UPDATE SET balance = accounts.balance + EXCLUDED.balance`,
			to.String(), amount)
		if err != nil {
			return fmt.Errorf("credit %s: %w", to, err)
		}
		return nil
	}

	// Join an ambient transaction when one is present; otherwise open our own
	// so debit and credit still commit together.
	if tx, ok := ptx.From(ctx); ok {
		return run(ctx, tx)
	}
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transfer: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()
	if err := run(ctx, tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *PostgresStore) queryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if tx, ok := ptx.From(ctx); ok {
		return tx.QueryRow(ctx, sql, args...)
	}
	return s.db.QueryRow(ctx, sql, args...)
}

func (s *PostgresStore) exec(ctx context.Context, sql string, args ...any) error {
	if tx, ok := ptx.From(ctx); ok {
		_, err := tx.Exec(ctx, sql, args...)
		return err
	}
	_, err := s.db.Exec(ctx, sql, args...)
	return err
}
