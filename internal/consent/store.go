package consent

import (
	"context"
	"time"

	id "recrusearch/pkg/domain"
)

// Store persists consent records. The (participant, study) key is unique for
// the lifetime of the system; stores enforce it natively (map insert under
// the ledger lock in memory, primary key in Postgres) rather than relying on
// callers to check first.
//
// Create: sentinel.ErrConflict when any record exists for the key.
// Find: sentinel.ErrNotFound when no record exists.
// Revoke: compare-and-set Granted→Revoked; sentinel.ErrNotFound when no
// record exists, sentinel.ErrInvalidState when already revoked.
// MarkClaimed: one-way claimed flag, only while Granted;
// sentinel.ErrAlreadyUsed when already claimed, sentinel.ErrInvalidState when
// revoked, sentinel.ErrNotFound when missing.
type Store interface {
	Create(ctx context.Context, record Record) error
	Find(ctx context.Context, key id.ConsentKey) (Record, error)
	Revoke(ctx context.Context, key id.ConsentKey, revokedAt time.Time) error
	MarkClaimed(ctx context.Context, key id.ConsentKey) error
}
