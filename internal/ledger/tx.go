// Package ledger provides the transactional boundary that makes each registry
// operation a single atomic step against the backing store. Services run every
// multi-record mutation inside RunInTx; the memory implementation serializes
// by key, the Postgres implementation opens one database transaction.
package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	dErrors "recrusearch/pkg/domain-errors"
	ptx "recrusearch/pkg/platform/tx"
)

// TxRunner executes fn atomically. The key names the contended resource (a
// consent pair, a study); operations on disjoint keys must not cross-block.
type TxRunner interface {
	RunInTx(ctx context.Context, key string, fn func(ctx context.Context) error) error
}

// defaultTxTimeout is the maximum duration for one ledger transaction.
const defaultTxTimeout = 5 * time.Second

// numShards spreads key locks so disjoint pairs proceed independently.
const numShards = 128

// ShardedTx provides fine-grained locking using sharded mutexes. Operations
// are distributed across shards by an FNV-1a hash of the key, so two calls on
// the same (participant, study) pair serialize while unrelated pairs run
// concurrently. This is the in-memory stand-in for the ledger's native
// conflict ordering.
type ShardedTx struct {
	shards  [numShards]sync.Mutex
	timeout time.Duration
}

func NewShardedTx() *ShardedTx {
	return &ShardedTx{}
}

func (t *ShardedTx) RunInTx(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	timeout := t.timeout
	if timeout == 0 {
		timeout = defaultTxTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	shard := hashKey(key) % numShards
	t.shards[shard].Lock()
	defer t.shards[shard].Unlock()

	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	return fn(ctx)
}

// hashKey uses FNV-1a for even shard distribution.
func hashKey(s string) uint32 {
	const (
		fnvOffset = 2166136261
		fnvPrime  = 16777619
	)
	h := uint32(fnvOffset)
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= fnvPrime
	}
	return h
}

// PostgresTx runs fn inside one pgx transaction carried in context. Stores
// that find that transaction join it, so the whole operation commits or rolls
// back as a unit; uniqueness is then the database's primary-key enforcement.
type PostgresTx struct {
	db      *pgxpool.Pool
	timeout time.Duration
}

func NewPostgresTx(db *pgxpool.Pool) *PostgresTx {
	return &PostgresTx{db: db}
}

func (t *PostgresTx) RunInTx(ctx context.Context, _ string, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	timeout := t.timeout
	if timeout == 0 {
		timeout = defaultTxTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	tx, err := t.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(ptx.WithTx(ctx, tx)); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
