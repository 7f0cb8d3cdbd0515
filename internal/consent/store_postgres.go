package consent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	id "recrusearch/pkg/domain"
	"recrusearch/pkg/platform/sentinel"
	ptx "recrusearch/pkg/platform/tx"
)

// PostgresStore persists consent records with PRIMARY KEY (participant,
// study): uniqueness is the database's conflict ordering, so two racing
// grants resolve to exactly one insert without application locking. Mutations
// are guarded UPDATEs whose WHERE clauses encode the legal transitions.
type PostgresStore struct {
	db *pgxpool.Pool
}

func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, record Record) error {
	_, err := s.exec(ctx,
		`INSERT INTO consents (participant, study, proof_token, state, claimed, granted_at)
		 VALUES ($1, $2, $3, $4, false, $5)`,
		record.Participant.String(), record.Study.String(), record.ProofToken.String(),
		string(record.State), record.GrantedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return sentinel.ErrConflict
	}
	if err != nil {
		return fmt.Errorf("insert consent: %w", err)
	}
	return nil
}

func (s *PostgresStore) Find(ctx context.Context, key id.ConsentKey) (Record, error) {
	var (
		record                         Record
		participant, study, proofToken string
		state                          string
	)
	err := s.queryRow(ctx,
		`SELECT participant, study, proof_token, state, claimed, granted_at, revoked_at
		 FROM consents WHERE participant = $1 AND study = $2`,
		key.Participant.String(), key.Study.String(),
	).Scan(&participant, &study, &proofToken, &state, &record.Claimed, &record.GrantedAt, &record.RevokedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Record{}, sentinel.ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("find consent: %w", err)
	}
	if record.Participant, err = id.ParseIdentity(participant); err != nil {
		return Record{}, fmt.Errorf("stored participant corrupt: %w", err)
	}
	if record.Study, err = id.ParseStudyID(study); err != nil {
		return Record{}, fmt.Errorf("stored study corrupt: %w", err)
	}
	if record.ProofToken, err = id.ParseTokenRef(proofToken); err != nil {
		return Record{}, fmt.Errorf("stored proof token corrupt: %w", err)
	}
	record.State = State(state)
	return record, nil
}

func (s *PostgresStore) Revoke(ctx context.Context, key id.ConsentKey, revokedAt time.Time) error {
	tag, err := s.exec(ctx,
		`UPDATE consents SET state = $3, revoked_at = $4
		 WHERE participant = $1 AND study = $2 AND state = $5`,
		key.Participant.String(), key.Study.String(),
		string(StateRevoked), revokedAt, string(StateGranted))
	if err != nil {
		return fmt.Errorf("revoke consent: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if _, findErr := s.Find(ctx, key); errors.Is(findErr, sentinel.ErrNotFound) {
			return sentinel.ErrNotFound
		}
		return sentinel.ErrInvalidState
	}
	return nil
}

func (s *PostgresStore) MarkClaimed(ctx context.Context, key id.ConsentKey) error {
	tag, err := s.exec(ctx,
		`UPDATE consents SET claimed = true
		 WHERE participant = $1 AND study = $2 AND state = $3 AND claimed = false`,
		key.Participant.String(), key.Study.String(), string(StateGranted))
	if err != nil {
		return fmt.Errorf("mark claimed: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}
	// The guarded update touched nothing; find out which precondition failed.
	record, findErr := s.Find(ctx, key)
	switch {
	case errors.Is(findErr, sentinel.ErrNotFound):
		return sentinel.ErrNotFound
	case findErr != nil:
		return findErr
	case record.Claimed:
		return sentinel.ErrAlreadyUsed
	default:
		return sentinel.ErrInvalidState
	}
}

func (s *PostgresStore) exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if tx, ok := ptx.From(ctx); ok {
		return tx.Exec(ctx, sql, args...)
	}
	return s.db.Exec(ctx, sql, args...)
}

func (s *PostgresStore) queryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if tx, ok := ptx.From(ctx); ok {
		return tx.QueryRow(ctx, sql, args...)
	}
	return s.db.QueryRow(ctx, sql, args...)
}
