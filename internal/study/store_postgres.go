package study

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	id "recrusearch/pkg/domain"
	"recrusearch/pkg/platform/sentinel"
	ptx "recrusearch/pkg/platform/tx"
)

// PostgresStore persists studies. Statements join an ambient pgx transaction
// when the context carries one.
type PostgresStore struct {
	db *pgxpool.Pool
}

func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, record Study) error {
	_, err := s.exec(ctx,
		`INSERT INTO studies (study_id, researcher, metadata_ref, reward_amount, status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		record.ID.String(), record.Researcher.String(), record.MetadataRef.String(),
		record.RewardAmount, string(record.Status), record.CreatedAt)
	if isUniqueViolation(err) {
		return sentinel.ErrConflict
	}
	if err != nil {
		return fmt.Errorf("insert study: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, studyID id.StudyID) (Study, error) {
	var (
		record            Study
		rawID, researcher string
		metadataRef       string
		status            string
	)
	err := s.queryRow(ctx,
		`SELECT study_id, researcher, metadata_ref, reward_amount, status, created_at
		 FROM studies WHERE study_id = $1`, studyID.String(),
	).Scan(&rawID, &researcher, &metadataRef, &record.RewardAmount, &status, &record.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Study{}, sentinel.ErrNotFound
	}
	if err != nil {
		return Study{}, fmt.Errorf("find study: %w", err)
	}
	if record.ID, err = id.ParseStudyID(rawID); err != nil {
		return Study{}, fmt.Errorf("stored study id corrupt: %w", err)
	}
	if record.Researcher, err = id.ParseIdentity(researcher); err != nil {
		return Study{}, fmt.Errorf("stored researcher identity corrupt: %w", err)
	}
	record.MetadataRef = id.MetadataRef(metadataRef)
	record.Status = Status(status)
	return record, nil
}

func (s *PostgresStore) Close(ctx context.Context, studyID id.StudyID) error {
	tag, err := s.exec(ctx,
		`UPDATE studies SET status = $2 WHERE study_id = $1 AND status = $3`,
		studyID.String(), string(StatusClosed), string(StatusActive))
	if err != nil {
		return fmt.Errorf("close study: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Distinguish missing from already-closed for the service layer.
		if _, findErr := s.FindByID(ctx, studyID); errors.Is(findErr, sentinel.ErrNotFound) {
			return sentinel.ErrNotFound
		}
		return sentinel.ErrInvalidState
	}
	return nil
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

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
