package participant

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

type PostgresStore struct {
	db *pgxpool.Pool
}

func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, profile Profile) error {
	// credential_ref is a nullable column: a nil pointer stores SQL NULL,
	// keeping "absent" distinguishable from any present value.
	var credentialRef *string
	if profile.CredentialRef != nil {
		v := profile.CredentialRef.String()
		credentialRef = &v
	}
	err := s.exec(ctx,
		`INSERT INTO participants (identity, metadata_ref, credential_ref, created_at)
		 VALUES ($1, $2, $3, $4)`,
		profile.Identity.String(), profile.MetadataRef.String(), credentialRef, profile.CreatedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return sentinel.ErrConflict
	}
	if err != nil {
		return fmt.Errorf("insert participant: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByIdentity(ctx context.Context, identity id.Identity) (Profile, error) {
	var (
		profile       Profile
		rawIdentity   string
		metadataRef   string
		credentialRef *string
	)
	err := s.queryRow(ctx,
		`SELECT identity, metadata_ref, credential_ref, created_at
		 FROM participants WHERE identity = $1`, identity.String(),
	).Scan(&rawIdentity, &metadataRef, &credentialRef, &profile.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Profile{}, sentinel.ErrNotFound
	}
	if err != nil {
		return Profile{}, fmt.Errorf("find participant: %w", err)
	}
	if profile.Identity, err = id.ParseIdentity(rawIdentity); err != nil {
		return Profile{}, fmt.Errorf("stored identity corrupt: %w", err)
	}
	profile.MetadataRef = id.MetadataRef(metadataRef)
	if credentialRef != nil {
		ref := id.MetadataRef(*credentialRef)
		profile.CredentialRef = &ref
	}
	return profile, nil
}

func (s *PostgresStore) exec(ctx context.Context, sql string, args ...any) error {
	if tx, ok := ptx.From(ctx); ok {
		_, err := tx.Exec(ctx, sql, args...)
		return err
	}
	_, err := s.db.Exec(ctx, sql, args...)
	return err
}

func (s *PostgresStore) queryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if tx, ok := ptx.From(ctx); ok {
		return tx.QueryRow(ctx, sql, args...)
	}
	return s.db.QueryRow(ctx, sql, args...)
}
