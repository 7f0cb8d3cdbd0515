//go:build integration

package consent

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "recrusearch/pkg/domain"
	"recrusearch/pkg/platform/sentinel"
	"recrusearch/pkg/testutil/containers"
)

func seedStudy(t *testing.T, pg *containers.PostgresContainer) id.StudyID {
	t.Helper()
	studyID := id.NewStudyID()
	_, err := pg.Pool.Exec(context.Background(),
		`INSERT INTO studies (study_id, researcher, metadata_ref, reward_amount, status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		studyID.String(), uuid.NewString(), "QmStudy", int64(1000), "active", time.Now().UTC())
	require.NoError(t, err)
	return studyID
}

func TestPostgresStore_Lifecycle(t *testing.T) {
	pg := containers.NewPostgresContainer(t)
	store := NewPostgresStore(pg.Pool)
	ctx := context.Background()

	studyID := seedStudy(t, pg)
	record := Record{
		Participant: id.Identity(uuid.New()),
		Study:       studyID,
		ProofToken:  id.TokenRef(uuid.New()),
		State:       StateGranted,
		GrantedAt:   time.Now().UTC().Truncate(time.Microsecond),
	}

	require.NoError(t, store.Create(ctx, record))

	found, err := store.Find(ctx, record.Key())
	require.NoError(t, err)
	assert.Equal(t, record.ProofToken, found.ProofToken)
	assert.Equal(t, StateGranted, found.State)
	assert.False(t, found.Claimed)

	// The primary key rejects a second record for the pair.
	duplicate := record
	duplicate.ProofToken = id.TokenRef(uuid.New())
	assert.ErrorIs(t, store.Create(ctx, duplicate), sentinel.ErrConflict)

	require.NoError(t, store.MarkClaimed(ctx, record.Key()))
	assert.ErrorIs(t, store.MarkClaimed(ctx, record.Key()), sentinel.ErrAlreadyUsed)

	revokedAt := time.Now().UTC().Truncate(time.Microsecond)
	require.NoError(t, store.Revoke(ctx, record.Key(), revokedAt))
	assert.ErrorIs(t, store.Revoke(ctx, record.Key(), revokedAt), sentinel.ErrInvalidState)

	found, err = store.Find(ctx, record.Key())
	require.NoError(t, err)
	assert.Equal(t, StateRevoked, found.State)
	require.NotNil(t, found.RevokedAt)
}

func TestPostgresStore_RevokeMissing(t *testing.T) {
	pg := containers.NewPostgresContainer(t)
	store := NewPostgresStore(pg.Pool)
	ctx := context.Background()

	key := id.ConsentKey{Participant: id.Identity(uuid.New()), Study: id.NewStudyID()}
	assert.ErrorIs(t, store.Revoke(ctx, key, time.Now().UTC()), sentinel.ErrNotFound)
	assert.ErrorIs(t, store.MarkClaimed(ctx, key), sentinel.ErrNotFound)
	_, err := store.Find(ctx, key)
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestPostgresStore_MarkClaimedAfterRevoke(t *testing.T) {
	pg := containers.NewPostgresContainer(t)
	store := NewPostgresStore(pg.Pool)
	ctx := context.Background()

	studyID := seedStudy(t, pg)
	record := Record{
		Participant: id.Identity(uuid.New()),
		Study:       studyID,
		ProofToken:  id.TokenRef(uuid.New()),
		State:       StateGranted,
		GrantedAt:   time.Now().UTC(),
	}
	require.NoError(t, store.Create(ctx, record))
	require.NoError(t, store.Revoke(ctx, record.Key(), time.Now().UTC()))

	assert.ErrorIs(t, store.MarkClaimed(ctx, record.Key()), sentinel.ErrInvalidState)
}
