package consent

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recrusearch/internal/audit"
	"recrusearch/internal/ledger"
	"recrusearch/internal/minting"
	"recrusearch/internal/participant"
	"recrusearch/internal/platform/metrics"
	"recrusearch/internal/study"
	id "recrusearch/pkg/domain"
	dErrors "recrusearch/pkg/domain-errors"
)

type fixture struct {
	svc         *Service
	studies     *study.InMemoryStore
	profiles    *participant.InMemoryStore
	consents    *InMemoryStore
	events      *audit.InMemoryStore
	participant id.Identity
	activeStudy id.StudyID
	closedStudy id.StudyID
}

type failingMinter struct{}

func (failingMinter) MintUniqueToken(context.Context, id.Identity) (id.TokenRef, error) {
	return id.TokenRef{}, errors.New("mint backend unavailable")
}

func newFixture(t *testing.T, opts ...Option) fixture {
	t.Helper()
	ctx := context.Background()

	studies := study.NewInMemoryStore()
	profiles := participant.NewInMemoryStore()
	consents := NewInMemoryStore()
	events := audit.NewInMemoryStore()

	participantID := id.Identity(uuid.New())
	require.NoError(t, profiles.Create(ctx, participant.Profile{
		Identity:    participantID,
		MetadataRef: id.MetadataRef("QmProfile"),
		CreatedAt:   time.Now().UTC(),
	}))

	active := id.NewStudyID()
	require.NoError(t, studies.Create(ctx, study.Study{
		ID:           active,
		Researcher:   id.Identity(uuid.New()),
		MetadataRef:  id.MetadataRef("QmStudy"),
		RewardAmount: 1000,
		Status:       study.StatusActive,
		CreatedAt:    time.Now().UTC(),
	}))

	closed := id.NewStudyID()
	require.NoError(t, studies.Create(ctx, study.Study{
		ID:           closed,
		Researcher:   id.Identity(uuid.New()),
		MetadataRef:  id.MetadataRef("QmClosed"),
		RewardAmount: 1000,
		Status:       study.StatusClosed,
		CreatedAt:    time.Now().UTC(),
	}))

	opts = append([]Option{WithAuditor(audit.NewPublisher(events))}, opts...)
	svc := NewService(
		consents,
		studies,
		profiles,
		&minting.UUIDMinter{},
		ledger.NewShardedTx(),
		metrics.NewForTest(),
		slog.New(slog.NewTextHandler(io.Discard, nil)),
		opts...,
	)
	return fixture{
		svc:         svc,
		studies:     studies,
		profiles:    profiles,
		consents:    consents,
		events:      events,
		participant: participantID,
		activeStudy: active,
		closedStudy: closed,
	}
}

func TestGrant(t *testing.T) {
	ctx := context.Background()

	t.Run("records consent with a minted proof token", func(t *testing.T) {
		f := newFixture(t)

		record, err := f.svc.Grant(ctx, f.participant, f.participant, f.activeStudy)
		require.NoError(t, err)
		assert.Equal(t, StateGranted, record.State)
		assert.NotEqual(t, id.TokenRef{}, record.ProofToken)
		assert.False(t, record.Claimed)

		stored, err := f.consents.Find(ctx, record.Key())
		require.NoError(t, err)
		assert.Equal(t, record.ProofToken, stored.ProofToken)
	})

	t.Run("second grant for the same pair fails with AlreadyConsented", func(t *testing.T) {
		f := newFixture(t)

		first, err := f.svc.Grant(ctx, f.participant, f.participant, f.activeStudy)
		require.NoError(t, err)

		_, err = f.svc.Grant(ctx, f.participant, f.participant, f.activeStudy)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeAlreadyConsented))

		stored, err := f.consents.Find(ctx, first.Key())
		require.NoError(t, err)
		assert.Equal(t, first.ProofToken, stored.ProofToken, "original token untouched")
	})

	t.Run("grant after revoke fails with AlreadyConsented", func(t *testing.T) {
		f := newFixture(t)

		_, err := f.svc.Grant(ctx, f.participant, f.participant, f.activeStudy)
		require.NoError(t, err)
		require.NoError(t, f.svc.Revoke(ctx, f.participant, f.participant, f.activeStudy))

		_, err = f.svc.Grant(ctx, f.participant, f.participant, f.activeStudy)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeAlreadyConsented))
	})

	t.Run("same participant may consent to distinct studies", func(t *testing.T) {
		f := newFixture(t)
		other := id.NewStudyID()
		require.NoError(t, f.studies.Create(ctx, study.Study{
			ID:           other,
			Researcher:   id.Identity(uuid.New()),
			RewardAmount: 500,
			Status:       study.StatusActive,
			CreatedAt:    time.Now().UTC(),
		}))

		first, err := f.svc.Grant(ctx, f.participant, f.participant, f.activeStudy)
		require.NoError(t, err)
		second, err := f.svc.Grant(ctx, f.participant, f.participant, other)
		require.NoError(t, err)
		assert.NotEqual(t, first.ProofToken, second.ProofToken)
	})

	t.Run("closed study fails with StudyInactive", func(t *testing.T) {
		f := newFixture(t)

		_, err := f.svc.Grant(ctx, f.participant, f.participant, f.closedStudy)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeStudyInactive))
	})

	t.Run("invoker other than participant fails with Unauthorized", func(t *testing.T) {
		f := newFixture(t)

		_, err := f.svc.Grant(ctx, id.Identity(uuid.New()), f.participant, f.activeStudy)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	t.Run("unregistered participant fails with NotFound", func(t *testing.T) {
		f := newFixture(t)
		stranger := id.Identity(uuid.New())

		_, err := f.svc.Grant(ctx, stranger, stranger, f.activeStudy)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	t.Run("missing study fails with NotFound", func(t *testing.T) {
		f := newFixture(t)

		_, err := f.svc.Grant(ctx, f.participant, f.participant, id.NewStudyID())
		assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	t.Run("mint failure aborts the grant and leaves no record", func(t *testing.T) {
		f := newFixture(t)
		f.svc.minter = failingMinter{}

		_, err := f.svc.Grant(ctx, f.participant, f.participant, f.activeStudy)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInternal))

		_, err = f.consents.Find(ctx, id.ConsentKey{Participant: f.participant, Study: f.activeStudy})
		assert.Error(t, err, "no partial record after an aborted grant")
	})

	t.Run("emits an audit event carrying the proof token", func(t *testing.T) {
		f := newFixture(t)

		record, err := f.svc.Grant(ctx, f.participant, f.participant, f.activeStudy)
		require.NoError(t, err)

		events, _ := f.events.List(ctx)
		require.Len(t, events, 1)
		assert.Equal(t, audit.ActionConsentGranted, events[0].Action)
		assert.Equal(t, f.participant.String(), events[0].Actor)
		assert.Equal(t, record.ProofToken.String(), events[0].Detail["proof_token"])
	})
}

func TestRevoke(t *testing.T) {
	ctx := context.Background()

	t.Run("transitions granted consent to revoked", func(t *testing.T) {
		f := newFixture(t)
		record, err := f.svc.Grant(ctx, f.participant, f.participant, f.activeStudy)
		require.NoError(t, err)

		require.NoError(t, f.svc.Revoke(ctx, f.participant, f.participant, f.activeStudy))

		stored, err := f.consents.Find(ctx, record.Key())
		require.NoError(t, err)
		assert.Equal(t, StateRevoked, stored.State)
		assert.NotNil(t, stored.RevokedAt)
	})

	t.Run("revoking twice fails with NotConsented", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.Grant(ctx, f.participant, f.participant, f.activeStudy)
		require.NoError(t, err)
		require.NoError(t, f.svc.Revoke(ctx, f.participant, f.participant, f.activeStudy))

		err = f.svc.Revoke(ctx, f.participant, f.participant, f.activeStudy)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeNotConsented))
	})

	t.Run("revoking without a record fails with NotConsented", func(t *testing.T) {
		f := newFixture(t)

		err := f.svc.Revoke(ctx, f.participant, f.participant, f.activeStudy)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeNotConsented))
	})

	t.Run("invoker other than participant fails with Unauthorized", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.Grant(ctx, f.participant, f.participant, f.activeStudy)
		require.NoError(t, err)

		err = f.svc.Revoke(ctx, id.Identity(uuid.New()), f.participant, f.activeStudy)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})
}

func TestStatus(t *testing.T) {
	ctx := context.Background()

	t.Run("reports none, granted, revoked across the lifecycle", func(t *testing.T) {
		f := newFixture(t)

		state, err := f.svc.Status(ctx, f.participant, f.activeStudy)
		require.NoError(t, err)
		assert.Equal(t, "none", state)

		_, err = f.svc.Grant(ctx, f.participant, f.participant, f.activeStudy)
		require.NoError(t, err)
		state, err = f.svc.Status(ctx, f.participant, f.activeStudy)
		require.NoError(t, err)
		assert.Equal(t, "granted", state)

		require.NoError(t, f.svc.Revoke(ctx, f.participant, f.participant, f.activeStudy))
		state, err = f.svc.Status(ctx, f.participant, f.activeStudy)
		require.NoError(t, err)
		assert.Equal(t, "revoked", state)
	})

	t.Run("serves repeated reads through the cache", func(t *testing.T) {
		cache := newCountingCache()
		f := newFixture(t, WithCache(cache))

		_, err := f.svc.Grant(ctx, f.participant, f.participant, f.activeStudy)
		require.NoError(t, err)

		for i := 0; i < 3; i++ {
			state, err := f.svc.Status(ctx, f.participant, f.activeStudy)
			require.NoError(t, err)
			assert.Equal(t, "granted", state)
		}
		assert.GreaterOrEqual(t, cache.hits, 3)
	})

	t.Run("revoke invalidates the cached state", func(t *testing.T) {
		cache := newCountingCache()
		f := newFixture(t, WithCache(cache))

		_, err := f.svc.Grant(ctx, f.participant, f.participant, f.activeStudy)
		require.NoError(t, err)
		require.NoError(t, f.svc.Revoke(ctx, f.participant, f.participant, f.activeStudy))

		state, err := f.svc.Status(ctx, f.participant, f.activeStudy)
		require.NoError(t, err)
		assert.Equal(t, "revoked", state)
	})
}

// countingCache is a map-backed StatusCache that counts hits.
type countingCache struct {
	entries map[string]string
	hits    int
}

func newCountingCache() *countingCache {
	return &countingCache{entries: make(map[string]string)}
}

func (c *countingCache) Get(_ context.Context, key id.ConsentKey) (string, bool, error) {
	state, ok := c.entries[key.String()]
	if ok {
		c.hits++
	}
	return state, ok, nil
}

func (c *countingCache) Set(_ context.Context, key id.ConsentKey, state string) error {
	c.entries[key.String()] = state
	return nil
}

func (c *countingCache) Invalidate(_ context.Context, key id.ConsentKey) error {
	delete(c.entries, key.String())
	return nil
}
