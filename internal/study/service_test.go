package study

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recrusearch/internal/audit"
	"recrusearch/internal/funds"
	"recrusearch/internal/ledger"
	"recrusearch/internal/platform/metrics"
	id "recrusearch/pkg/domain"
	dErrors "recrusearch/pkg/domain-errors"
)

type fixture struct {
	svc    *Service
	funds  *funds.InMemoryStore
	events *audit.InMemoryStore
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	events := audit.NewInMemoryStore()
	fundsStore := funds.NewInMemoryStore()
	svc := NewService(
		NewInMemoryStore(),
		fundsStore,
		ledger.NewShardedTx(),
		audit.NewPublisher(events),
		metrics.NewForTest(),
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)
	return fixture{svc: svc, funds: fundsStore, events: events}
}

func fundedResearcher(t *testing.T, f fixture, amount int64) id.Identity {
	t.Helper()
	researcher := id.Identity(uuid.New())
	require.NoError(t, f.funds.Deposit(context.Background(), funds.CustodyAccount(researcher), amount))
	return researcher
}

func TestInitialize(t *testing.T) {
	ctx := context.Background()
	metadataRef := id.MetadataRef("QmStudyMeta")

	t.Run("funds the vault and activates the study", func(t *testing.T) {
		f := newFixture(t)
		researcher := fundedResearcher(t, f, 5000)

		record, err := f.svc.Initialize(ctx, researcher, researcher, metadataRef, 1000)
		require.NoError(t, err)
		assert.Equal(t, StatusActive, record.Status)
		assert.Equal(t, researcher, record.Researcher)
		assert.Equal(t, int64(1000), record.RewardAmount)

		vault, err := f.svc.VaultBalance(ctx, record.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(1000), vault)

		custody, _ := f.funds.Balance(ctx, funds.CustodyAccount(researcher))
		assert.Equal(t, int64(4000), custody)
	})

	t.Run("non-positive reward fails with InvalidInput", func(t *testing.T) {
		f := newFixture(t)
		researcher := fundedResearcher(t, f, 5000)

		_, err := f.svc.Initialize(ctx, researcher, researcher, metadataRef, 0)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))

		_, err = f.svc.Initialize(ctx, researcher, researcher, metadataRef, -10)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("invoker other than owner fails with Unauthorized", func(t *testing.T) {
		f := newFixture(t)
		researcher := fundedResearcher(t, f, 5000)
		stranger := id.Identity(uuid.New())

		_, err := f.svc.Initialize(ctx, stranger, researcher, metadataRef, 1000)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	t.Run("unfunded custody fails and leaves no study behind", func(t *testing.T) {
		f := newFixture(t)
		researcher := id.Identity(uuid.New())

		_, err := f.svc.Initialize(ctx, researcher, researcher, metadataRef, 1000)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))

		// No audit of a study that was never created.
		events, _ := f.events.List(ctx)
		assert.Empty(t, events)
	})

	t.Run("emits an audit event", func(t *testing.T) {
		f := newFixture(t)
		researcher := fundedResearcher(t, f, 5000)

		record, err := f.svc.Initialize(ctx, researcher, researcher, metadataRef, 1000)
		require.NoError(t, err)

		events, _ := f.events.List(ctx)
		require.Len(t, events, 1)
		assert.Equal(t, audit.ActionStudyInitialized, events[0].Action)
		assert.Equal(t, record.ID.String(), events[0].Study)
		assert.Equal(t, "1000", events[0].Detail["reward_amount"])
	})
}

func TestClose(t *testing.T) {
	ctx := context.Background()
	metadataRef := id.MetadataRef("QmStudyMeta")

	setup := func(t *testing.T) (fixture, id.Identity, Study) {
		f := newFixture(t)
		researcher := fundedResearcher(t, f, 5000)
		record, err := f.svc.Initialize(ctx, researcher, researcher, metadataRef, 1000)
		require.NoError(t, err)
		return f, researcher, record
	}

	t.Run("owner closes an active study", func(t *testing.T) {
		f, researcher, record := setup(t)
		require.NoError(t, f.svc.Close(ctx, researcher, record.ID))

		got, err := f.svc.Get(ctx, record.ID)
		require.NoError(t, err)
		assert.True(t, got.IsClosed())
	})

	t.Run("closing twice fails with StudyInactive", func(t *testing.T) {
		f, researcher, record := setup(t)
		require.NoError(t, f.svc.Close(ctx, researcher, record.ID))
		err := f.svc.Close(ctx, researcher, record.ID)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeStudyInactive))
	})

	t.Run("non-owner cannot close", func(t *testing.T) {
		f, _, record := setup(t)
		err := f.svc.Close(ctx, id.Identity(uuid.New()), record.ID)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	t.Run("missing study is NotFound", func(t *testing.T) {
		f, researcher, _ := setup(t)
		err := f.svc.Close(ctx, researcher, id.NewStudyID())
		assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}
