package audit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recrusearch/pkg/requestcontext"
)

func TestPublisherStampsTimestamp(t *testing.T) {
	store := NewInMemoryStore()
	pub := NewPublisher(store)

	frozen := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	ctx := requestcontext.WithNow(context.Background(), frozen)

	require.NoError(t, pub.Emit(ctx, Event{Action: ActionConsentGranted, Actor: "p1"}))

	events, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, frozen, events[0].Timestamp)
}

func TestWorkerDrainsInbox(t *testing.T) {
	store := NewInMemoryStore()
	inbox := make(chan Event, 8)
	worker := NewWorker(store, inbox)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = worker.Run(ctx)
		close(done)
	}()

	pub := NewChannelPublisher(inbox)
	require.NoError(t, pub.Emit(ctx, Event{Action: ActionRewardClaimed, Actor: "p1"}))
	require.NoError(t, pub.Emit(ctx, Event{Action: ActionConsentRevoked, Actor: "p2"}))

	assert.Eventually(t, func() bool {
		events, err := store.List(context.Background())
		return err == nil && len(events) == 2
	}, time.Second, 10*time.Millisecond)

	cancel()
	<-done
}
