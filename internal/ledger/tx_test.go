package ledger

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "recrusearch/pkg/domain-errors"
)

func TestShardedTx_SerializesSameKey(t *testing.T) {
	runner := NewShardedTx()
	counter := 0

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = runner.RunInTx(context.Background(), "same-key", func(context.Context) error {
				// Unsynchronized increment: only safe if RunInTx serializes.
				v := counter
				counter = v + 1
				return nil
			})
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, counter)
}

func TestShardedTx_DisjointKeysDoNotBlock(t *testing.T) {
	runner := NewShardedTx()
	release := make(chan struct{})
	holding := make(chan struct{})

	// Pick two keys that land on different shards so the assertion cannot be
	// defeated by a hash collision.
	keyA := "key-0"
	keyB := ""
	for i := 1; i < 1000; i++ {
		candidate := fmt.Sprintf("key-%d", i)
		if hashKey(candidate)%numShards != hashKey(keyA)%numShards {
			keyB = candidate
			break
		}
	}
	require.NotEmpty(t, keyB)

	go func() {
		_ = runner.RunInTx(context.Background(), keyA, func(context.Context) error {
			close(holding)
			<-release
			return nil
		})
	}()
	<-holding

	done := make(chan struct{})
	go func() {
		_ = runner.RunInTx(context.Background(), keyB, func(context.Context) error { return nil })
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("disjoint key blocked behind unrelated transaction")
	}
	close(release)
}

func TestShardedTx_CancelledContext(t *testing.T) {
	runner := NewShardedTx()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := runner.RunInTx(ctx, "k", func(context.Context) error {
		t.Fatal("fn must not run after cancellation")
		return nil
	})
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeTimeout))
}

func TestShardedTx_PropagatesError(t *testing.T) {
	runner := NewShardedTx()
	want := dErrors.New(dErrors.CodeAlreadyConsented, "pair already has a record")
	err := runner.RunInTx(context.Background(), "k", func(context.Context) error { return want })
	assert.Equal(t, want, err)
}
