//go:build integration

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "recrusearch/pkg/domain"
	"recrusearch/pkg/testutil/containers"
)

func TestStatusCache(t *testing.T) {
	rc := containers.NewRedisContainer(t)
	ctx := context.Background()

	cache := NewStatusCache(rc.Client, time.Minute)
	key := id.ConsentKey{Participant: id.Identity(uuid.New()), Study: id.NewStudyID()}

	t.Run("miss before set", func(t *testing.T) {
		_, ok, err := cache.Get(ctx, key)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("set then get", func(t *testing.T) {
		require.NoError(t, cache.Set(ctx, key, "granted"))

		state, ok, err := cache.Get(ctx, key)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "granted", state)
	})

	t.Run("invalidate clears the entry", func(t *testing.T) {
		require.NoError(t, cache.Set(ctx, key, "granted"))
		require.NoError(t, cache.Invalidate(ctx, key))

		_, ok, err := cache.Get(ctx, key)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("entries expire", func(t *testing.T) {
		short := NewStatusCache(rc.Client, 100*time.Millisecond)
		require.NoError(t, short.Set(ctx, key, "revoked"))

		assert.Eventually(t, func() bool {
			_, ok, err := short.Get(ctx, key)
			return err == nil && !ok
		}, 2*time.Second, 50*time.Millisecond)
	})
}
