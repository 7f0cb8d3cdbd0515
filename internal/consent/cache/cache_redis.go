// Package cache accelerates consent-status reads. The authoritative record
// always lives in the store; this cache only short-circuits the hot
// "is consent currently valid" lookup and is invalidated on every state
// change, so a stale entry can survive at most the TTL after a miss-path
// write elsewhere. Revocation invalidates explicitly.
package cache

import (
	"context"
	"errors"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"recrusearch/internal/platform/redis"
	id "recrusearch/pkg/domain"
)

// StatusCache stores the serialized consent state per pair.
type StatusCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewStatusCache(client *redis.Client, ttl time.Duration) *StatusCache {
	return &StatusCache{client: client, ttl: ttl}
}

func cacheKey(key id.ConsentKey) string {
	return "consent:" + key.String()
}

// Get returns the cached state and whether it was present.
func (c *StatusCache) Get(ctx context.Context, key id.ConsentKey) (string, bool, error) {
	value, err := c.client.Get(ctx, cacheKey(key)).Result()
	if errors.Is(err, goredis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

// Set stores the state for the pair.
func (c *StatusCache) Set(ctx context.Context, key id.ConsentKey, state string) error {
	return c.client.Set(ctx, cacheKey(key), state, c.ttl).Err()
}

// Invalidate drops the cached entry; called on revoke and claim.
func (c *StatusCache) Invalidate(ctx context.Context, key id.ConsentKey) error {
	return c.client.Del(ctx, cacheKey(key)).Err()
}
