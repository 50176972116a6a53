package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const tokenKeyPrefix = "auth_token:"

// TokenCache stores resolved identities keyed by hashed bearer token.
// Entries expire after the configured TTL; logout removes them early.
// Per-key operations are atomic on the Redis side, so concurrent
// requests for the same token cannot corrupt an entry.
type TokenCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewTokenCache wraps a Redis client with the identity-cache key schema.
func NewTokenCache(client *redis.Client, ttl time.Duration) *TokenCache {
	return &TokenCache{client: client, ttl: ttl}
}

// Get returns the cached identity for a token hash, or ErrCacheMiss.
func (c *TokenCache) Get(ctx context.Context, tokenHash string) (*Identity, error) {
	raw, err := c.client.Get(ctx, tokenKeyPrefix+tokenHash).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("token cache get: %w", err)
	}

	identity, err := ParseIdentity(raw)
	if err != nil {
		// A corrupt entry is unusable; treat it as absent so the
		// caller revalidates against the identity service.
		return nil, ErrCacheMiss
	}
	return identity, nil
}

// Put stores a raw identity payload under the token hash, overwriting
// any existing entry and restarting the TTL.
func (c *TokenCache) Put(ctx context.Context, tokenHash string, raw []byte) error {
	if err := c.client.Set(ctx, tokenKeyPrefix+tokenHash, raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("token cache put: %w", err)
	}
	return nil
}

// Invalidate removes the entry for a token hash regardless of its
// remaining TTL. Missing entries are not an error.
func (c *TokenCache) Invalidate(ctx context.Context, tokenHash string) error {
	if err := c.client.Del(ctx, tokenKeyPrefix+tokenHash).Err(); err != nil {
		return fmt.Errorf("token cache invalidate: %w", err)
	}
	return nil
}
