package redis

import (
	"context"
	"fmt"
	"time"

	"secure-payment-gateway/internal/core/ports"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

// IdempotencyCache implements ports.IdempotencyCache using Redis, the fast
// tier of the two-tier idempotency lookup (§4.2); the durable postgres
// copy in internal/adapter/storage/postgres backs the confirm/cancel
// scopes when this cache evicts or misses.
type IdempotencyCache struct {
	client *goredis.Client
	prefix string
}

// NewIdempotencyCache creates a new Redis-backed idempotency cache.
func NewIdempotencyCache(client *goredis.Client) *IdempotencyCache {
	return &IdempotencyCache{
		client: client,
		prefix: "idempotency:",
	}
}

// Get retrieves a cached value by key. The second return reports whether
// the key existed; a miss is not an error.
func (c *IdempotencyCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if err != nil {
		if err == goredis.Nil {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("redis idempotency get: %w", err)
	}
	return val, true, nil
}

// Set stores a value under key with the given TTL. Entries are treated
// as immutable once written (§5); callers never Set over a live key with
// different content.
func (c *IdempotencyCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := c.client.Set(ctx, c.prefix+key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis idempotency set: %w", err)
	}
	return nil
}

// Invalidate removes every check-scope cache entry for (teamID, paymentID)
// and (teamID, orderID) across all optional-flag/language variants, per
// §4.2's invalidation rule: any successful mutation or expiry-sweep
// transition must not leave a stale Check response reachable. The check
// key embeds the flag/lang suffix after the lookup key
// (domain.BuildCheckKey), so a wildcard SCAN is required rather than a
// single DEL.
func (c *IdempotencyCache) Invalidate(ctx context.Context, teamID uuid.UUID, paymentID, orderID string) error {
	patterns := make([]string, 0, 2)
	if paymentID != "" {
		patterns = append(patterns, fmt.Sprintf("%schk:%s:%s:*", c.prefix, teamID, paymentID))
	}
	if orderID != "" {
		patterns = append(patterns, fmt.Sprintf("%schk:%s:%s:*", c.prefix, teamID, orderID))
	}
	for _, pattern := range patterns {
		if err := c.deleteByPattern(ctx, pattern); err != nil {
			return err
		}
	}
	return nil
}

func (c *IdempotencyCache) deleteByPattern(ctx context.Context, pattern string) error {
	iter := c.client.Scan(ctx, 0, pattern, 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("redis idempotency scan: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis idempotency del: %w", err)
	}
	return nil
}

var _ ports.IdempotencyCache = (*IdempotencyCache)(nil)
