// Package cache holds the Redis-backed resolution cache: a cache-aside
// projection of resolution-relevant link fields keyed by short code.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pulseurl/pulseurl/internal/app/model"
	"github.com/redis/go-redis/v9"
)

// DefaultTTL bounds cache entries for links that never expire, so store
// side edits (including deletion) propagate without manual invalidation.
const DefaultTTL = time.Hour

// LinkCache is the fast-path key/value layer consulted before the store.
type LinkCache interface {
	// Get returns the cached projection, or ok=false on a miss.
	Get(ctx context.Context, code string) (*model.CacheEntry, bool, error)
	Set(ctx context.Context, code string, entry *model.CacheEntry) error
	Delete(ctx context.Context, code string) error
}

type redisLinkCache struct {
	rdb       *redis.Client
	keyPrefix string
}

// NewRedisLinkCache returns a LinkCache stored in Redis under
// "link:<code>" keys.
func NewRedisLinkCache(rdb *redis.Client) LinkCache {
	return &redisLinkCache{rdb: rdb, keyPrefix: "link:"}
}

func (c *redisLinkCache) Get(ctx context.Context, code string) (*model.CacheEntry, bool, error) {
	data, err := c.rdb.Get(ctx, c.keyPrefix+code).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache: get %q: %w", code, err)
	}

	var entry model.CacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		// A corrupt entry is treated as a miss; the store refreshes it.
		_ = c.rdb.Del(ctx, c.keyPrefix+code).Err()
		return nil, false, nil
	}
	return &entry, true, nil
}

func (c *redisLinkCache) Set(ctx context.Context, code string, entry *model.CacheEntry) error {
	ttl := TTLFor(entry.ExpiresAt, time.Now())
	if ttl <= 0 {
		return nil
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("cache: marshal %q: %w", code, err)
	}
	if err := c.rdb.Set(ctx, c.keyPrefix+code, data, ttl).Err(); err != nil {
		return fmt.Errorf("cache: set %q: %w", code, err)
	}
	return nil
}

func (c *redisLinkCache) Delete(ctx context.Context, code string) error {
	if err := c.rdb.Del(ctx, c.keyPrefix+code).Err(); err != nil {
		return fmt.Errorf("cache: delete %q: %w", code, err)
	}
	return nil
}

// TTLFor computes the cache lifetime for an entry: the time remaining
// until expiry, or DefaultTTL when the link never expires. A
// non-positive result means the entry must not be cached at all.
func TTLFor(expiresAt *time.Time, now time.Time) time.Duration {
	if expiresAt == nil {
		return DefaultTTL
	}
	return expiresAt.Sub(now)
}
