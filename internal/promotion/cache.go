package promotion

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const cacheVersionKey = "promo:catalog:version"

// CachedCatalog decorates a Catalog with Redis caching. Entries carry a TTL
// and a version suffix; bumping the version invalidates every outstanding
// key at once, so back-office catalog edits take effect immediately without
// scanning for keys.
type CachedCatalog struct {
	inner  Catalog
	client *redis.Client
	ttl    time.Duration
}

// NewCachedCatalog wraps the catalog. A nil client degrades to pass-through.
func NewCachedCatalog(inner Catalog, client *redis.Client, ttl time.Duration) *CachedCatalog {
	return &CachedCatalog{inner: inner, client: client, ttl: ttl}
}

// Active returns the cached active set, loading and storing it on a miss.
// Cache failures fall back to the underlying catalog: a broken Redis must
// not break promotion evaluation.
func (c *CachedCatalog) Active(ctx context.Context, now time.Time) ([]Promotion, error) {
	if c.client == nil {
		return c.inner.Active(ctx, now)
	}

	key, err := c.buildKey(ctx)
	if err != nil {
		return c.inner.Active(ctx, now)
	}

	raw, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		var promos []Promotion
		if err := json.Unmarshal(raw, &promos); err == nil {
			return promos, nil
		}
	}

	promos, err := c.inner.Active(ctx, now)
	if err != nil {
		return nil, err
	}
	if encoded, err := json.Marshal(promos); err == nil {
		_ = c.client.Set(ctx, key, encoded, c.ttl).Err()
	}
	return promos, nil
}

// Invalidate bumps the catalog version, orphaning all cached entries.
func (c *CachedCatalog) Invalidate(ctx context.Context) error {
	if c.client == nil {
		return nil
	}
	return c.client.Incr(ctx, cacheVersionKey).Err()
}

func (c *CachedCatalog) version(ctx context.Context) (int64, error) {
	ver, err := c.client.Get(ctx, cacheVersionKey).Int64()
	if err == redis.Nil {
		if err := c.client.Set(ctx, cacheVersionKey, 1, 0).Err(); err != nil {
			return 0, err
		}
		return 1, nil
	}
	if err != nil {
		return 0, err
	}
	if ver <= 0 {
		ver = 1
		if err := c.client.Set(ctx, cacheVersionKey, ver, 0).Err(); err != nil {
			return 0, err
		}
	}
	return ver, nil
}

func (c *CachedCatalog) buildKey(ctx context.Context) (string, error) {
	ver, err := c.version(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("promo:catalog:active:%d", ver), nil
}
