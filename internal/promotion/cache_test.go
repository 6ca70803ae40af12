package promotion

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingCatalog struct {
	promos []Promotion
	err    error
	calls  int
}

func (c *countingCatalog) Active(ctx context.Context, now time.Time) ([]Promotion, error) {
	c.calls++
	return c.promos, c.err
}

func newTestCache(t *testing.T, inner Catalog) (*CachedCatalog, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewCachedCatalog(inner, client, time.Minute), mr
}

func TestCachedCatalogServesFromCache(t *testing.T) {
	inner := &countingCatalog{promos: []Promotion{orderPromo(1, 1)}}
	cache, _ := newTestCache(t, inner)

	first, err := cache.Active(context.Background(), testNow)
	require.NoError(t, err)
	require.Len(t, first, 1)
	assert.Equal(t, 1, inner.calls)

	second, err := cache.Active(context.Background(), testNow)
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.Equal(t, int64(1), second[0].ID)
	assert.Equal(t, 1, inner.calls, "second read must hit the cache")
}

func TestInvalidateForcesReload(t *testing.T) {
	inner := &countingCatalog{promos: []Promotion{orderPromo(1, 1)}}
	cache, _ := newTestCache(t, inner)

	_, err := cache.Active(context.Background(), testNow)
	require.NoError(t, err)

	require.NoError(t, cache.Invalidate(context.Background()))

	_, err = cache.Active(context.Background(), testNow)
	require.NoError(t, err)
	assert.Equal(t, 2, inner.calls, "invalidation must orphan the cached entry")
}

func TestCacheFailureFallsBackToInner(t *testing.T) {
	inner := &countingCatalog{promos: []Promotion{orderPromo(1, 1)}}
	cache, mr := newTestCache(t, inner)
	mr.Close()

	promos, err := cache.Active(context.Background(), testNow)
	require.NoError(t, err)
	assert.Len(t, promos, 1)
	assert.Equal(t, 1, inner.calls)
}

func TestNilClientPassesThrough(t *testing.T) {
	inner := &countingCatalog{promos: []Promotion{orderPromo(1, 1)}}
	cache := NewCachedCatalog(inner, nil, time.Minute)

	promos, err := cache.Active(context.Background(), testNow)
	require.NoError(t, err)
	assert.Len(t, promos, 1)
}

func TestInnerErrorPropagatesThroughCache(t *testing.T) {
	inner := &countingCatalog{err: errors.New("db down")}
	cache, _ := newTestCache(t, inner)

	_, err := cache.Active(context.Background(), testNow)
	require.Error(t, err)
}
