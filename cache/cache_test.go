package cache_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/sim-inventory/cache"
	"github.com/warp/sim-inventory/inventory"
)

func getRedisClient(t *testing.T) *redis.Client {
	t.Helper()
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}
	rdb, err := cache.Connect(context.Background(), addr)
	if err != nil {
		t.Skipf("Redis not available: %v", err)
	}
	t.Cleanup(func() { rdb.Close() })
	return rdb
}

func TestSummaryCache_RoundTripAndInvalidate(t *testing.T) {
	rdb := getRedisClient(t)
	ctx := context.Background()
	c := cache.NewSummaryCache(rdb, time.Minute)
	require.NoError(t, c.Invalidate(ctx))

	// GIVEN: An empty cache
	_, gen, ok, err := c.Get(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	// WHEN: Storing a summary for the current generation
	sum := inventory.Summary{
		Total:         3,
		InStock:       2,
		OutStock:      1,
		OutStockRatio: decimal.RequireFromString("33.33"),
		ByType:        []inventory.TypeCount{{Name: "M2M", Count: 3}},
	}
	require.NoError(t, c.Set(ctx, gen, sum))

	// THEN: It reads back with the exact ratio
	got, _, ok, err := c.Get(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 3, got.Total)
	assert.Equal(t, "33.33", got.OutStockRatio.StringFixed(2))
	assert.Equal(t, sum.ByType, got.ByType)

	// AND: Invalidate drops it
	require.NoError(t, c.Invalidate(ctx))
	_, _, ok, err = c.Get(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSummaryCache_SetAfterInvalidateIsDiscarded(t *testing.T) {
	rdb := getRedisClient(t)
	ctx := context.Background()
	c := cache.NewSummaryCache(rdb, time.Minute)
	require.NoError(t, c.Invalidate(ctx))

	// GIVEN: A miss observed before a mutation commits
	_, gen, ok, err := c.Get(ctx)
	require.NoError(t, err)
	require.False(t, ok)
	require.NoError(t, c.Invalidate(ctx))

	// WHEN: The summary computed before the mutation is stored late
	require.NoError(t, c.Set(ctx, gen, inventory.Summary{Total: 1}))

	// THEN: It is never served
	_, next, ok, err := c.Get(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, gen+1, next)
}

func TestSummaryCache_CorruptEntryIsMiss(t *testing.T) {
	rdb := getRedisClient(t)
	ctx := context.Background()
	c := cache.NewSummaryCache(rdb, time.Minute)

	_, gen, _, err := c.Get(ctx)
	require.NoError(t, err)
	require.NoError(t, rdb.Set(ctx, cache.SummaryKey(gen), "{not json", time.Minute).Err())
	_, _, ok, err := c.Get(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
	require.NoError(t, c.Invalidate(ctx))
}

func TestImportLock_SecondObtainIsConflict(t *testing.T) {
	rdb := getRedisClient(t)
	ctx := context.Background()
	lock := cache.NewImportLock(rdb, 5*time.Second)

	// GIVEN: One import holding the lock
	release, err := lock.Obtain(ctx)
	require.NoError(t, err)

	// WHEN: A second import tries
	_, err = lock.Obtain(ctx)

	// THEN: Conflict, until the first releases
	require.Error(t, err)
	assert.True(t, inventory.IsConflict(err))
	assert.Equal(t, "another import is in progress", err.Error())

	require.NoError(t, release(ctx))
	again, err := lock.Obtain(ctx)
	require.NoError(t, err)
	require.NoError(t, again(ctx))
}

func TestImportLock_ReleaseAfterExpiryIsHarmless(t *testing.T) {
	rdb := getRedisClient(t)
	ctx := context.Background()
	lock := cache.NewImportLock(rdb, 50*time.Millisecond)

	release, err := lock.Obtain(ctx)
	require.NoError(t, err)
	time.Sleep(120 * time.Millisecond)
	assert.NoError(t, release(ctx))
}
