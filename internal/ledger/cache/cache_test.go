package cache

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return New(client, time.Minute)
}

func TestFetchJSONCachesUntilBump(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	calls := 0
	loader := func(context.Context) (interface{}, error) {
		calls++
		return map[string]int64{"balance": 4200}, nil
	}

	key, err := c.BuildKey(ctx, "ledger", "tb", "2025-01-31")
	require.NoError(t, err)

	var out map[string]int64
	require.NoError(t, c.FetchJSON(ctx, key, &out, loader))
	require.Equal(t, int64(4200), out["balance"])
	require.Equal(t, 1, calls)

	require.NoError(t, c.FetchJSON(ctx, key, &out, loader))
	require.Equal(t, 1, calls, "second read should hit cache")

	require.NoError(t, c.Bump(ctx))
	key2, err := c.BuildKey(ctx, "ledger", "tb", "2025-01-31")
	require.NoError(t, err)
	require.NotEqual(t, key, key2, "bump must rotate the key version")

	require.NoError(t, c.FetchJSON(ctx, key2, &out, loader))
	require.Equal(t, 2, calls, "bumped version should reload")
}

func TestNilCachePassesThrough(t *testing.T) {
	var c *Cache
	ctx := context.Background()

	key, err := c.BuildKey(ctx, "ledger", "pl")
	require.NoError(t, err)

	var out map[string]string
	err = c.FetchJSON(ctx, key, &out, func(context.Context) (interface{}, error) {
		return map[string]string{"status": "fresh"}, nil
	})
	require.NoError(t, err)
	require.Equal(t, "fresh", out["status"])
	require.NoError(t, c.Bump(ctx))
}

func TestTryLockMutualExclusion(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	ok, err := c.TryLock(ctx, "ledger:recalc", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = c.TryLock(ctx, "ledger:recalc", time.Minute)
	require.NoError(t, err)
	require.False(t, ok, "second holder must be rejected")

	require.NoError(t, c.Unlock(ctx, "ledger:recalc"))
	ok, err = c.TryLock(ctx, "ledger:recalc", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
}
