package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) (*Versioned, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewVersioned(client, "ledger", time.Minute), mr
}

func TestFetchJSONCachesLoaderResult(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	key, err := c.BuildKey(ctx, "2024-03-20", "all")
	require.NoError(t, err)
	require.Equal(t, "ledger:2024-03-20:all:v1", key)

	calls := 0
	loader := func(context.Context) (any, error) {
		calls++
		return map[string]int{"n": calls}, nil
	}

	var first map[string]int
	hit, err := c.FetchJSON(ctx, key, &first, loader)
	require.NoError(t, err)
	require.False(t, hit)

	var second map[string]int
	hit, err = c.FetchJSON(ctx, key, &second, loader)
	require.NoError(t, err)
	require.True(t, hit)
	require.Equal(t, 1, calls)
	require.Equal(t, first, second)
}

func TestBumpChangesKeys(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	before, err := c.BuildKey(ctx, "x")
	require.NoError(t, err)
	require.NoError(t, c.Bump(ctx))
	after, err := c.BuildKey(ctx, "x")
	require.NoError(t, err)
	require.NotEqual(t, before, after)
}

func TestDisabledCacheAlwaysLoads(t *testing.T) {
	c := NewVersioned(nil, "ledger", time.Minute)
	ctx := context.Background()

	key, err := c.BuildKey(ctx, "a")
	require.NoError(t, err)
	require.Equal(t, "ledger:a", key)

	calls := 0
	var out int
	for i := 0; i < 2; i++ {
		_, err := c.FetchJSON(ctx, key, &out, func(context.Context) (any, error) {
			calls++
			return calls, nil
		})
		require.NoError(t, err)
	}
	require.Equal(t, 2, calls)
	require.Equal(t, 2, out)
	require.NoError(t, c.Bump(ctx))
}

func TestFetchJSONPropagatesLoaderError(t *testing.T) {
	c, _ := newTestCache(t)
	boom := errors.New("boom")
	var out int
	_, err := c.FetchJSON(context.Background(), "k", &out, func(context.Context) (any, error) {
		return nil, boom
	})
	require.ErrorIs(t, err, boom)
}

func TestListenForInvalidationNeverRewritesVersion(t *testing.T) {
	c, mr := newTestCache(t)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	require.NoError(t, c.ListenForInvalidation(ctx))
	require.NoError(t, c.Bump(ctx))
	require.Eventually(t, func() bool { return c.Observed() == 1 }, time.Second, 10*time.Millisecond)

	// Out of order announcements never move the observed version backwards.
	mr.Publish("ledger.bump", "5")
	mr.Publish("ledger.bump", "2")
	require.Eventually(t, func() bool { return c.Observed() == 5 }, time.Second, 10*time.Millisecond)
	require.Never(t, func() bool { return c.Observed() != 5 }, 200*time.Millisecond, 10*time.Millisecond)

	ver, err := mr.Get("ledger:version")
	require.NoError(t, err)
	require.Equal(t, "1", ver)
}

func TestListenForInvalidationDisabled(t *testing.T) {
	c := NewVersioned(nil, "ledger", time.Minute)
	require.NoError(t, c.ListenForInvalidation(context.Background()))
	require.Zero(t, c.Observed())
}

func TestNewConnectsOrReportsUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := New(context.Background(), mr.Addr())
	require.NoError(t, err)
	require.NoError(t, client.Close())

	addr := mr.Addr()
	mr.Close()
	_, err = New(context.Background(), addr)
	require.ErrorContains(t, err, "platform/cache: ping "+addr)
}
