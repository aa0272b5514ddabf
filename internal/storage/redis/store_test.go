package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stakeduel-backend/internal/storage"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)

	store, err := NewStore(context.Background(), Options{Addr: mr.Addr(), KeyPrefix: "test:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store, mr
}

func TestRedisStore(t *testing.T) {
	ctx := context.Background()
	store, mr := newTestStore(t)

	_, err := store.Get(ctx, "snapshots/current")
	require.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, store.Put(ctx, "snapshots/current", []byte(`{"version":1}`)))
	require.NoError(t, store.Put(ctx, "snapshots/archive/1", []byte("a")))
	require.NoError(t, store.Put(ctx, "snapshots/archive/2", []byte("b")))

	assert.True(t, mr.Exists("test:snapshots/current"))

	data, err := store.Get(ctx, "snapshots/current")
	require.NoError(t, err)
	assert.JSONEq(t, `{"version":1}`, string(data))

	keys, err := store.List(ctx, "snapshots/archive/")
	require.NoError(t, err)
	assert.Equal(t, []string{"snapshots/archive/1", "snapshots/archive/2"}, keys)

	require.NoError(t, store.Delete(ctx, "snapshots/archive/1"))
	keys, err = store.List(ctx, "snapshots/archive/")
	require.NoError(t, err)
	assert.Equal(t, []string{"snapshots/archive/2"}, keys)
}

func TestRedisRateLimit(t *testing.T) {
	ctx := context.Background()
	store, mr := newTestStore(t)

	for i := 0; i < 3; i++ {
		allowed, err := store.CheckRateLimit(ctx, "user_1", "match", 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, allowed, "call %d should be allowed", i+1)
	}

	allowed, err := store.CheckRateLimit(ctx, "user_1", "match", 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, allowed)

	mr.FastForward(2 * time.Minute)

	allowed, err = store.CheckRateLimit(ctx, "user_1", "match", 3, time.Minute)
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestRedisRateLimitKeyKeepsPrefixVerbatim(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	store, err := NewStore(ctx, Options{Addr: mr.Addr(), KeyPrefix: "100%:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	allowed, err := store.CheckRateLimit(ctx, "user_1", "match", 1, time.Minute)
	require.NoError(t, err)
	assert.True(t, allowed)

	key := "100%:ratelimit:user_1:match"
	assert.True(t, mr.Exists(key))
	assert.Equal(t, time.Minute, mr.TTL(key))
}

func TestRedisUnavailable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err := NewStore(ctx, Options{Addr: "127.0.0.1:1"})
	assert.Error(t, err)
}
