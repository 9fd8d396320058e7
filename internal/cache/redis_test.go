package cache

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEntry struct {
	Name  string
	Count int
}

func setupRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	store, err := NewRedisStore(context.Background(), RedisConfig{
		Addr:   mr.Addr(),
		Prefix: "resit:",
	})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store, mr
}

func TestRedisStoreSetAndGet(t *testing.T) {
	store, mr := setupRedisStore(t)
	ctx := context.Background()

	expected := testEntry{Name: "daily", Count: 3}
	require.NoError(t, store.Set(ctx, "daily|2025-01-01|2025-01-31", expected, time.Minute))
	assert.True(t, mr.Exists("resit:daily|2025-01-01|2025-01-31"))

	var actual testEntry
	found, err := store.Get(ctx, "daily|2025-01-01|2025-01-31", &actual)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, expected, actual)
}

func TestRedisStoreGetNotFound(t *testing.T) {
	store, _ := setupRedisStore(t)

	var out testEntry
	found, err := store.Get(context.Background(), "missing", &out)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestRedisStoreExpiry(t *testing.T) {
	store, mr := setupRedisStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "k", testEntry{Name: "x"}, time.Second))
	mr.FastForward(2 * time.Second)

	var out testEntry
	found, err := store.Get(ctx, "k", &out)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestRedisStoreKeysAndDelete(t *testing.T) {
	store, mr := setupRedisStore(t)
	ctx := context.Background()

	require.NoError(t, mr.Set("other:key", "ignored"))
	require.NoError(t, store.Set(ctx, "a", 1, time.Minute))
	require.NoError(t, store.Set(ctx, "b", 2, time.Minute))

	keys, err := store.Keys(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b"}, keys)

	require.NoError(t, store.Delete(ctx, "a"))
	require.NoError(t, store.Delete(ctx))
	keys, err = store.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, keys)
	assert.True(t, mr.Exists("other:key"))
}

func TestRedisStoreUnreachable(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	addr := mr.Addr()
	mr.Close()

	_, err = NewRedisStore(context.Background(), RedisConfig{Addr: addr, DialTimeout: time.Second})
	assert.Error(t, err)
}

func TestQuerySharesResultsThroughRedis(t *testing.T) {
	store, _ := setupRedisStore(t)
	ctx := context.Background()
	var calls atomic.Int32

	a, _ := newTestQuery[string](t, QueryOptions{Remote: store})
	b, _ := newTestQuery[string](t, QueryOptions{Remote: store})

	_, err := a.Get(ctx, "daily|2025-01-01|2025-01-31", counter(&calls, "v"))
	require.NoError(t, err)
	v, err := b.Get(ctx, "daily|2025-01-01|2025-01-31", counter(&calls, "v"))
	require.NoError(t, err)
	assert.Equal(t, "v#1", v)
	assert.Equal(t, int32(1), calls.Load())

	b.Invalidate(ctx, func(string) bool { return true })
	keys, err := store.Keys(ctx)
	require.NoError(t, err)
	assert.Empty(t, keys)
}
