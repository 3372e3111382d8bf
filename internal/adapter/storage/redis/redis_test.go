package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) (*goredis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return client, mr
}

func TestIdempotencyCache_GetMiss(t *testing.T) {
	client, _ := newTestClient(t)
	cache := NewIdempotencyCache(client)

	val, err := cache.Get(context.Background(), "no-such-key")
	require.NoError(t, err)
	assert.Nil(t, val)
}

func TestIdempotencyCache_SetThenGet(t *testing.T) {
	client, mr := newTestClient(t)
	cache := NewIdempotencyCache(client)
	ctx := context.Background()

	err := cache.Set(ctx, "txn-abc", []byte(`{"duplicate":false}`), time.Minute)
	require.NoError(t, err)

	val, err := cache.Get(ctx, "txn-abc")
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"duplicate":false}`), val)

	// Entry disappears once the TTL elapses.
	mr.FastForward(2 * time.Minute)
	val, err = cache.Get(ctx, "txn-abc")
	require.NoError(t, err)
	assert.Nil(t, val)
}

func TestJobLock_Acquire(t *testing.T) {
	client, mr := newTestClient(t)
	lock := NewJobLock(client)
	ctx := context.Background()

	ok, err := lock.Acquire(ctx, "sweep", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	// Second acquire while held fails.
	ok, err = lock.Acquire(ctx, "sweep", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	// A different job name is independent.
	ok, err = lock.Acquire(ctx, "reconcile", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	// TTL expiry frees the lock without an explicit release.
	mr.FastForward(2 * time.Minute)
	ok, err = lock.Acquire(ctx, "sweep", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestJobLock_Release(t *testing.T) {
	client, _ := newTestClient(t)
	lock := NewJobLock(client)
	ctx := context.Background()

	ok, err := lock.Acquire(ctx, "sweep", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, lock.Release(ctx, "sweep"))

	ok, err = lock.Acquire(ctx, "sweep", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestHealthCheck(t *testing.T) {
	client, mr := newTestClient(t)
	hc := NewHealthCheck(client)

	assert.Equal(t, "redis", hc.Name())
	assert.NoError(t, hc.Ping(context.Background()))

	mr.Close()
	assert.Error(t, hc.Ping(context.Background()))
}
