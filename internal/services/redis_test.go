package services

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	cache, err := NewRedisCacheFromClient(context.Background(), redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	require.NoError(t, err)
	t.Cleanup(func() { cache.Close() })

	return cache, mr
}

func TestRedisCacheTryLock(t *testing.T) {
	cache, mr := setupTestRedis(t)
	ctx := context.Background()

	release, ok, err := cache.TryLock(ctx, "member:7", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, mr.Exists(lockPrefix+"member:7"))

	_, ok, err = cache.TryLock(ctx, "member:7", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "second owner must not get the lock")

	require.NoError(t, release(ctx))
	assert.False(t, mr.Exists(lockPrefix+"member:7"))

	_, ok, err = cache.TryLock(ctx, "member:7", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisCacheReleaseKeepsForeignOwner(t *testing.T) {
	cache, mr := setupTestRedis(t)
	ctx := context.Background()

	release, ok, err := cache.TryLock(ctx, "platform:1", time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	// lock expired and was taken by someone else
	mr.FastForward(2 * time.Second)
	_, ok, err = cache.TryLock(ctx, "platform:1", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, release(ctx))
	assert.True(t, mr.Exists(lockPrefix+"platform:1"))
}

func TestNoopLocker(t *testing.T) {
	release, ok, err := NoopLocker{}.TryLock(context.Background(), "any", time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, release(context.Background()))
}
