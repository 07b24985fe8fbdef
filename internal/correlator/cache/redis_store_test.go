package cache

import (
	"context"
	"testing"
	"time"

	"golang-stock-sentiment/internal/entity"
	"golang-stock-sentiment/pkg/logger"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestRedis(t)
	store := NewRedisStore(client, "correlation")

	entry := &entity.CacheEntry{
		Key:       testKey(),
		Value:     testResult(),
		CreatedAt: time.Date(2024, 1, 6, 10, 0, 0, 0, time.UTC),
		TTL:       time.Hour,
	}
	require.NoError(t, store.Set(ctx, testKey().String(), entry))
	assert.True(t, mr.Exists("correlation:"+testKey().String()))
	assert.Equal(t, time.Hour, mr.TTL("correlation:"+testKey().String()))

	got, found, err := store.Get(ctx, testKey().String())
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, entry.Key, got.Key)
	assert.Equal(t, 0.42, got.Value.PearsonR.Float64)
	assert.True(t, entry.CreatedAt.Equal(got.CreatedAt))

	require.NoError(t, store.Delete(ctx, testKey().String()))
	_, found, err = store.Get(ctx, testKey().String())
	require.NoError(t, err)
	assert.False(t, found)
}

func TestRedisStore_ExpiresNatively(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestRedis(t)
	c := NewResultCache(NewRedisStore(client, "correlation"), time.Minute, logger.NewNop())

	require.NoError(t, c.Put(ctx, testKey(), testResult(), time.Minute))
	mr.FastForward(2 * time.Minute)

	_, found, err := c.store.Get(ctx, testKey().String())
	require.NoError(t, err)
	assert.False(t, found)
}

func TestRedisStore_CorruptEntryIsAMiss(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestRedis(t)
	store := NewRedisStore(client, "")

	require.NoError(t, mr.Set("k", "not json"))
	_, found, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, found)
	assert.False(t, mr.Exists("k"))
}
