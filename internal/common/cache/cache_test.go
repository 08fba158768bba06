package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func TestLocalCache(t *testing.T) {
	ctx := context.Background()
	c := NewLocalCache(time.Minute, time.Minute)

	_, found := c.Get(ctx, "missing")
	assert.False(t, found)

	require.NoError(t, c.Set(ctx, "k", []byte{0x30, 0x82}, time.Minute))
	val, found := c.Get(ctx, "k")
	assert.True(t, found)
	assert.Equal(t, []byte{0x30, 0x82}, val)

	ok, err := c.SetNX(ctx, "k", []byte("other"), time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = c.SetNX(ctx, "fresh", []byte("v"), time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, c.Delete(ctx, "k"))
	exists, _ := c.Exists(ctx, "k")
	assert.False(t, exists)

	require.NoError(t, c.Clear(ctx))
	exists, _ = c.Exists(ctx, "fresh")
	assert.False(t, exists)
}

func TestLocalCache_Expiry(t *testing.T) {
	ctx := context.Background()
	c := NewLocalCache(time.Minute, time.Minute)

	require.NoError(t, c.Set(ctx, "short", []byte("v"), 20*time.Millisecond))
	time.Sleep(40 * time.Millisecond)

	_, found := c.Get(ctx, "short")
	assert.False(t, found)
}

func TestRedisCache_BinaryRoundTrip(t *testing.T) {
	ctx := context.Background()
	mr, client := setupRedis(t)
	c := NewRedisCache(client, "test:")

	der := []byte{0x30, 0x00, 0xff, 0x0a, 0x7b}
	require.NoError(t, c.Set(ctx, "cert", der, time.Minute))
	assert.True(t, mr.Exists("test:cert"))

	val, found := c.Get(ctx, "cert")
	assert.True(t, found)
	assert.Equal(t, der, val)

	mr.FastForward(2 * time.Minute)
	_, found = c.Get(ctx, "cert")
	assert.False(t, found)
}

func TestRedisCache_ClearOnlyPrefix(t *testing.T) {
	ctx := context.Background()
	mr, client := setupRedis(t)
	c := NewRedisCache(client, "test:")

	require.NoError(t, c.Set(ctx, "a", []byte("1"), time.Minute))
	require.NoError(t, mr.Set("other:b", "2"))

	require.NoError(t, c.Clear(ctx))
	assert.False(t, mr.Exists("test:a"))
	assert.True(t, mr.Exists("other:b"))
}

func TestTwoTierCache(t *testing.T) {
	ctx := context.Background()
	mr, client := setupRedis(t)
	c := NewTwoTierCache(time.Minute, time.Minute, client, "tt:")

	require.NoError(t, c.Set(ctx, "tok", []byte("abc"), time.Hour))
	assert.True(t, mr.Exists("tt:tok"))

	// L1 still serves after the shared copy disappears.
	mr.Del("tt:tok")
	val, found := c.Get(ctx, "tok")
	assert.True(t, found)
	assert.Equal(t, []byte("abc"), val)

	// An entry that only lives in Redis is promoted into L1.
	require.NoError(t, mr.Set("tt:remote", "xyz"))
	val, found = c.Get(ctx, "remote")
	assert.True(t, found)
	assert.Equal(t, []byte("xyz"), val)
	exists, _ := c.l1.Exists(ctx, "remote")
	assert.True(t, exists)

	require.NoError(t, c.Delete(ctx, "remote"))
	_, found = c.Get(ctx, "remote")
	assert.False(t, found)
}

func TestNew(t *testing.T) {
	_, client := setupRedis(t)

	c, err := New(DefaultConfig())
	require.NoError(t, err)
	assert.IsType(t, &LocalCache{}, c)

	_, err = New(Config{Type: TypeRedis})
	assert.Error(t, err)

	c, err = New(Config{Type: TypeTwoTier, RedisClient: client, TTL: time.Minute})
	require.NoError(t, err)
	assert.IsType(t, &TwoTierCache{}, c)

	_, err = New(Config{Type: "memcached"})
	assert.Error(t, err)
}
