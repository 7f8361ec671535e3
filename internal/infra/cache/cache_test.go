package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestAccelerator_Redis(t *testing.T) {
	ctx := context.Background()
	mr, client := newRedis(t)
	c := New(ctx, client, "merch", zerolog.Nop())
	require.False(t, c.Degraded())

	_, ok := c.Get(ctx, "products:all")
	assert.False(t, ok)

	c.Set(ctx, "products:all", []byte(`[]`), time.Minute)
	got, ok := c.Get(ctx, "products:all")
	require.True(t, ok)
	assert.Equal(t, []byte(`[]`), got)

	stored, err := mr.Get("merch:products:all")
	require.NoError(t, err)
	assert.Equal(t, "[]", stored)
	assert.Equal(t, time.Minute, mr.TTL("merch:products:all"))

	mr.FastForward(2 * time.Minute)
	_, ok = c.Get(ctx, "products:all")
	assert.False(t, ok)

	c.Set(ctx, "k", []byte("v"), time.Minute)
	c.Delete(ctx, "k")
	assert.False(t, mr.Exists("merch:k"))
}

func TestAccelerator_RedisUnreachableAtStart(t *testing.T) {
	ctx := context.Background()
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 50 * time.Millisecond, MaxRetries: -1})
	defer client.Close()

	c := New(ctx, client, "merch", zerolog.Nop())
	require.True(t, c.Degraded())

	c.Set(ctx, "k", []byte("v"), time.Minute)
	got, ok := c.Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, []byte("v"), got)
}

func TestAccelerator_DegradesWhenRedisGoesAway(t *testing.T) {
	ctx := context.Background()
	mr, client := newRedis(t)
	c := New(ctx, client, "", zerolog.Nop())
	require.False(t, c.Degraded())

	mr.Close()

	c.Set(ctx, "k", []byte("v"), time.Minute)
	assert.True(t, c.Degraded())
	got, ok := c.Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, []byte("v"), got)
}

func TestAccelerator_Disabled(t *testing.T) {
	ctx := context.Background()
	c := New(ctx, nil, "", zerolog.Nop())
	assert.True(t, c.Degraded())

	c.Set(ctx, "k", []byte("v"), 0)
	_, ok := c.Get(ctx, "k")
	assert.True(t, ok)
	c.Delete(ctx, "k")
	_, ok = c.Get(ctx, "k")
	assert.False(t, ok)
}

func TestLocalCache_Expiry(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	c := newLocalCache()
	c.now = func() time.Time { return now }

	c.set("k", []byte("v"), time.Second)
	_, ok := c.get("k")
	assert.True(t, ok)

	now = now.Add(2 * time.Second)
	_, ok = c.get("k")
	assert.False(t, ok)
}

func TestLocalCache_CopiesValues(t *testing.T) {
	c := newLocalCache()
	v := []byte("abc")
	c.set("k", v, 0)
	v[0] = 'x'

	got, ok := c.get("k")
	require.True(t, ok)
	assert.Equal(t, []byte("abc"), got)
}
