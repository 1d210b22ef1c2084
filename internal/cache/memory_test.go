package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestCache returns a cache driven by a fake clock and the function that
// advances it.
func newTestCache(t *testing.T) (*MemoryCache, func(time.Duration)) {
	t.Helper()
	c := NewMemoryCache()
	t.Cleanup(func() { c.Close() })

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	return c, func(d time.Duration) { now = now.Add(d) }
}

func TestMemoryCacheSetGet(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	_, err := c.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrCacheMiss)

	value := []byte("v")
	require.NoError(t, c.Set(ctx, "k", value, time.Minute))
	value[0] = 'x'

	got, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)

	require.NoError(t, c.Delete(ctx, "k"))
	ok, err := c.Exists(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryCacheExpiry(t *testing.T) {
	c, advance := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute))
	advance(59 * time.Second)
	ok, err := c.Exists(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)

	advance(time.Second)
	_, err = c.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestMemoryCacheSetNX(t *testing.T) {
	c, advance := newTestCache(t)
	ctx := context.Background()

	stored, err := c.SetNX(ctx, "k", []byte("first"), time.Minute)
	require.NoError(t, err)
	assert.True(t, stored)

	stored, err = c.SetNX(ctx, "k", []byte("second"), time.Minute)
	require.NoError(t, err)
	assert.False(t, stored)

	got, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("first"), got)

	advance(2 * time.Minute)
	stored, err = c.SetNX(ctx, "k", []byte("third"), time.Minute)
	require.NoError(t, err)
	assert.True(t, stored)
}

func TestMemoryCacheGetDel(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "state", []byte("1"), time.Minute))

	got, err := c.GetDel(ctx, "state")
	require.NoError(t, err)
	assert.Equal(t, []byte("1"), got)

	_, err = c.GetDel(ctx, "state")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestMemoryCacheSweep(t *testing.T) {
	c, advance := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "short", []byte("1"), time.Second))
	require.NoError(t, c.Set(ctx, "long", []byte("1"), time.Hour))
	assert.Equal(t, 2, c.Len())

	advance(time.Minute)
	c.sweep()
	assert.Equal(t, 1, c.Len())
}
