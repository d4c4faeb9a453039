package cache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autoforms/pkg/requestclock"
)

func ctxAt(t time.Time) context.Context {
	return requestclock.WithTime(context.Background(), t)
}

var t0 = time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

func TestCache_GetSet(t *testing.T) {
	c := New(10)
	ctx := ctxAt(t0)

	_, ok := c.Get(ctx, "missing")
	require.False(t, ok, "absence is a miss, not an error")

	c.Set(ctx, "k", "v", time.Hour)
	value, ok := c.Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, "v", value)

	t.Run("overwrite replaces the value", func(t *testing.T) {
		c.Set(ctx, "k", "v2", time.Hour)
		value, ok := c.Get(ctx, "k")
		require.True(t, ok)
		assert.Equal(t, "v2", value)
		assert.Equal(t, 1, c.Len())
	})
}

func TestCache_TTLExpiry(t *testing.T) {
	c := New(10)
	c.Set(ctxAt(t0), "k", "v", 30*time.Minute)

	t.Run("visible before expiry", func(t *testing.T) {
		_, ok := c.Get(ctxAt(t0.Add(29*time.Minute)), "k")
		assert.True(t, ok)
	})

	t.Run("gone after expiry", func(t *testing.T) {
		_, ok := c.Get(ctxAt(t0.Add(31*time.Minute)), "k")
		require.False(t, ok)
		assert.Equal(t, 0, c.Len(), "expired entry removed on read")
	})
}

func TestCache_NoExpiryTTL(t *testing.T) {
	c := New(10)
	c.Set(ctxAt(t0), "k", "v", 0)

	_, ok := c.Get(ctxAt(t0.Add(1000*time.Hour)), "k")
	assert.True(t, ok)
}

func TestCache_LRUEviction(t *testing.T) {
	c := New(3)
	ctx := ctxAt(t0)

	c.Set(ctx, "a", 1, time.Hour)
	c.Set(ctxAt(t0.Add(time.Second)), "b", 2, time.Hour)
	c.Set(ctxAt(t0.Add(2*time.Second)), "c", 3, time.Hour)

	// Touch "a" so "b" becomes the least recently used entry.
	_, ok := c.Get(ctxAt(t0.Add(3*time.Second)), "a")
	require.True(t, ok)

	c.Set(ctxAt(t0.Add(4*time.Second)), "d", 4, time.Hour)

	assert.Equal(t, 3, c.Len())
	_, ok = c.Get(ctxAt(t0.Add(5*time.Second)), "b")
	assert.False(t, ok, "least recently used entry evicted")
	for _, key := range []string{"a", "c", "d"} {
		_, ok := c.Get(ctxAt(t0.Add(5*time.Second)), key)
		assert.True(t, ok, "key %s survives", key)
	}
}

func TestCache_OverwriteDoesNotEvict(t *testing.T) {
	c := New(2)
	ctx := ctxAt(t0)

	c.Set(ctx, "a", 1, time.Hour)
	c.Set(ctx, "b", 2, time.Hour)
	// Overwriting an existing key on a full cache must not evict anything.
	c.Set(ctxAt(t0.Add(time.Second)), "a", 10, time.Hour)

	assert.Equal(t, 2, c.Len())
	_, ok := c.Get(ctxAt(t0.Add(2*time.Second)), "b")
	assert.True(t, ok)
}

func TestCache_DeleteAndClear(t *testing.T) {
	c := New(10)
	ctx := ctxAt(t0)

	c.Set(ctx, "a", 1, time.Hour)
	c.Set(ctx, "b", 2, time.Hour)

	c.Delete(ctx, "a")
	_, ok := c.Get(ctx, "a")
	assert.False(t, ok)

	c.Clear(ctx)
	assert.Equal(t, 0, c.Len())

	t.Run("clear on empty cache is a no-op", func(t *testing.T) {
		c.Clear(ctx)
		assert.Equal(t, 0, c.Len())
	})
}

func TestCache_DeletePrefix(t *testing.T) {
	c := New(10)
	ctx := ctxAt(t0)

	c.Set(ctx, UserPrefix("u1")+"form", 1, time.Hour)
	c.Set(ctx, UserPrefix("u1")+"profile", 2, time.Hour)
	c.Set(ctx, UserPrefix("u2")+"form", 3, time.Hour)

	c.DeletePrefix(ctx, UserPrefix("u1"))

	assert.Equal(t, 1, c.Len())
	_, ok := c.Get(ctx, UserPrefix("u2")+"form")
	assert.True(t, ok)
}

func TestCache_SweepExpired(t *testing.T) {
	c := New(50)
	for i := 0; i < 20; i++ {
		c.Set(ctxAt(t0), fmt.Sprintf("short-%d", i), i, time.Minute)
	}
	for i := 0; i < 5; i++ {
		c.Set(ctxAt(t0), fmt.Sprintf("long-%d", i), i, time.Hour)
	}

	removed := c.SweepExpired(ctxAt(t0.Add(2 * time.Minute)))
	assert.Equal(t, 20, removed)
	assert.Equal(t, 5, c.Len())

	t.Run("second sweep removes nothing", func(t *testing.T) {
		assert.Equal(t, 0, c.SweepExpired(ctxAt(t0.Add(2*time.Minute))))
	})
}

func TestCache_Snapshot(t *testing.T) {
	c := New(200)
	c.Set(ctxAt(t0), "live", 1, time.Hour)
	c.Set(ctxAt(t0), "dead", 2, time.Minute)

	stats := c.Snapshot(ctxAt(t0.Add(5 * time.Minute)))
	assert.Equal(t, 2, stats.TotalEntries)
	assert.Equal(t, 1, stats.ActiveEntries)
	assert.Equal(t, 1, stats.ExpiredEntries)
	assert.Equal(t, 200, stats.MaxSize)
}

func TestCache_BoundNeverExceeded(t *testing.T) {
	c := New(5)
	for i := 0; i < 100; i++ {
		ctx := ctxAt(t0.Add(time.Duration(i) * time.Second))
		c.Set(ctx, fmt.Sprintf("k-%d", i), i, time.Hour)
		require.LessOrEqual(t, c.Len(), 5)
	}
}
