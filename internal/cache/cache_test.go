package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTTLCache(t *testing.T) {
	t.Run("set then get", func(t *testing.T) {
		c := NewTTL[int](10, time.Minute)
		c.Set("a", 1)

		got, ok := c.Get("a")
		require.True(t, ok)
		assert.Equal(t, 1, got)
	})

	t.Run("missing key", func(t *testing.T) {
		c := NewTTL[int](10, time.Minute)
		_, ok := c.Get("missing")
		assert.False(t, ok)
	})

	t.Run("entries expire", func(t *testing.T) {
		c := NewTTL[int](10, 10*time.Millisecond)
		c.Set("a", 1)

		time.Sleep(30 * time.Millisecond)
		_, ok := c.Get("a")
		assert.False(t, ok)
	})

	t.Run("delete removes an entry", func(t *testing.T) {
		c := NewTTL[string](10, time.Minute)
		c.Set("a", "x")
		c.Delete("a")
		_, ok := c.Get("a")
		assert.False(t, ok)
	})

	t.Run("purge removes everything", func(t *testing.T) {
		c := NewTTL[string](10, time.Minute)
		c.Set("a", "x")
		c.Set("b", "y")
		c.Purge()

		_, ok := c.Get("a")
		assert.False(t, ok)
		_, ok = c.Get("b")
		assert.False(t, ok)
	})
}

func TestNopCache(t *testing.T) {
	c := NewNop[int]()
	c.Set("a", 1)

	_, ok := c.Get("a")
	assert.False(t, ok, "nop cache must never hit")
	c.Delete("a")
	c.Purge()
}
