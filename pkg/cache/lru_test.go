package cache_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/trackkit/trackkit/pkg/cache"
)

func TestLRU(t *testing.T) {
	t.Parallel()

	t.Run("get and set", func(t *testing.T) {
		c := cache.NewLRU[string, int](2)

		c.Set("a", 1)
		v, ok := c.Get("a")
		assert.True(t, ok)
		assert.Equal(t, 1, v)

		_, ok = c.Get("missing")
		assert.False(t, ok)
	})

	t.Run("evicts least recently used", func(t *testing.T) {
		c := cache.NewLRU[string, int](2)

		c.Set("a", 1)
		c.Set("b", 2)
		c.Get("a") // a is now more recent than b
		c.Set("c", 3)

		_, ok := c.Get("b")
		assert.False(t, ok)

		v, ok := c.Get("a")
		assert.True(t, ok)
		assert.Equal(t, 1, v)
	})

	t.Run("set updates existing key without eviction", func(t *testing.T) {
		c := cache.NewLRU[string, int](2)

		c.Set("a", 1)
		c.Set("b", 2)
		c.Set("a", 10)

		assert.Equal(t, 2, c.Len())
		v, _ := c.Get("a")
		assert.Equal(t, 10, v)
	})

	t.Run("delete and purge", func(t *testing.T) {
		c := cache.NewLRU[string, int](4)

		c.Set("a", 1)
		c.Set("b", 2)
		c.Delete("a")
		assert.Equal(t, 1, c.Len())

		c.Purge()
		assert.Equal(t, 0, c.Len())
	})

	t.Run("non-positive capacity panics", func(t *testing.T) {
		assert.Panics(t, func() { cache.NewLRU[string, int](0) })
	})
}
