package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestInMemoryCacheExpiry(t *testing.T) {
	c := NewInMemoryCache[string, int](time.Minute)
	defer c.Stop()

	now := time.Unix(1_700_000_000, 0)
	c.now = func() time.Time { return now }

	c.Set("a", 1, 0)
	c.Set("b", 2, 10*time.Second)
	c.Set("c", 3, -1)

	v, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 1, v)

	now = now.Add(30 * time.Second)
	_, ok = c.Get("b")
	assert.False(t, ok, "b should be expired")

	now = now.Add(time.Hour)
	_, ok = c.Get("a")
	assert.False(t, ok, "a should be expired after default ttl")

	v, ok = c.Get("c")
	assert.True(t, ok, "negative ttl never expires")
	assert.Equal(t, 3, v)
}

func TestInMemoryCacheSnapshotSkipsExpired(t *testing.T) {
	c := NewInMemoryCache[string, string](0)
	defer c.Stop()

	now := time.Unix(1_700_000_000, 0)
	c.now = func() time.Time { return now }

	c.Set("keep", "x", 0)
	c.Set("drop", "y", time.Second)
	now = now.Add(2 * time.Second)

	snap := c.Snapshot()
	assert.Equal(t, map[string]string{"keep": "x"}, snap)
	assert.Equal(t, 2, c.Size())

	c.cleanup()
	assert.Equal(t, 1, c.Size())

	c.Clear()
	assert.Equal(t, 0, c.Size())
}

func TestSortedKeys(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, SortedKeys(map[string]int{"c": 1, "a": 2, "b": 3}))
	assert.Empty(t, SortedKeys(map[string]int{}))
}

func TestStopIsIdempotent(t *testing.T) {
	c := NewInMemoryCache[int, int](time.Second)
	c.Stop()
	c.Stop()
}
