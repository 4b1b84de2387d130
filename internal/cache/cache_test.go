// ABOUTME: Tests for the TTL value cache
// ABOUTME: Covers expiry, capacity eviction, refresh-on-put, and close

package cache

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCache_PutAndGet(t *testing.T) {
	c := New(time.Minute, 10)
	defer c.Close()

	c.Put("k", "v")

	got, ok := c.Get("k")
	assert.True(t, ok)
	assert.Equal(t, "v", got)

	_, ok = c.Get("absent")
	assert.False(t, ok)
}

func TestCache_ExpiredEntryIsAMiss(t *testing.T) {
	c := New(10*time.Millisecond, 10)
	defer c.Close()

	c.Put("k", "v")
	time.Sleep(20 * time.Millisecond)

	_, ok := c.Get("k")
	assert.False(t, ok)
}

func TestCache_EvictsOldestAtCapacity(t *testing.T) {
	c := New(time.Minute, 3)
	defer c.Close()

	for i := 0; i < 3; i++ {
		c.Put(fmt.Sprintf("k%d", i), i)
	}
	c.Put("k3", 3)

	_, ok := c.Get("k0")
	assert.False(t, ok, "oldest entry evicted first")

	for i := 1; i <= 3; i++ {
		_, ok := c.Get(fmt.Sprintf("k%d", i))
		assert.True(t, ok, "k%d should survive", i)
	}
}

func TestCache_PutRefreshesExistingKey(t *testing.T) {
	c := New(time.Minute, 2)
	defer c.Close()

	c.Put("a", 1)
	c.Put("b", 2)
	c.Put("a", 10) // refresh moves a to the back of the eviction order
	c.Put("c", 3)  // evicts b, not a

	got, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 10, got)

	_, ok = c.Get("b")
	assert.False(t, ok)
}

func TestCache_CloseIsIdempotent(t *testing.T) {
	c := New(time.Minute, 10)
	c.Close()
	c.Close()
}
