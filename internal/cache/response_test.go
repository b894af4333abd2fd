package cache

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func TestKeyNormalization(t *testing.T) {
	assert.Equal(t, "u1:t1:what is a noun?", Key("u1", "t1", "  What is a NOUN?  "))
	assert.Equal(t, "anonymous:general:hi", Key("", "", "HI"))
	assert.Equal(t, Key("u1", "t1", "Photosynthesis"), Key("u1", "t1", " photosynthesis "))
	assert.NotEqual(t, Key("u1", "t1", "x"), Key("u1", "t2", "x"))
}

func TestSetThenGet(t *testing.T) {
	c := NewResponse(0, 0)
	k := Key("u", "t", "what is gravity")
	_, ok := c.Get(k)
	require.False(t, ok)

	c.Set(k, "a force")
	got, ok := c.Get(k)
	require.True(t, ok)
	assert.Equal(t, "a force", got)
}

func TestEntryExpiresAtTTL(t *testing.T) {
	clock := &fakeClock{t: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
	c := NewResponse(5*time.Minute, 50, WithClock(clock.Now))
	c.Set("k", "v")

	clock.Advance(5*time.Minute - time.Second)
	_, ok := c.Get("k")
	assert.True(t, ok, "entry should still be fresh just before the ttl")

	clock.Advance(time.Second)
	_, ok = c.Get("k")
	assert.False(t, ok, "entry aged exactly ttl is a miss")
}

func TestOverwriteRefreshesTimestamp(t *testing.T) {
	clock := &fakeClock{t: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
	c := NewResponse(time.Minute, 50, WithClock(clock.Now))
	c.Set("k", "old")
	clock.Advance(50 * time.Second)
	c.Set("k", "new")
	clock.Advance(50 * time.Second)

	got, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, "new", got)
}

func TestFiftyFirstEntryEvictsOldest(t *testing.T) {
	clock := &fakeClock{t: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
	c := NewResponse(time.Hour, 50, WithClock(clock.Now))
	for i := 0; i < 51; i++ {
		c.Set(fmt.Sprintf("k%d", i), "v")
		clock.Advance(time.Millisecond)
	}
	assert.Equal(t, 50, c.Len())
	_, ok := c.Get("k0")
	assert.False(t, ok, "oldest entry should be evicted")
	for i := 1; i < 51; i++ {
		_, ok := c.Get(fmt.Sprintf("k%d", i))
		assert.True(t, ok, "entry k%d should survive", i)
	}
}
