package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheSetOnlineEvictsPriorBinding(t *testing.T) {
	c := NewCache()
	first := &Client{send: make(chan any, 1)}
	second := &Client{send: make(chan any, 1)}

	evicted, hadPrior := c.SetOnline("alice", "Alice", first)
	assert.False(t, hadPrior)
	assert.Nil(t, evicted)

	evicted, hadPrior = c.SetOnline("alice", "Alice", second)
	assert.True(t, hadPrior)
	assert.Same(t, first, evicted)

	got, ok := c.FindByUser("alice")
	require.True(t, ok)
	assert.Same(t, second, got)
}

func TestCacheRemoveIfCurrentGuardsStaleClose(t *testing.T) {
	c := NewCache()
	first := &Client{send: make(chan any, 1)}
	second := &Client{send: make(chan any, 1)}

	c.SetOnline("alice", "Alice", first)
	c.SetOnline("alice", "Alice", second)

	// A close racing the newer setOnline must not evict the new binding.
	assert.False(t, c.RemoveIfCurrent("alice", first))
	assert.True(t, c.IsOnline("alice"))

	assert.True(t, c.RemoveIfCurrent("alice", second))
	assert.False(t, c.IsOnline("alice"))
}

func TestCacheEvictStaleStarts(t *testing.T) {
	c := NewCache()
	now := time.Now()

	c.TouchStart("stale", true)
	evicted := c.EvictStaleStarts(now.Add(time.Hour), time.Minute)
	assert.Equal(t, []string{"stale"}, evicted)

	c.TouchStart("fresh", true)
	evicted = c.EvictStaleStarts(now, time.Hour)
	assert.Empty(t, evicted)
}

func TestCacheNominationsReturnsIndependentCopy(t *testing.T) {
	c := NewCache()
	c.SetNomination("challenge-1", "alice", "bob")

	snapshot := c.Nominations("challenge-1")
	snapshot["alice"] = "tampered"

	assert.Equal(t, "bob", c.Nominations("challenge-1")["alice"])
}

func TestCacheTargetedSocketsDedupesSelfChallenge(t *testing.T) {
	c := NewCache()
	solo := &Client{send: make(chan any, 1)}
	c.SetOnline("alice", "Alice", solo)

	sockets := c.TargetedSockets("alice", "alice")
	assert.Len(t, sockets, 1)
}
