package main

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/challenge-platform/coordinator/internal/store"
)

func TestJanitorWarmSeedsNominationsForInProgressChallenges(t *testing.T) {
	mem := store.NewMem()
	cfg := &Config{janitorInterval: time.Minute, startHandshakeTTL: time.Minute}
	e := NewEngine(cfg, mem)

	c, err := e.CreateChallenge(context.Background(), CreateChallengeInput{
		CreatorID: "alice", Game: "chess", InviteeID: "bob",
	})
	require.NoError(t, err)
	_, err = mem.UpdateChallenge(context.Background(), c.ID, store.ChallengePatch{
		Status: func() *store.Status { s := store.StatusInProgress; return &s }(),
	})
	require.NoError(t, err)
	require.NoError(t, mem.UpsertSelection(context.Background(), c.ID, "alice", "bob"))

	j := NewJanitor(e, cfg)
	require.NoError(t, j.Warm(context.Background()))

	assert.Equal(t, "bob", e.cache.Nominations(c.ID)["alice"])
}

func TestJanitorSweepExpiresPastDueChallenges(t *testing.T) {
	mem := store.NewMem()
	cfg := &Config{janitorInterval: time.Minute, startHandshakeTTL: time.Minute}
	e := NewEngine(cfg, mem)

	c, err := e.CreateChallenge(context.Background(), CreateChallengeInput{
		CreatorID: "alice", Game: "chess", InviteeID: "bob",
	})
	require.NoError(t, err)

	j := NewJanitor(e, cfg)
	j.sweep(context.Background(), c.ExpiresAt.Add(time.Second))

	got, err := mem.FindChallenge(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, store.StatusExpired, got.Status)
}

func TestJanitorSweepEvictsStaleStarts(t *testing.T) {
	mem := store.NewMem()
	cfg := &Config{janitorInterval: time.Minute, startHandshakeTTL: time.Minute}
	e := NewEngine(cfg, mem)
	e.cache.TouchStart("stale-challenge", true)

	j := NewJanitor(e, cfg)
	j.sweep(context.Background(), time.Now().Add(2*time.Minute))

	assert.Empty(t, e.cache.EvictStaleStarts(time.Now(), time.Minute))
}
