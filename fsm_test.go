package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/challenge-platform/coordinator/internal/store"
)

func newTestEngine(t *testing.T) (*Engine, *store.Mem) {
	t.Helper()
	mem := store.NewMem()
	cfg := &Config{verbose: false}
	return NewEngine(cfg, mem), mem
}

func TestCreateChallenge(t *testing.T) {
	t.Run("direct challenge requires an invitee", func(t *testing.T) {
		e, _ := newTestEngine(t)
		_, err := e.CreateChallenge(context.Background(), CreateChallengeInput{CreatorID: "alice", Game: "chess"})
		assert.Error(t, err)
	})

	t.Run("open challenge rejects a pre-assigned invitee", func(t *testing.T) {
		e, _ := newTestEngine(t)
		_, err := e.CreateChallenge(context.Background(), CreateChallengeInput{
			CreatorID: "alice", Game: "chess", IsOpen: true, InviteeID: "bob",
		})
		assert.Error(t, err)
	})

	t.Run("direct challenge is created pending", func(t *testing.T) {
		e, mem := newTestEngine(t)
		c, err := e.CreateChallenge(context.Background(), CreateChallengeInput{
			CreatorID: "alice", Game: "chess", InviteeID: "bob", Coins: 10,
		})
		require.NoError(t, err)
		assert.Equal(t, StatusPending, c.Status)

		stored, err := mem.FindChallenge(context.Background(), c.ID)
		require.NoError(t, err)
		assert.Equal(t, store.StatusPending, stored.Status)
	})
}

func TestJoinOpenChallenge(t *testing.T) {
	setup := func(t *testing.T) (*Engine, *store.Mem, *Challenge) {
		e, mem := newTestEngine(t)
		mem.PutUser(&store.User{ID: "bob", Coins: 100})
		c, err := e.CreateChallenge(context.Background(), CreateChallengeInput{
			CreatorID: "alice", Game: "chess", IsOpen: true, Coins: 10,
		})
		require.NoError(t, err)
		return e, mem, c
	}

	t.Run("creator cannot join their own open challenge", func(t *testing.T) {
		e, _, c := setup(t)
		_, err := e.JoinOpenChallenge(context.Background(), c.ID, "alice")
		assert.Error(t, err)
	})

	t.Run("insufficient coins is rejected", func(t *testing.T) {
		e, mem, c := setup(t)
		mem.PutUser(&store.User{ID: "carol", Coins: 1})
		_, err := e.JoinOpenChallenge(context.Background(), c.ID, "carol")
		assert.Error(t, err)
	})

	t.Run("a valid join binds the invitee and moves to accepted", func(t *testing.T) {
		e, _, c := setup(t)
		joined, err := e.JoinOpenChallenge(context.Background(), c.ID, "bob")
		require.NoError(t, err)
		assert.Equal(t, "bob", joined.InviteeID)
		assert.Equal(t, StatusAccepted, joined.Status)
		assert.False(t, joined.IsOpen)
	})

	t.Run("a second join attempt is rejected", func(t *testing.T) {
		e, mem, c := setup(t)
		_, err := e.JoinOpenChallenge(context.Background(), c.ID, "bob")
		require.NoError(t, err)

		mem.PutUser(&store.User{ID: "carol", Coins: 100})
		_, err = e.JoinOpenChallenge(context.Background(), c.ID, "carol")
		assert.Error(t, err)
	})

	t.Run("the current invitee re-joining is idempotent", func(t *testing.T) {
		e, _, c := setup(t)
		_, err := e.JoinOpenChallenge(context.Background(), c.ID, "bob")
		require.NoError(t, err)

		again, err := e.JoinOpenChallenge(context.Background(), c.ID, "bob")
		require.NoError(t, err)
		assert.Equal(t, StatusAccepted, again.Status)
	})
}

func TestStartChallenge(t *testing.T) {
	setup := func(t *testing.T) (*Engine, *Challenge) {
		e, _ := newTestEngine(t)
		c, err := e.CreateChallenge(context.Background(), CreateChallengeInput{
			CreatorID: "alice", Game: "chess", InviteeID: "bob",
		})
		require.NoError(t, err)
		_, err = e.AcceptChallenge(context.Background(), c.ID)
		require.NoError(t, err)
		return e, c
	}

	t.Run("only the invitee may start", func(t *testing.T) {
		e, c := setup(t)
		e.cache.SetOnline("alice", "Alice", &Client{send: make(chan any, 1)})
		e.cache.SetOnline("bob", "Bob", &Client{send: make(chan any, 1)})
		_, err := e.StartChallenge(context.Background(), c.ID, "alice")
		assert.Error(t, err)
	})

	t.Run("fails if either participant is offline", func(t *testing.T) {
		e, c := setup(t)
		_, err := e.StartChallenge(context.Background(), c.ID, "bob")
		assert.Error(t, err)
	})

	t.Run("starts once both are online", func(t *testing.T) {
		e, c := setup(t)
		e.cache.SetOnline("alice", "Alice", &Client{send: make(chan any, 1)})
		e.cache.SetOnline("bob", "Bob", &Client{send: make(chan any, 1)})

		started, err := e.StartChallenge(context.Background(), c.ID, "bob")
		require.NoError(t, err)
		assert.Equal(t, StatusInProgress, started.Status)
	})
}

func TestClaimVictory(t *testing.T) {
	setup := func(t *testing.T) (*Engine, *Challenge) {
		e, _ := newTestEngine(t)
		c, err := e.CreateChallenge(context.Background(), CreateChallengeInput{
			CreatorID: "alice", Game: "chess", InviteeID: "bob",
		})
		require.NoError(t, err)
		_, err = e.AcceptChallenge(context.Background(), c.ID)
		require.NoError(t, err)
		e.cache.SetOnline("alice", "Alice", &Client{send: make(chan any, 1)})
		e.cache.SetOnline("bob", "Bob", &Client{send: make(chan any, 1)})
		started, err := e.StartChallenge(context.Background(), c.ID, "bob")
		require.NoError(t, err)
		return e, started
	}

	t.Run("fails when only one player has selected", func(t *testing.T) {
		e, c := setup(t)
		_, err := e.SelectWinner(context.Background(), c.ID, "alice", "alice")
		require.NoError(t, err)

		_, err = e.ClaimVictory(context.Background(), c.ID)
		assert.Error(t, err)
	})

	t.Run("fails when selections disagree", func(t *testing.T) {
		e, c := setup(t)
		_, err := e.SelectWinner(context.Background(), c.ID, "alice", "alice")
		require.NoError(t, err)
		_, err = e.SelectWinner(context.Background(), c.ID, "bob", "bob")
		require.NoError(t, err)

		_, err = e.ClaimVictory(context.Background(), c.ID)
		assert.Error(t, err)
	})

	t.Run("completes when both agree", func(t *testing.T) {
		e, c := setup(t)
		_, err := e.SelectWinner(context.Background(), c.ID, "alice", "bob")
		require.NoError(t, err)
		_, err = e.SelectWinner(context.Background(), c.ID, "bob", "bob")
		require.NoError(t, err)

		done, err := e.ClaimVictory(context.Background(), c.ID)
		require.NoError(t, err)
		assert.Equal(t, StatusCompleted, done.Status)
		assert.Equal(t, "bob", done.WinnerID)

		assert.Empty(t, e.cache.Nominations(c.ID))
	})
}

func TestAgree(t *testing.T) {
	tests := []struct {
		name            string
		nominations     map[string]string
		wantBothPresent bool
		wantMatched     bool
	}{
		{"neither selected", map[string]string{}, false, false},
		{"only creator selected", map[string]string{"creator": "creator"}, false, false},
		{"disagreement", map[string]string{"creator": "creator", "invitee": "invitee"}, true, false},
		{"agreement", map[string]string{"creator": "invitee", "invitee": "invitee"}, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, matched, bothPresent := agree(tt.nominations, "creator", "invitee")
			assert.Equal(t, tt.wantBothPresent, bothPresent)
			assert.Equal(t, tt.wantMatched, matched)
		})
	}
}

func TestExpireChallenge(t *testing.T) {
	e, _ := newTestEngine(t)
	c, err := e.CreateChallenge(context.Background(), CreateChallengeInput{
		CreatorID: "alice", Game: "chess", InviteeID: "bob",
	})
	require.NoError(t, err)

	expired, err := e.ExpireChallenge(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusExpired, expired.Status)

	// Expiring again is a no-op, not an error.
	again, err := e.ExpireChallenge(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusExpired, again.Status)
}
