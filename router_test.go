package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/challenge-platform/coordinator/internal/store"
)

func TestRouteJoinOpenChallengeFailure(t *testing.T) {
	mem := store.NewMem()
	cfg := &Config{}
	e := NewEngine(cfg, mem)

	c, err := e.CreateChallenge(context.Background(), CreateChallengeInput{
		CreatorID: "alice", Game: "chess", IsOpen: true,
	})
	require.NoError(t, err)

	client := &Client{send: make(chan any, 4)}
	e.route(cfg, client, InboundMessage{Type: "joinOpenChallenge", ChallengeID: c.ID, UserID: "alice"})

	select {
	case got := <-client.send:
		msg, ok := got.(JoinOpenChallengeFailedMessage)
		require.True(t, ok, "expected JoinOpenChallengeFailedMessage, got %T", got)
		assert.Equal(t, "joinOpenChallengeFailed", msg.Type)
	default:
		t.Fatal("expected a reply on the client's send channel")
	}
}

func TestRouteUnknownTypeIsIgnored(t *testing.T) {
	mem := store.NewMem()
	cfg := &Config{}
	e := NewEngine(cfg, mem)

	client := &Client{send: make(chan any, 1)}
	e.route(cfg, client, InboundMessage{Type: "notARealMessageType"})

	select {
	case got := <-client.send:
		t.Fatalf("expected no reply for an unknown type, got %#v", got)
	default:
	}
}

func TestRouteGetWinnerSelectionsAnswersFromCache(t *testing.T) {
	mem := store.NewMem()
	cfg := &Config{}
	e := NewEngine(cfg, mem)
	e.cache.SetNomination("challenge-1", "alice", "alice")
	e.cache.SetNomination("challenge-2", "bob", "carol")

	client := &Client{send: make(chan any, 1)}
	// §6: getWinnerSelections carries no fields at all; a real client sends
	// just {"type":"getWinnerSelections"}.
	e.route(cfg, client, InboundMessage{Type: "getWinnerSelections"})

	got := <-client.send
	msg, ok := got.(AllWinnerSelectionsMessage)
	require.True(t, ok)
	assert.Equal(t, "alice", msg.Selections["challenge-1"]["alice"])
	assert.Equal(t, "carol", msg.Selections["challenge-2"]["bob"])
}

func TestInboundMessageLegacyFieldFallback(t *testing.T) {
	m := InboundMessage{GameID: "legacy-id", SelectedWinner: "legacy-winner"}
	assert.Equal(t, "legacy-id", m.challengeID())
	assert.Equal(t, "legacy-winner", m.winnerID())

	m2 := InboundMessage{ChallengeID: "modern-id", WinnerID: "modern-winner", GameID: "legacy-id"}
	assert.Equal(t, "modern-id", m2.challengeID())
	assert.Equal(t, "modern-winner", m2.winnerID())
}
