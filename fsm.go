/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/challenge-platform/coordinator/internal/store"
)

// Challenge FSM (component D): PENDING→ACCEPTED→IN_PROGRESS→COMPLETED, plus
// the EXPIRED/DISPUTED terminal branches (§4.4). Every transition below
// writes the store first, then updates the cache — readers never observe
// acknowledged state that didn't persist (§9).

const challengeTTL = 24 * time.Hour

// CreateChallengeInput is the createChallenge transition's payload (§4.4).
type CreateChallengeInput struct {
	CreatorID   string
	Game        string
	Coins       int64
	XP          int64
	InviteeID   string
	Description string
	Rules       []byte
	IsOpen      bool
}

// CreateChallenge creates a new PENDING challenge and broadcasts its
// creation, targeted if it already has an invitee, to everyone if open.
func (e *Engine) CreateChallenge(ctx context.Context, in CreateChallengeInput) (*Challenge, error) {
	if in.IsOpen && in.InviteeID != "" {
		return nil, failedf("an open challenge must not have a pre-assigned invitee")
	}
	if !in.IsOpen && in.InviteeID == "" {
		return nil, failedf("a non-open challenge requires an invitee")
	}

	now := time.Now()
	c := &Challenge{
		ID:          uuid.NewString(),
		CreatorID:   in.CreatorID,
		InviteeID:   in.InviteeID,
		IsOpen:      in.IsOpen,
		Game:        in.Game,
		Description: in.Description,
		Rules:       in.Rules,
		Coins:       in.Coins,
		XP:          in.XP,
		Status:      StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
		ExpiresAt:   now.Add(challengeTTL),
	}

	if err := e.store.CreateChallenge(ctx, toStoreChallenge(c)); err != nil {
		return nil, err
	}

	payload := e.challengePayload(c)
	if in.IsOpen {
		e.broadcastAll(OpenChallengeCreatedMessage{Type: "openChallengeCreated", Challenge: payload})
	} else {
		e.broadcastTargeted(c.CreatorID, c.InviteeID, ChallengeCreatedMessage{Type: "challengeCreated", Challenge: payload})
	}

	return c, nil
}

// AcceptChallenge moves a PENDING challenge to ACCEPTED. The external action
// layer is trusted to have verified that the acting user is the invitee
// (§4.4).
func (e *Engine) AcceptChallenge(ctx context.Context, challengeID string) (*Challenge, error) {
	c, err := e.loadChallenge(ctx, challengeID)
	if err != nil {
		return nil, err
	}
	if c.Status != StatusPending {
		return nil, failedf("challenge is not pending")
	}

	now := time.Now()
	updated, err := e.store.UpdateChallenge(ctx, challengeID, store.ChallengePatch{
		Status:     statusPtr(StatusAccepted),
		AcceptedAt: &now,
	})
	if err != nil {
		return nil, err
	}
	c = fromStoreChallenge(updated)

	e.broadcastTargeted(c.CreatorID, c.InviteeID, ChallengeAcceptedMessage{Type: "challengeAccepted", Challenge: e.challengePayload(c)})
	return c, nil
}

// JoinOpenChallenge binds userID as the invitee of an open, pending
// challenge, or fails with a reason string sent only to the originator
// (§4.4). Preconditions are checked in the order the spec lists them.
func (e *Engine) JoinOpenChallenge(ctx context.Context, challengeID, userID string) (*Challenge, error) {
	c, err := e.loadChallenge(ctx, challengeID)
	if err != nil {
		return nil, err
	}

	if c.HasInvitee() && c.InviteeID == userID && c.Status == StatusAccepted {
		// Idempotency rule (§4.4, §5): the current invitee re-joining
		// re-broadcasts ACCEPTED rather than erroring.
		e.broadcastTargeted(c.CreatorID, c.InviteeID, ChallengeAcceptedMessage{Type: "challengeAccepted", Challenge: e.challengePayload(c)})
		return c, nil
	}

	if !c.IsOpen || c.Status != StatusPending {
		return nil, failedf("this challenge is not open for joining")
	}
	if userID == c.CreatorID {
		return nil, failedf("the creator cannot join their own challenge")
	}
	if c.HasInvitee() {
		return nil, failedf("this challenge already has an invitee")
	}

	su, err := e.store.FindUser(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, failedf("unknown user")
		}
		return nil, err
	}
	user := fromStoreUser(su)
	if user.Coins < c.Coins {
		return nil, failedf("Insufficient coins to join this challenge")
	}

	now := time.Now()
	updated, err := e.store.UpdateChallenge(ctx, challengeID, store.ChallengePatch{
		InviteeID:  &userID,
		IsOpen:     boolPtr(false),
		Status:     statusPtr(StatusAccepted),
		AcceptedAt: &now,
	})
	if err != nil {
		return nil, err
	}
	c = fromStoreChallenge(updated)

	e.broadcastTargeted(c.CreatorID, c.InviteeID, ChallengeAcceptedMessage{Type: "challengeAccepted", Challenge: e.challengePayload(c)})
	return c, nil
}

// StartChallenge moves an ACCEPTED challenge to IN_PROGRESS. Only the
// invitee may start it, and only once both participants are online (§4.4).
func (e *Engine) StartChallenge(ctx context.Context, challengeID, userID string) (*Challenge, error) {
	c, err := e.loadChallenge(ctx, challengeID)
	if err != nil {
		return nil, err
	}

	if userID != c.InviteeID {
		return nil, failedf("only the invitee may start the challenge")
	}

	e.cache.TouchStart(challengeID, true)

	if !e.cache.IsOnline(c.CreatorID) || !e.cache.IsOnline(c.InviteeID) {
		return nil, failedf("Opponent is Offline")
	}

	if c.Status != StatusAccepted {
		return nil, failedf("failed to start challenge: not in accepted status")
	}

	updated, err := e.store.UpdateChallenge(ctx, challengeID, store.ChallengePatch{
		Status: statusPtr(StatusInProgress),
	})
	if err != nil {
		return nil, err
	}
	c = fromStoreChallenge(updated)

	e.cache.ClearStart(challengeID)

	e.broadcastTargeted(c.CreatorID, c.InviteeID, ChallengeStartedByMessage{
		Type:      "challengeStartedBy",
		StartedBy: userID,
		Challenge: e.challengePayload(c),
	})
	return c, nil
}

// SelectWinner upserts a player's nomination without changing the
// challenge's status (§4.4). It is an idempotent retry-safe upsert.
func (e *Engine) SelectWinner(ctx context.Context, challengeID, playerID, winnerID string) (*Challenge, error) {
	c, err := e.loadChallenge(ctx, challengeID)
	if err != nil {
		return nil, err
	}

	if err := e.store.UpsertSelection(ctx, challengeID, playerID, winnerID); err != nil {
		return nil, err
	}
	e.cache.SetNomination(challengeID, playerID, winnerID)

	e.broadcastTargeted(c.CreatorID, c.InviteeID, ChallengeUpdateMessage{Type: "challengeUpdate", Challenge: e.challengePayload(c)})
	return c, nil
}

// agree is the two-player consensus check behind ClaimVictory (§4.4, §9
// "Two-player consensus"). It is factored out as a pure function so
// diagnostics and tests can reuse it without touching the store.
func agree(nominations map[string]string, creatorID, inviteeID string) (winnerID string, ok bool, bothPresent bool) {
	cSel, cOK := nominations[creatorID]
	iSel, iOK := nominations[inviteeID]
	if !cOK || !iOK {
		return "", false, false
	}
	return cSel, cSel == iSel, true
}

// ClaimVictory settles a challenge if both players' nominations agree, or
// reports the mismatch/missing-selection failure to both players (§4.4).
func (e *Engine) ClaimVictory(ctx context.Context, challengeID string) (*Challenge, error) {
	c, err := e.loadChallenge(ctx, challengeID)
	if err != nil {
		return nil, err
	}

	nominations := e.cache.Nominations(challengeID)
	winnerID, matched, bothPresent := agree(nominations, c.CreatorID, c.InviteeID)

	if !bothPresent {
		msg := ClaimVictoryFailedMessage{Type: "claimVictoryFailed", Message: "Both players must select a winner before a victory can be claimed."}
		e.broadcastTargeted(c.CreatorID, c.InviteeID, msg)
		return nil, failedf(msg.Message)
	}
	if !matched {
		msg := ClaimVictoryFailedMessage{Type: "claimVictoryFailed", Message: "Players disagree on who won; reselect and try again."}
		e.broadcastTargeted(c.CreatorID, c.InviteeID, msg)
		return nil, failedf(msg.Message)
	}

	now := time.Now()
	var updated *store.Challenge
	err = e.store.WithTransaction(ctx, func(ctx context.Context, tx store.TxStore) error {
		u, err := tx.UpdateChallenge(ctx, challengeID, store.ChallengePatch{
			Status:      statusPtr(StatusCompleted),
			WinnerID:    &winnerID,
			CompletedAt: &now,
			ClaimTime:   &now,
		})
		if err != nil {
			return err
		}
		updated = u
		return tx.DeleteSelectionsFor(ctx, challengeID)
	})
	if err != nil {
		return nil, err
	}

	c = fromStoreChallenge(updated)
	e.cache.ClearNominations(challengeID)

	e.broadcastTargeted(c.CreatorID, c.InviteeID, ChallengeCompletedMessage{Type: "challengeCompleted", Challenge: e.challengePayload(c)})
	return c, nil
}

// ExpireChallenge is the administrative EXPIRED transition (SPEC_FULL.md
// §11): no inbound frame drives it, but the Janitor invokes it lazily for
// any PENDING challenge whose expiresAt has passed.
func (e *Engine) ExpireChallenge(ctx context.Context, challengeID string) (*Challenge, error) {
	c, err := e.loadChallenge(ctx, challengeID)
	if err != nil {
		return nil, err
	}
	if c.Status != StatusPending {
		return c, nil
	}

	updated, err := e.store.UpdateChallenge(ctx, challengeID, store.ChallengePatch{
		Status: statusPtr(StatusExpired),
	})
	if err != nil {
		return nil, err
	}
	c = fromStoreChallenge(updated)

	e.broadcastTargeted(c.CreatorID, c.InviteeID, ChallengeExpiredMessage{Type: "challengeExpired", Challenge: e.challengePayload(c)})
	return c, nil
}

// DisputeChallenge is the reserved administrative DISPUTED transition
// (§4.4, §9 Open Question 3). It is not reachable from any inbound frame.
func (e *Engine) DisputeChallenge(ctx context.Context, challengeID string) (*Challenge, error) {
	c, err := e.loadChallenge(ctx, challengeID)
	if err != nil {
		return nil, err
	}
	if c.Status == StatusCompleted || c.Status == StatusExpired || c.Status == StatusDisputed {
		return nil, failedf("challenge is already terminal")
	}

	updated, err := e.store.UpdateChallenge(ctx, challengeID, store.ChallengePatch{
		Status: statusPtr(StatusDisputed),
	})
	if err != nil {
		return nil, err
	}
	c = fromStoreChallenge(updated)

	e.cache.ClearNominations(challengeID)
	return c, nil
}

func (e *Engine) loadChallenge(ctx context.Context, challengeID string) (*Challenge, error) {
	c, err := e.store.FindChallenge(ctx, challengeID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, failedf("no such challenge")
		}
		return nil, err
	}
	return fromStoreChallenge(c), nil
}
