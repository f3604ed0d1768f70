/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"context"
	"errors"
)

// Message Router (component E): dispatches one parsed inbound frame to the
// matching engine operation and translates its result into an outbound
// frame. A handler error never closes the socket (§7); an unrecognized
// `type` is silently ignored (§4.5).
func (e *Engine) route(cfg *Config, client *Client, msg InboundMessage) {
	ctx := context.Background()

	switch msg.Type {
	case "setOnline":
		if err := e.handleSetOnline(cfg, client, msg); err != nil {
			logf(cfg, "ROUTER: setOnline for %s: %v", client.connID, err)
			e.reply(cfg, client, genericError())
		}

	case "createChallenge":
		_, err := e.CreateChallenge(ctx, CreateChallengeInput{
			CreatorID:   msg.CreatorID,
			Game:        msg.Game,
			Coins:       msg.Coins,
			XP:          msg.XP,
			InviteeID:   msg.InviteeID,
			Description: msg.Description,
			Rules:       msg.Rules,
			IsOpen:      msg.IsOpen,
		})
		if err != nil {
			logf(cfg, "ROUTER: createChallenge for %s: %v", client.connID, err)
			e.reply(cfg, client, genericError())
		}

	case "acceptChallenge":
		if _, err := e.AcceptChallenge(ctx, msg.challengeID()); err != nil {
			logf(cfg, "ROUTER: acceptChallenge %s: %v", msg.challengeID(), err)
			e.reply(cfg, client, genericError())
		}

	case "joinOpenChallenge":
		if _, err := e.JoinOpenChallenge(ctx, msg.challengeID(), msg.UserID); err != nil {
			e.reply(cfg, client, JoinOpenChallengeFailedMessage{Type: "joinOpenChallengeFailed", Message: describe(err)})
		}

	case "startChallenge":
		if _, err := e.StartChallenge(ctx, msg.challengeID(), msg.UserID); err != nil {
			e.reply(cfg, client, FailedToStartChallengeMessage{Type: "failedToStartChallenge", Message: describe(err)})
		}

	case "selectWinner":
		if _, err := e.SelectWinner(ctx, msg.challengeID(), msg.PlayerID, msg.winnerID()); err != nil {
			logf(cfg, "ROUTER: selectWinner %s: %v", msg.challengeID(), err)
			e.reply(cfg, client, genericError())
		}

	case "claimVictory":
		// ClaimVictory broadcasts claimVictoryFailed to both players itself
		// when a nomination is missing or the nominations disagree (§4.4).
		// Any other failure (unknown challenge, store error) is only logged
		// here; no frame is sent for it.
		if _, err := e.ClaimVictory(ctx, msg.challengeID()); err != nil {
			logf(cfg, "ROUTER: claimVictory %s: %v", msg.challengeID(), err)
		}

	case "getWinnerSelections":
		// §6: this frame carries no fields, so the reply is every challenge's
		// nominations, not a lookup keyed on a (nonexistent) request field.
		e.reply(cfg, client, AllWinnerSelectionsMessage{
			Type:       "allWinnerSelections",
			Selections: e.cache.AllNominations(),
		})

	default:
		logf(cfg, "ROUTER: %s sent unrecognized type %q", client.connID, msg.Type)
	}
}

// reply sends msg directly to the originating client, independent of the
// presence cache — the caller may not yet (or ever) be bound to a user id.
func (e *Engine) reply(cfg *Config, client *Client, msg any) {
	select {
	case client.send <- msg:
	default:
		logf(cfg, "ROUTER: dropping reply for %s (buffer full)", client.connID)
	}
}

// describe extracts the user-facing message from a precondition failure, for
// the operations with their own typed failure frame (§4.4). Anything
// unexpected falls back to the same wording the generic path uses.
func describe(err error) string {
	var pe *PreconditionError
	if errors.As(err, &pe) {
		return pe.Message
	}
	return "Failed to process message"
}

// genericError is the catch-all frame for operations with no typed failure
// of their own (§4.5): the originating error is logged, never echoed.
func genericError() ErrorMessage {
	return errorMessage("Failed to process message")
}
