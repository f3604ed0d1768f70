/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import "encoding/json"

// InboundMessage is the single flat envelope every inbound frame is parsed
// into; the discriminator `type` decides which of its fields the router reads
// (§6, §4.5).
type InboundMessage struct {
	Type string `json:"type"`

	// setOnline
	UserID string `json:"userId,omitempty"`
	Online *bool  `json:"online,omitempty"`

	// createChallenge
	CreatorID   string          `json:"creatorId,omitempty"`
	Game        string          `json:"game,omitempty"`
	Coins       int64           `json:"coins,omitempty"`
	XP          int64           `json:"xp,omitempty"`
	InviteeID   string          `json:"inviteeId,omitempty"`
	Description string          `json:"description,omitempty"`
	Rules       json.RawMessage `json:"rules,omitempty"`
	IsOpen      bool            `json:"isOpen,omitempty"`

	// acceptChallenge / joinOpenChallenge / startChallenge / selectWinner / claimVictory
	ChallengeID string `json:"challengeId,omitempty"`
	GameID      string `json:"gameId,omitempty"` // legacy alias for challengeId (§6)

	// selectWinner
	PlayerID       string `json:"playerId,omitempty"`
	WinnerID       string `json:"winnerId,omitempty"`
	SelectedWinner string `json:"selectedWinner,omitempty"` // legacy alias for winnerId (§6)
}

// challengeID resolves the modern field with its legacy fallback (§6).
func (m *InboundMessage) challengeID() string {
	if m.ChallengeID != "" {
		return m.ChallengeID
	}
	return m.GameID
}

// winnerID resolves the modern field with its legacy fallback (§6).
func (m *InboundMessage) winnerID() string {
	if m.WinnerID != "" {
		return m.WinnerID
	}
	return m.SelectedWinner
}

// ChallengePayload is the enriched challenge object attached to every
// outbound message that carries a challenge (§6 "Enriched challenge
// payload"): the raw row plus the live nomination map from the cache.
type ChallengePayload struct {
	ID               string            `json:"id"`
	CreatorID        string            `json:"creatorId"`
	InviteeID        string            `json:"inviteeId,omitempty"`
	IsOpen           bool              `json:"isOpen"`
	Game             string            `json:"game"`
	Description      string            `json:"description,omitempty"`
	Rules            json.RawMessage   `json:"rules,omitempty"`
	Coins            int64             `json:"coins"`
	XP               int64             `json:"xp"`
	Status           Status            `json:"status"`
	WinnerID         string            `json:"winnerId,omitempty"`
	WinnerSelections map[string]string `json:"winnerSelections"`
}

func newChallengePayload(c *Challenge, nominations map[string]string) ChallengePayload {
	if nominations == nil {
		nominations = map[string]string{}
	}
	return ChallengePayload{
		ID:               c.ID,
		CreatorID:        c.CreatorID,
		InviteeID:        c.InviteeID,
		IsOpen:           c.IsOpen,
		Game:             c.Game,
		Description:      c.Description,
		Rules:            c.Rules,
		Coins:            c.Coins,
		XP:               c.XP,
		Status:           c.Status,
		WinnerID:         c.WinnerID,
		WinnerSelections: nominations,
	}
}

// Outbound message types (§6).

type OnlineUsersMessage struct {
	Type  string        `json:"type"`
	Users []RosterEntry `json:"users"`
}

type ChallengeCreatedMessage struct {
	Type      string           `json:"type"`
	Challenge ChallengePayload `json:"challenge"`
}

type OpenChallengeCreatedMessage struct {
	Type      string           `json:"type"`
	Challenge ChallengePayload `json:"challenge"`
}

type ChallengeAcceptedMessage struct {
	Type      string           `json:"type"`
	Challenge ChallengePayload `json:"challenge"`
}

type ChallengeStartedByMessage struct {
	Type      string           `json:"type"`
	StartedBy string           `json:"startedBy"`
	Challenge ChallengePayload `json:"challenge"`
}

type ChallengeUpdateMessage struct {
	Type      string           `json:"type"`
	Challenge ChallengePayload `json:"challenge"`
}

type ChallengeCompletedMessage struct {
	Type      string           `json:"type"`
	Challenge ChallengePayload `json:"challenge"`
}

type ChallengeExpiredMessage struct {
	Type      string           `json:"type"`
	Challenge ChallengePayload `json:"challenge"`
}

type AllWinnerSelectionsMessage struct {
	Type       string                       `json:"type"`
	Selections map[string]map[string]string `json:"selections"`
}

type JoinOpenChallengeFailedMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type FailedToStartChallengeMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type ClaimVictoryFailedMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type ErrorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func errorMessage(msg string) ErrorMessage {
	return ErrorMessage{Type: "error", Message: msg}
}
