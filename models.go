/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"encoding/json"
	"time"
)

// Status is a Challenge's position in the FSM described in SPEC_FULL.md §4.4.
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusAccepted   Status = "ACCEPTED"
	StatusInProgress Status = "IN_PROGRESS"
	StatusCompleted  Status = "COMPLETED"
	StatusExpired    Status = "EXPIRED"
	StatusDisputed   Status = "DISPUTED"
)

// User is read-only to this engine; it is owned by the auth/accounts layer.
type User struct {
	ID    string
	Name  string
	Coins int64
	Image string
}

// Challenge is the durable record owned by the Durable Store Adapter (A).
type Challenge struct {
	ID          string
	CreatorID   string
	InviteeID   string // empty until bound
	IsOpen      bool
	Game        string
	Description string
	Rules       json.RawMessage
	Coins       int64
	XP          int64
	Status      Status
	WinnerID    string // empty until COMPLETED

	CreatedAt   time.Time
	UpdatedAt   time.Time
	AcceptedAt  *time.Time
	ExpiresAt   time.Time
	CompletedAt *time.Time
	ClaimTime   *time.Time
}

// HasInvitee reports whether an invitee slot is bound.
func (c *Challenge) HasInvitee() bool {
	return c.InviteeID != ""
}

// WinnerSelection is one player's nomination for a challenge's winner.
// Rows only exist while the owning challenge is IN_PROGRESS (Invariant 2, §3).
type WinnerSelection struct {
	ChallengeID    string
	PlayerID       string
	SelectedWinner string
	UpdatedAt      time.Time
}
