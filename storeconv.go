/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"github.com/challenge-platform/coordinator/internal/store"
)

func fromStoreUser(u *store.User) *User {
	if u == nil {
		return nil
	}
	return &User{ID: u.ID, Name: u.Name, Coins: u.Coins, Image: u.Image}
}

func fromStoreChallenge(c *store.Challenge) *Challenge {
	if c == nil {
		return nil
	}
	return &Challenge{
		ID:          c.ID,
		CreatorID:   c.CreatorID,
		InviteeID:   c.InviteeID,
		IsOpen:      c.IsOpen,
		Game:        c.Game,
		Description: c.Description,
		Rules:       c.Rules,
		Coins:       c.Coins,
		XP:          c.XP,
		Status:      Status(c.Status),
		WinnerID:    c.WinnerID,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
		AcceptedAt:  c.AcceptedAt,
		ExpiresAt:   c.ExpiresAt,
		CompletedAt: c.CompletedAt,
		ClaimTime:   c.ClaimTime,
	}
}

func toStoreChallenge(c *Challenge) *store.Challenge {
	return &store.Challenge{
		ID:          c.ID,
		CreatorID:   c.CreatorID,
		InviteeID:   c.InviteeID,
		IsOpen:      c.IsOpen,
		Game:        c.Game,
		Description: c.Description,
		Rules:       c.Rules,
		Coins:       c.Coins,
		XP:          c.XP,
		Status:      store.Status(c.Status),
		WinnerID:    c.WinnerID,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
		AcceptedAt:  c.AcceptedAt,
		ExpiresAt:   c.ExpiresAt,
		CompletedAt: c.CompletedAt,
		ClaimTime:   c.ClaimTime,
	}
}

func statusPtr(s Status) *store.Status {
	v := store.Status(s)
	return &v
}

func boolPtr(b bool) *bool { return &b }
