/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"github.com/challenge-platform/coordinator/internal/store"
)

// Engine ties the State Cache (B), the Broadcaster (C), the Challenge FSM
// (D), and the Durable Store Adapter (A) together. One Engine serves every
// connection; it has no per-connection state of its own.
type Engine struct {
	cfg   *Config
	store store.Backend
	cache *Cache
}

// NewEngine wires a ready-to-serve Engine around an open store.
func NewEngine(cfg *Config, st store.Backend) *Engine {
	return &Engine{
		cfg:   cfg,
		store: st,
		cache: NewCache(),
	}
}
