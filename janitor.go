/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"context"
	"time"
)

// Janitor (component G) warms the State Cache from the store at startup and
// then sweeps on a fixed interval: it evicts stale start-handshake entries
// and lazily expires PENDING challenges past their TTL (§4.7, SPEC_FULL.md
// §11).
type Janitor struct {
	engine   *Engine
	cfg      *Config
	interval time.Duration
	ttl      time.Duration
}

func NewJanitor(e *Engine, cfg *Config) *Janitor {
	return &Janitor{
		engine:   e,
		cfg:      cfg,
		interval: cfg.janitorInterval,
		ttl:      cfg.startHandshakeTTL,
	}
}

// Warm loads every in-flight winner selection into the cache so a restart
// does not forget nominations made before the process last stopped. Failure
// here aborts bring-up (§4.7, §4.8).
func (j *Janitor) Warm(ctx context.Context) error {
	selections, err := j.engine.store.LoadActiveSelections(ctx)
	if err != nil {
		return err
	}
	for _, s := range selections {
		j.engine.cache.SeedNominations(s.ChallengeID, s.PlayerID, s.SelectedWinner)
	}
	logf(j.cfg, "JANITOR: warmed %d nomination(s) from store", len(selections))
	return nil
}

// Run ticks until ctx is cancelled. It is meant to be started in its own
// goroutine by the lifecycle that also owns ctx's cancellation.
func (j *Janitor) Run(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			j.sweep(ctx, now)
		}
	}
}

func (j *Janitor) sweep(ctx context.Context, now time.Time) {
	expired, err := j.engine.store.ListExpiredPending(ctx, now)
	if err != nil {
		logf(j.cfg, "JANITOR: listing expired challenges: %v", err)
	} else {
		for _, c := range expired {
			if _, err := j.engine.ExpireChallenge(ctx, c.ID); err != nil {
				logf(j.cfg, "JANITOR: expiring challenge %s: %v", c.ID, err)
			}
		}
	}

	stale := j.engine.cache.EvictStaleStarts(now, j.ttl)
	if len(stale) > 0 {
		logf(j.cfg, "JANITOR: evicted %d stale start handshake(s)", len(stale))
	}
}
