/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// MaxConnections is the roster size the linear scan in Cache.FindBySocket is
// sized for (§4.2). It is not enforced: no connection or binding is refused
// once it is reached.
const MaxConnections = 10_000

// onlineEntry is one live presence-registry row.
type onlineEntry struct {
	client      *Client
	displayName string
	connectedAt time.Time
}

// startEntry tracks the transient per-challenge start handshake (§4.2, §9
// "Start handshake"). With the direct ACCEPTED→IN_PROGRESS edge this engine
// adopts (§9 Open Question 1), the entry records the invitee's start attempt
// so a janitor sweep can tell a stale attempt from a fresh one.
type startEntry struct {
	creatorStarted bool
	inviteeStarted bool
	firstTouchAt   time.Time
}

// Cache is the State Cache (component B): three maps behind one mutex, per
// the single-writer discipline in §5. It mirrors durable state but is
// best-effort — the store is authoritative and the cache is rebuilt from it
// on restart (§9).
type Cache struct {
	mu sync.RWMutex

	online      map[string]*onlineEntry       // userId -> entry
	starts      map[string]*startEntry        // challengeId -> entry
	nominations map[string]map[string]string  // challengeId -> playerId -> winnerId
}

// NewCache returns an empty State Cache.
func NewCache() *Cache {
	return &Cache{
		online:      make(map[string]*onlineEntry),
		starts:      make(map[string]*startEntry),
		nominations: make(map[string]map[string]string),
	}
}

// FindByUser reports whether userID currently has a live socket binding.
func (c *Cache) FindByUser(userID string) (*Client, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.online[userID]
	if !ok {
		return nil, false
	}
	return e.client, true
}

// IsOnline is a convenience wrapper over FindByUser.
func (c *Cache) IsOnline(userID string) bool {
	_, ok := c.FindByUser(userID)
	return ok
}

// FindBySocket performs the linear scan documented in §4.2 (sized for
// MaxConnections) to recover the user id bound to a socket, used on close.
func (c *Cache) FindBySocket(conn *websocket.Conn) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for userID, e := range c.online {
		if e.client.conn == conn {
			return userID, true
		}
	}
	return "", false
}

// SetOnline binds userID to client, evicting (and returning) any prior
// binding for that user id — Invariant 6 in §3: at most one live socket per
// userId. The caller is responsible for closing the evicted client's socket.
func (c *Cache) SetOnline(userID, displayName string, client *Client) (evicted *Client, hadPrior bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if prev, ok := c.online[userID]; ok {
		evicted, hadPrior = prev.client, true
	}

	c.online[userID] = &onlineEntry{
		client:      client,
		displayName: displayName,
		connectedAt: time.Now(),
	}
	return evicted, hadPrior
}

// RemoveByUser evicts a user's binding unconditionally.
func (c *Cache) RemoveByUser(userID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.online, userID)
}

// RemoveIfCurrent evicts userID's binding only if it still points at client
// (guards against a close racing a newer setOnline for the same user).
func (c *Cache) RemoveIfCurrent(userID string, client *Client) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.online[userID]
	if !ok || e.client != client {
		return false
	}
	delete(c.online, userID)
	return true
}

// OnlineRoster returns a snapshot of {id, name} for every online user, for
// the onlineUsers broadcast.
func (c *Cache) OnlineRoster() []RosterEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()

	roster := make([]RosterEntry, 0, len(c.online))
	for userID, e := range c.online {
		roster = append(roster, RosterEntry{ID: userID, Name: e.displayName})
	}
	return roster
}

// TargetedSockets returns the currently-online clients for a creator and an
// optional invitee, for the Broadcaster's targeted strategy.
func (c *Cache) TargetedSockets(creatorID, inviteeID string) []*Client {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var out []*Client
	if e, ok := c.online[creatorID]; ok {
		out = append(out, e.client)
	}
	if inviteeID != "" && inviteeID != creatorID {
		if e, ok := c.online[inviteeID]; ok {
			out = append(out, e.client)
		}
	}
	return out
}

// AllSockets returns every online client, for the broadcast-all strategy.
func (c *Cache) AllSockets() []*Client {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]*Client, 0, len(c.online))
	for _, e := range c.online {
		out = append(out, e.client)
	}
	return out
}

// --- start handshake accessors ---

// TouchStart records a start attempt for challengeID by the invitee or
// creator, creating the entry on first touch. It returns the entry so the
// caller can decide whether both sides are ready.
func (c *Cache) TouchStart(challengeID string, byInvitee bool) startEntry {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.starts[challengeID]
	if !ok {
		e = &startEntry{firstTouchAt: time.Now()}
		c.starts[challengeID] = e
	}
	if byInvitee {
		e.inviteeStarted = true
	} else {
		e.creatorStarted = true
	}
	return *e
}

// ClearStart drops a challenge's start handshake entry.
func (c *Cache) ClearStart(challengeID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.starts, challengeID)
}

// EvictStaleStarts removes every starts entry older than ttl as of now, and
// returns the evicted challenge ids (§4.7, Testable property 5).
func (c *Cache) EvictStaleStarts(now time.Time, ttl time.Duration) []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	var evicted []string
	for id, e := range c.starts {
		if now.Sub(e.firstTouchAt) > ttl {
			delete(c.starts, id)
			evicted = append(evicted, id)
		}
	}
	return evicted
}

// --- nomination accessors ---

// SetNomination upserts a player's winner nomination for a challenge,
// mirroring the durable WinnerSelection (Invariant 5, §3).
func (c *Cache) SetNomination(challengeID, playerID, winnerID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	m, ok := c.nominations[challengeID]
	if !ok {
		m = make(map[string]string, 2)
		c.nominations[challengeID] = m
	}
	m[playerID] = winnerID
}

// Nominations returns a copy of the current nomination map for a challenge.
func (c *Cache) Nominations(challengeID string) map[string]string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	src := c.nominations[challengeID]
	out := make(map[string]string, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}

// AllNominations returns a deep copy of every challenge's nomination map, for
// the getWinnerSelections reply (§6: the inbound frame carries no fields, so
// the reply is a full dump, not a lookup by challenge id).
func (c *Cache) AllNominations() map[string]map[string]string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[string]map[string]string, len(c.nominations))
	for challengeID, m := range c.nominations {
		cp := make(map[string]string, len(m))
		for k, v := range m {
			cp[k] = v
		}
		out[challengeID] = cp
	}
	return out
}

// ClearNominations drops the nomination map for a completed challenge
// (Invariant 2, §3).
func (c *Cache) ClearNominations(challengeID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.nominations, challengeID)
}

// SeedNominations installs nomination rows loaded from the store, used by
// the Janitor's startup warm (§4.7). It does not clear existing entries.
func (c *Cache) SeedNominations(challengeID, playerID, winnerID string) {
	c.SetNomination(challengeID, playerID, winnerID)
}

// RosterEntry is one row of the onlineUsers broadcast payload.
type RosterEntry struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}
