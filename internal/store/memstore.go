package store

import (
	"context"
	"sync"
	"time"
)

// Mem is an in-memory Backend used by engine tests so FSM and cache logic
// can be exercised without a running Postgres instance. It copies the
// querying rules of Store (exact match, COALESCE-style patching) without
// touching SQL.
type Mem struct {
	mu         sync.Mutex
	users      map[string]*User
	challenges map[string]*Challenge
	selections map[string]map[string]string // challengeID -> playerID -> winnerID
}

var _ Backend = (*Mem)(nil)

func NewMem() *Mem {
	return &Mem{
		users:      make(map[string]*User),
		challenges: make(map[string]*Challenge),
		selections: make(map[string]map[string]string),
	}
}

// PutUser seeds a user row, for test setup.
func (m *Mem) PutUser(u *User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *u
	m.users[u.ID] = &cp
}

func (m *Mem) FindUser(_ context.Context, id string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *Mem) FindChallenge(_ context.Context, id string) (*Challenge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.challenges[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *Mem) CreateChallenge(_ context.Context, c *Challenge) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *c
	m.challenges[c.ID] = &cp
	return nil
}

func (m *Mem) UpdateChallenge(_ context.Context, id string, patch ChallengePatch) (*Challenge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.challenges[id]
	if !ok {
		return nil, ErrNotFound
	}
	if patch.InviteeID != nil {
		c.InviteeID = *patch.InviteeID
	}
	if patch.IsOpen != nil {
		c.IsOpen = *patch.IsOpen
	}
	if patch.Status != nil {
		c.Status = *patch.Status
	}
	if patch.WinnerID != nil {
		c.WinnerID = *patch.WinnerID
	}
	if patch.AcceptedAt != nil {
		c.AcceptedAt = patch.AcceptedAt
	}
	if patch.CompletedAt != nil {
		c.CompletedAt = patch.CompletedAt
	}
	if patch.ClaimTime != nil {
		c.ClaimTime = patch.ClaimTime
	}
	c.UpdatedAt = time.Now()

	cp := *c
	return &cp, nil
}

func (m *Mem) UpsertSelection(_ context.Context, challengeID, playerID, winnerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	byPlayer, ok := m.selections[challengeID]
	if !ok {
		byPlayer = make(map[string]string, 2)
		m.selections[challengeID] = byPlayer
	}
	byPlayer[playerID] = winnerID
	return nil
}

func (m *Mem) LoadActiveSelections(_ context.Context) ([]WinnerSelection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []WinnerSelection
	for challengeID, byPlayer := range m.selections {
		c, ok := m.challenges[challengeID]
		if !ok || c.Status != StatusInProgress {
			continue
		}
		for playerID, winnerID := range byPlayer {
			out = append(out, WinnerSelection{
				ChallengeID:    challengeID,
				PlayerID:       playerID,
				SelectedWinner: winnerID,
				UpdatedAt:      time.Now(),
			})
		}
	}
	return out, nil
}

func (m *Mem) DeleteSelectionsFor(_ context.Context, challengeID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.selections, challengeID)
	return nil
}

func (m *Mem) ListExpiredPending(_ context.Context, asOf time.Time) ([]*Challenge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*Challenge
	for _, c := range m.challenges {
		if c.Status == StatusPending && !c.ExpiresAt.After(asOf) {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out, nil
}

// WithTransaction runs fn against the same in-memory maps; Mem has no real
// isolation, but test scenarios don't need it.
func (m *Mem) WithTransaction(ctx context.Context, fn func(ctx context.Context, tx TxStore) error) error {
	return fn(ctx, memTx{m})
}

func (m *Mem) Close() {}

// memTx adapts Mem to TxStore so WithTransaction callers see the same
// interface in tests as in production.
type memTx struct{ m *Mem }

func (t memTx) FindUser(ctx context.Context, id string) (*User, error) { return t.m.FindUser(ctx, id) }
func (t memTx) FindChallenge(ctx context.Context, id string) (*Challenge, error) {
	return t.m.FindChallenge(ctx, id)
}
func (t memTx) UpdateChallenge(ctx context.Context, id string, patch ChallengePatch) (*Challenge, error) {
	return t.m.UpdateChallenge(ctx, id, patch)
}
func (t memTx) UpsertSelection(ctx context.Context, challengeID, playerID, winnerID string) error {
	return t.m.UpsertSelection(ctx, challengeID, playerID, winnerID)
}
func (t memTx) DeleteSelectionsFor(ctx context.Context, challengeID string) error {
	return t.m.DeleteSelectionsFor(ctx, challengeID)
}
