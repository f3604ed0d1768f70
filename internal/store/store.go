// Package store is the Durable Store Adapter (SPEC_FULL.md §4.1): it reads
// and writes Users, Challenges, and WinnerSelections, and exposes a
// transactional primitive for the upsert+read and completion+cleanup pairs.
// The store is authoritative; it never retries and never caches.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/challenge-platform/coordinator/internal/store/migrations"
)

var ErrNotFound = errors.New("store: not found")

// User mirrors the read-only identity record owned by the auth layer.
type User struct {
	ID    string
	Name  string
	Coins int64
	Image string
}

// Status is a Challenge's FSM state (SPEC_FULL.md §4.4).
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusAccepted   Status = "ACCEPTED"
	StatusInProgress Status = "IN_PROGRESS"
	StatusCompleted  Status = "COMPLETED"
	StatusExpired    Status = "EXPIRED"
	StatusDisputed   Status = "DISPUTED"
)

// Challenge is the durable record for one wager.
type Challenge struct {
	ID          string
	CreatorID   string
	InviteeID   string
	IsOpen      bool
	Game        string
	Description string
	Rules       json.RawMessage
	Coins       int64
	XP          int64
	Status      Status
	WinnerID    string

	CreatedAt   time.Time
	UpdatedAt   time.Time
	AcceptedAt  *time.Time
	ExpiresAt   time.Time
	CompletedAt *time.Time
	ClaimTime   *time.Time
}

// WinnerSelection is one player's nomination, persisted only while the
// owning challenge is IN_PROGRESS.
type WinnerSelection struct {
	ChallengeID    string
	PlayerID       string
	SelectedWinner string
	UpdatedAt      time.Time
}

// ChallengePatch describes a partial update to a Challenge row. Nil fields
// are left unchanged.
type ChallengePatch struct {
	InviteeID   *string
	IsOpen      *bool
	Status      *Status
	WinnerID    *string
	AcceptedAt  *time.Time
	CompletedAt *time.Time
	ClaimTime   *time.Time
}

// querier is satisfied by both *pgxpool.Pool and pgx.Tx, so the same
// implementation serves both the top-level store and transactional views.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Backend is the full surface the engine depends on. It is satisfied by
// *Store in production and by an in-memory fake in tests.
type Backend interface {
	FindUser(ctx context.Context, id string) (*User, error)
	FindChallenge(ctx context.Context, id string) (*Challenge, error)
	CreateChallenge(ctx context.Context, c *Challenge) error
	UpdateChallenge(ctx context.Context, id string, patch ChallengePatch) (*Challenge, error)
	UpsertSelection(ctx context.Context, challengeID, playerID, winnerID string) error
	LoadActiveSelections(ctx context.Context) ([]WinnerSelection, error)
	DeleteSelectionsFor(ctx context.Context, challengeID string) error
	ListExpiredPending(ctx context.Context, asOf time.Time) ([]*Challenge, error)
	WithTransaction(ctx context.Context, fn func(ctx context.Context, tx TxStore) error) error
	Close()
}

// Store is the Durable Store Adapter.
type Store struct {
	pool *pgxpool.Pool
	q    querier
}

var _ Backend = (*Store)(nil)

// Open connects to Postgres, runs pending goose migrations, and returns a
// ready Store. Migration failure aborts bring-up (SPEC_FULL.md §4.7, §4.8).
func Open(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	if err := runMigrations(ctx, dsn); err != nil {
		pool.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return &Store{pool: pool, q: pool}, nil
}

func runMigrations(ctx context.Context, dsn string) error {
	sqlDB, err := sql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("opening sql connection for migrations: %w", err)
	}
	defer sqlDB.Close()

	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("setting goose dialect: %w", err)
	}

	return goose.UpContext(ctx, sqlDB, ".")
}

// Close releases the underlying connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// FindUser returns ErrNotFound if no such user exists.
func (s *Store) FindUser(ctx context.Context, id string) (*User, error) {
	return findUser(ctx, s.q, id)
}

func findUser(ctx context.Context, q querier, id string) (*User, error) {
	var u User
	err := q.QueryRow(ctx,
		`SELECT id, name, coins, image FROM users WHERE id = $1`, id,
	).Scan(&u.ID, &u.Name, &u.Coins, &u.Image)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying user %q: %w", id, err)
	}
	return &u, nil
}

// FindChallenge returns ErrNotFound if no such challenge exists.
func (s *Store) FindChallenge(ctx context.Context, id string) (*Challenge, error) {
	return findChallenge(ctx, s.q, id)
}

const challengeColumns = `id, creator_id, invitee_id, is_open, game, description, rules,
		coins, xp, status, winner_id, created_at, updated_at, accepted_at,
		expires_at, completed_at, claim_time`

func findChallenge(ctx context.Context, q querier, id string) (*Challenge, error) {
	row := q.QueryRow(ctx, `SELECT `+challengeColumns+` FROM challenges WHERE id = $1`, id)
	c, err := scanChallenge(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying challenge %q: %w", id, err)
	}
	return c, nil
}

func scanChallenge(row pgx.Row) (*Challenge, error) {
	var c Challenge
	var inviteeID, winnerID *string
	var rules []byte
	err := row.Scan(
		&c.ID, &c.CreatorID, &inviteeID, &c.IsOpen, &c.Game, &c.Description, &rules,
		&c.Coins, &c.XP, &c.Status, &winnerID, &c.CreatedAt, &c.UpdatedAt, &c.AcceptedAt,
		&c.ExpiresAt, &c.CompletedAt, &c.ClaimTime,
	)
	if err != nil {
		return nil, err
	}
	if inviteeID != nil {
		c.InviteeID = *inviteeID
	}
	if winnerID != nil {
		c.WinnerID = *winnerID
	}
	c.Rules = rules
	return &c, nil
}

// CreateChallenge inserts a new PENDING challenge.
func (s *Store) CreateChallenge(ctx context.Context, c *Challenge) error {
	var inviteeID *string
	if c.InviteeID != "" {
		inviteeID = &c.InviteeID
	}
	rules := c.Rules
	if rules == nil {
		rules = json.RawMessage("{}")
	}
	_, err := s.q.Exec(ctx,
		`INSERT INTO challenges
			(id, creator_id, invitee_id, is_open, game, description, rules, coins, xp,
			 status, created_at, updated_at, expires_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$11,$12)`,
		c.ID, c.CreatorID, inviteeID, c.IsOpen, c.Game, c.Description, rules,
		c.Coins, c.XP, c.Status, c.CreatedAt, c.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("creating challenge %q: %w", c.ID, err)
	}
	return nil
}

// UpdateChallenge applies a partial patch and returns the row as it stands
// after the update.
func (s *Store) UpdateChallenge(ctx context.Context, id string, patch ChallengePatch) (*Challenge, error) {
	return updateChallenge(ctx, s.q, id, patch)
}

func updateChallenge(ctx context.Context, q querier, id string, patch ChallengePatch) (*Challenge, error) {
	_, err := q.Exec(ctx,
		`UPDATE challenges SET
			invitee_id   = COALESCE($2, invitee_id),
			is_open      = COALESCE($3, is_open),
			status       = COALESCE($4, status),
			winner_id    = COALESCE($5, winner_id),
			accepted_at  = COALESCE($6, accepted_at),
			completed_at = COALESCE($7, completed_at),
			claim_time   = COALESCE($8, claim_time),
			updated_at   = now()
		 WHERE id = $1`,
		id, patch.InviteeID, patch.IsOpen, patch.Status, patch.WinnerID,
		patch.AcceptedAt, patch.CompletedAt, patch.ClaimTime,
	)
	if err != nil {
		return nil, fmt.Errorf("updating challenge %q: %w", id, err)
	}
	return findChallenge(ctx, q, id)
}

// UpsertSelection records or overwrites a player's winner nomination.
func (s *Store) UpsertSelection(ctx context.Context, challengeID, playerID, winnerID string) error {
	return upsertSelection(ctx, s.q, challengeID, playerID, winnerID)
}

func upsertSelection(ctx context.Context, q querier, challengeID, playerID, winnerID string) error {
	_, err := q.Exec(ctx,
		`INSERT INTO winner_selections (challenge_id, player_id, selected_winner, updated_at)
		 VALUES ($1, $2, $3, now())
		 ON CONFLICT (challenge_id, player_id)
		 DO UPDATE SET selected_winner = EXCLUDED.selected_winner, updated_at = now()`,
		challengeID, playerID, winnerID,
	)
	if err != nil {
		return fmt.Errorf("upserting selection for challenge %q player %q: %w", challengeID, playerID, err)
	}
	return nil
}

// LoadActiveSelections returns every WinnerSelection row whose owning
// challenge is IN_PROGRESS, for the Janitor's startup cache warm (§4.7).
func (s *Store) LoadActiveSelections(ctx context.Context) ([]WinnerSelection, error) {
	rows, err := s.q.Query(ctx,
		`SELECT ws.challenge_id, ws.player_id, ws.selected_winner, ws.updated_at
		 FROM winner_selections ws
		 JOIN challenges c ON c.id = ws.challenge_id
		 WHERE c.status = $1`, StatusInProgress,
	)
	if err != nil {
		return nil, fmt.Errorf("loading active selections: %w", err)
	}
	defer rows.Close()

	var out []WinnerSelection
	for rows.Next() {
		var w WinnerSelection
		if err := rows.Scan(&w.ChallengeID, &w.PlayerID, &w.SelectedWinner, &w.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning selection: %w", err)
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

// ListExpiredPending returns every PENDING challenge whose expires_at is at
// or before asOf, for the Janitor's lazy-expiry sweep (SPEC_FULL.md §11).
func (s *Store) ListExpiredPending(ctx context.Context, asOf time.Time) ([]*Challenge, error) {
	rows, err := s.q.Query(ctx,
		`SELECT `+challengeColumns+` FROM challenges WHERE status = $1 AND expires_at <= $2`,
		StatusPending, asOf,
	)
	if err != nil {
		return nil, fmt.Errorf("listing expired pending challenges: %w", err)
	}
	defer rows.Close()

	var out []*Challenge
	for rows.Next() {
		c, err := scanChallengeRows(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning expired challenge: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// scanChallengeRows scans one challenge row from a pgx.Rows cursor; the
// column order must match challengeColumns (shared with scanChallenge's
// pgx.Row variant).
func scanChallengeRows(rows pgx.Rows) (*Challenge, error) {
	var c Challenge
	var inviteeID, winnerID *string
	var rules []byte
	err := rows.Scan(
		&c.ID, &c.CreatorID, &inviteeID, &c.IsOpen, &c.Game, &c.Description, &rules,
		&c.Coins, &c.XP, &c.Status, &winnerID, &c.CreatedAt, &c.UpdatedAt, &c.AcceptedAt,
		&c.ExpiresAt, &c.CompletedAt, &c.ClaimTime,
	)
	if err != nil {
		return nil, err
	}
	if inviteeID != nil {
		c.InviteeID = *inviteeID
	}
	if winnerID != nil {
		c.WinnerID = *winnerID
	}
	c.Rules = rules
	return &c, nil
}

// DeleteSelectionsFor removes every WinnerSelection for a challenge
// (Invariant 2, §3: rows live only while IN_PROGRESS).
func (s *Store) DeleteSelectionsFor(ctx context.Context, challengeID string) error {
	return deleteSelectionsFor(ctx, s.q, challengeID)
}

func deleteSelectionsFor(ctx context.Context, q querier, challengeID string) error {
	_, err := q.Exec(ctx, `DELETE FROM winner_selections WHERE challenge_id = $1`, challengeID)
	if err != nil {
		return fmt.Errorf("deleting selections for challenge %q: %w", challengeID, err)
	}
	return nil
}

// TxStore is the read/write surface WithTransaction's callback sees. It is
// satisfied by *Tx in production and by any in-memory fake in tests, so
// callers outside this package never depend on the concrete pgx type.
type TxStore interface {
	FindUser(ctx context.Context, id string) (*User, error)
	FindChallenge(ctx context.Context, id string) (*Challenge, error)
	UpdateChallenge(ctx context.Context, id string, patch ChallengePatch) (*Challenge, error)
	UpsertSelection(ctx context.Context, challengeID, playerID, winnerID string) error
	DeleteSelectionsFor(ctx context.Context, challengeID string) error
}

// Tx is the transactional view handed to WithTransaction's callback: the
// same read/write surface as Store, but bound to a single snapshot.
type Tx struct {
	q querier
}

func (t *Tx) FindUser(ctx context.Context, id string) (*User, error) { return findUser(ctx, t.q, id) }
func (t *Tx) FindChallenge(ctx context.Context, id string) (*Challenge, error) {
	return findChallenge(ctx, t.q, id)
}
func (t *Tx) UpdateChallenge(ctx context.Context, id string, patch ChallengePatch) (*Challenge, error) {
	return updateChallenge(ctx, t.q, id, patch)
}
func (t *Tx) UpsertSelection(ctx context.Context, challengeID, playerID, winnerID string) error {
	return upsertSelection(ctx, t.q, challengeID, playerID, winnerID)
}
func (t *Tx) DeleteSelectionsFor(ctx context.Context, challengeID string) error {
	return deleteSelectionsFor(ctx, t.q, challengeID)
}

// WithTransaction runs fn under snapshot isolation, grounded on
// udisondev/la2go's PlayerPersistenceService.SavePlayer transaction pattern
// (internal/db/persistence.go): begin, defer rollback-unless-committed, run,
// commit. The engine uses it for the completion+cleanup pair (claimVictory)
// named in §4.1; selectWinner's upsert does not go through it and runs
// outside a transaction.
func (s *Store) WithTransaction(ctx context.Context, fn func(ctx context.Context, tx TxStore) error) error {
	pgTx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() {
		if err := pgTx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			slog.Error("rolling back transaction", "error", err)
		}
	}()

	if err := fn(ctx, &Tx{q: pgTx}); err != nil {
		return err
	}

	if err := pgTx.Commit(ctx); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}
