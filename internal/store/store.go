// Package store persists game snapshots and event logs to SQLite via sqlx,
// per spec §4.D. Snapshots are optimistically versioned: saving a
// snapshot whose expected predecessor version doesn't match the row
// already on disk reports ErrVersionConflict rather than overwriting it.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

// ErrVersionConflict signals that the snapshot on disk has moved on from
// what the caller expected — fatal to the in-flight operation, not
// retried automatically, per §4.D.
var ErrVersionConflict = errors.New("store: snapshot version conflict")

const schema = `
CREATE TABLE IF NOT EXISTS game_snapshots (
	game_id        TEXT PRIMARY KEY,
	state_snapshot TEXT NOT NULL,
	version        INTEGER NOT NULL,
	status         TEXT NOT NULL,
	created_at     TIMESTAMP NOT NULL,
	updated_at     TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_game_snapshots_status ON game_snapshots(status);

CREATE TABLE IF NOT EXISTS game_events (
	event_id   INTEGER PRIMARY KEY AUTOINCREMENT,
	game_id    TEXT NOT NULL REFERENCES game_snapshots(game_id) ON DELETE CASCADE,
	event_type TEXT NOT NULL,
	event_data TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_game_events_game_created ON game_events(game_id, created_at);
`

// Store wraps a sqlx.DB handle open against a SQLite database file.
type Store struct {
	db *sqlx.DB
}

// Open connects to the SQLite database at dsn and ensures the schema
// exists.
func Open(dsn string) (*Store, error) {
	db, err := sqlx.Connect("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open: %w", err)
	}
	db.SetMaxOpenConns(1) // sqlite3 serializes writers regardless

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, fmt.Errorf("store: enable foreign keys: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("store: migrate: %w", err)
	}

	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

type snapshotRow struct {
	GameID        string    `db:"game_id"`
	StateSnapshot string    `db:"state_snapshot"`
	Version       int       `db:"version"`
	Status        string    `db:"status"`
	CreatedAt     time.Time `db:"created_at"`
	UpdatedAt     time.Time `db:"updated_at"`
}

// SaveSnapshot inserts the first version of a game (expectedVersion=1) or
// updates it in place, but only if the current row's version is exactly
// expectedVersion-1 — an atomic optimistic-lock check per §4.D. state is
// marshaled to JSON; callers pass any type with stable field names.
func (s *Store) SaveSnapshot(ctx context.Context, gameID string, state any, expectedVersion int, status string) error {
	blob, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("store: marshal snapshot: %w", err)
	}
	now := time.Now()

	if expectedVersion == 1 {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO game_snapshots (game_id, state_snapshot, version, status, created_at, updated_at)
			VALUES (?, ?, 1, ?, ?, ?)
		`, gameID, string(blob), status, now, now)
		if err != nil {
			return fmt.Errorf("store: insert snapshot: %w", err)
		}
		return nil
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE game_snapshots
		SET state_snapshot = ?, version = ?, status = ?, updated_at = ?
		WHERE game_id = ? AND version = ?
	`, string(blob), expectedVersion, status, now, gameID, expectedVersion-1)
	if err != nil {
		return fmt.Errorf("store: update snapshot: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: update snapshot: %w", err)
	}
	if rows == 0 {
		return ErrVersionConflict
	}
	return nil
}

// LoadSnapshot returns the latest snapshot for gameID, or ok=false if none
// exists.
func (s *Store) LoadSnapshot(ctx context.Context, gameID string) (data []byte, version int, status string, ok bool, err error) {
	var row snapshotRow
	err = s.db.GetContext(ctx, &row, `SELECT * FROM game_snapshots WHERE game_id = ?`, gameID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, 0, "", false, nil
	}
	if err != nil {
		return nil, 0, "", false, fmt.Errorf("store: load snapshot: %w", err)
	}
	return []byte(row.StateSnapshot), row.Version, row.Status, true, nil
}

// SaveEvent appends one event to the log. Per §4.D this never fails the
// caller's move — callers invoke it fire-and-forget and only log errors.
func (s *Store) SaveEvent(ctx context.Context, gameID, eventType string, data any) error {
	blob, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("store: marshal event: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO game_events (game_id, event_type, event_data, created_at)
		VALUES (?, ?, ?, ?)
	`, gameID, eventType, string(blob), time.Now())
	if err != nil {
		return fmt.Errorf("store: insert event: %w", err)
	}
	return nil
}

// ActiveSnapshot is one row returned by LoadActiveSnapshots.
type ActiveSnapshot struct {
	GameID  string
	Data    []byte
	Version int
	Status  string
}

// LoadActiveSnapshots returns every snapshot whose status is not `ended`,
// for recovery on process start.
func (s *Store) LoadActiveSnapshots(ctx context.Context) ([]ActiveSnapshot, error) {
	var rows []snapshotRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT * FROM game_snapshots
		WHERE status IN ('lobby', 'playing', 'starvation', 'paused')
	`)
	if err != nil {
		return nil, fmt.Errorf("store: load active snapshots: %w", err)
	}

	out := make([]ActiveSnapshot, 0, len(rows))
	for _, r := range rows {
		out = append(out, ActiveSnapshot{
			GameID:  r.GameID,
			Data:    []byte(r.StateSnapshot),
			Version: r.Version,
			Status:  r.Status,
		})
	}
	return out, nil
}

// Stats summarizes game counts by status, backing GET /api/games/stats.
type Stats struct {
	TotalGames      int `json:"totalGames"`
	OpenLobbies     int `json:"openLobbies"`
	GamesInProgress int `json:"gamesInProgress"`
	GamesEnded      int `json:"gamesEnded"`
}

func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var counts []struct {
		Status string `db:"status"`
		Count  int    `db:"count"`
	}
	err := s.db.SelectContext(ctx, &counts, `
		SELECT status, COUNT(*) AS count FROM game_snapshots GROUP BY status
	`)
	if err != nil {
		return Stats{}, fmt.Errorf("store: stats: %w", err)
	}

	var out Stats
	for _, c := range counts {
		out.TotalGames += c.Count
		switch c.Status {
		case "lobby":
			out.OpenLobbies += c.Count
		case "playing", "starvation", "paused":
			out.GamesInProgress += c.Count
		case "ended":
			out.GamesEnded += c.Count
		}
	}
	return out, nil
}
