// Package postgres implements eventlog.Store on top of database/sql and
// the lib/pq driver, the way the teacher's internal/storage/postgres
// package backs session storage: plain SQL, parameterized queries, one
// struct wrapping a *sql.DB.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/lib/pq"

	"shortdeck-engine/internal/eventlog"
)

// EventStore persists eventlog.Event and eventlog.Snapshot rows to
// Postgres. The append-only event table enforces (game_id, sequence)
// uniqueness at the database level, the same guarantee MemoryStore
// enforces in process.
type EventStore struct {
	db *sql.DB
}

// NewEventStore wraps an already-open *sql.DB. Callers are responsible
// for its lifecycle (created via sql.Open("postgres", dsn)).
func NewEventStore(db *sql.DB) *EventStore {
	return &EventStore{db: db}
}

// CreateSchema creates the events and snapshots tables if they don't
// already exist, mirroring the teacher's CreateSessionTable pattern.
func (s *EventStore) CreateSchema(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS game_events (
			id VARCHAR(64) PRIMARY KEY,
			game_id VARCHAR(64) NOT NULL,
			sequence BIGINT NOT NULL,
			event_type VARCHAR(64) NOT NULL,
			payload JSONB NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			UNIQUE (game_id, sequence)
		);

		CREATE INDEX IF NOT EXISTS idx_game_events_game_id ON game_events(game_id, sequence);

		CREATE TABLE IF NOT EXISTS game_snapshots (
			game_id VARCHAR(64) NOT NULL,
			sequence BIGINT NOT NULL,
			state JSONB NOT NULL,
			integrity_hash VARCHAR(128) NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (game_id, sequence)
		);
	`
	_, err := s.db.ExecContext(ctx, query)
	return err
}

// Append inserts the next sequence number for gameID inside a
// transaction, so two concurrent appends for the same game can never
// both claim the same sequence (the unique index rejects the loser).
func (s *EventStore) Append(ctx context.Context, gameID, eventType string, payload any) (uint64, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return 0, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var nextSeq uint64
	row := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(sequence), 0) + 1 FROM game_events WHERE game_id = $1`, gameID)
	if err := row.Scan(&nextSeq); err != nil {
		return 0, err
	}

	id := newEventID()
	_, err = tx.ExecContext(ctx, `
		INSERT INTO game_events (id, game_id, sequence, event_type, payload)
		VALUES ($1, $2, $3, $4, $5)
	`, id, gameID, nextSeq, eventType, raw)
	if err != nil {
		return 0, fmt.Errorf("eventlog/postgres: append %s/%d: %w", gameID, nextSeq, eventlog.ErrOutOfOrder)
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return nextSeq, nil
}

// Events returns every row for gameID with sequence > afterSequence, in
// order.
func (s *EventStore) Events(ctx context.Context, gameID string, afterSequence uint64) ([]eventlog.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, game_id, sequence, event_type, payload, created_at
		FROM game_events
		WHERE game_id = $1 AND sequence > $2
		ORDER BY sequence ASC
	`, gameID, afterSequence)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []eventlog.Event
	for rows.Next() {
		var e eventlog.Event
		var payload []byte
		if err := rows.Scan(&e.ID, &e.GameID, &e.Sequence, &e.EventType, &payload, &e.Timestamp); err != nil {
			return nil, err
		}
		e.Payload = payload
		out = append(out, e)
	}
	return out, rows.Err()
}

// LatestSnapshot returns the highest-sequence snapshot for gameID, or
// nil if none exists.
func (s *EventStore) LatestSnapshot(ctx context.Context, gameID string) (*eventlog.Snapshot, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT game_id, sequence, state, integrity_hash
		FROM game_snapshots
		WHERE game_id = $1
		ORDER BY sequence DESC
		LIMIT 1
	`, gameID)

	var snap eventlog.Snapshot
	var state []byte
	err := row.Scan(&snap.GameID, &snap.Sequence, &state, &snap.IntegrityHash)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	snap.State = state
	return &snap, nil
}

// SaveSnapshot inserts a new snapshot row, ignoring the write if one
// already exists at that exact sequence.
func (s *EventStore) SaveSnapshot(ctx context.Context, snap eventlog.Snapshot) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO game_snapshots (game_id, sequence, state, integrity_hash)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (game_id, sequence) DO NOTHING
	`, snap.GameID, snap.Sequence, []byte(snap.State), snap.IntegrityHash)
	return err
}

// SaveGameSnapshot builds a Snapshot from its primitive arguments and
// delegates to SaveSnapshot, satisfying game.SnapshotStore.
func (s *EventStore) SaveGameSnapshot(ctx context.Context, gameID string, sequence uint64, state []byte, integrityHash string) error {
	return s.SaveSnapshot(ctx, eventlog.Snapshot{GameID: gameID, Sequence: sequence, State: state, IntegrityHash: integrityHash})
}

// Games lists every distinct game_id with at least one event, for the
// supervisor's boot-time recovery scan.
func (s *EventStore) Games(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT game_id FROM game_events ORDER BY game_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// IsTerminal reports whether gameID's most recent event is a terminal
// marker (tournament_ended / tournament_completed / game_ended).
func (s *EventStore) IsTerminal(ctx context.Context, gameID string) (bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT event_type FROM game_events
		WHERE game_id = $1
		ORDER BY sequence DESC
		LIMIT 1
	`, gameID)

	var eventType string
	err := row.Scan(&eventType)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return eventType == "tournament_ended" || eventType == "tournament_completed" || eventType == "game_ended", nil
}
