// Package eventlog implements the append-only persistence boundary
// described in spec.md §4.8: a per-game monotonic, gapless event
// sequence, optional periodic snapshots, and the boot-time scan that
// finds tournaments needing recovery.
package eventlog

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"shortdeck-engine/internal/game"
)

// ErrOutOfOrder is returned when an append targets a sequence the store
// has already moved past, or when two appends for the same game race
// each other; the store rejects rather than silently reordering.
var ErrOutOfOrder = errors.New("eventlog: out of order append")

// ErrNotFound is returned when a game has no recorded events.
var ErrNotFound = errors.New("eventlog: game not found")

// Event is one persisted row: (game_id, sequence) is unique, and
// sequences for a given game are dense starting at 1.
type Event struct {
	ID        string
	GameID    string
	Sequence  uint64
	EventType string
	Payload   json.RawMessage
	Timestamp time.Time
}

// RecoveryEvent adapts Event into the shape game.Reconstruct consumes,
// decoding the payload back into a generic map.
func (e Event) RecoveryEvent() (game.RecoveryEvent, error) {
	var payload map[string]any
	if len(e.Payload) > 0 {
		if err := json.Unmarshal(e.Payload, &payload); err != nil {
			return game.RecoveryEvent{}, err
		}
	}
	return game.RecoveryEvent{EventType: e.EventType, Payload: payload}, nil
}

// Snapshot is a point-in-time capture of an actor's full state, tied to
// the sequence it was taken after, so recovery can skip replaying
// anything at or before it.
type Snapshot struct {
	GameID        string
	Sequence      uint64
	State         json.RawMessage
	IntegrityHash string
}

// Store is the full persistence surface eventlog provides: appends
// (satisfying game.EventStore), reads for replay, and snapshot
// read/write for bounding replay cost. internal/supervisor is the only
// consumer of the read-side methods; internal/game only ever sees the
// narrower game.EventStore it depends on.
type Store interface {
	game.EventStore

	// Events returns every event for gameID with sequence > afterSequence,
	// in sequence order.
	Events(ctx context.Context, gameID string, afterSequence uint64) ([]Event, error)

	// LatestSnapshot returns the most recently saved snapshot for gameID,
	// or nil if none has been taken.
	LatestSnapshot(ctx context.Context, gameID string) (*Snapshot, error)

	// SaveSnapshot persists a new snapshot, superseding none of the
	// underlying events (they remain available for audit/replay past it).
	SaveSnapshot(ctx context.Context, snap Snapshot) error

	// SaveGameSnapshot is the primitive-typed entry point game.Actor calls
	// through game.SnapshotStore (a type assertion against game.EventStore,
	// which cannot import this package's Snapshot type without a cycle).
	// It builds a Snapshot and delegates to SaveSnapshot.
	SaveGameSnapshot(ctx context.Context, gameID string, sequence uint64, state []byte, integrityHash string) error

	// Games lists every game_id with at least one persisted event, for
	// the supervisor's boot-time recovery scan.
	Games(ctx context.Context) ([]string, error)

	// IsTerminal reports whether gameID has a terminal tournament_ended
	// marker, meaning the supervisor should not attempt to recover it.
	IsTerminal(ctx context.Context, gameID string) (bool, error)
}

// newEventID generates the id stamped on each persisted event, matching
// the teacher's use of uuid for session/table identifiers.
func newEventID() string {
	return uuid.NewString()
}

var terminalEventTypes = map[string]bool{
	"tournament_ended":     true,
	"tournament_completed": true,
	"game_ended":           true,
}
