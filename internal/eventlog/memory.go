package eventlog

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-process Store, used for tests and for a single
// process development deployment before a Postgres-backed store is
// wired in. It enforces the same sequence-monotonicity contract a real
// store must.
type MemoryStore struct {
	mu        sync.Mutex
	events    map[string][]Event
	snapshots map[string]Snapshot
}

// NewMemoryStore constructs an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		events:    make(map[string][]Event),
		snapshots: make(map[string]Snapshot),
	}
}

// Append assigns the next sequence number for gameID and records the
// event. It satisfies game.EventStore.
func (m *MemoryStore) Append(_ context.Context, gameID, eventType string, payload any) (uint64, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return 0, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	existing := m.events[gameID]
	seq := uint64(len(existing)) + 1

	m.events[gameID] = append(existing, Event{
		ID:        newEventID(),
		GameID:    gameID,
		Sequence:  seq,
		EventType: eventType,
		Payload:   raw,
		Timestamp: time.Now(),
	})
	return seq, nil
}

// Events returns every event for gameID after afterSequence, in order.
func (m *MemoryStore) Events(_ context.Context, gameID string, afterSequence uint64) ([]Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	all := m.events[gameID]
	out := make([]Event, 0, len(all))
	for _, e := range all {
		if e.Sequence > afterSequence {
			out = append(out, e)
		}
	}
	return out, nil
}

// LatestSnapshot returns the highest-sequence snapshot saved for
// gameID, or nil if none exists.
func (m *MemoryStore) LatestSnapshot(_ context.Context, gameID string) (*Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap, ok := m.snapshots[gameID]
	if !ok {
		return nil, nil
	}
	cp := snap
	return &cp, nil
}

// SaveSnapshot records snap as the latest for its game, replacing any
// prior snapshot with a lower sequence.
func (m *MemoryStore) SaveSnapshot(_ context.Context, snap Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.snapshots[snap.GameID]; ok && existing.Sequence >= snap.Sequence {
		return nil
	}
	m.snapshots[snap.GameID] = snap
	return nil
}

// SaveGameSnapshot builds a Snapshot from its primitive arguments and
// delegates to SaveSnapshot, satisfying game.SnapshotStore.
func (m *MemoryStore) SaveGameSnapshot(ctx context.Context, gameID string, sequence uint64, state []byte, integrityHash string) error {
	return m.SaveSnapshot(ctx, Snapshot{GameID: gameID, Sequence: sequence, State: state, IntegrityHash: integrityHash})
}

// Games lists every game_id with at least one persisted event.
func (m *MemoryStore) Games(_ context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]string, 0, len(m.events))
	for id := range m.events {
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}

// IsTerminal reports whether gameID's log ends with a terminal marker
// event (tournament_ended / tournament_completed / game_ended).
func (m *MemoryStore) IsTerminal(_ context.Context, gameID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	events := m.events[gameID]
	if len(events) == 0 {
		return false, nil
	}
	return terminalEventTypes[events[len(events)-1].EventType], nil
}
