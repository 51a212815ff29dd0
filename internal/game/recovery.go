package game

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"

	"shortdeck-engine/internal/betting"
	"shortdeck-engine/internal/cards"
	"shortdeck-engine/internal/telemetry"
	"shortdeck-engine/pkg/rng"
)

// RecoveryEvent is the minimal shape internal/eventlog translates a
// persisted event into for replay: the event type and its payload, in
// sequence order. It deliberately does not carry the sequence number or
// timestamp — those are bookkeeping for the log, not state transitions.
type RecoveryEvent struct {
	EventType string
	Payload   map[string]any
}

// ActorSnapshot is a serializable capture of everything an Actor needs to
// resume service: the raw State plus every piece of bookkeeping that
// lives only at actor level (spec.md §3's Snapshot, §4.8). Taking one
// bounds how much of a tournament's event log crash recovery must replay.
type ActorSnapshot struct {
	State          State
	Round          *betting.Round
	OriginalRound  *betting.Round
	HandCommitted  map[string]int
	StreetBaseline map[string]int
	HandFolded     map[string]bool
	HandAllIn      map[string]bool
	LastShowdown   []ShowdownResult
}

// Snapshot captures the actor's full current state for persistence.
func (a *Actor) Snapshot() ActorSnapshot {
	return ActorSnapshot{
		State:          a.state.clone(),
		Round:          a.round,
		OriginalRound:  a.originalRound,
		HandCommitted:  cloneIntMap(a.handCommitted),
		StreetBaseline: cloneIntMap(a.streetBaseline),
		HandFolded:     cloneBoolSet(a.handFolded),
		HandAllIn:      cloneBoolSet(a.handAllIn),
		LastShowdown:   a.lastShowdown,
	}
}

// Marshal encodes the snapshot as JSON plus a SHA-256 integrity hash of
// that encoding, the pair internal/eventlog persists as a Snapshot's
// State and verifies on load.
func (s ActorSnapshot) Marshal() (data []byte, integrityHash string, err error) {
	data, err = json.Marshal(s)
	if err != nil {
		return nil, "", fmt.Errorf("game: marshal snapshot: %w", err)
	}
	sum := sha256.Sum256(data)
	return data, hex.EncodeToString(sum[:]), nil
}

// UnmarshalFrom decodes raw into the snapshot, the inverse of Marshal's
// data return value. It does not itself verify an integrity hash; callers
// that stored one compare it against a fresh hash of raw before calling
// this.
func (s *ActorSnapshot) UnmarshalFrom(raw []byte) error {
	if err := json.Unmarshal(raw, s); err != nil {
		return fmt.Errorf("game: unmarshal snapshot: %w", err)
	}
	return nil
}

// VerifyIntegrity reports whether raw hashes to wantHash, the check a
// loader performs before trusting a persisted snapshot's bytes.
func VerifyIntegrity(raw []byte, wantHash string) bool {
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:]) == wantHash
}

// RestoreFromSnapshot builds an Actor directly from a previously captured
// ActorSnapshot, with no inbox goroutine running yet. Callers apply any
// events persisted after the snapshot's sequence with ReplayEvents before
// starting Run.
func RestoreFromSnapshot(snap ActorSnapshot, store EventStore, bcast Broadcaster, log telemetry.Logger) (*Actor, error) {
	source, err := rng.NewSystem(nil)
	if err != nil {
		return nil, fmt.Errorf("game: recovery: new rng: %w", err)
	}
	return &Actor{
		gameID:         snap.State.GameID,
		inbox:          make(chan message, 32),
		state:          snap.State,
		round:          snap.Round,
		originalRound:  snap.OriginalRound,
		handCommitted:  snap.HandCommitted,
		streetBaseline: snap.StreetBaseline,
		handFolded:     snap.HandFolded,
		handAllIn:      snap.HandAllIn,
		lastShowdown:   snap.LastShowdown,
		rng:            source,
		events:         store,
		bcast:          bcast,
		log:            log,
		stop:           make(chan struct{}),
		done:           make(chan struct{}),
	}, nil
}

// Reconstruct replays a gapless RecoveryEvent sequence from the very
// start of a tournament's log (no snapshot available), returning an
// Actor whose internal state matches exactly what the crashed actor had
// just after the last event was persisted (spec.md §8 "determinism of
// replay"). The returned Actor has no inbox goroutine running yet — wire
// a live EventStore/Broadcaster into it and call Run to resume service.
func Reconstruct(gameID string, events []RecoveryEvent, store EventStore, bcast Broadcaster, log telemetry.Logger) (*Actor, error) {
	a, err := RestoreFromSnapshot(ActorSnapshot{State: State{GameID: gameID}}, store, bcast, log)
	if err != nil {
		return nil, err
	}
	if err := a.ReplayEvents(events); err != nil {
		return nil, err
	}
	return a, nil
}

// ReplayEvents applies a gapless tail of RecoveryEvents to an
// already-built Actor (fresh or snapshot-restored), in sequence order.
func (a *Actor) ReplayEvents(events []RecoveryEvent) error {
	for i, e := range events {
		if err := a.replayOne(e); err != nil {
			return fmt.Errorf("game: recovery: event %d (%s): %w", i+1, e.EventType, err)
		}
	}
	return nil
}

func (a *Actor) replayOne(e RecoveryEvent) error {
	switch e.EventType {
	case "tournament_created":
		return a.replayTournamentCreated(e.Payload)
	case "tournament_completed":
		a.state.Phase = TournamentComplete
		a.round = nil
		a.originalRound = nil
		return nil
	case "game_ended":
		a.state.Phase = GameEnded
		a.round = nil
		a.originalRound = nil
		return nil
	case "hand_started":
		return a.replayHandStarted(e.Payload)
	case "street_dealt":
		return a.replayStreetDealt(e.Payload)
	case "player_folded":
		return a.replayAction(betting.Action{Kind: betting.Fold}, e.Payload)
	case "player_called":
		return a.replayAction(betting.Action{Kind: betting.Call}, e.Payload)
	case "player_checked":
		return a.replayAction(betting.Action{Kind: betting.Check}, e.Payload)
	case "player_raised":
		return a.replayAction(betting.Action{Kind: betting.Raise, Amount: asInt(e.Payload["amount"])}, e.Payload)
	case "player_all_in":
		return a.replayAction(betting.Action{Kind: betting.AllIn}, e.Payload)
	case "hand_complete":
		return a.replayHandComplete(e.Payload)
	default:
		return fmt.Errorf("unknown event type %q", e.EventType)
	}
}

// replayTournamentCreated seeds the actor's entire seating from the
// first event in a tournament's log, so Reconstruct can be called with
// a zero-value State and still recover a game that crashed before its
// first hand was dealt.
func (a *Actor) replayTournamentCreated(payload map[string]any) error {
	a.state.Players = asPlayerList(payload["players"])
	a.state.SmallBlind = asInt(payload["small_blind"])
	a.state.BigBlind = asInt(payload["big_blind"])
	a.state.Phase = Waiting
	a.state.ButtonSeat = -1
	return nil
}

func (a *Actor) replayHandStarted(payload map[string]any) error {
	a.state = eliminateBusted(a.state)
	a.state.ButtonSeat = asInt(payload["button_seat"])
	a.state.HandNumber = asInt(payload["hand_number"])

	holeCards := asStringIntSliceMap(payload["hole_cards"])
	sort.Slice(a.state.Players, func(i, j int) bool { return a.state.Players[i].Seat < a.state.Players[j].Seat })
	for i := range a.state.Players {
		a.state.Players[i].HoleCards = idsToCards(holeCards[a.state.Players[i].ID])
	}
	a.state.CommunityCards = nil
	a.state.Deck = cards.FromIDs(asIntSlice(payload["deck"]))

	round, err := betting.New(bettingPlayers(a.state.Players), a.state.SmallBlind, a.state.BigBlind, a.state.ButtonSeat)
	if err != nil {
		return err
	}
	a.round = &round
	a.originalRound = nil
	a.handFolded = make(map[string]bool)
	a.handAllIn = cloneBoolSet(round.AllIn)
	a.streetBaseline = make(map[string]int)
	a.handCommitted = make(map[string]int)
	a.recomputeHandCommitted()
	a.lastShowdown = nil
	a.state = a.state.syncFromRound(round)
	a.state.Phase = PreflopBetting
	return nil
}

func (a *Actor) replayStreetDealt(payload map[string]any) error {
	dealt := idsToCards(asIntSlice(payload["cards"]))
	a.state.CommunityCards = append(a.state.CommunityCards, dealt...)

	next := nextStreet(a.state.Phase)
	newRound, err := betting.NewFromExisting(
		bettingPlayers(a.state.Players), a.state.Pot, 0, next, a.state.ButtonSeat,
		a.state.BigBlind, a.handFolded, a.handAllIn,
	)
	if err != nil {
		return err
	}
	a.streetBaseline = cloneIntMap(a.handCommitted)
	a.round = &newRound
	a.state = a.state.syncFromRound(newRound)
	a.state.Phase = phaseForStreet(next)
	a.recomputeHandCommitted()
	return nil
}

func (a *Actor) replayAction(action betting.Action, payload map[string]any) error {
	playerID, _ := payload["player_id"].(string)
	if a.round == nil {
		return ErrNoActiveBettingRound
	}
	newRound, err := a.round.Apply(playerID, action)
	if err != nil {
		return err
	}
	a.round = &newRound
	a.state = a.state.syncFromRound(newRound)
	a.recomputeHandCommitted()
	for id := range newRound.AllIn {
		a.handAllIn[id] = true
	}
	for id := range newRound.Folded {
		a.handFolded[id] = true
	}
	if newRound.IsComplete() {
		a.freezeOriginalRoundIfNeeded(newRound)
	}
	return nil
}

// replayHandComplete applies the credited chips a hand_complete event
// recorded (fold-win or showdown distribution) rather than recomputing
// hand evaluation, since the original credit amounts are the ground
// truth the crashed actor actually applied.
func (a *Actor) replayHandComplete(payload map[string]any) error {
	for id, amount := range asStringIntMap(payload["credits"]) {
		a.creditChips(id, amount)
	}
	a.state.Pot = 0
	a.state.Phase = HandComplete
	a.round = nil
	a.originalRound = nil
	a.lastShowdown = nil
	return nil
}

func idsToCards(ids []int) []cards.Card {
	if ids == nil {
		return nil
	}
	out := make([]cards.Card, len(ids))
	for i, id := range ids {
		out[i] = cards.FromID(id)
	}
	return out
}

// asInt coerces a decoded event-payload value (native int, or float64 if
// it passed through a JSON round trip) into an int.
func asInt(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return 0
	}
}

func asIntSlice(v any) []int {
	switch s := v.(type) {
	case []int:
		return s
	case []any:
		out := make([]int, len(s))
		for i, e := range s {
			out[i] = asInt(e)
		}
		return out
	default:
		return nil
	}
}

func asStringIntMap(v any) map[string]int {
	switch m := v.(type) {
	case map[string]int:
		return m
	case map[string]any:
		out := make(map[string]int, len(m))
		for k, e := range m {
			out[k] = asInt(e)
		}
		return out
	default:
		return nil
	}
}

func asPlayerList(v any) []Player {
	entries, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]Player, 0, len(entries))
	for _, e := range entries {
		m, ok := e.(map[string]any)
		if !ok {
			continue
		}
		id, _ := m["id"].(string)
		out = append(out, Player{ID: id, Chips: asInt(m["chips"]), Seat: asInt(m["seat"])})
	}
	return out
}

func asStringIntSliceMap(v any) map[string][]int {
	switch m := v.(type) {
	case map[string][]int:
		return m
	case map[string]any:
		out := make(map[string][]int, len(m))
		for k, e := range m {
			out[k] = asIntSlice(e)
		}
		return out
	default:
		return nil
	}
}
