package game

import (
	"context"
	"fmt"
	"time"

	"shortdeck-engine/internal/betting"
	"shortdeck-engine/internal/telemetry"
	"shortdeck-engine/pkg/rng"
)

// EventStore is the append-only persistence boundary an Actor writes
// through. It is satisfied by internal/eventlog's store; defining the
// interface here (rather than importing eventlog) keeps the dependency
// pointed the idiomatic direction, consumer to interface.
type EventStore interface {
	Append(ctx context.Context, gameID, eventType string, payload any) (sequence uint64, err error)
}

// SnapshotStore is an optional extension of EventStore an Actor type-asserts
// for after persisting an event; internal/eventlog's Store implements it.
// Keeping it a separate, primitive-typed interface (rather than importing
// eventlog.Snapshot here) avoids an import cycle while letting the actor
// trigger snapshot saves without eventlog needing to see into game's
// internals.
type SnapshotStore interface {
	SaveGameSnapshot(ctx context.Context, gameID string, sequence uint64, state []byte, integrityHash string) error
}

// Broadcaster receives the raw state after every successful mutation and
// is responsible for building and publishing the per-player filtered
// views (internal/broadcast.Broadcaster implements this).
type Broadcaster interface {
	Broadcast(snapshot Snapshot)
	BroadcastEnded(gameID string)
}

// Snapshot is everything a Broadcaster needs to build filtered per-player
// views: the raw state plus whichever betting round is currently live.
type Snapshot struct {
	State State
	Round *betting.Round // nil when no street is in progress
	Showdown []ShowdownResult
}

// ShowdownResult names one pot's winners and their revealed hands, for
// true-showdown broadcasts.
type ShowdownResult struct {
	PotAmount int
	Winners   []string
	HandDescriptions map[string]string
}

// HandRecord summarizes one completed hand for the analytics sink,
// independent of any one recipient's filtered view.
type HandRecord struct {
	GameID        string
	HandNumber    int
	Pot           int
	StreetReached string
	Winners       []string
	Descriptions  map[string]string
	FoldWin       bool
}

// HandHistorySink receives a HandRecord after every hand_complete. It is
// observability, not gameplay: a slow or failing sink never blocks or
// fails a hand-lifecycle transition (internal/analytics implements it).
type HandHistorySink interface {
	RecordHand(ctx context.Context, rec HandRecord)
}

// message is the actor's inbox envelope: exactly one of the Request
// fields is set, and Reply always receives exactly one response.
type message struct {
	kind  msgKind
	actionPlayerID string
	action         betting.Action
	reply          chan Response
}

type msgKind int

const (
	msgGetState msgKind = iota
	msgPlayerAction
	msgStartHand
	msgEndGame
	msgCreateGame
	msgGetSnapshot
)

// Response is what every inbox message resolves to.
type Response struct {
	State    State
	Round    *betting.Round
	Showdown []ShowdownResult
	Event    string
	Err      error
}

// Actor owns one game's authoritative state and is the only writer of
// it: every mutation is processed to completion before the next message
// is accepted, giving total ordering within a game.
type Actor struct {
	gameID string
	inbox  chan message

	state         State
	round         *betting.Round
	originalRound *betting.Round

	// handCommitted is each player's cumulative chips committed to the
	// hand so far (across all closed streets plus the live one); it is
	// what side_pots() partitions at showdown, since a single street's
	// player_bets cannot reflect multi-street commitments once a street
	// has closed and a new one has started bets back at zero.
	handCommitted  map[string]int
	streetBaseline map[string]int
	handFolded     map[string]bool
	handAllIn      map[string]bool
	lastShowdown   []ShowdownResult

	rng       *rng.System
	events    EventStore
	bcast     Broadcaster
	analytics HandHistorySink
	log       telemetry.Logger
	onCrash   func(recovered any)

	// snapshotInterval is how many persisted events elapse between
	// automatic snapshots; 0 disables interval-based snapshotting, though
	// every hand_complete event still triggers one. eventsSinceSnapshot
	// and lastSequence track the cadence.
	snapshotInterval   int
	eventsSinceSnapshot int
	lastSequence       uint64

	stop chan struct{}
	done chan struct{}
}

// SetSnapshotInterval configures how many persisted events elapse between
// automatic snapshots (spec.md §4.8's snapshot cadence). A value of 0
// (the default) disables interval-based snapshotting; a snapshot is still
// taken at every hand_complete event.
func (a *Actor) SetSnapshotInterval(n int) {
	a.snapshotInterval = n
}

// SetAnalyticsSink wires an optional hand-history recorder. Unset by
// default; a nil sink means hand completion simply isn't recorded.
func (a *Actor) SetAnalyticsSink(sink HandHistorySink) {
	a.analytics = sink
}

func (a *Actor) recordHand(rec HandRecord) {
	if a.analytics == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	a.analytics.RecordHand(ctx, rec)
}

// NewActor constructs an actor for an already-seated game. Call Run in
// its own goroutine to start processing its inbox.
func NewActor(state State, events EventStore, bcast Broadcaster, log telemetry.Logger) (*Actor, error) {
	source, err := rng.NewSystem(nil)
	if err != nil {
		return nil, fmt.Errorf("game: new rng: %w", err)
	}
	return &Actor{
		gameID: state.GameID,
		inbox:  make(chan message, 32),
		state:  state,
		rng:    source,
		events: events,
		bcast:  bcast,
		log:    log,
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}, nil
}

// SetCrashHandler wires a callback invoked if a dispatch handler
// panics; Run then stops processing and returns without calling
// handleEndGame, leaving it to the supervisor to reconstruct and
// restart this game from its persisted events (spec.md §4.5/§7).
func (a *Actor) SetCrashHandler(onCrash func(recovered any)) {
	a.onCrash = onCrash
}

// Run processes the actor's inbox until Stop is called or ctx is
// cancelled. It must be started in its own goroutine. Stopping this way
// is a pause, not a termination: it leaves the game's phase and event
// log untouched so the supervisor's boot-time recovery can resume it.
// Only an explicit EndGame call (msgEndGame) marks the game terminally
// ended.
func (a *Actor) Run(ctx context.Context) {
	defer close(a.done)
	for {
		select {
		case <-ctx.Done():
			return
		case <-a.stop:
			return
		case msg := <-a.inbox:
			if crashed := a.dispatchRecovering(msg); crashed {
				return
			}
		}
	}
}

// dispatchRecovering runs dispatch under a recover, reporting true if
// the handler panicked so Run can stop the actor for supervisor
// restart instead of continuing with possibly-corrupted in-memory
// state.
func (a *Actor) dispatchRecovering(msg message) (crashed bool) {
	defer func() {
		if r := recover(); r != nil {
			crashed = true
			a.log.Errorf("game %s: actor panic: %v", a.gameID, r)
			if a.onCrash != nil {
				a.onCrash(r)
			}
		}
	}()
	a.dispatch(msg)
	return false
}

// Stop requests a graceful shutdown and waits for the actor to finish
// processing its current message.
func (a *Actor) Stop() {
	select {
	case <-a.stop:
	default:
		close(a.stop)
	}
	<-a.done
}

func (a *Actor) dispatch(msg message) {
	telemetry.ActorMailboxDepth.WithLabelValues(a.gameID).Set(float64(len(a.inbox)))
	start := time.Now()
	label := msgKindLabel(msg.kind)

	switch msg.kind {
	case msgGetState:
		msg.reply <- Response{State: a.state.clone()}
	case msgGetSnapshot:
		msg.reply <- Response{State: a.state.clone(), Round: a.round, Showdown: a.lastShowdown}
	case msgCreateGame:
		a.handleCreateGame(msg.reply)
	case msgStartHand:
		a.handleStartHand(msg.reply)
	case msgPlayerAction:
		a.handlePlayerAction(msg.actionPlayerID, msg.action, msg.reply)
	case msgEndGame:
		a.handleEndGame()
		msg.reply <- Response{State: a.state.clone()}
	default:
		a.log.Warnf("game %s: unknown inbox message kind %d", a.gameID, msg.kind)
	}

	telemetry.ActorHandlerDuration.WithLabelValues(label).Observe(time.Since(start).Seconds())
}

func msgKindLabel(k msgKind) string {
	switch k {
	case msgGetState:
		return "get_state"
	case msgGetSnapshot:
		return "get_snapshot"
	case msgCreateGame:
		return "create_game"
	case msgStartHand:
		return "start_hand"
	case msgPlayerAction:
		return "player_action"
	case msgEndGame:
		return "end_game"
	default:
		return "unknown"
	}
}

// ask sends a message and blocks for its reply, honoring ctx
// cancellation on the send side only (the handler itself always runs to
// completion once dequeued).
func (a *Actor) ask(ctx context.Context, msg message) (Response, error) {
	msg.reply = make(chan Response, 1)
	select {
	case a.inbox <- msg:
	case <-ctx.Done():
		return Response{}, ctx.Err()
	}
	select {
	case resp := <-msg.reply:
		return resp, resp.Err
	case <-ctx.Done():
		return Response{}, ctx.Err()
	}
}

// GetState returns the current authoritative state.
func (a *Actor) GetState(ctx context.Context) (State, error) {
	resp, err := a.ask(ctx, message{kind: msgGetState})
	return resp.State, err
}

// CaptureSnapshot returns the State, live betting Round (if any), and
// last showdown result together, everything a caller needs to build a
// per-recipient filtered view (internal/broadcast.BuildView) without
// leaking hole cards. Like GetState it is not a mutation, but it still
// round-trips through the inbox so it observes a consistent,
// non-torn combination of the three fields.
func (a *Actor) CaptureSnapshot(ctx context.Context) (Snapshot, error) {
	resp, err := a.ask(ctx, message{kind: msgGetSnapshot})
	return Snapshot{State: resp.State, Round: resp.Round, Showdown: resp.Showdown}, err
}

// CreateGame persists the tournament_created event that seeds a new
// game's event log (spec.md §4.8) and broadcasts the initial waiting
// snapshot. Call this once, before the first StartHand; it is a no-op
// error if the game has already started its first hand.
func (a *Actor) CreateGame(ctx context.Context) (State, error) {
	resp, err := a.ask(ctx, message{kind: msgCreateGame})
	return resp.State, err
}

// StartHand begins a new hand (or marks the tournament complete if only
// one player remains with chips).
func (a *Actor) StartHand(ctx context.Context) (State, error) {
	resp, err := a.ask(ctx, message{kind: msgStartHand})
	return resp.State, err
}

// PlayerAction submits a player's action to the current betting round.
func (a *Actor) PlayerAction(ctx context.Context, playerID string, action betting.Action) (State, error) {
	resp, err := a.ask(ctx, message{kind: msgPlayerAction, actionPlayerID: playerID, action: action})
	return resp.State, err
}

// EndGame terminates the game, broadcasting a final snapshot.
func (a *Actor) EndGame(ctx context.Context) error {
	_, err := a.ask(ctx, message{kind: msgEndGame})
	return err
}

// persist appends eventType to the event store, returning ErrPersistFailed
// if the store errors. The in-memory mutation has already happened by the
// time this is called; callers that need the "persisted events match
// in-memory state" invariant capture a mutationSnapshot beforehand and
// call restore on failure.
func (a *Actor) persist(eventType string, payload any) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	seq, err := a.events.Append(ctx, a.gameID, eventType, payload)
	if err != nil {
		a.log.Errorf("game %s: persist %s failed: %v", a.gameID, eventType, err)
		return ErrPersistFailed
	}
	telemetry.EventsAppendedTotal.WithLabelValues(eventType).Inc()
	a.lastSequence = seq
	a.maybeSnapshot(ctx, eventType == "hand_complete")
	return nil
}

// maybeSnapshot saves the actor's current state once snapshotInterval
// persisted events have accumulated since the last one, or unconditionally
// at a hand boundary, bounding how much of the event log a recovery must
// replay (spec.md §4.8). A sink that doesn't implement SnapshotStore, or
// an interval of 0 outside hand boundaries, disables this entirely; a
// failed snapshot save is logged and never fails the hand-lifecycle
// transition that triggered it.
func (a *Actor) maybeSnapshot(ctx context.Context, handBoundary bool) {
	sink, ok := a.events.(SnapshotStore)
	if !ok {
		return
	}
	a.eventsSinceSnapshot++
	if !handBoundary && (a.snapshotInterval <= 0 || a.eventsSinceSnapshot < a.snapshotInterval) {
		return
	}
	a.eventsSinceSnapshot = 0

	data, hash, err := a.Snapshot().Marshal()
	if err != nil {
		a.log.Errorf("game %s: marshal snapshot: %v", a.gameID, err)
		return
	}
	if err := sink.SaveGameSnapshot(ctx, a.gameID, a.lastSequence, data, hash); err != nil {
		a.log.Errorf("game %s: save snapshot at sequence %d failed: %v", a.gameID, a.lastSequence, err)
		return
	}
	telemetry.SnapshotsTakenTotal.Inc()
}

// mutationSnapshot captures every field a hand-lifecycle handler mutates,
// so a failed persist can roll the actor back to exactly the state it was
// in before the handler ran.
type mutationSnapshot struct {
	state          State
	round          *betting.Round
	originalRound  *betting.Round
	handCommitted  map[string]int
	streetBaseline map[string]int
	handFolded     map[string]bool
	handAllIn      map[string]bool
	lastShowdown   []ShowdownResult
}

func (a *Actor) snapshotForRollback() mutationSnapshot {
	return mutationSnapshot{
		state:          a.state.clone(),
		round:          a.round,
		originalRound:  a.originalRound,
		handCommitted:  cloneIntMap(a.handCommitted),
		streetBaseline: cloneIntMap(a.streetBaseline),
		handFolded:     cloneBoolSet(a.handFolded),
		handAllIn:      cloneBoolSet(a.handAllIn),
		lastShowdown:   a.lastShowdown,
	}
}

func (a *Actor) restore(s mutationSnapshot) {
	a.state = s.state
	a.round = s.round
	a.originalRound = s.originalRound
	a.handCommitted = s.handCommitted
	a.streetBaseline = s.streetBaseline
	a.handFolded = s.handFolded
	a.handAllIn = s.handAllIn
	a.lastShowdown = s.lastShowdown
}

func (a *Actor) broadcastSnapshot(showdown []ShowdownResult) {
	topic := "state"
	if len(showdown) > 0 {
		topic = "showdown"
	}
	telemetry.BroadcastsSentTotal.WithLabelValues(topic).Inc()
	a.bcast.Broadcast(Snapshot{State: a.state.clone(), Round: a.round, Showdown: showdown})
}

// handleEndGame marks the game terminated and persists a game_ended
// marker so the supervisor's boot-time recovery scan (eventlog.Store.
// IsTerminal) never resurrects a game that was deliberately ended,
// whether via an explicit EndGame call or process shutdown through the
// supervisor's Shutdown, which ends every game this way. Stop and ctx
// cancellation do not route here. A failed persist is only logged: an
// already-ended game has no further mutations for it to protect.
func (a *Actor) handleEndGame() {
	if a.state.Phase == GameEnded {
		return
	}
	a.state.Phase = GameEnded
	if err := a.persist("game_ended", map[string]any{"game_id": a.gameID}); err != nil {
		a.log.Errorf("game %s: persist game_ended failed: %v", a.gameID, err)
	}
	a.broadcastSnapshot(nil)
	a.bcast.BroadcastEnded(a.gameID)
}
