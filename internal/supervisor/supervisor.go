// Package supervisor implements the one-for-one game supervisor of
// spec.md §4.7: it starts new game actors, restarts crashed ones by
// replaying their persisted event log, and owns the game_id → actor
// registry other packages look games up through.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"shortdeck-engine/internal/eventlog"
	"shortdeck-engine/internal/game"
	"shortdeck-engine/internal/matchmaking"
	"shortdeck-engine/internal/telemetry"
)

// ErrGameNotFound is returned when a game_id has no registered actor.
var ErrGameNotFound = errors.New("supervisor: game_not_found")

// handle bundles a running actor with the means to stop it.
type handle struct {
	actor  *game.Actor
	cancel context.CancelFunc
}

// Supervisor owns every live game actor in this process. It satisfies
// matchmaking.GameCreator.
type Supervisor struct {
	mu       sync.Mutex
	registry map[string]*handle

	store         eventlog.Store
	bcast         game.Broadcaster
	analyticsSink game.HandHistorySink
	log           telemetry.Logger

	smallBlind       int
	bigBlind         int
	snapshotInterval int
}

// New constructs a Supervisor with no games running yet. snapshotInterval
// is the number of persisted events between automatic snapshots (0
// disables interval-based snapshotting; hand-boundary snapshots still
// happen regardless, per game.Actor.SetSnapshotInterval).
func New(store eventlog.Store, bcast game.Broadcaster, analyticsSink game.HandHistorySink, smallBlind, bigBlind, snapshotInterval int, log telemetry.Logger) *Supervisor {
	return &Supervisor{
		registry:         make(map[string]*handle),
		store:            store,
		bcast:            bcast,
		analyticsSink:    analyticsSink,
		smallBlind:       smallBlind,
		bigBlind:         bigBlind,
		snapshotInterval: snapshotInterval,
		log:              log,
	}
}

// CreateGame seats players in a freshly generated game_id, persists its
// tournament_created event, and starts its actor. It satisfies
// matchmaking.GameCreator.
func (s *Supervisor) CreateGame(ctx context.Context, players []matchmaking.PlayerSeed) (string, error) {
	gameID := uuid.NewString()

	seated := make([]game.Player, len(players))
	for i, p := range players {
		seated[i] = game.Player{ID: p.Name, Chips: p.Chips, Seat: i}
	}
	state := game.NewState(gameID, seated, s.smallBlind, s.bigBlind)

	actor, err := game.NewActor(state, s.store, s.bcast, s.log)
	if err != nil {
		return "", fmt.Errorf("supervisor: new actor: %w", err)
	}
	if s.analyticsSink != nil {
		actor.SetAnalyticsSink(s.analyticsSink)
	}
	actor.SetSnapshotInterval(s.snapshotInterval)

	s.start(gameID, actor)

	if _, err := actor.CreateGame(ctx); err != nil {
		s.remove(gameID)
		return "", fmt.Errorf("supervisor: create game %s: %w", gameID, err)
	}
	return gameID, nil
}

// Lookup returns the running actor for gameID, if any.
func (s *Supervisor) Lookup(gameID string) (*game.Actor, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.registry[gameID]
	if !ok {
		return nil, false
	}
	return h.actor, true
}

// EndGame terminates gameID's actor and removes it from the registry.
func (s *Supervisor) EndGame(ctx context.Context, gameID string) error {
	actor, ok := s.Lookup(gameID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrGameNotFound, gameID)
	}
	err := actor.EndGame(ctx)
	s.remove(gameID)
	return err
}

// Shutdown gracefully ends every running game concurrently, waiting for
// all of them via errgroup, matching the teacher's signal-handling
// shutdown loop in cmd/game-server/main.go extended to many actors.
func (s *Supervisor) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	ids := make([]string, 0, len(s.registry))
	for id := range s.registry {
		ids = append(ids, id)
	}
	s.mu.Unlock()

	group, gctx := errgroup.WithContext(ctx)
	for _, id := range ids {
		id := id
		group.Go(func() error {
			return s.EndGame(gctx, id)
		})
	}
	return group.Wait()
}

func (s *Supervisor) start(gameID string, actor *game.Actor) {
	runCtx, cancel := context.WithCancel(context.Background())
	actor.SetCrashHandler(func(recovered any) {
		s.log.Errorf("supervisor: game %s crashed: %v; recovering", gameID, recovered)
		s.recover(gameID)
	})

	s.mu.Lock()
	s.registry[gameID] = &handle{actor: actor, cancel: cancel}
	s.mu.Unlock()

	telemetry.GamesActiveGauge.Inc()
	go actor.Run(runCtx)
}

func (s *Supervisor) remove(gameID string) {
	s.mu.Lock()
	h, ok := s.registry[gameID]
	if ok {
		delete(s.registry, gameID)
	}
	s.mu.Unlock()
	if ok {
		h.cancel()
		telemetry.GamesActiveGauge.Dec()
	}
}

// recover rebuilds gameID's actor from its persisted event log (latest
// snapshot, if any, plus the tail of events since) and restarts it
// in-place in the registry, per spec.md §4.8's recovery procedure.
func (s *Supervisor) recover(gameID string) {
	ctx := context.Background()

	s.mu.Lock()
	delete(s.registry, gameID)
	s.mu.Unlock()
	telemetry.GamesActiveGauge.Dec()

	actor, err := s.rebuildActor(ctx, gameID)
	if err != nil {
		s.log.Errorf("supervisor: recover game %s: %v", gameID, err)
		return
	}
	if s.analyticsSink != nil {
		actor.SetAnalyticsSink(s.analyticsSink)
	}
	s.start(gameID, actor)
}

func (s *Supervisor) rebuildActor(ctx context.Context, gameID string) (*game.Actor, error) {
	snap, err := s.store.LatestSnapshot(ctx, gameID)
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}

	var afterSeq uint64
	var actor *game.Actor

	if snap != nil {
		if !game.VerifyIntegrity(snap.State, snap.IntegrityHash) {
			return nil, fmt.Errorf("supervisor: snapshot for %s failed integrity check at sequence %d", gameID, snap.Sequence)
		}
		var state game.ActorSnapshot
		if err := state.UnmarshalFrom(snap.State); err != nil {
			return nil, fmt.Errorf("decode snapshot: %w", err)
		}
		actor, err = game.RestoreFromSnapshot(state, s.store, s.bcast, s.log)
		if err != nil {
			return nil, err
		}
		afterSeq = snap.Sequence
	}

	events, err := s.store.Events(ctx, gameID, afterSeq)
	if err != nil {
		return nil, fmt.Errorf("load events: %w", err)
	}
	recoveryEvents := make([]game.RecoveryEvent, 0, len(events))
	for _, e := range events {
		re, err := e.RecoveryEvent()
		if err != nil {
			return nil, fmt.Errorf("decode event %d: %w", e.Sequence, err)
		}
		recoveryEvents = append(recoveryEvents, re)
	}

	if actor == nil {
		actor, err = game.Reconstruct(gameID, recoveryEvents, s.store, s.bcast, s.log)
		if err != nil {
			return nil, err
		}
	} else if err := actor.ReplayEvents(recoveryEvents); err != nil {
		return nil, err
	}
	actor.SetSnapshotInterval(s.snapshotInterval)
	return actor, nil
}

// RecoverAll scans the store for every game with events but no terminal
// marker and restarts each one, the boot-time recovery pass spec.md
// §4.8 describes. Called once at process startup.
func (s *Supervisor) RecoverAll(ctx context.Context) error {
	ids, err := s.store.Games(ctx)
	if err != nil {
		return fmt.Errorf("supervisor: list games: %w", err)
	}
	for _, id := range ids {
		terminal, err := s.store.IsTerminal(ctx, id)
		if err != nil {
			return fmt.Errorf("supervisor: check terminal %s: %w", id, err)
		}
		if terminal {
			continue
		}
		actor, err := s.rebuildActor(ctx, id)
		if err != nil {
			s.log.Errorf("supervisor: recover game %s at boot: %v", id, err)
			continue
		}
		if s.analyticsSink != nil {
			actor.SetAnalyticsSink(s.analyticsSink)
		}
		s.start(id, actor)
	}
	return nil
}
