package game

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shortdeck-engine/internal/betting"
	"shortdeck-engine/internal/telemetry"
	"shortdeck-engine/pkg/rng"
)

// fakeEventStore records every appended event in memory.
type fakeEventStore struct {
	mu     sync.Mutex
	events []string
}

func (f *fakeEventStore) Append(_ context.Context, _ string, eventType string, _ any) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, eventType)
	return uint64(len(f.events)), nil
}

func (f *fakeEventStore) types() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.events...)
}

// fakeBroadcaster records the most recent snapshot and whether the game
// was marked ended, without any real pub/sub fan-out.
type fakeBroadcaster struct {
	mu       sync.Mutex
	last     Snapshot
	ended    bool
	endedIDs []string
}

func (f *fakeBroadcaster) Broadcast(s Snapshot) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.last = s
}

func (f *fakeBroadcaster) BroadcastEnded(gameID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ended = true
	f.endedIDs = append(f.endedIDs, gameID)
}

func (f *fakeBroadcaster) snapshot() Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.last
}

func newTestActor(t *testing.T, players []Player, smallBlind, bigBlind int) (*Actor, *fakeEventStore, *fakeBroadcaster) {
	t.Helper()
	source, err := rng.NewSystem(nil)
	require.NoError(t, err)

	events := &fakeEventStore{}
	bcast := &fakeBroadcaster{}
	a := &Actor{
		gameID: "game-1",
		inbox:  make(chan message, 32),
		state:  NewState("game-1", players, smallBlind, bigBlind),
		rng:    source,
		events: events,
		bcast:  bcast,
		log:    telemetry.Disabled(),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	go a.Run(context.Background())
	t.Cleanup(a.Stop)
	return a, events, bcast
}

func twoPlayers(chipsA, chipsB int) []Player {
	return []Player{
		{ID: "alice", Seat: 0, Chips: chipsA},
		{ID: "bob", Seat: 1, Chips: chipsB},
	}
}

func threePlayers(chipsA, chipsB, chipsC int) []Player {
	return []Player{
		{ID: "alice", Seat: 0, Chips: chipsA},
		{ID: "bob", Seat: 1, Chips: chipsB},
		{ID: "carol", Seat: 2, Chips: chipsC},
	}
}

func TestStartHandDealsHoleCardsAndPostsBlinds(t *testing.T) {
	a, events, bcast := newTestActor(t, twoPlayers(1000, 1000), 10, 20)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	state, err := a.StartHand(ctx)
	require.NoError(t, err)

	assert.Equal(t, PreflopBetting, state.Phase)
	assert.Equal(t, 1, state.HandNumber)
	for _, p := range state.Players {
		assert.Len(t, p.HoleCards, 2)
	}
	assert.Equal(t, 30, state.Pot, "small blind 10 + big blind 20")
	assert.Contains(t, events.types(), "hand_started")
	assert.Equal(t, PreflopBetting, bcast.snapshot().State.Phase)
}

func TestPlayerActionRejectsUnknownPlayer(t *testing.T) {
	a, _, _ := newTestActor(t, twoPlayers(1000, 1000), 10, 20)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err := a.StartHand(ctx)
	require.NoError(t, err)

	_, err = a.PlayerAction(ctx, "eve", betting.Action{Kind: betting.Fold})
	assert.ErrorIs(t, err, ErrPlayerNotFound)
}

func TestHeadsUpFoldAwardsPotWithoutShowdown(t *testing.T) {
	a, events, bcast := newTestActor(t, twoPlayers(1000, 1000), 10, 20)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	state, err := a.StartHand(ctx)
	require.NoError(t, err)

	active := state.Players[0].ID
	if state.ButtonSeat != state.Players[0].Seat {
		active = state.Players[1].ID
	}

	state, err = a.PlayerAction(ctx, active, betting.Action{Kind: betting.Fold})
	require.NoError(t, err)

	assert.Equal(t, HandComplete, state.Phase)
	assert.Equal(t, 0, state.Pot)
	assert.Equal(t, 2000, totalChips(state), "no chips created or destroyed by a fold win")
	assert.Contains(t, events.types(), "hand_complete")
	assert.Nil(t, bcast.snapshot().Showdown, "fold wins never reveal hole cards")
}

func TestRunToShowdownConservesChipsAndEndsHand(t *testing.T) {
	a, events, bcast := newTestActor(t, twoPlayers(1000, 1000), 10, 20)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	state, err := a.StartHand(ctx)
	require.NoError(t, err)

	for state.Phase != HandComplete && state.Phase != TournamentComplete {
		active, found := activePlayer(t, a, ctx)
		require.True(t, found, "a betting round with players remaining always has an active player")
		var act betting.Action
		if amountToCall(t, a, ctx, active) > 0 {
			act = betting.Action{Kind: betting.Call}
		} else {
			act = betting.Action{Kind: betting.Check}
		}
		state, err = a.PlayerAction(ctx, active, act)
		require.NoError(t, err)
	}

	assert.Equal(t, HandComplete, state.Phase)
	assert.Equal(t, 0, state.Pot)
	assert.Equal(t, 2000, totalChips(state))
	assert.Contains(t, events.types(), "hand_complete")
	assert.Len(t, state.CommunityCards, 5)
	if snap := bcast.snapshot(); len(snap.Showdown) > 0 {
		for _, result := range snap.Showdown {
			assert.NotEmpty(t, result.Winners)
			assert.NotEmpty(t, result.HandDescriptions)
		}
	}
}

func TestTournamentCompletesWhenOnePlayerHoldsAllChips(t *testing.T) {
	a, events, _ := newTestActor(t, twoPlayers(1, 1999), 10, 20)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	state, err := a.StartHand(ctx)
	require.NoError(t, err)
	require.Equal(t, PreflopBetting, state.Phase)

	for state.Phase == PreflopBetting || state.Phase == FlopBetting || state.Phase == TurnBetting || state.Phase == RiverBetting {
		active, found := activePlayer(t, a, ctx)
		require.True(t, found)
		var act betting.Action
		owe := amountToCall(t, a, ctx, active)
		if owe > 0 {
			act = betting.Action{Kind: betting.Call}
		} else {
			act = betting.Action{Kind: betting.Check}
		}
		state, err = a.PlayerAction(ctx, active, act)
		require.NoError(t, err)
	}

	state, err = a.StartHand(ctx)
	require.NoError(t, err)
	if state.Phase != TournamentComplete {
		t.Skip("hand did not bust the short stack this run; outcome depends on dealt cards")
	}
	assert.Equal(t, 1, state.activePlayerCount())
	assert.Contains(t, events.types(), "tournament_completed")
}

func TestEndGameBroadcastsEnded(t *testing.T) {
	a, _, bcast := newTestActor(t, twoPlayers(1000, 1000), 10, 20)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	require.NoError(t, a.EndGame(ctx))

	state, err := a.GetState(ctx)
	require.NoError(t, err)
	assert.Equal(t, GameEnded, state.Phase)

	deadline := time.After(time.Second)
	for {
		if bcastEnded(bcast) {
			break
		}
		select {
		case <-deadline:
			t.Fatal("BroadcastEnded was never called")
		case <-time.After(time.Millisecond):
		}
	}
}

func bcastEnded(b *fakeBroadcaster) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.ended
}

func totalChips(s State) int {
	total := s.Pot
	for _, p := range s.Players {
		total += p.Chips
	}
	return total
}

// activePlayer and amountToCall read the actor's current round directly.
// This is safe without extra locking because every prior mutation to
// a.round happened in the actor goroutine strictly before it sent the
// reply these tests already received from a.StartHand/a.PlayerAction,
// and a channel send/receive pair is itself a happens-before edge.
func activePlayer(t *testing.T, a *Actor, _ context.Context) (string, bool) {
	t.Helper()
	if a.round == nil {
		return "", false
	}
	return a.round.ActivePlayer()
}

func amountToCall(t *testing.T, a *Actor, _ context.Context, playerID string) int {
	t.Helper()
	if a.round == nil {
		return 0
	}
	return a.round.AmountToCall(playerID)
}
