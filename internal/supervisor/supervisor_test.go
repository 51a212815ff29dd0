package supervisor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shortdeck-engine/internal/analytics"
	"shortdeck-engine/internal/betting"
	"shortdeck-engine/internal/broadcast"
	"shortdeck-engine/internal/eventlog"
	"shortdeck-engine/internal/game"
	"shortdeck-engine/internal/matchmaking"
	"shortdeck-engine/internal/telemetry"
)

func newTestSupervisor(snapshotInterval int) (*Supervisor, eventlog.Store) {
	store := eventlog.NewMemoryStore()
	bcast := broadcast.NewBroadcaster(broadcast.NewPubSub(), telemetry.Disabled())
	sink := analytics.NewGameSink(analytics.NopSink{}, telemetry.Disabled())
	return New(store, bcast, sink, 10, 20, snapshotInterval, telemetry.Disabled()), store
}

func TestSupervisor_CreateGameStartsAndRegistersActor(t *testing.T) {
	sup, _ := newTestSupervisor(0)
	t.Cleanup(func() { _ = sup.Shutdown(context.Background()) })

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	gameID, err := sup.CreateGame(ctx, []matchmaking.PlayerSeed{
		{Name: "alice", Chips: 1000},
		{Name: "bob", Chips: 1000},
	})
	require.NoError(t, err)
	require.NotEmpty(t, gameID)

	actor, ok := sup.Lookup(gameID)
	require.True(t, ok)
	state, err := actor.GetState(ctx)
	require.NoError(t, err)
	assert.Equal(t, gameID, state.GameID)
	assert.Len(t, state.Players, 2)
}

func TestSupervisor_EndGameRemovesFromRegistry(t *testing.T) {
	sup, _ := newTestSupervisor(0)
	t.Cleanup(func() { _ = sup.Shutdown(context.Background()) })

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	gameID, err := sup.CreateGame(ctx, []matchmaking.PlayerSeed{
		{Name: "alice", Chips: 1000},
		{Name: "bob", Chips: 1000},
	})
	require.NoError(t, err)

	require.NoError(t, sup.EndGame(ctx, gameID))
	_, ok := sup.Lookup(gameID)
	assert.False(t, ok)

	err = sup.EndGame(ctx, gameID)
	assert.ErrorIs(t, err, ErrGameNotFound)
}

func TestSupervisor_RecoverAllRebuildsAnInFlightGame(t *testing.T) {
	sup, store := newTestSupervisor(1)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	gameID, err := sup.CreateGame(ctx, []matchmaking.PlayerSeed{
		{Name: "alice", Chips: 1000},
		{Name: "bob", Chips: 1000},
	})
	require.NoError(t, err)

	actor, ok := sup.Lookup(gameID)
	require.True(t, ok)
	state, err := actor.StartHand(ctx)
	require.NoError(t, err)

	active := state.Players[0].ID
	if state.ButtonSeat != state.Players[0].Seat {
		active = state.Players[1].ID
	}
	_, err = actor.PlayerAction(ctx, active, betting.Action{Kind: betting.Fold})
	require.NoError(t, err)

	// Simulate the process crashing: drop every live actor without
	// persisting a terminal marker, then recover purely from the store.
	sup.remove(gameID)
	_, ok = sup.Lookup(gameID)
	require.False(t, ok)

	recovered, recStore := New(store, broadcast.NewBroadcaster(broadcast.NewPubSub(), telemetry.Disabled()), nil, 10, 20, 1, telemetry.Disabled()), store
	_ = recStore
	require.NoError(t, recovered.RecoverAll(context.Background()))

	actor, ok = recovered.Lookup(gameID)
	require.True(t, ok)
	rebuiltState, err := actor.GetState(context.Background())
	require.NoError(t, err)
	assert.Equal(t, game.HandComplete, rebuiltState.Phase)

	_ = recovered.Shutdown(context.Background())
}
