package eventlog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_AppendAssignsDenseSequence(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	seq1, err := store.Append(ctx, "game-1", "tournament_created", map[string]any{"players": []string{"a", "b"}})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), seq1)

	seq2, err := store.Append(ctx, "game-1", "hand_started", map[string]any{"hand_number": 1})
	require.NoError(t, err)
	assert.Equal(t, uint64(2), seq2)

	seq1Other, err := store.Append(ctx, "game-2", "tournament_created", map[string]any{"players": []string{"c"}})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), seq1Other, "sequences are scoped per game")
}

func TestMemoryStore_EventsFiltersAndOrders(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := store.Append(ctx, "game-1", "player_called", map[string]any{"i": i})
		require.NoError(t, err)
	}

	events, err := store.Events(ctx, "game-1", 2)
	require.NoError(t, err)
	require.Len(t, events, 3)
	for i, e := range events {
		assert.Equal(t, uint64(i+3), e.Sequence)
	}
}

func TestMemoryStore_SnapshotKeepsHighestSequence(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.SaveSnapshot(ctx, Snapshot{GameID: "game-1", Sequence: 5}))
	require.NoError(t, store.SaveSnapshot(ctx, Snapshot{GameID: "game-1", Sequence: 3}))

	snap, err := store.LatestSnapshot(ctx, "game-1")
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, uint64(5), snap.Sequence)
}

func TestMemoryStore_IsTerminal(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	terminal, err := store.IsTerminal(ctx, "game-1")
	require.NoError(t, err)
	assert.False(t, terminal, "no events yet")

	_, err = store.Append(ctx, "game-1", "tournament_created", map[string]any{})
	require.NoError(t, err)
	terminal, err = store.IsTerminal(ctx, "game-1")
	require.NoError(t, err)
	assert.False(t, terminal)

	_, err = store.Append(ctx, "game-1", "tournament_ended", map[string]any{})
	require.NoError(t, err)
	terminal, err = store.IsTerminal(ctx, "game-1")
	require.NoError(t, err)
	assert.True(t, terminal)
}

func TestMemoryStore_GamesListsAllKnownIDs(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	_, _ = store.Append(ctx, "game-b", "tournament_created", map[string]any{})
	_, _ = store.Append(ctx, "game-a", "tournament_created", map[string]any{})

	ids, err := store.Games(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"game-a", "game-b"}, ids)
}
