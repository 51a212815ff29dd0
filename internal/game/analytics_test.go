package game

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"shortdeck-engine/internal/betting"
)

type fakeHandSink struct {
	mu      sync.Mutex
	records []HandRecord
}

func (f *fakeHandSink) RecordHand(_ context.Context, rec HandRecord) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, rec)
}

func (f *fakeHandSink) all() []HandRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]HandRecord(nil), f.records...)
}

func TestAnalyticsSink_RecordsFoldWin(t *testing.T) {
	a, _, _ := newTestActor(t, twoPlayers(1000, 1000), 10, 20)
	sink := &fakeHandSink{}
	a.SetAnalyticsSink(sink)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	state, err := a.StartHand(ctx)
	require.NoError(t, err)

	active := state.Players[0].ID
	if state.ButtonSeat != state.Players[0].Seat {
		active = state.Players[1].ID
	}
	_, err = a.PlayerAction(ctx, active, betting.Action{Kind: betting.Fold})
	require.NoError(t, err)

	require.Eventually(t, func() bool { return len(sink.all()) == 1 }, time.Second, 10*time.Millisecond)
	records := sink.all()
	require.Len(t, records, 1)
	require.True(t, records[0].FoldWin)
}
