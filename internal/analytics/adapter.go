package analytics

import (
	"context"
	"time"

	"shortdeck-engine/internal/game"
	"shortdeck-engine/internal/telemetry"
)

// GameSink adapts a HandHistorySink (which can fail and is addressed by
// error) into game.HandHistorySink (fire-and-forget, no return value):
// the actor's hand-lifecycle handlers never gate on analytics, so any
// error here is only logged.
type GameSink struct {
	sink HandHistorySink
	log  telemetry.Logger
}

// NewGameSink wires sink behind the game package's narrower interface.
func NewGameSink(sink HandHistorySink, log telemetry.Logger) *GameSink {
	return &GameSink{sink: sink, log: log}
}

// RecordHand implements game.HandHistorySink.
func (g *GameSink) RecordHand(ctx context.Context, rec game.HandRecord) {
	err := g.sink.RecordHand(ctx, HandRecord{
		GameID:        rec.GameID,
		HandNumber:    rec.HandNumber,
		Pot:           rec.Pot,
		StreetReached: rec.StreetReached,
		Winners:       rec.Winners,
		Descriptions:  rec.Descriptions,
		FoldWin:       rec.FoldWin,
		Timestamp:     time.Now(),
	})
	if err != nil {
		g.log.Errorf("analytics: record hand %s/%d: %v", rec.GameID, rec.HandNumber, err)
	}
}

var _ game.HandHistorySink = (*GameSink)(nil)
