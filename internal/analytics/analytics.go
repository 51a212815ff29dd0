// Package analytics implements the hand-history sink described in
// SPEC_FULL.md §5.1: a fire-and-forget recorder the actor writes to
// after every completed hand, never on the critical broadcast/persist
// path.
package analytics

import (
	"context"
	"time"
)

// HandRecord summarizes one completed hand for downstream BI, mirroring
// the shape of the teacher's HandAnalyticsEvent reduced to what this
// engine actually tracks.
type HandRecord struct {
	GameID        string
	HandNumber    int
	Pot           int
	StreetReached string
	Winners       []string
	Descriptions  map[string]string
	FoldWin       bool
	Timestamp     time.Time
}

// HandHistorySink accepts completed-hand summaries. Implementations
// must not block the caller on anything slower than a local enqueue;
// RecordHand's context is for cancellation, not for making the actor
// wait on a warehouse round trip.
type HandHistorySink interface {
	RecordHand(ctx context.Context, rec HandRecord) error
}

// NopSink discards every record; used where no analytics backend is
// configured but an actor still needs a non-nil sink to call.
type NopSink struct{}

// RecordHand implements HandHistorySink by doing nothing.
func (NopSink) RecordHand(context.Context, HandRecord) error { return nil }
