package analytics

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemorySink_RecordsInOrder(t *testing.T) {
	sink := NewMemorySink()
	ctx := context.Background()

	require.NoError(t, sink.RecordHand(ctx, HandRecord{GameID: "g1", HandNumber: 1, Pot: 100}))
	require.NoError(t, sink.RecordHand(ctx, HandRecord{GameID: "g1", HandNumber: 2, Pot: 200}))

	records := sink.Records()
	require.Len(t, records, 2)
	assert.Equal(t, 1, records[0].HandNumber)
	assert.Equal(t, 2, records[1].HandNumber)
}

func TestNopSink_NeverErrors(t *testing.T) {
	var sink NopSink
	assert.NoError(t, sink.RecordHand(context.Background(), HandRecord{}))
}
