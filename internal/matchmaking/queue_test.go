package matchmaking

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shortdeck-engine/internal/broadcast"
	"shortdeck-engine/internal/telemetry"
	"shortdeck-engine/internal/token"
)

type fakeCreator struct {
	mu       sync.Mutex
	calls    [][]PlayerSeed
	nextID   int
	failNext bool
}

func (f *fakeCreator) CreateGame(_ context.Context, players []PlayerSeed) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, players)
	if f.failNext {
		f.failNext = false
		return "", assert.AnError
	}
	f.nextID++
	return "game-" + itoa(f.nextID), nil
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	digits := ""
	for n > 0 {
		digits = string(rune('0'+n%10)) + digits
		n /= 10
	}
	return digits
}

func newTestQueue(t *testing.T, playersPerGame int, creator GameCreator) (*Queue, *broadcast.PubSub) {
	t.Helper()
	pubsub := broadcast.NewPubSub()
	signer := token.NewSigner([]byte("test-secret"))
	q := NewQueue(playersPerGame, 1000, creator, signer, pubsub, telemetry.Disabled())
	go q.Run(context.Background())
	t.Cleanup(q.Stop)
	return q, pubsub
}

func TestQueue_JoinBelowThresholdStaysQueued(t *testing.T) {
	creator := &fakeCreator{}
	q, _ := newTestQueue(t, 3, creator)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	require.NoError(t, q.Join(ctx, "alice"))
	require.NoError(t, q.Join(ctx, "bob"))

	status, err := q.Status(ctx)
	require.NoError(t, err)
	assert.Len(t, status.Waiters, 2)
	assert.Empty(t, creator.calls)
}

func TestQueue_JoinAtThresholdCreatesGameAndPublishesToken(t *testing.T) {
	creator := &fakeCreator{}
	q, pubsub := newTestQueue(t, 2, creator)

	sub := pubsub.Subscribe(broadcast.PlayerTopic("alice"))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	require.NoError(t, q.Join(ctx, "alice"))
	require.NoError(t, q.Join(ctx, "bob"))

	select {
	case msg := <-sub:
		ready, ok := msg.(gameReadyEvent)
		require.True(t, ok)
		assert.Equal(t, "game-1", ready.GameID)
		assert.NotEmpty(t, ready.SessionToken)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for game_ready")
	}

	status, err := q.Status(ctx)
	require.NoError(t, err)
	assert.Empty(t, status.Waiters)
}

func TestQueue_JoinRejectsDuplicate(t *testing.T) {
	creator := &fakeCreator{}
	q, _ := newTestQueue(t, 4, creator)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	require.NoError(t, q.Join(ctx, "alice"))
	err := q.Join(ctx, "alice")
	assert.ErrorIs(t, err, ErrAlreadyQueued)
}

func TestQueue_LeaveRemovesWaiter(t *testing.T) {
	creator := &fakeCreator{}
	q, _ := newTestQueue(t, 4, creator)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	require.NoError(t, q.Join(ctx, "alice"))
	require.NoError(t, q.Leave(ctx, "alice"))

	status, err := q.Status(ctx)
	require.NoError(t, err)
	assert.Empty(t, status.Waiters)

	err = q.Leave(ctx, "alice")
	assert.ErrorIs(t, err, ErrNotQueued)
}

func TestQueue_FailedGameCreationKeepsWaiters(t *testing.T) {
	creator := &fakeCreator{failNext: true}
	q, _ := newTestQueue(t, 2, creator)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	require.NoError(t, q.Join(ctx, "alice"))
	require.NoError(t, q.Join(ctx, "bob"))

	status, err := q.Status(ctx)
	require.NoError(t, err)
	assert.Len(t, status.Waiters, 2, "waiters stay queued when creation fails")
}
