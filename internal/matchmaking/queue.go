// Package matchmaking implements the global waiter queue of spec.md
// §4.7: a single actor, the same message-passing shape as
// internal/game.Actor, holding an ordered list of waiters and peeling
// off players_per_game of them into a new game once enough have joined.
package matchmaking

import (
	"context"
	"time"

	"shortdeck-engine/internal/broadcast"
	"shortdeck-engine/internal/telemetry"
	"shortdeck-engine/internal/token"
)

// PlayerSeed is what the queue hands the supervisor to seat a new game.
type PlayerSeed struct {
	Name  string
	Chips int
}

// GameCreator is the supervisor's half of game creation: given a seed
// list, start a new game actor and return its id.
type GameCreator interface {
	CreateGame(ctx context.Context, players []PlayerSeed) (gameID string, err error)
}

// Waiter is one queued player.
type Waiter struct {
	Name     string
	JoinedAt time.Time
}

// StatusSnapshot is what Status returns: the current waiter list in
// join order.
type StatusSnapshot struct {
	Waiters []Waiter
}

type msgKind int

const (
	msgJoin msgKind = iota
	msgLeave
	msgStatus
)

type message struct {
	kind  msgKind
	name  string
	reply chan response
}

type response struct {
	status StatusSnapshot
	err    error
}

// Queue is the single global matchmaking actor.
type Queue struct {
	inbox chan message

	waiters        []Waiter
	playersPerGame int
	startingChips  int

	creator GameCreator
	signer  *token.Signer
	pubsub  *broadcast.PubSub
	log     telemetry.Logger

	stop chan struct{}
	done chan struct{}
}

// NewQueue constructs a queue that peels playersPerGame waiters at a
// time, seating each with startingChips, and publishes game_ready
// tokens signed by signer.
func NewQueue(playersPerGame, startingChips int, creator GameCreator, signer *token.Signer, pubsub *broadcast.PubSub, log telemetry.Logger) *Queue {
	return &Queue{
		inbox:          make(chan message, 64),
		playersPerGame: playersPerGame,
		startingChips:  startingChips,
		creator:        creator,
		signer:         signer,
		pubsub:         pubsub,
		log:            log,
		stop:           make(chan struct{}),
		done:           make(chan struct{}),
	}
}

// Run processes the queue's inbox until Stop is called or ctx is
// cancelled.
func (q *Queue) Run(ctx context.Context) {
	defer close(q.done)
	for {
		select {
		case <-ctx.Done():
			return
		case <-q.stop:
			return
		case msg := <-q.inbox:
			q.dispatch(msg)
		}
	}
}

// Stop requests a graceful shutdown and waits for the current message
// to finish processing.
func (q *Queue) Stop() {
	select {
	case <-q.stop:
	default:
		close(q.stop)
	}
	<-q.done
}

func (q *Queue) dispatch(msg message) {
	switch msg.kind {
	case msgJoin:
		q.handleJoin(msg.name, msg.reply)
	case msgLeave:
		q.handleLeave(msg.name, msg.reply)
	case msgStatus:
		msg.reply <- response{status: q.snapshot()}
	}
}

func (q *Queue) ask(ctx context.Context, msg message) (response, error) {
	msg.reply = make(chan response, 1)
	select {
	case q.inbox <- msg:
	case <-ctx.Done():
		return response{}, ctx.Err()
	}
	select {
	case resp := <-msg.reply:
		return resp, resp.err
	case <-ctx.Done():
		return response{}, ctx.Err()
	}
}

// Join enqueues name. If the queue reaches playersPerGame after the
// join, a new game is created immediately and game_ready is published
// to each seated player's private topic.
func (q *Queue) Join(ctx context.Context, name string) error {
	_, err := q.ask(ctx, message{kind: msgJoin, name: name})
	return err
}

// Leave removes name from the queue.
func (q *Queue) Leave(ctx context.Context, name string) error {
	_, err := q.ask(ctx, message{kind: msgLeave, name: name})
	return err
}

// Status returns a snapshot of the current waiter list.
func (q *Queue) Status(ctx context.Context) (StatusSnapshot, error) {
	resp, err := q.ask(ctx, message{kind: msgStatus})
	return resp.status, err
}

func (q *Queue) snapshot() StatusSnapshot {
	return StatusSnapshot{Waiters: append([]Waiter(nil), q.waiters...)}
}

func (q *Queue) handleJoin(name string, reply chan response) {
	for _, w := range q.waiters {
		if w.Name == name {
			reply <- response{err: ErrAlreadyQueued}
			return
		}
	}
	q.waiters = append(q.waiters, Waiter{Name: name, JoinedAt: time.Now()})
	q.publishStatus()

	if len(q.waiters) < q.playersPerGame {
		reply <- response{status: q.snapshot()}
		return
	}

	seated := append([]Waiter(nil), q.waiters[:q.playersPerGame]...)
	seeds := make([]PlayerSeed, len(seated))
	for i, w := range seated {
		seeds[i] = PlayerSeed{Name: w.Name, Chips: q.startingChips}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	gameID, err := q.creator.CreateGame(ctx, seeds)
	if err != nil {
		// Game creation failed; waiters stay queued for the next attempt.
		q.log.Errorf("matchmaking: create game for %d waiters: %v", len(seeds), err)
		reply <- response{status: q.snapshot()}
		return
	}

	q.waiters = q.waiters[q.playersPerGame:]
	q.publishStatus()

	for _, w := range seated {
		tok := q.signer.Issue(token.Claims{GameID: gameID, PlayerName: w.Name})
		q.pubsub.Publish(broadcast.PlayerTopic(w.Name), gameReadyEvent{
			Kind:         "game_ready",
			GameID:       gameID,
			SessionToken: tok,
		})
	}
	reply <- response{status: q.snapshot()}
}

func (q *Queue) handleLeave(name string, reply chan response) {
	for i, w := range q.waiters {
		if w.Name == name {
			q.waiters = append(q.waiters[:i], q.waiters[i+1:]...)
			q.publishStatus()
			reply <- response{status: q.snapshot()}
			return
		}
	}
	reply <- response{err: ErrNotQueued}
}

func (q *Queue) publishStatus() {
	q.pubsub.Publish(broadcast.QueueTopic, queueStatusEvent{
		Kind:    "queue_status",
		Waiting: len(q.waiters),
	})
}

// gameReadyEvent is published on a player's private topic once they're
// seated in a newly created game.
type gameReadyEvent struct {
	Kind         string `json:"kind"`
	GameID       string `json:"game_id"`
	SessionToken string `json:"session_token"`
}

// queueStatusEvent is published on the shared queue topic whenever the
// waiter count changes.
type queueStatusEvent struct {
	Kind    string `json:"kind"`
	Waiting int    `json:"waiting"`
}
