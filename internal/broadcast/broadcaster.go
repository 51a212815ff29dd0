package broadcast

import (
	"shortdeck-engine/internal/game"
	"shortdeck-engine/internal/telemetry"
)

// Event is what lands on a subscriber's channel: either a filtered state
// update or the terminal "game ended" marker, matching the two message
// shapes spec.md §6 names for a game's per-player topic.
type Event struct {
	Kind     string   `json:"kind"` // "game_updated" | "game_ended"
	Snapshot *GameView `json:"snapshot,omitempty"`
}

// Broadcaster publishes one filtered GameView per seated player on that
// player's own topic (GameTopic), and a terminal event when a game
// ends. It implements game.Broadcaster.
type Broadcaster struct {
	pubsub *PubSub
	log    telemetry.Logger
}

// NewBroadcaster wires a PubSub into a game.Broadcaster.
func NewBroadcaster(pubsub *PubSub, log telemetry.Logger) *Broadcaster {
	return &Broadcaster{pubsub: pubsub, log: log}
}

// Broadcast builds and publishes one GameView per seated player.
func (b *Broadcaster) Broadcast(snap game.Snapshot) {
	for _, p := range snap.State.Players {
		view := BuildView(snap, p.ID)
		b.pubsub.Publish(GameTopic(snap.State.GameID, p.ID), Event{Kind: "game_updated", Snapshot: &view})
	}
	b.log.Debugf("game %s: broadcast to %d players", snap.State.GameID, len(snap.State.Players))
}

// BroadcastEnded publishes the terminal event for gameID on the game-wide
// ended topic only (gameEndedTopic). Subscribers of the per-player topics
// do not receive this event.
func (b *Broadcaster) BroadcastEnded(gameID string) {
	b.pubsub.Publish(gameEndedTopic(gameID), Event{Kind: "game_ended"})
}

// gameEndedTopic is a fan-out point transports can subscribe to
// independent of any one player, for the terminal notification.
func gameEndedTopic(gameID string) string {
	return "game:" + gameID + ":ended"
}
