package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracked per game actor and the shared subsystems around it.
var (
	ActorMailboxDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "shortdeck_actor_mailbox_depth",
		Help: "Number of messages currently queued in a game actor's inbox",
	}, []string{"game_id"})

	ActorHandlerDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "shortdeck_actor_handler_duration_seconds",
		Help:    "Time spent processing one inbox message to completion",
		Buckets: prometheus.DefBuckets,
	}, []string{"message_kind"})

	EventsAppendedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shortdeck_events_appended_total",
		Help: "Total events appended to the event log",
	}, []string{"event_type"})

	SnapshotsTakenTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "shortdeck_snapshots_taken_total",
		Help: "Total actor-state snapshots persisted",
	})

	BroadcastsSentTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shortdeck_broadcasts_sent_total",
		Help: "Total filtered per-player snapshots published",
	}, []string{"topic_kind"})

	GamesActiveGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "shortdeck_games_active",
		Help: "Number of games currently owned by the supervisor",
	})

	RecoveryReplayDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "shortdeck_recovery_replay_duration_seconds",
		Help:    "Time spent replaying events during crash recovery",
		Buckets: prometheus.DefBuckets,
	})
)
