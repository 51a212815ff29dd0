package eventlog

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/IBM/sarama"

	"shortdeck-engine/internal/telemetry"
)

// KafkaPublisherConfig mirrors the teacher's KafkaAlertProducerConfig
// shape, scoped down to what a fire-and-forget event mirror needs.
type KafkaPublisherConfig struct {
	Brokers      []string
	Topic        string
	MaxRetries   int
	RetryBackoff time.Duration
	RequiredAcks sarama.RequiredAcks
}

// KafkaPublisher mirrors every appended event onto a Kafka topic for
// downstream consumers (analytics, cross-region replication) after the
// authoritative store has already accepted it. It never gates the
// append — a publish failure is logged and counted, never returned to
// the caller, matching spec.md §5's "event store is the only shared
// mutable resource" (Kafka is a side effect of it, not a second one).
type KafkaPublisher struct {
	producer sarama.SyncProducer
	topic    string
	log      telemetry.Logger

	mu     sync.Mutex
	failed int64
}

// NewKafkaPublisher dials brokers and returns a ready publisher.
func NewKafkaPublisher(cfg KafkaPublisherConfig, log telemetry.Logger) (*KafkaPublisher, error) {
	saramaConfig := sarama.NewConfig()
	saramaConfig.Producer.Return.Successes = true
	saramaConfig.Producer.Return.Errors = true
	saramaConfig.Producer.Retry.Max = cfg.MaxRetries
	saramaConfig.Producer.Retry.Backoff = cfg.RetryBackoff
	saramaConfig.Producer.RequiredAcks = cfg.RequiredAcks

	if cfg.RequiredAcks == sarama.WaitForAll {
		saramaConfig.Producer.Idempotent = true
		saramaConfig.Net.MaxOpenRequests = 1
	}

	producer, err := sarama.NewSyncProducer(cfg.Brokers, saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("eventlog: new kafka producer: %w", err)
	}
	return &KafkaPublisher{producer: producer, topic: cfg.Topic, log: log}, nil
}

// Publish mirrors e onto the configured topic, partitioned by game_id so
// a consumer sees one game's events in order.
func (p *KafkaPublisher) Publish(e Event) {
	data, err := json.Marshal(e)
	if err != nil {
		p.log.Errorf("eventlog: kafka: marshal event %s/%d: %v", e.GameID, e.Sequence, err)
		return
	}

	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(e.GameID),
		Value: sarama.ByteEncoder(data),
		Headers: []sarama.RecordHeader{
			{Key: []byte("event_type"), Value: []byte(e.EventType)},
			{Key: []byte("game_id"), Value: []byte(e.GameID)},
		},
		Timestamp: e.Timestamp,
	}

	if _, _, err := p.producer.SendMessage(msg); err != nil {
		p.mu.Lock()
		p.failed++
		p.mu.Unlock()
		p.log.Errorf("eventlog: kafka: send event %s/%d: %v", e.GameID, e.Sequence, err)
	}
}

// Close releases the underlying producer's connections.
func (p *KafkaPublisher) Close() error {
	return p.producer.Close()
}

// MirroringStore decorates a Store, publishing every successfully
// appended event to a KafkaPublisher. Reads pass straight through.
type MirroringStore struct {
	Store
	publisher *KafkaPublisher
}

// NewMirroringStore wraps store so every Append also mirrors to Kafka.
func NewMirroringStore(store Store, publisher *KafkaPublisher) *MirroringStore {
	return &MirroringStore{Store: store, publisher: publisher}
}

// Append persists through the wrapped store, then mirrors the resulting
// event onto Kafka. Mirroring happens after the authoritative write
// succeeds and never affects its result.
func (m *MirroringStore) Append(ctx context.Context, gameID, eventType string, payload any) (uint64, error) {
	seq, err := m.Store.Append(ctx, gameID, eventType, payload)
	if err != nil {
		return seq, err
	}

	raw, marshalErr := json.Marshal(payload)
	if marshalErr != nil {
		return seq, err
	}
	m.publisher.Publish(Event{
		GameID:    gameID,
		Sequence:  seq,
		EventType: eventType,
		Payload:   raw,
		Timestamp: time.Now(),
	})
	return seq, nil
}
