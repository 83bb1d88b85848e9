package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/turtacn/CureAnalytics/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/CureAnalytics/pkg/errors"
	"github.com/turtacn/CureAnalytics/pkg/types/common"
)

// DeadLetterSuffix names the topic that receives messages whose handler
// kept failing.
const DeadLetterSuffix = "dead_letter"

const schemaVersion = "v1"

// Topic returns the topic carrying eventType.
func Topic(prefix, eventType string) string { return prefix + eventType }

// EventEnvelope wraps every domain event written to the bus.
type EventEnvelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	AggregateID   string          `json:"aggregate_id"`
	Source        string          `json:"source"`
	Timestamp     time.Time       `json:"timestamp"`
	SchemaVersion string          `json:"schema_version"`
	Payload       json.RawMessage `json:"payload"`
}

// NewEventEnvelope serializes e as the payload of a new envelope.
func NewEventEnvelope(e common.DomainEvent, source string) (*EventEnvelope, error) {
	if e == nil || e.EventType() == "" {
		return nil, errors.New(errors.ErrCodeEventInvalid, "event type is required")
	}
	data, err := json.Marshal(e)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to marshal event payload")
	}
	return &EventEnvelope{
		EventID:       e.EventID(),
		EventType:     e.EventType(),
		AggregateID:   e.AggregateID(),
		Source:        source,
		Timestamp:     e.OccurredAt(),
		SchemaVersion: schemaVersion,
		Payload:       data,
	}, nil
}

// DecodePayload unmarshals the wrapped event into target.
func (e *EventEnvelope) DecodePayload(target any) error {
	if len(e.Payload) == 0 || string(e.Payload) == "null" {
		return errors.New(errors.ErrCodeEventInvalid, "envelope has no payload")
	}
	if err := json.Unmarshal(e.Payload, target); err != nil {
		return errors.Wrap(err, errors.ErrCodeEventInvalid, "failed to decode event payload")
	}
	return nil
}

func (e *EventEnvelope) toMessage(topic string) (kafka.Message, error) {
	val, err := json.Marshal(e)
	if err != nil {
		return kafka.Message{}, errors.Wrap(err, errors.ErrCodeSerialization, "failed to marshal envelope")
	}
	return kafka.Message{
		Topic: topic,
		Key:   []byte(e.AggregateID),
		Value: val,
		Time:  e.Timestamp,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(e.EventType)},
			{Key: "source_service", Value: []byte(e.Source)},
			{Key: "schema_version", Value: []byte(e.SchemaVersion)},
		},
	}, nil
}

// decodeEnvelope parses a message value written by the producer.
func decodeEnvelope(value []byte) (*EventEnvelope, error) {
	if len(value) == 0 {
		return nil, errors.New(errors.ErrCodeEventInvalid, "empty message value")
	}
	var env EventEnvelope
	if err := json.Unmarshal(value, &env); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeEventInvalid, "failed to unmarshal envelope")
	}
	if env.EventType == "" {
		return nil, errors.New(errors.ErrCodeEventInvalid, "envelope has no event type")
	}
	return &env, nil
}

// TopicConn is the part of *kafka.Conn used for topic administration.
type TopicConn interface {
	CreateTopics(topics ...kafka.TopicConfig) error
	ReadPartitions(topics ...string) ([]kafka.Partition, error)
	Close() error
}

// EnsureTopics creates the topics that do not exist yet.
func EnsureTopics(ctx context.Context, conn TopicConn, topics []string, partitions, replication int, log logging.Logger) error {
	if partitions <= 0 {
		partitions = 3
	}
	if replication <= 0 {
		replication = 1
	}
	existing := make(map[string]bool)
	parts, err := conn.ReadPartitions()
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeExternalService, "failed to list kafka topics")
	}
	for _, p := range parts {
		existing[p.Topic] = true
	}

	var missing []kafka.TopicConfig
	for _, t := range topics {
		if !existing[t] {
			missing = append(missing, kafka.TopicConfig{Topic: t, NumPartitions: partitions, ReplicationFactor: replication})
		}
	}
	if len(missing) == 0 || ctx.Err() != nil {
		return ctx.Err()
	}
	if err := conn.CreateTopics(missing...); err != nil {
		return errors.Wrap(err, errors.ErrCodeExternalService, "failed to create kafka topics")
	}
	if log != nil {
		for _, m := range missing {
			log.Info("kafka topic created", logging.String("topic", m.Topic), logging.Int("partitions", partitions))
		}
	}
	return nil
}

// DialTopicConn connects to the first reachable broker for administration.
func DialTopicConn(ctx context.Context, brokers []string) (TopicConn, error) {
	var lastErr error
	for _, b := range brokers {
		conn, err := kafka.DialContext(ctx, "tcp", b)
		if err == nil {
			return conn, nil
		}
		lastErr = err
	}
	return nil, errors.Wrap(lastErr, errors.ErrCodeExternalService, "failed to dial kafka")
}
