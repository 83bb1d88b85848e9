package kafka

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/turtacn/CureAnalytics/internal/config"
	"github.com/turtacn/CureAnalytics/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/CureAnalytics/pkg/errors"
	"github.com/turtacn/CureAnalytics/pkg/types/common"
)

var ErrProducerClosed = errors.New(errors.ErrCodeEventPublishFailed, "producer closed")

// Writer abstracts *kafka.Writer.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer publishes domain events as JSON envelopes, one topic per event
// type, keyed by aggregate ID.
type Producer struct {
	writer      Writer
	topicPrefix string
	source      string
	logger      logging.Logger
	closed      atomic.Bool
	sent        atomic.Int64
}

// NewProducer builds a producer on a hash-balanced kafka.Writer.
func NewProducer(cfg config.KafkaConfig, source string, log logging.Logger) (*Producer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.InvalidParam("kafka brokers are required")
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	if cfg.BatchSize == 0 {
		cfg.BatchSize = 100
	}
	w := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Balancer:               &kafka.Hash{},
		MaxAttempts:            cfg.MaxRetries + 1,
		BatchSize:              cfg.BatchSize,
		BatchTimeout:           50 * time.Millisecond,
		WriteTimeout:           cfg.WriteTimeout,
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return NewProducerWithWriter(w, cfg.TopicPrefix, source, log), nil
}

func NewProducerWithWriter(w Writer, topicPrefix, source string, log logging.Logger) *Producer {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &Producer{writer: w, topicPrefix: topicPrefix, source: source, logger: log}
}

// Publish writes all events in one batch.  Nothing is written if any event
// fails to encode.
func (p *Producer) Publish(ctx context.Context, events ...common.DomainEvent) error {
	if p.closed.Load() {
		return ErrProducerClosed
	}
	if len(events) == 0 {
		return nil
	}
	msgs := make([]kafka.Message, 0, len(events))
	for _, e := range events {
		env, err := NewEventEnvelope(e, p.source)
		if err != nil {
			return err
		}
		msg, err := env.toMessage(Topic(p.topicPrefix, env.EventType))
		if err != nil {
			return err
		}
		msgs = append(msgs, msg)
	}
	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return errors.Wrap(err, errors.ErrCodeEventPublishFailed, "failed to publish events")
	}
	p.sent.Add(int64(len(msgs)))
	p.logger.Debug("events published", logging.Int("count", len(msgs)), logging.String("first_topic", msgs[0].Topic))
	return nil
}

// publishRaw forwards an already-encoded message, used for dead-lettering.
func (p *Producer) publishRaw(ctx context.Context, msg kafka.Message) error {
	if p.closed.Load() {
		return ErrProducerClosed
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return errors.Wrap(err, errors.ErrCodeEventPublishFailed, "failed to publish message")
	}
	p.sent.Add(1)
	return nil
}

// Sent returns the number of messages written so far.
func (p *Producer) Sent() int64 { return p.sent.Load() }

func (p *Producer) Close() error {
	if !p.closed.CompareAndSwap(false, true) {
		return nil
	}
	err := p.writer.Close()
	p.logger.Info("kafka producer closed", logging.Int64("sent", p.sent.Load()))
	return err
}
