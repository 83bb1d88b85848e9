package kafka

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/turtacn/CureAnalytics/internal/config"
	"github.com/turtacn/CureAnalytics/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/CureAnalytics/pkg/errors"
)

var ErrAlreadyRunning = errors.New(errors.ErrCodeConflict, "consumer already running")

// Handler processes one decoded event.
type Handler func(ctx context.Context, env *EventEnvelope) error

// Reader abstracts *kafka.Reader.
type Reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// RetryPolicy bounds handler retries before a message is dead-lettered.
type RetryPolicy struct {
	MaxRetries int
	Backoff    time.Duration
	MaxBackoff time.Duration
}

// ConsumerStats counts what the consumer has done.
type ConsumerStats struct {
	Consumed     int64
	Processed    int64
	Failed       int64
	DeadLettered int64
}

// Consumer reads envelopes from a consumer group and dispatches them by
// event type.  Every fetched message is committed once handled, retried out
// or dead-lettered, so a poison message never blocks its partition.
type Consumer struct {
	reader     Reader
	deadLetter *Producer
	dlqTopic   string
	retry      RetryPolicy
	logger     logging.Logger
	onResult   func(eventType string, err error)

	mu       sync.RWMutex
	handlers map[string]Handler

	running atomic.Bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	consumed, processed, failed, deadLettered atomic.Int64
}

// ConsumerOption customizes a Consumer.
type ConsumerOption func(*Consumer)

func WithRetryPolicy(p RetryPolicy) ConsumerOption {
	return func(c *Consumer) { c.retry = p }
}

// WithDeadLetter sends exhausted messages to topic through p.
func WithDeadLetter(p *Producer, topic string) ConsumerOption {
	return func(c *Consumer) { c.deadLetter, c.dlqTopic = p, topic }
}

// WithResultHook is called after every handled message.
func WithResultHook(fn func(eventType string, err error)) ConsumerOption {
	return func(c *Consumer) { c.onResult = fn }
}

// NewConsumer joins cfg.GroupID on the given topics.
func NewConsumer(cfg config.KafkaConfig, topics []string, log logging.Logger, opts ...ConsumerOption) (*Consumer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.InvalidParam("kafka brokers are required")
	}
	if cfg.GroupID == "" {
		return nil, errors.InvalidParam("kafka group id is required")
	}
	if len(topics) == 0 {
		return nil, errors.InvalidParam("at least one topic is required")
	}
	start := kafka.FirstOffset
	if cfg.AutoOffsetReset == "latest" {
		start = kafka.LastOffset
	}
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.Brokers,
		GroupID:        cfg.GroupID,
		GroupTopics:    topics,
		MinBytes:       1,
		MaxBytes:       10 << 20,
		MaxWait:        time.Second,
		StartOffset:    start,
		SessionTimeout: 30 * time.Second,
	})
	return NewConsumerWithReader(r, log, opts...), nil
}

func NewConsumerWithReader(r Reader, log logging.Logger, opts ...ConsumerOption) *Consumer {
	if log == nil {
		log = logging.NewNopLogger()
	}
	c := &Consumer{
		reader:   r,
		logger:   log,
		handlers: make(map[string]Handler),
		retry:    RetryPolicy{MaxRetries: 3, Backoff: time.Second, MaxBackoff: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Subscribe registers h for eventType, replacing any previous handler.
func (c *Consumer) Subscribe(eventType string, h Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[eventType] = h
	c.logger.Info("subscribed to event", logging.String("event_type", eventType))
}

// Start runs the consume loop in the background until ctx ends or Close.
func (c *Consumer) Start(ctx context.Context) error {
	if c.running.Swap(true) {
		return ErrAlreadyRunning
	}
	ctx, c.cancel = context.WithCancel(ctx)
	c.wg.Add(1)
	go c.loop(ctx)
	c.logger.Info("kafka consumer started")
	return nil
}

func (c *Consumer) loop(ctx context.Context) {
	defer c.wg.Done()
	for ctx.Err() == nil {
		m, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Error("kafka fetch failed", logging.Err(err))
			sleep(ctx, time.Second)
			continue
		}
		c.consumed.Add(1)
		c.handle(ctx, m)
		if ctx.Err() != nil {
			return
		}
		if err := c.reader.CommitMessages(ctx, m); err != nil && ctx.Err() == nil {
			c.logger.Error("kafka commit failed", logging.String("topic", m.Topic), logging.Int64("offset", m.Offset), logging.Err(err))
		}
	}
}

func (c *Consumer) handle(ctx context.Context, m kafka.Message) {
	env, err := decodeEnvelope(m.Value)
	if err != nil {
		c.logger.Warn("dropping undecodable message", logging.String("topic", m.Topic), logging.Int64("offset", m.Offset), logging.Err(err))
		c.failed.Add(1)
		c.sendToDeadLetter(ctx, m, err)
		return
	}

	c.mu.RLock()
	h, ok := c.handlers[env.EventType]
	c.mu.RUnlock()
	if !ok {
		c.logger.Debug("no handler for event", logging.String("event_type", env.EventType))
		return
	}

	err = c.runWithRetry(ctx, h, env)
	if c.onResult != nil {
		c.onResult(env.EventType, err)
	}
	if err == nil {
		c.processed.Add(1)
		return
	}
	c.failed.Add(1)
	if ctx.Err() != nil {
		return
	}
	c.logger.Error("event handling failed after retries",
		logging.String("event_type", env.EventType),
		logging.String("aggregate_id", env.AggregateID),
		logging.Err(err))
	c.sendToDeadLetter(ctx, m, err)
}

func (c *Consumer) runWithRetry(ctx context.Context, h Handler, env *EventEnvelope) error {
	backoff := c.retry.Backoff
	err := h(ctx, env)
	for i := 0; err != nil && i < c.retry.MaxRetries; i++ {
		if !sleep(ctx, backoff) {
			return ctx.Err()
		}
		err = h(ctx, env)
		backoff *= 2
		if c.retry.MaxBackoff > 0 && backoff > c.retry.MaxBackoff {
			backoff = c.retry.MaxBackoff
		}
	}
	return err
}

func (c *Consumer) sendToDeadLetter(ctx context.Context, m kafka.Message, cause error) {
	if c.deadLetter == nil || c.dlqTopic == "" {
		return
	}
	dl := kafka.Message{
		Topic: c.dlqTopic,
		Key:   m.Key,
		Value: m.Value,
		Headers: append(append([]kafka.Header{}, m.Headers...),
			kafka.Header{Key: "original_topic", Value: []byte(m.Topic)},
			kafka.Header{Key: "error_message", Value: []byte(cause.Error())},
		),
	}
	if err := c.deadLetter.publishRaw(ctx, dl); err != nil {
		c.logger.Error("dead-letter publish failed", logging.Err(err))
		return
	}
	c.deadLettered.Add(1)
}

func (c *Consumer) Stats() ConsumerStats {
	return ConsumerStats{
		Consumed:     c.consumed.Load(),
		Processed:    c.processed.Load(),
		Failed:       c.failed.Load(),
		DeadLettered: c.deadLettered.Load(),
	}
}

// Close stops the loop and closes the reader.
func (c *Consumer) Close() error {
	if !c.running.CompareAndSwap(true, false) {
		return nil
	}
	c.cancel()
	c.wg.Wait()
	err := c.reader.Close()
	c.logger.Info("kafka consumer closed", logging.Int64("consumed", c.consumed.Load()))
	return err
}

// sleep waits d or until ctx ends; it reports whether the full wait elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
