package kafka

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/CureAnalytics/internal/config"
	"github.com/turtacn/CureAnalytics/internal/domain/paper"
	pkgerrors "github.com/turtacn/CureAnalytics/pkg/errors"
	"github.com/turtacn/CureAnalytics/pkg/types/common"
)

type mockWriter struct {
	mu     sync.Mutex
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *mockWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *mockWriter) Close() error {
	w.closed = true
	return nil
}

func (w *mockWriter) written() []kafka.Message {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]kafka.Message(nil), w.msgs...)
}

func TestNewProducer_RequiresBrokers(t *testing.T) {
	_, err := NewProducer(config.KafkaConfig{}, "test", nil)
	assert.Error(t, err)
}

func TestProducer_Publish(t *testing.T) {
	w := &mockWriter{}
	p := NewProducerWithWriter(w, "cure.", "apiserver", nil)

	pp, err := paper.NewPaper("T", "A")
	require.NoError(t, err)
	fail := paper.NewPaperAnalysisFailedEvent(pp, "boom")

	require.NoError(t, p.Publish(context.Background(), submittedEvent(t), fail))
	msgs := w.written()
	require.Len(t, msgs, 2)
	assert.Equal(t, "cure.paper.submitted", msgs[0].Topic)
	assert.Equal(t, "cure.paper.analysis_failed", msgs[1].Topic)
	assert.Equal(t, []byte(pp.ID.String()), msgs[1].Key)
	assert.Equal(t, int64(2), p.Sent())
}

func TestProducer_PublishNothing(t *testing.T) {
	w := &mockWriter{}
	p := NewProducerWithWriter(w, "cure.", "apiserver", nil)
	require.NoError(t, p.Publish(context.Background()))
	assert.Empty(t, w.written())
}

func TestProducer_InvalidEventWritesNothing(t *testing.T) {
	w := &mockWriter{}
	p := NewProducerWithWriter(w, "cure.", "apiserver", nil)
	bad := &common.BaseEvent{}

	err := p.Publish(context.Background(), submittedEvent(t), bad)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.ErrCodeEventInvalid))
	assert.Empty(t, w.written())
}

func TestProducer_WriteError(t *testing.T) {
	w := &mockWriter{err: errors.New("leader not available")}
	p := NewProducerWithWriter(w, "cure.", "apiserver", nil)
	err := p.Publish(context.Background(), submittedEvent(t))
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.ErrCodeEventPublishFailed))
}

func TestProducer_Close(t *testing.T) {
	w := &mockWriter{}
	p := NewProducerWithWriter(w, "cure.", "apiserver", nil)
	require.NoError(t, p.Close())
	require.NoError(t, p.Close())
	assert.True(t, w.closed)
	assert.Equal(t, ErrProducerClosed, p.Publish(context.Background(), submittedEvent(t)))
}
