package common

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/turtacn/CureAnalytics/internal/infrastructure/monitoring/logging"
)

func TestLoggerAdapter_PairsKeysAndValues(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	l := NewLoggerAdapter(logging.NewLoggerFromCore(core))

	l.Warn("tagger failed", "reason", "timeout", "attempt", 2, "error", errors.New("deadline"))

	entries := logs.All()
	if assert.Len(t, entries, 1) {
		ctx := entries[0].ContextMap()
		assert.Equal(t, "tagger failed", entries[0].Message)
		assert.Equal(t, "timeout", ctx["reason"])
		assert.EqualValues(t, 2, ctx["attempt"])
		assert.Equal(t, "deadline", ctx["error"])
	}
}

func TestLoggerAdapter_OddArguments(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	l := NewLoggerAdapter(logging.NewLoggerFromCore(core))

	l.Info("odd", 42, "answer", "dangling")

	ctx := logs.All()[0].ContextMap()
	assert.Equal(t, "answer", ctx["42"])
	assert.Equal(t, "dangling", ctx["!BADKEY"])
}

func TestNewLoggerAdapter_Nil(t *testing.T) {
	l := NewLoggerAdapter(nil)
	assert.NotPanics(t, func() { l.Error("nothing") })
}
