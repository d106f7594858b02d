package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestNew_FallsBackToInfoOnBadLevel(t *testing.T) {
	l := New("not-a-level", "json")
	assert.True(t, l.Core().Enabled(zap.InfoLevel))
	assert.False(t, l.Core().Enabled(zap.DebugLevel))
}

func TestNew_DebugLevel(t *testing.T) {
	l := New("debug", "console")
	assert.True(t, l.Core().Enabled(zap.DebugLevel))
}

func TestContextLogger_AddsRequestID(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	cl := NewContextLogger(zap.New(core))

	ctx := WithRequestID(context.Background(), "req_1")
	cl.LogRequest(ctx, "GET", "/api/v1/snapshot", 200, 3)

	entries := logs.All()
	if assert.Len(t, entries, 1) {
		assert.Equal(t, "req_1", entries[0].ContextMap()["request_id"])
		assert.Equal(t, "/api/v1/snapshot", entries[0].ContextMap()["path"])
	}
}
