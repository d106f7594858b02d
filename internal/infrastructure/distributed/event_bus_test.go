package distributed

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"fleetpulse/internal/core/domain"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestEventBus_FanOutSkipsOwnInstance(t *testing.T) {
	addr := os.Getenv("FLEETPULSE_TEST_REDIS")
	if addr == "" {
		t.Skip("FLEETPULSE_TEST_REDIS not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()
	logger := zaptest.NewLogger(t).Sugar()

	a := NewEventBus(client, "console-a", "fleetpulse:test:alerts", logger)
	b := NewEventBus(client, "console-b", "fleetpulse:test:alerts", logger)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	got := make(chan *Event, 2)
	go a.Subscribe(ctx, func(e *Event) error { got <- e; return nil })
	time.Sleep(100 * time.Millisecond)

	require.NoError(t, a.PublishAlert(ctx, domain.RealtimeAlert{ID: "own"}))
	require.NoError(t, b.PublishAlert(ctx, domain.RealtimeAlert{ID: "alert-1", Priority: domain.PriorityCritical}))

	select {
	case e := <-got:
		assert.Equal(t, EventAlertRaised, e.Type)
		assert.Equal(t, "alert-1", e.AlertID)
		var alert domain.RealtimeAlert
		require.NoError(t, json.Unmarshal(e.Payload, &alert))
		assert.Equal(t, domain.PriorityCritical, alert.Priority)
	case <-ctx.Done():
		t.Fatal("no event received")
	}
}
