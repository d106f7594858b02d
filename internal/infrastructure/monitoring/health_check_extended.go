package monitoring

import (
	"context"
	"fmt"
	"time"

	"fleetpulse/internal/core/ports"

	"github.com/redis/go-redis/v9"
)

// AddRedisCheck adds a Redis health check
func (h *HealthChecker) AddRedisCheck(client *redis.Client, timeout time.Duration) {
	h.AddCheck("redis", func(ctx context.Context) (bool, error) {
		if err := client.Ping(ctx).Err(); err != nil {
			return false, err
		}
		return true, nil
	}, timeout)
}

// AddTransportCheck reports the realtime connection as unhealthy when it is
// down or its heartbeat has gone stale.
func (h *HealthChecker) AddTransportCheck(monitor ports.ConnectionMonitor) {
	h.AddCheck("transport", func(ctx context.Context) (bool, error) {
		state := monitor.State()
		if !state.Connected {
			if state.LastError != "" {
				return false, fmt.Errorf("disconnected: %s", state.LastError)
			}
			return false, fmt.Errorf("disconnected")
		}
		if !monitor.Healthy(h.now()) {
			return false, fmt.Errorf("heartbeat stale")
		}
		return true, nil
	}, 0)
}

// AddLocationStoreCheck verifies the location repository answers.
func (h *HealthChecker) AddLocationStoreCheck(repo ports.LocationRepository, timeout time.Duration) {
	h.AddCheck("locations", func(ctx context.Context) (bool, error) {
		if _, err := repo.Count(ctx); err != nil {
			return false, err
		}
		return true, nil
	}, timeout)
}
