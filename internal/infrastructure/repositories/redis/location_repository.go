package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"

	"fleetpulse/internal/core/domain"
	"fleetpulse/internal/core/ports"

	"github.com/redis/go-redis/v9"
)

const (
	locationsKey        = "fleetpulse:locations"
	locationsUpdatedKey = "fleetpulse:locations:updated"
)

// RedisLocationRepository keeps the live location view in a hash keyed by
// driver id, with a sorted set of update times for pruning.
type RedisLocationRepository struct {
	client *redis.Client
}

func NewRedisLocationRepository(client *redis.Client) ports.LocationRepository {
	return &RedisLocationRepository{client: client}
}

func (r *RedisLocationRepository) UpsertBatch(ctx context.Context, locations []domain.DriverLocation) error {
	if len(locations) == 0 {
		return nil
	}

	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, loc := range locations {
			data, err := json.Marshal(loc)
			if err != nil {
				return fmt.Errorf("failed to marshal location: %w", err)
			}
			pipe.HSet(ctx, locationsKey, loc.DriverID, data)
			pipe.ZAdd(ctx, locationsUpdatedKey, redis.Z{
				Score:  float64(loc.LastUpdate.UnixMilli()),
				Member: loc.DriverID,
			})
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to store locations in Redis: %w", err)
	}
	return nil
}

func (r *RedisLocationRepository) GetByID(ctx context.Context, driverID string) (*domain.DriverLocation, error) {
	data, err := r.client.HGet(ctx, locationsKey, driverID).Result()
	if err == redis.Nil {
		return nil, domain.ErrLocationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get location from Redis: %w", err)
	}

	var loc domain.DriverLocation
	if err := json.Unmarshal([]byte(data), &loc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal location: %w", err)
	}
	return &loc, nil
}

func (r *RedisLocationRepository) List(ctx context.Context) ([]domain.DriverLocation, error) {
	all, err := r.client.HGetAll(ctx, locationsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list locations from Redis: %w", err)
	}

	out := make([]domain.DriverLocation, 0, len(all))
	for id, data := range all {
		var loc domain.DriverLocation
		if err := json.Unmarshal([]byte(data), &loc); err != nil {
			return nil, fmt.Errorf("failed to unmarshal location %s: %w", id, err)
		}
		out = append(out, loc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DriverID < out[j].DriverID })
	return out, nil
}

func (r *RedisLocationRepository) Count(ctx context.Context) (int, error) {
	n, err := r.client.HLen(ctx, locationsKey).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to count locations in Redis: %w", err)
	}
	return int(n), nil
}

func (r *RedisLocationRepository) PruneOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	ids, err := r.client.ZRangeByScore(ctx, locationsUpdatedKey, &redis.ZRangeBy{
		Min: "-inf",
		Max: "(" + strconv.FormatInt(cutoff.UnixMilli(), 10),
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to find stale locations: %w", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	members := make([]interface{}, len(ids))
	for i, id := range ids {
		members[i] = id
	}
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HDel(ctx, locationsKey, ids...)
		pipe.ZRem(ctx, locationsUpdatedKey, members...)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to prune locations: %w", err)
	}
	return len(ids), nil
}
