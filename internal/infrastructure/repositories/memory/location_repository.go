package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"fleetpulse/internal/core/domain"
	"fleetpulse/internal/core/ports"
)

type MemoryLocationRepository struct {
	locations map[string]domain.DriverLocation
	mu        sync.RWMutex
}

func NewMemoryLocationRepository() ports.LocationRepository {
	return &MemoryLocationRepository{
		locations: make(map[string]domain.DriverLocation),
	}
}

// UpsertBatch overwrites the entry of every included driver wholesale.
// Drivers absent from the batch are untouched.
func (r *MemoryLocationRepository) UpsertBatch(ctx context.Context, locations []domain.DriverLocation) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, loc := range locations {
		r.locations[loc.DriverID] = loc
	}
	return nil
}

func (r *MemoryLocationRepository) GetByID(ctx context.Context, driverID string) (*domain.DriverLocation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	loc, exists := r.locations[driverID]
	if !exists {
		return nil, domain.ErrLocationNotFound
	}
	return &loc, nil
}

// List returns all entries ordered by driver id.
func (r *MemoryLocationRepository) List(ctx context.Context) ([]domain.DriverLocation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.DriverLocation, 0, len(r.locations))
	for _, loc := range r.locations {
		out = append(out, loc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DriverID < out[j].DriverID })
	return out, nil
}

func (r *MemoryLocationRepository) Count(ctx context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.locations), nil
}

func (r *MemoryLocationRepository) PruneOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for id, loc := range r.locations {
		if loc.LastUpdate.Before(cutoff) {
			delete(r.locations, id)
			removed++
		}
	}
	return removed, nil
}
