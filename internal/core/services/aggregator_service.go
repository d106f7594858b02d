package services

import (
	"context"
	"sync"
	"time"

	"fleetpulse/internal/core/domain"
	"fleetpulse/internal/core/ports"
	"fleetpulse/pkg/cache"
	"fleetpulse/pkg/tracing"

	"go.uber.org/zap"
)

// ackMemory is how long an applied incident acknowledgement is remembered;
// repeats inside it are not folded again.
const ackMemory = 24 * time.Hour

// AggregatorService holds the folded view. It is the only writer of the
// snapshot, the system health record and the location store.
type AggregatorService struct {
	mu   sync.RWMutex
	view View

	locations  ports.LocationRepository
	staleAfter time.Duration
	acked      *cache.Cache
	logger     *zap.SugaredLogger
}

func NewAggregatorService(locations ports.LocationRepository, staleAfter time.Duration, logger *zap.SugaredLogger) *AggregatorService {
	return &AggregatorService{
		view:       NewView(),
		locations:  locations,
		staleAfter: staleAfter,
		acked:      cache.NewCacheWithClock(ackMemory, time.Now),
		logger:     logger,
	}
}

// Apply folds ev and returns the views before and after. Callers must
// apply events sequentially to keep delivery order.
func (a *AggregatorService) Apply(ctx context.Context, ev domain.Event, now time.Time) (prev, next View) {
	if ack, ok := ev.(domain.IncidentAcknowledged); ok && !a.acked.SetIfAbsent(ack.IncidentID, now) {
		a.logger.Debugw("repeated incident acknowledgement ignored", "incident_id", ack.IncidentID)
		a.mu.RLock()
		defer a.mu.RUnlock()
		return a.view.Clone(), a.view.Clone()
	}

	a.mu.Lock()
	prev = a.view
	next, locations := Fold(prev, ev, now)
	a.view = next
	a.mu.Unlock()

	if len(locations) > 0 {
		ctx, span := tracing.TraceStoreOperation(ctx, "upsert", "locations")
		if err := a.locations.UpsertBatch(ctx, locations); err != nil {
			tracing.RecordError(ctx, err)
			a.logger.Warnw("failed to store driver locations", "count", len(locations), "error", err)
		}
		span.End()
	}
	return prev.Clone(), next.Clone()
}

func (a *AggregatorService) Snapshot() domain.DashboardSnapshot {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.view.Snapshot.Clone()
}

func (a *AggregatorService) SystemHealth() domain.SystemHealth {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.view.Health
}

func (a *AggregatorService) Location(ctx context.Context, driverID string) (*domain.DriverLocation, error) {
	return a.locations.GetByID(ctx, driverID)
}

func (a *AggregatorService) Locations(ctx context.Context) ([]domain.DriverLocation, error) {
	return a.locations.List(ctx)
}

// PruneLocations evicts entries not updated within locations.stale_after.
// With a zero threshold entries persist until overwritten.
func (a *AggregatorService) PruneLocations(ctx context.Context, now time.Time) (int, error) {
	a.acked.Invalidate("")
	if a.staleAfter <= 0 {
		return 0, nil
	}
	removed, err := a.locations.PruneOlderThan(ctx, now.Add(-a.staleAfter))
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		a.logger.Debugw("pruned stale driver locations", "removed", removed)
	}
	return removed, nil
}
