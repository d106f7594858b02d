package ports

import (
	"context"
	"time"

	"fleetpulse/internal/core/domain"
)

// LocationRepository is the keyed store of last-known driver positions.
// The aggregator is its only writer.
type LocationRepository interface {
	UpsertBatch(ctx context.Context, locations []domain.DriverLocation) error
	GetByID(ctx context.Context, driverID string) (*domain.DriverLocation, error)
	List(ctx context.Context) ([]domain.DriverLocation, error)
	Count(ctx context.Context) (int, error)
	// PruneOlderThan drops entries whose LastUpdate is before cutoff and
	// returns how many were removed.
	PruneOlderThan(ctx context.Context, cutoff time.Time) (int, error)
}

// TokenStore yields the bearer token persisted by the authentication module.
// An empty token with a nil error means no token is stored.
type TokenStore interface {
	Token(ctx context.Context) (string, error)
}
