package services

import (
	"context"
	"time"

	"fleetpulse/internal/core/domain"
	"fleetpulse/pkg/tracing"
)

// DashboardService wires decoded events through the pure fold and then the
// alert dispatcher.
type DashboardService struct {
	aggregator *AggregatorService
	alerts     *AlertService
	socketID   func() string
	now        func() time.Time
}

func NewDashboardService(aggregator *AggregatorService, alerts *AlertService, socketID func() string) *DashboardService {
	if socketID == nil {
		socketID = func() string { return "" }
	}
	return &DashboardService{
		aggregator: aggregator,
		alerts:     alerts,
		socketID:   socketID,
		now:        time.Now,
	}
}

// HandleEvent is registered as the transport event handler.
func (d *DashboardService) HandleEvent(ctx context.Context, ev domain.Event) {
	ctx, span := tracing.TraceInboundEvent(ctx, ev.Name(), d.socketID())
	defer span.End()

	prev, next := d.aggregator.Apply(ctx, ev, d.now())
	d.alerts.Dispatch(ctx, ev, prev.Health, next.Health)
}
