package services

import (
	"context"
	"testing"
	"time"

	"fleetpulse/internal/core/domain"
	"fleetpulse/internal/infrastructure/repositories/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type pipeline struct {
	dashboard  *DashboardService
	aggregator *AggregatorService
	alerts     *alertFixture
}

func newPipeline(t *testing.T) *pipeline {
	t.Helper()
	logger := zaptest.NewLogger(t).Sugar()
	alerts := newAlertFixture(t, grantingNotifier())
	aggregator := NewAggregatorService(memory.NewMemoryLocationRepository(), 0, logger)
	dashboard := NewDashboardService(aggregator, alerts.svc, func() string { return "sock-1" })
	dashboard.now = alerts.clock.Now
	return &pipeline{dashboard: dashboard, aggregator: aggregator, alerts: alerts}
}

func TestDashboard_MetricsUpdated(t *testing.T) {
	p := newPipeline(t)

	p.dashboard.HandleEvent(context.Background(), domain.MetricsUpdated{
		ActiveDrivers:       42,
		ActiveBookings:      7,
		EmergencyIncidents:  1,
		AverageResponseTime: 3.2,
		HealthScore:         95,
		SystemLoad:          0.4,
	})

	snapshot := p.aggregator.Snapshot()
	assert.Equal(t, 42, snapshot.Drivers.Total)
	assert.Equal(t, 1, snapshot.Emergencies.Total)
	assert.Equal(t, 95.0, snapshot.System.HealthScore)
	assert.Empty(t, p.alerts.svc.Alerts())
}

func TestDashboard_DriverEmergency(t *testing.T) {
	p := newPipeline(t)
	ctx := context.Background()
	ts := time.Date(2024, 3, 1, 11, 59, 0, 0, time.UTC)

	p.dashboard.HandleEvent(ctx, domain.DriverStatusChanged{DriverID: "D1", NewStatus: domain.DriverActive})
	before := p.aggregator.Snapshot()
	require.Equal(t, 1, before.Drivers.Breakdown[domain.DriverActive])

	p.dashboard.HandleEvent(ctx, domain.DriverStatusChanged{
		DriverID:  "D1",
		OldStatus: domain.DriverActive,
		NewStatus: domain.DriverEmergency,
		RegionID:  "NCR",
		Timestamp: ts,
	})

	after := p.aggregator.Snapshot()
	assert.Equal(t, 0, after.Drivers.Breakdown[domain.DriverActive])
	assert.Equal(t, 1, after.Drivers.Breakdown[domain.DriverEmergency])

	alerts := p.alerts.svc.Alerts()
	require.Len(t, alerts, 1)
	assert.Equal(t, domain.PriorityCritical, alerts[0].Priority)
	assert.Equal(t, "D1", alerts[0].Source)
	assert.Equal(t, ts, alerts[0].Timestamp)

	shown := p.alerts.notifier.shown()
	require.Len(t, shown, 1)
	assert.True(t, shown[0].RequireInteraction)
}

func TestDashboard_LocationsAreStored(t *testing.T) {
	p := newPipeline(t)
	ctx := context.Background()

	p.dashboard.HandleEvent(ctx, domain.LocationBatch{Updates: []domain.LocationUpdate{
		{DriverID: "A", Lat: 1, Lng: 1},
		{DriverID: "B", Lat: 2, Lng: 2},
	}})
	p.dashboard.HandleEvent(ctx, domain.DriverLocationChanged{LocationUpdate: domain.LocationUpdate{DriverID: "C", Lat: 3, Lng: 3}})

	locations, err := p.aggregator.Locations(ctx)
	require.NoError(t, err)
	require.Len(t, locations, 3)
	assert.Equal(t, "A", locations[0].DriverID)

	loc, err := p.aggregator.Location(ctx, "C")
	require.NoError(t, err)
	assert.Equal(t, 3.0, loc.Lat)
	assert.Equal(t, p.alerts.clock.Now(), loc.LastUpdate)
}

func TestAggregator_PruneLocations(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	logger := zaptest.NewLogger(t).Sugar()

	agg := NewAggregatorService(memory.NewMemoryLocationRepository(), time.Minute, logger)
	agg.Apply(ctx, domain.DriverLocationChanged{LocationUpdate: domain.LocationUpdate{DriverID: "old"}}, now.Add(-2*time.Minute))
	agg.Apply(ctx, domain.DriverLocationChanged{LocationUpdate: domain.LocationUpdate{DriverID: "new"}}, now)

	removed, err := agg.PruneLocations(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	_, err = agg.Location(ctx, "old")
	assert.ErrorIs(t, err, domain.ErrLocationNotFound)

	keep := NewAggregatorService(memory.NewMemoryLocationRepository(), 0, logger)
	keep.Apply(ctx, domain.DriverLocationChanged{LocationUpdate: domain.LocationUpdate{DriverID: "old"}}, now.Add(-time.Hour))
	removed, err = keep.PruneLocations(ctx, now)
	require.NoError(t, err)
	assert.Zero(t, removed)
}

func TestAggregator_RepeatedIncidentAckFoldsOnce(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	agg := NewAggregatorService(memory.NewMemoryLocationRepository(), 0, zaptest.NewLogger(t).Sugar())

	agg.Apply(ctx, domain.IncidentAlert{IncidentID: "INC-1", Priority: domain.PriorityHigh}, now)
	agg.Apply(ctx, domain.IncidentAlert{IncidentID: "INC-2", Priority: domain.PriorityHigh}, now)

	// two consoles acknowledged INC-1; the server echoes both
	agg.Apply(ctx, domain.IncidentAcknowledged{IncidentID: "INC-1", AcknowledgedBy: "ops-1"}, now)
	prev, next := agg.Apply(ctx, domain.IncidentAcknowledged{IncidentID: "INC-1", AcknowledgedBy: "ops-2"}, now)

	assert.Equal(t, prev.Snapshot.Emergencies, next.Snapshot.Emergencies)
	em := agg.Snapshot().Emergencies
	assert.Equal(t, 1, em.Active)
	assert.Equal(t, 1, em.Acknowledged)

	agg.Apply(ctx, domain.IncidentAcknowledged{IncidentID: "INC-2"}, now)
	em = agg.Snapshot().Emergencies
	assert.Equal(t, 0, em.Active)
	assert.Equal(t, 2, em.Acknowledged)
}

func TestAggregator_SnapshotIsCopy(t *testing.T) {
	agg := NewAggregatorService(memory.NewMemoryLocationRepository(), 0, zaptest.NewLogger(t).Sugar())
	agg.Apply(context.Background(), domain.DriverStatusChanged{DriverID: "D1", NewStatus: domain.DriverBusy}, time.Now())

	s := agg.Snapshot()
	s.Drivers.Breakdown[domain.DriverBusy] = 99

	assert.Equal(t, 1, agg.Snapshot().Drivers.Breakdown[domain.DriverBusy])
}
