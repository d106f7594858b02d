package http

import (
	"context"
	"net/http"
	"time"

	"fleetpulse/internal/core/domain"
	"fleetpulse/internal/core/services"
	"fleetpulse/internal/infrastructure/monitoring"
	"fleetpulse/pkg/errors"
	"fleetpulse/pkg/validation"

	"github.com/gin-gonic/gin"
)

// Connection is the slice of the connection manager the API exposes.
type Connection interface {
	State() domain.ConnectionState
	Stats() domain.ConnectionStats
	Phase() domain.ConnectionPhase
	ForceReconnect(ctx context.Context) error
}

type DashboardHandler struct {
	aggregator    *services.AggregatorService
	alerts        *services.AlertService
	health        *services.HealthService
	subscriptions *services.SubscriptionService
	activity      *services.ActivityService
	connection    Connection
	checker       *monitoring.HealthChecker
	metrics       http.Handler
	now           func() time.Time
}

type DashboardDeps struct {
	Aggregator    *services.AggregatorService
	Alerts        *services.AlertService
	Health        *services.HealthService
	Subscriptions *services.SubscriptionService
	Activity      *services.ActivityService
	Connection    Connection
	Checker       *monitoring.HealthChecker
	// Metrics serves /metrics when set.
	Metrics http.Handler
}

func NewDashboardHandler(deps DashboardDeps) *DashboardHandler {
	return &DashboardHandler{
		aggregator:    deps.Aggregator,
		alerts:        deps.Alerts,
		health:        deps.Health,
		subscriptions: deps.Subscriptions,
		activity:      deps.Activity,
		connection:    deps.Connection,
		checker:       deps.Checker,
		metrics:       deps.Metrics,
		now:           time.Now,
	}
}

func (h *DashboardHandler) SetupRoutes(router *gin.Engine) {
	router.GET("/health", h.Health)
	router.GET("/ready", h.Ready)
	if h.metrics != nil {
		router.GET("/metrics", gin.WrapH(h.metrics))
	}

	api := router.Group("/api/v1")
	{
		api.GET("/snapshot", h.GetSnapshot)
		api.GET("/system-health", h.GetSystemHealth)
		api.GET("/dashboard-health", h.GetDashboardHealth)
		api.GET("/locations", h.ListLocations)
		api.GET("/locations/:id", h.GetLocation)

		api.GET("/alerts", h.ListAlerts)
		api.POST("/alerts/:id/ack", h.AcknowledgeAlert)
		api.DELETE("/alerts", h.ClearAlerts)

		api.GET("/connection", h.GetConnection)
		api.POST("/connection/reconnect", h.Reconnect)

		api.POST("/subscriptions", h.Subscribe)
		api.DELETE("/subscriptions", h.Unsubscribe)

		api.POST("/activity", h.ReportActivity)
	}
}

func (h *DashboardHandler) GetSnapshot(c *gin.Context) {
	c.JSON(http.StatusOK, h.aggregator.Snapshot())
}

func (h *DashboardHandler) GetSystemHealth(c *gin.Context) {
	c.JSON(http.StatusOK, h.aggregator.SystemHealth())
}

func (h *DashboardHandler) GetDashboardHealth(c *gin.Context) {
	c.JSON(http.StatusOK, h.health.Compute(h.now()))
}

func (h *DashboardHandler) ListLocations(c *gin.Context) {
	locations, err := h.aggregator.Locations(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"locations": locations,
		"count":     len(locations),
	})
}

func (h *DashboardHandler) GetLocation(c *gin.Context) {
	id := c.Param("id")
	if err := validation.ValidateEntityID(id, "driver id"); err != nil {
		_ = c.Error(errors.NewInvalidInputError(err.Error()))
		return
	}

	location, err := h.aggregator.Location(c.Request.Context(), id)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, location)
}

func (h *DashboardHandler) ListAlerts(c *gin.Context) {
	alerts := h.alerts.Alerts()
	if c.Query("all") == "true" {
		alerts = h.alerts.AllAlerts()
	}
	c.JSON(http.StatusOK, gin.H{
		"alerts":         alerts,
		"unacknowledged": h.alerts.UnacknowledgedCount(),
	})
}

func (h *DashboardHandler) AcknowledgeAlert(c *gin.Context) {
	if err := h.alerts.Acknowledge(c.Request.Context(), c.Param("id")); err != nil {
		_ = c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *DashboardHandler) ClearAlerts(c *gin.Context) {
	h.alerts.Clear()
	c.Status(http.StatusNoContent)
}

func (h *DashboardHandler) GetConnection(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"phase": h.connection.Phase(),
		"state": h.connection.State(),
		"stats": h.connection.Stats(),
	})
}

func (h *DashboardHandler) Reconnect(c *gin.Context) {
	if err := h.connection.ForceReconnect(c.Request.Context()); err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"phase": h.connection.Phase()})
}

type subscriptionRequest struct {
	Channels []string                   `json:"channels"`
	Filters  *domain.SubscriptionFilter `json:"filters"`
}

func (h *DashboardHandler) Subscribe(c *gin.Context) {
	var req subscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(errors.NewInvalidInputError(err.Error()))
		return
	}
	if len(req.Channels) == 0 && req.Filters == nil {
		_ = c.Error(errors.NewInvalidInputError("channels or filters required"))
		return
	}

	for _, ch := range req.Channels {
		if err := validation.ValidateChannel(ch); err != nil {
			_ = c.Error(errors.NewInvalidInputError(err.Error()))
			return
		}
	}

	if err := h.subscriptions.Subscribe(c.Request.Context(), req.Channels, req.Filters); err != nil {
		_ = c.Error(err)
		return
	}
	h.subscriptionState(c)
}

func (h *DashboardHandler) Unsubscribe(c *gin.Context) {
	var req subscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil || len(req.Channels) == 0 {
		_ = c.Error(errors.NewInvalidInputError("channels required"))
		return
	}

	if err := h.subscriptions.Unsubscribe(c.Request.Context(), req.Channels); err != nil {
		_ = c.Error(err)
		return
	}
	h.subscriptionState(c)
}

func (h *DashboardHandler) subscriptionState(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"channels": h.subscriptions.Channels(),
		"filters":  h.subscriptions.Filters(),
	})
}

func (h *DashboardHandler) ReportActivity(c *gin.Context) {
	var req struct {
		Kind string `json:"kind" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(errors.NewInvalidInputError(err.Error()))
		return
	}

	kind := services.ActivityKind(req.Kind)
	if !kind.Valid() {
		_ = c.Error(errors.NewInvalidInputError("kind must be activity, foreground or background"))
		return
	}

	sent, err := h.activity.Report(kind)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sent": sent})
}

func (h *DashboardHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": h.now(),
		"dashboard": h.health.Compute(h.now()),
	})
}

func (h *DashboardHandler) Ready(c *gin.Context) {
	status := h.checker.CheckAll(c.Request.Context())
	code := http.StatusOK
	if status.Status != "healthy" {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, status)
}
