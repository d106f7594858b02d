package services

import (
	"context"
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"fleetpulse/internal/core/domain"
	"fleetpulse/internal/core/ports"
	"fleetpulse/pkg/cache"
	"fleetpulse/pkg/tracing"
	"fleetpulse/pkg/utils"

	"go.uber.org/zap"
)

const maxAlertMessage = 500

type AlertConfig struct {
	MaxRetained          int
	MaxVisible           int
	NotificationsEnabled bool
	SoundEnabled         bool
	SoundDir             string
	AutoDismiss          time.Duration
	DedupeWindow         time.Duration
	Icon                 string
	Badge                string

	// PublishQueue bounds alerts waiting for fan-out; a full queue drops.
	PublishQueue   int
	PublishTimeout time.Duration
}

func DefaultAlertConfig() AlertConfig {
	return AlertConfig{
		MaxRetained:          50,
		MaxVisible:           20,
		NotificationsEnabled: true,
		SoundEnabled:         true,
		SoundDir:             "/sounds",
		AutoDismiss:          5 * time.Second,
		DedupeWindow:         30 * time.Second,
		Icon:                 "/icons/alert.png",
		Badge:                "/icons/badge.png",
		PublishQueue:         64,
		PublishTimeout:       5 * time.Second,
	}
}

// AlertMetrics receives alert surface counters.
type AlertMetrics interface {
	AlertRaised(alertType domain.AlertType, priority domain.AlertPriority)
	UnacknowledgedAlerts(n int)
}

type nopAlertMetrics struct{}

func (nopAlertMetrics) AlertRaised(domain.AlertType, domain.AlertPriority) {}
func (nopAlertMetrics) UnacknowledgedAlerts(int)                           {}

type AlertOption func(*AlertService)

func WithAlertPublisher(p ports.AlertPublisher) AlertOption {
	return func(s *AlertService) { s.publisher = p }
}

func WithAlertMetrics(m AlertMetrics) AlertOption {
	return func(s *AlertService) {
		if m != nil {
			s.metrics = m
		}
	}
}

func WithAlertClock(now func() time.Time) AlertOption {
	return func(s *AlertService) { s.now = now }
}

// AlertService is the notification surface: it turns alert-worthy events
// into a bounded alert list and permission-gated notifications. It is the
// only writer of alerts and of their acknowledged flag.
type AlertService struct {
	cfg       AlertConfig
	transport ports.Transport
	notifier  ports.Notifier
	sound     ports.SoundPlayer
	publisher ports.AlertPublisher
	outbox    chan domain.RealtimeAlert
	metrics   AlertMetrics
	tags      *cache.Cache
	now       func() time.Time
	logger    *zap.SugaredLogger

	mu         sync.RWMutex
	alerts     []domain.RealtimeAlert
	permission domain.Permission
}

func NewAlertService(cfg AlertConfig, transport ports.Transport, notifier ports.Notifier, sound ports.SoundPlayer, logger *zap.SugaredLogger, opts ...AlertOption) *AlertService {
	s := &AlertService{
		cfg:        cfg,
		transport:  transport,
		notifier:   notifier,
		sound:      sound,
		metrics:    nopAlertMetrics{},
		now:        time.Now,
		logger:     logger,
		permission: domain.PermissionDefault,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.cfg.MaxRetained <= 0 {
		s.cfg.MaxRetained = 50
	}
	if s.cfg.MaxVisible <= 0 || s.cfg.MaxVisible > s.cfg.MaxRetained {
		s.cfg.MaxVisible = s.cfg.MaxRetained
	}
	if s.cfg.PublishQueue <= 0 {
		s.cfg.PublishQueue = 64
	}
	if s.cfg.PublishTimeout <= 0 {
		s.cfg.PublishTimeout = 5 * time.Second
	}
	if s.publisher != nil {
		s.outbox = make(chan domain.RealtimeAlert, s.cfg.PublishQueue)
	}
	s.tags = cache.NewCacheWithClock(cfg.DedupeWindow, s.now)
	return s
}

// RequestPermission asks the host once at startup. A denial only disables
// notification and sound side effects.
func (s *AlertService) RequestPermission(ctx context.Context) domain.Permission {
	perm := domain.PermissionDenied
	if s.notifier != nil {
		p, err := s.notifier.RequestPermission(ctx)
		if err != nil {
			s.logger.Warnw("notification permission request failed", "error", err)
		} else {
			perm = p
		}
	}
	s.mu.Lock()
	s.permission = perm
	s.mu.Unlock()
	s.logger.Infow("notification permission", "permission", string(perm))
	return perm
}

func (s *AlertService) Permission() domain.Permission {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.permission
}

// Dispatch decides the side effects of one folded event. prevHealth and
// nextHealth are the system health records around the fold.
func (s *AlertService) Dispatch(ctx context.Context, ev domain.Event, prevHealth, nextHealth domain.SystemHealth) {
	switch e := ev.(type) {
	case domain.DriverStatusChanged:
		if e.NewStatus == domain.DriverEmergency && e.OldStatus != domain.DriverEmergency {
			s.Raise(ctx, s.driverEmergencyAlert(e))
		}
	case domain.IncidentAlert:
		s.Raise(ctx, s.incidentAlert(e))
	case domain.IncidentAcknowledged:
		s.markIncidentAcknowledged(e.IncidentID)
	case domain.HealthCheck:
		if alert, ok := s.healthAlert(prevHealth, nextHealth); ok {
			s.Raise(ctx, alert)
		}
	case domain.Announcement:
		s.Raise(ctx, s.announcementAlert(e))
	}
}

// Raise prepends alert, trims the list and fires notification side effects.
func (s *AlertService) Raise(ctx context.Context, alert domain.RealtimeAlert) domain.RealtimeAlert {
	if alert.ID == "" {
		alert.ID = utils.GenerateAlertID()
	}
	if alert.Timestamp.IsZero() {
		alert.Timestamp = s.now()
	}
	alert.Title = utils.TruncateString(utils.SanitizeString(alert.Title), maxAlertMessage)
	alert.Message = utils.TruncateString(utils.SanitizeString(alert.Message), maxAlertMessage)

	s.mu.Lock()
	s.alerts = append([]domain.RealtimeAlert{alert}, s.alerts...)
	if len(s.alerts) > s.cfg.MaxRetained {
		s.alerts = s.alerts[:s.cfg.MaxRetained]
	}
	perm := s.permission
	unacked := s.unacknowledgedLocked()
	s.mu.Unlock()

	tracing.AddSpanAttributes(ctx,
		tracing.AlertIDKey.String(alert.ID),
		tracing.PriorityKey.String(string(alert.Priority)),
	)
	s.metrics.AlertRaised(alert.Type, alert.Priority)
	s.metrics.UnacknowledgedAlerts(unacked)
	s.logger.Infow("alert raised",
		"alert_id", alert.ID,
		"type", string(alert.Type),
		"priority", string(alert.Priority),
		"source", alert.Source,
	)

	if s.outbox != nil {
		select {
		case s.outbox <- alert:
		default:
			s.logger.Warnw("alert fan-out queue full, dropping alert", "alert_id", alert.ID)
		}
	}

	if s.cfg.NotificationsEnabled && perm == domain.PermissionGranted {
		s.notify(ctx, alert)
	}
	return alert
}

// RunPublisher drains the fan-out queue until ctx is done. Raise only
// enqueues, so a slow broker never stalls event handling.
func (s *AlertService) RunPublisher(ctx context.Context) {
	if s.outbox == nil {
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case alert := <-s.outbox:
			pubCtx, cancel := context.WithTimeout(ctx, s.cfg.PublishTimeout)
			if err := s.publisher.PublishAlert(pubCtx, alert); err != nil && ctx.Err() == nil {
				s.logger.Warnw("failed to publish alert", "alert_id", alert.ID, "error", err)
			}
			cancel()
		}
	}
}

func (s *AlertService) notify(ctx context.Context, alert domain.RealtimeAlert) {
	n := BuildNotification(s.cfg, alert)
	if s.cfg.DedupeWindow > 0 && !s.tags.SetIfAbsent(n.Tag, alert.ID) {
		s.logger.Debugw("notification suppressed by tag", "tag", n.Tag, "alert_id", alert.ID)
		return
	}

	if s.notifier != nil {
		if err := s.notifier.Show(ctx, n); err != nil {
			s.logger.Warnw("failed to show notification", "alert_id", alert.ID, "error", err)
		}
	}
	if s.cfg.SoundEnabled && s.sound != nil {
		if err := s.sound.Play(ctx, SoundPath(s.cfg.SoundDir, alert.Priority)); err != nil {
			s.logger.Warnw("failed to play alert sound", "alert_id", alert.ID, "error", err)
		}
	}
}

// BuildNotification maps an alert to the host notification shape. Critical
// alerts stay until dismissed; everything else auto-dismisses.
func BuildNotification(cfg AlertConfig, alert domain.RealtimeAlert) domain.Notification {
	n := domain.Notification{
		Title:    alert.Title,
		Body:     alert.Message,
		Icon:     cfg.Icon,
		Badge:    cfg.Badge,
		Tag:      notificationTag(alert),
		Priority: alert.Priority,
	}
	if alert.Priority == domain.PriorityCritical {
		n.RequireInteraction = true
	} else {
		n.AutoDismiss = cfg.AutoDismiss
	}
	return n
}

// SoundPath is the per-priority audio file convention.
func SoundPath(dir string, priority domain.AlertPriority) string {
	return path.Join(dir, string(priority)+".mp3")
}

func notificationTag(alert domain.RealtimeAlert) string {
	switch {
	case alert.IncidentID != "":
		return "incident:" + alert.IncidentID
	case alert.Type == domain.AlertEmergency && alert.Source != "":
		return "driver:" + alert.Source
	case alert.Source == healthAlertSource:
		return "system-health"
	default:
		return alert.ID
	}
}

// Acknowledge flips the acknowledged flag. For incident-backed alerts the
// first call also tells the server; repeated calls are no-ops.
func (s *AlertService) Acknowledge(ctx context.Context, id string) error {
	s.mu.Lock()
	idx := -1
	for i := range s.alerts {
		if s.alerts[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		s.mu.Unlock()
		return domain.ErrAlertNotFound
	}
	if s.alerts[idx].Acknowledged {
		s.mu.Unlock()
		return nil
	}
	s.alerts[idx].Acknowledged = true
	incidentID := s.alerts[idx].IncidentID
	unacked := s.unacknowledgedLocked()
	s.mu.Unlock()

	s.metrics.UnacknowledgedAlerts(unacked)
	s.logger.Infow("alert acknowledged", "alert_id", id, "incident_id", incidentID)

	if incidentID != "" && s.transport != nil {
		payload := domain.AcknowledgePayload{
			IncidentID:     incidentID,
			AcknowledgedAt: s.now().UTC().Format(time.RFC3339),
		}
		ctx, span := tracing.TraceOutboundEvent(ctx, domain.EventIncidentAcknowledge)
		defer span.End()
		if err := s.transport.Send(domain.EventIncidentAcknowledge, payload); err != nil {
			tracing.RecordError(ctx, err)
			s.logger.Warnw("failed to send incident acknowledgement", "incident_id", incidentID, "error", err)
		}
	}
	return nil
}

// markIncidentAcknowledged applies a server-side acknowledgement locally
// without echoing it back.
func (s *AlertService) markIncidentAcknowledged(incidentID string) {
	s.mu.Lock()
	changed := false
	for i := range s.alerts {
		if s.alerts[i].IncidentID == incidentID && !s.alerts[i].Acknowledged {
			s.alerts[i].Acknowledged = true
			changed = true
		}
	}
	unacked := s.unacknowledgedLocked()
	s.mu.Unlock()

	if changed {
		s.metrics.UnacknowledgedAlerts(unacked)
	}
}

// Clear empties the local list. Server-side incidents are untouched.
func (s *AlertService) Clear() {
	s.mu.Lock()
	s.alerts = nil
	s.mu.Unlock()
	s.tags.Clear()
	s.metrics.UnacknowledgedAlerts(0)
}

// Alerts returns the newest MaxVisible alerts.
func (s *AlertService) Alerts() []domain.RealtimeAlert {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := len(s.alerts)
	if n > s.cfg.MaxVisible {
		n = s.cfg.MaxVisible
	}
	return append([]domain.RealtimeAlert(nil), s.alerts[:n]...)
}

// AllAlerts returns every retained alert.
func (s *AlertService) AllAlerts() []domain.RealtimeAlert {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.RealtimeAlert(nil), s.alerts...)
}

func (s *AlertService) UnacknowledgedCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.unacknowledgedLocked()
}

func (s *AlertService) unacknowledgedLocked() int {
	n := 0
	for _, a := range s.alerts {
		if !a.Acknowledged {
			n++
		}
	}
	return n
}

const (
	healthAlertSource       = "system:health_check"
	announcementAlertSource = "system:announcement"
)

func (s *AlertService) driverEmergencyAlert(e domain.DriverStatusChanged) domain.RealtimeAlert {
	msg := fmt.Sprintf("Driver %s switched to emergency status", e.DriverID)
	if e.RegionID != "" {
		msg += " in region " + e.RegionID
	}
	return domain.RealtimeAlert{
		Type:      domain.AlertEmergency,
		Priority:  domain.PriorityCritical,
		Title:     "Driver emergency",
		Message:   msg,
		Timestamp: e.Timestamp,
		Source:    e.DriverID,
		RegionID:  e.RegionID,
	}
}

func (s *AlertService) incidentAlert(e domain.IncidentAlert) domain.RealtimeAlert {
	title := e.Title
	if title == "" {
		title = "New incident"
	}
	msg := e.Message
	if msg == "" {
		msg = fmt.Sprintf("Incident %s reported", e.IncidentID)
	}
	return domain.RealtimeAlert{
		Type:       domain.AlertEmergency,
		Priority:   e.Priority,
		Title:      title,
		Message:    msg,
		Timestamp:  e.Timestamp,
		Source:     e.DriverID,
		RegionID:   e.RegionID,
		IncidentID: e.IncidentID,
	}
}

func severity(s domain.ServiceStatus) int {
	switch s {
	case domain.StatusDown:
		return 2
	case domain.StatusDegraded:
		return 1
	default:
		return 0
	}
}

// healthAlert fires when overall health gets worse than it was.
func (s *AlertService) healthAlert(prev, next domain.SystemHealth) (domain.RealtimeAlert, bool) {
	if severity(next.OverallHealth) <= severity(prev.OverallHealth) {
		return domain.RealtimeAlert{}, false
	}

	priority := domain.PriorityHigh
	if next.OverallHealth == domain.StatusDown {
		priority = domain.PriorityCritical
	}

	var failing []string
	for name, status := range map[string]domain.ServiceStatus{
		"database":         next.Database.Status,
		"cache":            next.Cache.Status,
		"transport":        next.Transport.Status,
		"locationBatching": next.LocationBatching.Status,
		"emergencyAlerts":  next.EmergencyAlerts.Status,
	} {
		if status != domain.StatusHealthy {
			failing = append(failing, name+"="+string(status))
		}
	}
	msg := "Overall system health is " + string(next.OverallHealth)
	if len(failing) > 0 {
		sort.Strings(failing)
		msg += ": " + strings.Join(failing, ", ")
	}

	return domain.RealtimeAlert{
		Type:      domain.AlertSystem,
		Priority:  priority,
		Title:     "System health " + string(next.OverallHealth),
		Message:   msg,
		Timestamp: next.CheckedAt,
		Source:    healthAlertSource,
	}, true
}

func (s *AlertService) announcementAlert(e domain.Announcement) domain.RealtimeAlert {
	title := e.Title
	if title == "" {
		title = "Announcement"
	}
	return domain.RealtimeAlert{
		Type:      domain.AlertSystem,
		Priority:  e.Priority,
		Title:     title,
		Message:   e.Message,
		Timestamp: e.Timestamp,
		Source:    announcementAlertSource,
		RegionID:  e.RegionID,
	}
}
