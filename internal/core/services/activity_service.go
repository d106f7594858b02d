package services

import (
	"fmt"
	"time"

	"fleetpulse/internal/core/domain"
	"fleetpulse/internal/core/ports"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

type ActivityKind string

const (
	ActivityUser       ActivityKind = "activity"
	ActivityForeground ActivityKind = "foreground"
	ActivityBackground ActivityKind = "background"
)

var activityEvents = map[ActivityKind]string{
	ActivityUser:       domain.EventActivity,
	ActivityForeground: domain.EventMobileForeground,
	ActivityBackground: domain.EventMobileBackground,
}

func (k ActivityKind) Valid() bool {
	_, ok := activityEvents[k]
	return ok
}

// ActivityService forwards presence hints. Plain activity pings are
// throttled; foreground/background transitions always go out.
type ActivityService struct {
	transport ports.Transport
	limiter   *rate.Limiter
	logger    *zap.SugaredLogger
}

func NewActivityService(transport ports.Transport, minInterval time.Duration, logger *zap.SugaredLogger) *ActivityService {
	limit := rate.Inf
	if minInterval > 0 {
		limit = rate.Every(minInterval)
	}
	return &ActivityService{
		transport: transport,
		limiter:   rate.NewLimiter(limit, 1),
		logger:    logger,
	}
}

// Report sends the hint for kind. It returns false when the hint was
// throttled and domain.ErrNotConnected when it was dropped.
func (s *ActivityService) Report(kind ActivityKind) (bool, error) {
	event, ok := activityEvents[kind]
	if !ok {
		return false, fmt.Errorf("unknown activity kind %q", kind)
	}
	if !s.transport.IsConnected() {
		return false, domain.ErrNotConnected
	}
	if kind == ActivityUser && !s.limiter.Allow() {
		return false, nil
	}
	if err := s.transport.Send(event, struct{}{}); err != nil {
		s.logger.Debugw("activity hint not sent", "kind", string(kind), "error", err)
		return false, err
	}
	return true, nil
}
