package services

import (
	"context"
	"fmt"
	"sync"

	"fleetpulse/internal/core/domain"
	"fleetpulse/internal/core/ports"
	"fleetpulse/pkg/tracing"
	"fleetpulse/pkg/utils"
	"fleetpulse/pkg/validation"

	"go.uber.org/zap"
)

// SubscriptionService tracks the channels this client wants and replays
// them after every (re)connect. Changes requested while disconnected are
// dropped, not queued.
type SubscriptionService struct {
	transport ports.Transport
	logger    *zap.SugaredLogger

	mu       sync.RWMutex
	channels []string
	filters  domain.SubscriptionFilter
}

func NewSubscriptionService(transport ports.Transport, channels []string, filters domain.SubscriptionFilter, logger *zap.SugaredLogger) *SubscriptionService {
	return &SubscriptionService{
		transport: transport,
		logger:    logger,
		channels:  utils.DedupeStrings(channels),
		filters:   filters,
	}
}

// Resubscribe reissues the full subscription. Registered as a connect hook.
func (s *SubscriptionService) Resubscribe(ctx context.Context) {
	s.mu.RLock()
	channels := append([]string(nil), s.channels...)
	filters := s.filters
	s.mu.RUnlock()

	if len(channels) == 0 {
		return
	}
	if err := s.send(ctx, domain.EventSubscribe, newSubscribePayload(channels, filters)); err != nil {
		s.logger.Warnw("resubscribe failed", "channels", channels, "error", err)
		return
	}
	s.logger.Infow("subscribed to channels", "channels", channels)
}

// Subscribe adds channels and optionally replaces the filter. Only the
// channels not already subscribed are sent; a repeated call is a no-op.
func (s *SubscriptionService) Subscribe(ctx context.Context, channels []string, filters *domain.SubscriptionFilter) error {
	channels = utils.DedupeStrings(channels)
	for _, c := range channels {
		if err := validation.ValidateChannel(c); err != nil {
			return fmt.Errorf("subscribe: %w", err)
		}
	}
	if !s.transport.IsConnected() {
		s.logger.Debugw("dropping subscribe while disconnected", "channels", channels)
		return domain.ErrNotConnected
	}

	s.mu.Lock()
	added := missing(s.channels, channels)
	filterChanged := filters != nil && !sameFilter(*filters, s.filters)
	if len(added) == 0 && !filterChanged {
		s.mu.Unlock()
		return nil
	}
	s.channels = append(s.channels, added...)
	if filterChanged {
		s.filters = *filters
	}
	send := added
	if filterChanged {
		send = append([]string(nil), s.channels...)
	}
	current := s.filters
	s.mu.Unlock()

	if len(send) == 0 {
		return nil
	}
	return s.send(ctx, domain.EventSubscribe, newSubscribePayload(send, current))
}

// Unsubscribe removes channels. Channels not subscribed are ignored.
func (s *SubscriptionService) Unsubscribe(ctx context.Context, channels []string) error {
	channels = utils.DedupeStrings(channels)
	if !s.transport.IsConnected() {
		s.logger.Debugw("dropping unsubscribe while disconnected", "channels", channels)
		return domain.ErrNotConnected
	}

	s.mu.Lock()
	var removed []string
	kept := s.channels[:0:0]
	drop := make(map[string]bool, len(channels))
	for _, c := range channels {
		drop[c] = true
	}
	for _, c := range s.channels {
		if drop[c] {
			removed = append(removed, c)
			continue
		}
		kept = append(kept, c)
	}
	s.channels = kept
	s.mu.Unlock()

	if len(removed) == 0 {
		return nil
	}
	return s.send(ctx, domain.EventUnsubscribe, domain.UnsubscribePayload{Channels: removed})
}

func (s *SubscriptionService) send(ctx context.Context, event string, payload interface{}) error {
	ctx, span := tracing.TraceOutboundEvent(ctx, event)
	defer span.End()

	if err := s.transport.Send(event, payload); err != nil {
		tracing.RecordError(ctx, err)
		return err
	}
	return nil
}

func (s *SubscriptionService) Channels() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.channels...)
}

func (s *SubscriptionService) Filters() domain.SubscriptionFilter {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filters
}

func newSubscribePayload(channels []string, filters domain.SubscriptionFilter) domain.SubscribePayload {
	p := domain.SubscribePayload{Channels: channels}
	if !filters.IsZero() {
		f := filters
		p.Filters = &f
	}
	return p
}

func missing(have, want []string) []string {
	set := make(map[string]bool, len(have))
	for _, c := range have {
		set[c] = true
	}
	var out []string
	for _, c := range want {
		if !set[c] {
			out = append(out, c)
		}
	}
	return out
}

func sameFilter(a, b domain.SubscriptionFilter) bool {
	return equalStrings(a.RegionIDs, b.RegionIDs) &&
		equalStrings(a.Roles, b.Roles) &&
		equalStrings(a.EventTypes, b.EventTypes)
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
