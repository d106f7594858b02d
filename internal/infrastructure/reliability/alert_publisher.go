package reliability

import (
	"context"

	"fleetpulse/internal/core/domain"
	"fleetpulse/internal/core/ports"
	"fleetpulse/pkg/circuitbreaker"
	"fleetpulse/pkg/retry"

	"go.uber.org/zap"
)

// AlertPublisher wraps a fan-out publisher with retries and a circuit
// breaker, so a dead broker costs one fast failure per alert instead of a
// full retry cycle.
type AlertPublisher struct {
	next    ports.AlertPublisher
	retry   retry.Config
	breaker *circuitbreaker.CircuitBreaker
	logger  *zap.SugaredLogger
}

func NewAlertPublisher(next ports.AlertPublisher, retryConfig retry.Config, cbConfig circuitbreaker.Config, logger *zap.SugaredLogger) *AlertPublisher {
	retryConfig.NonRetryableErrors = append(retryConfig.NonRetryableErrors, circuitbreaker.ErrOpen)

	p := &AlertPublisher{
		next:    next,
		retry:   retryConfig,
		breaker: circuitbreaker.New(cbConfig),
		logger:  logger,
	}
	p.breaker.OnStateChange(func(from, to circuitbreaker.State) {
		logger.Infow("alert fan-out circuit breaker state changed",
			"from", from.String(),
			"to", to.String(),
		)
	})
	return p
}

func (p *AlertPublisher) PublishAlert(ctx context.Context, alert domain.RealtimeAlert) error {
	return retry.Retry(ctx, p.retry, func() error {
		return p.breaker.Execute(ctx, func() error {
			return p.next.PublishAlert(ctx, alert)
		})
	})
}

func (p *AlertPublisher) Stats() circuitbreaker.Stats {
	return p.breaker.GetStats()
}
