package gateway

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"

	"github.com/shared-event-wallet/internal/config"
	"github.com/shared-event-wallet/internal/domain/shared"
)

// BreakerGateway guards another gateway with a circuit breaker. Every error
// it returns is an ExternalServiceError.
type BreakerGateway struct {
	next    PaymentGateway
	breaker *gobreaker.CircuitBreaker
	logger  *slog.Logger
}

func NewBreakerGateway(logger *slog.Logger, next PaymentGateway, cfg config.BreakerConfig) *BreakerGateway {
	settings := gobreaker.Settings{
		Name:        serviceName,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.ConsecutiveFailures >= cfg.ConsecutiveFailures ||
				(counts.Requests >= cfg.MinRequests && failureRatio >= cfg.FailureRatio)
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, shared.ErrGatewayNotSupported) || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	}

	return &BreakerGateway{
		next:    next,
		breaker: gobreaker.NewCircuitBreaker(settings),
		logger:  logger,
	}
}

// State exposes the breaker state for health reporting
func (g *BreakerGateway) State() gobreaker.State {
	return g.breaker.State()
}

func (g *BreakerGateway) CreateWallet(ctx context.Context, eventID uuid.UUID) (string, error) {
	return execute(g, func() (string, error) { return g.next.CreateWallet(ctx, eventID) })
}

func (g *BreakerGateway) CreateDepositIntent(ctx context.Context, req DepositRequest) (*DepositIntent, error) {
	return execute(g, func() (*DepositIntent, error) { return g.next.CreateDepositIntent(ctx, req) })
}

func (g *BreakerGateway) ChargeDeposit(ctx context.Context, req DepositRequest) (string, error) {
	return execute(g, func() (string, error) { return g.next.ChargeDeposit(ctx, req) })
}

func (g *BreakerGateway) Payout(ctx context.Context, req PayoutRequest) (string, error) {
	return execute(g, func() (string, error) { return g.next.Payout(ctx, req) })
}

func execute[T any](g *BreakerGateway, fn func() (T, error)) (T, error) {
	var zero T
	result, err := g.breaker.Execute(func() (any, error) {
		return fn()
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			g.logger.Warn("Payment gateway call rejected by circuit breaker", "error", err)
		}
		return zero, asExternal(err)
	}
	return result.(T), nil
}
