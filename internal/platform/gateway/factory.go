package gateway

import (
	"log/slog"

	"github.com/shared-event-wallet/internal/config"
)

// New builds the configured gateway wrapped in a circuit breaker. An empty
// base URL selects the simulated provider.
func New(logger *slog.Logger, cfg *config.Config) *BreakerGateway {
	var next PaymentGateway
	if cfg.Gateway.BaseURL == "" {
		logger.Warn("GATEWAY_BASE_URL is empty, using simulated payment gateway")
		next = NewSimulatedGateway(logger)
	} else {
		next = NewHTTPGateway(logger, cfg.Gateway)
	}
	return NewBreakerGateway(logger, next, cfg.Breaker)
}
