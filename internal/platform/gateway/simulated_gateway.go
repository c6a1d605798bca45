package gateway

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/shared-event-wallet/internal/domain/shared"
)

// SimulatedGateway stands in for the provider when none is configured. It
// never touches the network and always settles deposits synchronously.
type SimulatedGateway struct {
	logger *slog.Logger
}

func NewSimulatedGateway(logger *slog.Logger) *SimulatedGateway {
	return &SimulatedGateway{logger: logger}
}

func (g *SimulatedGateway) CreateWallet(_ context.Context, eventID uuid.UUID) (string, error) {
	return "sim_wallet_" + eventID.String(), nil
}

func (g *SimulatedGateway) CreateDepositIntent(context.Context, DepositRequest) (*DepositIntent, error) {
	return nil, shared.ErrGatewayNotSupported
}

func (g *SimulatedGateway) ChargeDeposit(_ context.Context, req DepositRequest) (string, error) {
	ref := "sim_tx_" + uuid.NewString()
	g.logger.Debug("Simulated deposit charge", "event_id", req.EventID.String(), "amount", req.Amount, "ref", ref)
	return ref, nil
}

// Payout derives its ref from the idempotency key so retries return the same ref
func (g *SimulatedGateway) Payout(_ context.Context, req PayoutRequest) (string, error) {
	key := req.IdempotencyKey
	if key == "" {
		key = uuid.NewString()
	}
	return "sim_refund_" + key, nil
}
