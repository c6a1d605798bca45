// Package consumer turns payment gateway callbacks read from Kafka into
// confirmed deposits.
package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shared-event-wallet/internal/domain/ledger"
	"github.com/shared-event-wallet/internal/domain/shared"
	"github.com/shared-event-wallet/internal/logger"
	"github.com/shared-event-wallet/internal/platform/messaging/producers"
)

// DepositConfirmer applies a gateway callback to its pending deposit.
// *service.LedgerStore satisfies it.
type DepositConfirmer interface {
	ConfirmDeposit(ctx context.Context, ev shared.GatewayEvent) (*ledger.Transaction, error)
}

// GatewayEventHandler handles gateway events from Kafka
type GatewayEventHandler struct {
	confirmer DepositConfirmer
	producer  producers.DeadLetterPublisher
	logger    *slog.Logger
}

func NewGatewayEventHandler(
	logger *slog.Logger,
	confirmer DepositConfirmer,
	producer producers.DeadLetterPublisher,
) *GatewayEventHandler {
	return &GatewayEventHandler{
		confirmer: confirmer,
		producer:  producer,
		logger:    logger,
	}
}

// HandleMessage processes one Kafka message. A nil return commits the offset.
func (h *GatewayEventHandler) HandleMessage(ctx context.Context, key []byte, value []byte) error {
	var ev shared.GatewayEvent
	if err := json.Unmarshal(value, &ev); err != nil {
		reason := "Failed to unmarshal gateway event from Kafka message"
		h.logger.Error(reason,
			"error", err,
			"message_key", string(key),
		)
		if h.park(ctx, key, value, fmt.Sprintf("%s: %s", reason, err.Error())) {
			return nil
		}
		return fmt.Errorf("failed to unmarshal message value: %w", err)
	}

	if ev.CorrelationID != "" && logger.CorrelationID(ctx) == "" {
		ctx = logger.WithCorrelationID(ctx, ev.CorrelationID)
	}
	log := logger.FromContext(ctx, h.logger)

	if !ev.Type.ConfirmsDeposit() {
		log.Info("Ignoring gateway event", "type", string(ev.Type), "intent_id", ev.IntentID)
		return nil
	}

	log.Info("Received gateway event",
		"type", string(ev.Type),
		"intent_id", ev.IntentID,
		"event_id", ev.EventID.String(),
		"amount", ev.Amount,
	)

	txn, err := h.confirmer.ConfirmDeposit(ctx, ev)
	if err != nil {
		if permanent(err) {
			log.Warn("Gateway event cannot be applied", "intent_id", ev.IntentID, "error", err)
			if h.park(ctx, key, value, err.Error()) {
				return nil
			}
		}
		log.Error("Failed to confirm deposit", "intent_id", ev.IntentID, "error", err)
		return fmt.Errorf("confirming deposit for intent %s failed: %w", ev.IntentID, err)
	}

	log.Info("Deposit confirmed from gateway event", "transaction_id", txn.ID.String())
	return nil
}

// park sends the message to the DLQ and reports whether it got there
func (h *GatewayEventHandler) park(ctx context.Context, key, value []byte, reason string) bool {
	if h.producer == nil {
		return false
	}
	if err := h.producer.PublishToDLQ(ctx, string(key), value, reason); err != nil {
		h.logger.Error("Failed to publish message to DLQ",
			"dlq_error", err,
			"message_key", string(key),
		)
		return false
	}
	return true
}

// permanent errors will fail the same way on every redelivery
func permanent(err error) bool {
	return errors.Is(err, shared.NotFoundError{}) ||
		errors.Is(err, shared.StateConflictError{}) ||
		errors.Is(err, shared.ValidationError{})
}
