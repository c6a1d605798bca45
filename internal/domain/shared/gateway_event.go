package shared

import (
	"time"

	"github.com/google/uuid"
)

// GatewayEventType names a payment gateway callback
type GatewayEventType string

const (
	GatewayEventIntentSucceeded  GatewayEventType = "payment_intent.succeeded"
	GatewayEventPaymentSucceeded GatewayEventType = "payment.succeeded"
	GatewayEventDepositCompleted GatewayEventType = "deposit.completed"
)

// ConfirmsDeposit reports whether the callback settles a pending deposit
func (t GatewayEventType) ConfirmsDeposit() bool {
	switch t {
	case GatewayEventIntentSucceeded, GatewayEventPaymentSucceeded, GatewayEventDepositCompleted:
		return true
	}
	return false
}

// GatewayEvent is the Kafka message the webhook forwards to the wallet worker
type GatewayEvent struct {
	Type          GatewayEventType `json:"type"`
	IntentID      string           `json:"intent_id,omitempty"`
	EventID       uuid.UUID        `json:"event_id,omitempty"`
	Amount        int64            `json:"amount,omitempty"` // Minor units
	GatewayTxRef  string           `json:"gateway_tx_ref,omitempty"`
	CorrelationID string           `json:"correlation_id"`
	ReceivedAt    time.Time        `json:"received_at"`
}
