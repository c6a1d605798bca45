package outbox

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/shared-event-wallet/internal/domain/ledger"
	"github.com/shared-event-wallet/internal/domain/shared"
)

// Message stores a ledger transaction snapshot for reliable mirroring
type Message struct {
	ID            int64               `json:"id"`
	TransactionID uuid.UUID           `json:"transaction_id"`
	EventID       uuid.UUID           `json:"event_id"`
	CorrelationID string              `json:"correlation_id,omitempty"`
	Payload       json.RawMessage     `json:"payload"`
	Status        shared.OutboxStatus `json:"status"`
	Attempts      int                 `json:"attempts"`
	CreatedAt     time.Time           `json:"created_at"`
	LastAttemptAt *time.Time          `json:"last_attempt_at,omitempty"`
}

// NewMessage snapshots tx. A transaction may produce several messages over its
// lifetime, one per status change.
func NewMessage(tx *ledger.Transaction, correlationID string) (*Message, error) {
	payload, err := json.Marshal(tx)
	if err != nil {
		return nil, err
	}

	return &Message{
		TransactionID: tx.ID,
		EventID:       tx.EventID,
		CorrelationID: correlationID,
		Payload:       payload,
		Status:        shared.OutboxStatusPending,
		Attempts:      0,
		CreatedAt:     time.Now(),
	}, nil
}

// GetTransaction extracts the ledger transaction from the payload
func (m *Message) GetTransaction() (*ledger.Transaction, error) {
	var tx ledger.Transaction
	if err := json.Unmarshal(m.Payload, &tx); err != nil {
		return nil, err
	}
	return &tx, nil
}
