package ledger

import (
	"time"

	"github.com/shared-event-wallet/internal/domain/shared"
)

// Entry is the mirrored form of a Transaction. Identifiers are stored as
// strings so documents stay queryable from the mongo shell.
type Entry struct {
	TransactionID string                   `json:"transaction_id" bson:"transaction_id"`
	EventID       string                   `json:"event_id" bson:"event_id"`
	WalletID      string                   `json:"wallet_id" bson:"wallet_id"`
	ActorID       string                   `json:"actor_id" bson:"actor_id"`
	CategoryID    string                   `json:"category_id,omitempty" bson:"category_id,omitempty"`
	Type          shared.TransactionType   `json:"type" bson:"type"`
	Amount        int64                    `json:"amount" bson:"amount"` // Stored in cents/minor units
	Currency      string                   `json:"currency" bson:"currency"`
	Status        shared.TransactionStatus `json:"status" bson:"status"`
	GatewayTxRef  string                   `json:"gateway_tx_ref,omitempty" bson:"gateway_tx_ref,omitempty"`
	Description   string                   `json:"description,omitempty" bson:"description,omitempty"`
	CorrelationID string                   `json:"correlation_id,omitempty" bson:"correlation_id,omitempty"`
	CreatedAt     time.Time                `json:"created_at" bson:"created_at"`
	CompletedAt   *time.Time               `json:"completed_at,omitempty" bson:"completed_at,omitempty"`
	MirroredAt    time.Time                `json:"mirrored_at" bson:"mirrored_at"`
}

// NewEntry converts a ledger transaction into its mirrored document
func NewEntry(tx *Transaction, correlationID string) *Entry {
	entry := &Entry{
		TransactionID: tx.ID.String(),
		EventID:       tx.EventID.String(),
		WalletID:      tx.WalletID.String(),
		ActorID:       tx.ActorID.String(),
		Type:          tx.Type,
		Amount:        tx.Amount,
		Currency:      tx.Currency,
		Status:        tx.Status,
		GatewayTxRef:  tx.GatewayTxRef,
		Description:   tx.Description,
		CorrelationID: correlationID,
		CreatedAt:     tx.CreatedAt,
		CompletedAt:   tx.CompletedAt,
		MirroredAt:    time.Now().UTC(),
	}
	if tx.CategoryID != nil {
		entry.CategoryID = tx.CategoryID.String()
	}
	return entry
}
