// Package ledger holds the append-only transaction log of event wallets and
// the read-only mirror of it kept in MongoDB.
package ledger

import (
	"time"

	"github.com/google/uuid"
	"github.com/shared-event-wallet/internal/domain/shared"
)

// Meta carries the optional attributes of a ledger movement
type Meta struct {
	CategoryID       *uuid.UUID
	Description      string
	GatewayTxRef     string
	GatewayIntentRef string
	Metadata         map[string]string
}

// Transaction is a ledger entry. Only Status and the gateway reference change
// after creation.
type Transaction struct {
	ID               uuid.UUID                `json:"id"`
	EventID          uuid.UUID                `json:"event_id"`
	WalletID         uuid.UUID                `json:"wallet_id"`
	Type             shared.TransactionType   `json:"type"`
	Amount           int64                    `json:"amount"` // Stored in cents/minor units
	Currency         string                   `json:"currency"`
	ActorID          uuid.UUID                `json:"actor_id"`
	CategoryID       *uuid.UUID               `json:"category_id,omitempty"`
	Status           shared.TransactionStatus `json:"status"`
	GatewayTxRef     string                   `json:"gateway_tx_ref,omitempty"`
	GatewayIntentRef string                   `json:"gateway_intent_ref,omitempty"`
	Description      string                   `json:"description,omitempty"`
	Metadata         map[string]string        `json:"metadata,omitempty"`
	CreatedAt        time.Time                `json:"created_at"`
	UpdatedAt        time.Time                `json:"updated_at"`
	CompletedAt      *time.Time               `json:"completed_at,omitempty"`
}

// NewTransaction builds a ledger entry in the given status
func NewTransaction(walletID, eventID uuid.UUID, txType shared.TransactionType, amount int64, currency string,
	actorID uuid.UUID, status shared.TransactionStatus, meta Meta) (*Transaction, error) {
	if amount <= 0 {
		return nil, shared.ValidationError{Field: "amount", Err: shared.ErrInvalidAmount}
	}

	now := time.Now().UTC()
	tx := &Transaction{
		ID:               uuid.New(),
		EventID:          eventID,
		WalletID:         walletID,
		Type:             txType,
		Amount:           amount,
		Currency:         currency,
		ActorID:          actorID,
		CategoryID:       meta.CategoryID,
		Status:           status,
		GatewayTxRef:     meta.GatewayTxRef,
		GatewayIntentRef: meta.GatewayIntentRef,
		Description:      meta.Description,
		Metadata:         meta.Metadata,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if status == shared.TransactionStatusCompleted {
		tx.CompletedAt = &now
	}
	return tx, nil
}

// Complete moves a pending transaction to completed
func (t *Transaction) Complete(gatewayTxRef string) error {
	if t.Status == shared.TransactionStatusCompleted {
		return shared.StateConflictError{Reason: "transaction already completed"}
	}
	if !t.IsPending() {
		return shared.StateConflictError{Reason: "transaction is " + string(t.Status)}
	}

	now := time.Now().UTC()
	t.Status = shared.TransactionStatusCompleted
	if gatewayTxRef != "" {
		t.GatewayTxRef = gatewayTxRef
	}
	t.UpdatedAt = now
	t.CompletedAt = &now
	return nil
}

func (t *Transaction) IsPending() bool {
	return t.Status == shared.TransactionStatusPending
}

// Totals aggregates the completed movements of an event wallet
type Totals struct {
	Deposited    int64 `json:"total_deposited"`
	Paid         int64 `json:"total_paid"`
	Refunded     int64 `json:"total_refunded"`
	DepositCount int   `json:"deposit_count"`
	PaymentCount int   `json:"payment_count"`
}
