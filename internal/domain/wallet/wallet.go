package wallet

import (
	"time"

	"github.com/google/uuid"
	"github.com/shared-event-wallet/internal/domain/shared"
)

// Status is the wallet lifecycle state
type Status string

const (
	StatusActive Status = "active"
	StatusClosed Status = "closed"
)

// Wallet is the single shared balance of one event
type Wallet struct {
	ID        uuid.UUID `json:"id"`
	EventID   uuid.UUID `json:"event_id"`
	Balance   int64     `json:"balance"` // Stored in cents/minor units
	Currency  string    `json:"currency"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewWallet creates an empty active wallet for an event
func NewWallet(eventID uuid.UUID, currency string) *Wallet {
	now := time.Now().UTC()
	return &Wallet{
		ID:        uuid.New(),
		EventID:   eventID,
		Currency:  currency,
		Status:    StatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (w *Wallet) IsActive() bool {
	return w.Status == StatusActive
}

// Credit adds amount to the balance
func (w *Wallet) Credit(amount int64) error {
	if amount <= 0 {
		return shared.ValidationError{Field: "amount", Err: shared.ErrInvalidAmount}
	}
	if !w.IsActive() {
		return shared.StateConflictError{Err: shared.ErrWalletClosed}
	}

	w.Balance += amount
	w.UpdatedAt = time.Now().UTC()
	return nil
}

// Debit subtracts amount from the balance; the balance never goes negative
func (w *Wallet) Debit(amount int64) error {
	if amount <= 0 {
		return shared.ValidationError{Field: "amount", Err: shared.ErrInvalidAmount}
	}
	if !w.IsActive() {
		return shared.StateConflictError{Err: shared.ErrWalletClosed}
	}
	if !w.CanDebit(amount) {
		return shared.InsufficientFundsError{
			Err:       shared.ErrInsufficientBalance,
			Available: w.Balance,
			Requested: amount,
		}
	}

	w.Balance -= amount
	w.UpdatedAt = time.Now().UTC()
	return nil
}

// CanDebit checks if the wallet can cover amount
func (w *Wallet) CanDebit(amount int64) bool {
	return w.Balance >= amount
}

// Close stops all further credits and debits
func (w *Wallet) Close() {
	w.Status = StatusClosed
	w.UpdatedAt = time.Now().UTC()
}
