// Package expense implements the expense approval state machine:
// pending -> approved|rejected, approved -> paid, and any live state -> disputed.
package expense

import (
	"time"

	"github.com/google/uuid"
	"github.com/shared-event-wallet/internal/domain/shared"
)

// Status is the expense lifecycle state
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
	StatusPaid     Status = "paid"
	StatusDisputed Status = "disputed"
)

// Valid reports whether s names a known status
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected, StatusPaid, StatusDisputed:
		return true
	}
	return false
}

// Expense is a spend request against the event wallet
type Expense struct {
	ID              uuid.UUID  `json:"id"`
	EventID         uuid.UUID  `json:"event_id"`
	CategoryID      *uuid.UUID `json:"category_id,omitempty"`
	PaidBy          uuid.UUID  `json:"paid_by"`
	Amount          int64      `json:"amount"` // Minor units
	Description     string     `json:"description"`
	ReceiptRef      string     `json:"receipt_ref,omitempty"`
	Status          Status     `json:"status"`
	ApprovedBy      *uuid.UUID `json:"approved_by,omitempty"`
	RejectionReason string     `json:"rejection_reason,omitempty"`
	TransactionID   *uuid.UUID `json:"transaction_id,omitempty"`

	// LockedParticipantIDs is captured once at payment and never recomputed
	LockedParticipantIDs []uuid.UUID `json:"locked_participant_ids"`
	CreatedAt            time.Time   `json:"created_at"`
	UpdatedAt            time.Time   `json:"updated_at"`
	PaidAt               *time.Time  `json:"paid_at,omitempty"`
}

// NewExpense creates a pending expense
func NewExpense(eventID uuid.UUID, categoryID *uuid.UUID, paidBy uuid.UUID, amount int64, description, receiptRef string) (*Expense, error) {
	if amount <= 0 {
		return nil, shared.ValidationError{Field: "amount", Err: shared.ErrInvalidAmount}
	}
	now := time.Now().UTC()
	return &Expense{
		ID:                   uuid.New(),
		EventID:              eventID,
		CategoryID:           categoryID,
		PaidBy:               paidBy,
		Amount:               amount,
		Description:          description,
		ReceiptRef:           receiptRef,
		Status:               StatusPending,
		LockedParticipantIDs: []uuid.UUID{},
		CreatedAt:            now,
		UpdatedAt:            now,
	}, nil
}

// Approve records the approver on a pending expense
func (e *Expense) Approve(approver uuid.UUID) error {
	if e.Status != StatusPending {
		return e.conflict("approve")
	}
	e.Status = StatusApproved
	e.ApprovedBy = &approver
	e.UpdatedAt = time.Now().UTC()
	return nil
}

// MarkPaid links the debit transaction and freezes the participant snapshot
func (e *Expense) MarkPaid(transactionID uuid.UUID, snapshot []uuid.UUID) error {
	if e.Status != StatusPending && e.Status != StatusApproved {
		return e.conflict("pay")
	}
	if len(snapshot) == 0 {
		return shared.ValidationError{Field: "locked_participant_ids", Err: errEmptySnapshot}
	}

	now := time.Now().UTC()
	e.Status = StatusPaid
	e.TransactionID = &transactionID
	e.LockedParticipantIDs = append([]uuid.UUID(nil), snapshot...)
	e.PaidAt = &now
	e.UpdatedAt = now
	return nil
}

func (e *Expense) Reject(by uuid.UUID, reason string) error {
	if e.Status != StatusPending {
		return e.conflict("reject")
	}
	e.Status = StatusRejected
	e.ApprovedBy = &by
	e.RejectionReason = reason
	e.UpdatedAt = time.Now().UTC()
	return nil
}

// Dispute excludes the expense from settlement shares
func (e *Expense) Dispute() error {
	switch e.Status {
	case StatusPending, StatusApproved, StatusPaid:
	default:
		return e.conflict("dispute")
	}
	e.Status = StatusDisputed
	e.UpdatedAt = time.Now().UTC()
	return nil
}

// Edit replaces the free-text details of an expense that has not been paid.
// Amount and category stay as proposed.
func (e *Expense) Edit(description, receiptRef *string) error {
	if e.Status != StatusPending && e.Status != StatusApproved {
		return e.conflict("edit")
	}
	if description != nil {
		e.Description = *description
	}
	if receiptRef != nil {
		e.ReceiptRef = *receiptRef
	}
	e.UpdatedAt = time.Now().UTC()
	return nil
}

// CheckDeletable fails for expenses whose money already left the wallet
func (e *Expense) CheckDeletable() error {
	if e.Status == StatusPaid {
		return shared.StateConflictError{Reason: "Cannot delete a paid expense"}
	}
	return nil
}

// Snapshot returns a copy of the locked participants
func (e *Expense) Snapshot() []uuid.UUID {
	return append([]uuid.UUID(nil), e.LockedParticipantIDs...)
}

func (e *Expense) conflict(action string) error {
	return shared.StateConflictError{Reason: "cannot " + action + " an expense that is " + string(e.Status)}
}
