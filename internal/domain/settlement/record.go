package settlement

import (
	"time"

	"github.com/google/uuid"
	"github.com/shared-event-wallet/internal/domain/shared"
)

// RefundStatus tracks a participant's refund to completion
type RefundStatus string

const (
	RefundStatusPending    RefundStatus = "pending"
	RefundStatusProcessing RefundStatus = "processing"
	RefundStatusCompleted  RefundStatus = "completed"
	RefundStatusFailed     RefundStatus = "failed"
)

// Record is the settlement outcome of one participant
type Record struct {
	ID                  uuid.UUID    `json:"id"`
	EventID             uuid.UUID    `json:"event_id"`
	UserID              uuid.UUID    `json:"user_id"`
	Deposited           int64        `json:"deposited_amount"`
	Share               int64        `json:"total_expense_share"`
	Net                 int64        `json:"net"`
	RefundAmount        int64        `json:"refund_amount"`
	RefundStatus        RefundStatus `json:"refund_status"`
	RefundTransactionID *uuid.UUID   `json:"refund_transaction_id,omitempty"`
	GatewayTxRef        string       `json:"gateway_tx_ref,omitempty"`
	FailureReason       string       `json:"failure_reason,omitempty"`
	Attempts            int          `json:"attempts"`
	CreatedAt           time.Time    `json:"created_at"`
	UpdatedAt           time.Time    `json:"updated_at"`
	CompletedAt         *time.Time   `json:"completed_at,omitempty"`
}

// NewRecord freezes a calculated line. A zero refund has nothing to pay out
// and is completed immediately.
func NewRecord(eventID uuid.UUID, line Line, refundTxID *uuid.UUID) *Record {
	now := time.Now().UTC()
	r := &Record{
		ID:                  uuid.New(),
		EventID:             eventID,
		UserID:              line.UserID,
		Deposited:           line.Deposited,
		Share:               line.Share,
		Net:                 line.Net,
		RefundAmount:        line.RefundAmount,
		RefundStatus:        RefundStatusPending,
		RefundTransactionID: refundTxID,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if line.RefundAmount == 0 {
		r.RefundStatus = RefundStatusCompleted
		r.CompletedAt = &now
	}
	return r
}

// StartProcessing claims the refund for a payout attempt. Pending, failed and
// stuck processing records may all be retried.
func (r *Record) StartProcessing() error {
	if r.RefundStatus == RefundStatusCompleted {
		return shared.StateConflictError{Reason: "Refund already completed", Err: shared.ErrRefundCompleted}
	}
	r.RefundStatus = RefundStatusProcessing
	r.Attempts++
	r.FailureReason = ""
	r.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *Record) Complete(gatewayTxRef string) {
	now := time.Now().UTC()
	r.RefundStatus = RefundStatusCompleted
	r.GatewayTxRef = gatewayTxRef
	r.FailureReason = ""
	r.UpdatedAt = now
	r.CompletedAt = &now
}

func (r *Record) Fail(reason string) {
	r.RefundStatus = RefundStatusFailed
	r.FailureReason = reason
	r.UpdatedAt = time.Now().UTC()
}

// IsOutstanding reports whether the refund still blocks closeout
func (r *Record) IsOutstanding() bool {
	return r.RefundStatus != RefundStatusCompleted
}
