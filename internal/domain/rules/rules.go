// Package rules decides whether a proposed expense may be paid now, must wait
// for approval, or is rejected. Validate never mutates its inputs; it runs at
// proposal time and again at approval time against fresh state.
package rules

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shared-event-wallet/internal/domain/event"
	"github.com/shared-event-wallet/internal/domain/shared"
)

// Code identifies the check that rejected an expense
type Code string

const (
	CodeNone                Code = ""
	CodeEventNotActive      Code = "event_not_active"
	CodeCategoryNotActive   Code = "category_not_active"
	CodeNotCategoryMember   Code = "not_category_member"
	CodeNotAuthorizedPayer  Code = "not_authorized_payer"
	CodeNotParticipant      Code = "not_participant"
	CodeRoleNotAllowed      Code = "role_not_allowed"
	CodeBudgetExceeded      Code = "budget_exceeded"
	CodeInsufficientBalance Code = "insufficient_balance"
	CodeCategoryCapExceeded Code = "category_cap_exceeded"
)

// Input is everything the engine looks at. Category is nil for uncategorised expenses.
type Input struct {
	Aggregate     *event.Aggregate
	Category      *event.Category
	PayerID       uuid.UUID
	Amount        int64
	WalletBalance int64
	CategorySpend int64
}

// Result is the engine's verdict
type Result struct {
	Valid            bool   `json:"valid"`
	Code             Code   `json:"code,omitempty"`
	Reason           string `json:"reason,omitempty"`
	RequiresApproval bool   `json:"requires_approval"`
}

func reject(code Code, reason string) Result {
	return Result{Code: code, Reason: reason}
}

// Validate runs the checks in order; the first failure wins.
func Validate(in Input) Result {
	evt := in.Aggregate.Event
	if evt == nil || !evt.IsActive() {
		return reject(CodeEventNotActive, "Event is not active")
	}

	if c := in.Category; c != nil {
		if !c.IsActive() {
			return reject(CodeCategoryNotActive, "Category is not active")
		}
		if !c.IsMember(in.PayerID) {
			return reject(CodeNotCategoryMember, "You must join this category before spending from it")
		}
		if !c.IsAuthorizedPayer(in.PayerID) {
			return reject(CodeNotAuthorizedPayer, "You are not an authorized payer for this category")
		}
	}

	participant, ok := in.Aggregate.Participant(in.PayerID)
	if !ok {
		return reject(CodeNotParticipant, "You are not a participant in this event")
	}
	if !evt.Rules.AllowsRole(participant.Role) {
		return reject(CodeRoleNotAllowed, "Your role is not allowed to pay from this basket")
	}

	if c := in.Category; c != nil && c.BudgetLimit != nil {
		if in.CategorySpend+in.Amount > *c.BudgetLimit {
			return reject(CodeBudgetExceeded, fmt.Sprintf("Expense would exceed category budget (limit: %d)", *c.BudgetLimit))
		}
	}

	if in.WalletBalance < in.Amount {
		return reject(CodeInsufficientBalance, "Insufficient balance in shared wallet")
	}

	if limit := evt.Rules.MaxExpensePerCategory; limit != nil && in.Amount > *limit {
		return reject(CodeCategoryCapExceeded, fmt.Sprintf("Expense exceeds per-category limit of %d", *limit))
	}

	return Result{
		Valid:            true,
		RequiresApproval: in.Category != nil && in.Category.RequiresApproval(in.Amount),
	}
}

// Err converts a rejection into the domain error taxonomy; nil when valid.
func (r Result) Err() error {
	switch r.Code {
	case CodeNone:
		return nil
	case CodeEventNotActive:
		return shared.AuthorizationError{Reason: r.Reason, Err: shared.ErrEventNotActive}
	case CodeCategoryNotActive:
		return shared.AuthorizationError{Reason: r.Reason, Err: shared.ErrCategoryNotActive}
	case CodeNotParticipant:
		return shared.AuthorizationError{Reason: r.Reason, Err: shared.ErrNotParticipant}
	case CodeBudgetExceeded:
		return shared.InsufficientFundsError{Reason: r.Reason, Err: shared.ErrBudgetExceeded}
	case CodeInsufficientBalance:
		return shared.InsufficientFundsError{Reason: r.Reason, Err: shared.ErrInsufficientBalance}
	default:
		return shared.AuthorizationError{Reason: r.Reason}
	}
}
