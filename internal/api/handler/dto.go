package handler

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/shared-event-wallet/internal/domain/event"
)

// SpendingRulesRequest overrides the default spending rules. Omitted fields keep the default.
type SpendingRulesRequest struct {
	RequireCategoryParticipation *bool    `json:"require_category_participation"`
	AllowedPayerRoles            []string `json:"allowed_payer_roles"`
	MaxExpensePerCategory        *int64   `json:"max_expense_per_category"`
}

// CreateEventRequest represents a request to create an event
type CreateEventRequest struct {
	Name        string                `json:"name" binding:"required"`
	Description string                `json:"description"`
	Currency    string                `json:"currency" binding:"omitempty,len=3"`
	StartDate   *time.Time            `json:"start_date"`
	EndDate     *time.Time            `json:"end_date"`
	Rules       *SpendingRulesRequest `json:"spending_rules"`
}

// CategoryRequest represents a request to create a category
type CategoryRequest struct {
	Name              string   `json:"name" binding:"required"`
	Description       string   `json:"description"`
	BudgetLimit       *int64   `json:"budget_limit"`
	ApprovalThreshold *int64   `json:"approval_threshold"`
	AuthorizedPayers  []string `json:"authorized_payers"`
	ApproverIDs       []string `json:"approver_ids"`
}

// CategoryLimitsRequest changes category limits; omitted fields are unchanged
type CategoryLimitsRequest struct {
	BudgetLimit       *int64   `json:"budget_limit"`
	ApprovalThreshold *int64   `json:"approval_threshold"`
	AuthorizedPayers  []string `json:"authorized_payers"`
	ApproverIDs       []string `json:"approver_ids"`
}

// DepositRequest represents a request to add money to the wallet
type DepositRequest struct {
	Amount      int64  `json:"amount" binding:"required"`
	Description string `json:"description"`
}

// ProposeExpenseRequest represents a spend request
type ProposeExpenseRequest struct {
	CategoryID  string `json:"category_id" binding:"omitempty,uuid"`
	Amount      int64  `json:"amount" binding:"required"`
	Description string `json:"description"`
	ReceiptRef  string `json:"receipt_ref"`
}

// EditExpenseRequest changes an unpaid expense's details. Omitted fields are kept.
type EditExpenseRequest struct {
	Description *string `json:"description" binding:"omitempty,max=500"`
	ReceiptRef  *string `json:"receipt_ref" binding:"omitempty,max=1000"`
}

// RejectExpenseRequest carries the optional rejection reason
type RejectExpenseRequest struct {
	Reason string `json:"reason"`
}

// PaginationParams represents pagination parameters for list endpoints
type PaginationParams struct {
	Page    int `form:"page,default=1" binding:"min=1"`
	PerPage int `form:"limit,default=20" binding:"min=1,max=100"`
}

// ExpenseFilterParams are the optional expense list filters
type ExpenseFilterParams struct {
	CategoryID string `form:"category_id" binding:"omitempty,uuid"`
	Status     string `form:"status"`
}

func (r *SpendingRulesRequest) toRules() (*event.SpendingRules, error) {
	if r == nil {
		return nil, nil
	}
	rules := event.DefaultSpendingRules()
	if r.RequireCategoryParticipation != nil {
		rules.RequireCategoryParticipation = *r.RequireCategoryParticipation
	}
	if r.AllowedPayerRoles != nil {
		rules.AllowedPayerRoles = make([]event.Role, 0, len(r.AllowedPayerRoles))
		for _, raw := range r.AllowedPayerRoles {
			role := event.Role(raw)
			if role != event.RoleCreator && role != event.RoleMember {
				return nil, fmt.Errorf("unknown role %q", raw)
			}
			rules.AllowedPayerRoles = append(rules.AllowedPayerRoles, role)
		}
	}
	rules.MaxExpensePerCategory = r.MaxExpensePerCategory
	return &rules, nil
}

// parseUUIDs parses a list of user IDs, nil in nil out
func parseUUIDs(raw []string) ([]uuid.UUID, error) {
	if raw == nil {
		return nil, nil
	}
	ids := make([]uuid.UUID, 0, len(raw))
	for _, s := range raw {
		id, err := uuid.Parse(s)
		if err != nil {
			return nil, fmt.Errorf("invalid user ID %q", s)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
