// Package event models the event aggregate: the event itself, its participants
// and its spending categories. Participants and categories are held in an arena
// keyed by identifier instead of arrays embedded in the event row.
package event

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shared-event-wallet/internal/domain/shared"
)

var (
	ErrEmptyName       = errors.New("name cannot be empty")
	ErrInvalidCurrency = errors.New("currency must be a 3-letter code")
)

// Status is the event lifecycle state
type Status string

const (
	StatusActive   Status = "active"
	StatusEnded    Status = "ended"
	StatusSettling Status = "settling"
	StatusSettled  Status = "settled"
	StatusClosed   Status = "closed"
)

// Role is a participant's role within an event
type Role string

const (
	RoleCreator Role = "creator"
	RoleMember  Role = "member"
)

// SpendingRules is the event-wide rule set consulted by the rule engine.
// RequireCategoryParticipation is kept for clients; the engine enforces
// category membership regardless of it.
type SpendingRules struct {
	RequireCategoryParticipation bool   `json:"require_category_participation"`
	AllowedPayerRoles            []Role `json:"allowed_payer_roles"`
	MaxExpensePerCategory        *int64 `json:"max_expense_per_category,omitempty"`
}

// DefaultSpendingRules lets creators and members pay from categories they joined
func DefaultSpendingRules() SpendingRules {
	return SpendingRules{
		RequireCategoryParticipation: true,
		AllowedPayerRoles:            []Role{RoleCreator, RoleMember},
	}
}

// AllowsRole reports whether a participant with role may pay
func (r SpendingRules) AllowsRole(role Role) bool {
	for _, allowed := range r.AllowedPayerRoles {
		if allowed == role {
			return true
		}
	}
	return false
}

// Event is the aggregate root
type Event struct {
	ID               uuid.UUID     `json:"id"`
	Name             string        `json:"name"`
	Description      string        `json:"description"`
	Currency         string        `json:"currency"`
	Status           Status        `json:"status"`
	CreatorID        uuid.UUID     `json:"creator_id"`
	GatewayWalletRef string        `json:"gateway_wallet_ref,omitempty"`
	Rules            SpendingRules `json:"rules"`
	StartDate        *time.Time    `json:"start_date,omitempty"`
	EndDate          *time.Time    `json:"end_date,omitempty"`
	CreatedAt        time.Time     `json:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at"`
}

// NewEvent creates an active event owned by creatorID
func NewEvent(name, description, currency string, creatorID uuid.UUID, rules *SpendingRules) (*Event, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrEmptyName
	}
	if currency == "" {
		currency = "USD"
	}
	if len(currency) != 3 {
		return nil, ErrInvalidCurrency
	}

	effective := DefaultSpendingRules()
	if rules != nil {
		effective = *rules
		if len(effective.AllowedPayerRoles) == 0 {
			effective.AllowedPayerRoles = DefaultSpendingRules().AllowedPayerRoles
		}
	}

	now := time.Now().UTC()
	return &Event{
		ID:          uuid.New(),
		Name:        name,
		Description: description,
		Currency:    strings.ToUpper(currency),
		Status:      StatusActive,
		CreatorID:   creatorID,
		Rules:       effective,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

func (e *Event) IsActive() bool {
	return e.Status == StatusActive
}

func (e *Event) IsCreator(userID uuid.UUID) bool {
	return e.CreatorID == userID
}

// BeginSettlement moves an active event to settling
func (e *Event) BeginSettlement() error {
	if e.Status != StatusActive {
		return shared.StateConflictError{Err: shared.ErrEventNotActive}
	}
	e.Status = StatusSettling
	e.UpdatedAt = time.Now().UTC()
	return nil
}

// MarkSettled moves a settling event to its terminal state
func (e *Event) MarkSettled() error {
	if e.Status != StatusSettling {
		return shared.StateConflictError{Reason: "event is not settling (status: " + string(e.Status) + ")"}
	}
	e.Status = StatusSettled
	e.UpdatedAt = time.Now().UTC()
	return nil
}

// Participant is a user's membership in an event
type Participant struct {
	EventID         uuid.UUID `json:"event_id"`
	UserID          uuid.UUID `json:"user_id"`
	Role            Role      `json:"role"`
	DepositedAmount int64     `json:"deposited_amount"` // Minor units
	JoinedAt        time.Time `json:"joined_at"`
}

func NewParticipant(eventID, userID uuid.UUID, role Role) *Participant {
	return &Participant{
		EventID:  eventID,
		UserID:   userID,
		Role:     role,
		JoinedAt: time.Now().UTC(),
	}
}
