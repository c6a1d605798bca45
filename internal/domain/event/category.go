package event

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// CategoryStatus is the lifecycle state of a spending category
type CategoryStatus string

const (
	CategoryStatusActive CategoryStatus = "active"
	CategoryStatusClosed CategoryStatus = "closed"
)

// Membership records a user's participation in a category. Rows are never
// deleted; leaving sets LeftAt so the history stays auditable.
type Membership struct {
	CategoryID uuid.UUID  `json:"category_id"`
	UserID     uuid.UUID  `json:"user_id"`
	JoinedAt   time.Time  `json:"joined_at"`
	LeftAt     *time.Time `json:"left_at,omitempty"`
}

// Category is a spending basket within an event
type Category struct {
	ID                uuid.UUID      `json:"id"`
	EventID           uuid.UUID      `json:"event_id"`
	Name              string         `json:"name"`
	Description       string         `json:"description"`
	BudgetLimit       *int64         `json:"budget_limit,omitempty"`
	ApprovalThreshold *int64         `json:"approval_threshold,omitempty"`
	AuthorizedPayers  []uuid.UUID    `json:"authorized_payers"`
	ApproverIDs       []uuid.UUID    `json:"approver_ids"`
	Status            CategoryStatus `json:"status"`
	CreatedBy         uuid.UUID      `json:"created_by"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`

	// Members holds active memberships only
	Members map[uuid.UUID]Membership `json:"-"`
}

func NewCategory(eventID uuid.UUID, name, description string, createdBy uuid.UUID) (*Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrEmptyName
	}
	now := time.Now().UTC()
	return &Category{
		ID:               uuid.New(),
		EventID:          eventID,
		Name:             name,
		Description:      description,
		AuthorizedPayers: []uuid.UUID{},
		ApproverIDs:      []uuid.UUID{},
		Status:           CategoryStatusActive,
		CreatedBy:        createdBy,
		CreatedAt:        now,
		UpdatedAt:        now,
		Members:          map[uuid.UUID]Membership{},
	}, nil
}

func (c *Category) IsActive() bool {
	return c.Status == CategoryStatusActive
}

func (c *Category) IsMember(userID uuid.UUID) bool {
	_, ok := c.Members[userID]
	return ok
}

// IsAuthorizedPayer reports whether userID may pay; an empty allowlist admits every member
func (c *Category) IsAuthorizedPayer(userID uuid.UUID) bool {
	if len(c.AuthorizedPayers) == 0 {
		return true
	}
	return containsID(c.AuthorizedPayers, userID)
}

func (c *Category) IsApprover(userID uuid.UUID) bool {
	return containsID(c.ApproverIDs, userID)
}

// RequiresApproval reports whether amount exceeds the approval threshold
func (c *Category) RequiresApproval(amount int64) bool {
	return c.ApprovalThreshold != nil && amount > *c.ApprovalThreshold
}

// MemberIDs returns the active members ordered by join time, then ID
func (c *Category) MemberIDs() []uuid.UUID {
	members := make([]Membership, 0, len(c.Members))
	for _, m := range c.Members {
		members = append(members, m)
	}
	sort.Slice(members, func(i, j int) bool {
		if !members[i].JoinedAt.Equal(members[j].JoinedAt) {
			return members[i].JoinedAt.Before(members[j].JoinedAt)
		}
		return members[i].UserID.String() < members[j].UserID.String()
	})
	ids := make([]uuid.UUID, len(members))
	for i, m := range members {
		ids[i] = m.UserID
	}
	return ids
}

func containsID(ids []uuid.UUID, id uuid.UUID) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}
