package event

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Repository persists events and their participants
type Repository interface {
	Create(ctx context.Context, evt *Event) error
	GetByID(ctx context.Context, id uuid.UUID) (*Event, error)

	// LockForUpdate takes a row lock on the event for lifecycle transitions
	LockForUpdate(ctx context.Context, id uuid.UUID) (*Event, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status Status) error
	UpdateGatewayWalletRef(ctx context.Context, id uuid.UUID, ref string) error
	ListByParticipant(ctx context.Context, userID uuid.UUID) ([]*Event, error)

	AddParticipant(ctx context.Context, p *Participant) error
	GetParticipant(ctx context.Context, eventID, userID uuid.UUID) (*Participant, error)
	ListParticipants(ctx context.Context, eventID uuid.UUID) ([]*Participant, error)

	// AddDeposit increments a participant's running deposit total
	AddDeposit(ctx context.Context, eventID, userID uuid.UUID, amount int64) error
	WithTx(tx pgx.Tx) Repository
}

// CategoryRepository persists categories and their membership history
type CategoryRepository interface {
	Create(ctx context.Context, c *Category) error

	// GetByID loads the category with its active members
	GetByID(ctx context.Context, eventID, categoryID uuid.UUID) (*Category, error)
	ListByEvent(ctx context.Context, eventID uuid.UUID) ([]*Category, error)
	UpdateLimits(ctx context.Context, c *Category) error
	UpdateStatus(ctx context.Context, categoryID uuid.UUID, status CategoryStatus) error

	AddMember(ctx context.Context, m *Membership) error
	EndMembership(ctx context.Context, categoryID, userID uuid.UUID, leftAt time.Time) error
	WithTx(tx pgx.Tx) CategoryRepository
}
