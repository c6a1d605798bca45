package expense

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Filter narrows expense listings
type Filter struct {
	CategoryID *uuid.UUID
	Status     Status
}

// Repository persists expenses
type Repository interface {
	Create(ctx context.Context, e *Expense) error
	GetByID(ctx context.Context, eventID, id uuid.UUID) (*Expense, error)

	// LockByID reads the expense with a row lock for state transitions
	LockByID(ctx context.Context, eventID, id uuid.UUID) (*Expense, error)
	Update(ctx context.Context, e *Expense) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, eventID uuid.UUID, filter Filter) ([]*Expense, error)
	ListPaid(ctx context.Context, eventID uuid.UUID) ([]*Expense, error)
	WithTx(tx pgx.Tx) Repository
}
