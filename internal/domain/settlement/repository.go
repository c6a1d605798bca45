package settlement

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Repository persists settlement records
type Repository interface {
	// Upsert creates the record or replaces the calculated figures of an existing one
	Upsert(ctx context.Context, r *Record) error
	GetByEventAndUser(ctx context.Context, eventID, userID uuid.UUID) (*Record, error)

	// LockByEventAndUser reads the record with a row lock
	LockByEventAndUser(ctx context.Context, eventID, userID uuid.UUID) (*Record, error)
	ListByEvent(ctx context.Context, eventID uuid.UUID) ([]*Record, error)
	Update(ctx context.Context, r *Record) error

	// CountOutstanding counts records that are not completed
	CountOutstanding(ctx context.Context, eventID uuid.UUID) (int, error)
	WithTx(tx pgx.Tx) Repository
}
