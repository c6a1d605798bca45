package wallet

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Repository manages wallet persistence
type Repository interface {
	Create(ctx context.Context, w *Wallet) error
	GetByEventID(ctx context.Context, eventID uuid.UUID) (*Wallet, error)

	// LockByEventID reads the wallet with a row lock held until the transaction ends
	LockByEventID(ctx context.Context, eventID uuid.UUID) (*Wallet, error)
	UpdateBalance(ctx context.Context, w *Wallet) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status Status) error
	WithTx(tx pgx.Tx) Repository
}
