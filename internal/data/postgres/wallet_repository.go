package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shared-event-wallet/internal/domain/shared"
	"github.com/shared-event-wallet/internal/domain/wallet"
	"github.com/shared-event-wallet/internal/platform/persistence"
)

const walletColumns = `id, event_id, balance, currency, status, created_at, updated_at`

// WalletRepository implements the wallet.Repository interface for PostgreSQL
type WalletRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

// NewWalletRepository creates a new PostgreSQL wallet repository
func NewWalletRepository(logger *slog.Logger, db *persistence.PostgresDB) wallet.Repository {
	return &WalletRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// WithTx wraps the repository with a transaction. Balance updates must go
// through a transaction that first took the row lock with LockByEventID.
func (r *WalletRepository) WithTx(tx pgx.Tx) wallet.Repository {
	return &WalletRepository{
		querier: tx,
		logger:  r.logger,
	}
}

func (r *WalletRepository) Create(ctx context.Context, w *wallet.Wallet) error {
	query := `
		INSERT INTO wallets (` + walletColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.querier.Exec(ctx, query, w.ID, w.EventID, w.Balance, w.Currency, w.Status, w.CreatedAt, w.UpdatedAt)
	if err != nil {
		r.logger.Error("Failed to create wallet", "event_id", w.EventID.String(), "error", err)
		return fmt.Errorf("failed to create wallet: %w", err)
	}

	return nil
}

func (r *WalletRepository) scan(row pgx.Row) (*wallet.Wallet, error) {
	var w wallet.Wallet
	err := row.Scan(&w.ID, &w.EventID, &w.Balance, &w.Currency, &w.Status, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &w, nil
}

func (r *WalletRepository) GetByEventID(ctx context.Context, eventID uuid.UUID) (*wallet.Wallet, error) {
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE event_id = $1`

	w, err := r.scan(r.querier.QueryRow(ctx, query, eventID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.NotFoundError{Resource: "wallet", ID: eventID.String()}
		}
		r.logger.Error("Failed to get wallet", "event_id", eventID.String(), "error", err)
		return nil, fmt.Errorf("failed to get wallet: %w", err)
	}

	return w, nil
}

// LockByEventID retrieves the wallet with FOR UPDATE. This row lock is what
// serializes credits and debits against the same wallet.
func (r *WalletRepository) LockByEventID(ctx context.Context, eventID uuid.UUID) (*wallet.Wallet, error) {
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE event_id = $1 FOR UPDATE`

	w, err := r.scan(r.querier.QueryRow(ctx, query, eventID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.NotFoundError{Resource: "wallet", ID: eventID.String()}
		}
		r.logger.Error("Failed to lock wallet for update", "event_id", eventID.String(), "error", err)
		return nil, fmt.Errorf("failed to lock wallet for update: %w", err)
	}

	return w, nil
}

// UpdateBalance persists w.Balance. The balance CHECK constraint is the last
// guard against a negative balance and surfaces as InsufficientFundsError.
func (r *WalletRepository) UpdateBalance(ctx context.Context, w *wallet.Wallet) error {
	query := `
		UPDATE wallets
		SET balance = $1, updated_at = $2
		WHERE id = $3
	`

	result, err := r.querier.Exec(ctx, query, w.Balance, w.UpdatedAt, w.ID)
	if err != nil {
		if persistence.IsCheckViolation(err) {
			return shared.InsufficientFundsError{Reason: "Insufficient balance in shared wallet", Err: shared.ErrInsufficientBalance}
		}
		r.logger.Error("Failed to update wallet balance",
			"wallet_id", w.ID.String(),
			"balance", w.Balance,
			"error", err,
		)
		return fmt.Errorf("failed to update wallet balance: %w", err)
	}
	if result.RowsAffected() == 0 {
		return shared.NotFoundError{Resource: "wallet", ID: w.ID.String()}
	}

	return nil
}

func (r *WalletRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status wallet.Status) error {
	query := `
		UPDATE wallets
		SET status = $1, updated_at = NOW()
		WHERE id = $2
	`

	result, err := r.querier.Exec(ctx, query, status, id)
	if err != nil {
		r.logger.Error("Failed to update wallet status", "wallet_id", id.String(), "status", string(status), "error", err)
		return fmt.Errorf("failed to update wallet status: %w", err)
	}
	if result.RowsAffected() == 0 {
		return shared.NotFoundError{Resource: "wallet", ID: id.String()}
	}

	return nil
}
