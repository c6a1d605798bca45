package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shared-event-wallet/internal/domain/settlement"
	"github.com/shared-event-wallet/internal/domain/shared"
	"github.com/shared-event-wallet/internal/platform/persistence"
)

const settlementColumns = `id, event_id, user_id, deposited, share, net, refund_amount, refund_status, refund_transaction_id, gateway_tx_ref, failure_reason, attempts, created_at, updated_at, completed_at`

// SettlementRepository implements the settlement.Repository interface for PostgreSQL
type SettlementRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

func NewSettlementRepository(logger *slog.Logger, db *persistence.PostgresDB) settlement.Repository {
	return &SettlementRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

func (r *SettlementRepository) WithTx(tx pgx.Tx) settlement.Repository {
	return &SettlementRepository{
		querier: tx,
		logger:  r.logger,
	}
}

func scanSettlement(row rowScanner) (*settlement.Record, error) {
	var rec settlement.Record
	err := row.Scan(
		&rec.ID,
		&rec.EventID,
		&rec.UserID,
		&rec.Deposited,
		&rec.Share,
		&rec.Net,
		&rec.RefundAmount,
		&rec.RefundStatus,
		&rec.RefundTransactionID,
		&rec.GatewayTxRef,
		&rec.FailureReason,
		&rec.Attempts,
		&rec.CreatedAt,
		&rec.UpdatedAt,
		&rec.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// Upsert inserts rec, or replaces the calculated figures of the existing
// (event, user) record. rec.ID is set to the stored record's ID.
func (r *SettlementRepository) Upsert(ctx context.Context, rec *settlement.Record) error {
	query := `
		INSERT INTO settlements (` + settlementColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (event_id, user_id) DO UPDATE SET
			deposited = EXCLUDED.deposited,
			share = EXCLUDED.share,
			net = EXCLUDED.net,
			refund_amount = EXCLUDED.refund_amount,
			refund_status = EXCLUDED.refund_status,
			refund_transaction_id = EXCLUDED.refund_transaction_id,
			updated_at = EXCLUDED.updated_at,
			completed_at = EXCLUDED.completed_at
		RETURNING id
	`

	err := r.querier.QueryRow(ctx, query,
		rec.ID,
		rec.EventID,
		rec.UserID,
		rec.Deposited,
		rec.Share,
		rec.Net,
		rec.RefundAmount,
		rec.RefundStatus,
		rec.RefundTransactionID,
		rec.GatewayTxRef,
		rec.FailureReason,
		rec.Attempts,
		rec.CreatedAt,
		rec.UpdatedAt,
		rec.CompletedAt,
	).Scan(&rec.ID)
	if err != nil {
		r.logger.Error("Failed to upsert settlement",
			"event_id", rec.EventID.String(),
			"user_id", rec.UserID.String(),
			"error", err,
		)
		return fmt.Errorf("failed to upsert settlement: %w", err)
	}

	return nil
}

func (r *SettlementRepository) GetByEventAndUser(ctx context.Context, eventID, userID uuid.UUID) (*settlement.Record, error) {
	return r.get(ctx, `SELECT `+settlementColumns+` FROM settlements WHERE event_id = $1 AND user_id = $2`, eventID, userID)
}

// LockByEventAndUser reads the record with FOR UPDATE
func (r *SettlementRepository) LockByEventAndUser(ctx context.Context, eventID, userID uuid.UUID) (*settlement.Record, error) {
	return r.get(ctx, `SELECT `+settlementColumns+` FROM settlements WHERE event_id = $1 AND user_id = $2 FOR UPDATE`, eventID, userID)
}

func (r *SettlementRepository) get(ctx context.Context, query string, eventID, userID uuid.UUID) (*settlement.Record, error) {
	rec, err := scanSettlement(r.querier.QueryRow(ctx, query, eventID, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.NotFoundError{Resource: "settlement", ID: userID.String()}
		}
		r.logger.Error("Failed to get settlement", "event_id", eventID.String(), "user_id", userID.String(), "error", err)
		return nil, fmt.Errorf("failed to get settlement: %w", err)
	}
	return rec, nil
}

func (r *SettlementRepository) ListByEvent(ctx context.Context, eventID uuid.UUID) ([]*settlement.Record, error) {
	query := `SELECT ` + settlementColumns + ` FROM settlements WHERE event_id = $1 ORDER BY created_at ASC, user_id ASC`

	rows, err := r.querier.Query(ctx, query, eventID)
	if err != nil {
		r.logger.Error("Failed to list settlements", "event_id", eventID.String(), "error", err)
		return nil, fmt.Errorf("failed to list settlements: %w", err)
	}
	defer rows.Close()

	records := make([]*settlement.Record, 0)
	for rows.Next() {
		rec, err := scanSettlement(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan settlement: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over settlements: %w", err)
	}

	return records, nil
}

// Update persists the refund progress of rec
func (r *SettlementRepository) Update(ctx context.Context, rec *settlement.Record) error {
	query := `
		UPDATE settlements
		SET refund_status = $1, gateway_tx_ref = $2, failure_reason = $3, attempts = $4, updated_at = $5, completed_at = $6
		WHERE id = $7
	`

	result, err := r.querier.Exec(ctx, query,
		rec.RefundStatus,
		rec.GatewayTxRef,
		rec.FailureReason,
		rec.Attempts,
		rec.UpdatedAt,
		rec.CompletedAt,
		rec.ID,
	)
	if err != nil {
		r.logger.Error("Failed to update settlement",
			"settlement_id", rec.ID.String(),
			"refund_status", string(rec.RefundStatus),
			"error", err,
		)
		return fmt.Errorf("failed to update settlement: %w", err)
	}
	if result.RowsAffected() == 0 {
		return shared.NotFoundError{Resource: "settlement", ID: rec.ID.String()}
	}

	return nil
}

// CountOutstanding counts records whose refund is not completed
func (r *SettlementRepository) CountOutstanding(ctx context.Context, eventID uuid.UUID) (int, error) {
	query := `SELECT COUNT(*) FROM settlements WHERE event_id = $1 AND refund_status <> $2`

	var count int
	if err := r.querier.QueryRow(ctx, query, eventID, settlement.RefundStatusCompleted).Scan(&count); err != nil {
		r.logger.Error("Failed to count outstanding settlements", "event_id", eventID.String(), "error", err)
		return 0, fmt.Errorf("failed to count outstanding settlements: %w", err)
	}

	return count, nil
}
