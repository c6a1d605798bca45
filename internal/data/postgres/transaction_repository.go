package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shared-event-wallet/internal/domain/expense"
	"github.com/shared-event-wallet/internal/domain/ledger"
	"github.com/shared-event-wallet/internal/domain/shared"
	"github.com/shared-event-wallet/internal/platform/persistence"
)

const transactionColumns = `id, event_id, wallet_id, type, amount, currency, actor_id, category_id, status, gateway_tx_ref, gateway_intent_ref, description, metadata, created_at, updated_at, completed_at`

// TransactionRepository implements the ledger.Repository interface for PostgreSQL
type TransactionRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

// NewTransactionRepository creates a new PostgreSQL ledger repository
func NewTransactionRepository(logger *slog.Logger, db *persistence.PostgresDB) ledger.Repository {
	return &TransactionRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

func (r *TransactionRepository) WithTx(tx pgx.Tx) ledger.Repository {
	return &TransactionRepository{
		querier: tx,
		logger:  r.logger,
	}
}

func scanTransaction(row rowScanner) (*ledger.Transaction, error) {
	var tx ledger.Transaction
	var metadata []byte
	err := row.Scan(
		&tx.ID,
		&tx.EventID,
		&tx.WalletID,
		&tx.Type,
		&tx.Amount,
		&tx.Currency,
		&tx.ActorID,
		&tx.CategoryID,
		&tx.Status,
		&tx.GatewayTxRef,
		&tx.GatewayIntentRef,
		&tx.Description,
		&metadata,
		&tx.CreatedAt,
		&tx.UpdatedAt,
		&tx.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(metadata) > 0 {
		var m map[string]string
		if err := json.Unmarshal(metadata, &m); err != nil {
			return nil, fmt.Errorf("failed to decode transaction metadata: %w", err)
		}
		if len(m) > 0 {
			tx.Metadata = m
		}
	}
	return &tx, nil
}

func (r *TransactionRepository) Create(ctx context.Context, tx *ledger.Transaction) error {
	metadata := []byte("{}")
	if len(tx.Metadata) > 0 {
		encoded, err := json.Marshal(tx.Metadata)
		if err != nil {
			return fmt.Errorf("failed to encode transaction metadata: %w", err)
		}
		metadata = encoded
	}

	query := `
		INSERT INTO transactions (` + transactionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`

	_, err := r.querier.Exec(ctx, query,
		tx.ID,
		tx.EventID,
		tx.WalletID,
		tx.Type,
		tx.Amount,
		tx.Currency,
		tx.ActorID,
		tx.CategoryID,
		tx.Status,
		tx.GatewayTxRef,
		tx.GatewayIntentRef,
		tx.Description,
		metadata,
		tx.CreatedAt,
		tx.UpdatedAt,
		tx.CompletedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create transaction",
			"transaction_id", tx.ID.String(),
			"event_id", tx.EventID.String(),
			"type", string(tx.Type),
			"error", err,
		)
		return fmt.Errorf("failed to create transaction: %w", err)
	}

	return nil
}

func (r *TransactionRepository) GetByID(ctx context.Context, id uuid.UUID) (*ledger.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1`

	tx, err := scanTransaction(r.querier.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.NotFoundError{Resource: "transaction", ID: id.String()}
		}
		r.logger.Error("Failed to get transaction", "transaction_id", id.String(), "error", err)
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}

	return tx, nil
}

// GetDepositByIntentRef locks the deposit created for a gateway payment intent
func (r *TransactionRepository) GetDepositByIntentRef(ctx context.Context, intentRef string) (*ledger.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE gateway_intent_ref = $1 AND type = $2 FOR UPDATE`

	tx, err := scanTransaction(r.querier.QueryRow(ctx, query, intentRef, shared.TransactionTypeDeposit))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.NotFoundError{Resource: "deposit", ID: intentRef}
		}
		r.logger.Error("Failed to get deposit by intent ref", "intent_ref", intentRef, "error", err)
		return nil, fmt.Errorf("failed to get deposit by intent ref: %w", err)
	}

	return tx, nil
}

// GetOldestPendingDeposit locks the oldest pending deposit of amount for the event
func (r *TransactionRepository) GetOldestPendingDeposit(ctx context.Context, eventID uuid.UUID, amount int64) (*ledger.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE event_id = $1 AND amount = $2 AND type = $3 AND status = $4
		ORDER BY created_at ASC
		LIMIT 1
		FOR UPDATE
	`

	tx, err := scanTransaction(r.querier.QueryRow(ctx, query,
		eventID, amount, shared.TransactionTypeDeposit, shared.TransactionStatusPending))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.NotFoundError{Resource: "deposit", ID: eventID.String()}
		}
		r.logger.Error("Failed to get pending deposit", "event_id", eventID.String(), "amount", amount, "error", err)
		return nil, fmt.Errorf("failed to get pending deposit: %w", err)
	}

	return tx, nil
}

// ListByEvent returns the most recent transactions first
func (r *TransactionRepository) ListByEvent(ctx context.Context, eventID uuid.UUID, limit int) ([]*ledger.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE event_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	return r.list(ctx, "failed to list transactions", query, eventID, limit)
}

// ListUnlinkedExpenses returns completed expense transactions that no paid
// expense record points at. A disputed expense keeps its transaction, so its
// amount is shared by every participant.
func (r *TransactionRepository) ListUnlinkedExpenses(ctx context.Context, eventID uuid.UUID) ([]*ledger.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE event_id = $1 AND type = $2 AND status = $3
		AND NOT EXISTS (
			SELECT 1 FROM expenses
			WHERE expenses.transaction_id = transactions.id AND expenses.status = $4
		)
		ORDER BY created_at ASC
	`

	return r.list(ctx, "failed to list unlinked expense transactions", query,
		eventID, shared.TransactionTypeExpense, shared.TransactionStatusCompleted, expense.StatusPaid)
}

func (r *TransactionRepository) list(ctx context.Context, failure, query string, args ...interface{}) ([]*ledger.Transaction, error) {
	rows, err := r.querier.Query(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to query transactions", "error", err)
		return nil, fmt.Errorf("%s: %w", failure, err)
	}
	defer rows.Close()

	transactions := make([]*ledger.Transaction, 0)
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		transactions = append(transactions, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over transactions: %w", err)
	}

	return transactions, nil
}

// UpdateStatus persists the status, gateway reference and completion time of tx
func (r *TransactionRepository) UpdateStatus(ctx context.Context, tx *ledger.Transaction) error {
	query := `
		UPDATE transactions
		SET status = $1, gateway_tx_ref = $2, updated_at = $3, completed_at = $4
		WHERE id = $5
	`

	result, err := r.querier.Exec(ctx, query, tx.Status, tx.GatewayTxRef, tx.UpdatedAt, tx.CompletedAt, tx.ID)
	if err != nil {
		r.logger.Error("Failed to update transaction status",
			"transaction_id", tx.ID.String(),
			"status", string(tx.Status),
			"error", err,
		)
		return fmt.Errorf("failed to update transaction status: %w", err)
	}
	if result.RowsAffected() == 0 {
		return shared.NotFoundError{Resource: "transaction", ID: tx.ID.String()}
	}

	return nil
}

// CategorySpend sums completed expense transactions charged to a category
func (r *TransactionRepository) CategorySpend(ctx context.Context, eventID, categoryID uuid.UUID) (int64, error) {
	query := `
		SELECT COALESCE(SUM(amount), 0)
		FROM transactions
		WHERE event_id = $1 AND category_id = $2 AND type = $3 AND status = $4
	`

	var spend int64
	err := r.querier.QueryRow(ctx, query,
		eventID, categoryID, shared.TransactionTypeExpense, shared.TransactionStatusCompleted).Scan(&spend)
	if err != nil {
		r.logger.Error("Failed to sum category spend", "category_id", categoryID.String(), "error", err)
		return 0, fmt.Errorf("failed to sum category spend: %w", err)
	}

	return spend, nil
}

// SpendByCategory returns completed expense totals keyed by category
func (r *TransactionRepository) SpendByCategory(ctx context.Context, eventID uuid.UUID) (map[uuid.UUID]int64, error) {
	query := `
		SELECT category_id, SUM(amount)
		FROM transactions
		WHERE event_id = $1 AND category_id IS NOT NULL AND type = $2 AND status = $3
		GROUP BY category_id
	`

	rows, err := r.querier.Query(ctx, query, eventID, shared.TransactionTypeExpense, shared.TransactionStatusCompleted)
	if err != nil {
		r.logger.Error("Failed to sum spend by category", "event_id", eventID.String(), "error", err)
		return nil, fmt.Errorf("failed to sum spend by category: %w", err)
	}
	defer rows.Close()

	spend := make(map[uuid.UUID]int64)
	for rows.Next() {
		var categoryID uuid.UUID
		var total int64
		if err := rows.Scan(&categoryID, &total); err != nil {
			return nil, fmt.Errorf("failed to scan category spend: %w", err)
		}
		spend[categoryID] = total
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over category spend: %w", err)
	}

	return spend, nil
}

// Totals aggregates completed deposits, expenses and refunds of an event
func (r *TransactionRepository) Totals(ctx context.Context, eventID uuid.UUID) (ledger.Totals, error) {
	query := `
		SELECT
			COALESCE(SUM(amount) FILTER (WHERE type = 'deposit'), 0),
			COALESCE(SUM(amount) FILTER (WHERE type = 'expense'), 0),
			COALESCE(SUM(amount) FILTER (WHERE type = 'refund'), 0),
			COUNT(*) FILTER (WHERE type = 'deposit'),
			COUNT(*) FILTER (WHERE type = 'expense')
		FROM transactions
		WHERE event_id = $1 AND status = $2
	`

	var totals ledger.Totals
	err := r.querier.QueryRow(ctx, query, eventID, shared.TransactionStatusCompleted).Scan(
		&totals.Deposited,
		&totals.Paid,
		&totals.Refunded,
		&totals.DepositCount,
		&totals.PaymentCount,
	)
	if err != nil {
		r.logger.Error("Failed to compute ledger totals", "event_id", eventID.String(), "error", err)
		return ledger.Totals{}, fmt.Errorf("failed to compute ledger totals: %w", err)
	}

	return totals, nil
}
