package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shared-event-wallet/internal/domain/expense"
	"github.com/shared-event-wallet/internal/domain/shared"
	"github.com/shared-event-wallet/internal/platform/persistence"
)

const expenseColumns = `id, event_id, category_id, paid_by, amount, description, receipt_ref, status, approved_by, rejection_reason, transaction_id, locked_participant_ids, created_at, updated_at, paid_at`

// ExpenseRepository implements the expense.Repository interface for PostgreSQL
type ExpenseRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

func NewExpenseRepository(logger *slog.Logger, db *persistence.PostgresDB) expense.Repository {
	return &ExpenseRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

func (r *ExpenseRepository) WithTx(tx pgx.Tx) expense.Repository {
	return &ExpenseRepository{
		querier: tx,
		logger:  r.logger,
	}
}

func scanExpense(row rowScanner) (*expense.Expense, error) {
	var e expense.Expense
	err := row.Scan(
		&e.ID,
		&e.EventID,
		&e.CategoryID,
		&e.PaidBy,
		&e.Amount,
		&e.Description,
		&e.ReceiptRef,
		&e.Status,
		&e.ApprovedBy,
		&e.RejectionReason,
		&e.TransactionID,
		&e.LockedParticipantIDs,
		&e.CreatedAt,
		&e.UpdatedAt,
		&e.PaidAt,
	)
	if err != nil {
		return nil, err
	}
	if e.LockedParticipantIDs == nil {
		e.LockedParticipantIDs = []uuid.UUID{}
	}
	return &e, nil
}

func (r *ExpenseRepository) Create(ctx context.Context, e *expense.Expense) error {
	query := `
		INSERT INTO expenses (` + expenseColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`

	_, err := r.querier.Exec(ctx, query,
		e.ID,
		e.EventID,
		e.CategoryID,
		e.PaidBy,
		e.Amount,
		e.Description,
		e.ReceiptRef,
		e.Status,
		e.ApprovedBy,
		e.RejectionReason,
		e.TransactionID,
		e.LockedParticipantIDs,
		e.CreatedAt,
		e.UpdatedAt,
		e.PaidAt,
	)
	if err != nil {
		r.logger.Error("Failed to create expense", "expense_id", e.ID.String(), "event_id", e.EventID.String(), "error", err)
		return fmt.Errorf("failed to create expense: %w", err)
	}

	return nil
}

func (r *ExpenseRepository) GetByID(ctx context.Context, eventID, id uuid.UUID) (*expense.Expense, error) {
	return r.get(ctx, `SELECT `+expenseColumns+` FROM expenses WHERE id = $1 AND event_id = $2`, eventID, id)
}

// LockByID takes a row lock so approve, reject and dispute cannot interleave
func (r *ExpenseRepository) LockByID(ctx context.Context, eventID, id uuid.UUID) (*expense.Expense, error) {
	return r.get(ctx, `SELECT `+expenseColumns+` FROM expenses WHERE id = $1 AND event_id = $2 FOR UPDATE`, eventID, id)
}

func (r *ExpenseRepository) get(ctx context.Context, query string, eventID, id uuid.UUID) (*expense.Expense, error) {
	e, err := scanExpense(r.querier.QueryRow(ctx, query, id, eventID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.NotFoundError{Resource: "expense", ID: id.String()}
		}
		r.logger.Error("Failed to get expense", "expense_id", id.String(), "error", err)
		return nil, fmt.Errorf("failed to get expense: %w", err)
	}
	return e, nil
}

// Update persists every mutable field of e
func (r *ExpenseRepository) Update(ctx context.Context, e *expense.Expense) error {
	query := `
		UPDATE expenses
		SET status = $1, approved_by = $2, rejection_reason = $3, transaction_id = $4,
			locked_participant_ids = $5, updated_at = $6, paid_at = $7,
			description = $8, receipt_ref = $9
		WHERE id = $10
	`

	result, err := r.querier.Exec(ctx, query,
		e.Status,
		e.ApprovedBy,
		e.RejectionReason,
		e.TransactionID,
		e.LockedParticipantIDs,
		e.UpdatedAt,
		e.PaidAt,
		e.Description,
		e.ReceiptRef,
		e.ID,
	)
	if err != nil {
		r.logger.Error("Failed to update expense", "expense_id", e.ID.String(), "status", string(e.Status), "error", err)
		return fmt.Errorf("failed to update expense: %w", err)
	}
	if result.RowsAffected() == 0 {
		return shared.NotFoundError{Resource: "expense", ID: e.ID.String()}
	}

	return nil
}

func (r *ExpenseRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.querier.Exec(ctx, `DELETE FROM expenses WHERE id = $1`, id)
	if err != nil {
		r.logger.Error("Failed to delete expense", "expense_id", id.String(), "error", err)
		return fmt.Errorf("failed to delete expense: %w", err)
	}
	if result.RowsAffected() == 0 {
		return shared.NotFoundError{Resource: "expense", ID: id.String()}
	}

	return nil
}

// List returns the event's expenses, newest first, narrowed by filter
func (r *ExpenseRepository) List(ctx context.Context, eventID uuid.UUID, filter expense.Filter) ([]*expense.Expense, error) {
	conditions := []string{"event_id = $1"}
	args := []interface{}{eventID}
	if filter.CategoryID != nil {
		args = append(args, *filter.CategoryID)
		conditions = append(conditions, fmt.Sprintf("category_id = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}

	query := `SELECT ` + expenseColumns + ` FROM expenses WHERE ` + strings.Join(conditions, " AND ") + ` ORDER BY created_at DESC`
	return r.list(ctx, query, args...)
}

// ListPaid returns paid expenses in payment order
func (r *ExpenseRepository) ListPaid(ctx context.Context, eventID uuid.UUID) ([]*expense.Expense, error) {
	query := `SELECT ` + expenseColumns + ` FROM expenses WHERE event_id = $1 AND status = $2 ORDER BY paid_at ASC, id ASC`
	return r.list(ctx, query, eventID, expense.StatusPaid)
}

func (r *ExpenseRepository) list(ctx context.Context, query string, args ...interface{}) ([]*expense.Expense, error) {
	rows, err := r.querier.Query(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list expenses", "error", err)
		return nil, fmt.Errorf("failed to list expenses: %w", err)
	}
	defer rows.Close()

	expenses := make([]*expense.Expense, 0)
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan expense: %w", err)
		}
		expenses = append(expenses, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over expenses: %w", err)
	}

	return expenses, nil
}
