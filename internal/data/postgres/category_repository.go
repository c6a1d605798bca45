package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shared-event-wallet/internal/domain/event"
	"github.com/shared-event-wallet/internal/domain/shared"
	"github.com/shared-event-wallet/internal/platform/persistence"
)

const categoryColumns = `id, event_id, name, description, budget_limit, approval_threshold, authorized_payers, approver_ids, status, created_by, created_at, updated_at`

// CategoryRepository implements event.CategoryRepository for PostgreSQL.
// Memberships live in their own table; only open rows (left_at IS NULL) are
// loaded into Category.Members.
type CategoryRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

func NewCategoryRepository(logger *slog.Logger, db *persistence.PostgresDB) event.CategoryRepository {
	return &CategoryRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

func (r *CategoryRepository) WithTx(tx pgx.Tx) event.CategoryRepository {
	return &CategoryRepository{
		querier: tx,
		logger:  r.logger,
	}
}

// Create stores c. Names are unique per event regardless of case.
func (r *CategoryRepository) Create(ctx context.Context, c *event.Category) error {
	query := `
		INSERT INTO categories (` + categoryColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err := r.querier.Exec(ctx, query,
		c.ID,
		c.EventID,
		c.Name,
		c.Description,
		c.BudgetLimit,
		c.ApprovalThreshold,
		c.AuthorizedPayers,
		c.ApproverIDs,
		c.Status,
		c.CreatedBy,
		c.CreatedAt,
		c.UpdatedAt,
	)
	if err != nil {
		if persistence.IsUniqueViolation(err) {
			return shared.StateConflictError{Reason: "Category with this name already exists"}
		}
		r.logger.Error("Failed to create category", "event_id", c.EventID.String(), "name", c.Name, "error", err)
		return fmt.Errorf("failed to create category: %w", err)
	}

	return nil
}

func scanCategory(row rowScanner) (*event.Category, error) {
	var c event.Category
	err := row.Scan(
		&c.ID,
		&c.EventID,
		&c.Name,
		&c.Description,
		&c.BudgetLimit,
		&c.ApprovalThreshold,
		&c.AuthorizedPayers,
		&c.ApproverIDs,
		&c.Status,
		&c.CreatedBy,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if c.AuthorizedPayers == nil {
		c.AuthorizedPayers = []uuid.UUID{}
	}
	if c.ApproverIDs == nil {
		c.ApproverIDs = []uuid.UUID{}
	}
	c.Members = map[uuid.UUID]event.Membership{}
	return &c, nil
}

// GetByID loads the category with its active members
func (r *CategoryRepository) GetByID(ctx context.Context, eventID, categoryID uuid.UUID) (*event.Category, error) {
	query := `SELECT ` + categoryColumns + ` FROM categories WHERE id = $1 AND event_id = $2`

	c, err := scanCategory(r.querier.QueryRow(ctx, query, categoryID, eventID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.NotFoundError{Resource: "category", ID: categoryID.String()}
		}
		r.logger.Error("Failed to get category", "category_id", categoryID.String(), "error", err)
		return nil, fmt.Errorf("failed to get category: %w", err)
	}

	membersQuery := `
		SELECT category_id, user_id, joined_at, left_at
		FROM category_memberships
		WHERE category_id = $1 AND left_at IS NULL
	`
	if err := r.loadMembers(ctx, map[uuid.UUID]*event.Category{c.ID: c}, membersQuery, c.ID); err != nil {
		return nil, err
	}

	return c, nil
}

// ListByEvent returns the event's categories in creation order with their active members
func (r *CategoryRepository) ListByEvent(ctx context.Context, eventID uuid.UUID) ([]*event.Category, error) {
	query := `SELECT ` + categoryColumns + ` FROM categories WHERE event_id = $1 ORDER BY created_at ASC`

	rows, err := r.querier.Query(ctx, query, eventID)
	if err != nil {
		r.logger.Error("Failed to list categories", "event_id", eventID.String(), "error", err)
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}

	categories := make([]*event.Category, 0)
	byID := make(map[uuid.UUID]*event.Category)
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		categories = append(categories, c)
		byID[c.ID] = c
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over categories: %w", err)
	}
	if len(categories) == 0 {
		return categories, nil
	}

	membersQuery := `
		SELECT m.category_id, m.user_id, m.joined_at, m.left_at
		FROM category_memberships m
		JOIN categories c ON c.id = m.category_id
		WHERE c.event_id = $1 AND m.left_at IS NULL
	`
	if err := r.loadMembers(ctx, byID, membersQuery, eventID); err != nil {
		return nil, err
	}

	return categories, nil
}

func (r *CategoryRepository) loadMembers(ctx context.Context, byID map[uuid.UUID]*event.Category, query string, arg uuid.UUID) error {
	rows, err := r.querier.Query(ctx, query, arg)
	if err != nil {
		r.logger.Error("Failed to load category members", "error", err)
		return fmt.Errorf("failed to load category members: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var m event.Membership
		if err := rows.Scan(&m.CategoryID, &m.UserID, &m.JoinedAt, &m.LeftAt); err != nil {
			return fmt.Errorf("failed to scan category member: %w", err)
		}
		if c, ok := byID[m.CategoryID]; ok {
			c.Members[m.UserID] = m
		}
	}

	return rows.Err()
}

// UpdateLimits persists budget limit, approval threshold, approvers and authorized payers
func (r *CategoryRepository) UpdateLimits(ctx context.Context, c *event.Category) error {
	query := `
		UPDATE categories
		SET budget_limit = $1, approval_threshold = $2, approver_ids = $3, authorized_payers = $4, updated_at = $5
		WHERE id = $6
	`

	result, err := r.querier.Exec(ctx, query,
		c.BudgetLimit,
		c.ApprovalThreshold,
		c.ApproverIDs,
		c.AuthorizedPayers,
		c.UpdatedAt,
		c.ID,
	)
	if err != nil {
		r.logger.Error("Failed to update category limits", "category_id", c.ID.String(), "error", err)
		return fmt.Errorf("failed to update category limits: %w", err)
	}
	if result.RowsAffected() == 0 {
		return shared.NotFoundError{Resource: "category", ID: c.ID.String()}
	}

	return nil
}

func (r *CategoryRepository) UpdateStatus(ctx context.Context, categoryID uuid.UUID, status event.CategoryStatus) error {
	query := `
		UPDATE categories
		SET status = $1, updated_at = NOW()
		WHERE id = $2
	`

	result, err := r.querier.Exec(ctx, query, status, categoryID)
	if err != nil {
		r.logger.Error("Failed to update category status", "category_id", categoryID.String(), "error", err)
		return fmt.Errorf("failed to update category status: %w", err)
	}
	if result.RowsAffected() == 0 {
		return shared.NotFoundError{Resource: "category", ID: categoryID.String()}
	}

	return nil
}

// AddMember opens a membership row. A user may hold one open membership per category.
func (r *CategoryRepository) AddMember(ctx context.Context, m *event.Membership) error {
	query := `
		INSERT INTO category_memberships (category_id, user_id, joined_at)
		VALUES ($1, $2, $3)
	`

	_, err := r.querier.Exec(ctx, query, m.CategoryID, m.UserID, m.JoinedAt)
	if err != nil {
		if persistence.IsUniqueViolation(err) {
			return shared.StateConflictError{Reason: "Already a member of this category"}
		}
		r.logger.Error("Failed to add category member",
			"category_id", m.CategoryID.String(),
			"user_id", m.UserID.String(),
			"error", err,
		)
		return fmt.Errorf("failed to add category member: %w", err)
	}

	return nil
}

// EndMembership closes the user's open membership row
func (r *CategoryRepository) EndMembership(ctx context.Context, categoryID, userID uuid.UUID, leftAt time.Time) error {
	query := `
		UPDATE category_memberships
		SET left_at = $1
		WHERE category_id = $2 AND user_id = $3 AND left_at IS NULL
	`

	result, err := r.querier.Exec(ctx, query, leftAt, categoryID, userID)
	if err != nil {
		r.logger.Error("Failed to end category membership",
			"category_id", categoryID.String(),
			"user_id", userID.String(),
			"error", err,
		)
		return fmt.Errorf("failed to end category membership: %w", err)
	}
	if result.RowsAffected() == 0 {
		return shared.NotFoundError{Resource: "category membership", ID: userID.String()}
	}

	return nil
}
