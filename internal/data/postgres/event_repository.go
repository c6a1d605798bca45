// Package postgres provides PostgreSQL implementations of the domain repositories.
// Every repository accepts either the pool or a pgx.Tx through WithTx, so
// services can compose several of them inside one database transaction.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shared-event-wallet/internal/domain/event"
	"github.com/shared-event-wallet/internal/domain/shared"
	"github.com/shared-event-wallet/internal/platform/persistence"
)

const eventColumns = `id, name, description, currency, status, creator_id, gateway_wallet_ref, require_category_participation, allowed_payer_roles, max_expense_per_category, start_date, end_date, created_at, updated_at`

const participantColumns = `event_id, user_id, role, deposited_amount, joined_at`

// rowScanner is satisfied by both pgx.Row and pgx.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// EventRepository implements the event.Repository interface for PostgreSQL
type EventRepository struct {
	querier persistence.Querier // Can be *pgxpool.Pool or pgx.Tx
	logger  *slog.Logger
}

// NewEventRepository creates a new PostgreSQL event repository
func NewEventRepository(logger *slog.Logger, db *persistence.PostgresDB) event.Repository {
	return &EventRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// WithTx returns a repository bound to tx
func (r *EventRepository) WithTx(tx pgx.Tx) event.Repository {
	return &EventRepository{
		querier: tx,
		logger:  r.logger,
	}
}

func scanEvent(row rowScanner) (*event.Event, error) {
	var evt event.Event
	var roles []string
	err := row.Scan(
		&evt.ID,
		&evt.Name,
		&evt.Description,
		&evt.Currency,
		&evt.Status,
		&evt.CreatorID,
		&evt.GatewayWalletRef,
		&evt.Rules.RequireCategoryParticipation,
		&roles,
		&evt.Rules.MaxExpensePerCategory,
		&evt.StartDate,
		&evt.EndDate,
		&evt.CreatedAt,
		&evt.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	evt.Rules.AllowedPayerRoles = make([]event.Role, 0, len(roles))
	for _, role := range roles {
		evt.Rules.AllowedPayerRoles = append(evt.Rules.AllowedPayerRoles, event.Role(role))
	}
	return &evt, nil
}

func roleStrings(roles []event.Role) []string {
	out := make([]string, 0, len(roles))
	for _, role := range roles {
		out = append(out, string(role))
	}
	return out
}

// Create stores a new event
func (r *EventRepository) Create(ctx context.Context, evt *event.Event) error {
	query := `
		INSERT INTO events (` + eventColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`

	_, err := r.querier.Exec(ctx, query,
		evt.ID,
		evt.Name,
		evt.Description,
		evt.Currency,
		evt.Status,
		evt.CreatorID,
		evt.GatewayWalletRef,
		evt.Rules.RequireCategoryParticipation,
		roleStrings(evt.Rules.AllowedPayerRoles),
		evt.Rules.MaxExpensePerCategory,
		evt.StartDate,
		evt.EndDate,
		evt.CreatedAt,
		evt.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create event", "event_id", evt.ID.String(), "error", err)
		return fmt.Errorf("failed to create event: %w", err)
	}

	return nil
}

// GetByID retrieves an event by its ID
func (r *EventRepository) GetByID(ctx context.Context, id uuid.UUID) (*event.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE id = $1`

	evt, err := scanEvent(r.querier.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.NotFoundError{Resource: "event", ID: id.String()}
		}
		r.logger.Error("Failed to get event", "event_id", id.String(), "error", err)
		return nil, fmt.Errorf("failed to get event: %w", err)
	}

	return evt, nil
}

// LockForUpdate retrieves an event with a row lock held until the transaction ends
func (r *EventRepository) LockForUpdate(ctx context.Context, id uuid.UUID) (*event.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE id = $1 FOR UPDATE`

	evt, err := scanEvent(r.querier.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.NotFoundError{Resource: "event", ID: id.String()}
		}
		r.logger.Error("Failed to lock event for update", "event_id", id.String(), "error", err)
		return nil, fmt.Errorf("failed to lock event for update: %w", err)
	}

	return evt, nil
}

func (r *EventRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status event.Status) error {
	query := `
		UPDATE events
		SET status = $1, updated_at = NOW(), version = version + 1
		WHERE id = $2
	`

	result, err := r.querier.Exec(ctx, query, status, id)
	if err != nil {
		r.logger.Error("Failed to update event status", "event_id", id.String(), "status", string(status), "error", err)
		return fmt.Errorf("failed to update event status: %w", err)
	}
	if result.RowsAffected() == 0 {
		return shared.NotFoundError{Resource: "event", ID: id.String()}
	}

	return nil
}

func (r *EventRepository) UpdateGatewayWalletRef(ctx context.Context, id uuid.UUID, ref string) error {
	query := `
		UPDATE events
		SET gateway_wallet_ref = $1, updated_at = NOW()
		WHERE id = $2
	`

	result, err := r.querier.Exec(ctx, query, ref, id)
	if err != nil {
		r.logger.Error("Failed to update gateway wallet ref", "event_id", id.String(), "error", err)
		return fmt.Errorf("failed to update gateway wallet ref: %w", err)
	}
	if result.RowsAffected() == 0 {
		return shared.NotFoundError{Resource: "event", ID: id.String()}
	}

	return nil
}

// ListByParticipant returns the events userID takes part in, newest first
func (r *EventRepository) ListByParticipant(ctx context.Context, userID uuid.UUID) ([]*event.Event, error) {
	query := `
		SELECT ` + eventColumns + `
		FROM events
		WHERE id IN (SELECT event_id FROM participants WHERE user_id = $1)
		ORDER BY created_at DESC
	`

	rows, err := r.querier.Query(ctx, query, userID)
	if err != nil {
		r.logger.Error("Failed to list events", "user_id", userID.String(), "error", err)
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer rows.Close()

	events := make([]*event.Event, 0)
	for rows.Next() {
		evt, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, evt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over events: %w", err)
	}

	return events, nil
}

// AddParticipant inserts p. A second join by the same user is a state conflict.
func (r *EventRepository) AddParticipant(ctx context.Context, p *event.Participant) error {
	query := `
		INSERT INTO participants (` + participantColumns + `)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := r.querier.Exec(ctx, query, p.EventID, p.UserID, p.Role, p.DepositedAmount, p.JoinedAt)
	if err != nil {
		if persistence.IsUniqueViolation(err) {
			return shared.StateConflictError{Reason: "Already a participant", Err: shared.ErrAlreadyParticipant}
		}
		r.logger.Error("Failed to add participant",
			"event_id", p.EventID.String(),
			"user_id", p.UserID.String(),
			"error", err,
		)
		return fmt.Errorf("failed to add participant: %w", err)
	}

	return nil
}

func scanParticipant(row rowScanner) (*event.Participant, error) {
	var p event.Participant
	if err := row.Scan(&p.EventID, &p.UserID, &p.Role, &p.DepositedAmount, &p.JoinedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *EventRepository) GetParticipant(ctx context.Context, eventID, userID uuid.UUID) (*event.Participant, error) {
	query := `SELECT ` + participantColumns + ` FROM participants WHERE event_id = $1 AND user_id = $2`

	p, err := scanParticipant(r.querier.QueryRow(ctx, query, eventID, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.NotFoundError{Resource: "participant", ID: userID.String()}
		}
		r.logger.Error("Failed to get participant", "event_id", eventID.String(), "user_id", userID.String(), "error", err)
		return nil, fmt.Errorf("failed to get participant: %w", err)
	}

	return p, nil
}

// ListParticipants returns participants in join order
func (r *EventRepository) ListParticipants(ctx context.Context, eventID uuid.UUID) ([]*event.Participant, error) {
	query := `SELECT ` + participantColumns + ` FROM participants WHERE event_id = $1 ORDER BY joined_at ASC, user_id ASC`

	rows, err := r.querier.Query(ctx, query, eventID)
	if err != nil {
		r.logger.Error("Failed to list participants", "event_id", eventID.String(), "error", err)
		return nil, fmt.Errorf("failed to list participants: %w", err)
	}
	defer rows.Close()

	participants := make([]*event.Participant, 0)
	for rows.Next() {
		p, err := scanParticipant(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan participant: %w", err)
		}
		participants = append(participants, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over participants: %w", err)
	}

	return participants, nil
}

func (r *EventRepository) AddDeposit(ctx context.Context, eventID, userID uuid.UUID, amount int64) error {
	query := `
		UPDATE participants
		SET deposited_amount = deposited_amount + $1
		WHERE event_id = $2 AND user_id = $3
	`

	result, err := r.querier.Exec(ctx, query, amount, eventID, userID)
	if err != nil {
		r.logger.Error("Failed to add participant deposit",
			"event_id", eventID.String(),
			"user_id", userID.String(),
			"amount", amount,
			"error", err,
		)
		return fmt.Errorf("failed to add participant deposit: %w", err)
	}
	if result.RowsAffected() == 0 {
		return shared.NotFoundError{Resource: "participant", ID: userID.String()}
	}

	return nil
}
