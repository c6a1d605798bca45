package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/shared-event-wallet/internal/domain/shared"
	"github.com/shared-event-wallet/internal/platform/persistence"
)

// UserRepository is the read-only user directory
type UserRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

func NewUserRepository(logger *slog.Logger, db *persistence.PostgresDB) *UserRepository {
	return &UserRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// GetByIDs resolves the given users. Unknown IDs are absent from the result.
func (r *UserRepository) GetByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]shared.UserProfile, error) {
	profiles := make(map[uuid.UUID]shared.UserProfile, len(ids))
	if len(ids) == 0 {
		return profiles, nil
	}

	rows, err := r.querier.Query(ctx, `SELECT id, name, email FROM users WHERE id = ANY($1)`, ids)
	if err != nil {
		r.logger.Error("Failed to resolve users", "count", len(ids), "error", err)
		return nil, fmt.Errorf("failed to resolve users: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var p shared.UserProfile
		if err := rows.Scan(&p.ID, &p.Name, &p.Email); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		profiles[p.ID] = p
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over users: %w", err)
	}

	return profiles, nil
}
