package ledger

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shared-event-wallet/internal/domain/shared"
)

// Repository persists ledger transactions in Postgres
type Repository interface {
	Create(ctx context.Context, tx *Transaction) error
	GetByID(ctx context.Context, id uuid.UUID) (*Transaction, error)

	// GetDepositByIntentRef finds a deposit by its gateway intent reference, locking the row
	GetDepositByIntentRef(ctx context.Context, intentRef string) (*Transaction, error)

	// GetOldestPendingDeposit is the fallback match for callbacks without an intent reference
	GetOldestPendingDeposit(ctx context.Context, eventID uuid.UUID, amount int64) (*Transaction, error)
	ListByEvent(ctx context.Context, eventID uuid.UUID, limit int) ([]*Transaction, error)
	UpdateStatus(ctx context.Context, tx *Transaction) error

	// CategorySpend sums completed expense transactions charged to a category
	CategorySpend(ctx context.Context, eventID, categoryID uuid.UUID) (int64, error)
	SpendByCategory(ctx context.Context, eventID uuid.UUID) (map[uuid.UUID]int64, error)

	// ListUnlinkedExpenses returns completed expense transactions no expense record points at
	ListUnlinkedExpenses(ctx context.Context, eventID uuid.UUID) ([]*Transaction, error)
	Totals(ctx context.Context, eventID uuid.UUID) (Totals, error)
	WithTx(tx pgx.Tx) Repository
}

// MirrorRepository is the read-optimised ledger copy kept in MongoDB
type MirrorRepository interface {
	Create(ctx context.Context, entry *Entry) error
	GetByTransactionID(ctx context.Context, transactionID string) (*Entry, error)
	UpdateStatus(ctx context.Context, transactionID string, status shared.TransactionStatus, gatewayTxRef string) error
	ListByEvent(ctx context.Context, eventID string, limit, offset int) ([]*Entry, error)
	CountByEvent(ctx context.Context, eventID string) (int64, error)
	ListByActor(ctx context.Context, eventID, actorID string, limit, offset int) ([]*Entry, error)
}

// ErrEntryNotFound indicates missing ledger entry
type ErrEntryNotFound struct {
	TransactionID string
}

func (e ErrEntryNotFound) Error() string {
	return "ledger entry not found: " + e.TransactionID
}

// Is implements the errors.Is interface for ErrEntryNotFound
func (e ErrEntryNotFound) Is(target error) bool {
	t, ok := target.(ErrEntryNotFound)
	if !ok {
		return false
	}
	return t.TransactionID == "" || e.TransactionID == t.TransactionID
}

// ErrDuplicateEntry indicates transaction uniqueness violation
type ErrDuplicateEntry struct {
	TransactionID string
}

func (e ErrDuplicateEntry) Error() string {
	return "duplicate ledger entry: " + e.TransactionID
}

// Is implements the errors.Is interface for ErrDuplicateEntry
func (e ErrDuplicateEntry) Is(target error) bool {
	t, ok := target.(ErrDuplicateEntry)
	if !ok {
		return false
	}
	return t.TransactionID == "" || e.TransactionID == t.TransactionID
}
