// Package service implements the wallet use cases on top of the domain
// packages: ledger credit and debit, events and categories, the expense
// workflow, and settlement with refund closeout.
package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/shared-event-wallet/internal/domain/event"
	"github.com/shared-event-wallet/internal/domain/expense"
	"github.com/shared-event-wallet/internal/domain/ledger"
	"github.com/shared-event-wallet/internal/domain/outbox"
	"github.com/shared-event-wallet/internal/domain/settlement"
	"github.com/shared-event-wallet/internal/domain/shared"
	"github.com/shared-event-wallet/internal/domain/wallet"
)

// TxRunner runs fn inside a database transaction. *persistence.PostgresDB satisfies it.
type TxRunner interface {
	ExecuteTx(ctx context.Context, fn func(tx pgx.Tx) error) error
}

// Locker provides cross-instance mutual exclusion. *lock.RedisLocker satisfies it.
type Locker interface {
	WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error
}

// Directory resolves display names and emails of users
type Directory interface {
	GetByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]shared.UserProfile, error)
}

// Repositories groups the Postgres repositories a use case touches
type Repositories struct {
	Events       event.Repository
	Categories   event.CategoryRepository
	Wallets      wallet.Repository
	Transactions ledger.Repository
	Expenses     expense.Repository
	Settlements  settlement.Repository
	Outbox       outbox.Repository
}

// WithTx binds every repository to tx
func (r Repositories) WithTx(tx pgx.Tx) Repositories {
	return Repositories{
		Events:       r.Events.WithTx(tx),
		Categories:   r.Categories.WithTx(tx),
		Wallets:      r.Wallets.WithTx(tx),
		Transactions: r.Transactions.WithTx(tx),
		Expenses:     r.Expenses.WithTx(tx),
		Settlements:  r.Settlements.WithTx(tx),
		Outbox:       r.Outbox.WithTx(tx),
	}
}
