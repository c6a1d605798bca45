package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/shared-event-wallet/internal/domain/ledger"
	"github.com/shared-event-wallet/internal/domain/outbox"
	"github.com/shared-event-wallet/internal/domain/shared"
	"github.com/shared-event-wallet/internal/domain/wallet"
	"github.com/shared-event-wallet/internal/logger"
)

// LedgerStore is the only writer of wallet balances. Every balance change
// happens under the wallet row lock, in the same database transaction as the
// ledger entry, the participant deposit total and the outbox message.
type LedgerStore struct {
	db     TxRunner
	repos  Repositories
	logger *slog.Logger
}

func NewLedgerStore(logger *slog.Logger, db TxRunner, repos Repositories) *LedgerStore {
	return &LedgerStore{
		db:     db,
		repos:  repos,
		logger: logger.With("component", "ledger_store"),
	}
}

// Credit records a completed deposit by participantID
func (s *LedgerStore) Credit(ctx context.Context, eventID, participantID uuid.UUID, amount int64, meta ledger.Meta) (*ledger.Transaction, error) {
	if amount <= 0 {
		return nil, shared.ValidationError{Field: "amount", Err: shared.ErrInvalidAmount}
	}

	var created *ledger.Transaction
	err := s.db.ExecuteTx(ctx, func(tx pgx.Tx) error {
		repos := s.repos.WithTx(tx)

		evt, err := repos.Events.GetByID(ctx, eventID)
		if err != nil {
			return err
		}
		if !evt.IsActive() {
			return shared.StateConflictError{Err: shared.ErrEventNotActive}
		}
		if _, err := repos.Events.GetParticipant(ctx, eventID, participantID); err != nil {
			return err
		}

		w, err := repos.Wallets.LockByEventID(ctx, eventID)
		if err != nil {
			return err
		}
		if err := w.Credit(amount); err != nil {
			return err
		}

		created, err = ledger.NewTransaction(w.ID, eventID, shared.TransactionTypeDeposit, amount, w.Currency,
			participantID, shared.TransactionStatusCompleted, meta)
		if err != nil {
			return err
		}
		if err := repos.Transactions.Create(ctx, created); err != nil {
			return err
		}

		return s.applyCredit(ctx, repos, w, created)
	})
	if err != nil {
		return nil, err
	}

	logger.FromContext(ctx, s.logger).Info("Wallet credited",
		"event_id", eventID.String(),
		"transaction_id", created.ID.String(),
		"amount", amount,
	)
	return created, nil
}

// applyCredit persists a credited wallet together with the deposit's side effects
func (s *LedgerStore) applyCredit(ctx context.Context, repos Repositories, w *wallet.Wallet, deposit *ledger.Transaction) error {
	if err := repos.Wallets.UpdateBalance(ctx, w); err != nil {
		return err
	}
	if err := repos.Events.AddDeposit(ctx, deposit.EventID, deposit.ActorID, deposit.Amount); err != nil {
		return err
	}
	return s.writeOutbox(ctx, repos, deposit)
}

// Debit records a completed expense payment
func (s *LedgerStore) Debit(ctx context.Context, eventID, actorID uuid.UUID, amount int64, meta ledger.Meta) (*ledger.Transaction, error) {
	var created *ledger.Transaction
	err := s.db.ExecuteTx(ctx, func(tx pgx.Tx) error {
		repos := s.repos.WithTx(tx)

		w, err := repos.Wallets.LockByEventID(ctx, eventID)
		if err != nil {
			return err
		}

		created, err = s.debitLocked(ctx, repos, w, actorID, amount, meta)
		return err
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// debitLocked debits a wallet the caller already holds the row lock for.
// The balance check here is the authoritative one; the wallet row CHECK
// constraint backs it up.
func (s *LedgerStore) debitLocked(ctx context.Context, repos Repositories, w *wallet.Wallet, actorID uuid.UUID, amount int64, meta ledger.Meta) (*ledger.Transaction, error) {
	if err := w.Debit(amount); err != nil {
		return nil, err
	}

	txn, err := ledger.NewTransaction(w.ID, w.EventID, shared.TransactionTypeExpense, amount, w.Currency,
		actorID, shared.TransactionStatusCompleted, meta)
	if err != nil {
		return nil, err
	}
	if err := repos.Transactions.Create(ctx, txn); err != nil {
		return nil, err
	}
	if err := repos.Wallets.UpdateBalance(ctx, w); err != nil {
		return nil, err
	}
	if err := s.writeOutbox(ctx, repos, txn); err != nil {
		return nil, err
	}

	logger.FromContext(ctx, s.logger).Info("Wallet debited",
		"event_id", w.EventID.String(),
		"transaction_id", txn.ID.String(),
		"amount", amount,
		"balance", w.Balance,
	)
	return txn, nil
}

// RecordPendingDeposit stores a deposit awaiting asynchronous gateway confirmation.
// The balance is untouched until ConfirmDeposit.
func (s *LedgerStore) RecordPendingDeposit(ctx context.Context, eventID, participantID uuid.UUID, amount int64, meta ledger.Meta) (*ledger.Transaction, error) {
	w, err := s.repos.Wallets.GetByEventID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if !w.IsActive() {
		return nil, shared.StateConflictError{Err: shared.ErrWalletClosed}
	}

	txn, err := ledger.NewTransaction(w.ID, eventID, shared.TransactionTypeDeposit, amount, w.Currency,
		participantID, shared.TransactionStatusPending, meta)
	if err != nil {
		return nil, err
	}
	if err := s.repos.Transactions.Create(ctx, txn); err != nil {
		return nil, err
	}
	return txn, nil
}

// ConfirmDeposit applies a gateway callback to its pending deposit. The deposit
// is matched by intent reference, falling back to the oldest pending deposit of
// the same event and amount. Confirming a completed deposit is a no-op.
func (s *LedgerStore) ConfirmDeposit(ctx context.Context, ev shared.GatewayEvent) (*ledger.Transaction, error) {
	log := logger.FromContext(ctx, s.logger)

	var confirmed *ledger.Transaction
	err := s.db.ExecuteTx(ctx, func(tx pgx.Tx) error {
		repos := s.repos.WithTx(tx)

		deposit, err := s.matchDeposit(ctx, repos, ev)
		if err != nil {
			return err
		}
		confirmed = deposit
		if deposit.Status == shared.TransactionStatusCompleted {
			log.Info("Deposit already confirmed", "transaction_id", deposit.ID.String())
			return nil
		}

		evt, err := repos.Events.GetByID(ctx, deposit.EventID)
		if err != nil {
			return err
		}
		if !evt.IsActive() {
			return shared.StateConflictError{Err: shared.ErrEventNotActive}
		}

		w, err := repos.Wallets.LockByEventID(ctx, deposit.EventID)
		if err != nil {
			return err
		}
		if err := w.Credit(deposit.Amount); err != nil {
			return err
		}
		if err := deposit.Complete(ev.GatewayTxRef); err != nil {
			return err
		}
		if err := repos.Transactions.UpdateStatus(ctx, deposit); err != nil {
			return err
		}

		return s.applyCredit(ctx, repos, w, deposit)
	})
	if err != nil {
		return nil, err
	}

	log.Info("Deposit confirmed",
		"transaction_id", confirmed.ID.String(),
		"event_id", confirmed.EventID.String(),
		"amount", confirmed.Amount,
	)
	return confirmed, nil
}

func (s *LedgerStore) matchDeposit(ctx context.Context, repos Repositories, ev shared.GatewayEvent) (*ledger.Transaction, error) {
	if ev.IntentID != "" {
		deposit, err := repos.Transactions.GetDepositByIntentRef(ctx, ev.IntentID)
		if err == nil {
			return deposit, nil
		}
		if !errors.Is(err, shared.NotFoundError{}) {
			return nil, err
		}
	}

	if ev.EventID == uuid.Nil || ev.Amount <= 0 {
		return nil, shared.NotFoundError{Resource: "deposit", ID: ev.IntentID}
	}
	return repos.Transactions.GetOldestPendingDeposit(ctx, ev.EventID, ev.Amount)
}

// writeOutbox queues txn for the ledger mirror inside the current transaction
func (s *LedgerStore) writeOutbox(ctx context.Context, repos Repositories, txn *ledger.Transaction) error {
	message, err := outbox.NewMessage(txn, logger.CorrelationID(ctx))
	if err != nil {
		return fmt.Errorf("failed to build outbox message: %w", err)
	}
	return repos.Outbox.Create(ctx, message)
}
