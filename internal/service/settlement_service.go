package service

import (
	"context"
	"log/slog"
	"sort"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/shared-event-wallet/internal/domain/event"
	"github.com/shared-event-wallet/internal/domain/ledger"
	"github.com/shared-event-wallet/internal/domain/settlement"
	"github.com/shared-event-wallet/internal/domain/shared"
	"github.com/shared-event-wallet/internal/domain/wallet"
	"github.com/shared-event-wallet/internal/logger"
	"github.com/shared-event-wallet/internal/platform/gateway"
	"github.com/shared-event-wallet/internal/platform/lock"
)

// SettlementStatus is the progress of an event's closeout
type SettlementStatus struct {
	EventStatus   event.Status         `json:"event_status"`
	WalletBalance int64                `json:"wallet_balance"`
	WalletStatus  wallet.Status        `json:"wallet_status"`
	Outstanding   int                  `json:"outstanding"`
	Records       []*settlement.Record `json:"settlements"`
}

// CategoryShare is one member's part of a category's paid expenses
type CategoryShare struct {
	UserID uuid.UUID `json:"user_id"`
	Name   string    `json:"name,omitempty"`
	Share  int64     `json:"share"`
}

// CategoryPreview splits one category's paid expenses across their snapshots
type CategoryPreview struct {
	CategoryID uuid.UUID       `json:"category_id"`
	TotalPaid  int64           `json:"total_paid"`
	Shares     []CategoryShare `json:"shares"`
}

// SettlementService turns net positions into refunds and closes the event.
// Execute and each payout run under a Redis lock as well as the wallet row
// lock, so two API instances never run the same step at once.
type SettlementService struct {
	db         TxRunner
	repos      Repositories
	ledger     *LedgerStore
	calculator settlement.Calculator
	gateway    gateway.PaymentGateway
	locker     Locker
	dispatcher *RefundDispatcher
	directory  Directory
	logger     *slog.Logger
}

func NewSettlementService(logger *slog.Logger, db TxRunner, repos Repositories, store *LedgerStore,
	calculator settlement.Calculator, gw gateway.PaymentGateway, locker Locker, dispatcher *RefundDispatcher,
	directory Directory) *SettlementService {
	return &SettlementService{
		db:         db,
		repos:      repos,
		ledger:     store,
		calculator: calculator,
		gateway:    gw,
		locker:     locker,
		dispatcher: dispatcher,
		directory:  directory,
		logger:     logger.With("component", "settlement_service"),
	}
}

// Calculate computes every participant's position without side effects
func (s *SettlementService) Calculate(ctx context.Context, callerID, eventID uuid.UUID) (*settlement.Report, error) {
	if _, _, err := requireParticipant(ctx, s.repos, eventID, callerID); err != nil {
		return nil, err
	}

	report, err := s.compute(ctx, s.repos, eventID)
	if err != nil {
		return nil, err
	}

	ids := make([]uuid.UUID, len(report.Lines))
	for i, line := range report.Lines {
		ids[i] = line.UserID
	}
	profiles := resolveProfiles(ctx, s.directory, s.logger, ids)
	for i := range report.Lines {
		p := profiles[report.Lines[i].UserID]
		report.Lines[i].Name = p.Name
		report.Lines[i].Email = p.Email
	}

	return report, nil
}

func (s *SettlementService) compute(ctx context.Context, repos Repositories, eventID uuid.UUID) (*settlement.Report, error) {
	participants, err := repos.Events.ListParticipants(ctx, eventID)
	if err != nil {
		return nil, err
	}
	paid, err := repos.Expenses.ListPaid(ctx, eventID)
	if err != nil {
		return nil, err
	}
	unlinked, err := repos.Transactions.ListUnlinkedExpenses(ctx, eventID)
	if err != nil {
		return nil, err
	}

	report := s.calculator.Calculate(eventID, participants, paid, unlinked)
	return &report, nil
}

// Execute freezes the settlement: refund transactions are created pending and
// their amounts leave the wallet balance before any payout is attempted.
func (s *SettlementService) Execute(ctx context.Context, callerID, eventID uuid.UUID) ([]*settlement.Record, error) {
	var records []*settlement.Record

	err := s.locker.WithLock(ctx, lock.SettlementExecuteKey(eventID), func(ctx context.Context) error {
		return s.db.ExecuteTx(ctx, func(tx pgx.Tx) error {
			repos := s.repos.WithTx(tx)

			evt, err := requireCreator(ctx, repos, eventID, callerID, true)
			if err != nil {
				return err
			}
			if err := evt.BeginSettlement(); err != nil {
				return err
			}

			w, err := repos.Wallets.LockByEventID(ctx, eventID)
			if err != nil {
				return err
			}

			report, err := s.compute(ctx, repos, eventID)
			if err != nil {
				return err
			}
			if report.TotalRefunds > w.Balance {
				return shared.InsufficientFundsError{
					Err:       shared.ErrRefundsExceedFunds,
					Available: w.Balance,
					Requested: report.TotalRefunds,
				}
			}

			records = make([]*settlement.Record, 0, len(report.Lines))
			for _, line := range report.Lines {
				var refundTxID *uuid.UUID
				if line.RefundAmount > 0 {
					refund, err := ledger.NewTransaction(w.ID, eventID, shared.TransactionTypeRefund, line.RefundAmount,
						w.Currency, line.UserID, shared.TransactionStatusPending, ledger.Meta{Description: "Settlement refund"})
					if err != nil {
						return err
					}
					if err := repos.Transactions.Create(ctx, refund); err != nil {
						return err
					}
					if err := w.Debit(line.RefundAmount); err != nil {
						return err
					}
					refundTxID = &refund.ID
				}

				rec := settlement.NewRecord(eventID, line, refundTxID)
				if err := repos.Settlements.Upsert(ctx, rec); err != nil {
					return err
				}
				records = append(records, rec)
			}

			if err := repos.Wallets.UpdateBalance(ctx, w); err != nil {
				return err
			}
			return repos.Events.UpdateStatus(ctx, eventID, evt.Status)
		})
	})
	if err != nil {
		return nil, err
	}

	logger.FromContext(ctx, s.logger).Info("Settlement executed", "event_id", eventID.String(), "records", len(records))
	return records, nil
}

// ProcessRefund pays out one participant. Failed payouts stay retryable.
func (s *SettlementService) ProcessRefund(ctx context.Context, callerID, eventID, userID uuid.UUID) (*settlement.Record, error) {
	evt, err := requireCreator(ctx, s.repos, eventID, callerID, false)
	if err != nil {
		return nil, err
	}
	if evt.Status != event.StatusSettling {
		return nil, shared.StateConflictError{Reason: "event is not settling (status: " + string(evt.Status) + ")"}
	}
	return s.processRefund(ctx, evt, userID)
}

// ProcessAll pays out every outstanding refund of the event concurrently
func (s *SettlementService) ProcessAll(ctx context.Context, callerID, eventID uuid.UUID) ([]RefundOutcome, error) {
	evt, err := requireCreator(ctx, s.repos, eventID, callerID, false)
	if err != nil {
		return nil, err
	}
	if evt.Status != event.StatusSettling {
		return nil, shared.StateConflictError{Reason: "event is not settling (status: " + string(evt.Status) + ")"}
	}

	records, err := s.repos.Settlements.ListByEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	outstanding := make([]*settlement.Record, 0, len(records))
	for _, rec := range records {
		if rec.IsOutstanding() {
			outstanding = append(outstanding, rec)
		}
	}

	outcomes := s.dispatcher.Dispatch(ctx, outstanding, func(ctx context.Context, userID uuid.UUID) (*settlement.Record, error) {
		return s.processRefund(ctx, evt, userID)
	})

	logger.FromContext(ctx, s.logger).Info("Refund batch processed", "event_id", eventID.String(), "refunds", len(outcomes))
	return outcomes, nil
}

func (s *SettlementService) processRefund(ctx context.Context, evt *event.Event, userID uuid.UUID) (*settlement.Record, error) {
	var rec *settlement.Record

	err := s.locker.WithLock(ctx, lock.SettlementRefundKey(evt.ID, userID), func(ctx context.Context) error {
		log := logger.FromContext(ctx, s.logger).With("event_id", evt.ID.String(), "user_id", userID.String())

		// Claim the refund so a crash mid-payout is visible as processing
		err := s.db.ExecuteTx(ctx, func(tx pgx.Tx) error {
			repos := s.repos.WithTx(tx)

			var err error
			rec, err = repos.Settlements.LockByEventAndUser(ctx, evt.ID, userID)
			if err != nil {
				return err
			}
			if err := rec.StartProcessing(); err != nil {
				return err
			}
			return repos.Settlements.Update(ctx, rec)
		})
		if err != nil {
			return err
		}

		ref, payoutErr := s.gateway.Payout(ctx, gateway.PayoutRequest{
			EventID:        evt.ID,
			Amount:         rec.RefundAmount,
			Currency:       evt.Currency,
			PayeeRef:       userID.String(),
			WalletRef:      evt.GatewayWalletRef,
			IdempotencyKey: rec.ID.String(),
		})
		if payoutErr != nil {
			log.Error("Refund payout failed", "attempt", rec.Attempts, "error", payoutErr)
			rec.Fail(payoutErr.Error())
			if err := s.repos.Settlements.Update(ctx, rec); err != nil {
				log.Error("Failed to record refund failure", "error", err)
			}
			return payoutErr
		}

		err = s.db.ExecuteTx(ctx, func(tx pgx.Tx) error {
			repos := s.repos.WithTx(tx)

			rec.Complete(ref)
			if err := repos.Settlements.Update(ctx, rec); err != nil {
				return err
			}
			if rec.RefundTransactionID == nil {
				return nil
			}

			refund, err := repos.Transactions.GetByID(ctx, *rec.RefundTransactionID)
			if err != nil {
				return err
			}
			if err := refund.Complete(ref); err != nil {
				return err
			}
			if err := repos.Transactions.UpdateStatus(ctx, refund); err != nil {
				return err
			}
			return s.ledger.writeOutbox(ctx, repos, refund)
		})
		if err != nil {
			log.Error("Refund paid but not recorded", "gateway_tx_ref", ref, "error", err)
			return err
		}

		log.Info("Refund completed", "amount", rec.RefundAmount, "gateway_tx_ref", ref)
		return nil
	})

	return rec, err
}

// Complete settles the event and closes its wallet once every refund is paid
func (s *SettlementService) Complete(ctx context.Context, callerID, eventID uuid.UUID) (*event.Event, error) {
	var evt *event.Event

	err := s.db.ExecuteTx(ctx, func(tx pgx.Tx) error {
		repos := s.repos.WithTx(tx)

		var err error
		evt, err = requireCreator(ctx, repos, eventID, callerID, true)
		if err != nil {
			return err
		}

		outstanding, err := repos.Settlements.CountOutstanding(ctx, eventID)
		if err != nil {
			return err
		}
		if outstanding > 0 {
			return shared.StateConflictError{Err: shared.ErrOutstandingRefunds}
		}
		if err := evt.MarkSettled(); err != nil {
			return err
		}
		if err := repos.Events.UpdateStatus(ctx, eventID, evt.Status); err != nil {
			return err
		}

		w, err := repos.Wallets.LockByEventID(ctx, eventID)
		if err != nil {
			return err
		}
		w.Close()
		return repos.Wallets.UpdateStatus(ctx, w.ID, w.Status)
	})
	if err != nil {
		return nil, err
	}

	logger.FromContext(ctx, s.logger).Info("Settlement completed", "event_id", eventID.String())
	return evt, nil
}

// Status reports settlement records together with the wallet
func (s *SettlementService) Status(ctx context.Context, callerID, eventID uuid.UUID) (*SettlementStatus, error) {
	evt, _, err := requireParticipant(ctx, s.repos, eventID, callerID)
	if err != nil {
		return nil, err
	}
	w, err := s.repos.Wallets.GetByEventID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	records, err := s.repos.Settlements.ListByEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}

	status := &SettlementStatus{
		EventStatus:   evt.Status,
		WalletBalance: w.Balance,
		WalletStatus:  w.Status,
		Records:       records,
	}
	for _, rec := range records {
		if rec.IsOutstanding() {
			status.Outstanding++
		}
	}
	return status, nil
}

// CategoryPreview shows how one category's paid expenses split across members
func (s *SettlementService) CategoryPreview(ctx context.Context, callerID, eventID, categoryID uuid.UUID) (*CategoryPreview, error) {
	if _, _, err := requireParticipant(ctx, s.repos, eventID, callerID); err != nil {
		return nil, err
	}
	if _, err := s.repos.Categories.GetByID(ctx, eventID, categoryID); err != nil {
		return nil, err
	}
	paid, err := s.repos.Expenses.ListPaid(ctx, eventID)
	if err != nil {
		return nil, err
	}

	preview := &CategoryPreview{CategoryID: categoryID, Shares: []CategoryShare{}}
	for _, e := range paid {
		if e.CategoryID != nil && *e.CategoryID == categoryID {
			preview.TotalPaid += e.Amount
		}
	}

	shares := s.calculator.CategoryShares(categoryID, paid)
	ids := make([]uuid.UUID, 0, len(shares))
	for id := range shares {
		ids = append(ids, id)
	}
	sortIDs(ids)
	profiles := resolveProfiles(ctx, s.directory, s.logger, ids)
	for _, id := range ids {
		preview.Shares = append(preview.Shares, CategoryShare{UserID: id, Name: profiles[id].Name, Share: shares[id]})
	}
	return preview, nil
}

func sortIDs(ids []uuid.UUID) {
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
}
