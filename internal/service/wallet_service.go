package service

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/shared-event-wallet/internal/config"
	"github.com/shared-event-wallet/internal/domain/event"
	"github.com/shared-event-wallet/internal/domain/ledger"
	"github.com/shared-event-wallet/internal/domain/shared"
	"github.com/shared-event-wallet/internal/domain/wallet"
	"github.com/shared-event-wallet/internal/logger"
	"github.com/shared-event-wallet/internal/platform/gateway"
)

const (
	transactionListLimit = 50
	defaultHistoryLimit  = 20
	maxHistoryLimit      = 100
)

// DepositInput is a participant's request to add money to the wallet
type DepositInput struct {
	Amount      int64
	Description string
}

// DepositResult is either a completed deposit or a pending one awaiting the
// gateway callback, in which case PayURL is where the payer completes it.
type DepositResult struct {
	Transaction *ledger.Transaction `json:"transaction"`
	PayURL      string              `json:"pay_url,omitempty"`
	Pending     bool                `json:"pending"`
}

// PaymentSummary aggregates the wallet's completed movements
type PaymentSummary struct {
	TotalDeposited    int64 `json:"total_deposited"`
	TotalPaid         int64 `json:"total_paid"`
	TotalRefunded     int64 `json:"total_refunded"`
	RemainingInBasket int64 `json:"remaining_in_basket"`
	PaymentCount      int   `json:"payment_count"`
	DepositCount      int   `json:"deposit_count"`
}

// WalletService covers deposits and wallet reads
type WalletService struct {
	repos   Repositories
	ledger  *LedgerStore
	gateway gateway.PaymentGateway
	mirror  ledger.MirrorRepository
	urls    config.GatewayConfig
	logger  *slog.Logger
}

func NewWalletService(logger *slog.Logger, repos Repositories, store *LedgerStore, gw gateway.PaymentGateway,
	mirror ledger.MirrorRepository, cfg config.GatewayConfig) *WalletService {
	return &WalletService{
		repos:   repos,
		ledger:  store,
		gateway: gw,
		mirror:  mirror,
		urls:    cfg,
		logger:  logger.With("component", "wallet_service"),
	}
}

// Deposit tries the asynchronous intent flow first and falls back to a
// synchronous charge when the gateway cannot create intents.
func (s *WalletService) Deposit(ctx context.Context, callerID, eventID uuid.UUID, in DepositInput) (*DepositResult, error) {
	log := logger.FromContext(ctx, s.logger)

	if in.Amount <= 0 {
		return nil, shared.ValidationError{Field: "amount", Err: shared.ErrInvalidAmount}
	}

	evt, _, err := requireParticipant(ctx, s.repos, eventID, callerID)
	if err != nil {
		return nil, err
	}
	if !evt.IsActive() {
		return nil, shared.StateConflictError{Err: shared.ErrEventNotActive}
	}

	req := gateway.DepositRequest{
		EventID:    eventID,
		Amount:     in.Amount,
		Currency:   evt.Currency,
		PayerRef:   callerID.String(),
		WalletRef:  s.ensureGatewayWallet(ctx, evt),
		SuccessURL: s.urls.SuccessURL,
		CancelURL:  s.urls.CancelURL,
	}

	intent, err := s.gateway.CreateDepositIntent(ctx, req)
	if err == nil {
		txn, err := s.ledger.RecordPendingDeposit(ctx, eventID, callerID, in.Amount, ledger.Meta{
			Description:      in.Description,
			GatewayIntentRef: intent.IntentRef,
		})
		if err != nil {
			return nil, err
		}
		log.Info("Deposit intent created", "transaction_id", txn.ID.String(), "intent_ref", intent.IntentRef)
		return &DepositResult{Transaction: txn, PayURL: intent.PayURL, Pending: true}, nil
	}
	log.Info("Deposit intent unavailable, charging synchronously", "event_id", eventID.String(), "reason", err.Error())

	ref, err := s.gateway.ChargeDeposit(ctx, req)
	if err != nil {
		log.Error("Deposit charge failed", "event_id", eventID.String(), "error", err)
		return nil, err
	}

	txn, err := s.ledger.Credit(ctx, eventID, callerID, in.Amount, ledger.Meta{
		Description:  in.Description,
		GatewayTxRef: ref,
	})
	if err != nil {
		// The gateway took the money but the ledger refused it; the ref is
		// logged so the charge can be reconciled by hand.
		log.Error("Charged deposit could not be credited", "event_id", eventID.String(), "gateway_tx_ref", ref, "error", err)
		return nil, err
	}
	return &DepositResult{Transaction: txn}, nil
}

// ensureGatewayWallet creates the provider wallet on first use. A gateway
// failure leaves the reference empty.
func (s *WalletService) ensureGatewayWallet(ctx context.Context, evt *event.Event) string {
	if evt.GatewayWalletRef != "" {
		return evt.GatewayWalletRef
	}

	ref, err := s.gateway.CreateWallet(ctx, evt.ID)
	if err != nil {
		logger.FromContext(ctx, s.logger).Warn("Gateway wallet unavailable", "event_id", evt.ID.String(), "error", err)
		return ""
	}
	if err := s.repos.Events.UpdateGatewayWalletRef(ctx, evt.ID, ref); err != nil {
		logger.FromContext(ctx, s.logger).Warn("Failed to store gateway wallet ref", "event_id", evt.ID.String(), "error", err)
	}
	evt.GatewayWalletRef = ref
	return ref
}

func (s *WalletService) GetWallet(ctx context.Context, callerID, eventID uuid.UUID) (*wallet.Wallet, error) {
	if _, _, err := requireParticipant(ctx, s.repos, eventID, callerID); err != nil {
		return nil, err
	}
	return s.repos.Wallets.GetByEventID(ctx, eventID)
}

// ListTransactions returns the latest ledger transactions, newest first
func (s *WalletService) ListTransactions(ctx context.Context, callerID, eventID uuid.UUID) ([]*ledger.Transaction, error) {
	if _, _, err := requireParticipant(ctx, s.repos, eventID, callerID); err != nil {
		return nil, err
	}
	return s.repos.Transactions.ListByEvent(ctx, eventID, transactionListLimit)
}

func (s *WalletService) Summary(ctx context.Context, callerID, eventID uuid.UUID) (*PaymentSummary, error) {
	if _, _, err := requireParticipant(ctx, s.repos, eventID, callerID); err != nil {
		return nil, err
	}

	w, err := s.repos.Wallets.GetByEventID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	totals, err := s.repos.Transactions.Totals(ctx, eventID)
	if err != nil {
		return nil, err
	}

	return &PaymentSummary{
		TotalDeposited:    totals.Deposited,
		TotalPaid:         totals.Paid,
		TotalRefunded:     totals.Refunded,
		RemainingInBasket: w.Balance,
		PaymentCount:      totals.PaymentCount,
		DepositCount:      totals.DepositCount,
	}, nil
}

// History reads the mirrored ledger. A nil actorID lists the whole event.
func (s *WalletService) History(ctx context.Context, callerID, eventID uuid.UUID, actorID *uuid.UUID, page, limit int) ([]*ledger.Entry, int64, error) {
	if _, _, err := requireParticipant(ctx, s.repos, eventID, callerID); err != nil {
		return nil, 0, err
	}

	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	offset := (page - 1) * limit

	if actorID != nil {
		entries, err := s.mirror.ListByActor(ctx, eventID.String(), actorID.String(), limit, offset)
		return entries, int64(len(entries)), err
	}

	entries, err := s.mirror.ListByEvent(ctx, eventID.String(), limit, offset)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.mirror.CountByEvent(ctx, eventID.String())
	if err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}
