package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/shared-event-wallet/internal/domain/event"
	"github.com/shared-event-wallet/internal/domain/expense"
	"github.com/shared-event-wallet/internal/domain/ledger"
	"github.com/shared-event-wallet/internal/domain/rules"
	"github.com/shared-event-wallet/internal/domain/shared"
	"github.com/shared-event-wallet/internal/domain/wallet"
	"github.com/shared-event-wallet/internal/logger"
	"github.com/shared-event-wallet/internal/platform/receipt"
)

// ProposeInput is a spend request. CategoryID is nil for uncategorised expenses.
type ProposeInput struct {
	CategoryID  *uuid.UUID
	Amount      int64
	Description string
	ReceiptRef  string
}

// EditInput carries the expense details a payer may change before payment.
// Nil fields are left as they are.
type EditInput struct {
	Description *string
	ReceiptRef  *string
}

// ExpenseResult is the expense after a workflow step, with the debit that paid it if any
type ExpenseResult struct {
	Expense          *expense.Expense    `json:"expense"`
	Transaction      *ledger.Transaction `json:"transaction,omitempty"`
	RequiresApproval bool                `json:"requires_approval"`
}

// ExpenseService runs the expense state machine. Every step that consults
// the rule engine or moves money holds the wallet row lock, so balance and
// budget checks see the state the debit commits against.
type ExpenseService struct {
	db        TxRunner
	repos     Repositories
	ledger    *LedgerStore
	extractor receipt.Extractor
	logger    *slog.Logger
}

func NewExpenseService(logger *slog.Logger, db TxRunner, repos Repositories, store *LedgerStore, extractor receipt.Extractor) *ExpenseService {
	return &ExpenseService{
		db:        db,
		repos:     repos,
		ledger:    store,
		extractor: extractor,
		logger:    logger.With("component", "expense_service"),
	}
}

// Propose validates the expense and either pays it at once or parks it for approval.
// Rejected proposals are not persisted.
func (s *ExpenseService) Propose(ctx context.Context, callerID, eventID uuid.UUID, in ProposeInput) (*ExpenseResult, error) {
	log := logger.FromContext(ctx, s.logger)

	exp, err := expense.NewExpense(eventID, in.CategoryID, callerID, in.Amount, in.Description, in.ReceiptRef)
	if err != nil {
		return nil, err
	}

	var result *ExpenseResult
	err = s.db.ExecuteTx(ctx, func(tx pgx.Tx) error {
		repos := s.repos.WithTx(tx)

		w, err := repos.Wallets.LockByEventID(ctx, eventID)
		if err != nil {
			return err
		}
		agg, category, err := s.loadContext(ctx, repos, eventID, in.CategoryID)
		if err != nil {
			return err
		}

		verdict, err := s.validate(ctx, repos, agg, category, callerID, in.Amount, w)
		if err != nil {
			return err
		}
		if !verdict.Valid {
			log.Info("Expense rejected by rules", "event_id", eventID.String(), "code", string(verdict.Code))
			return verdict.Err()
		}

		if verdict.RequiresApproval {
			result = &ExpenseResult{Expense: exp, RequiresApproval: true}
			return repos.Expenses.Create(ctx, exp)
		}

		txn, err := s.execute(ctx, repos, agg, category, w, exp)
		if err != nil {
			return err
		}
		result = &ExpenseResult{Expense: exp, Transaction: txn}
		return repos.Expenses.Create(ctx, exp)
	})
	if err != nil {
		return nil, err
	}

	log.Info("Expense proposed",
		"expense_id", exp.ID.String(),
		"status", string(exp.Status),
		"amount", exp.Amount,
	)
	return result, nil
}

// Approve re-runs the rules against current state and pays the expense
func (s *ExpenseService) Approve(ctx context.Context, callerID, eventID, expenseID uuid.UUID) (*ExpenseResult, error) {
	var result *ExpenseResult
	err := s.db.ExecuteTx(ctx, func(tx pgx.Tx) error {
		repos := s.repos.WithTx(tx)

		w, err := repos.Wallets.LockByEventID(ctx, eventID)
		if err != nil {
			return err
		}
		exp, err := repos.Expenses.LockByID(ctx, eventID, expenseID)
		if err != nil {
			return err
		}
		agg, category, err := s.loadContext(ctx, repos, eventID, exp.CategoryID)
		if err != nil {
			return err
		}

		if !agg.CanApprove(callerID, category) {
			return shared.AuthorizationError{Reason: "Only the event creator or a category approver can approve expenses"}
		}
		if exp.Status != expense.StatusPending {
			return shared.StateConflictError{Reason: "cannot approve an expense that is " + string(exp.Status)}
		}

		verdict, err := s.validate(ctx, repos, agg, category, exp.PaidBy, exp.Amount, w)
		if err != nil {
			return err
		}
		if !verdict.Valid {
			return verdict.Err()
		}

		if err := exp.Approve(callerID); err != nil {
			return err
		}
		txn, err := s.execute(ctx, repos, agg, category, w, exp)
		if err != nil {
			return err
		}
		if err := repos.Expenses.Update(ctx, exp); err != nil {
			return err
		}
		result = &ExpenseResult{Expense: exp, Transaction: txn}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.FromContext(ctx, s.logger).Info("Expense approved and paid",
		"expense_id", expenseID.String(),
		"approver_id", callerID.String(),
	)
	return result, nil
}

// Reject closes a pending expense without moving money
func (s *ExpenseService) Reject(ctx context.Context, callerID, eventID, expenseID uuid.UUID, reason string) (*expense.Expense, error) {
	var exp *expense.Expense
	err := s.db.ExecuteTx(ctx, func(tx pgx.Tx) error {
		repos := s.repos.WithTx(tx)

		var err error
		exp, err = repos.Expenses.LockByID(ctx, eventID, expenseID)
		if err != nil {
			return err
		}
		agg, category, err := s.loadContext(ctx, repos, eventID, exp.CategoryID)
		if err != nil {
			return err
		}
		if !agg.CanApprove(callerID, category) {
			return shared.AuthorizationError{Reason: "Only the event creator or a category approver can reject expenses"}
		}

		if err := exp.Reject(callerID, reason); err != nil {
			return err
		}
		return repos.Expenses.Update(ctx, exp)
	})
	if err != nil {
		return nil, err
	}
	return exp, nil
}

// Dispute excludes an expense from settlement. The payer or the creator may dispute.
func (s *ExpenseService) Dispute(ctx context.Context, callerID, eventID, expenseID uuid.UUID) (*expense.Expense, error) {
	var exp *expense.Expense
	err := s.db.ExecuteTx(ctx, func(tx pgx.Tx) error {
		repos := s.repos.WithTx(tx)

		evt, _, err := requireParticipant(ctx, repos, eventID, callerID)
		if err != nil {
			return err
		}
		exp, err = repos.Expenses.LockByID(ctx, eventID, expenseID)
		if err != nil {
			return err
		}
		if exp.PaidBy != callerID && !evt.IsCreator(callerID) {
			return shared.AuthorizationError{Reason: "Only the payer or the event creator can dispute an expense"}
		}

		if err := exp.Dispute(); err != nil {
			return err
		}
		return repos.Expenses.Update(ctx, exp)
	})
	if err != nil {
		return nil, err
	}

	logger.FromContext(ctx, s.logger).Warn("Expense disputed", "expense_id", expenseID.String(), "by", callerID.String())
	return exp, nil
}

// Edit changes the description or receipt of an unpaid expense. The payer or the creator may edit.
func (s *ExpenseService) Edit(ctx context.Context, callerID, eventID, expenseID uuid.UUID, in EditInput) (*expense.Expense, error) {
	var exp *expense.Expense
	err := s.db.ExecuteTx(ctx, func(tx pgx.Tx) error {
		repos := s.repos.WithTx(tx)

		evt, _, err := requireParticipant(ctx, repos, eventID, callerID)
		if err != nil {
			return err
		}
		exp, err = repos.Expenses.LockByID(ctx, eventID, expenseID)
		if err != nil {
			return err
		}
		if exp.PaidBy != callerID && !evt.IsCreator(callerID) {
			return shared.AuthorizationError{Reason: "Only the payer or the event creator can edit an expense"}
		}

		if err := exp.Edit(in.Description, in.ReceiptRef); err != nil {
			return err
		}
		return repos.Expenses.Update(ctx, exp)
	})
	if err != nil {
		return nil, err
	}

	logger.FromContext(ctx, s.logger).Info("Expense edited", "expense_id", expenseID.String(), "by", callerID.String())
	return exp, nil
}

// Delete removes an expense that never paid out
func (s *ExpenseService) Delete(ctx context.Context, callerID, eventID, expenseID uuid.UUID) error {
	return s.db.ExecuteTx(ctx, func(tx pgx.Tx) error {
		repos := s.repos.WithTx(tx)

		evt, _, err := requireParticipant(ctx, repos, eventID, callerID)
		if err != nil {
			return err
		}
		exp, err := repos.Expenses.LockByID(ctx, eventID, expenseID)
		if err != nil {
			return err
		}
		if exp.PaidBy != callerID && !evt.IsCreator(callerID) {
			return shared.AuthorizationError{Reason: "Only the payer or the event creator can delete an expense"}
		}
		if err := exp.CheckDeletable(); err != nil {
			return err
		}
		return repos.Expenses.Delete(ctx, exp.ID)
	})
}

func (s *ExpenseService) List(ctx context.Context, callerID, eventID uuid.UUID, filter expense.Filter) ([]*expense.Expense, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, shared.ValidationError{Field: "status", Err: errUnknownStatus}
	}
	if _, _, err := requireParticipant(ctx, s.repos, eventID, callerID); err != nil {
		return nil, err
	}
	return s.repos.Expenses.List(ctx, eventID, filter)
}

func (s *ExpenseService) Get(ctx context.Context, callerID, eventID, expenseID uuid.UUID) (*expense.Expense, error) {
	if _, _, err := requireParticipant(ctx, s.repos, eventID, callerID); err != nil {
		return nil, err
	}
	return s.repos.Expenses.GetByID(ctx, eventID, expenseID)
}

// Summary totals paid expenses by category and payer
func (s *ExpenseService) Summary(ctx context.Context, callerID, eventID uuid.UUID) (*expense.Summary, error) {
	if _, _, err := requireParticipant(ctx, s.repos, eventID, callerID); err != nil {
		return nil, err
	}
	paid, err := s.repos.Expenses.ListPaid(ctx, eventID)
	if err != nil {
		return nil, err
	}
	summary := expense.Summarize(paid)
	return &summary, nil
}

// ExtractReceipt suggests expense fields from a receipt image. The caller
// decides whether to use them.
func (s *ExpenseService) ExtractReceipt(ctx context.Context, callerID, eventID uuid.UUID, image []byte) (*receipt.Suggestion, error) {
	if len(image) == 0 {
		return nil, shared.ValidationError{Field: "receipt", Err: errEmptyReceipt}
	}
	if _, _, err := requireParticipant(ctx, s.repos, eventID, callerID); err != nil {
		return nil, err
	}

	categories, err := s.repos.Categories.ListByEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(categories))
	for _, c := range categories {
		if c.IsActive() {
			names = append(names, c.Name)
		}
	}

	suggestion, err := s.extractor.Extract(ctx, image, names)
	if err != nil {
		if errors.Is(err, receipt.ErrNoAmount) {
			return nil, shared.ValidationError{Field: "receipt", Err: err}
		}
		return nil, shared.ExternalServiceError{Service: "receipt extraction", Err: err}
	}
	return &suggestion, nil
}

func (s *ExpenseService) loadContext(ctx context.Context, repos Repositories, eventID uuid.UUID, categoryID *uuid.UUID) (*event.Aggregate, *event.Category, error) {
	agg, err := loadAggregate(ctx, repos, eventID)
	if err != nil {
		return nil, nil, err
	}
	if categoryID == nil {
		return agg, nil, nil
	}
	category, ok := agg.Category(*categoryID)
	if !ok {
		return nil, nil, shared.NotFoundError{Resource: "category", ID: categoryID.String()}
	}
	return agg, category, nil
}

// validate feeds fresh category spend and the locked wallet balance to the rule engine
func (s *ExpenseService) validate(ctx context.Context, repos Repositories, agg *event.Aggregate, category *event.Category,
	payerID uuid.UUID, amount int64, w *wallet.Wallet) (rules.Result, error) {
	var spend int64
	if category != nil {
		var err error
		spend, err = repos.Transactions.CategorySpend(ctx, agg.Event.ID, category.ID)
		if err != nil {
			return rules.Result{}, err
		}
	}

	return rules.Validate(rules.Input{
		Aggregate:     agg,
		Category:      category,
		PayerID:       payerID,
		Amount:        amount,
		WalletBalance: w.Balance,
		CategorySpend: spend,
	}), nil
}

// execute freezes the participant snapshot, debits the wallet and marks the
// expense paid. It runs inside the caller's transaction, so a failed debit
// leaves no trace of either side.
func (s *ExpenseService) execute(ctx context.Context, repos Repositories, agg *event.Aggregate, category *event.Category,
	w *wallet.Wallet, exp *expense.Expense) (*ledger.Transaction, error) {
	var snapshot []uuid.UUID
	if category != nil {
		snapshot = category.MemberIDs()
	}
	if len(snapshot) == 0 {
		snapshot = agg.ParticipantIDs()
	}

	txn, err := s.ledger.debitLocked(ctx, repos, w, exp.PaidBy, exp.Amount, ledger.Meta{
		CategoryID:  exp.CategoryID,
		Description: exp.Description,
		Metadata:    map[string]string{"expense_id": exp.ID.String()},
	})
	if err != nil {
		return nil, err
	}

	if err := exp.MarkPaid(txn.ID, snapshot); err != nil {
		return nil, err
	}
	return txn, nil
}
