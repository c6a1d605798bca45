package handler

import (
	"context"

	"github.com/google/uuid"

	"github.com/shared-event-wallet/internal/domain/event"
	"github.com/shared-event-wallet/internal/domain/expense"
	"github.com/shared-event-wallet/internal/domain/ledger"
	"github.com/shared-event-wallet/internal/domain/settlement"
	"github.com/shared-event-wallet/internal/domain/wallet"
	"github.com/shared-event-wallet/internal/platform/receipt"
	"github.com/shared-event-wallet/internal/service"
)

// EventService is implemented by *service.EventService
type EventService interface {
	CreateEvent(ctx context.Context, callerID uuid.UUID, in service.CreateEventInput) (*event.Event, error)
	JoinEvent(ctx context.Context, callerID, eventID uuid.UUID) (*event.Participant, error)
	ListMyEvents(ctx context.Context, callerID uuid.UUID) ([]*event.Event, error)
	GetEvent(ctx context.Context, callerID, eventID uuid.UUID) (*service.EventDetails, error)
	MyAuthorization(ctx context.Context, callerID, eventID uuid.UUID) (*service.Authorization, error)

	CreateCategory(ctx context.Context, callerID, eventID uuid.UUID, in service.CategoryInput) (*event.Category, error)
	JoinCategory(ctx context.Context, callerID, eventID, categoryID uuid.UUID) (*event.Membership, error)
	LeaveCategory(ctx context.Context, callerID, eventID, categoryID uuid.UUID) error
	CloseCategory(ctx context.Context, callerID, eventID, categoryID uuid.UUID) error
	UpdateCategoryLimits(ctx context.Context, callerID, eventID, categoryID uuid.UUID, in service.LimitsInput) (*event.Category, error)
	ListCategories(ctx context.Context, callerID, eventID uuid.UUID) ([]service.CategoryView, error)
}

// WalletService is implemented by *service.WalletService
type WalletService interface {
	Deposit(ctx context.Context, callerID, eventID uuid.UUID, in service.DepositInput) (*service.DepositResult, error)
	GetWallet(ctx context.Context, callerID, eventID uuid.UUID) (*wallet.Wallet, error)
	ListTransactions(ctx context.Context, callerID, eventID uuid.UUID) ([]*ledger.Transaction, error)
	Summary(ctx context.Context, callerID, eventID uuid.UUID) (*service.PaymentSummary, error)
	History(ctx context.Context, callerID, eventID uuid.UUID, actorID *uuid.UUID, page, limit int) ([]*ledger.Entry, int64, error)
}

// ExpenseService is implemented by *service.ExpenseService
type ExpenseService interface {
	Propose(ctx context.Context, callerID, eventID uuid.UUID, in service.ProposeInput) (*service.ExpenseResult, error)
	Approve(ctx context.Context, callerID, eventID, expenseID uuid.UUID) (*service.ExpenseResult, error)
	Reject(ctx context.Context, callerID, eventID, expenseID uuid.UUID, reason string) (*expense.Expense, error)
	Edit(ctx context.Context, callerID, eventID, expenseID uuid.UUID, in service.EditInput) (*expense.Expense, error)
	Dispute(ctx context.Context, callerID, eventID, expenseID uuid.UUID) (*expense.Expense, error)
	Delete(ctx context.Context, callerID, eventID, expenseID uuid.UUID) error
	List(ctx context.Context, callerID, eventID uuid.UUID, filter expense.Filter) ([]*expense.Expense, error)
	Get(ctx context.Context, callerID, eventID, expenseID uuid.UUID) (*expense.Expense, error)
	Summary(ctx context.Context, callerID, eventID uuid.UUID) (*expense.Summary, error)
	ExtractReceipt(ctx context.Context, callerID, eventID uuid.UUID, image []byte) (*receipt.Suggestion, error)
}

// SettlementService is implemented by *service.SettlementService
type SettlementService interface {
	Calculate(ctx context.Context, callerID, eventID uuid.UUID) (*settlement.Report, error)
	Execute(ctx context.Context, callerID, eventID uuid.UUID) ([]*settlement.Record, error)
	ProcessRefund(ctx context.Context, callerID, eventID, userID uuid.UUID) (*settlement.Record, error)
	ProcessAll(ctx context.Context, callerID, eventID uuid.UUID) ([]service.RefundOutcome, error)
	Complete(ctx context.Context, callerID, eventID uuid.UUID) (*event.Event, error)
	Status(ctx context.Context, callerID, eventID uuid.UUID) (*service.SettlementStatus, error)
	CategoryPreview(ctx context.Context, callerID, eventID, categoryID uuid.UUID) (*service.CategoryPreview, error)
}
