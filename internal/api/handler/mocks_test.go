package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/shared-event-wallet/internal/api/middleware"
	"github.com/shared-event-wallet/internal/domain/event"
	"github.com/shared-event-wallet/internal/domain/expense"
	"github.com/shared-event-wallet/internal/domain/ledger"
	"github.com/shared-event-wallet/internal/domain/settlement"
	"github.com/shared-event-wallet/internal/domain/shared"
	"github.com/shared-event-wallet/internal/domain/wallet"
	"github.com/shared-event-wallet/internal/platform/receipt"
	"github.com/shared-event-wallet/internal/service"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestRouter mounts one route behind the identity middleware
func newTestRouter(method, path string, h gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.CorrelationID(), middleware.CallerIdentity())
	r.Handle(method, path, h)
	return r
}

func perform(r http.Handler, method, url string, caller uuid.UUID, body interface{}) *httptest.ResponseRecorder {
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		raw, _ := json.Marshal(b)
		reader = bytes.NewBuffer(raw)
	}

	req := httptest.NewRequest(method, url, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(middleware.UserIDHeader, caller.String())
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

// envelope decodes the response envelope, keeping data raw
type envelope struct {
	Data          json.RawMessage `json:"data"`
	Error         *ErrorInfo      `json:"error"`
	CorrelationID string          `json:"correlation_id"`
	Meta          *MetaInfo       `json:"meta"`
}

func decode(t *testing.T, rr *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env))
	return env
}

type MockEventService struct {
	mock.Mock
}

func (m *MockEventService) CreateEvent(ctx context.Context, callerID uuid.UUID, in service.CreateEventInput) (*event.Event, error) {
	args := m.Called(ctx, callerID, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*event.Event), args.Error(1)
}

func (m *MockEventService) JoinEvent(ctx context.Context, callerID, eventID uuid.UUID) (*event.Participant, error) {
	args := m.Called(ctx, callerID, eventID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*event.Participant), args.Error(1)
}

func (m *MockEventService) ListMyEvents(ctx context.Context, callerID uuid.UUID) ([]*event.Event, error) {
	args := m.Called(ctx, callerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*event.Event), args.Error(1)
}

func (m *MockEventService) GetEvent(ctx context.Context, callerID, eventID uuid.UUID) (*service.EventDetails, error) {
	args := m.Called(ctx, callerID, eventID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.EventDetails), args.Error(1)
}

func (m *MockEventService) MyAuthorization(ctx context.Context, callerID, eventID uuid.UUID) (*service.Authorization, error) {
	args := m.Called(ctx, callerID, eventID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.Authorization), args.Error(1)
}

func (m *MockEventService) CreateCategory(ctx context.Context, callerID, eventID uuid.UUID, in service.CategoryInput) (*event.Category, error) {
	args := m.Called(ctx, callerID, eventID, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*event.Category), args.Error(1)
}

func (m *MockEventService) JoinCategory(ctx context.Context, callerID, eventID, categoryID uuid.UUID) (*event.Membership, error) {
	args := m.Called(ctx, callerID, eventID, categoryID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*event.Membership), args.Error(1)
}

func (m *MockEventService) LeaveCategory(ctx context.Context, callerID, eventID, categoryID uuid.UUID) error {
	return m.Called(ctx, callerID, eventID, categoryID).Error(0)
}

func (m *MockEventService) CloseCategory(ctx context.Context, callerID, eventID, categoryID uuid.UUID) error {
	return m.Called(ctx, callerID, eventID, categoryID).Error(0)
}

func (m *MockEventService) UpdateCategoryLimits(ctx context.Context, callerID, eventID, categoryID uuid.UUID, in service.LimitsInput) (*event.Category, error) {
	args := m.Called(ctx, callerID, eventID, categoryID, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*event.Category), args.Error(1)
}

func (m *MockEventService) ListCategories(ctx context.Context, callerID, eventID uuid.UUID) ([]service.CategoryView, error) {
	args := m.Called(ctx, callerID, eventID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]service.CategoryView), args.Error(1)
}

type MockWalletService struct {
	mock.Mock
}

func (m *MockWalletService) Deposit(ctx context.Context, callerID, eventID uuid.UUID, in service.DepositInput) (*service.DepositResult, error) {
	args := m.Called(ctx, callerID, eventID, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.DepositResult), args.Error(1)
}

func (m *MockWalletService) GetWallet(ctx context.Context, callerID, eventID uuid.UUID) (*wallet.Wallet, error) {
	args := m.Called(ctx, callerID, eventID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*wallet.Wallet), args.Error(1)
}

func (m *MockWalletService) ListTransactions(ctx context.Context, callerID, eventID uuid.UUID) ([]*ledger.Transaction, error) {
	args := m.Called(ctx, callerID, eventID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*ledger.Transaction), args.Error(1)
}

func (m *MockWalletService) Summary(ctx context.Context, callerID, eventID uuid.UUID) (*service.PaymentSummary, error) {
	args := m.Called(ctx, callerID, eventID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.PaymentSummary), args.Error(1)
}

func (m *MockWalletService) History(ctx context.Context, callerID, eventID uuid.UUID, actorID *uuid.UUID, page, limit int) ([]*ledger.Entry, int64, error) {
	args := m.Called(ctx, callerID, eventID, actorID, page, limit)
	if args.Get(0) == nil {
		return nil, args.Get(1).(int64), args.Error(2)
	}
	return args.Get(0).([]*ledger.Entry), args.Get(1).(int64), args.Error(2)
}

type MockExpenseService struct {
	mock.Mock
}

func (m *MockExpenseService) Propose(ctx context.Context, callerID, eventID uuid.UUID, in service.ProposeInput) (*service.ExpenseResult, error) {
	args := m.Called(ctx, callerID, eventID, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.ExpenseResult), args.Error(1)
}

func (m *MockExpenseService) Approve(ctx context.Context, callerID, eventID, expenseID uuid.UUID) (*service.ExpenseResult, error) {
	args := m.Called(ctx, callerID, eventID, expenseID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.ExpenseResult), args.Error(1)
}

func (m *MockExpenseService) Reject(ctx context.Context, callerID, eventID, expenseID uuid.UUID, reason string) (*expense.Expense, error) {
	args := m.Called(ctx, callerID, eventID, expenseID, reason)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*expense.Expense), args.Error(1)
}

func (m *MockExpenseService) Edit(ctx context.Context, callerID, eventID, expenseID uuid.UUID, in service.EditInput) (*expense.Expense, error) {
	args := m.Called(ctx, callerID, eventID, expenseID, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*expense.Expense), args.Error(1)
}

func (m *MockExpenseService) Dispute(ctx context.Context, callerID, eventID, expenseID uuid.UUID) (*expense.Expense, error) {
	args := m.Called(ctx, callerID, eventID, expenseID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*expense.Expense), args.Error(1)
}

func (m *MockExpenseService) Delete(ctx context.Context, callerID, eventID, expenseID uuid.UUID) error {
	return m.Called(ctx, callerID, eventID, expenseID).Error(0)
}

func (m *MockExpenseService) List(ctx context.Context, callerID, eventID uuid.UUID, filter expense.Filter) ([]*expense.Expense, error) {
	args := m.Called(ctx, callerID, eventID, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*expense.Expense), args.Error(1)
}

func (m *MockExpenseService) Get(ctx context.Context, callerID, eventID, expenseID uuid.UUID) (*expense.Expense, error) {
	args := m.Called(ctx, callerID, eventID, expenseID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*expense.Expense), args.Error(1)
}

func (m *MockExpenseService) Summary(ctx context.Context, callerID, eventID uuid.UUID) (*expense.Summary, error) {
	args := m.Called(ctx, callerID, eventID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*expense.Summary), args.Error(1)
}

func (m *MockExpenseService) ExtractReceipt(ctx context.Context, callerID, eventID uuid.UUID, image []byte) (*receipt.Suggestion, error) {
	args := m.Called(ctx, callerID, eventID, image)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*receipt.Suggestion), args.Error(1)
}

type MockSettlementService struct {
	mock.Mock
}

func (m *MockSettlementService) Calculate(ctx context.Context, callerID, eventID uuid.UUID) (*settlement.Report, error) {
	args := m.Called(ctx, callerID, eventID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*settlement.Report), args.Error(1)
}

func (m *MockSettlementService) Execute(ctx context.Context, callerID, eventID uuid.UUID) ([]*settlement.Record, error) {
	args := m.Called(ctx, callerID, eventID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*settlement.Record), args.Error(1)
}

func (m *MockSettlementService) ProcessRefund(ctx context.Context, callerID, eventID, userID uuid.UUID) (*settlement.Record, error) {
	args := m.Called(ctx, callerID, eventID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*settlement.Record), args.Error(1)
}

func (m *MockSettlementService) ProcessAll(ctx context.Context, callerID, eventID uuid.UUID) ([]service.RefundOutcome, error) {
	args := m.Called(ctx, callerID, eventID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]service.RefundOutcome), args.Error(1)
}

func (m *MockSettlementService) Complete(ctx context.Context, callerID, eventID uuid.UUID) (*event.Event, error) {
	args := m.Called(ctx, callerID, eventID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*event.Event), args.Error(1)
}

func (m *MockSettlementService) Status(ctx context.Context, callerID, eventID uuid.UUID) (*service.SettlementStatus, error) {
	args := m.Called(ctx, callerID, eventID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.SettlementStatus), args.Error(1)
}

func (m *MockSettlementService) CategoryPreview(ctx context.Context, callerID, eventID, categoryID uuid.UUID) (*service.CategoryPreview, error) {
	args := m.Called(ctx, callerID, eventID, categoryID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.CategoryPreview), args.Error(1)
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, key string, ev shared.GatewayEvent) error {
	return m.Called(ctx, key, ev).Error(0)
}

func (m *MockPublisher) Close() error {
	return m.Called().Error(0)
}
