package service

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/shared-event-wallet/internal/config"
	"github.com/shared-event-wallet/internal/domain/ledger"
	"github.com/shared-event-wallet/internal/domain/shared"
	"github.com/shared-event-wallet/internal/platform/gateway"
)

func testGatewayConfig() config.GatewayConfig {
	return config.GatewayConfig{
		SuccessURL: "https://wallet.example.com/deposits/success",
		CancelURL:  "https://wallet.example.com/deposits/cancel",
	}
}

type MockMirror struct {
	mock.Mock
}

func (m *MockMirror) Create(ctx context.Context, entry *ledger.Entry) error {
	return m.Called(ctx, entry).Error(0)
}

func (m *MockMirror) GetByTransactionID(ctx context.Context, transactionID string) (*ledger.Entry, error) {
	args := m.Called(ctx, transactionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.Entry), args.Error(1)
}

func (m *MockMirror) UpdateStatus(ctx context.Context, transactionID string, status shared.TransactionStatus, gatewayTxRef string) error {
	return m.Called(ctx, transactionID, status, gatewayTxRef).Error(0)
}

func (m *MockMirror) ListByEvent(ctx context.Context, eventID string, limit, offset int) ([]*ledger.Entry, error) {
	args := m.Called(ctx, eventID, limit, offset)
	return args.Get(0).([]*ledger.Entry), args.Error(1)
}

func (m *MockMirror) CountByEvent(ctx context.Context, eventID string) (int64, error) {
	args := m.Called(ctx, eventID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockMirror) ListByActor(ctx context.Context, eventID, actorID string, limit, offset int) ([]*ledger.Entry, error) {
	args := m.Called(ctx, eventID, actorID, limit, offset)
	return args.Get(0).([]*ledger.Entry), args.Error(1)
}

func TestWalletService_Deposit(t *testing.T) {
	ctx := context.Background()

	t.Run("IntentLeavesDepositPending", func(t *testing.T) {
		f := newFixture(1)
		gw := new(MockGateway)
		gw.On("CreateWallet", ctx, f.event.ID).Return("wal_1", nil).Once()
		gw.On("CreateDepositIntent", ctx, mock.MatchedBy(func(req gateway.DepositRequest) bool {
			return req.Amount == 4000 && req.WalletRef == "wal_1" && req.Currency == "EUR" &&
				req.SuccessURL == testGatewayConfig().SuccessURL
		})).Return(&gateway.DepositIntent{IntentRef: "pi_1", PayURL: "https://pay.example.com/pi_1"}, nil).Once()

		svc := NewWalletService(newTestLogger(), f.repos, f.ledger, gw, nil, testGatewayConfig())
		result, err := svc.Deposit(ctx, f.members[0], f.event.ID, DepositInput{Amount: 4000})
		require.NoError(t, err)

		assert.True(t, result.Pending)
		assert.Equal(t, "https://pay.example.com/pi_1", result.PayURL)
		assert.Equal(t, "pi_1", result.Transaction.GatewayIntentRef)
		assert.Zero(t, f.store.wallet(f.event.ID).Balance)
		assert.Equal(t, "wal_1", mustEvent(t, f).GatewayWalletRef)
		gw.AssertExpectations(t)
	})

	t.Run("FallsBackToSynchronousCharge", func(t *testing.T) {
		f := newFixture(1)
		gw := new(MockGateway)
		gw.On("CreateWallet", ctx, f.event.ID).Return("", errors.New("unavailable")).Once()
		gw.On("CreateDepositIntent", ctx, mock.Anything).Return(nil, shared.ErrGatewayNotSupported).Once()
		gw.On("ChargeDeposit", ctx, mock.Anything).Return("ch_1", nil).Once()

		svc := NewWalletService(newTestLogger(), f.repos, f.ledger, gw, nil, testGatewayConfig())
		result, err := svc.Deposit(ctx, f.members[0], f.event.ID, DepositInput{Amount: 4000, Description: "Share"})
		require.NoError(t, err)

		assert.False(t, result.Pending)
		assert.Equal(t, shared.TransactionStatusCompleted, result.Transaction.Status)
		assert.Equal(t, "ch_1", result.Transaction.GatewayTxRef)
		assert.Equal(t, int64(4000), f.store.wallet(f.event.ID).Balance)
		gw.AssertExpectations(t)
	})

	t.Run("ChargeFailure", func(t *testing.T) {
		f := newFixture(0)
		gw := new(MockGateway)
		gw.On("CreateWallet", ctx, mock.Anything).Return("wal_1", nil)
		gw.On("CreateDepositIntent", ctx, mock.Anything).Return(nil, shared.ErrGatewayNotSupported)
		gw.On("ChargeDeposit", ctx, mock.Anything).Return("", shared.ExternalServiceError{Service: "payment gateway", Err: errors.New("card declined")})

		svc := NewWalletService(newTestLogger(), f.repos, f.ledger, gw, nil, testGatewayConfig())
		_, err := svc.Deposit(ctx, f.creator, f.event.ID, DepositInput{Amount: 100})
		assert.ErrorIs(t, err, shared.ExternalServiceError{})
		assert.Zero(t, f.store.wallet(f.event.ID).Balance)
	})

	t.Run("InvalidAmount", func(t *testing.T) {
		f := newFixture(0)
		svc := NewWalletService(newTestLogger(), f.repos, f.ledger, new(MockGateway), nil, testGatewayConfig())

		_, err := svc.Deposit(ctx, f.creator, f.event.ID, DepositInput{Amount: -5})
		assert.ErrorIs(t, err, shared.ValidationError{Err: shared.ErrInvalidAmount})
	})

	t.Run("Outsider", func(t *testing.T) {
		f := newFixture(0)
		svc := NewWalletService(newTestLogger(), f.repos, f.ledger, new(MockGateway), nil, testGatewayConfig())

		_, err := svc.Deposit(ctx, uuid.New(), f.event.ID, DepositInput{Amount: 5})
		assert.ErrorIs(t, err, shared.NotFoundError{Resource: "event", ID: f.event.ID.String()})
	})
}

func TestWalletService_History(t *testing.T) {
	ctx := context.Background()
	f := newFixture(1)
	eventID := f.event.ID.String()
	entries := []*ledger.Entry{{TransactionID: uuid.NewString(), EventID: eventID}}

	t.Run("WholeEventIsPaginated", func(t *testing.T) {
		mirror := new(MockMirror)
		mirror.On("ListByEvent", ctx, eventID, maxHistoryLimit, maxHistoryLimit).Return(entries, nil).Once()
		mirror.On("CountByEvent", ctx, eventID).Return(int64(101), nil).Once()

		svc := NewWalletService(newTestLogger(), f.repos, f.ledger, new(MockGateway), mirror, testGatewayConfig())
		got, total, err := svc.History(ctx, f.creator, f.event.ID, nil, 2, 500)
		require.NoError(t, err)
		assert.Equal(t, entries, got)
		assert.Equal(t, int64(101), total)
		mirror.AssertExpectations(t)
	})

	t.Run("ByActorUsesDefaults", func(t *testing.T) {
		actor := f.members[0]
		mirror := new(MockMirror)
		mirror.On("ListByActor", ctx, eventID, actor.String(), defaultHistoryLimit, 0).Return(entries, nil).Once()

		svc := NewWalletService(newTestLogger(), f.repos, f.ledger, new(MockGateway), mirror, testGatewayConfig())
		got, total, err := svc.History(ctx, f.creator, f.event.ID, &actor, 0, 0)
		require.NoError(t, err)
		assert.Len(t, got, 1)
		assert.Equal(t, int64(1), total)
	})
}
