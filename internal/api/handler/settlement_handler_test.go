package handler

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/shared-event-wallet/internal/domain/event"
	"github.com/shared-event-wallet/internal/domain/settlement"
	"github.com/shared-event-wallet/internal/domain/shared"
	"github.com/shared-event-wallet/internal/service"
)

func TestSettlementHandler(t *testing.T) {
	creator := uuid.New()
	member := uuid.New()
	eventID := uuid.New()
	base := "/events/" + eventID.String() + "/settlement"

	svc := new(MockSettlementService)
	h := NewSettlementHandler(testLogger(), svc)
	router := newTestRouter(http.MethodGet, "/events/:id/settlement/calculate", h.Calculate)
	router.POST("/events/:id/settlement/execute", h.Execute)
	router.GET("/events/:id/settlement/status", h.Status)
	router.POST("/events/:id/settlement/refunds", h.ProcessAll)
	router.POST("/events/:id/settlement/refunds/:userId", h.ProcessRefund)
	router.POST("/events/:id/settlement/complete", h.Complete)
	router.GET("/events/:id/settlement/categories/:categoryId", h.CategoryPreview)

	t.Run("Calculate", func(t *testing.T) {
		report := &settlement.Report{
			EventID:        eventID,
			Lines:          []settlement.Line{{UserID: member, Name: "Bob", Deposited: 100, Share: 45, Net: 55, RefundAmount: 55}},
			TotalDeposited: 100,
			TotalRefunds:   55,
		}
		svc.On("Calculate", mock.Anything, member, eventID).Return(report, nil).Once()

		rr := perform(router, http.MethodGet, base+"/calculate", member, nil)
		require.Equal(t, http.StatusOK, rr.Code)

		var got settlement.Report
		require.NoError(t, json.Unmarshal(decode(t, rr).Data, &got))
		assert.Equal(t, int64(55), got.Lines[0].RefundAmount)
		assert.Equal(t, "Bob", got.Lines[0].Name)
	})

	t.Run("ExecuteByMember", func(t *testing.T) {
		svc.On("Execute", mock.Anything, member, eventID).Return(nil, shared.AuthorizationError{Err: shared.ErrCreatorOnly}).Once()

		rr := perform(router, http.MethodPost, base+"/execute", member, nil)
		assert.Equal(t, http.StatusForbidden, rr.Code)
	})

	t.Run("ExecuteRefundsExceedFunds", func(t *testing.T) {
		svc.On("Execute", mock.Anything, creator, eventID).
			Return(nil, shared.InsufficientFundsError{Err: shared.ErrRefundsExceedFunds, Available: 200, Requested: 210}).Once()

		rr := perform(router, http.MethodPost, base+"/execute", creator, nil)
		assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	})

	t.Run("ProcessRefundGatewayFailure", func(t *testing.T) {
		svc.On("ProcessRefund", mock.Anything, creator, eventID, member).
			Return(nil, shared.ExternalServiceError{Service: "payment gateway"}).Once()

		rr := perform(router, http.MethodPost, base+"/refunds/"+member.String(), creator, nil)
		assert.Equal(t, http.StatusBadGateway, rr.Code)
	})

	t.Run("ProcessRefundAlreadyCompleted", func(t *testing.T) {
		svc.On("ProcessRefund", mock.Anything, creator, eventID, member).
			Return(nil, shared.StateConflictError{Err: shared.ErrRefundCompleted}).Once()

		rr := perform(router, http.MethodPost, base+"/refunds/"+member.String(), creator, nil)
		assert.Equal(t, http.StatusConflict, rr.Code)
	})

	t.Run("ProcessAllReportsOutcomes", func(t *testing.T) {
		outcomes := []service.RefundOutcome{
			{UserID: creator, RefundAmount: 155, Status: settlement.RefundStatusCompleted},
			{UserID: member, RefundAmount: 55, Status: settlement.RefundStatusFailed, Error: "payout rejected"},
		}
		svc.On("ProcessAll", mock.Anything, creator, eventID).Return(outcomes, nil).Once()

		rr := perform(router, http.MethodPost, base+"/refunds", creator, nil)
		require.Equal(t, http.StatusOK, rr.Code)

		var got []service.RefundOutcome
		require.NoError(t, json.Unmarshal(decode(t, rr).Data, &got))
		assert.Equal(t, outcomes, got)
	})

	t.Run("CompleteBlocked", func(t *testing.T) {
		svc.On("Complete", mock.Anything, creator, eventID).
			Return(nil, shared.StateConflictError{Err: shared.ErrOutstandingRefunds}).Once()

		rr := perform(router, http.MethodPost, base+"/complete", creator, nil)
		assert.Equal(t, http.StatusConflict, rr.Code)
		assert.Equal(t, shared.ErrOutstandingRefunds.Error(), decode(t, rr).Error.Message)
	})

	t.Run("Complete", func(t *testing.T) {
		svc.On("Complete", mock.Anything, creator, eventID).
			Return(&event.Event{ID: eventID, Status: event.StatusSettled}, nil).Once()

		rr := perform(router, http.MethodPost, base+"/complete", creator, nil)
		assert.Equal(t, http.StatusOK, rr.Code)
	})

	t.Run("Status", func(t *testing.T) {
		svc.On("Status", mock.Anything, member, eventID).
			Return(&service.SettlementStatus{EventStatus: event.StatusSettling, Outstanding: 1}, nil).Once()

		rr := perform(router, http.MethodGet, base+"/status", member, nil)
		assert.Equal(t, http.StatusOK, rr.Code)
	})

	t.Run("CategoryPreviewBadID", func(t *testing.T) {
		rr := perform(router, http.MethodGet, base+"/categories/food", member, nil)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	svc.AssertExpectations(t)
}
