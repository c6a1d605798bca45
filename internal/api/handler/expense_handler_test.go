package handler

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/shared-event-wallet/internal/api/middleware"
	"github.com/shared-event-wallet/internal/domain/expense"
	"github.com/shared-event-wallet/internal/domain/shared"
	"github.com/shared-event-wallet/internal/platform/receipt"
	"github.com/shared-event-wallet/internal/service"
)

func TestExpenseHandler_Propose(t *testing.T) {
	callerID := uuid.New()
	eventID := uuid.New()
	categoryID := uuid.New()
	url := "/events/" + eventID.String() + "/expenses"

	tests := []struct {
		name       string
		body       interface{}
		setupMocks func(svc *MockExpenseService)
		status     int
	}{
		{
			name: "paid immediately",
			body: map[string]interface{}{"category_id": categoryID.String(), "amount": 1200, "description": "Pizza"},
			setupMocks: func(svc *MockExpenseService) {
				svc.On("Propose", mock.Anything, callerID, eventID, service.ProposeInput{
					CategoryID: &categoryID, Amount: 1200, Description: "Pizza",
				}).Return(&service.ExpenseResult{Expense: &expense.Expense{Status: expense.StatusPaid}}, nil).Once()
			},
			status: http.StatusCreated,
		},
		{
			name: "awaiting approval",
			body: map[string]interface{}{"amount": 90000},
			setupMocks: func(svc *MockExpenseService) {
				svc.On("Propose", mock.Anything, callerID, eventID, service.ProposeInput{Amount: 90000}).
					Return(&service.ExpenseResult{Expense: &expense.Expense{Status: expense.StatusPending}, RequiresApproval: true}, nil).Once()
			},
			status: http.StatusAccepted,
		},
		{
			name: "budget exceeded",
			body: map[string]interface{}{"category_id": categoryID.String(), "amount": 100},
			setupMocks: func(svc *MockExpenseService) {
				svc.On("Propose", mock.Anything, callerID, eventID, mock.Anything).
					Return(nil, shared.InsufficientFundsError{Err: shared.ErrBudgetExceeded, Available: 50, Requested: 100}).Once()
			},
			status: http.StatusUnprocessableEntity,
		},
		{
			name: "rule engine rejection",
			body: map[string]interface{}{"category_id": categoryID.String(), "amount": 100},
			setupMocks: func(svc *MockExpenseService) {
				svc.On("Propose", mock.Anything, callerID, eventID, mock.Anything).
					Return(nil, shared.AuthorizationError{Reason: "not a member of this category"}).Once()
			},
			status: http.StatusForbidden,
		},
		{
			name:       "bad category id",
			body:       map[string]interface{}{"category_id": "food", "amount": 100},
			setupMocks: func(svc *MockExpenseService) {},
			status:     http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockExpenseService)
			tt.setupMocks(svc)
			router := newTestRouter(http.MethodPost, "/events/:id/expenses", NewExpenseHandler(testLogger(), svc).Propose)

			rr := perform(router, http.MethodPost, url, callerID, tt.body)

			assert.Equal(t, tt.status, rr.Code)
			svc.AssertExpectations(t)
		})
	}
}

func TestExpenseHandler_Workflow(t *testing.T) {
	callerID := uuid.New()
	eventID := uuid.New()
	expenseID := uuid.New()
	base := "/events/" + eventID.String() + "/expenses/" + expenseID.String()

	svc := new(MockExpenseService)
	h := NewExpenseHandler(testLogger(), svc)
	router := newTestRouter(http.MethodPost, "/events/:id/expenses/:expenseId/approve", h.Approve)
	router.POST("/events/:id/expenses/:expenseId/reject", h.Reject)
	router.POST("/events/:id/expenses/:expenseId/dispute", h.Dispute)
	router.DELETE("/events/:id/expenses/:expenseId", h.Delete)
	router.PATCH("/events/:id/expenses/:expenseId", h.Edit)

	t.Run("ApproveNotPending", func(t *testing.T) {
		svc.On("Approve", mock.Anything, callerID, eventID, expenseID).
			Return(nil, shared.StateConflictError{Reason: "expense is not pending"}).Once()

		rr := perform(router, http.MethodPost, base+"/approve", callerID, nil)
		assert.Equal(t, http.StatusConflict, rr.Code)
	})

	t.Run("RejectWithReason", func(t *testing.T) {
		svc.On("Reject", mock.Anything, callerID, eventID, expenseID, "too pricey").
			Return(&expense.Expense{ID: expenseID, Status: expense.StatusRejected}, nil).Once()

		rr := perform(router, http.MethodPost, base+"/reject", callerID, map[string]string{"reason": "too pricey"})
		assert.Equal(t, http.StatusOK, rr.Code)
	})

	t.Run("RejectWithoutBody", func(t *testing.T) {
		svc.On("Reject", mock.Anything, callerID, eventID, expenseID, "").
			Return(&expense.Expense{ID: expenseID, Status: expense.StatusRejected}, nil).Once()

		rr := perform(router, http.MethodPost, base+"/reject", callerID, nil)
		assert.Equal(t, http.StatusOK, rr.Code)
	})

	t.Run("Dispute", func(t *testing.T) {
		svc.On("Dispute", mock.Anything, callerID, eventID, expenseID).
			Return(&expense.Expense{ID: expenseID, Status: expense.StatusDisputed}, nil).Once()

		rr := perform(router, http.MethodPost, base+"/dispute", callerID, nil)
		assert.Equal(t, http.StatusOK, rr.Code)
	})

	t.Run("EditDescription", func(t *testing.T) {
		description := "team dinner"
		svc.On("Edit", mock.Anything, callerID, eventID, expenseID, service.EditInput{Description: &description}).
			Return(&expense.Expense{ID: expenseID, Description: description, Status: expense.StatusPending}, nil).Once()

		rr := perform(router, http.MethodPatch, base, callerID, map[string]string{"description": description})
		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Body.String(), "team dinner")
	})

	t.Run("EditPaid", func(t *testing.T) {
		receiptRef := "receipts/1.png"
		svc.On("Edit", mock.Anything, callerID, eventID, expenseID, service.EditInput{ReceiptRef: &receiptRef}).
			Return(nil, shared.StateConflictError{Reason: "cannot edit an expense that is paid"}).Once()

		rr := perform(router, http.MethodPatch, base, callerID, map[string]string{"receipt_ref": receiptRef})
		assert.Equal(t, http.StatusConflict, rr.Code)
	})

	t.Run("EditWithoutFields", func(t *testing.T) {
		rr := perform(router, http.MethodPatch, base, callerID, map[string]string{})
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("DeletePaid", func(t *testing.T) {
		svc.On("Delete", mock.Anything, callerID, eventID, expenseID).
			Return(shared.StateConflictError{Reason: "paid expenses cannot be deleted"}).Once()

		rr := perform(router, http.MethodDelete, base, callerID, nil)
		assert.Equal(t, http.StatusConflict, rr.Code)
	})

	svc.AssertExpectations(t)
}

func TestExpenseHandler_List(t *testing.T) {
	callerID := uuid.New()
	eventID := uuid.New()
	categoryID := uuid.New()

	svc := new(MockExpenseService)
	router := newTestRouter(http.MethodGet, "/events/:id/expenses", NewExpenseHandler(testLogger(), svc).List)

	svc.On("List", mock.Anything, callerID, eventID, expense.Filter{CategoryID: &categoryID, Status: expense.StatusPaid}).
		Return([]*expense.Expense{}, nil).Once()

	rr := perform(router, http.MethodGet, "/events/"+eventID.String()+"/expenses?status=paid&category_id="+categoryID.String(), callerID, nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	svc.AssertExpectations(t)
}

func TestExpenseHandler_ExtractReceipt(t *testing.T) {
	callerID := uuid.New()
	eventID := uuid.New()
	url := "/events/" + eventID.String() + "/receipts/extract"
	image := []byte("fake-png-bytes")

	t.Run("Multipart", func(t *testing.T) {
		svc := new(MockExpenseService)
		router := newTestRouter(http.MethodPost, "/events/:id/receipts/extract", NewExpenseHandler(testLogger(), svc).ExtractReceipt)

		svc.On("ExtractReceipt", mock.Anything, callerID, eventID, image).
			Return(&receipt.Suggestion{Amount: 4250, Description: "Trattoria", SuggestedCategory: "Food"}, nil).Once()

		var body bytes.Buffer
		writer := multipart.NewWriter(&body)
		part, err := writer.CreateFormFile("receipt", "receipt.png")
		require.NoError(t, err)
		_, err = part.Write(image)
		require.NoError(t, err)
		require.NoError(t, writer.Close())

		req := httptest.NewRequest(http.MethodPost, url, &body)
		req.Header.Set("Content-Type", writer.FormDataContentType())
		req.Header.Set(middleware.UserIDHeader, callerID.String())
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.JSONEq(t, `{"amount":4250,"description":"Trattoria","suggested_category":"Food","raw_text":""}`, string(decode(t, rr).Data))
		svc.AssertExpectations(t)
	})

	t.Run("RawBodyWithoutAmount", func(t *testing.T) {
		svc := new(MockExpenseService)
		router := newTestRouter(http.MethodPost, "/events/:id/receipts/extract", NewExpenseHandler(testLogger(), svc).ExtractReceipt)

		svc.On("ExtractReceipt", mock.Anything, callerID, eventID, image).
			Return(nil, shared.ValidationError{Field: "receipt", Err: receipt.ErrNoAmount}).Once()

		req := httptest.NewRequest(http.MethodPost, url, bytes.NewReader(image))
		req.Header.Set("Content-Type", "image/png")
		req.Header.Set(middleware.UserIDHeader, callerID.String())
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		svc.AssertExpectations(t)
	})
}
