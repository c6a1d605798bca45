package handler

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/shared-event-wallet/internal/domain/expense"
	"github.com/shared-event-wallet/internal/service"
)

// maxReceiptSize bounds uploaded receipt images
const maxReceiptSize = 10 << 20

// ExpenseHandler handles the expense workflow endpoints
type ExpenseHandler struct {
	expenseService ExpenseService
	logger         *slog.Logger
}

func NewExpenseHandler(logger *slog.Logger, expenseService ExpenseService) *ExpenseHandler {
	return &ExpenseHandler{
		expenseService: expenseService,
		logger:         logger,
	}
}

// Propose answers 201 when the expense was paid and 202 when it awaits approval
func (h *ExpenseHandler) Propose(c *gin.Context) {
	callerID, eventID, ok := eventScope(c)
	if !ok {
		return
	}

	var req ProposeExpenseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	in := service.ProposeInput{
		Amount:      req.Amount,
		Description: req.Description,
		ReceiptRef:  req.ReceiptRef,
	}
	if req.CategoryID != "" {
		categoryID := uuid.MustParse(req.CategoryID)
		in.CategoryID = &categoryID
	}

	result, err := h.expenseService.Propose(c.Request.Context(), callerID, eventID, in)
	if err != nil {
		RespondError(c, h.logger, err)
		return
	}

	if result.RequiresApproval {
		RespondAccepted(c, result)
		return
	}
	RespondCreated(c, result)
}

func (h *ExpenseHandler) List(c *gin.Context) {
	callerID, eventID, ok := eventScope(c)
	if !ok {
		return
	}

	var params ExpenseFilterParams
	if err := c.ShouldBindQuery(&params); err != nil {
		RespondBadRequest(c, "Invalid filter parameters")
		return
	}
	filter := expense.Filter{Status: expense.Status(params.Status)}
	if params.CategoryID != "" {
		categoryID := uuid.MustParse(params.CategoryID)
		filter.CategoryID = &categoryID
	}

	expenses, err := h.expenseService.List(c.Request.Context(), callerID, eventID, filter)
	if err != nil {
		RespondError(c, h.logger, err)
		return
	}
	RespondOK(c, expenses)
}

func (h *ExpenseHandler) Get(c *gin.Context) {
	callerID, eventID, expenseID, ok := expenseScope(c)
	if !ok {
		return
	}

	e, err := h.expenseService.Get(c.Request.Context(), callerID, eventID, expenseID)
	if err != nil {
		RespondError(c, h.logger, err)
		return
	}
	RespondOK(c, e)
}

func (h *ExpenseHandler) Approve(c *gin.Context) {
	callerID, eventID, expenseID, ok := expenseScope(c)
	if !ok {
		return
	}

	result, err := h.expenseService.Approve(c.Request.Context(), callerID, eventID, expenseID)
	if err != nil {
		RespondError(c, h.logger, err)
		return
	}
	RespondOK(c, result)
}

func (h *ExpenseHandler) Reject(c *gin.Context) {
	callerID, eventID, expenseID, ok := expenseScope(c)
	if !ok {
		return
	}

	var req RejectExpenseRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			RespondBadRequest(c, "Invalid request body: "+err.Error())
			return
		}
	}

	e, err := h.expenseService.Reject(c.Request.Context(), callerID, eventID, expenseID, req.Reason)
	if err != nil {
		RespondError(c, h.logger, err)
		return
	}
	RespondOK(c, e)
}

func (h *ExpenseHandler) Edit(c *gin.Context) {
	callerID, eventID, expenseID, ok := expenseScope(c)
	if !ok {
		return
	}

	var req EditExpenseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}
	if req.Description == nil && req.ReceiptRef == nil {
		RespondBadRequest(c, "Nothing to update")
		return
	}

	e, err := h.expenseService.Edit(c.Request.Context(), callerID, eventID, expenseID, service.EditInput{
		Description: req.Description,
		ReceiptRef:  req.ReceiptRef,
	})
	if err != nil {
		RespondError(c, h.logger, err)
		return
	}
	RespondOK(c, e)
}

func (h *ExpenseHandler) Dispute(c *gin.Context) {
	callerID, eventID, expenseID, ok := expenseScope(c)
	if !ok {
		return
	}

	e, err := h.expenseService.Dispute(c.Request.Context(), callerID, eventID, expenseID)
	if err != nil {
		RespondError(c, h.logger, err)
		return
	}
	RespondOK(c, e)
}

func (h *ExpenseHandler) Delete(c *gin.Context) {
	callerID, eventID, expenseID, ok := expenseScope(c)
	if !ok {
		return
	}

	if err := h.expenseService.Delete(c.Request.Context(), callerID, eventID, expenseID); err != nil {
		RespondError(c, h.logger, err)
		return
	}
	RespondNoContent(c)
}

func (h *ExpenseHandler) Summary(c *gin.Context) {
	callerID, eventID, ok := eventScope(c)
	if !ok {
		return
	}

	summary, err := h.expenseService.Summary(c.Request.Context(), callerID, eventID)
	if err != nil {
		RespondError(c, h.logger, err)
		return
	}
	RespondOK(c, summary)
}

// ExtractReceipt reads the image from the "receipt" multipart field, or the raw
// body when the request is not multipart
func (h *ExpenseHandler) ExtractReceipt(c *gin.Context) {
	callerID, eventID, ok := eventScope(c)
	if !ok {
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxReceiptSize)

	var (
		image []byte
		err   error
	)
	if file, ferr := c.FormFile("receipt"); ferr == nil {
		f, openErr := file.Open()
		if openErr != nil {
			RespondBadRequest(c, "Unreadable receipt upload")
			return
		}
		defer f.Close()
		image, err = io.ReadAll(f)
	} else {
		image, err = io.ReadAll(c.Request.Body)
	}
	if err != nil {
		RespondBadRequest(c, "Unreadable receipt upload")
		return
	}

	suggestion, err := h.expenseService.ExtractReceipt(c.Request.Context(), callerID, eventID, image)
	if err != nil {
		RespondError(c, h.logger, err)
		return
	}
	RespondOK(c, suggestion)
}

func expenseScope(c *gin.Context) (callerID, eventID, expenseID uuid.UUID, ok bool) {
	if callerID, eventID, ok = eventScope(c); !ok {
		return
	}
	expenseID, ok = pathUUID(c, "expenseId", "expense")
	return
}
