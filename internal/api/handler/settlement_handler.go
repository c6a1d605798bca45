package handler

import (
	"log/slog"

	"github.com/gin-gonic/gin"
)

// SettlementHandler handles settlement and refund closeout
type SettlementHandler struct {
	settlementService SettlementService
	logger            *slog.Logger
}

func NewSettlementHandler(logger *slog.Logger, settlementService SettlementService) *SettlementHandler {
	return &SettlementHandler{
		settlementService: settlementService,
		logger:            logger,
	}
}

// Calculate previews the settlement without changing anything
func (h *SettlementHandler) Calculate(c *gin.Context) {
	callerID, eventID, ok := eventScope(c)
	if !ok {
		return
	}

	report, err := h.settlementService.Calculate(c.Request.Context(), callerID, eventID)
	if err != nil {
		RespondError(c, h.logger, err)
		return
	}
	RespondOK(c, report)
}

// Execute freezes the event and records every participant's refund
func (h *SettlementHandler) Execute(c *gin.Context) {
	callerID, eventID, ok := eventScope(c)
	if !ok {
		return
	}

	records, err := h.settlementService.Execute(c.Request.Context(), callerID, eventID)
	if err != nil {
		RespondError(c, h.logger, err)
		return
	}
	RespondOK(c, records)
}

func (h *SettlementHandler) Status(c *gin.Context) {
	callerID, eventID, ok := eventScope(c)
	if !ok {
		return
	}

	status, err := h.settlementService.Status(c.Request.Context(), callerID, eventID)
	if err != nil {
		RespondError(c, h.logger, err)
		return
	}
	RespondOK(c, status)
}

// ProcessRefund pays one participant. A gateway failure answers 502 and may be retried.
func (h *SettlementHandler) ProcessRefund(c *gin.Context) {
	callerID, eventID, ok := eventScope(c)
	if !ok {
		return
	}
	userID, ok := pathUUID(c, "userId", "user")
	if !ok {
		return
	}

	record, err := h.settlementService.ProcessRefund(c.Request.Context(), callerID, eventID, userID)
	if err != nil {
		RespondError(c, h.logger, err)
		return
	}
	RespondOK(c, record)
}

// ProcessAll pays every outstanding refund. Individual failures are reported
// per participant, not as a request failure.
func (h *SettlementHandler) ProcessAll(c *gin.Context) {
	callerID, eventID, ok := eventScope(c)
	if !ok {
		return
	}

	outcomes, err := h.settlementService.ProcessAll(c.Request.Context(), callerID, eventID)
	if err != nil {
		RespondError(c, h.logger, err)
		return
	}
	RespondOK(c, outcomes)
}

func (h *SettlementHandler) Complete(c *gin.Context) {
	callerID, eventID, ok := eventScope(c)
	if !ok {
		return
	}

	evt, err := h.settlementService.Complete(c.Request.Context(), callerID, eventID)
	if err != nil {
		RespondError(c, h.logger, err)
		return
	}
	RespondOK(c, evt)
}

func (h *SettlementHandler) CategoryPreview(c *gin.Context) {
	callerID, eventID, ok := eventScope(c)
	if !ok {
		return
	}
	categoryID, ok := pathUUID(c, "categoryId", "category")
	if !ok {
		return
	}

	preview, err := h.settlementService.CategoryPreview(c.Request.Context(), callerID, eventID, categoryID)
	if err != nil {
		RespondError(c, h.logger, err)
		return
	}
	RespondOK(c, preview)
}
