package handler

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/shared-event-wallet/internal/service"
)

// WalletHandler handles deposits, wallet reads and ledger history
type WalletHandler struct {
	walletService WalletService
	logger        *slog.Logger
}

func NewWalletHandler(logger *slog.Logger, walletService WalletService) *WalletHandler {
	return &WalletHandler{
		walletService: walletService,
		logger:        logger,
	}
}

// Deposit answers 202 with a pay URL when the gateway confirms asynchronously,
// and 201 when the money is already in the wallet
func (h *WalletHandler) Deposit(c *gin.Context) {
	callerID, eventID, ok := eventScope(c)
	if !ok {
		return
	}

	var req DepositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	result, err := h.walletService.Deposit(c.Request.Context(), callerID, eventID, service.DepositInput{
		Amount:      req.Amount,
		Description: req.Description,
	})
	if err != nil {
		RespondError(c, h.logger, err)
		return
	}

	if result.Pending {
		RespondAccepted(c, result)
		return
	}
	RespondCreated(c, result)
}

func (h *WalletHandler) GetWallet(c *gin.Context) {
	callerID, eventID, ok := eventScope(c)
	if !ok {
		return
	}

	w, err := h.walletService.GetWallet(c.Request.Context(), callerID, eventID)
	if err != nil {
		RespondError(c, h.logger, err)
		return
	}
	RespondOK(c, w)
}

func (h *WalletHandler) ListTransactions(c *gin.Context) {
	callerID, eventID, ok := eventScope(c)
	if !ok {
		return
	}

	txs, err := h.walletService.ListTransactions(c.Request.Context(), callerID, eventID)
	if err != nil {
		RespondError(c, h.logger, err)
		return
	}
	RespondOK(c, txs)
}

func (h *WalletHandler) Summary(c *gin.Context) {
	callerID, eventID, ok := eventScope(c)
	if !ok {
		return
	}

	summary, err := h.walletService.Summary(c.Request.Context(), callerID, eventID)
	if err != nil {
		RespondError(c, h.logger, err)
		return
	}
	RespondOK(c, summary)
}

// Ledger returns the mirrored history of the whole event
func (h *WalletHandler) Ledger(c *gin.Context) {
	callerID, eventID, ok := eventScope(c)
	if !ok {
		return
	}
	h.history(c, callerID, eventID, nil)
}

// ParticipantLedger returns the mirrored history of one participant
func (h *WalletHandler) ParticipantLedger(c *gin.Context) {
	callerID, eventID, ok := eventScope(c)
	if !ok {
		return
	}
	userID, ok := pathUUID(c, "userId", "user")
	if !ok {
		return
	}
	h.history(c, callerID, eventID, &userID)
}

func (h *WalletHandler) history(c *gin.Context, callerID, eventID uuid.UUID, actorID *uuid.UUID) {
	var pagination PaginationParams
	if err := c.ShouldBindQuery(&pagination); err != nil {
		RespondBadRequest(c, "Invalid pagination parameters")
		return
	}

	entries, total, err := h.walletService.History(c.Request.Context(), callerID, eventID, actorID, pagination.Page, pagination.PerPage)
	if err != nil {
		RespondError(c, h.logger, err)
		return
	}
	RespondWithPaginatedData(c, http.StatusOK, entries, pagination.Page, pagination.PerPage, int(total))
}
