package handler

import (
	"log/slog"

	"github.com/gin-gonic/gin"

	"github.com/shared-event-wallet/internal/service"
)

// EventHandler handles HTTP requests for events and their categories
type EventHandler struct {
	eventService EventService
	logger       *slog.Logger
}

func NewEventHandler(logger *slog.Logger, eventService EventService) *EventHandler {
	return &EventHandler{
		eventService: eventService,
		logger:       logger,
	}
}

// Create makes the caller the creator of a new event
func (h *EventHandler) Create(c *gin.Context) {
	callerID, ok := caller(c)
	if !ok {
		return
	}

	var req CreateEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}
	rules, err := req.Rules.toRules()
	if err != nil {
		RespondBadRequest(c, "Invalid spending rules: "+err.Error())
		return
	}

	evt, err := h.eventService.CreateEvent(c.Request.Context(), callerID, service.CreateEventInput{
		Name:        req.Name,
		Description: req.Description,
		Currency:    req.Currency,
		StartDate:   req.StartDate,
		EndDate:     req.EndDate,
		Rules:       rules,
	})
	if err != nil {
		RespondError(c, h.logger, err)
		return
	}
	RespondCreated(c, evt)
}

// ListMine lists the events the caller participates in
func (h *EventHandler) ListMine(c *gin.Context) {
	callerID, ok := caller(c)
	if !ok {
		return
	}

	events, err := h.eventService.ListMyEvents(c.Request.Context(), callerID)
	if err != nil {
		RespondError(c, h.logger, err)
		return
	}
	RespondOK(c, events)
}

func (h *EventHandler) Get(c *gin.Context) {
	callerID, eventID, ok := eventScope(c)
	if !ok {
		return
	}

	details, err := h.eventService.GetEvent(c.Request.Context(), callerID, eventID)
	if err != nil {
		RespondError(c, h.logger, err)
		return
	}
	RespondOK(c, details)
}

func (h *EventHandler) Join(c *gin.Context) {
	callerID, eventID, ok := eventScope(c)
	if !ok {
		return
	}

	participant, err := h.eventService.JoinEvent(c.Request.Context(), callerID, eventID)
	if err != nil {
		RespondError(c, h.logger, err)
		return
	}
	RespondCreated(c, participant)
}

// Authorization reports what the caller may spend and approve
func (h *EventHandler) Authorization(c *gin.Context) {
	callerID, eventID, ok := eventScope(c)
	if !ok {
		return
	}

	auth, err := h.eventService.MyAuthorization(c.Request.Context(), callerID, eventID)
	if err != nil {
		RespondError(c, h.logger, err)
		return
	}
	RespondOK(c, auth)
}

func (h *EventHandler) CreateCategory(c *gin.Context) {
	callerID, eventID, ok := eventScope(c)
	if !ok {
		return
	}

	var req CategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}
	payers, err := parseUUIDs(req.AuthorizedPayers)
	if err != nil {
		RespondBadRequest(c, err.Error())
		return
	}
	approvers, err := parseUUIDs(req.ApproverIDs)
	if err != nil {
		RespondBadRequest(c, err.Error())
		return
	}

	category, err := h.eventService.CreateCategory(c.Request.Context(), callerID, eventID, service.CategoryInput{
		Name:              req.Name,
		Description:       req.Description,
		BudgetLimit:       req.BudgetLimit,
		ApprovalThreshold: req.ApprovalThreshold,
		AuthorizedPayers:  payers,
		ApproverIDs:       approvers,
	})
	if err != nil {
		RespondError(c, h.logger, err)
		return
	}
	RespondCreated(c, category)
}

func (h *EventHandler) ListCategories(c *gin.Context) {
	callerID, eventID, ok := eventScope(c)
	if !ok {
		return
	}

	views, err := h.eventService.ListCategories(c.Request.Context(), callerID, eventID)
	if err != nil {
		RespondError(c, h.logger, err)
		return
	}
	RespondOK(c, views)
}

func (h *EventHandler) JoinCategory(c *gin.Context) {
	callerID, eventID, ok := eventScope(c)
	if !ok {
		return
	}
	categoryID, ok := pathUUID(c, "categoryId", "category")
	if !ok {
		return
	}

	membership, err := h.eventService.JoinCategory(c.Request.Context(), callerID, eventID, categoryID)
	if err != nil {
		RespondError(c, h.logger, err)
		return
	}
	RespondCreated(c, membership)
}

func (h *EventHandler) LeaveCategory(c *gin.Context) {
	callerID, eventID, ok := eventScope(c)
	if !ok {
		return
	}
	categoryID, ok := pathUUID(c, "categoryId", "category")
	if !ok {
		return
	}

	if err := h.eventService.LeaveCategory(c.Request.Context(), callerID, eventID, categoryID); err != nil {
		RespondError(c, h.logger, err)
		return
	}
	RespondNoContent(c)
}

func (h *EventHandler) CloseCategory(c *gin.Context) {
	callerID, eventID, ok := eventScope(c)
	if !ok {
		return
	}
	categoryID, ok := pathUUID(c, "categoryId", "category")
	if !ok {
		return
	}

	if err := h.eventService.CloseCategory(c.Request.Context(), callerID, eventID, categoryID); err != nil {
		RespondError(c, h.logger, err)
		return
	}
	RespondNoContent(c)
}

func (h *EventHandler) UpdateCategoryLimits(c *gin.Context) {
	callerID, eventID, ok := eventScope(c)
	if !ok {
		return
	}
	categoryID, ok := pathUUID(c, "categoryId", "category")
	if !ok {
		return
	}

	var req CategoryLimitsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}
	payers, err := parseUUIDs(req.AuthorizedPayers)
	if err != nil {
		RespondBadRequest(c, err.Error())
		return
	}
	approvers, err := parseUUIDs(req.ApproverIDs)
	if err != nil {
		RespondBadRequest(c, err.Error())
		return
	}

	category, err := h.eventService.UpdateCategoryLimits(c.Request.Context(), callerID, eventID, categoryID, service.LimitsInput{
		BudgetLimit:       req.BudgetLimit,
		ApprovalThreshold: req.ApprovalThreshold,
		AuthorizedPayers:  payers,
		ApproverIDs:       approvers,
	})
	if err != nil {
		RespondError(c, h.logger, err)
		return
	}
	RespondOK(c, category)
}
