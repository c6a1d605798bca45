package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/shared-event-wallet/internal/api/middleware"
	"github.com/shared-event-wallet/internal/domain/shared"
)

// Response represents a standard API response
type Response struct {
	Data          interface{} `json:"data,omitempty"`
	Error         *ErrorInfo  `json:"error,omitempty"`
	CorrelationID string      `json:"correlation_id,omitempty"`
	Meta          *MetaInfo   `json:"meta,omitempty"`
}

// ErrorInfo represents error information in a response
type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// MetaInfo represents metadata in a response
type MetaInfo struct {
	Page       int `json:"page,omitempty"`
	PerPage    int `json:"per_page,omitempty"`
	TotalPages int `json:"total_pages,omitempty"`
	TotalItems int `json:"total_items,omitempty"`
}

// NewPaginatedResponse creates a new paginated response
func NewPaginatedResponse(data interface{}, page, perPage, totalItems int) *Response {
	totalPages := 0
	if perPage > 0 {
		totalPages = totalItems / perPage
		if totalItems%perPage > 0 {
			totalPages++
		}
	}

	return &Response{
		Data: data,
		Meta: &MetaInfo{
			Page:       page,
			PerPage:    perPage,
			TotalPages: totalPages,
			TotalItems: totalItems,
		},
	}
}

// RespondWithData sends a JSON response with data
func RespondWithData(c *gin.Context, statusCode int, data interface{}) {
	c.JSON(statusCode, &Response{
		Data:          data,
		CorrelationID: middleware.GetCorrelationID(c),
	})
}

// RespondWithError sends a JSON response with an error
func RespondWithError(c *gin.Context, statusCode int, code, message string) {
	c.JSON(statusCode, &Response{
		Error:         &ErrorInfo{Code: code, Message: message},
		CorrelationID: middleware.GetCorrelationID(c),
	})
}

// RespondWithPaginatedData sends a JSON response with paginated data
func RespondWithPaginatedData(c *gin.Context, statusCode int, data interface{}, page, perPage, totalItems int) {
	response := NewPaginatedResponse(data, page, perPage, totalItems)
	response.CorrelationID = middleware.GetCorrelationID(c)
	c.JSON(statusCode, response)
}

func RespondOK(c *gin.Context, data interface{}) {
	RespondWithData(c, http.StatusOK, data)
}

func RespondCreated(c *gin.Context, data interface{}) {
	RespondWithData(c, http.StatusCreated, data)
}

func RespondAccepted(c *gin.Context, data interface{}) {
	RespondWithData(c, http.StatusAccepted, data)
}

func RespondNoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

func RespondBadRequest(c *gin.Context, message string) {
	RespondWithError(c, http.StatusBadRequest, "BAD_REQUEST", message)
}

func RespondUnauthorized(c *gin.Context, message string) {
	if message == "" {
		message = "Unauthorized"
	}
	RespondWithError(c, http.StatusUnauthorized, "UNAUTHORIZED", message)
}

func RespondInternalError(c *gin.Context) {
	RespondWithError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "An internal server error occurred")
}

// RespondError maps a domain error to its HTTP status and error code.
// Unclassified errors are logged and reported as 500 without detail.
func RespondError(c *gin.Context, logger *slog.Logger, err error) {
	var (
		validation   shared.ValidationError
		authz        shared.AuthorizationError
		notFound     shared.NotFoundError
		conflict     shared.StateConflictError
		insufficient shared.InsufficientFundsError
		external     shared.ExternalServiceError
	)

	switch {
	case errors.As(err, &validation):
		RespondWithError(c, http.StatusBadRequest, "VALIDATION_ERROR", validation.Error())
	case errors.As(err, &authz):
		RespondWithError(c, http.StatusForbidden, "FORBIDDEN", authz.Error())
	case errors.As(err, &notFound):
		RespondWithError(c, http.StatusNotFound, "NOT_FOUND", notFound.Error())
	case errors.As(err, &conflict):
		RespondWithError(c, http.StatusConflict, "CONFLICT", conflict.Error())
	case errors.As(err, &insufficient):
		RespondWithError(c, http.StatusUnprocessableEntity, "INSUFFICIENT_FUNDS", insufficient.Error())
	case errors.As(err, &external):
		logger.Warn("External service failure", "service", external.Service, "error", err,
			"correlation_id", middleware.GetCorrelationID(c))
		RespondWithError(c, http.StatusBadGateway, "EXTERNAL_SERVICE_ERROR", external.Error())
	default:
		logger.Error("Unhandled error", "error", err, "path", c.FullPath(),
			"correlation_id", middleware.GetCorrelationID(c))
		RespondInternalError(c)
	}
}
