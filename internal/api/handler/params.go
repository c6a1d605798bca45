package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/shared-event-wallet/internal/api/middleware"
)

// caller returns the authenticated caller or writes a 401
func caller(c *gin.Context) (uuid.UUID, bool) {
	id, ok := middleware.CallerID(c)
	if !ok {
		RespondUnauthorized(c, "")
	}
	return id, ok
}

// pathUUID parses a path parameter or writes a 400
func pathUUID(c *gin.Context, name, label string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		RespondBadRequest(c, "Invalid "+label+" ID")
		return uuid.Nil, false
	}
	return id, true
}

// eventScope resolves the caller and the :id event path parameter
func eventScope(c *gin.Context) (callerID, eventID uuid.UUID, ok bool) {
	if callerID, ok = caller(c); !ok {
		return
	}
	eventID, ok = pathUUID(c, "id", "event")
	return
}
