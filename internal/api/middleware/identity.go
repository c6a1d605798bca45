package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	// UserIDHeader carries the authenticated caller, set by the upstream proxy
	UserIDHeader = "X-User-ID"

	callerIDKey = "caller_id"
)

// CallerIdentity rejects requests without a valid caller ID
func CallerIdentity() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.GetHeader(UserIDHeader)
		if raw == "" {
			abortUnauthorized(c, "Missing "+UserIDHeader+" header")
			return
		}

		id, err := uuid.Parse(raw)
		if err != nil || id == uuid.Nil {
			abortUnauthorized(c, "Invalid "+UserIDHeader+" header")
			return
		}

		c.Set(callerIDKey, id)
		c.Next()
	}
}

// CallerID returns the caller set by CallerIdentity
func CallerID(c *gin.Context) (uuid.UUID, bool) {
	v, ok := c.Get(callerIDKey)
	if !ok {
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok
}

func abortUnauthorized(c *gin.Context, message string) {
	abortWithError(c, http.StatusUnauthorized, "UNAUTHORIZED", message)
}
