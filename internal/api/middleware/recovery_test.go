package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecoveryMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	t.Run("RecoversFromPanic", func(t *testing.T) {
		var logBuffer bytes.Buffer
		testLogger := slog.New(slog.NewJSONHandler(&logBuffer, nil))

		router := gin.New()
		router.Use(CorrelationID())
		router.Use(Recovery(testLogger))
		router.GET("/boom", func(c *gin.Context) {
			panic("wallet exploded")
		})

		req := httptest.NewRequest(http.MethodGet, "/boom", nil)
		req.Header.Set(CorrelationIDHeader, "corr-panic")
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusInternalServerError, rr.Code)

		var body map[string]interface{}
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
		errorField, ok := body["error"].(map[string]interface{})
		require.True(t, ok)
		assert.Equal(t, "INTERNAL_SERVER_ERROR", errorField["code"])
		assert.Equal(t, "corr-panic", body["correlation_id"])

		logOutput := logBuffer.String()
		assert.Contains(t, logOutput, `"msg":"Panic recovered"`)
		assert.Contains(t, logOutput, `"error":"wallet exploded"`)
		assert.Contains(t, logOutput, `"path":"/boom"`)
		assert.Contains(t, logOutput, `"stack":`)
	})

	t.Run("LogsCallerAndCorrelation", func(t *testing.T) {
		var logBuffer bytes.Buffer
		router := gin.New()
		router.Use(CorrelationID())
		router.Use(Recovery(slog.New(slog.NewJSONHandler(&logBuffer, nil))))
		router.Use(CallerIdentity())
		router.POST("/events", func(c *gin.Context) {
			panic("nil aggregate")
		})

		callerID := uuid.New()
		req := httptest.NewRequest(http.MethodPost, "/events", nil)
		req.Header.Set(CorrelationIDHeader, "corr-caller")
		req.Header.Set(UserIDHeader, callerID.String())
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusInternalServerError, rr.Code)
		logOutput := logBuffer.String()
		assert.Contains(t, logOutput, `"user_id":"`+callerID.String()+`"`)
		assert.Contains(t, logOutput, `"correlation_id":"corr-caller"`)
	})

	t.Run("KeepsStartedResponse", func(t *testing.T) {
		router := gin.New()
		router.Use(Recovery(slog.New(slog.NewJSONHandler(&bytes.Buffer{}, nil))))
		router.GET("/partial", func(c *gin.Context) {
			c.String(http.StatusAccepted, "queued")
			panic("late failure")
		})

		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/partial", nil))

		assert.Equal(t, http.StatusAccepted, rr.Code)
		assert.Equal(t, "queued", rr.Body.String())
	})

	t.Run("NoPanicNoEffect", func(t *testing.T) {
		var logBuffer bytes.Buffer
		router := gin.New()
		router.Use(Recovery(slog.New(slog.NewJSONHandler(&logBuffer, nil))))
		router.GET("/ok", func(c *gin.Context) {
			c.String(http.StatusOK, "OK")
		})

		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/ok", nil))

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Empty(t, logBuffer.String())
	})
}
