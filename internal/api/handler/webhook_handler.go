package handler

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/shared-event-wallet/internal/api/middleware"
	"github.com/shared-event-wallet/internal/domain/shared"
	"github.com/shared-event-wallet/internal/platform/messaging/producers"
)

const (
	// SignatureHeader carries the hex HMAC-SHA256 of the raw webhook body
	SignatureHeader = "X-Gateway-Signature"

	maxWebhookSize = 1 << 20
)

// gatewayWebhook is the callback body the payment gateway posts
type gatewayWebhook struct {
	Type         string `json:"type"`
	IntentID     string `json:"intent_id"`
	EventID      string `json:"event_id"`
	Amount       int64  `json:"amount"`
	GatewayTxRef string `json:"gateway_tx_ref"`
}

// WebhookHandler receives payment gateway callbacks and forwards them to Kafka
type WebhookHandler struct {
	publisher producers.GatewayEventPublisher
	secret    []byte
	logger    *slog.Logger
}

func NewWebhookHandler(logger *slog.Logger, publisher producers.GatewayEventPublisher, secret string) *WebhookHandler {
	if secret == "" {
		logger.Warn("Gateway webhook signatures are not verified")
	}
	return &WebhookHandler{
		publisher: publisher,
		secret:    []byte(secret),
		logger:    logger,
	}
}

// PaymentGateway verifies and enqueues a callback. Deposits are confirmed by
// the worker, so the reply is 202 once the event is on the topic.
func (h *WebhookHandler) PaymentGateway(c *gin.Context) {
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookSize))
	if err != nil {
		RespondBadRequest(c, "Unreadable webhook body")
		return
	}

	if !h.validSignature(body, c.GetHeader(SignatureHeader)) {
		h.logger.Warn("Rejected webhook with bad signature", "correlation_id", middleware.GetCorrelationID(c))
		RespondUnauthorized(c, "Invalid webhook signature")
		return
	}

	var payload gatewayWebhook
	if err := json.Unmarshal(body, &payload); err != nil {
		RespondBadRequest(c, "Invalid webhook body: "+err.Error())
		return
	}

	eventType := shared.GatewayEventType(payload.Type)
	if !eventType.ConfirmsDeposit() {
		h.logger.Info("Ignoring gateway webhook", "type", payload.Type)
		RespondOK(c, gin.H{"received": true, "ignored": true})
		return
	}

	ev := shared.GatewayEvent{
		Type:          eventType,
		IntentID:      payload.IntentID,
		Amount:        payload.Amount,
		GatewayTxRef:  payload.GatewayTxRef,
		CorrelationID: middleware.GetCorrelationID(c),
		ReceivedAt:    time.Now().UTC(),
	}
	if payload.EventID != "" {
		if ev.EventID, err = uuid.Parse(payload.EventID); err != nil {
			RespondBadRequest(c, "Invalid event ID")
			return
		}
	}
	if ev.IntentID == "" && (ev.EventID == uuid.Nil || ev.Amount <= 0) {
		RespondBadRequest(c, "Webhook needs an intent_id, or an event_id with an amount")
		return
	}

	key := ev.EventID.String()
	if ev.EventID == uuid.Nil {
		key = ev.IntentID
	}
	if err := h.publisher.Publish(c.Request.Context(), key, ev); err != nil {
		h.logger.Error("Failed to enqueue gateway webhook", "intent_id", ev.IntentID, "error", err,
			"correlation_id", ev.CorrelationID)
		RespondWithError(c, http.StatusServiceUnavailable, "UNAVAILABLE", "Webhook could not be queued")
		return
	}

	RespondAccepted(c, gin.H{"received": true})
}

// validSignature accepts everything when no secret is configured, which
// config validation only allows in development
func (h *WebhookHandler) validSignature(body []byte, signature string) bool {
	if len(h.secret) == 0 {
		return true
	}
	got, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, h.secret)
	mac.Write(body)
	return hmac.Equal(got, mac.Sum(nil))
}
