package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/shared-event-wallet/internal/config"
)

// APIError is a non-2xx provider response
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("gateway responded with status %d", e.StatusCode)
	}
	return fmt.Sprintf("gateway responded with status %d: %s", e.StatusCode, e.Message)
}

// HTTPGateway talks to the provider's REST API with a bearer key
type HTTPGateway struct {
	baseURL string
	apiKey  string
	client  *http.Client
	logger  *slog.Logger
}

func NewHTTPGateway(logger *slog.Logger, cfg config.GatewayConfig) *HTTPGateway {
	return &HTTPGateway{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		client:  &http.Client{Timeout: cfg.Timeout},
		logger:  logger,
	}
}

type idResponse struct {
	ID          string `json:"id"`
	IntentID    string `json:"intentId"`
	PaymentURL  string `json:"paymentUrl"`
	URL         string `json:"url"`
	RedirectURL string `json:"redirectUrl"`
	Message     string `json:"message"`
}

func (g *HTTPGateway) CreateWallet(ctx context.Context, eventID uuid.UUID) (string, error) {
	body := map[string]any{
		"referenceId": eventID.String(),
		"metadata":    map[string]string{"type": "event_shared_wallet", "eventId": eventID.String()},
	}
	var resp idResponse
	if err := g.do(ctx, http.MethodPost, "/wallets", "", body, &resp); err != nil {
		return "", err
	}
	if resp.ID == "" {
		return "", fmt.Errorf("gateway returned no wallet id")
	}
	return resp.ID, nil
}

func (g *HTTPGateway) CreateDepositIntent(ctx context.Context, req DepositRequest) (*DepositIntent, error) {
	body := map[string]any{
		"amount":     FormatAmount(req.Amount),
		"currency":   req.Currency,
		"walletId":   req.WalletRef,
		"customerId": req.PayerRef,
		"successUrl": req.SuccessURL,
		"cancelUrl":  req.CancelURL,
		"metadata":   map[string]string{"eventId": req.EventID.String(), "type": "deposit"},
	}
	var resp idResponse
	if err := g.do(ctx, http.MethodPost, "/payment-intents", "", body, &resp); err != nil {
		return nil, err
	}

	intent := &DepositIntent{IntentRef: firstNonEmpty(resp.ID, resp.IntentID)}
	intent.PayURL = firstNonEmpty(resp.PaymentURL, resp.URL, resp.RedirectURL)
	if intent.IntentRef == "" || intent.PayURL == "" {
		return nil, fmt.Errorf("gateway returned an incomplete payment intent")
	}
	return intent, nil
}

func (g *HTTPGateway) ChargeDeposit(ctx context.Context, req DepositRequest) (string, error) {
	body := map[string]any{
		"type":       "deposit",
		"amount":     FormatAmount(req.Amount),
		"currency":   req.Currency,
		"walletId":   req.WalletRef,
		"customerId": req.PayerRef,
		"metadata":   map[string]string{"eventId": req.EventID.String()},
	}
	var resp idResponse
	if err := g.do(ctx, http.MethodPost, "/transactions", "", body, &resp); err != nil {
		return "", err
	}
	if resp.ID == "" {
		return "", fmt.Errorf("gateway returned no transaction id")
	}
	return resp.ID, nil
}

func (g *HTTPGateway) Payout(ctx context.Context, req PayoutRequest) (string, error) {
	body := map[string]any{
		"amount":     FormatAmount(req.Amount),
		"currency":   req.Currency,
		"walletId":   req.WalletRef,
		"customerId": req.PayeeRef,
		"metadata":   map[string]string{"eventId": req.EventID.String(), "type": "settlement_refund"},
	}
	var resp idResponse
	if err := g.do(ctx, http.MethodPost, "/refunds", req.IdempotencyKey, body, &resp); err != nil {
		return "", err
	}
	if resp.ID == "" {
		return "", fmt.Errorf("gateway returned no refund id")
	}
	return resp.ID, nil
}

func (g *HTTPGateway) do(ctx context.Context, method, path, idempotencyKey string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode gateway request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build gateway request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+g.apiKey)
	req.Header.Set("Content-Type", "application/json")
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		g.logger.Error("Gateway request failed", "path", path, "error", err)
		return fmt.Errorf("gateway request %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("failed to read gateway response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var decoded idResponse
		if json.Unmarshal(raw, &decoded) == nil {
			apiErr.Message = decoded.Message
		}
		g.logger.Error("Gateway rejected request", "path", path, "status", resp.StatusCode, "message", apiErr.Message)
		return apiErr
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to decode gateway response: %w", err)
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
