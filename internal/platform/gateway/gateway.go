// Package gateway adapts the external payment provider that moves real money
// in and out of event wallets.
package gateway

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/shared-event-wallet/internal/domain/shared"
)

const serviceName = "payment gateway"

// PaymentGateway is the provider contract the wallet services depend on
type PaymentGateway interface {
	CreateWallet(ctx context.Context, eventID uuid.UUID) (string, error)

	// CreateDepositIntent starts an asynchronous deposit confirmed later by webhook
	CreateDepositIntent(ctx context.Context, req DepositRequest) (*DepositIntent, error)

	// ChargeDeposit is the synchronous deposit path; it returns the provider transaction ref
	ChargeDeposit(ctx context.Context, req DepositRequest) (string, error)
	Payout(ctx context.Context, req PayoutRequest) (string, error)
}

type DepositRequest struct {
	EventID    uuid.UUID
	Amount     int64 // Minor units
	Currency   string
	PayerRef   string
	WalletRef  string
	SuccessURL string
	CancelURL  string
}

type DepositIntent struct {
	IntentRef string `json:"intent_ref"`
	PayURL    string `json:"pay_url"`
}

type PayoutRequest struct {
	EventID        uuid.UUID
	Amount         int64 // Minor units
	Currency       string
	PayeeRef       string
	WalletRef      string
	IdempotencyKey string
}

// FormatAmount renders minor units as a major-unit decimal string, e.g. 1050 -> "10.50"
func FormatAmount(minor int64) string {
	return decimal.NewFromInt(minor).Shift(-2).StringFixed(2)
}

// asExternal classifies provider failures for callers
func asExternal(err error) error {
	if err == nil {
		return nil
	}
	var ext shared.ExternalServiceError
	if errors.As(err, &ext) {
		return err
	}
	return shared.ExternalServiceError{Service: serviceName, Err: err}
}
