package shared

import (
	"errors"
	"fmt"
)

// Sentinel causes wrapped by the typed errors below. Callers match either the
// class (errors.As / errors.Is on the zero value) or the exact cause.
var (
	ErrInvalidAmount       = errors.New("amount must be greater than zero")
	ErrWalletClosed        = errors.New("wallet is closed")
	ErrEventNotActive      = errors.New("event is not active")
	ErrCategoryNotActive   = errors.New("category is not active")
	ErrInsufficientBalance = errors.New("insufficient balance in shared wallet")
	ErrBudgetExceeded      = errors.New("expense would exceed category budget")
	ErrRefundsExceedFunds  = errors.New("total refunds exceed wallet balance")
	ErrNotParticipant      = errors.New("not a participant in this event")
	ErrCreatorOnly         = errors.New("only the event creator can perform this action")
	ErrAlreadyParticipant  = errors.New("already a participant")
	ErrRefundCompleted     = errors.New("refund already completed")
	ErrOutstandingRefunds  = errors.New("cannot complete settlement with outstanding refunds")
	ErrGatewayNotSupported = errors.New("operation not supported by payment gateway")
)

// ValidationError reports a malformed request: bad amount, missing field, bad shape.
type ValidationError struct {
	Field string
	Err   error
}

func (e ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + causeText(e.Err)
	}
	return fmt.Sprintf("validation failed on %s: %s", e.Field, causeText(e.Err))
}

func (e ValidationError) Unwrap() error { return e.Err }

// Is matches any ValidationError when the target carries no cause
func (e ValidationError) Is(target error) bool {
	t, ok := target.(ValidationError)
	if !ok {
		return false
	}
	return t.Err == nil || errors.Is(e.Err, t.Err)
}

// NotFoundError reports a missing entity, or one the caller may not see.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e NotFoundError) Error() string {
	if e.ID == "" {
		return e.Resource + " not found"
	}
	return e.Resource + " not found: " + e.ID
}

// Is matches on resource and ID; empty fields on the target act as wildcards.
func (e NotFoundError) Is(target error) bool {
	t, ok := target.(NotFoundError)
	if !ok {
		return false
	}
	if t.Resource != "" && t.Resource != e.Resource {
		return false
	}
	return t.ID == "" || t.ID == e.ID
}

// StateConflictError reports a transition requested from the wrong lifecycle state.
type StateConflictError struct {
	Reason string
	Err    error
}

func (e StateConflictError) Error() string {
	if e.Reason != "" {
		return e.Reason
	}
	return causeText(e.Err)
}

func (e StateConflictError) Unwrap() error { return e.Err }

func (e StateConflictError) Is(target error) bool {
	t, ok := target.(StateConflictError)
	if !ok {
		return false
	}
	return t.Err == nil || errors.Is(e.Err, t.Err)
}

// AuthorizationError reports a rule engine rejection or a role/permission failure.
type AuthorizationError struct {
	Reason string
	Err    error
}

func (e AuthorizationError) Error() string {
	if e.Reason != "" {
		return e.Reason
	}
	return causeText(e.Err)
}

func (e AuthorizationError) Unwrap() error { return e.Err }

func (e AuthorizationError) Is(target error) bool {
	t, ok := target.(AuthorizationError)
	if !ok {
		return false
	}
	return t.Err == nil || errors.Is(e.Err, t.Err)
}

// InsufficientFundsError reports a balance or budget that cannot cover a request.
type InsufficientFundsError struct {
	Reason    string
	Err       error
	Available int64
	Requested int64
}

func (e InsufficientFundsError) Error() string {
	if e.Reason != "" {
		return e.Reason
	}
	return fmt.Sprintf("%s (available: %d, requested: %d)", causeText(e.Err), e.Available, e.Requested)
}

func (e InsufficientFundsError) Unwrap() error { return e.Err }

func (e InsufficientFundsError) Is(target error) bool {
	t, ok := target.(InsufficientFundsError)
	if !ok {
		return false
	}
	return t.Err == nil || errors.Is(e.Err, t.Err)
}

// ExternalServiceError reports a failure of a collaborator such as the payment gateway.
type ExternalServiceError struct {
	Service string
	Err     error
}

func (e ExternalServiceError) Error() string {
	return fmt.Sprintf("%s failed: %s", e.Service, causeText(e.Err))
}

func (e ExternalServiceError) Unwrap() error { return e.Err }

func (e ExternalServiceError) Is(target error) bool {
	t, ok := target.(ExternalServiceError)
	if !ok {
		return false
	}
	return t.Service == "" || t.Service == e.Service
}

func causeText(err error) string {
	if err == nil {
		return "unknown error"
	}
	return err.Error()
}
