package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Error codes returned by the backend in the "code" field.
const (
	CodeQuotaExceeded    = "QUOTA_EXCEEDED"
	CodeHoldExpired      = "HOLD_EXPIRED"
	CodeStockUnavailable = "STOCK_UNAVAILABLE"
	CodePaymentDeclined  = "PAYMENT_DECLINED"
)

var (
	ErrQuotaExceeded    = errors.New("ticket quota exceeded")
	ErrHoldExpired      = errors.New("hold expired")
	ErrStockUnavailable = errors.New("stock unavailable")
	ErrPaymentDeclined  = errors.New("payment declined")
	ErrNotFound         = errors.New("not found")
)

// APIError is an application-level failure reported by the backend.
type APIError struct {
	Op      string
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: %d %s: %s", e.Op, e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %d: %s", e.Op, e.Status, e.Message)
}

// Is matches the backend code against the package sentinels.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrQuotaExceeded:
		return e.Code == CodeQuotaExceeded
	case ErrHoldExpired:
		return e.Code == CodeHoldExpired
	case ErrStockUnavailable:
		return e.Code == CodeStockUnavailable
	case ErrPaymentDeclined:
		return e.Code == CodePaymentDeclined
	case ErrNotFound:
		return e.Status == http.StatusNotFound
	}
	return false
}

// TransientNetworkError wraps an aborted or timed-out request. Nothing
// was applied on the client side when one is returned.
type TransientNetworkError struct {
	Op  string
	Err error
}

func (e *TransientNetworkError) Error() string {
	return fmt.Sprintf("%s: network: %v", e.Op, e.Err)
}

func (e *TransientNetworkError) Unwrap() error { return e.Err }

// Canceled reports whether the request was abandoned on purpose, for
// example because the session was torn down or superseded.
func (e *TransientNetworkError) Canceled() bool {
	return errors.Is(e.Err, context.Canceled)
}

// IsTransient reports whether err is a TransientNetworkError.
func IsTransient(err error) bool {
	var netErr *TransientNetworkError
	return errors.As(err, &netErr)
}

// IsCanceled reports whether err is an intentional cancellation that
// callers should drop without logging.
func IsCanceled(err error) bool {
	var netErr *TransientNetworkError
	return errors.As(err, &netErr) && netErr.Canceled()
}
