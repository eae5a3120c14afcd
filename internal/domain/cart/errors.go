package cart

import (
	"errors"
	"fmt"
)

// Validation codes surfaced to the caller.
const (
	CodeMaxTicketsPerEvent = "MAX_TICKETS_PER_EVENT"
	CodeQuotaExceeded      = "QUOTA_EXCEEDED"
)

var (
	ErrInvalidQuantity = errors.New("quantity must be positive")
	ErrInvalidEvent    = errors.New("event_id is required")
	ErrInvalidZone     = errors.New("zone_id is required")
	ErrInvalidPoints   = errors.New("points must not be negative")
	ErrItemNotFound    = errors.New("cart item not found")
)

// ValidationError is a business-rule violation. It is recovered locally
// and shown to the user; it is never retried.
type ValidationError struct {
	Code      string
	Message   string
	Remaining int
}

func (e *ValidationError) Error() string {
	return e.Message
}

// MaxTicketsPerEventError rejects a mutation that would exceed the
// per-event purchase limit. It is raised before any network call.
type MaxTicketsPerEventError struct {
	EventID   string
	Limit     int
	Held      int
	Requested int
}

// Remaining is how many more tickets for the event can still be added.
func (e *MaxTicketsPerEventError) Remaining() int {
	return max(0, e.Limit-e.Held)
}

func (e *MaxTicketsPerEventError) Error() string {
	return fmt.Sprintf("at most %d tickets per event; %d more can be added", e.Limit, e.Remaining())
}

func (e *MaxTicketsPerEventError) Unwrap() error {
	return &ValidationError{
		Code:      CodeMaxTicketsPerEvent,
		Message:   e.Error(),
		Remaining: e.Remaining(),
	}
}

// ErrorCode returns the validation code carried by err, or "".
func ErrorCode(err error) string {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return verr.Code
	}
	return ""
}
