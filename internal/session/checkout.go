package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/example/ticket-storefront/internal/domain/cart"
	"github.com/example/ticket-storefront/internal/gateway"
	"github.com/sirupsen/logrus"
)

var (
	ErrEmptyCart     = errors.New("cart is empty")
	ErrPaymentSource = errors.New("exactly one of card token or wallet reference is required")
)

// CheckoutCategory classifies a failed checkout for the user.
type CheckoutCategory string

const (
	CheckoutHoldExpired      CheckoutCategory = "hold_expired"
	CheckoutStockUnavailable CheckoutCategory = "stock_unavailable"
	CheckoutPaymentDeclined  CheckoutCategory = "payment_declined"
	CheckoutUnknown          CheckoutCategory = "unknown"
)

// CheckoutError is fatal to one checkout attempt. Message is meant for
// the user.
type CheckoutError struct {
	Category CheckoutCategory
	Message  string
	Err      error
}

func (e *CheckoutError) Error() string {
	return fmt.Sprintf("checkout failed (%s): %v", e.Category, e.Err)
}

func (e *CheckoutError) Unwrap() error { return e.Err }

func newCheckoutError(err error) *CheckoutError {
	switch {
	case errors.Is(err, gateway.ErrHoldExpired):
		return &CheckoutError{
			Category: CheckoutHoldExpired,
			Message:  "Your reservation expired and the seats were released. Please add the tickets again.",
			Err:      err,
		}
	case errors.Is(err, gateway.ErrStockUnavailable):
		return &CheckoutError{
			Category: CheckoutStockUnavailable,
			Message:  "Some of the tickets in your cart are no longer available.",
			Err:      err,
		}
	case errors.Is(err, gateway.ErrPaymentDeclined):
		return &CheckoutError{
			Category: CheckoutPaymentDeclined,
			Message:  "Your payment was declined. Try another card or wallet.",
			Err:      err,
		}
	default:
		return &CheckoutError{
			Category: CheckoutUnknown,
			Message:  "We could not complete your purchase. Please try again.",
			Err:      err,
		}
	}
}

// Payment is how the user pays. Exactly one of CardToken and WalletRef
// must be set.
type Payment struct {
	CardToken     string
	WalletRef     string
	PaymentMethod string
}

func (p Payment) validate() error {
	if (p.CardToken == "") == (p.WalletRef == "") {
		return ErrPaymentSource
	}
	return nil
}

// Checkout pays for the cart. Each attempt carries a fresh idempotency
// key. The cart is cleared only on success, except when the backend
// reports the hold as expired: the seats are gone, so the expiry
// cleanup runs.
func (s *Session) Checkout(ctx context.Context, payment Payment) (*gateway.CheckoutResult, error) {
	cur, err := s.active()
	if err != nil {
		return nil, err
	}
	if err := payment.validate(); err != nil {
		return nil, err
	}
	if !cur.store.HasItems() {
		return nil, ErrEmptyCart
	}

	// Place any debounced hold first; the backend has the final say.
	if err := cur.holds.Settle(ctx); err != nil {
		cur.logger.WithError(err).Warn("checking out without a confirmed hold")
	}

	snap := cur.store.Snapshot()
	key := s.newKey()
	logger := cur.logger.WithFields(logrus.Fields{
		"cart_id":         snap.CartID,
		"idempotency_key": key,
	})

	result, err := s.deps.Gateway.Checkout(ctx, gateway.CheckoutRequest{
		CardToken:     payment.CardToken,
		WalletRef:     payment.WalletRef,
		PointsUsed:    snap.AppliedPoints,
		PaymentMethod: payment.PaymentMethod,
	}, key)
	if err != nil {
		checkoutErr := newCheckoutError(err)
		logger.WithError(err).WithField("category", string(checkoutErr.Category)).Warn("checkout failed")
		if checkoutErr.Category == CheckoutHoldExpired {
			cur.holds.HandleExpiry(ctx)
		}
		return nil, checkoutErr
	}

	cur.holds.Reset(ctx)
	cur.store.Reset(ctx)

	logger.WithFields(logrus.Fields{
		"order_id": result.OrderID,
		"status":   result.Status,
	}).Info("checkout completed")

	s.notify(ctx, cur, cart.EventCheckoutCompleted, cart.CheckoutCompleted{
		OrderID:    result.OrderID,
		Status:     result.Status,
		PointsUsed: snap.AppliedPoints,
	})
	s.notify(ctx, cur, cart.EventCartCleared, cart.CartCleared{Reason: cart.ClearReasonCheckout})
	return result, nil
}
