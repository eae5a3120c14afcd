package session

import (
	"context"
	"errors"
	"testing"

	"github.com/example/ticket-storefront/internal/domain/cart"
	"github.com/example/ticket-storefront/internal/domain/hold"
	"github.com/example/ticket-storefront/internal/gateway"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSession_Checkout_Success(t *testing.T) {
	env := newTestEnv(t)
	env.start(t)
	env.add(t, "vip", 2)
	require.NoError(t, env.session.ApplyPoints(10))
	env.gateway.CheckoutResult = &gateway.CheckoutResult{OrderID: "order-9", Status: "paid", Total: decimal.NewFromInt(199)}

	result, err := env.session.Checkout(context.Background(), Payment{CardToken: "card-tok", PaymentMethod: "card"})

	require.NoError(t, err)
	assert.Equal(t, "order-9", result.OrderID)

	require.Len(t, env.gateway.CheckoutCalls, 1)
	call := env.gateway.CheckoutCalls[0]
	assert.NotEmpty(t, call.IdempotencyKey)
	assert.Equal(t, gateway.CheckoutRequest{CardToken: "card-tok", PointsUsed: 10, PaymentMethod: "card"}, call.Request)
	assert.Equal(t, 1, env.gateway.PlaceHoldCount(), "the debounced hold is placed before paying")

	snap, _ := env.session.Snapshot()
	assert.Empty(t, snap.Items)
	assert.Zero(t, snap.AppliedPoints)
	assert.Equal(t, hold.NoHold, env.session.HoldState())
	_, ok := env.markers.Value(markerKey)
	assert.False(t, ok)
	assert.Zero(t, env.clock.PendingCount())

	completed := env.publisher.Events(cart.EventCheckoutCompleted)
	require.Len(t, completed, 1)
	assert.Contains(t, string(completed[0].Data), `"order_id":"order-9"`)
}

func TestSession_Checkout_FreshKeyPerAttempt(t *testing.T) {
	env := newTestEnv(t)
	env.start(t)
	env.add(t, "vip", 1)
	env.gateway.CheckoutErr = &gateway.APIError{Op: "checkout", Status: 402, Code: gateway.CodePaymentDeclined, Message: "declined"}
	ctx := context.Background()

	_, err := env.session.Checkout(ctx, Payment{WalletRef: "wallet-1"})
	require.Error(t, err)
	env.gateway.CheckoutErr = nil
	_, err = env.session.Checkout(ctx, Payment{WalletRef: "wallet-1"})
	require.NoError(t, err)

	require.Len(t, env.gateway.CheckoutCalls, 2)
	assert.NotEqual(t, env.gateway.CheckoutCalls[0].IdempotencyKey, env.gateway.CheckoutCalls[1].IdempotencyKey)
}

func TestSession_Checkout_Failures(t *testing.T) {
	tests := []struct {
		name         string
		err          error
		wantCategory CheckoutCategory
		wantCleared  bool
	}{
		{
			name:         "hold expired",
			err:          &gateway.APIError{Op: "checkout", Status: 409, Code: gateway.CodeHoldExpired, Message: "hold expired"},
			wantCategory: CheckoutHoldExpired,
			wantCleared:  true,
		},
		{
			name:         "stock unavailable",
			err:          &gateway.APIError{Op: "checkout", Status: 409, Code: gateway.CodeStockUnavailable, Message: "sold out"},
			wantCategory: CheckoutStockUnavailable,
		},
		{
			name:         "payment declined",
			err:          &gateway.APIError{Op: "checkout", Status: 402, Code: gateway.CodePaymentDeclined, Message: "declined"},
			wantCategory: CheckoutPaymentDeclined,
		},
		{
			name:         "network",
			err:          &gateway.TransientNetworkError{Op: "checkout", Err: errors.New("timeout")},
			wantCategory: CheckoutUnknown,
		},
	}

	messages := make(map[string]bool)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			env.start(t)
			env.add(t, "vip", 1)
			require.NoError(t, env.session.Settle(context.Background()))
			env.gateway.CheckoutErr = tt.err

			_, err := env.session.Checkout(context.Background(), Payment{CardToken: "card-tok"})

			var checkoutErr *CheckoutError
			require.True(t, errors.As(err, &checkoutErr))
			assert.Equal(t, tt.wantCategory, checkoutErr.Category)
			assert.ErrorIs(t, err, tt.err)
			assert.False(t, messages[checkoutErr.Message], "each category has its own message")
			messages[checkoutErr.Message] = true

			snap, _ := env.session.Snapshot()
			if tt.wantCleared {
				assert.Empty(t, snap.Items)
				assert.Equal(t, 1, env.gateway.ClearCalls)
				assert.Equal(t, hold.NoHold, env.session.HoldState())
			} else {
				assert.Len(t, snap.Items, 1)
				assert.Zero(t, env.gateway.ClearCalls)
				assert.Equal(t, hold.Active, env.session.HoldState())
			}
		})
	}
}

func TestSession_Checkout_Validation(t *testing.T) {
	env := newTestEnv(t)
	env.start(t)
	ctx := context.Background()

	_, err := env.session.Checkout(ctx, Payment{CardToken: "card-tok"})
	assert.ErrorIs(t, err, ErrEmptyCart)

	env.add(t, "vip", 1)
	_, err = env.session.Checkout(ctx, Payment{CardToken: "card-tok", WalletRef: "wallet-1"})
	assert.ErrorIs(t, err, ErrPaymentSource)
	_, err = env.session.Checkout(ctx, Payment{})
	assert.ErrorIs(t, err, ErrPaymentSource)

	assert.Empty(t, env.gateway.CheckoutCalls)
}
