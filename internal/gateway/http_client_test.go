package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *HTTPClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return NewHTTPClient(server.URL+"/", "token-abc", 5*time.Second, logger)
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// ============================================
// Request Shape Tests
// ============================================

func TestHTTPClient_GetCart(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/cart", r.URL.Path)
		assert.Equal(t, "Bearer token-abc", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{
			"id": "cart-1",
			"items": [{"id": "item-1", "eventId": "evt-1", "zoneId": "vip", "quantity": 2, "unitPrice": "45.50"}],
			"holdExpiresAt": "2026-01-01T12:10:00Z",
			"appliedPoints": 120
		}`)
	})

	cart, err := client.GetCart(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "cart-1", cart.ID)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, "evt-1", cart.Items[0].EventID)
	assert.True(t, decimal.RequireFromString("45.50").Equal(cart.Items[0].UnitPrice))
	assert.Equal(t, "2026-01-01T12:10:00Z", cart.HoldExpiresAt)
	assert.Equal(t, 120, cart.AppliedPoints)
}

func TestHTTPClient_UpdateQuantity(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "/cart/items/item-7", r.URL.Path)

		var body map[string]int
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, 3, body["quantity"])

		respondJSON(w, http.StatusOK, CartItem{ID: "item-7", Quantity: 3})
	})

	item, err := client.UpdateQuantity(context.Background(), "item-7", 3)

	require.NoError(t, err)
	assert.Equal(t, 3, item.Quantity)
}

func TestHTTPClient_PlaceHold(t *testing.T) {
	expiresAt := time.Date(2026, 1, 1, 12, 10, 0, 0, time.UTC)
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/cart/hold", r.URL.Path)

		var body struct {
			UserID string     `json:"userId"`
			CartID string     `json:"cartId"`
			Items  []HoldItem `json:"items"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "user-1", body.UserID)
		assert.Equal(t, "cart-1", body.CartID)
		assert.Equal(t, []HoldItem{{EventID: "evt-1", ZoneID: "vip", Quantity: 2}}, body.Items)

		respondJSON(w, http.StatusCreated, HoldResponse{HoldID: "hold-1", ExpiresAt: expiresAt.Format(time.RFC3339)})
	})

	hold, err := client.PlaceHold(context.Background(), "user-1", "cart-1", []HoldItem{{EventID: "evt-1", ZoneID: "vip", Quantity: 2}})

	require.NoError(t, err)
	assert.Equal(t, "hold-1", hold.HoldID)
	assert.Equal(t, "2026-01-01T12:10:00Z", hold.ExpiresAt)
}

func TestHTTPClient_PlaceHold_WithoutExpiry(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"holdId": "hold-2"}`)
	})

	hold, err := client.PlaceHold(context.Background(), "user-1", "cart-1", nil)

	require.NoError(t, err)
	assert.Equal(t, "hold-2", hold.HoldID)
	assert.Empty(t, hold.ExpiresAt)
}

func TestHTTPClient_PlaceHold_MalformedExpiryStillSucceeds(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"holdId": "hold-3", "expiresAt": "2026-01-01 12:10:00"}`)
	})

	hold, err := client.PlaceHold(context.Background(), "user-1", "cart-1", nil)

	require.NoError(t, err)
	assert.Equal(t, "hold-3", hold.HoldID)
	assert.Equal(t, "2026-01-01 12:10:00", hold.ExpiresAt)
}

func TestHTTPClient_Checkout_SendsIdempotencyKey(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/checkout", r.URL.Path)
		assert.Equal(t, "key-123", r.Header.Get("Idempotency-Key"))

		var body CheckoutRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "tok_visa", body.CardToken)
		assert.Empty(t, body.WalletRef)
		assert.Equal(t, 50, body.PointsUsed)

		respondJSON(w, http.StatusOK, map[string]string{"orderId": "order-9", "status": "paid", "total": "90.00"})
	})

	result, err := client.Checkout(context.Background(), CheckoutRequest{
		CardToken:     "tok_visa",
		PointsUsed:    50,
		PaymentMethod: "card",
	}, "key-123")

	require.NoError(t, err)
	assert.Equal(t, "order-9", result.OrderID)
	assert.Equal(t, "paid", result.Status)
}

func TestHTTPClient_RemoveItem_NoContent(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/cart/items/item-1", r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	})

	require.NoError(t, client.RemoveItem(context.Background(), "item-1"))
}

// ============================================
// Error Normalization Tests
// ============================================

func TestHTTPClient_APIErrorCodes(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		code     string
		sentinel error
	}{
		{"quota exceeded", http.StatusConflict, CodeQuotaExceeded, ErrQuotaExceeded},
		{"hold expired", http.StatusGone, CodeHoldExpired, ErrHoldExpired},
		{"stock unavailable", http.StatusConflict, CodeStockUnavailable, ErrStockUnavailable},
		{"payment declined", http.StatusPaymentRequired, CodePaymentDeclined, ErrPaymentDeclined},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				respondJSON(w, tt.status, map[string]string{"error": tt.name, "code": tt.code})
			})

			_, err := client.Checkout(context.Background(), CheckoutRequest{}, "key")

			require.Error(t, err)
			assert.ErrorIs(t, err, tt.sentinel)
			assert.False(t, IsTransient(err))

			var apiErr *APIError
			require.True(t, errors.As(err, &apiErr))
			assert.Equal(t, tt.status, apiErr.Status)
			assert.Equal(t, tt.name, apiErr.Message)
		})
	}
}

func TestHTTPClient_PlainTextError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Product not found", http.StatusNotFound)
	})

	_, err := client.GetEvent(context.Background(), "evt-404")

	assert.ErrorIs(t, err, ErrNotFound)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "Product not found", apiErr.Message)
}

func TestHTTPClient_CanceledRequest(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, Cart{ID: "cart-1"})
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.GetCart(ctx)

	require.Error(t, err)
	assert.True(t, IsTransient(err))
	assert.True(t, IsCanceled(err))
}

func TestHTTPClient_ConnectionRefused(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	baseURL := server.URL
	server.Close()

	logger := logrus.New()
	logger.SetOutput(io.Discard)
	client := NewHTTPClient(baseURL, "", time.Second, logger)

	_, err := client.GetSettings(context.Background())

	require.Error(t, err)
	assert.True(t, IsTransient(err))
	assert.False(t, IsCanceled(err))
}
