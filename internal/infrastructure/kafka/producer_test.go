package kafka

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/example/ticket-storefront/internal/domain/cart"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeMessage(t *testing.T) {
	at := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	event, err := cart.NewEvent("cart-1", "user-1", cart.EventHoldPlaced, cart.HoldPlaced{HoldID: "hold-1", ExpiresAt: at.Add(10 * time.Minute)}, at)
	require.NoError(t, err)

	msg, err := encodeMessage("cart-1", event, at)

	require.NoError(t, err)
	assert.Equal(t, []byte("cart-1"), msg.Key)
	assert.Equal(t, at, msg.Time)

	var decoded cart.Event
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, event.ID, decoded.ID)
	assert.Equal(t, cart.EventHoldPlaced, decoded.EventType)
	assert.JSONEq(t, string(event.Data), string(decoded.Data))
}

func TestEncodeMessage_Unencodable(t *testing.T) {
	_, err := encodeMessage("k", make(chan int), time.Now())
	assert.Error(t, err)
}
