package cart

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	EventItemAdded         = "ItemAdded"
	EventQuantityUpdated   = "QuantityUpdated"
	EventItemRemoved       = "ItemRemoved"
	EventCartCleared       = "CartCleared"
	EventHoldPlaced        = "HoldPlaced"
	EventHoldExpired       = "HoldExpired"
	EventCheckoutCompleted = "CheckoutCompleted"
)

// Reasons carried by CartCleared.
const (
	ClearReasonUser     = "user"
	ClearReasonExpired  = "hold_expired"
	ClearReasonCheckout = "checkout"
	ClearReasonEmpty    = "backend_empty"
)

// Publisher ships lifecycle events, keyed by cart ID.
type Publisher interface {
	Publish(ctx context.Context, key string, event any) error
}

// Event is the envelope for a cart lifecycle event.
type Event struct {
	ID        string          `json:"id"`
	CartID    string          `json:"cart_id"`
	UserID    string          `json:"user_id"`
	EventType string          `json:"event_type"`
	Data      json.RawMessage `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewEvent wraps data in an envelope with a fresh ID.
func NewEvent(cartID, userID, eventType string, data any, at time.Time) (Event, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Event{}, err
	}
	return Event{
		ID:        uuid.New().String(),
		CartID:    cartID,
		UserID:    userID,
		EventType: eventType,
		Data:      raw,
		Timestamp: at,
	}, nil
}

// Notify publishes a lifecycle event if pub is set. Failures are only
// logged; events never block cart operations.
func Notify(ctx context.Context, pub Publisher, logger logrus.FieldLogger, cartID, userID, eventType string, data any, at time.Time) {
	if pub == nil {
		return
	}
	event, err := NewEvent(cartID, userID, eventType, data, at)
	if err != nil {
		logger.WithError(err).WithField("event_type", eventType).Warn("failed to build lifecycle event")
		return
	}
	if err := pub.Publish(ctx, cartID, event); err != nil {
		logger.WithError(err).WithField("event_type", eventType).Warn("failed to publish lifecycle event")
	}
}

type ItemAdded struct {
	ItemID   string `json:"item_id"`
	EventID  string `json:"event_id"`
	ZoneID   string `json:"zone_id"`
	Quantity int    `json:"quantity"`
}

type QuantityUpdated struct {
	ItemID   string `json:"item_id"`
	Quantity int    `json:"quantity"`
}

type ItemRemoved struct {
	ItemID string `json:"item_id"`
}

type CartCleared struct {
	Reason string `json:"reason"`
}

type HoldPlaced struct {
	HoldID      string    `json:"hold_id"`
	ExpiresAt   time.Time `json:"expires_at"`
	Synthesized bool      `json:"synthesized"`
}

type HoldExpired struct {
	HoldID    string    `json:"hold_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

type CheckoutCompleted struct {
	OrderID    string `json:"order_id"`
	Status     string `json:"status"`
	PointsUsed int    `json:"points_used"`
}
