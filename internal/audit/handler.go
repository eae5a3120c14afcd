// Package audit consumes cart lifecycle events and keeps per-cart
// counters of hold activity.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/example/ticket-storefront/internal/domain/cart"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sirupsen/logrus"
)

// DefaultDedupWindow is how many recent event IDs are remembered to
// drop redeliveries.
const DefaultDedupWindow = 10000

// Summary is the audit view of one cart.
type Summary struct {
	CartID         string         `json:"cart_id"`
	UserID         string         `json:"user_id"`
	HoldsPlaced    int            `json:"holds_placed"`
	SynthesizedTTL int            `json:"synthesized_ttl"`
	HoldsExpired   int            `json:"holds_expired"`
	Checkouts      int            `json:"checkouts"`
	Clears         map[string]int `json:"clears"`
	LastEventAt    time.Time      `json:"last_event_at"`
}

// Handler processes lifecycle events from Kafka
type Handler struct {
	mu      sync.RWMutex
	summary map[string]*Summary
	seen    *lru.Cache[string, struct{}]
	logger  logrus.FieldLogger
}

// NewHandler creates a new audit handler
func NewHandler(logger logrus.FieldLogger) *Handler {
	return NewHandlerWithWindow(logger, DefaultDedupWindow)
}

// NewHandlerWithWindow creates a handler that remembers the last window
// event IDs. Older redeliveries are counted again.
func NewHandlerWithWindow(logger logrus.FieldLogger, window int) *Handler {
	if window <= 0 {
		window = DefaultDedupWindow
	}
	seen, err := lru.New[string, struct{}](window)
	if err != nil {
		panic(err)
	}
	return &Handler{
		summary: make(map[string]*Summary),
		seen:    seen,
		logger:  logger.WithField("component", "audit"),
	}
}

// HandleEvent processes an event from Kafka. Redelivered events are
// counted once.
func (h *Handler) HandleEvent(ctx context.Context, key, value []byte) error {
	var event cart.Event
	if err := json.Unmarshal(value, &event); err != nil {
		return fmt.Errorf("failed to unmarshal event: %w", err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.seen.Contains(event.ID) {
		return nil
	}

	s := h.summary[event.CartID]
	if s == nil {
		s = &Summary{CartID: event.CartID, UserID: event.UserID, Clears: make(map[string]int)}
		h.summary[event.CartID] = s
	}

	logger := h.logger.WithFields(logrus.Fields{
		"cart_id":    event.CartID,
		"user_id":    event.UserID,
		"event_type": event.EventType,
	})

	switch event.EventType {
	case cart.EventHoldPlaced:
		var e cart.HoldPlaced
		if err := json.Unmarshal(event.Data, &e); err != nil {
			return fmt.Errorf("failed to unmarshal %s: %w", event.EventType, err)
		}
		s.HoldsPlaced++
		if e.Synthesized {
			s.SynthesizedTTL++
		}
		logger.WithFields(logrus.Fields{
			"hold_id":    e.HoldID,
			"expires_at": e.ExpiresAt.Format(time.RFC3339),
		}).Info("hold placed")

	case cart.EventHoldExpired:
		var e cart.HoldExpired
		if err := json.Unmarshal(event.Data, &e); err != nil {
			return fmt.Errorf("failed to unmarshal %s: %w", event.EventType, err)
		}
		s.HoldsExpired++
		logger.WithField("hold_id", e.HoldID).Warn("hold expired before checkout")

	case cart.EventCartCleared:
		var e cart.CartCleared
		if err := json.Unmarshal(event.Data, &e); err != nil {
			return fmt.Errorf("failed to unmarshal %s: %w", event.EventType, err)
		}
		s.Clears[e.Reason]++
		logger.WithField("reason", e.Reason).Info("cart cleared")

	case cart.EventCheckoutCompleted:
		var e cart.CheckoutCompleted
		if err := json.Unmarshal(event.Data, &e); err != nil {
			return fmt.Errorf("failed to unmarshal %s: %w", event.EventType, err)
		}
		s.Checkouts++
		logger.WithField("order_id", e.OrderID).Info("checkout completed")

	default:
		logger.Debug("cart event")
	}

	h.seen.Add(event.ID, struct{}{})
	if event.Timestamp.After(s.LastEventAt) {
		s.LastEventAt = event.Timestamp
	}
	return nil
}

// Summary returns a copy of the counters for cartID.
func (h *Handler) Summary(cartID string) (Summary, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	s, ok := h.summary[cartID]
	if !ok {
		return Summary{}, false
	}
	return s.copy(), true
}

// Summaries returns every cart's counters ordered by cart ID.
func (h *Handler) Summaries() []Summary {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]Summary, 0, len(h.summary))
	for _, s := range h.summary {
		out = append(out, s.copy())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CartID < out[j].CartID })
	return out
}

func (s *Summary) copy() Summary {
	c := *s
	c.Clears = make(map[string]int, len(s.Clears))
	for k, v := range s.Clears {
		c.Clears[k] = v
	}
	return c
}
