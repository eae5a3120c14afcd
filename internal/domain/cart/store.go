package cart

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/example/ticket-storefront/internal/gateway"
	"github.com/sirupsen/logrus"
)

// Gateway is the part of the backend the store mutates through.
type Gateway interface {
	AddItem(ctx context.Context, req gateway.AddItemRequest) (*gateway.CartItem, error)
	UpdateQuantity(ctx context.Context, itemID string, quantity int) (*gateway.CartItem, error)
	RemoveItem(ctx context.Context, itemID string) error
	ClearCart(ctx context.Context) error
}

// MarkerEraser removes the persisted hold-expiry marker.
type MarkerEraser interface {
	Erase(ctx context.Context) error
}

// AddItemRequest asks for quantity tickets in one zone of an event.
type AddItemRequest struct {
	EventID  string
	ZoneID   string
	Quantity int
}

// Store owns the canonical cart snapshot. Every mutation goes through
// the gateway first and is applied locally only on success; the lock is
// never held across a gateway call.
type Store struct {
	mu       sync.RWMutex
	snapshot Snapshot
	rules    Rules

	gateway Gateway
	marker  MarkerEraser
	logger  logrus.FieldLogger
}

func NewStore(gw Gateway, marker MarkerEraser, rules Rules, logger logrus.FieldLogger) *Store {
	return &Store{
		rules:   rules,
		gateway: gw,
		marker:  marker,
		logger:  logger.WithField("component", "cart"),
	}
}

// SetRules replaces the business rules, typically after settings load.
func (s *Store) SetRules(rules Rules) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules = rules
}

// Rules returns the rules currently enforced.
func (s *Store) Rules() Rules {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rules
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot.clone()
}

// HasItems reports whether the cart has at least one line.
func (s *Store) HasItems() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.snapshot.Items) > 0
}

// Totals derives subtotal, discount, total and item count.
func (s *Store) Totals() Totals {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return ComputeTotals(s.snapshot.Items, s.snapshot.AppliedPoints, s.rules.PointValue)
}

// Replace loads the backend cart. Hold fields are left untouched; the
// load reconciliation decides what to do with them.
func (s *Store) Replace(remote *gateway.Cart) {
	items := make([]Item, 0, len(remote.Items))
	for _, g := range remote.Items {
		items = append(items, itemFromGateway(g))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot.CartID = remote.ID
	s.snapshot.Items = items
	s.snapshot.AppliedPoints = max(0, remote.AppliedPoints)
}

// AddItem checks the per-event limit locally and, if it passes, adds
// the tickets through the gateway. Lines are merged by event and zone.
func (s *Store) AddItem(ctx context.Context, req AddItemRequest) (Item, error) {
	if req.EventID == "" {
		return Item{}, ErrInvalidEvent
	}
	if req.ZoneID == "" {
		return Item{}, ErrInvalidZone
	}
	if req.Quantity <= 0 {
		return Item{}, ErrInvalidQuantity
	}

	s.mu.RLock()
	held := heldForEvent(s.snapshot.Items, req.EventID, "")
	limit := s.rules.MaxTicketsPerEvent
	s.mu.RUnlock()

	if held+req.Quantity > limit {
		return Item{}, &MaxTicketsPerEventError{
			EventID:   req.EventID,
			Limit:     limit,
			Held:      held,
			Requested: req.Quantity,
		}
	}

	added, err := s.gateway.AddItem(ctx, gateway.AddItemRequest{
		EventID:  req.EventID,
		ZoneID:   req.ZoneID,
		Quantity: req.Quantity,
	})
	if err != nil {
		s.logFailure("add item", err)
		return Item{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i, item := range s.snapshot.Items {
		if item.EventID == req.EventID && item.ZoneID == req.ZoneID {
			s.snapshot.Items[i].Quantity += req.Quantity
			return s.snapshot.Items[i], nil
		}
	}

	item := itemFromGateway(*added)
	item.EventID = req.EventID
	item.ZoneID = req.ZoneID
	item.Quantity = req.Quantity
	s.snapshot.Items = append(s.snapshot.Items, item)
	return item, nil
}

// UpdateQuantity sets the quantity of a line. A quantity below one
// removes the line. A server-side quota rejection leaves the local
// state unchanged and is returned as a ValidationError.
func (s *Store) UpdateQuantity(ctx context.Context, itemID string, quantity int) error {
	if quantity < 1 {
		return s.RemoveItem(ctx, itemID)
	}

	s.mu.RLock()
	current, ok := s.findLocked(itemID)
	held := heldForEvent(s.snapshot.Items, current.EventID, itemID)
	limit := s.rules.MaxTicketsPerEvent
	s.mu.RUnlock()

	if !ok {
		return ErrItemNotFound
	}
	if quantity > current.Quantity && held+quantity > limit {
		return &MaxTicketsPerEventError{
			EventID:   current.EventID,
			Limit:     limit,
			Held:      held,
			Requested: quantity,
		}
	}

	updated, err := s.gateway.UpdateQuantity(ctx, itemID, quantity)
	if err != nil {
		if errors.Is(err, gateway.ErrQuotaExceeded) {
			return &ValidationError{
				Code:      CodeQuotaExceeded,
				Message:   "the requested quantity is no longer available",
				Remaining: max(0, limit-held),
			}
		}
		s.logFailure("update quantity", err)
		return err
	}

	if updated != nil && updated.Quantity > 0 {
		quantity = updated.Quantity
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.snapshot.Items {
		if s.snapshot.Items[i].ID == itemID {
			s.snapshot.Items[i].Quantity = quantity
			return nil
		}
	}
	// Removed concurrently while the request was in flight.
	return ErrItemNotFound
}

// RemoveItem deletes a line through the gateway, then locally.
func (s *Store) RemoveItem(ctx context.Context, itemID string) error {
	s.mu.RLock()
	_, ok := s.findLocked(itemID)
	s.mu.RUnlock()
	if !ok {
		return ErrItemNotFound
	}

	if err := s.gateway.RemoveItem(ctx, itemID); err != nil {
		s.logFailure("remove item", err)
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	items := s.snapshot.Items[:0]
	for _, item := range s.snapshot.Items {
		if item.ID != itemID {
			items = append(items, item)
		}
	}
	s.snapshot.Items = items
	return nil
}

// Clear empties the cart on the backend, then resets every local field
// and erases the expiry marker.
func (s *Store) Clear(ctx context.Context) error {
	if err := s.gateway.ClearCart(ctx); err != nil {
		s.logFailure("clear cart", err)
		return err
	}
	s.Reset(ctx)
	return nil
}

// Reset drops items, points and hold locally and erases the marker
// without calling the backend. Used when the backend is already known
// to be empty or the hold is gone.
func (s *Store) Reset(ctx context.Context) {
	s.mu.Lock()
	s.snapshot = Snapshot{CartID: s.snapshot.CartID}
	s.mu.Unlock()

	if s.marker == nil {
		return
	}
	if err := s.marker.Erase(ctx); err != nil {
		s.logger.WithError(err).Warn("failed to erase hold marker")
	}
}

// ApplyPoints sets the loyalty points to redeem at checkout.
func (s *Store) ApplyPoints(points int) error {
	if points < 0 {
		return ErrInvalidPoints
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot.AppliedPoints = points
	return nil
}

// SetHold records the active hold on the snapshot.
func (s *Store) SetHold(holdID string, expiresAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot.HoldID = holdID
	s.snapshot.HoldExpiresAt = &expiresAt
}

// ClearHold removes the hold from the snapshot and keeps the items.
func (s *Store) ClearHold() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot.HoldID = ""
	s.snapshot.HoldExpiresAt = nil
}

// Enrich copies catalog data onto every line of the event. Lines that
// already carry a title are left alone.
func (s *Store) Enrich(event gateway.EventSummary) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.snapshot.Items {
		item := &s.snapshot.Items[i]
		if item.EventID != event.ID || item.Title != "" {
			continue
		}
		item.Title = event.Title
		item.ImageURL = event.ImageURL
		item.Date = event.Date
		item.Location = event.Location
	}
}

// UnenrichedEvents lists event IDs with at least one line missing a title.
func (s *Store) UnenrichedEvents() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]bool)
	var ids []string
	for _, item := range s.snapshot.Items {
		if item.Title == "" && !seen[item.EventID] {
			seen[item.EventID] = true
			ids = append(ids, item.EventID)
		}
	}
	return ids
}

func (s *Store) findLocked(itemID string) (Item, bool) {
	for _, item := range s.snapshot.Items {
		if item.ID == itemID {
			return item, true
		}
	}
	return Item{}, false
}

func (s *Store) logFailure(op string, err error) {
	if gateway.IsCanceled(err) {
		return
	}
	s.logger.WithError(err).WithField("op", op).Warnf("%s failed, cart left unchanged", op)
}
