// Package session wires the cart store, hold manager and expiry marker
// for one authenticated user. A Session is created once and cycles
// through Init and Teardown as users sign in and out.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/example/ticket-storefront/internal/auth"
	"github.com/example/ticket-storefront/internal/clock"
	"github.com/example/ticket-storefront/internal/domain/cart"
	"github.com/example/ticket-storefront/internal/domain/hold"
	"github.com/example/ticket-storefront/internal/gateway"
	"github.com/example/ticket-storefront/internal/infrastructure/store"
	"github.com/example/ticket-storefront/internal/marker"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

var (
	ErrNotStarted     = errors.New("session not started")
	ErrAlreadyStarted = errors.New("session already started")
	ErrNoUser         = errors.New("user id is required")
)

// Dependencies are the collaborators shared by every user session.
type Dependencies struct {
	Gateway gateway.CartGateway
	Markers store.MarkerStore
	// Publisher is optional.
	Publisher cart.Publisher
	// Clock defaults to the real clock.
	Clock  clock.Clock
	Logger logrus.FieldLogger
}

// Options tune the hold lifecycle and the fallback business rules.
type Options struct {
	DefaultTTL    time.Duration
	Debounce      time.Duration
	FallbackRules cart.Rules
}

// DefaultOptions returns the documented defaults.
func DefaultOptions() Options {
	return Options{
		DefaultTTL:    hold.DefaultTTL,
		Debounce:      hold.DefaultDebounce,
		FallbackRules: cart.DefaultRules(),
	}
}

// active is the per-user state created by Init.
type active struct {
	user   auth.User
	store  *cart.Store
	holds  *hold.Manager
	bridge *marker.Bridge
	logger logrus.FieldLogger
}

type Session struct {
	mu      sync.Mutex
	current *active

	deps   Dependencies
	opts   Options
	newKey func() string
}

func New(deps Dependencies, opts Options) *Session {
	if deps.Clock == nil {
		deps.Clock = clock.Real()
	}
	if opts.FallbackRules.MaxTicketsPerEvent <= 0 || !opts.FallbackRules.PointValue.IsPositive() {
		opts.FallbackRules = cart.DefaultRules()
	}
	return &Session{
		deps:   deps,
		opts:   opts,
		newKey: uuid.NewString,
	}
}

// Init starts a session for user: it loads the business rules, then
// loads and reconciles the cart. The session stays started even if the
// cart load fails; Load can be retried.
func (s *Session) Init(ctx context.Context, user auth.User) error {
	if user.ID == "" {
		return ErrNoUser
	}

	logger := s.deps.Logger.WithField("user_id", user.ID)
	bridge := marker.NewBridge(s.deps.Markers, user.ID, s.deps.Logger)
	st := cart.NewStore(s.deps.Gateway, bridge, s.opts.FallbackRules, s.deps.Logger)
	holds := hold.NewManager(hold.Config{
		UserID:     user.ID,
		DefaultTTL: s.opts.DefaultTTL,
		Debounce:   s.opts.Debounce,
	}, st, s.deps.Gateway, bridge, s.deps.Publisher, s.deps.Clock, s.deps.Logger)

	s.mu.Lock()
	if s.current != nil {
		s.mu.Unlock()
		holds.Close()
		return ErrAlreadyStarted
	}
	s.current = &active{user: user, store: st, holds: holds, bridge: bridge, logger: logger}
	s.mu.Unlock()

	logger.Info("session started")

	s.loadRules(ctx, st, logger)
	if _, err := s.Load(ctx); err != nil {
		return fmt.Errorf("load cart: %w", err)
	}
	return nil
}

// Teardown stops timers and drops local state. Nothing is sent to the
// backend and the expiry marker is kept for the next session.
func (s *Session) Teardown() {
	s.mu.Lock()
	cur := s.current
	s.current = nil
	s.mu.Unlock()

	if cur == nil {
		return
	}
	cur.holds.Close()
	cur.logger.Info("session ended")
}

// User returns the signed-in user.
func (s *Session) User() (auth.User, error) {
	cur, err := s.active()
	if err != nil {
		return auth.User{}, err
	}
	return cur.user, nil
}

// Load fetches the backend cart and reconciles it with the marker.
func (s *Session) Load(ctx context.Context) (marker.Decision, error) {
	cur, err := s.active()
	if err != nil {
		return marker.Decision{}, err
	}

	remote, err := s.deps.Gateway.GetCart(ctx)
	if err != nil {
		if !gateway.IsCanceled(err) {
			cur.logger.WithError(err).Warn("failed to load cart")
		}
		return marker.Decision{}, err
	}
	cur.store.Replace(remote)

	m, err := cur.bridge.Read(ctx)
	if err != nil {
		// The marker is only a hint; carry on as if there were none.
		cur.logger.WithError(err).Warn("failed to read hold marker")
	}

	decision := marker.Reconcile(marker.Remote{
		HasItems:      len(remote.Items) > 0,
		HoldID:        remote.HoldID,
		HoldExpiresAt: remote.HoldExpiresAt,
	}, m, s.deps.Clock.Now())

	cur.logger.WithFields(logrus.Fields{
		"cart_id":  remote.ID,
		"decision": decision.Action.String(),
		"reason":   decision.Reason,
	}).Info("cart loaded")

	switch decision.Action {
	case marker.ResetEmpty:
		cur.holds.Reset(ctx)
		cur.store.Reset(ctx)

	case marker.RestoreHold:
		cur.holds.Restore(ctx, remote.HoldID, decision.ExpiresAt)

	case marker.ClearExpired:
		cur.holds.HandleExpiry(ctx)

	case marker.RequestHold:
		if decision.EraseMarker {
			if err := cur.bridge.Erase(ctx); err != nil {
				cur.logger.WithError(err).Warn("failed to erase stale hold marker")
			}
		}
		cur.holds.RequestHold()
	}

	s.enrich(ctx, cur)
	return decision, nil
}

// AddItem adds tickets and requests a hold if none is active.
func (s *Session) AddItem(ctx context.Context, req cart.AddItemRequest) (cart.Item, error) {
	cur, err := s.active()
	if err != nil {
		return cart.Item{}, err
	}

	item, err := cur.store.AddItem(ctx, req)
	if err != nil {
		return cart.Item{}, err
	}

	s.notify(ctx, cur, cart.EventItemAdded, cart.ItemAdded{
		ItemID:   item.ID,
		EventID:  req.EventID,
		ZoneID:   req.ZoneID,
		Quantity: req.Quantity,
	})
	s.afterMutation(ctx, cur)
	s.enrich(ctx, cur)
	return item, nil
}

// UpdateQuantity sets a line's quantity; below one removes it.
func (s *Session) UpdateQuantity(ctx context.Context, itemID string, quantity int) error {
	cur, err := s.active()
	if err != nil {
		return err
	}

	if err := cur.store.UpdateQuantity(ctx, itemID, quantity); err != nil {
		return err
	}

	if quantity < 1 {
		s.notify(ctx, cur, cart.EventItemRemoved, cart.ItemRemoved{ItemID: itemID})
	} else {
		s.notify(ctx, cur, cart.EventQuantityUpdated, cart.QuantityUpdated{ItemID: itemID, Quantity: quantity})
	}
	s.afterMutation(ctx, cur)
	return nil
}

// RemoveItem drops a line.
func (s *Session) RemoveItem(ctx context.Context, itemID string) error {
	cur, err := s.active()
	if err != nil {
		return err
	}

	if err := cur.store.RemoveItem(ctx, itemID); err != nil {
		return err
	}

	s.notify(ctx, cur, cart.EventItemRemoved, cart.ItemRemoved{ItemID: itemID})
	s.afterMutation(ctx, cur)
	return nil
}

// Clear empties the cart, forgets the hold and erases the marker.
func (s *Session) Clear(ctx context.Context) error {
	cur, err := s.active()
	if err != nil {
		return err
	}

	if err := cur.store.Clear(ctx); err != nil {
		return err
	}
	cur.holds.Reset(ctx)

	s.notify(ctx, cur, cart.EventCartCleared, cart.CartCleared{Reason: cart.ClearReasonUser})
	return nil
}

// ApplyPoints sets the loyalty points to redeem at checkout.
func (s *Session) ApplyPoints(points int) error {
	cur, err := s.active()
	if err != nil {
		return err
	}
	return cur.store.ApplyPoints(points)
}

// Settle flushes a pending hold request and waits for its outcome. A
// failed hold is reported but leaves the cart intact.
func (s *Session) Settle(ctx context.Context) error {
	cur, err := s.active()
	if err != nil {
		return err
	}
	return cur.holds.Settle(ctx)
}

// Snapshot returns a copy of the cart.
func (s *Session) Snapshot() (cart.Snapshot, error) {
	cur, err := s.active()
	if err != nil {
		return cart.Snapshot{}, err
	}
	return cur.store.Snapshot(), nil
}

// Totals returns subtotal, discount, total and item count.
func (s *Session) Totals() (cart.Totals, error) {
	cur, err := s.active()
	if err != nil {
		return cart.Totals{}, err
	}
	return cur.store.Totals(), nil
}

// Rules returns the business rules in effect.
func (s *Session) Rules() (cart.Rules, error) {
	cur, err := s.active()
	if err != nil {
		return cart.Rules{}, err
	}
	return cur.store.Rules(), nil
}

// Remaining is the hold countdown, zero when no hold is active.
func (s *Session) Remaining() time.Duration {
	cur, err := s.active()
	if err != nil {
		return 0
	}
	return cur.holds.Remaining()
}

// HoldState returns the hold lifecycle state.
func (s *Session) HoldState() hold.State {
	cur, err := s.active()
	if err != nil {
		return hold.NoHold
	}
	return cur.holds.State()
}

func (s *Session) active() (*active, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return nil, ErrNotStarted
	}
	return s.current, nil
}

// afterMutation keeps the hold in step with the cart contents.
func (s *Session) afterMutation(ctx context.Context, cur *active) {
	if cur.store.HasItems() {
		cur.holds.RequestHold()
		return
	}
	cur.holds.Cancel(ctx)
}

func (s *Session) loadRules(ctx context.Context, st *cart.Store, logger logrus.FieldLogger) {
	settings, err := s.deps.Gateway.GetSettings(ctx)
	if err != nil {
		logger.WithError(err).Warn("settings unavailable, using fallback rules")
		return
	}
	rules := cart.RulesFromSettings(settings, s.opts.FallbackRules)
	st.SetRules(rules)
	logger.WithFields(logrus.Fields{
		"max_tickets_per_event": rules.MaxTicketsPerEvent,
		"point_value":           rules.PointValue.String(),
	}).Debug("business rules loaded")
}

// enrich fills catalog data on lines that lack it. Failures are
// tolerated; the line keeps its IDs and can still be checked out.
func (s *Session) enrich(ctx context.Context, cur *active) {
	for _, eventID := range cur.store.UnenrichedEvents() {
		event, err := s.deps.Gateway.GetEvent(ctx, eventID)
		if err != nil {
			cur.logger.WithError(err).WithField("event_id", eventID).Debug("catalog lookup failed")
			continue
		}
		event.ID = eventID
		cur.store.Enrich(*event)
	}
}

func (s *Session) notify(ctx context.Context, cur *active, eventType string, data any) {
	cart.Notify(ctx, s.deps.Publisher, cur.logger, cur.store.Snapshot().CartID, cur.user.ID, eventType, data, s.deps.Clock.Now())
}
