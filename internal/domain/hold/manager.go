package hold

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/example/ticket-storefront/internal/clock"
	"github.com/example/ticket-storefront/internal/domain/cart"
	"github.com/example/ticket-storefront/internal/domain/expiry"
	"github.com/example/ticket-storefront/internal/gateway"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// Config tunes a Manager.
type Config struct {
	UserID     string
	DefaultTTL time.Duration
	// Debounce is the quiet period RequestHold waits for. Zero places
	// the hold immediately.
	Debounce time.Duration
}

// Manager orchestrates hold creation, renewal and expiry for one cart.
//
// All state lives behind mu and is never held across a gateway call.
// epoch is bumped whenever in-flight work becomes stale (cancel,
// restore, expiry, close); results from an older epoch are dropped.
//
// commitMu serializes writing a hold's marker, timer and event with
// every epoch bump, so a dropped hold never leaves them behind. Lock
// order is commitMu, then mu.
type Manager struct {
	commitMu sync.Mutex

	mu      sync.Mutex
	state   State
	current *Hold
	epoch   uint64

	pending    *clock.Timer
	pendingGen uint64

	group     singleflight.Group
	scheduler *expiry.Scheduler

	cfg       Config
	cart      CartState
	gateway   Gateway
	marker    MarkerWriter
	publisher cart.Publisher
	clock     clock.Clock
	logger    logrus.FieldLogger
}

func NewManager(cfg Config, state CartState, gw Gateway, marker MarkerWriter, publisher cart.Publisher, clk clock.Clock, logger logrus.FieldLogger) *Manager {
	if cfg.DefaultTTL <= 0 {
		cfg.DefaultTTL = DefaultTTL
	}
	if cfg.Debounce < 0 {
		cfg.Debounce = 0
	}

	m := &Manager{
		cfg:       cfg,
		cart:      state,
		gateway:   gw,
		marker:    marker,
		publisher: publisher,
		clock:     clk,
		logger: logger.WithFields(logrus.Fields{
			"component": "hold",
			"user_id":   cfg.UserID,
		}),
	}
	m.scheduler = expiry.NewScheduler(clk, m.onTimer, logger)
	return m
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Current returns the hold in effect, if any.
func (m *Manager) Current() (Hold, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return Hold{}, false
	}
	return *m.current, true
}

// Remaining is the countdown until the active hold expires.
func (m *Manager) Remaining() time.Duration {
	return m.scheduler.Remaining()
}

// EnsureHold places a hold over the cart's items unless one is already
// active. An active hold is left untouched so its countdown keeps
// running. Concurrent callers share a single PlaceHold.
func (m *Manager) EnsureHold(ctx context.Context) error {
	m.mu.Lock()
	epoch := m.epoch
	m.mu.Unlock()

	_, err, _ := m.group.Do(strconv.FormatUint(epoch, 10), func() (any, error) {
		return nil, m.ensure(ctx, epoch)
	})
	return err
}

func (m *Manager) ensure(ctx context.Context, epoch uint64) error {
	snap := m.cart.Snapshot()

	m.mu.Lock()
	if epoch != m.epoch {
		m.mu.Unlock()
		return nil
	}
	switch m.state {
	case Creating, Expiring:
		m.mu.Unlock()
		return nil
	case Active:
		if m.current != nil && m.current.ActiveAt(m.clock.Now()) {
			m.mu.Unlock()
			return nil
		}
	}
	if !snap.HasItems() {
		m.state = NoHold
		m.mu.Unlock()
		return nil
	}
	m.state = Creating
	m.mu.Unlock()

	logger := m.logger.WithField("cart_id", snap.CartID)
	logger.Debug("placing hold")

	resp, err := m.gateway.PlaceHold(ctx, m.cfg.UserID, snap.CartID, snap.HoldItems())

	m.mu.Lock()
	if epoch != m.epoch {
		m.mu.Unlock()
		logger.Debug("discarding superseded hold result")
		return nil
	}
	if err != nil {
		m.state = NoHold
		m.mu.Unlock()
		if !gateway.IsCanceled(err) {
			logger.WithError(err).Warn("failed to place hold, will retry on next change")
		}
		return &HoldCreationError{CartID: snap.CartID, Err: err}
	}

	now := m.clock.Now()
	expiresAt, synthesized := resolveExpiry(resp.ExpiresAt, now, m.cfg.DefaultTTL)
	h := Hold{ID: resp.HoldID, CartID: snap.CartID, ExpiresAt: expiresAt}
	m.current = &h
	m.state = Active
	m.cart.SetHold(h.ID, h.ExpiresAt)
	m.mu.Unlock()

	logger = logger.WithFields(logrus.Fields{
		"hold_id":    h.ID,
		"expires_at": h.ExpiresAt.Format(time.RFC3339),
	})
	if synthesized {
		if resp.ExpiresAt != "" {
			logger.WithField("reported", resp.ExpiresAt).Warn("backend returned an unusable hold expiry, using default ttl")
		} else {
			logger.Info("backend omitted hold expiry, using default ttl")
		}
	}
	logger.Info("hold placed")

	m.commitMu.Lock()
	if !m.isEpoch(epoch) {
		m.commitMu.Unlock()
		logger.Debug("hold dropped before it was committed")
		return nil
	}
	m.persist(ctx, h.ExpiresAt)
	decision := m.scheduler.Rearm(&h.ExpiresAt, m.cart.HasItems())
	cart.Notify(ctx, m.publisher, m.logger, h.CartID, m.cfg.UserID, cart.EventHoldPlaced, cart.HoldPlaced{
		HoldID:      h.ID,
		ExpiresAt:   h.ExpiresAt,
		Synthesized: synthesized,
	}, now)
	m.commitMu.Unlock()

	if decision.Action == expiry.FireNow {
		m.HandleExpiry(ctx)
	}
	return nil
}

// RequestHold schedules EnsureHold after the debounce window. Each call
// restarts the window so a burst of mutations yields one request.
func (m *Manager) RequestHold() {
	m.mu.Lock()
	if m.cfg.Debounce <= 0 {
		m.mu.Unlock()
		m.flush()
		return
	}
	m.pending.Stop()
	m.pendingGen++
	gen := m.pendingGen
	m.pending = m.clock.AfterFunc(m.cfg.Debounce, func() { m.firePending(gen) })
	m.mu.Unlock()
}

// Settle runs a debounced request now, or waits for the hold being
// created, and returns its outcome.
func (m *Manager) Settle(ctx context.Context) error {
	m.mu.Lock()
	hadPending := m.stopPendingLocked()
	creating := m.state == Creating
	m.mu.Unlock()

	if !hadPending && !creating {
		return nil
	}
	return m.EnsureHold(ctx)
}

func (m *Manager) firePending(gen uint64) {
	m.mu.Lock()
	if gen != m.pendingGen || m.pending == nil {
		m.mu.Unlock()
		return
	}
	m.pending = nil
	m.mu.Unlock()

	m.flush()
}

// flush runs EnsureHold detached from any caller context. Failures were
// already logged and are retried on the next mutation.
func (m *Manager) flush() {
	_ = m.EnsureHold(context.Background())
}

// Cancel abandons pending and in-flight creation and drops the hold.
// Used when the cart becomes empty.
func (m *Manager) Cancel(ctx context.Context) {
	m.drop(ctx, true)
	m.cart.ClearHold()
}

// Restore adopts a hold the backend reported on load. No new hold is
// placed; the expiry timer is armed from expiresAt.
func (m *Manager) Restore(ctx context.Context, holdID string, expiresAt time.Time) {
	snap := m.cart.Snapshot()
	h := Hold{ID: holdID, CartID: snap.CartID, ExpiresAt: expiresAt}

	m.commitMu.Lock()
	m.mu.Lock()
	m.stopPendingLocked()
	m.epoch++
	m.current = &h
	m.state = Active
	m.cart.SetHold(h.ID, h.ExpiresAt)
	m.mu.Unlock()

	m.logger.WithFields(logrus.Fields{
		"cart_id":    h.CartID,
		"hold_id":    h.ID,
		"expires_at": h.ExpiresAt.Format(time.RFC3339),
	}).Info("hold restored")

	m.persist(ctx, h.ExpiresAt)
	decision := m.scheduler.Rearm(&h.ExpiresAt, snap.HasItems())
	m.commitMu.Unlock()

	if decision.Action == expiry.FireNow {
		m.logger.WithField("hold_id", h.ID).Info("restored hold already expired")
		m.HandleExpiry(ctx)
	}
}

// HandleExpiry clears the cart because its hold is gone. It is safe to
// call from the expiry timer, a failed checkout and load-time detection
// at once; only the first caller does the work. Returns whether this
// call performed the cleanup.
func (m *Manager) HandleExpiry(ctx context.Context) bool {
	m.commitMu.Lock()
	m.mu.Lock()
	if m.state == Expiring {
		m.mu.Unlock()
		m.commitMu.Unlock()
		return false
	}
	prev := m.current
	m.stopPendingLocked()
	m.epoch++
	m.state = Expiring
	m.current = nil
	m.mu.Unlock()

	m.scheduler.Disarm()
	m.commitMu.Unlock()

	snap := m.cart.Snapshot()
	logger := m.logger.WithField("cart_id", snap.CartID)
	if prev != nil {
		logger = logger.WithField("hold_id", prev.ID)
	}

	// The local wipe happens regardless: the seats are no longer held.
	if err := m.gateway.ClearCart(ctx); err != nil && !gateway.IsCanceled(err) {
		logger.WithError(err).Warn("failed to clear expired cart on backend")
	}
	m.cart.Reset(ctx)

	m.mu.Lock()
	m.state = NoHold
	m.mu.Unlock()

	logger.Info("cart cleared after hold expiry")

	now := m.clock.Now()
	if prev != nil {
		cart.Notify(ctx, m.publisher, m.logger, snap.CartID, m.cfg.UserID, cart.EventHoldExpired, cart.HoldExpired{
			HoldID:    prev.ID,
			ExpiresAt: prev.ExpiresAt,
		}, now)
	}
	cart.Notify(ctx, m.publisher, m.logger, snap.CartID, m.cfg.UserID, cart.EventCartCleared, cart.CartCleared{
		Reason: cart.ClearReasonExpired,
	}, now)
	return true
}

// Reset forgets the hold after the cart was cleared by other means,
// such as a user clear or a successful checkout, and erases the marker.
// A hold still being committed is finished first, then erased.
func (m *Manager) Reset(ctx context.Context) {
	m.drop(ctx, true)
}

// Close stops every timer and discards in-flight results. The marker is
// kept so the next session can detect an expiry that happens meanwhile.
func (m *Manager) Close() {
	m.drop(context.Background(), false)
}

// drop supersedes all pending and in-flight work and forgets the hold.
func (m *Manager) drop(ctx context.Context, eraseMarker bool) {
	m.commitMu.Lock()
	defer m.commitMu.Unlock()

	m.mu.Lock()
	m.stopPendingLocked()
	m.epoch++
	m.state = NoHold
	m.current = nil
	m.mu.Unlock()

	m.scheduler.Disarm()
	if !eraseMarker {
		return
	}
	if err := m.marker.Erase(ctx); err != nil {
		m.logger.WithError(err).Warn("failed to erase hold marker")
	}
}

func (m *Manager) isEpoch(epoch uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return epoch == m.epoch
}

func (m *Manager) onTimer() {
	m.HandleExpiry(context.Background())
}

func (m *Manager) persist(ctx context.Context, expiresAt time.Time) {
	if err := m.marker.Persist(ctx, expiresAt); err != nil {
		m.logger.WithError(err).Warn("failed to persist hold marker")
	}
}

// stopPendingLocked cancels the debounce timer and reports whether a
// request was waiting.
func (m *Manager) stopPendingLocked() bool {
	if m.pending == nil {
		return false
	}
	m.pending.Stop()
	m.pending = nil
	m.pendingGen++
	return true
}
