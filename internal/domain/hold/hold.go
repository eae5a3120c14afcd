// Package hold keeps at most one server-side seat hold alive per cart
// and drives cart cleanup when it expires.
package hold

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/example/ticket-storefront/internal/domain/cart"
	"github.com/example/ticket-storefront/internal/gateway"
)

// DefaultTTL is assumed when the backend places a hold without
// reporting its expiry.
const DefaultTTL = 10 * time.Minute

// DefaultDebounce batches mutation bursts into one hold request.
const DefaultDebounce = 100 * time.Millisecond

// State is the manager's lifecycle position.
//
//	NoHold -> Creating -> Active -> Expiring -> NoHold
//	Creating -> NoHold on failure or cancel
//	Active -> Creating once the hold has lapsed
type State int

const (
	NoHold State = iota
	Creating
	Active
	Expiring
)

func (s State) String() string {
	switch s {
	case NoHold:
		return "no_hold"
	case Creating:
		return "creating"
	case Active:
		return "active"
	case Expiring:
		return "expiring"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Hold is a time-bounded reservation of the cart's seats.
type Hold struct {
	ID        string    `json:"hold_id"`
	CartID    string    `json:"cart_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ActiveAt reports whether the hold is still valid at now.
func (h Hold) ActiveAt(now time.Time) bool {
	return h.ExpiresAt.After(now)
}

// HoldCreationError reports a failed PlaceHold. It is not fatal: the
// manager is back in NoHold and the next qualifying mutation retries.
type HoldCreationError struct {
	CartID string
	Err    error
}

func (e *HoldCreationError) Error() string {
	return fmt.Sprintf("place hold for cart %s: %v", e.CartID, e.Err)
}

func (e *HoldCreationError) Unwrap() error { return e.Err }

// CartState is the part of cart.Store the manager reads and updates.
type CartState interface {
	Snapshot() cart.Snapshot
	HasItems() bool
	SetHold(holdID string, expiresAt time.Time)
	ClearHold()
	Reset(ctx context.Context)
}

// Gateway places holds and clears expired carts.
type Gateway interface {
	PlaceHold(ctx context.Context, userID, cartID string, items []gateway.HoldItem) (*gateway.HoldResponse, error)
	ClearCart(ctx context.Context) error
}

// MarkerWriter persists the expiry hint.
type MarkerWriter interface {
	Persist(ctx context.Context, expiresAt time.Time) error
	Erase(ctx context.Context) error
}

// resolveExpiry returns the expiry to adopt for a fresh hold and
// whether it was synthesized. A reported value that is absent,
// unparsable or not in the future yields now + ttl.
func resolveExpiry(reported string, now time.Time, ttl time.Duration) (time.Time, bool) {
	if reported != "" {
		expiresAt, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(reported))
		if err == nil && expiresAt.After(now) {
			return expiresAt, false
		}
	}
	return now.Add(ttl), true
}
