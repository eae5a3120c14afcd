package marker

import (
	"strings"
	"time"
)

// Action is the outcome of reconciling a freshly loaded cart.
type Action int

const (
	// ResetEmpty drops all local state: the backend cart is empty.
	ResetEmpty Action = iota
	// RestoreHold adopts the backend hold without placing a new one.
	RestoreHold
	// ClearExpired clears the cart because its hold is gone.
	ClearExpired
	// RequestHold asks for a new hold over the existing items.
	RequestHold
)

func (a Action) String() string {
	switch a {
	case ResetEmpty:
		return "reset_empty"
	case RestoreHold:
		return "restore_hold"
	case ClearExpired:
		return "clear_expired"
	case RequestHold:
		return "request_hold"
	default:
		return "unknown"
	}
}

// Remote is what the backend reported on load.
type Remote struct {
	HasItems bool
	HoldID   string
	// HoldExpiresAt is the raw backend value; it may be empty or malformed.
	HoldExpiresAt string
}

// Decision tells the loader what to do with the cart and the marker.
type Decision struct {
	Action Action
	// ExpiresAt is the parsed backend expiry for RestoreHold; restoring
	// the hold persists it.
	ExpiresAt time.Time
	// EraseMarker asks for the marker to be removed.
	EraseMarker bool
	Reason      string
}

// Reconcile applies the load-time decision table. An empty cart is
// evaluated first because the backend is authoritative about contents.
func Reconcile(remote Remote, marker *Marker, now time.Time) Decision {
	if !remote.HasItems {
		return Decision{Action: ResetEmpty, EraseMarker: true, Reason: "backend cart is empty"}
	}

	if raw := strings.TrimSpace(remote.HoldExpiresAt); raw != "" {
		expiresAt, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return Decision{Action: ClearExpired, EraseMarker: true, Reason: "backend hold expiry is unparsable"}
		}
		if !expiresAt.After(now) {
			return Decision{Action: ClearExpired, EraseMarker: true, Reason: "backend hold expired"}
		}
		return Decision{Action: RestoreHold, ExpiresAt: expiresAt, Reason: "backend hold active"}
	}

	switch {
	case marker == nil:
		return Decision{Action: RequestHold, Reason: "items without hold"}
	case !marker.ExpiresAt.After(now):
		return Decision{Action: ClearExpired, EraseMarker: true, Reason: "hold expired while away"}
	default:
		return Decision{Action: RequestHold, EraseMarker: true, Reason: "backend omitted a hold the marker still expects"}
	}
}
