// Package marker persists the last known hold expiry outside the
// process and reconciles it with the backend cart on load.
package marker

import (
	"context"
	"fmt"
	"time"

	"github.com/example/ticket-storefront/internal/infrastructure/store"
	"github.com/sirupsen/logrus"
)

// KeyPrefix namespaces marker keys per user.
const KeyPrefix = "cart-hold-expiry:"

// Key returns the marker key for userID.
func Key(userID string) string {
	return KeyPrefix + userID
}

// Marker is the persisted hint. It is never ground truth; the
// backend's holdExpiresAt wins whenever it is present.
type Marker struct {
	ExpiresAt time.Time
}

// Bridge reads and writes the marker for one user.
type Bridge struct {
	store  store.MarkerStore
	key    string
	logger logrus.FieldLogger
}

func NewBridge(s store.MarkerStore, userID string, logger logrus.FieldLogger) *Bridge {
	return &Bridge{
		store: s,
		key:   Key(userID),
		logger: logger.WithFields(logrus.Fields{
			"component": "marker",
			"user_id":   userID,
		}),
	}
}

// Persist writes expiresAt as an RFC 3339 string.
func (b *Bridge) Persist(ctx context.Context, expiresAt time.Time) error {
	value := expiresAt.UTC().Format(time.RFC3339Nano)
	if err := b.store.Put(ctx, b.key, value); err != nil {
		return fmt.Errorf("failed to persist hold marker: %w", err)
	}
	b.logger.WithField("expires_at", value).Debug("hold marker persisted")
	return nil
}

// Read returns the stored marker, or nil when none exists. A value
// that does not parse is erased and reported as absent.
func (b *Bridge) Read(ctx context.Context) (*Marker, error) {
	value, found, err := b.store.Get(ctx, b.key)
	if err != nil {
		return nil, fmt.Errorf("failed to read hold marker: %w", err)
	}
	if !found {
		return nil, nil
	}

	expiresAt, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		b.logger.WithField("value", value).Warn("discarding unparsable hold marker")
		if err := b.Erase(ctx); err != nil {
			b.logger.WithError(err).Warn("failed to erase unparsable hold marker")
		}
		return nil, nil
	}
	return &Marker{ExpiresAt: expiresAt}, nil
}

// Erase removes the marker.
func (b *Bridge) Erase(ctx context.Context) error {
	if err := b.store.Delete(ctx, b.key); err != nil {
		return fmt.Errorf("failed to erase hold marker: %w", err)
	}
	return nil
}
