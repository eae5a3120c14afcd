package store

import (
	"context"
	"errors"
)

// ErrEmptyKey is returned when a marker key is blank.
var ErrEmptyKey = errors.New("marker key is required")

// MarkerStore is a small key/value store for values that must outlive
// the process, such as the hold-expiry marker.
type MarkerStore interface {
	// Get returns the value stored under key. found is false when the
	// key does not exist.
	Get(ctx context.Context, key string) (value string, found bool, err error)
	// Put stores value under key, overwriting any previous value.
	Put(ctx context.Context, key, value string) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}
