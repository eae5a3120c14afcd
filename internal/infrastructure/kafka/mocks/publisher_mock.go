package mocks

import (
	"context"
	"sync"

	"github.com/example/ticket-storefront/internal/domain/cart"
)

// MockPublisher is a mock implementation of cart.Publisher for testing
type MockPublisher struct {
	mu sync.Mutex

	// For tracking calls in tests
	PublishCalls []PublishCall
	PublishErr   error
}

// PublishCall records parameters passed to Publish
type PublishCall struct {
	Key   string
	Event any
}

// NewMockPublisher creates a new MockPublisher
func NewMockPublisher() *MockPublisher {
	return &MockPublisher{}
}

func (m *MockPublisher) Publish(ctx context.Context, key string, event any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.PublishCalls = append(m.PublishCalls, PublishCall{Key: key, Event: event})
	return m.PublishErr
}

// EventTypes returns the type of every published cart.Event in order
func (m *MockPublisher) EventTypes() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	var types []string
	for _, call := range m.PublishCalls {
		if event, ok := call.Event.(cart.Event); ok {
			types = append(types, event.EventType)
		}
	}
	return types
}

// Events returns every published cart.Event of eventType
func (m *MockPublisher) Events(eventType string) []cart.Event {
	m.mu.Lock()
	defer m.mu.Unlock()

	var events []cart.Event
	for _, call := range m.PublishCalls {
		if event, ok := call.Event.(cart.Event); ok && event.EventType == eventType {
			events = append(events, event)
		}
	}
	return events
}
