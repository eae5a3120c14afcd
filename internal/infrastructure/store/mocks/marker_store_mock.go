package mocks

import (
	"context"
	"sync"
)

// MockMarkerStore is a mock implementation of store.MarkerStore for testing
type MockMarkerStore struct {
	mu   sync.Mutex
	data map[string]string

	// For tracking calls in tests
	GetCalls    []string
	PutCalls    []PutCall
	DeleteCalls []string

	GetErr    error
	PutErr    error
	DeleteErr error
}

// PutCall records parameters passed to Put
type PutCall struct {
	Key   string
	Value string
}

// NewMockMarkerStore creates a new MockMarkerStore
func NewMockMarkerStore() *MockMarkerStore {
	return &MockMarkerStore{
		data: make(map[string]string),
	}
}

func (m *MockMarkerStore) Get(ctx context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.GetCalls = append(m.GetCalls, key)
	if m.GetErr != nil {
		return "", false, m.GetErr
	}
	value, ok := m.data[key]
	return value, ok, nil
}

func (m *MockMarkerStore) Put(ctx context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.PutCalls = append(m.PutCalls, PutCall{Key: key, Value: value})
	if m.PutErr != nil {
		return m.PutErr
	}
	m.data[key] = value
	return nil
}

func (m *MockMarkerStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.DeleteCalls = append(m.DeleteCalls, key)
	if m.DeleteErr != nil {
		return m.DeleteErr
	}
	delete(m.data, key)
	return nil
}

// Set stores a value directly without recording a call
func (m *MockMarkerStore) Set(key, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
}

// Value returns the stored value for key
func (m *MockMarkerStore) Value(key string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	value, ok := m.data[key]
	return value, ok
}

// Puts returns a copy of the recorded Put calls
func (m *MockMarkerStore) Puts() []PutCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]PutCall(nil), m.PutCalls...)
}

// Deletes returns the number of Delete calls so far
func (m *MockMarkerStore) Deletes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.DeleteCalls)
}
