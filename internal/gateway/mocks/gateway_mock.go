package mocks

import (
	"context"
	"fmt"
	"sync"

	"github.com/example/ticket-storefront/internal/gateway"
	"github.com/shopspring/decimal"
)

// MockGateway is an in-memory implementation of gateway.CartGateway
// for testing. It keeps a server-side cart and records every call.
type MockGateway struct {
	mu     sync.Mutex
	cart   gateway.Cart
	nextID int

	// Prices maps "eventID/zoneID" to the unit price returned by AddItem
	Prices   map[string]decimal.Decimal
	Settings *gateway.Settings
	Events   map[string]*gateway.EventSummary

	// NextHold is returned by PlaceHold when set
	NextHold       *gateway.HoldResponse
	CheckoutResult *gateway.CheckoutResult

	// For tracking calls in tests
	GetCartCalls   int
	AddItemCalls   []gateway.AddItemRequest
	UpdateCalls    []UpdateCall
	RemoveCalls    []string
	ClearCalls     int
	PlaceHoldCalls []PlaceHoldCall
	CheckoutCalls  []CheckoutCall
	GetEventCalls  []string

	GetCartErr   error
	AddItemErr   error
	UpdateErr    error
	RemoveErr    error
	ClearErr     error
	PlaceHoldErr error
	CheckoutErr  error
	SettingsErr  error
	GetEventErr  error

	// PlaceHoldHook replaces the default PlaceHold behavior when set
	PlaceHoldHook func(ctx context.Context, userID, cartID string, items []gateway.HoldItem) (*gateway.HoldResponse, error)
}

// UpdateCall records parameters passed to UpdateQuantity
type UpdateCall struct {
	ItemID   string
	Quantity int
}

// PlaceHoldCall records parameters passed to PlaceHold
type PlaceHoldCall struct {
	UserID string
	CartID string
	Items  []gateway.HoldItem
}

// CheckoutCall records parameters passed to Checkout
type CheckoutCall struct {
	Request        gateway.CheckoutRequest
	IdempotencyKey string
}

// NewMockGateway creates a MockGateway serving an empty cart with the given ID
func NewMockGateway(cartID string) *MockGateway {
	return &MockGateway{
		cart:   gateway.Cart{ID: cartID},
		Prices: make(map[string]decimal.Decimal),
		Events: make(map[string]*gateway.EventSummary),
	}
}

// SetCart replaces the server-side cart
func (m *MockGateway) SetCart(cart gateway.Cart) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cart = cart
}

// Cart returns a copy of the server-side cart
func (m *MockGateway) Cart() gateway.Cart {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.cart
	c.Items = append([]gateway.CartItem(nil), m.cart.Items...)
	return c
}

// PlaceHoldCount returns the number of PlaceHold calls so far
func (m *MockGateway) PlaceHoldCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.PlaceHoldCalls)
}

func (m *MockGateway) GetCart(ctx context.Context) (*gateway.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.GetCartCalls++
	if m.GetCartErr != nil {
		return nil, m.GetCartErr
	}
	c := m.cart
	c.Items = append([]gateway.CartItem(nil), m.cart.Items...)
	return &c, nil
}

func (m *MockGateway) AddItem(ctx context.Context, req gateway.AddItemRequest) (*gateway.CartItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.AddItemCalls = append(m.AddItemCalls, req)
	if m.AddItemErr != nil {
		return nil, m.AddItemErr
	}

	for i, item := range m.cart.Items {
		if item.EventID == req.EventID && item.ZoneID == req.ZoneID {
			m.cart.Items[i].Quantity += req.Quantity
			added := m.cart.Items[i]
			added.Quantity = req.Quantity
			return &added, nil
		}
	}

	m.nextID++
	item := gateway.CartItem{
		ID:        fmt.Sprintf("item-%d", m.nextID),
		EventID:   req.EventID,
		ZoneID:    req.ZoneID,
		Quantity:  req.Quantity,
		UnitPrice: m.Prices[req.EventID+"/"+req.ZoneID],
	}
	m.cart.Items = append(m.cart.Items, item)
	return &item, nil
}

func (m *MockGateway) UpdateQuantity(ctx context.Context, itemID string, quantity int) (*gateway.CartItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.UpdateCalls = append(m.UpdateCalls, UpdateCall{ItemID: itemID, Quantity: quantity})
	if m.UpdateErr != nil {
		return nil, m.UpdateErr
	}

	for i, item := range m.cart.Items {
		if item.ID == itemID {
			m.cart.Items[i].Quantity = quantity
			updated := m.cart.Items[i]
			return &updated, nil
		}
	}
	return nil, &gateway.APIError{Op: "update quantity", Status: 404, Message: "item not found"}
}

func (m *MockGateway) RemoveItem(ctx context.Context, itemID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.RemoveCalls = append(m.RemoveCalls, itemID)
	if m.RemoveErr != nil {
		return m.RemoveErr
	}

	items := m.cart.Items[:0]
	for _, item := range m.cart.Items {
		if item.ID != itemID {
			items = append(items, item)
		}
	}
	m.cart.Items = items
	return nil
}

func (m *MockGateway) ClearCart(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.ClearCalls++
	if m.ClearErr != nil {
		return m.ClearErr
	}
	m.cart.Items = nil
	m.cart.HoldID = ""
	m.cart.HoldExpiresAt = ""
	m.cart.AppliedPoints = 0
	return nil
}

func (m *MockGateway) PlaceHold(ctx context.Context, userID, cartID string, items []gateway.HoldItem) (*gateway.HoldResponse, error) {
	m.mu.Lock()
	m.PlaceHoldCalls = append(m.PlaceHoldCalls, PlaceHoldCall{UserID: userID, CartID: cartID, Items: items})
	n := len(m.PlaceHoldCalls)
	hook := m.PlaceHoldHook
	holdErr := m.PlaceHoldErr
	next := m.NextHold
	m.mu.Unlock()

	// The hook runs unlocked so tests can block or re-enter.
	if hook != nil {
		return hook(ctx, userID, cartID, items)
	}
	if holdErr != nil {
		return nil, holdErr
	}
	if next != nil {
		resp := *next
		return &resp, nil
	}
	return &gateway.HoldResponse{HoldID: fmt.Sprintf("hold-%d", n)}, nil
}

func (m *MockGateway) Checkout(ctx context.Context, req gateway.CheckoutRequest, idempotencyKey string) (*gateway.CheckoutResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.CheckoutCalls = append(m.CheckoutCalls, CheckoutCall{Request: req, IdempotencyKey: idempotencyKey})
	if m.CheckoutErr != nil {
		return nil, m.CheckoutErr
	}
	if m.CheckoutResult != nil {
		result := *m.CheckoutResult
		return &result, nil
	}
	m.cart.Items = nil
	return &gateway.CheckoutResult{OrderID: fmt.Sprintf("order-%d", len(m.CheckoutCalls)), Status: "paid"}, nil
}

func (m *MockGateway) GetSettings(ctx context.Context) (*gateway.Settings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.SettingsErr != nil {
		return nil, m.SettingsErr
	}
	if m.Settings == nil {
		return nil, &gateway.APIError{Op: "get settings", Status: 404, Message: "not configured"}
	}
	s := *m.Settings
	return &s, nil
}

func (m *MockGateway) GetEvent(ctx context.Context, eventID string) (*gateway.EventSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.GetEventCalls = append(m.GetEventCalls, eventID)
	if m.GetEventErr != nil {
		return nil, m.GetEventErr
	}
	event, ok := m.Events[eventID]
	if !ok {
		return nil, &gateway.APIError{Op: "get event", Status: 404, Message: "event not found"}
	}
	e := *event
	return &e, nil
}
