package gateway

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// CartGateway is the storefront backend as seen by the cart client.
// Every method is a network call and the only place a session yields.
type CartGateway interface {
	GetCart(ctx context.Context) (*Cart, error)
	AddItem(ctx context.Context, req AddItemRequest) (*CartItem, error)
	UpdateQuantity(ctx context.Context, itemID string, quantity int) (*CartItem, error)
	RemoveItem(ctx context.Context, itemID string) error
	ClearCart(ctx context.Context) error

	PlaceHold(ctx context.Context, userID, cartID string, items []HoldItem) (*HoldResponse, error)
	Checkout(ctx context.Context, req CheckoutRequest, idempotencyKey string) (*CheckoutResult, error)

	GetSettings(ctx context.Context) (*Settings, error)
	GetEvent(ctx context.Context, eventID string) (*EventSummary, error)
}

// Cart is the body of GET /cart.
type Cart struct {
	ID    string     `json:"id"`
	Items []CartItem `json:"items"`
	// HoldID is optional; older backends only report the expiry.
	HoldID string `json:"holdId,omitempty"`
	// HoldExpiresAt is kept raw so an unparsable value can be told
	// apart from an absent one.
	HoldExpiresAt string `json:"holdExpiresAt,omitempty"`
	AppliedPoints int    `json:"appliedPoints,omitempty"`
}

type CartItem struct {
	ID        string          `json:"id"`
	EventID   string          `json:"eventId"`
	ZoneID    string          `json:"zoneId"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	Title     string          `json:"title,omitempty"`
	ImageURL  string          `json:"imageUrl,omitempty"`
	Date      *time.Time      `json:"date,omitempty"`
	Location  string          `json:"location,omitempty"`
}

type AddItemRequest struct {
	EventID  string `json:"eventId"`
	ZoneID   string `json:"zoneId"`
	Quantity int    `json:"quantity"`
}

// HoldItem is one line of a POST /cart/hold body.
type HoldItem struct {
	EventID  string `json:"eventId"`
	ZoneID   string `json:"zoneId"`
	Quantity int    `json:"quantity"`
}

type HoldResponse struct {
	HoldID string `json:"holdId"`
	// ExpiresAt is kept raw like Cart.HoldExpiresAt; a value that does
	// not parse must not fail a hold the backend already placed.
	ExpiresAt string `json:"expiresAt,omitempty"`
}

// CheckoutRequest carries exactly one of CardToken or WalletRef.
type CheckoutRequest struct {
	CardToken     string `json:"cardToken,omitempty"`
	WalletRef     string `json:"walletRef,omitempty"`
	PointsUsed    int    `json:"pointsUsed"`
	PaymentMethod string `json:"paymentMethod"`
}

type CheckoutResult struct {
	OrderID string          `json:"orderId"`
	Status  string          `json:"status"`
	Total   decimal.Decimal `json:"total"`
}

// Settings is the body of GET /settings.
type Settings struct {
	MaxTicketsPerPurchase int             `json:"maxTicketsPerPurchase"`
	PointsToSolesRatio    decimal.Decimal `json:"pointsToSolesRatio"`
}

// EventSummary is the catalog data used to enrich cart items.
type EventSummary struct {
	ID       string     `json:"id"`
	Title    string     `json:"title"`
	ImageURL string     `json:"imageUrl"`
	Date     *time.Time `json:"date,omitempty"`
	Location string     `json:"location"`
}
