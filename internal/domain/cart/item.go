package cart

import (
	"time"

	"github.com/example/ticket-storefront/internal/gateway"
	"github.com/shopspring/decimal"
)

// Item is one cart line. Title, ImageURL, Date and Location come from
// the catalog on a best-effort basis and may be empty.
type Item struct {
	ID        string          `json:"id"`
	EventID   string          `json:"event_id"`
	ZoneID    string          `json:"zone_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`

	Title    string     `json:"title,omitempty"`
	ImageURL string     `json:"image_url,omitempty"`
	Date     *time.Time `json:"date,omitempty"`
	Location string     `json:"location,omitempty"`
}

// Snapshot is the client-side view of a cart and its hold.
type Snapshot struct {
	CartID        string     `json:"cart_id"`
	Items         []Item     `json:"items"`
	AppliedPoints int        `json:"applied_points"`
	HoldID        string     `json:"hold_id,omitempty"`
	HoldExpiresAt *time.Time `json:"hold_expires_at,omitempty"`
}

// HasItems reports whether the snapshot holds at least one line.
func (s Snapshot) HasItems() bool {
	return len(s.Items) > 0
}

// HoldItems converts the snapshot lines into a hold request body.
func (s Snapshot) HoldItems() []gateway.HoldItem {
	items := make([]gateway.HoldItem, 0, len(s.Items))
	for _, item := range s.Items {
		items = append(items, gateway.HoldItem{
			EventID:  item.EventID,
			ZoneID:   item.ZoneID,
			Quantity: item.Quantity,
		})
	}
	return items
}

func (s Snapshot) clone() Snapshot {
	c := s
	c.Items = append([]Item(nil), s.Items...)
	if s.HoldExpiresAt != nil {
		t := *s.HoldExpiresAt
		c.HoldExpiresAt = &t
	}
	return c
}

// heldForEvent sums the quantities of every line for eventID except
// the line identified by skipID.
func heldForEvent(items []Item, eventID, skipID string) int {
	held := 0
	for _, item := range items {
		if item.EventID == eventID && item.ID != skipID {
			held += item.Quantity
		}
	}
	return held
}

func itemFromGateway(g gateway.CartItem) Item {
	return Item{
		ID:        g.ID,
		EventID:   g.EventID,
		ZoneID:    g.ZoneID,
		Quantity:  g.Quantity,
		UnitPrice: g.UnitPrice,
		Title:     g.Title,
		ImageURL:  g.ImageURL,
		Date:      g.Date,
		Location:  g.Location,
	}
}
