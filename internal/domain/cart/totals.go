package cart

import "github.com/shopspring/decimal"

// Totals are the values derived from a snapshot.
type Totals struct {
	Subtotal  decimal.Decimal `json:"subtotal"`
	Discount  decimal.Decimal `json:"discount"`
	Total     decimal.Decimal `json:"total"`
	ItemCount int             `json:"item_count"`
}

// ComputeTotals sums the lines, applies the points discount and clamps
// the total at zero.
func ComputeTotals(items []Item, appliedPoints int, pointValue decimal.Decimal) Totals {
	subtotal := decimal.Zero
	count := 0
	for _, item := range items {
		subtotal = subtotal.Add(item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))))
		count += item.Quantity
	}

	discount := pointValue.Mul(decimal.NewFromInt(int64(appliedPoints))).Round(2)
	total := subtotal.Sub(discount)
	if total.IsNegative() {
		total = decimal.Zero
	}

	return Totals{
		Subtotal:  subtotal,
		Discount:  discount,
		Total:     total,
		ItemCount: count,
	}
}
