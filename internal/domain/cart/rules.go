package cart

import (
	"github.com/example/ticket-storefront/internal/gateway"
	"github.com/shopspring/decimal"
)

// Fallbacks used when GET /settings is unreachable.
const (
	DefaultMaxTicketsPerEvent = 4
	DefaultPointsToSolesRatio = 10
)

// Rules are the business limits the store enforces locally.
type Rules struct {
	MaxTicketsPerEvent int
	// PointValue is the discount in soles granted by one loyalty point.
	PointValue decimal.Decimal
}

// DefaultRules returns the hardcoded fallback rules.
func DefaultRules() Rules {
	return NewRules(DefaultMaxTicketsPerEvent, decimal.NewFromInt(DefaultPointsToSolesRatio))
}

// NewRules builds rules from a ticket limit and a points-per-sol ratio.
// Non-positive inputs fall back to the defaults.
func NewRules(maxTicketsPerEvent int, pointsToSolesRatio decimal.Decimal) Rules {
	if maxTicketsPerEvent <= 0 {
		maxTicketsPerEvent = DefaultMaxTicketsPerEvent
	}
	if !pointsToSolesRatio.IsPositive() {
		pointsToSolesRatio = decimal.NewFromInt(DefaultPointsToSolesRatio)
	}
	return Rules{
		MaxTicketsPerEvent: maxTicketsPerEvent,
		PointValue:         decimal.NewFromInt(1).Div(pointsToSolesRatio),
	}
}

// RulesFromSettings overlays backend settings on fallback. Missing or
// invalid fields keep the fallback value.
func RulesFromSettings(settings *gateway.Settings, fallback Rules) Rules {
	if settings == nil {
		return fallback
	}
	rules := fallback
	if settings.MaxTicketsPerPurchase > 0 {
		rules.MaxTicketsPerEvent = settings.MaxTicketsPerPurchase
	}
	if settings.PointsToSolesRatio.IsPositive() {
		rules.PointValue = decimal.NewFromInt(1).Div(settings.PointsToSolesRatio)
	}
	return rules
}
