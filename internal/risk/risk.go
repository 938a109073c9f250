// Package risk sizes orders and enforces per-trade guard-rails.
package risk

import "github.com/shopspring/decimal"

// Limits caps the notional of a single order. A zero cap disables the check.
type Limits struct {
	MaxNotionalPerTrade decimal.Decimal
}

func (l Limits) Allow(notional decimal.Decimal) bool {
	if !l.MaxNotionalPerTrade.IsPositive() {
		return true
	}
	return notional.LessThanOrEqual(l.MaxNotionalPerTrade)
}

// Sizer turns an account balance into an order quantity.
type Sizer struct {
	RiskFraction    decimal.Decimal
	MaxPositionSize decimal.Decimal
}

func NewSizer(riskFraction, maxPositionSize float64) Sizer {
	return Sizer{
		RiskFraction:    decimal.NewFromFloat(riskFraction),
		MaxPositionSize: decimal.NewFromFloat(maxPositionSize),
	}
}

// Size returns min(balance × risk fraction / price, max position size).
// Non-positive inputs size to zero.
func (s Sizer) Size(balance, price decimal.Decimal) decimal.Decimal {
	if !balance.IsPositive() || !price.IsPositive() || !s.RiskFraction.IsPositive() {
		return decimal.Zero
	}
	qty := balance.Mul(s.RiskFraction).Div(price)
	if s.MaxPositionSize.IsPositive() && qty.GreaterThan(s.MaxPositionSize) {
		return s.MaxPositionSize
	}
	return qty
}
