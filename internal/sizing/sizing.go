// Package sizing turns available cash and a price into an order quantity.
package sizing

import "github.com/shopspring/decimal"

const (
	StrategyFixedFraction         = "fixed_fraction"
	StrategyVolScaled             = "vol_scaled"
	StrategyFallbackFixedFraction = "fallback_fixed_fraction"

	qtyPlaces = 6
)

var minVolFactor = decimal.NewFromFloat(0.01)

// FixedFraction spends fraction of cash at price. Non-positive inputs size to zero.
func FixedFraction(cash, fraction, price decimal.Decimal) decimal.Decimal {
	if !price.IsPositive() || !fraction.IsPositive() || !cash.IsPositive() {
		return decimal.Zero
	}
	return cash.Mul(fraction).Div(price).Round(qtyPlaces)
}

// VolScaled shrinks a fixed-fraction position by the volatility proxy
// relative to price, floored at 1%. Without a proxy it falls back to
// FixedFraction and says so in the returned label.
func VolScaled(price decimal.Decimal, volProxy *decimal.Decimal, fraction, cash decimal.Decimal) (decimal.Decimal, string) {
	if volProxy == nil || volProxy.IsZero() {
		return FixedFraction(cash, fraction, price), StrategyFallbackFixedFraction
	}
	if !price.IsPositive() || !fraction.IsPositive() || !cash.IsPositive() {
		return decimal.Zero, StrategyVolScaled
	}
	volFactor := volProxy.Abs().Div(price)
	if volFactor.LessThan(minVolFactor) {
		volFactor = minVolFactor
	}
	qty := cash.Mul(fraction).Mul(decimal.NewFromInt(1).Sub(volFactor)).Div(price).Round(qtyPlaces)
	if qty.IsNegative() {
		return decimal.Zero, StrategyVolScaled
	}
	return qty, StrategyVolScaled
}
