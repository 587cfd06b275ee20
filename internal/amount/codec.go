// Package amount converts a decimal price and size into the integer maker
// and taker amounts carried by a signed order.
package amount

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/LTOFFICIALUK/PolyTrade-sub000/internal/domain"
)

const (
	// Decimals is the base-unit precision of both collateral and outcome
	// tokens.
	Decimals = 6

	sizeDecimals     = 2
	notionalDecimals = 4
)

var scale = decimal.New(1, Decimals)

// ComputeAmounts returns the maker and taker legs for an order.
//
// BUY:  taker = floor(size, 2dp), maker = floor(taker*price, 4dp)
// SELL: maker = floor(size, 2dp), taker = floor(maker*price, 4dp)
//
// Both legs are then scaled by 10^6 and floored to integers. The quantity
// leg is truncated before the price-derived leg is computed from it. A leg
// may floor to zero; callers that refuse such orders check ComputedAmounts
// themselves.
func ComputeAmounts(side domain.OrderSide, price, size decimal.Decimal) (domain.ComputedAmounts, error) {
	if !price.IsPositive() {
		return domain.ComputedAmounts{}, domain.InvalidField("price", "must be positive, got %s", price)
	}
	if !size.IsPositive() {
		return domain.ComputedAmounts{}, domain.InvalidField("size", "must be positive, got %s", size)
	}

	qty := floor(size, sizeDecimals)
	notional := floor(qty.Mul(price), notionalDecimals)

	switch side {
	case domain.OrderSideBuy:
		return domain.ComputedAmounts{MakerAmount: ToUnits(notional).BigInt(), TakerAmount: ToUnits(qty).BigInt()}, nil
	case domain.OrderSideSell:
		return domain.ComputedAmounts{MakerAmount: ToUnits(qty).BigInt(), TakerAmount: ToUnits(notional).BigInt()}, nil
	default:
		return domain.ComputedAmounts{}, domain.InvalidField("side", "unknown side %q", side)
	}
}

// ToUnits scales d to base units, dropping any sub-unit remainder.
func ToUnits(d decimal.Decimal) decimal.Decimal {
	return d.Mul(scale).Floor()
}

// OnTick reports whether price is a whole multiple of tick and inside
// [tick, 1-tick].
func OnTick(price, tick decimal.Decimal) error {
	if !tick.IsPositive() {
		return nil
	}
	if price.LessThan(tick) || price.GreaterThan(decimal.NewFromInt(1).Sub(tick)) {
		return fmt.Errorf("price %s outside [%s, %s]", price, tick, decimal.NewFromInt(1).Sub(tick))
	}
	if !price.Mod(tick).IsZero() {
		return fmt.Errorf("price %s is not a multiple of tick %s", price, tick)
	}
	return nil
}

// floor drops digits past places. Only called with non-negative values.
func floor(d decimal.Decimal, places int32) decimal.Decimal {
	return d.Truncate(places)
}
