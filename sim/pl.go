package sim

import (
	"github.com/shopspring/decimal"

	"github.com/rustyeddy/pulse/market"
)

// pnl is the profit of qty shares entered at entry and valued at exit.
// Longs profit when price rises, shorts when it falls.
func pnl(side market.Side, entry, exit decimal.Decimal, qty int64) decimal.Decimal {
	diff := exit.Sub(entry)
	if side == market.Sell {
		diff = diff.Neg()
	}
	return diff.Mul(decimal.NewFromInt(qty))
}

// capitalFor is what a fill of qty at price debits from the balance.
func capitalFor(qty int64, price decimal.Decimal) decimal.Decimal {
	return decimal.NewFromInt(qty).Mul(price)
}
