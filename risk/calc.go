package risk

import (
	"github.com/shopspring/decimal"

	"github.com/rustyeddy/pulse/market"
)

// PerShare is the loss per share if the stop is hit. It is signed: a stop
// on the wrong side of entry yields a value <= 0.
func PerShare(side market.Side, entry, stop decimal.Decimal) decimal.Decimal {
	if side == market.Sell {
		return stop.Sub(entry)
	}
	return entry.Sub(stop)
}

// Reward is the gain per share if the target is hit, signed like PerShare.
func Reward(side market.Side, entry, target decimal.Decimal) decimal.Decimal {
	if side == market.Sell {
		return entry.Sub(target)
	}
	return target.Sub(entry)
}

// PlannedRisk computes the absolute dollar risk of qty shares if the stop is hit.
func PlannedRisk(qty int64, entry, stop decimal.Decimal) decimal.Decimal {
	return entry.Sub(stop).Abs().Mul(decimal.NewFromInt(qty))
}

// RR returns reward/risk for a bracket, zero when risk is zero.
func RR(entry, stop, target decimal.Decimal) decimal.Decimal {
	r := entry.Sub(stop).Abs()
	if r.IsZero() {
		return decimal.Zero
	}
	return target.Sub(entry).Abs().Div(r)
}

// FormatRatio renders a reward:risk ratio the way the order ticket shows it.
func FormatRatio(rr decimal.Decimal) string {
	return "1:" + rr.StringFixed(1)
}
