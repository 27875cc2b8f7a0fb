package sim

import (
	"github.com/shopspring/decimal"

	"github.com/rustyeddy/pulse/ledger"
	"github.com/rustyeddy/pulse/market"
)

func hitStop(p *Position, price decimal.Decimal) bool {
	if !p.Stop.IsPositive() {
		return false
	}
	if p.Side == market.Buy {
		return price.LessThanOrEqual(p.Stop)
	}
	return price.GreaterThanOrEqual(p.Stop)
}

func hitTarget(p *Position, price decimal.Decimal) bool {
	if !p.HasTarget() {
		return false
	}
	if p.Side == market.Buy {
		return price.GreaterThanOrEqual(p.Target)
	}
	return price.LessThanOrEqual(p.Target)
}

// exitReason decides whether price closes p. The stop is checked first so
// a tick that crosses both levels is booked as a loss.
func exitReason(p *Position, price decimal.Decimal) (ledger.Reason, bool) {
	switch {
	case hitStop(p, price):
		return ledger.ReasonStop, true
	case hitTarget(p, price):
		return ledger.ReasonTarget, true
	}
	return "", false
}
