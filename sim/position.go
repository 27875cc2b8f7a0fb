package sim

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/rustyeddy/pulse/market"
)

// Position is an open paper position. A zero Target means none was set.
type Position struct {
	ID          string          `json:"id"`
	Symbol      string          `json:"symbol"`
	Side        market.Side     `json:"side"`
	Qty         int64           `json:"qty"`
	OriginalQty int64           `json:"originalQty"`
	Entry       decimal.Decimal `json:"entry"`
	Stop        decimal.Decimal `json:"sl"`
	Target      decimal.Decimal `json:"tp"`
	OpenedAt    time.Time       `json:"openedAt"`
	Realized    decimal.Decimal `json:"realized"`
	LastPrice   decimal.Decimal `json:"lastPrice"`
	Unrealized  decimal.Decimal `json:"unrealized"`
}

func (p *Position) HasTarget() bool { return p.Target.IsPositive() }

// Committed is the capital debited for the remaining quantity.
func (p *Position) Committed() decimal.Decimal {
	return decimal.NewFromInt(p.Qty).Mul(p.Entry)
}

// mark revalues the position at price.
func (p *Position) mark(price decimal.Decimal) {
	p.LastPrice = price
	p.Unrealized = pnl(p.Side, p.Entry, price, p.Qty)
}
