package market

import (
	"time"

	"github.com/shopspring/decimal"
)

type Candle struct {
	Symbol string
	Time   time.Time

	Open  decimal.Decimal
	High  decimal.Decimal
	Low   decimal.Decimal
	Close decimal.Decimal

	Volume int64
}

// Extend folds a price into the candle, opening it when empty.
func (c *Candle) Extend(p decimal.Decimal, size int64) {
	if c.Open.IsZero() {
		c.Open, c.High, c.Low, c.Close = p, p, p, p
		c.Volume = size
		return
	}
	if p.GreaterThan(c.High) {
		c.High = p
	}
	if p.LessThan(c.Low) {
		c.Low = p
	}
	c.Close = p
	c.Volume += size
}
