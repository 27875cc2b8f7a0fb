package signal

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/rustyeddy/pulse/market"
)

// Indicator is a streaming value computed from closed candles.
type Indicator interface {
	Name() string
	// Warmup is the number of candles needed before Ready can be true.
	Warmup() int
	Reset()
	Update(c market.Candle)
	Ready() bool
}

// ATR is the average true range over the last period candles, as a plain
// mean rather than Wilder's smoothing.
type ATR struct {
	period  int
	prev    market.Candle
	hasPrev bool
	ranges  []decimal.Decimal
	next    int
	filled  int
}

func NewATR(period int) *ATR {
	if period < 1 {
		period = 1
	}
	return &ATR{period: period, ranges: make([]decimal.Decimal, period)}
}

func (a *ATR) Name() string { return fmt.Sprintf("ATR(%d)", a.period) }

// Warmup is period+1: the first candle only provides a previous close.
func (a *ATR) Warmup() int { return a.period + 1 }

func (a *ATR) Reset() {
	a.hasPrev = false
	a.next = 0
	a.filled = 0
}

func (a *ATR) Update(c market.Candle) {
	if !a.hasPrev {
		a.prev = c
		a.hasPrev = true
		return
	}
	a.ranges[a.next] = trueRange(c, a.prev)
	a.next = (a.next + 1) % a.period
	if a.filled < a.period {
		a.filled++
	}
	a.prev = c
}

func (a *ATR) Ready() bool { return a.filled >= a.period }

func (a *ATR) Value() decimal.Decimal {
	if !a.Ready() {
		return decimal.Zero
	}
	sum := decimal.Zero
	for _, r := range a.ranges {
		sum = sum.Add(r)
	}
	return sum.Div(decimal.NewFromInt(int64(a.period)))
}

func trueRange(cur, prev market.Candle) decimal.Decimal {
	hl := cur.High.Sub(cur.Low)
	hc := cur.High.Sub(prev.Close).Abs()
	lc := cur.Low.Sub(prev.Close).Abs()
	return decimal.Max(hl, hc, lc)
}
