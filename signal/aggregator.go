package signal

import (
	"time"

	"github.com/rustyeddy/pulse/market"
)

// Aggregator folds ticks into fixed-width candles aligned to the
// timeframe. A candle is returned once the first tick of the next bucket
// arrives; a tick older than the open candle is folded into it.
type Aggregator struct {
	tf  time.Duration
	cur *market.Candle
}

func NewAggregator(tf time.Duration) *Aggregator {
	return &Aggregator{tf: tf}
}

func (a *Aggregator) Timeframe() time.Duration { return a.tf }

// Add returns the candle closed by t, if any.
func (a *Aggregator) Add(t market.Tick) (market.Candle, bool) {
	bucket := t.Time.Truncate(a.tf)

	if a.cur == nil {
		a.open(t, bucket)
		return market.Candle{}, false
	}
	if !bucket.After(a.cur.Time) {
		a.cur.Extend(t.Price, t.BidSize+t.AskSize)
		return market.Candle{}, false
	}

	closed := *a.cur
	a.open(t, bucket)
	return closed, true
}

// Current is the candle still being built.
func (a *Aggregator) Current() (market.Candle, bool) {
	if a.cur == nil {
		return market.Candle{}, false
	}
	return *a.cur, true
}

func (a *Aggregator) open(t market.Tick, bucket time.Time) {
	c := &market.Candle{Symbol: t.Symbol, Time: bucket}
	c.Extend(t.Price, t.BidSize+t.AskSize)
	a.cur = c
}
