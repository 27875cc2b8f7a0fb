package feed

import (
	"context"
	"math/rand"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rustyeddy/pulse/market"
)

var (
	DefaultSyntheticBase = decimal.NewFromInt(150)
	syntheticSpread      = decimal.RequireFromString("0.01")
	syntheticFloor       = decimal.RequireFromString("0.05")
)

// Synthetic is a random walk used when no live feed is available. Each
// step moves the price by up to Step/2 either way.
type Synthetic struct {
	Base     decimal.Decimal
	Step     decimal.Decimal
	Interval time.Duration
	Seed     int64
	Now      func() time.Time
}

// NewSynthetic starts somewhere in [base, base+20), as the terminal's
// mock prices did. A zero seed seeds from the clock.
func NewSynthetic(base decimal.Decimal, seed int64) *Synthetic {
	if !base.IsPositive() {
		base = DefaultSyntheticBase
	}
	return &Synthetic{
		Base:     base,
		Step:     decimal.RequireFromString("0.5"),
		Interval: 500 * time.Millisecond,
		Seed:     seed,
		Now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *Synthetic) Run(ctx context.Context, symbol string, emit func(market.Tick)) error {
	seed := s.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rnd := rand.New(rand.NewSource(seed))
	walk := s.walker(rnd)

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			t := walk()
			t.Symbol = symbol
			t.Time = s.Now()
			emit(t)
		}
	}
}

// walker returns the price generator. Split out so tests can step it
// without a ticker.
func (s *Synthetic) walker(rnd *rand.Rand) func() market.Tick {
	price := s.Base.Add(decimal.NewFromFloat(rnd.Float64() * 20)).Round(2)
	step, _ := s.Step.Float64()
	return func() market.Tick {
		delta := decimal.NewFromFloat((rnd.Float64() - 0.5) * step)
		price = price.Add(delta).Round(2)
		if price.LessThan(syntheticFloor) {
			price = syntheticFloor
		}
		return market.Tick{
			Price:   price,
			Bid:     price.Sub(syntheticSpread),
			Ask:     price.Add(syntheticSpread),
			BidSize: rnd.Int63n(500) + 100,
			AskSize: rnd.Int63n(500) + 100,
		}
	}
}
