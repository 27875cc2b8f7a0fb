package sim

import (
	"math/rand"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rustyeddy/pulse/market"
)

// DefaultMaxSlippage is the largest per-share slippage applied to a fill.
var DefaultMaxSlippage = decimal.RequireFromString("0.02")

// Slippage returns a non-negative per-share amount. The engine applies it
// against the trader: buys fill higher, sells fill lower.
type Slippage interface {
	Amount() decimal.Decimal
}

type NoSlippage struct{}

func (NoSlippage) Amount() decimal.Decimal { return decimal.Zero }

// Fixed always slips by the same amount.
type Fixed decimal.Decimal

func (f Fixed) Amount() decimal.Decimal { return decimal.Decimal(f) }

// RandomSlippage draws uniformly from [0, Max], rounded to 1/100 cent.
type RandomSlippage struct {
	mu  sync.Mutex
	max decimal.Decimal
	rnd *rand.Rand
}

// NewRandomSlippage seeds from the clock when seed is 0.
func NewRandomSlippage(max decimal.Decimal, seed int64) *RandomSlippage {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &RandomSlippage{max: max, rnd: rand.New(rand.NewSource(seed))}
}

func (s *RandomSlippage) Amount() decimal.Decimal {
	s.mu.Lock()
	f := s.rnd.Float64()
	s.mu.Unlock()
	return s.max.Mul(decimal.NewFromFloat(f)).Round(4)
}

func fillPrice(side market.Side, last, slip decimal.Decimal) decimal.Decimal {
	if side == market.Sell {
		return last.Sub(slip)
	}
	return last.Add(slip)
}
