package market

import (
	"errors"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// Tick is one inbound price update. Only Price is required; the quote
// fields are zero when the source does not provide them.
type Tick struct {
	Symbol  string          `json:"symbol,omitempty"`
	Price   decimal.Decimal `json:"price"`
	Bid     decimal.Decimal `json:"bid,omitempty"`
	Ask     decimal.Decimal `json:"ask,omitempty"`
	BidSize int64           `json:"bidSize,omitempty"`
	AskSize int64           `json:"askSize,omitempty"`
	Time    time.Time       `json:"time"`
}

var ErrNoTick = errors.New("price not found")

// Valid reports whether the tick carries a usable last price.
func (t Tick) Valid() bool {
	return t.Price.IsPositive()
}

func (t Tick) Mid() decimal.Decimal {
	if t.Bid.IsZero() || t.Ask.IsZero() {
		return t.Price
	}
	return t.Bid.Add(t.Ask).Div(decimal.NewFromInt(2))
}

func (t Tick) Spread() decimal.Decimal {
	if t.Bid.IsZero() || t.Ask.IsZero() {
		return decimal.Zero
	}
	return t.Ask.Sub(t.Bid)
}

// TickStore keeps the latest tick per symbol.
type TickStore struct {
	mu    sync.RWMutex
	ticks map[string]Tick
}

func NewTickStore() *TickStore {
	return &TickStore{ticks: make(map[string]Tick)}
}

func (ts *TickStore) Set(t Tick) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	ts.ticks[t.Symbol] = t
}

func (ts *TickStore) Get(symbol string) (Tick, error) {
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	t, ok := ts.ticks[symbol]
	if !ok {
		return Tick{}, ErrNoTick
	}
	return t, nil
}
