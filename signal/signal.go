// Package signal turns ticks into trend signals. Ticks are folded into
// candles per timeframe and each closed candle drives a UT Bot trailing
// stop; a flip of the trailing stop is a signal.
package signal

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rustyeddy/pulse/market"
)

type Direction string

const (
	Up   Direction = "up"
	Down Direction = "down"
)

// ParseDirection also accepts the BUY/SELL and long/short spellings
// webhook senders tend to use.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "up", "buy", "long", "bull", "bullish":
		return Up, nil
	case "down", "sell", "short", "bear", "bearish":
		return Down, nil
	}
	return "", fmt.Errorf("unknown signal direction %q", s)
}

func (d Direction) Valid() bool { return d == Up || d == Down }

// Side is the order side a signal asks for.
func (d Direction) Side() market.Side {
	if d == Down {
		return market.Sell
	}
	return market.Buy
}

// Signal is a trend change for one symbol and timeframe. Stop and Price
// are zero when the source did not provide them.
type Signal struct {
	Symbol    string          `json:"symbol"`
	Timeframe string          `json:"timeframe"`
	Direction Direction       `json:"direction"`
	Stop      decimal.Decimal `json:"stop"`
	Price     decimal.Decimal `json:"price"`
	Time      time.Time       `json:"time"`
	Source    string          `json:"source,omitempty"`
}

// Validate checks the fields every consumer relies on.
func (s Signal) Validate() error {
	if s.Symbol == "" {
		return fmt.Errorf("signal: missing symbol")
	}
	if !s.Direction.Valid() {
		return fmt.Errorf("signal: invalid direction %q", s.Direction)
	}
	if _, err := market.ParseTimeframe(s.Timeframe); err != nil {
		return fmt.Errorf("signal: %w", err)
	}
	if s.Stop.IsNegative() {
		return fmt.Errorf("signal: negative stop")
	}
	return nil
}
