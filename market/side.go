package market

import (
	"fmt"
	"strings"
)

// Side is the direction of an order or position.
type Side string

const (
	Buy  Side = "BUY"
	Sell Side = "SELL"
)

// ParseSide accepts BUY/SELL and the long/short aliases, case-insensitive.
func ParseSide(s string) (Side, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "BUY", "LONG":
		return Buy, nil
	case "SELL", "SHORT":
		return Sell, nil
	}
	return "", fmt.Errorf("unknown side %q (want BUY|SELL)", s)
}

func (s Side) Valid() bool { return s == Buy || s == Sell }

// Sign is +1 for longs and -1 for shorts.
func (s Side) Sign() int64 {
	if s == Sell {
		return -1
	}
	return 1
}

func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

// Label is the position label shown next to the symbol.
func (s Side) Label() string {
	if s == Sell {
		return "SHORT"
	}
	return "LONG"
}
