package signal

import (
	"github.com/shopspring/decimal"

	"github.com/rustyeddy/pulse/market"
)

type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
	ActionHold Action = "HOLD"
)

type Trend string

const (
	Flat  Trend = "FLAT"
	Long  Trend = "LONG"
	Short Trend = "SHORT"
)

// Decision is the UT Bot output for one candle. Stop is rounded to cents.
type Decision struct {
	Action Action          `json:"action"`
	Stop   decimal.Decimal `json:"stop"`
	Price  decimal.Decimal `json:"price"`
	Trend  Trend           `json:"trend"`
	Reason string          `json:"reason"`
}

// UTBot keeps an ATR trailing stop that only ratchets in the trend's
// favour. When a close crosses it the trend flips and the stop is reset
// one ATR distance on the other side.
type UTBot struct {
	atr   *ATR
	mult  decimal.Decimal
	trend Trend
	stop  decimal.Decimal
}

const (
	DefaultATRPeriod  = 10
	DefaultMultiplier = 1.0
)

func NewUTBot(atrPeriod int, multiplier float64) *UTBot {
	if atrPeriod <= 0 {
		atrPeriod = DefaultATRPeriod
	}
	if multiplier <= 0 {
		multiplier = DefaultMultiplier
	}
	return &UTBot{
		atr:   NewATR(atrPeriod),
		mult:  decimal.NewFromFloat(multiplier),
		trend: Flat,
	}
}

func (u *UTBot) Trend() Trend { return u.trend }

func (u *UTBot) Reset() {
	u.atr.Reset()
	u.trend = Flat
	u.stop = decimal.Zero
}

// Process consumes a closed candle.
func (u *UTBot) Process(c market.Candle) Decision {
	u.atr.Update(c)
	px := c.Close

	if !u.atr.Ready() {
		return Decision{Action: ActionHold, Price: px, Trend: u.trend, Reason: "warming up"}
	}

	dist := u.atr.Value().Mul(u.mult)

	if u.trend == Flat {
		u.stop = px.Sub(dist)
		u.trend = Long
		return u.decision(ActionHold, px, "init")
	}

	action := ActionHold
	switch u.trend {
	case Long:
		u.stop = decimal.Max(u.stop, px.Sub(dist))
		if px.LessThan(u.stop) {
			u.trend = Short
			u.stop = px.Add(dist)
			action = ActionSell
		}
	case Short:
		u.stop = decimal.Min(u.stop, px.Add(dist))
		if px.GreaterThan(u.stop) {
			u.trend = Long
			u.stop = px.Sub(dist)
			action = ActionBuy
		}
	}

	reason := "trail"
	if action != ActionHold {
		reason = "flip"
	}
	return u.decision(action, px, reason)
}

func (u *UTBot) decision(a Action, price decimal.Decimal, reason string) Decision {
	return Decision{Action: a, Stop: u.stop.Round(2), Price: price, Trend: u.trend, Reason: reason}
}
