// Package ledger owns the paper account: balance, realized P&L and the
// closed-trade history. Only the execution engine mutates it.
package ledger

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/rustyeddy/pulse/market"
)

// DefaultBalance is the balance of a fresh paper account.
var DefaultBalance = decimal.NewFromInt(10000)

type Reason string

const (
	ReasonStop    Reason = "STOP"
	ReasonTarget  Reason = "TARGET"
	ReasonManual  Reason = "MANUAL"
	ReasonPartial Reason = "PARTIAL"
	ReasonKill    Reason = "KILL"
)

// TradeRecord is written once per closed trade and never modified.
type TradeRecord struct {
	ID         string          `json:"id"`
	Symbol     string          `json:"symbol"`
	Side       market.Side     `json:"side"`
	Qty        int64           `json:"qty"`
	EntryPrice decimal.Decimal `json:"entry"`
	ExitPrice  decimal.Decimal `json:"exit"`
	PnL        decimal.Decimal `json:"pnl"`
	Reason     Reason          `json:"reason"`
	OpenedAt   time.Time       `json:"openedAt"`
	Timestamp  time.Time       `json:"time"`
}

func (r TradeRecord) Win() bool { return r.PnL.IsPositive() }

type Account struct {
	Balance         decimal.Decimal `json:"balance"`
	StartingBalance decimal.Decimal `json:"startingBalance"`
	DayPnL          decimal.Decimal `json:"dayPnL"`
	TotalTrades     int             `json:"totalTrades"`
	WinningTrades   int             `json:"winningTrades"`
	Trades          []TradeRecord   `json:"trades"`
}

// NewAccount returns a fresh account funded with balance.
func NewAccount(balance decimal.Decimal) Account {
	return Account{
		Balance:         balance,
		StartingBalance: balance,
		DayPnL:          decimal.Zero,
		Trades:          []TradeRecord{},
	}
}

// PnL is the change since the account was funded. Capital tied up in an
// open position counts as spent until it is closed.
func (a Account) PnL() decimal.Decimal {
	return a.Balance.Sub(a.StartingBalance)
}

// PnLPercent is PnL relative to the starting balance, in percent.
func (a Account) PnLPercent() decimal.Decimal {
	if a.StartingBalance.IsZero() {
		return decimal.Zero
	}
	return a.PnL().Div(a.StartingBalance).Mul(decimal.NewFromInt(100))
}

// WinRate is the share of winning trades in percent, 0 with no trades.
func (a Account) WinRate() decimal.Decimal {
	if a.TotalTrades == 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(int64(a.WinningTrades)).
		Div(decimal.NewFromInt(int64(a.TotalTrades))).
		Mul(decimal.NewFromInt(100))
}

// Clone returns a deep copy so callers never alias the trade history.
func (a Account) Clone() Account {
	c := a
	c.Trades = make([]TradeRecord, len(a.Trades))
	copy(c.Trades, a.Trades)
	return c
}

// Equal compares accounts by value: decimals numerically, times as instants.
func (a Account) Equal(b Account) bool {
	if !a.Balance.Equal(b.Balance) || !a.StartingBalance.Equal(b.StartingBalance) || !a.DayPnL.Equal(b.DayPnL) {
		return false
	}
	if a.TotalTrades != b.TotalTrades || a.WinningTrades != b.WinningTrades || len(a.Trades) != len(b.Trades) {
		return false
	}
	for i := range a.Trades {
		if !a.Trades[i].Equal(b.Trades[i]) {
			return false
		}
	}
	return true
}

func (r TradeRecord) Equal(o TradeRecord) bool {
	return r.ID == o.ID &&
		r.Symbol == o.Symbol &&
		r.Side == o.Side &&
		r.Qty == o.Qty &&
		r.EntryPrice.Equal(o.EntryPrice) &&
		r.ExitPrice.Equal(o.ExitPrice) &&
		r.PnL.Equal(o.PnL) &&
		r.Reason == o.Reason &&
		r.OpenedAt.Equal(o.OpenedAt) &&
		r.Timestamp.Equal(o.Timestamp)
}
