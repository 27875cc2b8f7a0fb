// Package journal is the append-only audit trail of the paper account:
// one row per closed trade and one equity snapshot per account change.
// It is a record for review, the ledger stays the source of truth.
package journal

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/rustyeddy/pulse/ledger"
)

// EquitySnapshot is the account as seen right after a fill or an exit.
type EquitySnapshot struct {
	Time       time.Time
	Balance    decimal.Decimal
	Committed  decimal.Decimal // capital held by open positions at entry
	Unrealized decimal.Decimal
	Equity     decimal.Decimal // Balance + Committed + Unrealized
	DayPnL     decimal.Decimal
}

type Journal interface {
	RecordTrade(ledger.TradeRecord) error
	RecordEquity(EquitySnapshot) error
	Close() error
}

// Nop discards everything.
type Nop struct{}

func (Nop) RecordTrade(ledger.TradeRecord) error { return nil }
func (Nop) RecordEquity(EquitySnapshot) error { return nil }
func (Nop) Close() error { return nil }
