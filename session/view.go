package session

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/rustyeddy/pulse/arming"
	"github.com/rustyeddy/pulse/ledger"
	"github.com/rustyeddy/pulse/market"
	"github.com/rustyeddy/pulse/risk"
	"github.com/rustyeddy/pulse/signal"
	"github.com/rustyeddy/pulse/sim"
)

// AccountView is the account plus the figures derived from it.
type AccountView struct {
	ledger.Account
	PnL        decimal.Decimal `json:"pnl"`
	PnLPercent decimal.Decimal `json:"pnlPercent"`
	WinRate    decimal.Decimal `json:"winRate"`
	Committed  decimal.Decimal `json:"committed"`
	Unrealized decimal.Decimal `json:"unrealized"`
	Equity     decimal.Decimal `json:"equity"`
}

// View is everything the desk shows at one instant.
type View struct {
	ID        string            `json:"id"`
	StartedAt time.Time         `json:"startedAt"`
	Symbol    string            `json:"symbol"`
	Arming    arming.State      `json:"arming"`
	AutoExec  bool              `json:"autoExec"`
	Ticket    Ticket            `json:"ticket"`
	Sizing    risk.Result       `json:"sizing"`
	Position  *sim.Position     `json:"position"`
	Account   AccountView       `json:"account"`
	LastTick  *market.Tick      `json:"lastTick,omitempty"`
	Signals   []signal.Snapshot `json:"signals,omitempty"`
}

func (s *Session) Snapshot() View {
	s.mu.Lock()
	defer s.mu.Unlock()

	acct := s.engine.Account()
	eq := s.engine.Equity()
	v := View{
		ID:        s.id,
		StartedAt: s.started,
		Symbol:    s.symbol,
		Arming:    s.arm.State(),
		AutoExec:  s.trigger.Enabled(),
		Ticket:    s.ticket,
		Account: AccountView{
			Account:    acct,
			PnL:        acct.PnL(),
			PnLPercent: acct.PnLPercent(),
			WinRate:    acct.WinRate(),
			Committed:  eq.Committed,
			Unrealized: eq.Unrealized,
			Equity:     eq.Equity,
		},
	}

	side := market.Buy
	if pos, ok := s.engine.Position(s.symbol); ok {
		v.Position = &pos
		side = pos.Side
	}
	v.Sizing = s.sizingLocked(side, decimal.Zero)
	if tick, err := s.engine.LastTick(s.symbol); err == nil {
		v.LastTick = &tick
	}
	if s.signals != nil {
		v.Signals = s.signals.Snapshots()
	}
	return v
}
