package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var ErrResetNotConfirmed = errors.New("reset requires confirmation")

// Ledger wraps the account with persistence. Every mutating call saves
// the whole account before it returns.
type Ledger struct {
	mu       sync.Mutex
	acct     Account
	store    Store
	starting decimal.Decimal
	log      *zap.Logger
}

type Option func(*Ledger)

// WithStartingBalance overrides DefaultBalance for new and reset accounts.
func WithStartingBalance(b decimal.Decimal) Option {
	return func(l *Ledger) { l.starting = b }
}

func WithLogger(log *zap.Logger) Option {
	return func(l *Ledger) {
		if log != nil {
			l.log = log
		}
	}
}

func New(store Store, opts ...Option) *Ledger {
	l := &Ledger{
		store:    store,
		starting: DefaultBalance,
		log:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.acct = NewAccount(l.starting)
	return l
}

// Load replaces the in-memory account with the persisted one. A missing or
// unreadable record falls back to a default account; that is logged but
// never returned to the caller.
func (l *Ledger) Load(ctx context.Context) Account {
	l.mu.Lock()
	defer l.mu.Unlock()

	data, err := l.store.Load(ctx)
	switch {
	case errors.Is(err, ErrNotFound):
		l.log.Info("no saved paper account, using default", zap.String("balance", l.starting.StringFixed(2)))
		l.acct = NewAccount(l.starting)
		return l.acct.Clone()
	case err != nil:
		l.log.Warn("could not load account, using default", zap.Error(err))
		l.acct = NewAccount(l.starting)
		return l.acct.Clone()
	}

	var acct Account
	if err := json.Unmarshal(data, &acct); err != nil {
		l.log.Warn("could not decode account, using default", zap.Error(err))
		l.acct = NewAccount(l.starting)
		return l.acct.Clone()
	}
	if acct.Trades == nil {
		acct.Trades = []TradeRecord{}
	}
	l.acct = acct
	l.log.Info("loaded paper account",
		zap.String("balance", acct.Balance.StringFixed(2)),
		zap.Int("trades", acct.TotalTrades))
	return l.acct.Clone()
}

// Save persists the current account.
func (l *Ledger) Save(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.saveLocked(ctx)
}

func (l *Ledger) saveLocked(ctx context.Context) error {
	data, err := json.Marshal(l.acct)
	if err != nil {
		return fmt.Errorf("%w: encode account: %v", ErrPersistence, err)
	}
	if err := l.store.Save(ctx, data); err != nil {
		l.log.Error("save account failed", zap.Error(err))
		return fmt.Errorf("%w: save account: %v", ErrPersistence, err)
	}
	return nil
}

// Snapshot returns a copy of the account.
func (l *Ledger) Snapshot() Account {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.acct.Clone()
}

func (l *Ledger) Balance() decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.acct.Balance
}

// Debit removes capital committed to a fill.
func (l *Ledger) Debit(ctx context.Context, amount decimal.Decimal) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.acct.Balance = l.acct.Balance.Sub(amount)
	return l.saveLocked(ctx)
}

// Settle returns capital plus P&L from a closed slice of a position and
// books the P&L into the day total. It does not touch the trade history.
func (l *Ledger) Settle(ctx context.Context, capital, pnl decimal.Decimal) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.acct.Balance = l.acct.Balance.Add(capital).Add(pnl)
	l.acct.DayPnL = l.acct.DayPnL.Add(pnl)
	return l.saveLocked(ctx)
}

// SettleAndRecord is Settle followed by appending rec to the history and
// updating the trade counters, persisted once.
func (l *Ledger) SettleAndRecord(ctx context.Context, capital, pnl decimal.Decimal, rec TradeRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.acct.Balance = l.acct.Balance.Add(capital).Add(pnl)
	l.acct.DayPnL = l.acct.DayPnL.Add(pnl)
	l.acct.TotalTrades++
	if rec.Win() {
		l.acct.WinningTrades++
	}
	l.acct.Trades = append(l.acct.Trades, rec)
	return l.saveLocked(ctx)
}

// RollDay starts a new trading day.
func (l *Ledger) RollDay(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.acct.DayPnL.IsZero() {
		return nil
	}
	l.acct.DayPnL = decimal.Zero
	return l.saveLocked(ctx)
}

// Reset restores the default account. It is irreversible, so the caller
// must pass confirm=true. Open positions are the caller's problem.
func (l *Ledger) Reset(ctx context.Context, confirm bool) error {
	if !confirm {
		return ErrResetNotConfirmed
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.acct = NewAccount(l.starting)
	l.log.Info("paper account reset", zap.String("balance", l.starting.StringFixed(2)))
	return l.saveLocked(ctx)
}
