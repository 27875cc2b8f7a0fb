// Package session is the single-operator trading desk: one active
// symbol, one order ticket and the controls around the engine. Every
// entry point (ticks, signals, HTTP commands, the scheduler) runs under
// one lock, so the engine sees one logical thread of commands.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rustyeddy/pulse/arming"
	"github.com/rustyeddy/pulse/autoexec"
	"github.com/rustyeddy/pulse/events"
	"github.com/rustyeddy/pulse/ledger"
	"github.com/rustyeddy/pulse/market"
	"github.com/rustyeddy/pulse/risk"
	"github.com/rustyeddy/pulse/signal"
	"github.com/rustyeddy/pulse/sim"
)

type Config struct {
	Symbol        string
	Ticket        Ticket
	TrailFraction decimal.Decimal
}

// Deps are the collaborators a session drives. Signals may be nil when
// signal generation is off.
type Deps struct {
	Engine    *sim.Engine
	Ledger    *ledger.Ledger
	Arming    *arming.Machine
	Trigger   *autoexec.Trigger
	Signals   *signal.Generator
	Publisher events.Publisher
	Logger    *zap.Logger
}

type Session struct {
	mu      sync.Mutex
	id      string
	started time.Time
	symbol  string
	ticket  Ticket
	trail   decimal.Decimal

	engine  *sim.Engine
	ledger  *ledger.Ledger
	arm     *arming.Machine
	trigger *autoexec.Trigger
	signals *signal.Generator
	pub     events.Publisher
	log     *zap.Logger
}

func New(cfg Config, deps Deps) *Session {
	s := &Session{
		id:      uuid.NewString(),
		started: time.Now().UTC(),
		symbol:  strings.ToUpper(strings.TrimSpace(cfg.Symbol)),
		ticket:  cfg.Ticket,
		trail:   cfg.TrailFraction,
		engine:  deps.Engine,
		ledger:  deps.Ledger,
		arm:     deps.Arming,
		trigger: deps.Trigger,
		signals: deps.Signals,
		pub:     deps.Publisher,
		log:     deps.Logger,
	}
	if s.pub == nil {
		s.pub = events.Nop{}
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	if !s.trail.IsPositive() {
		s.trail = sim.DefaultTrail
	}
	s.log = s.log.With(zap.String("session", s.id))

	// Observers run inside whichever call changed the state, which may
	// already hold s.mu; they only publish.
	s.arm.OnChange(s.onArming)
	return s
}

func (s *Session) ID() string { return s.id }

func (s *Session) Symbol() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.symbol
}

// SetSymbol switches the active symbol. It is refused while the current
// symbol has an open position.
func (s *Session) SetSymbol(symbol string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return s.fail("set symbol", fmt.Errorf("set symbol: %w: empty", ErrInvalidSymbol))
	}
	if symbol == s.symbol {
		return nil
	}
	if _, open := s.engine.Position(s.symbol); open {
		return s.fail("set symbol", fmt.Errorf("set symbol: %s: %w", s.symbol, sim.ErrPositionOpen))
	}

	s.symbol = symbol
	if s.signals != nil {
		s.signals.SetSymbol(symbol)
	}
	s.log.Info("active symbol changed", zap.String("symbol", symbol))
	s.toast(events.Info, "Symbol set to "+symbol)
	return nil
}

func (s *Session) Ticket() Ticket {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ticket
}

// SetTicket replaces the ticket and returns the sizing it produces.
func (s *Session) SetTicket(t Ticket) (risk.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := t.Validate(); err != nil {
		return risk.Result{}, s.fail("set ticket", err)
	}
	s.ticket = t
	return s.sizingLocked(market.Buy, decimal.Zero), nil
}

// Sizing is the live position-size preview for side.
func (s *Session) Sizing(side market.Side) risk.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sizingLocked(side, decimal.Zero)
}

func (s *Session) sizingLocked(side market.Side, stopOverride decimal.Decimal) risk.Result {
	in := risk.Inputs{
		Side:       side,
		RiskAmount: s.ticket.RiskAmount,
		Stop:       s.ticket.Stop,
		Target:     s.ticket.Target,
		Balance:    s.engine.Account().Balance,
	}
	if stopOverride.IsPositive() {
		in.Stop = stopOverride
	}
	if tick, err := s.engine.LastTick(s.symbol); err == nil {
		in.Price = tick.Price
	}
	return risk.Size(in)
}

// orderLocked sizes an order from the ticket. The target is only passed
// on when it sits on the profitable side.
func (s *Session) orderLocked(side market.Side, stopOverride decimal.Decimal) (sim.OrderRequest, error) {
	res := s.sizingLocked(side, stopOverride)
	if !res.Valid {
		codes := make([]string, 0, len(res.Violations))
		for _, v := range res.Violations {
			codes = append(codes, v.Code)
		}
		return sim.OrderRequest{}, fmt.Errorf("size order: %w (%s)", sim.ErrInvalidSize, strings.Join(codes, ","))
	}

	req := sim.OrderRequest{
		Symbol:   s.symbol,
		Side:     side,
		Quantity: res.Quantity,
		Stop:     s.ticket.Stop,
	}
	if stopOverride.IsPositive() {
		req.Stop = stopOverride
	}
	if res.RewardPerShare.IsPositive() {
		req.Target = s.ticket.Target
	}
	return req, nil
}

// SubmitOrder sizes and sends a market order for the active symbol.
func (s *Session) SubmitOrder(ctx context.Context, side market.Side) (sim.Fill, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !side.Valid() {
		return sim.Fill{}, s.fail("submit order", fmt.Errorf("submit order: %w %q", sim.ErrInvalidSide, side))
	}
	// Same precedence the desk always had: arming, then an open
	// position, then the size.
	if !s.arm.Armed() {
		return sim.Fill{}, s.fail("submit order", fmt.Errorf("submit order: %w", sim.ErrNotArmed))
	}
	if _, open := s.engine.Position(s.symbol); open {
		return sim.Fill{}, s.fail("submit order", fmt.Errorf("submit order: %s: %w", s.symbol, sim.ErrPositionOpen))
	}
	req, err := s.orderLocked(side, decimal.Zero)
	if err != nil {
		return sim.Fill{}, s.fail("submit order", err)
	}

	fill, err := s.engine.SubmitOrder(ctx, req)
	if fill.PositionID == "" {
		return fill, s.fail("submit order", err)
	}
	s.toast(events.Success, fmt.Sprintf("✅ %s %d %s @ %s", fill.Side, fill.Qty, fill.Symbol, money(fill.Price)))
	if err != nil {
		s.fail("submit order", err)
	}
	return fill, err
}

// ClosePosition flattens the active symbol. With nothing open it only
// warns.
func (s *Session) ClosePosition(ctx context.Context) (*ledger.TradeRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeLocked(ctx, ledger.ReasonManual)
}

func (s *Session) closeLocked(ctx context.Context, reason ledger.Reason) (*ledger.TradeRecord, error) {
	if _, open := s.engine.Position(s.symbol); !open {
		s.toast(events.Warning, "No position to flatten")
		return nil, nil
	}
	rec, err := s.engine.ClosePosition(ctx, s.symbol, reason)
	if rec != nil {
		s.closedToast(*rec)
	}
	if err != nil {
		s.fail("close position", err)
	}
	return rec, err
}

// ClosePartial closes pct percent (0 < pct <= 100) of the position.
func (s *Session) ClosePartial(ctx context.Context, pct decimal.Decimal) (sim.PartialFill, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pf, err := s.engine.ClosePartial(ctx, s.symbol, pct.Div(decimal.NewFromInt(100)))
	if pf.Qty == 0 {
		return pf, s.fail("close partial", err)
	}
	s.toast(pnlSeverity(pf.PnL), fmt.Sprintf("✅ Closed %d for %s", pf.Qty, signedMoney(pf.PnL)))
	if err != nil {
		s.fail("close partial", err)
	}
	return pf, err
}

// MoveStopToBreakeven moves the stop to the entry price. When the market
// is already through the entry the next tick will stop the position out;
// that is allowed but called out.
func (s *Session) MoveStopToBreakeven(ctx context.Context) (sim.Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pos, err := s.engine.MoveStopToBreakeven(ctx, s.symbol)
	if err != nil {
		return pos, s.fail("breakeven", err)
	}
	s.toast(events.Success, "✅ Stop moved to BE: "+money(pos.Stop))

	if tick, err := s.engine.LastTick(s.symbol); err == nil {
		through := (pos.Side == market.Buy && tick.Price.LessThanOrEqual(pos.Entry)) ||
			(pos.Side == market.Sell && tick.Price.GreaterThanOrEqual(pos.Entry))
		if through {
			s.toast(events.Warning, "Price is through entry - next tick will stop out")
		}
	}
	return pos, nil
}

// TrailStop tightens the stop to the configured distance from the last
// price. A proposal that would loosen the stop is skipped with a warning.
func (s *Session) TrailStop(ctx context.Context) (sim.TrailResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.engine.TrailStop(ctx, s.symbol, s.trail)
	if err != nil {
		return res, s.fail("trail stop", err)
	}
	switch {
	case res.Applied && res.Side == market.Buy:
		s.toast(events.Success, "📈 Stop trailed to "+money(res.Proposed))
	case res.Applied:
		s.toast(events.Success, "📉 Stop trailed to "+money(res.Proposed))
	case res.Side == market.Buy:
		s.toast(events.Warning, "Trail would lower stop - skipped")
	default:
		s.toast(events.Warning, "Trail would raise stop - skipped")
	}
	return res, nil
}

func (s *Session) ResetAccount(ctx context.Context, confirm bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.engine.ResetAccount(ctx, confirm)
	switch {
	case errors.Is(err, sim.ErrPositionOpen):
		s.toast(events.Warning, "⚠️ Close the open position before resetting")
		return err
	case err != nil && !errors.Is(err, ledger.ErrPersistence):
		return s.fail("reset account", err)
	}
	s.toast(events.Info, "🔄 Account reset to "+wholeMoney(s.engine.Account().StartingBalance))
	if err != nil {
		s.fail("reset account", err)
	}
	return err
}

func (s *Session) ToggleStaged() arming.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.arm.ToggleStaged()
}

func (s *Session) ToggleArm() (arming.State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, err := s.arm.ToggleArm()
	if err != nil {
		return st, s.fail("toggle arm", err)
	}
	return st, nil
}

// Disarm drops to DISARMED from any state and leaves positions open.
func (s *Session) Disarm() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.arm.Disarm()
}

// KillSwitch flattens everything and disarms, whatever the arming state.
func (s *Session) KillSwitch(ctx context.Context) ([]ledger.TradeRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	recs, err := s.engine.Kill(ctx)
	for _, r := range recs {
		s.closedToast(r)
	}
	if len(recs) == 0 {
		s.toast(events.Warning, "🛑 KILL SWITCH - nothing to flatten")
	} else {
		s.toast(events.Warning, "🛑 KILL SWITCH - Position flattened")
	}
	if err != nil {
		s.fail("kill switch", err)
	}
	return recs, err
}

func (s *Session) SetAutoExec(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trigger.SetEnabled(on)
	if on {
		s.toast(events.Warning, "🤖 Auto-execution ON")
	} else {
		s.toast(events.Info, "Auto-execution OFF")
	}
}

// RollDay starts a new trading day for the day P&L.
func (s *Session) RollDay(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ledger.RollDay(ctx); err != nil {
		return s.fail("roll day", err)
	}
	s.pub.Publish(events.New(events.KindAccount, s.engine.Account()))
	s.log.Info("trading day rolled")
	return nil
}

// HandleTick processes a price update. Ticks without a symbol belong to
// the active symbol. Failures are logged and toasted, never returned.
func (s *Session) HandleTick(ctx context.Context, t market.Tick) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t.Symbol == "" {
		t.Symbol = s.symbol
	}
	m, err := s.engine.UpdatePrice(ctx, t)
	if err != nil && m.Exit == nil {
		s.log.Warn("tick dropped", zap.String("symbol", t.Symbol), zap.Error(err))
		return
	}
	if t.Symbol == s.symbol {
		s.pub.Publish(events.New(events.KindTick, t))
	}

	if m.Exit != nil {
		switch m.Exit.Reason {
		case ledger.ReasonStop:
			s.toast(events.Error, "🛑 STOP LOSS HIT")
		case ledger.ReasonTarget:
			s.toast(events.Success, "🎯 TAKE PROFIT HIT")
		}
		s.closedToast(*m.Exit)
		if err != nil {
			s.fail("exit", err)
		}
	}

	if s.signals == nil {
		return
	}
	for _, sig := range s.signals.OnTick(t) {
		s.handleSignalLocked(ctx, sig)
	}
}

// HandleSignal runs an externally produced signal through the trigger.
func (s *Session) HandleSignal(ctx context.Context, sig signal.Signal) autoexec.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handleSignalLocked(ctx, sig)
}

func (s *Session) handleSignalLocked(ctx context.Context, sig signal.Signal) autoexec.Result {
	s.pub.Publish(events.New(events.KindSignal, sig))

	res := s.trigger.Handle(ctx, sig, s.symbol, s.orderLocked)
	switch res.Outcome {
	case autoexec.Fired:
		f := res.Fill
		s.toast(events.Success, fmt.Sprintf("🤖 AUTO %s %d %s @ %s", f.Side, f.Qty, f.Symbol, money(f.Price)))
		if res.Err != nil {
			s.fail("auto order", res.Err)
		}
	case autoexec.OppositeDirection:
		s.toast(events.Warning, fmt.Sprintf("Signal %s on %s against open position - not flipping",
			strings.ToUpper(string(sig.Direction)), sig.Timeframe))
	case autoexec.Rejected:
		s.fail("auto order", res.Err)
	}
	return res
}

func (s *Session) closedToast(r ledger.TradeRecord) {
	s.toast(pnlSeverity(r.PnL), fmt.Sprintf("📊 Closed for %s (%s)", signedMoney(r.PnL), r.Reason))
}

func (s *Session) onArming(tr arming.Transition) {
	s.pub.Publish(events.New(events.KindArming, tr.To))
	switch tr.To {
	case arming.Armed:
		s.toast(events.Warning, "⚡ System ARMED - Ready to trade")
	case arming.Staged:
		s.toast(events.Info, "⏸️ System STAGED - Buttons disabled")
	case arming.Disarmed:
		s.toast(events.Info, "🔒 System DISARMED")
	}
	s.log.Info("arming changed", zap.String("from", string(tr.From)), zap.String("to", string(tr.To)))
}

func (s *Session) toast(sev events.Severity, msg string) {
	s.pub.Publish(events.New(events.KindToast, events.Toast{Severity: sev, Message: msg}))
}

// fail reports err to the operator and returns it unchanged.
func (s *Session) fail(op string, err error) error {
	if err == nil {
		return nil
	}
	kind := KindOf(err)
	s.toast(severityFor(err), failureMessage(err))
	if kind == sim.KindPrecondition || kind == sim.KindValidation || kind == sim.KindCapital {
		s.log.Info(op+" refused", zap.String("kind", kind.String()), zap.Error(err))
	} else {
		s.log.Error(op+" failed", zap.String("kind", kind.String()), zap.Error(err))
	}
	return err
}
