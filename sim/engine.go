// Package sim is the paper execution engine: it fills market orders
// against the last known price, tracks open positions, enforces stops and
// targets on every tick and settles everything through the ledger.
package sim

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rustyeddy/pulse/events"
	"github.com/rustyeddy/pulse/journal"
	"github.com/rustyeddy/pulse/ledger"
	"github.com/rustyeddy/pulse/market"
	"github.com/rustyeddy/pulse/pkg/id"
)

// DefaultTrail is the trailing distance used when none is configured.
var DefaultTrail = decimal.RequireFromString("0.005")

// Gate decides whether new orders are accepted. Kill disarms it.
type Gate interface {
	Armed() bool
	Disarm()
}

// Metrics receives engine counters. See internal/metrics.
type Metrics interface {
	OrderFilled(side market.Side)
	OrderRejected(kind string)
	PositionClosed(reason ledger.Reason, pnl float64)
	PersistenceFailed()
	TickProcessed()
}

type nopMetrics struct{}

func (nopMetrics) OrderFilled(market.Side) {}
func (nopMetrics) OrderRejected(string) {}
func (nopMetrics) PositionClosed(ledger.Reason, float64) {}
func (nopMetrics) PersistenceFailed() {}
func (nopMetrics) TickProcessed() {}

type OrderRequest struct {
	Symbol   string
	Side     market.Side
	Quantity int64
	Stop     decimal.Decimal
	Target   decimal.Decimal // zero for none
}

type Fill struct {
	PositionID string          `json:"positionId"`
	Symbol     string          `json:"symbol"`
	Side       market.Side     `json:"side"`
	Qty        int64           `json:"qty"`
	Price      decimal.Decimal `json:"price"`
	Slippage   decimal.Decimal `json:"slippage"`
	Capital    decimal.Decimal `json:"capital"`
	Time       time.Time       `json:"time"`
}

// Mark is the outcome of a price update. Position is nil when the symbol
// is flat after the tick; Exit is set when the tick closed a position.
type Mark struct {
	Symbol   string
	Price    decimal.Decimal
	Position *Position
	Exit     *ledger.TradeRecord
}

type PartialFill struct {
	Symbol    string              `json:"symbol"`
	Qty       int64               `json:"qty"`
	Remaining int64               `json:"remaining"`
	Price     decimal.Decimal     `json:"price"`
	PnL       decimal.Decimal     `json:"pnl"`
	Closed    *ledger.TradeRecord `json:"closed,omitempty"`
}

// TrailResult reports a trail request. A proposal that would loosen the
// stop is not an error; it comes back with Applied false.
type TrailResult struct {
	Symbol   string          `json:"symbol"`
	Side     market.Side     `json:"side"`
	Applied  bool            `json:"applied"`
	OldStop  decimal.Decimal `json:"oldStop"`
	Proposed decimal.Decimal `json:"proposed"`
}

type Engine struct {
	mu        sync.Mutex
	ledger    *ledger.Ledger
	gate      Gate
	ticks     *market.TickStore
	positions map[string]*Position
	journal   journal.Journal
	pub       events.Publisher
	slip      Slippage
	metrics   Metrics
	log       *zap.Logger
	now       func() time.Time
}

type Option func(*Engine)

func WithJournal(j journal.Journal) Option {
	return func(e *Engine) {
		if j != nil {
			e.journal = j
		}
	}
}

func WithPublisher(p events.Publisher) Option {
	return func(e *Engine) {
		if p != nil {
			e.pub = p
		}
	}
}

func WithSlippage(s Slippage) Option {
	return func(e *Engine) {
		if s != nil {
			e.slip = s
		}
	}
}

func WithMetrics(m Metrics) Option {
	return func(e *Engine) {
		if m != nil {
			e.metrics = m
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// WithClock replaces time.Now for fills without a tick timestamp.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func NewEngine(l *ledger.Ledger, gate Gate, opts ...Option) *Engine {
	e := &Engine{
		ledger:    l,
		gate:      gate,
		ticks:     market.NewTickStore(),
		positions: make(map[string]*Position),
		journal:   journal.Nop{},
		pub:       events.Nop{},
		slip:      NewRandomSlippage(DefaultMaxSlippage, 0),
		metrics:   nopMetrics{},
		log:       zap.NewNop(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// SubmitOrder opens a position at the last price plus slippage.
func (e *Engine) SubmitOrder(ctx context.Context, req OrderRequest) (Fill, error) {
	e.mu.Lock()

	fill, evs, err := e.submitLocked(ctx, req)
	e.mu.Unlock()
	e.publish(evs)

	if err != nil && fill.PositionID == "" {
		e.metrics.OrderRejected(KindOf(err).String())
		e.log.Info("order rejected",
			zap.String("symbol", req.Symbol),
			zap.String("side", string(req.Side)),
			zap.Int64("qty", req.Quantity),
			zap.Error(err))
	}
	return fill, err
}

func (e *Engine) submitLocked(ctx context.Context, req OrderRequest) (Fill, []events.Event, error) {
	if e.gate == nil || !e.gate.Armed() {
		return Fill{}, nil, fmt.Errorf("submit order: %w", ErrNotArmed)
	}
	if !req.Side.Valid() {
		return Fill{}, nil, fmt.Errorf("submit order: %w %q", ErrInvalidSide, req.Side)
	}
	if req.Quantity <= 0 {
		return Fill{}, nil, fmt.Errorf("submit order: %w", ErrInvalidSize)
	}
	if !req.Stop.IsPositive() {
		return Fill{}, nil, fmt.Errorf("submit order: %w", ErrInvalidStop)
	}
	tick, err := e.ticks.Get(req.Symbol)
	if err != nil {
		return Fill{}, nil, fmt.Errorf("submit order: %s: %w", req.Symbol, ErrNoPrice)
	}
	if _, open := e.positions[req.Symbol]; open {
		return Fill{}, nil, fmt.Errorf("submit order: %s: %w", req.Symbol, ErrPositionOpen)
	}

	slip := e.slip.Amount()
	price := fillPrice(req.Side, tick.Price, slip)
	capital := capitalFor(req.Quantity, price)
	if bal := e.ledger.Balance(); capital.GreaterThan(bal) {
		return Fill{}, nil, fmt.Errorf("submit order: %w", &CapitalError{Needed: capital, Available: bal})
	}

	now := e.now()
	pos := &Position{
		ID:          id.At(now),
		Symbol:      req.Symbol,
		Side:        req.Side,
		Qty:         req.Quantity,
		OriginalQty: req.Quantity,
		Entry:       price,
		Stop:        req.Stop,
		Target:      decimal.Max(req.Target, decimal.Zero),
		OpenedAt:    now,
	}
	pos.mark(tick.Price)
	e.positions[req.Symbol] = pos

	// The debit is kept even when it cannot be saved; the error is
	// reported after the position exists so state stays consistent.
	saveErr := e.ledger.Debit(ctx, capital)
	e.persistFailed(saveErr)

	fill := Fill{
		PositionID: pos.ID,
		Symbol:     pos.Symbol,
		Side:       pos.Side,
		Qty:        pos.Qty,
		Price:      price,
		Slippage:   slip,
		Capital:    capital,
		Time:       now,
	}

	e.metrics.OrderFilled(pos.Side)
	e.log.Info("order filled",
		zap.String("id", pos.ID),
		zap.String("symbol", pos.Symbol),
		zap.String("side", string(pos.Side)),
		zap.Int64("qty", pos.Qty),
		zap.String("price", price.String()),
		zap.String("slippage", slip.String()))

	e.recordEquityLocked(now)
	evs := []events.Event{
		events.New(events.KindPosition, e.viewLocked(pos.Symbol)),
		events.New(events.KindAccount, e.ledger.Snapshot()),
	}
	if saveErr != nil {
		return fill, evs, fmt.Errorf("submit order: %w", saveErr)
	}
	return fill, evs, nil
}

// UpdatePrice records tick and enforces the stop and target of the
// symbol's position. At most one exit happens per tick.
func (e *Engine) UpdatePrice(ctx context.Context, tick market.Tick) (Mark, error) {
	if tick.Symbol == "" || !tick.Valid() {
		return Mark{}, fmt.Errorf("update price: %w", ErrInvalidPrice)
	}

	e.mu.Lock()
	e.ticks.Set(tick)
	e.metrics.TickProcessed()

	m := Mark{Symbol: tick.Symbol, Price: tick.Price}
	pos, ok := e.positions[tick.Symbol]
	if !ok {
		e.mu.Unlock()
		return m, nil
	}

	pos.mark(tick.Price)
	reason, hit := exitReason(pos, tick.Price)
	if !hit {
		view := *pos
		m.Position = &view
		e.mu.Unlock()
		e.publish([]events.Event{events.New(events.KindPosition, PositionView{Symbol: view.Symbol, Position: &view})})
		return m, nil
	}

	rec, evs, err := e.closeLocked(ctx, pos, tick.Price, reason, e.tickTime(tick))
	e.mu.Unlock()
	e.publish(evs)

	m.Exit = &rec
	if err != nil {
		return m, fmt.Errorf("update price: %w", err)
	}
	return m, nil
}

// ClosePosition closes symbol's position at the last price. Closing a flat
// symbol is a no-op and returns a nil record.
func (e *Engine) ClosePosition(ctx context.Context, symbol string, reason ledger.Reason) (*ledger.TradeRecord, error) {
	if reason == "" {
		reason = ledger.ReasonManual
	}

	e.mu.Lock()
	pos, ok := e.positions[symbol]
	if !ok {
		e.mu.Unlock()
		return nil, nil
	}
	price := e.lastPriceLocked(pos)
	rec, evs, err := e.closeLocked(ctx, pos, price, reason, e.now())
	e.mu.Unlock()
	e.publish(evs)

	if err != nil {
		return &rec, fmt.Errorf("close position: %w", err)
	}
	return &rec, nil
}

// ClosePartial closes floor(qty*fraction) shares. Closing everything is a
// full close booked with reason PARTIAL.
func (e *Engine) ClosePartial(ctx context.Context, symbol string, fraction decimal.Decimal) (PartialFill, error) {
	if !fraction.IsPositive() || fraction.GreaterThan(decimal.NewFromInt(1)) {
		return PartialFill{}, fmt.Errorf("close partial: %w", ErrInvalidFraction)
	}

	e.mu.Lock()
	pos, ok := e.positions[symbol]
	if !ok {
		e.mu.Unlock()
		return PartialFill{}, fmt.Errorf("close partial: %s: %w", symbol, ErrNoPosition)
	}

	closeQty := decimal.NewFromInt(pos.Qty).Mul(fraction).Floor().IntPart()
	if closeQty <= 0 {
		e.mu.Unlock()
		return PartialFill{}, fmt.Errorf("close partial: %d shares: %w", pos.Qty, ErrPartialTooSmall)
	}

	price := e.lastPriceLocked(pos)
	slice := pnl(pos.Side, pos.Entry, price, closeQty)
	pf := PartialFill{Symbol: symbol, Qty: closeQty, Price: price, PnL: slice}

	if closeQty == pos.Qty {
		rec, evs, err := e.closeLocked(ctx, pos, price, ledger.ReasonPartial, e.now())
		e.mu.Unlock()
		e.publish(evs)
		pf.Closed = &rec
		if err != nil {
			return pf, fmt.Errorf("close partial: %w", err)
		}
		return pf, nil
	}

	capital := capitalFor(closeQty, pos.Entry)
	pos.Qty -= closeQty
	pos.Realized = pos.Realized.Add(slice)
	pos.mark(price)
	pf.Remaining = pos.Qty

	saveErr := e.ledger.Settle(ctx, capital, slice)
	e.persistFailed(saveErr)

	e.log.Info("partial close",
		zap.String("id", pos.ID),
		zap.String("symbol", symbol),
		zap.Int64("qty", closeQty),
		zap.Int64("remaining", pos.Qty),
		zap.String("pnl", slice.StringFixed(2)))

	e.recordEquityLocked(e.now())
	evs := []events.Event{
		events.New(events.KindPosition, e.viewLocked(symbol)),
		events.New(events.KindAccount, e.ledger.Snapshot()),
	}
	e.mu.Unlock()
	e.publish(evs)

	if saveErr != nil {
		return pf, fmt.Errorf("close partial: %w", saveErr)
	}
	return pf, nil
}

// MoveStopToBreakeven sets the stop to the entry price, whatever the
// current price is.
func (e *Engine) MoveStopToBreakeven(ctx context.Context, symbol string) (Position, error) {
	e.mu.Lock()
	pos, ok := e.positions[symbol]
	if !ok {
		e.mu.Unlock()
		return Position{}, fmt.Errorf("breakeven: %s: %w", symbol, ErrNoPosition)
	}
	pos.Stop = pos.Entry
	view := *pos
	e.mu.Unlock()

	e.log.Info("stop moved to breakeven", zap.String("symbol", symbol), zap.String("stop", view.Stop.String()))
	e.publish([]events.Event{events.New(events.KindPosition, PositionView{Symbol: view.Symbol, Position: &view})})
	return view, nil
}

// TrailStop proposes a stop fraction away from the last price and applies
// it only if it tightens the current stop.
func (e *Engine) TrailStop(ctx context.Context, symbol string, fraction decimal.Decimal) (TrailResult, error) {
	if !fraction.IsPositive() || fraction.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return TrailResult{}, fmt.Errorf("trail stop: %w", ErrInvalidFraction)
	}

	e.mu.Lock()
	pos, ok := e.positions[symbol]
	if !ok {
		e.mu.Unlock()
		return TrailResult{}, fmt.Errorf("trail stop: %s: %w", symbol, ErrNoPosition)
	}

	price := e.lastPriceLocked(pos)
	one := decimal.NewFromInt(1)
	res := TrailResult{Symbol: symbol, Side: pos.Side, OldStop: pos.Stop}
	if pos.Side == market.Buy {
		res.Proposed = price.Mul(one.Sub(fraction))
		res.Applied = res.Proposed.GreaterThan(pos.Stop)
	} else {
		res.Proposed = price.Mul(one.Add(fraction))
		res.Applied = res.Proposed.LessThan(pos.Stop)
	}

	if !res.Applied {
		e.mu.Unlock()
		return res, nil
	}
	pos.Stop = res.Proposed
	view := *pos
	e.mu.Unlock()

	e.log.Info("stop trailed",
		zap.String("symbol", symbol),
		zap.String("from", res.OldStop.String()),
		zap.String("to", res.Proposed.String()))
	e.publish([]events.Event{events.New(events.KindPosition, PositionView{Symbol: view.Symbol, Position: &view})})
	return res, nil
}

// Kill flattens every open position with reason KILL and disarms the
// gate. It does not consult the gate first.
func (e *Engine) Kill(ctx context.Context) ([]ledger.TradeRecord, error) {
	e.mu.Lock()
	symbols := make([]string, 0, len(e.positions))
	for s := range e.positions {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)

	var (
		recs []ledger.TradeRecord
		evs  []events.Event
		errs []error
	)
	for _, s := range symbols {
		pos := e.positions[s]
		rec, ev, err := e.closeLocked(ctx, pos, e.lastPriceLocked(pos), ledger.ReasonKill, e.now())
		recs = append(recs, rec)
		evs = append(evs, ev...)
		if err != nil {
			errs = append(errs, err)
		}
	}
	e.mu.Unlock()
	e.publish(evs)

	if e.gate != nil {
		e.gate.Disarm()
	}
	e.log.Warn("kill switch", zap.Int("closed", len(recs)))

	if err := errors.Join(errs...); err != nil {
		return recs, fmt.Errorf("kill: %w", err)
	}
	return recs, nil
}

// ResetAccount restores the default account. It refuses while any
// position is open.
func (e *Engine) ResetAccount(ctx context.Context, confirm bool) error {
	if !confirm {
		return fmt.Errorf("reset account: %w", ErrResetNotConfirmed)
	}

	e.mu.Lock()
	if n := len(e.positions); n > 0 {
		e.mu.Unlock()
		return fmt.Errorf("reset account: %d open: %w", n, ErrPositionOpen)
	}
	err := e.ledger.Reset(ctx, true)
	e.persistFailed(err)
	e.recordEquityLocked(e.now())
	acct := e.ledger.Snapshot()
	e.mu.Unlock()

	e.publish([]events.Event{events.New(events.KindAccount, acct)})
	if err != nil {
		return fmt.Errorf("reset account: %w", err)
	}
	return nil
}

// Position returns a copy of symbol's open position.
func (e *Engine) Position(symbol string) (Position, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	pos, ok := e.positions[symbol]
	if !ok {
		return Position{}, false
	}
	return *pos, true
}

// Positions returns copies of every open position ordered by symbol.
func (e *Engine) Positions() []Position {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Position, 0, len(e.positions))
	for _, p := range e.positions {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

func (e *Engine) Account() ledger.Account {
	return e.ledger.Snapshot()
}

func (e *Engine) LastTick(symbol string) (market.Tick, error) {
	return e.ticks.Get(symbol)
}

// Equity is balance plus committed capital plus unrealized P&L.
func (e *Engine) Equity() journal.EquitySnapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.equityLocked(e.now())
}

// closeLocked settles the remainder of pos at price and removes it. The
// trade record carries the P&L of every slice of the position.
func (e *Engine) closeLocked(ctx context.Context, pos *Position, price decimal.Decimal, reason ledger.Reason, at time.Time) (ledger.TradeRecord, []events.Event, error) {
	slice := pnl(pos.Side, pos.Entry, price, pos.Qty)
	capital := pos.Committed()

	rec := ledger.TradeRecord{
		ID:         pos.ID,
		Symbol:     pos.Symbol,
		Side:       pos.Side,
		Qty:        pos.OriginalQty,
		EntryPrice: pos.Entry,
		ExitPrice:  price,
		PnL:        pos.Realized.Add(slice),
		Reason:     reason,
		OpenedAt:   pos.OpenedAt,
		Timestamp:  at,
	}
	delete(e.positions, pos.Symbol)

	err := e.ledger.SettleAndRecord(ctx, capital, slice, rec)
	e.persistFailed(err)

	if jerr := e.journal.RecordTrade(rec); jerr != nil {
		e.log.Warn("journal trade", zap.String("id", rec.ID), zap.Error(jerr))
	}
	e.recordEquityLocked(at)

	pnlF, _ := rec.PnL.Float64()
	e.metrics.PositionClosed(reason, pnlF)
	e.log.Info("position closed",
		zap.String("id", rec.ID),
		zap.String("symbol", rec.Symbol),
		zap.String("reason", string(reason)),
		zap.String("exit", price.String()),
		zap.String("pnl", rec.PnL.StringFixed(2)))

	evs := []events.Event{
		events.New(events.KindTrade, rec),
		events.New(events.KindPosition, PositionView{Symbol: pos.Symbol}),
		events.New(events.KindAccount, e.ledger.Snapshot()),
	}
	return rec, evs, err
}

// PositionView is the payload of position events. Position is nil when
// the symbol is flat.
type PositionView struct {
	Symbol   string    `json:"symbol"`
	Position *Position `json:"position"`
}

func (e *Engine) viewLocked(symbol string) PositionView {
	v := PositionView{Symbol: symbol}
	if p, ok := e.positions[symbol]; ok {
		cp := *p
		v.Position = &cp
	}
	return v
}

func (e *Engine) lastPriceLocked(pos *Position) decimal.Decimal {
	if t, err := e.ticks.Get(pos.Symbol); err == nil {
		return t.Price
	}
	if pos.LastPrice.IsPositive() {
		return pos.LastPrice
	}
	return pos.Entry
}

func (e *Engine) tickTime(t market.Tick) time.Time {
	if t.Time.IsZero() {
		return e.now()
	}
	return t.Time
}

func (e *Engine) equityLocked(at time.Time) journal.EquitySnapshot {
	acct := e.ledger.Snapshot()
	snap := journal.EquitySnapshot{
		Time:    at,
		Balance: acct.Balance,
		DayPnL:  acct.DayPnL,
	}
	for _, p := range e.positions {
		snap.Committed = snap.Committed.Add(p.Committed())
		snap.Unrealized = snap.Unrealized.Add(p.Unrealized)
	}
	snap.Equity = snap.Balance.Add(snap.Committed).Add(snap.Unrealized)
	return snap
}

func (e *Engine) recordEquityLocked(at time.Time) {
	if err := e.journal.RecordEquity(e.equityLocked(at)); err != nil {
		e.log.Warn("journal equity", zap.Error(err))
	}
}

func (e *Engine) persistFailed(err error) {
	if err == nil {
		return
	}
	e.metrics.PersistenceFailed()
	e.log.Error("account not saved, continuing with in-memory state", zap.Error(err))
}

func (e *Engine) publish(evs []events.Event) {
	for _, ev := range evs {
		e.pub.Publish(ev)
	}
}
