// Package autoexec turns trend signals into market orders when the
// operator has armed the system and opted in to automatic entries.
package autoexec

import (
	"context"
	"strings"
	"sync"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rustyeddy/pulse/market"
	"github.com/rustyeddy/pulse/signal"
	"github.com/rustyeddy/pulse/sim"
)

type Outcome string

const (
	Fired             Outcome = "fired"
	NotArmed          Outcome = "not_armed"
	Disabled          Outcome = "disabled"
	SymbolMismatch    Outcome = "symbol_mismatch"
	TimeframeFiltered Outcome = "timeframe_filtered"
	SameDirection     Outcome = "same_direction"
	OppositeDirection Outcome = "opposite_direction"
	Rejected          Outcome = "rejected"
	Invalid           Outcome = "invalid"
)

// Result describes what the trigger did with one signal. Fill is set only
// when Outcome is Fired. Err is set for Rejected and Invalid, and for a
// Fired order whose account update could not be saved.
type Result struct {
	Outcome Outcome
	Signal  signal.Signal
	Fill    *sim.Fill
	Err     error
}

// Engine is the part of sim.Engine the trigger drives.
type Engine interface {
	Position(symbol string) (sim.Position, bool)
	LastTick(symbol string) (market.Tick, error)
	SubmitOrder(ctx context.Context, req sim.OrderRequest) (sim.Fill, error)
}

type Gate interface {
	Armed() bool
}

// OrderBuilder sizes an order for side from the current ticket. stop is
// zero unless the signal supplied a usable protective stop.
type OrderBuilder func(side market.Side, stop decimal.Decimal) (sim.OrderRequest, error)

type Trigger struct {
	mu         sync.Mutex
	enabled    bool
	timeframes map[string]bool
	engine     Engine
	gate       Gate
	observers  []func(Result)
	log        *zap.Logger
}

type Option func(*Trigger)

// WithTimeframes restricts firing to the listed timeframes. No filter
// accepts every timeframe.
func WithTimeframes(tfs ...string) Option {
	return func(t *Trigger) {
		for _, tf := range tfs {
			if tf = strings.TrimSpace(strings.ToLower(tf)); tf != "" {
				t.timeframes[tf] = true
			}
		}
	}
}

func WithEnabled(on bool) Option {
	return func(t *Trigger) { t.enabled = on }
}

func WithLogger(l *zap.Logger) Option {
	return func(t *Trigger) {
		if l != nil {
			t.log = l
		}
	}
}

// WithObserver is called with every result, after the trigger's lock is
// released.
func WithObserver(f func(Result)) Option {
	return func(t *Trigger) { t.observers = append(t.observers, f) }
}

func New(engine Engine, gate Gate, opts ...Option) *Trigger {
	t := &Trigger{
		engine:     engine,
		gate:       gate,
		timeframes: map[string]bool{},
		log:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *Trigger) Enabled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.enabled
}

func (t *Trigger) SetEnabled(on bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.enabled = on
}

// Handle evaluates sig against the active symbol and fires at most one
// order. It never closes or flips an existing position.
func (t *Trigger) Handle(ctx context.Context, sig signal.Signal, active string, build OrderBuilder) Result {
	res := t.handle(ctx, sig, active, build)

	fields := []zap.Field{
		zap.String("outcome", string(res.Outcome)),
		zap.String("symbol", sig.Symbol),
		zap.String("timeframe", sig.Timeframe),
		zap.String("direction", string(sig.Direction)),
	}
	if res.Err != nil {
		fields = append(fields, zap.Error(res.Err))
	}
	t.log.Info("signal evaluated", fields...)

	t.mu.Lock()
	obs := append([]func(Result){}, t.observers...)
	t.mu.Unlock()
	for _, o := range obs {
		o(res)
	}
	return res
}

func (t *Trigger) handle(ctx context.Context, sig signal.Signal, active string, build OrderBuilder) Result {
	res := Result{Signal: sig}

	if err := sig.Validate(); err != nil {
		res.Outcome, res.Err = Invalid, err
		return res
	}

	t.mu.Lock()
	enabled := t.enabled
	filtered := len(t.timeframes) > 0 && !t.timeframes[strings.ToLower(sig.Timeframe)]
	t.mu.Unlock()

	switch {
	case !enabled:
		res.Outcome = Disabled
		return res
	case t.gate == nil || !t.gate.Armed():
		res.Outcome = NotArmed
		return res
	case !strings.EqualFold(sig.Symbol, active):
		res.Outcome = SymbolMismatch
		return res
	case filtered:
		res.Outcome = TimeframeFiltered
		return res
	}

	side := sig.Direction.Side()
	if pos, open := t.engine.Position(active); open {
		if pos.Side == side {
			res.Outcome = SameDirection
		} else {
			res.Outcome = OppositeDirection
		}
		return res
	}

	req, err := build(side, t.protectiveStop(active, side, sig.Stop))
	if err != nil {
		res.Outcome, res.Err = Rejected, err
		return res
	}
	fill, err := t.engine.SubmitOrder(ctx, req)
	if err != nil && fill.PositionID == "" {
		res.Outcome, res.Err = Rejected, err
		return res
	}
	res.Outcome = Fired
	res.Fill = &fill
	res.Err = err
	return res
}

// protectiveStop returns stop if it sits on the losing side of the last
// price for side, zero otherwise.
func (t *Trigger) protectiveStop(symbol string, side market.Side, stop decimal.Decimal) decimal.Decimal {
	if !stop.IsPositive() {
		return decimal.Zero
	}
	tick, err := t.engine.LastTick(symbol)
	if err != nil {
		return decimal.Zero
	}
	if side == market.Buy && stop.LessThan(tick.Price) {
		return stop
	}
	if side == market.Sell && stop.GreaterThan(tick.Price) {
		return stop
	}
	return decimal.Zero
}
