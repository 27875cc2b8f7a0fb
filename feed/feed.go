// Package feed delivers market ticks to the session. Sources push ticks
// through an emit callback; Pump puts a latest-only mailbox between a
// live source and a slower consumer.
package feed

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/rustyeddy/pulse/market"
)

// Source produces ticks for one symbol until ctx is done or the source
// fails. emit is called from the source's goroutine.
type Source interface {
	Run(ctx context.Context, symbol string, emit func(market.Tick)) error
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context, symbol string, emit func(market.Tick)) error

func (f SourceFunc) Run(ctx context.Context, symbol string, emit func(market.Tick)) error {
	return f(ctx, symbol, emit)
}

type Handler func(ctx context.Context, t market.Tick)

// Mailbox holds at most one tick. A Put over an untaken tick replaces it
// and counts the older one as dropped.
type Mailbox struct {
	mu      sync.Mutex
	tick    market.Tick
	full    bool
	dropped uint64
	ready   chan struct{}
	onDrop  func()
}

func NewMailbox() *Mailbox {
	return &Mailbox{ready: make(chan struct{}, 1)}
}

// OnDrop registers f to run each time a tick is replaced unseen.
func (m *Mailbox) OnDrop(f func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onDrop = f
}

func (m *Mailbox) Put(t market.Tick) {
	m.mu.Lock()
	replaced := m.full
	if replaced {
		m.dropped++
	}
	m.tick, m.full = t, true
	onDrop := m.onDrop
	m.mu.Unlock()

	if replaced && onDrop != nil {
		onDrop()
	}
	select {
	case m.ready <- struct{}{}:
	default:
	}
}

// Take blocks until a tick is available or ctx is done.
func (m *Mailbox) Take(ctx context.Context) (market.Tick, error) {
	for {
		if t, ok := m.TryTake(); ok {
			return t, nil
		}
		select {
		case <-m.ready:
		case <-ctx.Done():
			return market.Tick{}, ctx.Err()
		}
	}
}

func (m *Mailbox) TryTake() (market.Tick, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.full {
		return market.Tick{}, false
	}
	m.full = false
	return m.tick, true
}

func (m *Mailbox) Dropped() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dropped
}

type pumpConfig struct {
	mailbox *Mailbox
	log     *zap.Logger
}

type PumpOption func(*pumpConfig)

func WithMailbox(mb *Mailbox) PumpOption {
	return func(c *pumpConfig) { c.mailbox = mb }
}

func WithPumpLogger(log *zap.Logger) PumpOption {
	return func(c *pumpConfig) { c.log = log }
}

// Pump runs src for symbol and hands each tick to handle on a separate
// goroutine, latest-only. It returns when the source returns; a tick still
// waiting in the mailbox is delivered first. Cancellation is not an error.
func Pump(ctx context.Context, src Source, symbol string, handle Handler, opts ...PumpOption) error {
	cfg := pumpConfig{log: zap.NewNop()}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.mailbox == nil {
		cfg.mailbox = NewMailbox()
	}
	mb := cfg.mailbox

	cctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			t, err := mb.Take(cctx)
			if err != nil {
				return
			}
			handle(ctx, t)
		}
	}()

	err := src.Run(ctx, symbol, mb.Put)
	cancel()
	<-done
	if t, ok := mb.TryTake(); ok && ctx.Err() == nil {
		handle(ctx, t)
	}

	if dropped := mb.Dropped(); dropped > 0 {
		cfg.log.Debug("stale ticks discarded", zap.String("symbol", symbol), zap.Uint64("dropped", dropped))
	}
	if errors.Is(err, context.Canceled) && ctx.Err() != nil {
		return nil
	}
	return err
}
