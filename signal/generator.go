package signal

import (
	"sort"
	"sync"
	"time"

	"github.com/rustyeddy/pulse/market"
)

// Generator runs one aggregator and one UT Bot per timeframe for a single
// symbol and reports trend flips as signals.
type Generator struct {
	mu     sync.Mutex
	symbol string
	frames []*frame
}

type frame struct {
	name string
	agg  *Aggregator
	bot  *UTBot
	last Decision
}

// Snapshot is the latest UT Bot state for one timeframe.
type Snapshot struct {
	Timeframe string   `json:"timeframe"`
	Decision  Decision `json:"decision"`
}

// NewGenerator builds a generator for the given timeframes ("1m", "5m",
// ...). Unknown timeframes are rejected.
func NewGenerator(symbol string, timeframes []string, atrPeriod int, multiplier float64) (*Generator, error) {
	g := &Generator{symbol: symbol}
	for _, tf := range timeframes {
		d, err := market.ParseTimeframe(tf)
		if err != nil {
			return nil, err
		}
		g.frames = append(g.frames, &frame{
			name: tf,
			agg:  NewAggregator(d),
			bot:  NewUTBot(atrPeriod, multiplier),
		})
	}
	sort.Slice(g.frames, func(i, j int) bool {
		return g.frames[i].agg.Timeframe() < g.frames[j].agg.Timeframe()
	})
	return g, nil
}

func (g *Generator) Symbol() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.symbol
}

// SetSymbol switches the generator to another symbol and drops all
// candle and trend state.
func (g *Generator) SetSymbol(symbol string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.symbol = symbol
	for _, f := range g.frames {
		f.agg = NewAggregator(f.agg.Timeframe())
		f.bot.Reset()
		f.last = Decision{}
	}
}

// OnTick feeds t to every timeframe. Ticks for other symbols are ignored.
func (g *Generator) OnTick(t market.Tick) []Signal {
	g.mu.Lock()
	defer g.mu.Unlock()

	if t.Symbol != g.symbol || !t.Valid() {
		return nil
	}
	if t.Time.IsZero() {
		t.Time = time.Now()
	}

	var out []Signal
	for _, f := range g.frames {
		c, closed := f.agg.Add(t)
		if !closed {
			continue
		}
		f.last = f.bot.Process(c)

		var dir Direction
		switch f.last.Action {
		case ActionBuy:
			dir = Up
		case ActionSell:
			dir = Down
		default:
			continue
		}
		out = append(out, Signal{
			Symbol:    g.symbol,
			Timeframe: f.name,
			Direction: dir,
			Stop:      f.last.Stop,
			Price:     f.last.Price,
			Time:      t.Time,
			Source:    "utbot",
		})
	}
	return out
}

// Snapshots returns the last decision per timeframe, shortest first.
func (g *Generator) Snapshots() []Snapshot {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]Snapshot, 0, len(g.frames))
	for _, f := range g.frames {
		out = append(out, Snapshot{Timeframe: f.name, Decision: f.last})
	}
	return out
}
