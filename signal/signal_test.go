package signal

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/pulse/market"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// bar builds a candle one unit tall around close.
func bar(close string) market.Candle {
	c := d(close)
	half := d("0.5")
	return market.Candle{Open: c, High: c.Add(half), Low: c.Sub(half), Close: c}
}

func TestParseDirection(t *testing.T) {
	t.Parallel()

	for in, want := range map[string]Direction{"up": Up, "BUY": Up, "long": Up, "down": Down, "Sell": Down, "short": Down} {
		got, err := ParseDirection(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseDirection("sideways")
	assert.Error(t, err)

	assert.Equal(t, market.Buy, Up.Side())
	assert.Equal(t, market.Sell, Down.Side())
}

func TestSignalValidate(t *testing.T) {
	t.Parallel()

	ok := Signal{Symbol: "TSLA", Timeframe: "5m", Direction: Up}
	assert.NoError(t, ok.Validate())

	bad := []Signal{
		{Timeframe: "5m", Direction: Up},
		{Symbol: "TSLA", Timeframe: "7m", Direction: Up},
		{Symbol: "TSLA", Timeframe: "5m", Direction: "flat"},
		{Symbol: "TSLA", Timeframe: "5m", Direction: Up, Stop: d("-1")},
	}
	for _, s := range bad {
		assert.Error(t, s.Validate(), "%+v", s)
	}
}

func TestAggregator(t *testing.T) {
	t.Parallel()

	base := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	a := NewAggregator(time.Minute)

	tick := func(sec int, p string) market.Tick {
		return market.Tick{Symbol: "TSLA", Price: d(p), Time: base.Add(time.Duration(sec) * time.Second)}
	}

	for _, tk := range []market.Tick{tick(5, "100"), tick(30, "102"), tick(59, "99")} {
		_, closed := a.Add(tk)
		assert.False(t, closed)
	}

	cur, ok := a.Current()
	require.True(t, ok)
	assert.True(t, cur.High.Equal(d("102")))

	c, closed := a.Add(tick(60, "101"))
	require.True(t, closed)
	assert.True(t, c.Time.Equal(base))
	assert.True(t, c.Open.Equal(d("100")))
	assert.True(t, c.High.Equal(d("102")))
	assert.True(t, c.Low.Equal(d("99")))
	assert.True(t, c.Close.Equal(d("99")))

	// a late tick for the closed minute lands in the open candle
	_, closed = a.Add(tick(58, "90"))
	assert.False(t, closed)
	cur, _ = a.Current()
	assert.True(t, cur.Low.Equal(d("90")))
	assert.True(t, cur.Time.Equal(base.Add(time.Minute)))
}

func TestATR(t *testing.T) {
	t.Parallel()

	a := NewATR(2)
	assert.Equal(t, "ATR(2)", a.Name())
	assert.Equal(t, 3, a.Warmup())

	a.Update(bar("100"))
	a.Update(bar("100"))
	assert.False(t, a.Ready())
	assert.True(t, a.Value().IsZero())

	a.Update(bar("101"))
	require.True(t, a.Ready())
	// TRs 1 and 1.5
	assert.True(t, a.Value().Equal(d("1.25")), a.Value().String())

	a.Update(bar("98"))
	// window drops the first TR: (1.5 + 3.5) / 2
	assert.True(t, a.Value().Equal(d("2.5")))

	a.Reset()
	assert.False(t, a.Ready())
}

func TestUTBotFlips(t *testing.T) {
	t.Parallel()

	u := NewUTBot(2, 1.0)

	steps := []struct {
		close  string
		action Action
		trend  Trend
		stop   string
	}{
		{"100", ActionHold, Flat, "0"},
		{"100", ActionHold, Flat, "0"},
		{"100", ActionHold, Long, "99"},
		{"101", ActionHold, Long, "99.75"},
		{"98", ActionSell, Short, "100.5"},
		{"101", ActionBuy, Long, "97.5"},
	}
	for i, st := range steps {
		dec := u.Process(bar(st.close))
		assert.Equal(t, st.action, dec.Action, "bar %d", i)
		assert.Equal(t, st.trend, dec.Trend, "bar %d", i)
		assert.True(t, dec.Stop.Equal(d(st.stop)), "bar %d stop %s", i, dec.Stop)
	}
}

func TestUTBotLongStopOnlyRatchetsUp(t *testing.T) {
	t.Parallel()

	u := NewUTBot(2, 1.0)
	for _, c := range []string{"100", "100", "100", "103", "102.5"} {
		u.Process(bar(c))
	}
	first := u.Process(bar("102.6")).Stop
	second := u.Process(bar("102.7")).Stop
	assert.True(t, second.GreaterThanOrEqual(first))
}

func TestGenerator(t *testing.T) {
	t.Parallel()

	g, err := NewGenerator("TSLA", []string{"1s"}, 2, 1.0)
	require.NoError(t, err)

	base := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	prices := []string{"100", "100", "100", "101", "98", "101", "101"}

	var got []Signal
	for i, p := range prices {
		got = append(got, g.OnTick(market.Tick{Symbol: "TSLA", Price: d(p), Time: base.Add(time.Duration(i) * time.Second)})...)
	}
	// other symbols are ignored
	assert.Empty(t, g.OnTick(market.Tick{Symbol: "AAPL", Price: d("1"), Time: base.Add(time.Hour)}))

	require.Len(t, got, 2)
	assert.Equal(t, Down, got[0].Direction)
	assert.Equal(t, "1s", got[0].Timeframe)
	assert.True(t, got[0].Stop.Equal(d("100")))
	assert.Equal(t, Up, got[1].Direction)
	assert.True(t, got[1].Stop.Equal(d("98")))
	assert.Equal(t, "utbot", got[1].Source)

	snaps := g.Snapshots()
	require.Len(t, snaps, 1)
	assert.Equal(t, Long, snaps[0].Decision.Trend)

	g.SetSymbol("AAPL")
	assert.Equal(t, "AAPL", g.Symbol())
	assert.Equal(t, Trend(""), g.Snapshots()[0].Decision.Trend)
}

func TestNewGeneratorRejectsUnknownTimeframe(t *testing.T) {
	t.Parallel()

	_, err := NewGenerator("TSLA", []string{"1m", "2m"}, 10, 1)
	assert.Error(t, err)
}
