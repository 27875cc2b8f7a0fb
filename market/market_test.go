package market

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestParseSide(t *testing.T) {
	tests := []struct {
		in   string
		want Side
		ok   bool
	}{
		{"BUY", Buy, true},
		{" buy ", Buy, true},
		{"long", Buy, true},
		{"SELL", Sell, true},
		{"Short", Sell, true},
		{"hold", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, err := ParseSide(tt.in)
		if !tt.ok {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}
}

func TestSideHelpers(t *testing.T) {
	assert.Equal(t, int64(1), Buy.Sign())
	assert.Equal(t, int64(-1), Sell.Sign())
	assert.Equal(t, Sell, Buy.Opposite())
	assert.Equal(t, "LONG", Buy.Label())
	assert.Equal(t, "SHORT", Sell.Label())
	assert.False(t, Side("").Valid())
}

func TestTickQuote(t *testing.T) {
	tk := Tick{Price: d("150.02")}
	assert.True(t, tk.Valid())
	assert.True(t, tk.Mid().Equal(d("150.02")))
	assert.True(t, tk.Spread().IsZero())

	tk.Bid, tk.Ask = d("150.00"), d("150.04")
	assert.True(t, tk.Mid().Equal(d("150.02")))
	assert.True(t, tk.Spread().Equal(d("0.04")))

	assert.False(t, Tick{Price: d("0")}.Valid())
	assert.False(t, Tick{Price: d("-1")}.Valid())
}

func TestTickStore(t *testing.T) {
	ts := NewTickStore()
	_, err := ts.Get("TSLA")
	assert.ErrorIs(t, err, ErrNoTick)

	ts.Set(Tick{Symbol: "TSLA", Price: d("150")})
	ts.Set(Tick{Symbol: "TSLA", Price: d("151")})
	got, err := ts.Get("TSLA")
	require.NoError(t, err)
	assert.True(t, got.Price.Equal(d("151")))
}

func TestTimeframeRoundTrip(t *testing.T) {
	for _, tf := range []string{"1s", "1m", "5m", "15m", "30m", "1h", "4h", "1d"} {
		dur, err := ParseTimeframe(tf)
		require.NoError(t, err, tf)
		back, err := TimeframeString(dur)
		require.NoError(t, err, tf)
		assert.Equal(t, tf, back)
	}

	_, err := ParseTimeframe("7m")
	assert.Error(t, err)
	_, err = TimeframeString(90 * time.Second)
	assert.Error(t, err)
	_, err = TimeframeString(0)
	assert.Error(t, err)
}

func TestCandleExtend(t *testing.T) {
	var c Candle
	c.Extend(d("10"), 100)
	c.Extend(d("12"), 50)
	c.Extend(d("9"), 25)
	c.Extend(d("11"), 0)

	assert.True(t, c.Open.Equal(d("10")))
	assert.True(t, c.High.Equal(d("12")))
	assert.True(t, c.Low.Equal(d("9")))
	assert.True(t, c.Close.Equal(d("11")))
	assert.Equal(t, int64(175), c.Volume)
}
