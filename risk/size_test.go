package risk

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/pulse/market"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestSize_LongScenario(t *testing.T) {
	t.Parallel()

	got := Size(Inputs{
		Side:       market.Buy,
		RiskAmount: d("100"),
		Price:      d("150"),
		Stop:       d("145"),
		Balance:    d("10000"),
	})

	require.True(t, got.Valid)
	assert.Equal(t, int64(20), got.Quantity)
	assert.True(t, d("5").Equal(got.RiskPerShare))
	assert.True(t, d("100").Equal(got.TotalRisk))
	assert.True(t, d("3000").Equal(got.RequiredCapital))
	assert.False(t, got.LowBuyingPower)
	assert.Equal(t, NoRatio, got.Ratio)
	assert.Empty(t, got.Violations)
}

func TestSize_FloorsQuantity(t *testing.T) {
	t.Parallel()

	got := Size(Inputs{
		Side:       market.Buy,
		RiskAmount: d("100"),
		Price:      d("150"),
		Stop:       d("147"),
		Balance:    d("10000"),
	})

	require.True(t, got.Valid)
	assert.Equal(t, int64(33), got.Quantity)
	assert.True(t, d("99").Equal(got.TotalRisk))
}

func TestSize_RewardRatio(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		side   market.Side
		stop   string
		target string
		want   string
		reward string
	}{
		{"long target above", market.Buy, "145", "160", "1:2.0", "10"},
		{"long target below entry", market.Buy, "145", "140", NoRatio, "0"},
		{"short target below", market.Sell, "155", "135", "1:3.0", "15"},
		{"short target above entry", market.Sell, "155", "151", NoRatio, "0"},
		{"long fractional", market.Buy, "146", "157", "1:1.8", "7"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := Size(Inputs{
				Side:       tt.side,
				RiskAmount: d("100"),
				Price:      d("150"),
				Stop:       d(tt.stop),
				Target:     d(tt.target),
				Balance:    d("100000"),
			})
			require.True(t, got.Valid)
			assert.Equal(t, tt.want, got.Ratio)
			assert.True(t, d(tt.reward).Equal(got.RewardPerShare), "reward %s", got.RewardPerShare)
		})
	}
}

func TestSize_Invalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   Inputs
		code string
	}{
		{"no risk", Inputs{Side: market.Buy, Price: d("150"), Stop: d("145")}, "NO_RISK"},
		{"no price", Inputs{Side: market.Buy, RiskAmount: d("100"), Stop: d("145")}, "NO_PRICE"},
		{"zero stop", Inputs{Side: market.Buy, RiskAmount: d("100"), Price: d("150")}, "NO_STOP"},
		{"negative stop", Inputs{Side: market.Buy, RiskAmount: d("100"), Price: d("150"), Stop: d("-1")}, "NO_STOP"},
		{"long stop equal price", Inputs{Side: market.Buy, RiskAmount: d("100"), Price: d("150"), Stop: d("150")}, "STOP_WRONG_SIDE"},
		{"long stop above price", Inputs{Side: market.Buy, RiskAmount: d("100"), Price: d("150"), Stop: d("151")}, "STOP_WRONG_SIDE"},
		{"short stop below price", Inputs{Side: market.Sell, RiskAmount: d("100"), Price: d("150"), Stop: d("149")}, "STOP_WRONG_SIDE"},
		{"risk too small", Inputs{Side: market.Buy, RiskAmount: d("4"), Price: d("150"), Stop: d("145")}, "ZERO_QUANTITY"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := Size(tt.in)
			assert.False(t, got.Valid)
			assert.Zero(t, got.Quantity)
			assert.True(t, got.Has(tt.code), "violations: %+v", got.Violations)
		})
	}
}

func TestSize_LowBuyingPowerKeepsQuantity(t *testing.T) {
	t.Parallel()

	got := Size(Inputs{
		Side:       market.Buy,
		RiskAmount: d("100"),
		Price:      d("150"),
		Stop:       d("149"),
		Balance:    d("10000"),
	})

	assert.True(t, got.Valid)
	assert.Equal(t, int64(100), got.Quantity)
	assert.True(t, got.LowBuyingPower)
	assert.True(t, got.Has("LOW_BUYING_POWER"))
	assert.True(t, d("15000").Equal(got.RequiredCapital))
}

func TestSize_DefaultsToLong(t *testing.T) {
	t.Parallel()

	got := Size(Inputs{RiskAmount: d("100"), Price: d("150"), Stop: d("145"), Balance: d("10000")})
	assert.True(t, got.Valid)
	assert.Equal(t, int64(20), got.Quantity)
}

func TestSize_Deterministic(t *testing.T) {
	t.Parallel()

	in := Inputs{Side: market.Sell, RiskAmount: d("250"), Price: d("42.17"), Stop: d("43.02"), Target: d("40"), Balance: d("5000")}
	assert.Equal(t, Size(in), Size(in))
}
