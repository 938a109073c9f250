package strategy

import (
	"math/rand"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tipbot-go/internal/config"
	"tipbot-go/internal/signal"
)

func prices(vals ...float64) []decimal.Decimal {
	out := make([]decimal.Decimal, len(vals))
	for i, v := range vals {
		out[i] = decimal.NewFromFloat(v)
	}
	return out
}

func vol(v float64) *decimal.Decimal {
	d := decimal.NewFromFloat(v)
	return &d
}

func TestRSIIsHundredWithoutLosses(t *testing.T) {
	rsi, ok := RSI(prices(1, 2, 3, 4, 5), 4)
	require.True(t, ok)
	assert.True(t, rsi.Equal(decimal.NewFromInt(100)))

	rsi, ok = RSI(prices(5, 5, 5), 2)
	require.True(t, ok)
	assert.True(t, rsi.Equal(decimal.NewFromInt(100)), "flat series has no losses")
}

func TestRSIKnownValue(t *testing.T) {
	// gains 2, losses 1 over 2 deltas: RS = 2, RSI = 100 - 100/3
	rsi, ok := RSI(prices(10, 12, 11), 2)
	require.True(t, ok)
	assert.Equal(t, "66.67", rsi.StringFixed(2))
}

func TestRSIUsesMostRecentWindow(t *testing.T) {
	a, ok := RSI(prices(100, 1, 2, 3), 2)
	require.True(t, ok)
	assert.True(t, a.Equal(decimal.NewFromInt(100)))
}

func TestRSIStaysInRange(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 500; i++ {
		series := make([]float64, 15)
		for j := range series {
			series[j] = rng.Float64()*100 + 0.01
		}
		rsi, ok := RSI(prices(series...), 14)
		require.True(t, ok)
		assert.False(t, rsi.IsNegative(), "rsi %s", rsi)
		assert.False(t, rsi.GreaterThan(decimal.NewFromInt(100)), "rsi %s", rsi)
	}
}

func TestRSIShortHistory(t *testing.T) {
	_, ok := RSI(prices(1, 2, 3), 3)
	assert.False(t, ok)
}

func TestMomentumSignals(t *testing.T) {
	m := NewMomentum(4, 70, 30, 1000)
	assert.Equal(t, 5, m.Lookback())
	assert.True(t, m.NeedsVolume())

	action, ok := m.Evaluate(Input{Pair: "SOL/USD", History: prices(10, 9, 8, 7, 6), Volume: vol(5000)})
	require.True(t, ok)
	assert.Equal(t, signal.Buy, action)

	action, ok = m.Evaluate(Input{Pair: "SOL/USD", History: prices(6, 7, 8, 9, 10), Volume: vol(5000)})
	require.True(t, ok)
	assert.Equal(t, signal.Sell, action)

	_, ok = m.Evaluate(Input{Pair: "SOL/USD", History: prices(10, 11, 10, 11, 10), Volume: vol(5000)})
	assert.False(t, ok, "neutral RSI")
}

func TestMomentumVolumeGate(t *testing.T) {
	m := NewMomentum(4, 70, 30, 1000)
	down := prices(10, 9, 8, 7, 6)

	_, ok := m.Evaluate(Input{History: down})
	assert.False(t, ok, "unknown volume")
	_, ok = m.Evaluate(Input{History: down, Volume: vol(999)})
	assert.False(t, ok, "volume below threshold")

	ungated := NewMomentum(4, 70, 30, 0)
	assert.False(t, ungated.NeedsVolume())
	action, ok := ungated.Evaluate(Input{History: down})
	require.True(t, ok)
	assert.Equal(t, signal.Buy, action)
}

func TestMomentumZeroMinVolumeIsUngated(t *testing.T) {
	params, err := config.ParseParams(config.DefaultParams(), "min_volume: 0\nrsi_period: 4")
	require.NoError(t, err)
	strat, err := Build("momentum", params)
	require.NoError(t, err)

	gated, ok := strat.(VolumeGated)
	require.True(t, ok)
	assert.False(t, gated.NeedsVolume())
	action, ok := strat.Evaluate(Input{History: prices(10, 9, 8, 7, 6)})
	require.True(t, ok)
	assert.Equal(t, signal.Buy, action)
}

func TestMomentumAbstainsOnShortHistory(t *testing.T) {
	m := NewMomentum(14, 70, 30, 0)
	_, ok := m.Evaluate(Input{History: prices(5, 4, 3)})
	assert.False(t, ok)
}
