// Package strategy contains trading signal generation logic over rolling price history.
package strategy

import (
	"github.com/shopspring/decimal"

	"tipbot-go/internal/signal"
)

var hundred = decimal.NewFromInt(100)

// Momentum trades RSI extremes: buy when oversold, sell when overbought, gated on traded volume.
type Momentum struct {
	period     int
	overbought decimal.Decimal
	oversold   decimal.Decimal
	minVolume  decimal.Decimal
}

// NewMomentum builds an RSI strategy. A zero period falls back to 14; thresholds are taken as given,
// so minVolume of zero disables the volume gate.
func NewMomentum(period int, overbought, oversold, minVolume float64) *Momentum {
	if period <= 0 {
		period = 14
	}
	if minVolume < 0 {
		minVolume = 0
	}
	return &Momentum{
		period:     period,
		overbought: decimal.NewFromFloat(overbought),
		oversold:   decimal.NewFromFloat(oversold),
		minVolume:  decimal.NewFromFloat(minVolume),
	}
}

// Name returns the identifier for the strategy implementation.
func (m *Momentum) Name() string { return "Momentum" }

// Lookback is period deltas, hence period+1 prices.
func (m *Momentum) Lookback() int { return m.period + 1 }

func (m *Momentum) NeedsVolume() bool { return m.minVolume.IsPositive() }

// Evaluate computes RSI over the most recent prices and applies the volume gate.
func (m *Momentum) Evaluate(in Input) (signal.Action, bool) {
	rsi, ok := RSI(in.History, m.period)
	if !ok {
		return "", false
	}
	if m.NeedsVolume() && (in.Volume == nil || in.Volume.LessThan(m.minVolume)) {
		return "", false
	}
	switch {
	case rsi.LessThan(m.oversold):
		return signal.Buy, true
	case rsi.GreaterThan(m.overbought):
		return signal.Sell, true
	default:
		return "", false
	}
}

// RSI is the relative strength index over the last period+1 prices using simple averages.
// It is 100 when there were no losses and false when history is too short.
func RSI(prices []decimal.Decimal, period int) (decimal.Decimal, bool) {
	if period <= 0 || len(prices) < period+1 {
		return decimal.Zero, false
	}
	window := prices[len(prices)-period-1:]
	gains, losses := decimal.Zero, decimal.Zero
	for i := 1; i < len(window); i++ {
		delta := window[i].Sub(window[i-1])
		if delta.IsPositive() {
			gains = gains.Add(delta)
		} else {
			losses = losses.Sub(delta)
		}
	}
	n := decimal.NewFromInt(int64(period))
	avgGain, avgLoss := gains.Div(n), losses.Div(n)
	if avgLoss.IsZero() {
		return hundred, true
	}
	rs := avgGain.Div(avgLoss)
	return hundred.Sub(hundred.Div(decimal.NewFromInt(1).Add(rs))), true
}
