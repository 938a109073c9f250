package strategy

import (
	"github.com/shopspring/decimal"

	"tipbot-go/internal/signal"
)

// TrendFollower emits signals when price breaks away from its simple moving average by a minimum fraction.
type TrendFollower struct {
	period     int
	minHistory int
	minChange  decimal.Decimal
}

// NewTrendFollower builds a moving-average strategy. minHistory of zero requires a full period of prices.
func NewTrendFollower(maPeriod, minHistory int, minPriceChange float64) *TrendFollower {
	if maPeriod <= 0 {
		maPeriod = 20
	}
	if minHistory <= 0 {
		minHistory = maPeriod
	}
	if minPriceChange < 0 {
		minPriceChange = 0
	}
	return &TrendFollower{
		period:     maPeriod,
		minHistory: minHistory,
		minChange:  decimal.NewFromFloat(minPriceChange),
	}
}

// Name returns the configured identifier for logging.
func (t *TrendFollower) Name() string { return "TrendFollower" }

func (t *TrendFollower) Lookback() int { return t.minHistory }

// Evaluate compares the current price with the moving average of up to period prices, current included.
func (t *TrendFollower) Evaluate(in Input) (signal.Action, bool) {
	ma, ok := SMA(in.History, t.period)
	if !ok || len(in.History) < t.minHistory {
		return "", false
	}
	current := in.Current()
	one := decimal.NewFromInt(1)
	switch {
	case current.GreaterThan(ma.Mul(one.Add(t.minChange))):
		return signal.Buy, true
	case current.LessThan(ma.Mul(one.Sub(t.minChange))):
		return signal.Sell, true
	default:
		return "", false
	}
}

// SMA averages the last min(period, len(prices)) prices.
func SMA(prices []decimal.Decimal, period int) (decimal.Decimal, bool) {
	if period <= 0 || len(prices) == 0 {
		return decimal.Zero, false
	}
	n := period
	if len(prices) < n {
		n = len(prices)
	}
	return decimal.Sum(prices[len(prices)-n], prices[len(prices)-n+1:]...).Div(decimal.NewFromInt(int64(n))), true
}
