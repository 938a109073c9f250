package strategy

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"tipbot-go/internal/config"
	"tipbot-go/internal/signal"
)

// Input is the market view a strategy decides on. History is oldest first and ends with the current price.
type Input struct {
	Pair    string
	History []decimal.Decimal
	Volume  *decimal.Decimal // nil when unknown
}

// Current returns the most recent price.
func (in Input) Current() decimal.Decimal {
	if len(in.History) == 0 {
		return decimal.Zero
	}
	return in.History[len(in.History)-1]
}

// Strategy defines behaviour shared by strategy implementations used by the bot.
type Strategy interface {
	Name() string
	// Lookback is the minimum number of prices Evaluate needs.
	Lookback() int
	Evaluate(in Input) (signal.Action, bool)
}

// VolumeGated is implemented by strategies that want a volume figure in Input.
type VolumeGated interface {
	NeedsVolume() bool
}

// Params expresses tunable knobs required by strategy constructors.
type Params = config.StrategyParams

const (
	ModeMomentum = "momentum"
	ModeTrend    = "trend"
)

// Normalize maps a mode alias to its canonical name.
func Normalize(mode string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "momentum", "rsi":
		return ModeMomentum, nil
	case "", "trend", "ma", "trend_follow", "trend_follower":
		return ModeTrend, nil
	default:
		return "", fmt.Errorf("unknown strategy %q", mode)
	}
}

// Build returns a strategy implementation matching the configured mode.
func Build(mode string, params Params) (Strategy, error) {
	canonical, err := Normalize(mode)
	if err != nil {
		return nil, err
	}
	switch canonical {
	case ModeMomentum:
		return NewMomentum(params.RSIPeriod, params.RSIOverbought, params.RSIOversold, params.MinVolume), nil
	default:
		return NewTrendFollower(params.MAPeriod, params.MinHistory, params.MinPriceChange), nil
	}
}

// RequiredCapacity is the history depth every strategy built from params can use.
func RequiredCapacity(params Params) int {
	n := params.RSIPeriod + 1
	if params.MAPeriod > n {
		n = params.MAPeriod
	}
	if params.MinHistory > n {
		n = params.MinHistory
	}
	return n
}
