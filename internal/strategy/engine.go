package strategy

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	solana "github.com/gagliardetto/solana-go"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"tipbot-go/internal/config"
	"tipbot-go/internal/failure"
	"tipbot-go/internal/history"
	"tipbot-go/internal/metrics"
	"tipbot-go/internal/retry"
	"tipbot-go/internal/risk"
	"tipbot-go/internal/signal"
)

// BalanceSource reports the spendable balance of an account at call time.
type BalanceSource interface {
	Balance(ctx context.Context, owner solana.PublicKey) (decimal.Decimal, error)
}

// VolumeSource reports recent traded volume for a pair.
type VolumeSource interface {
	Volume(ctx context.Context, pair string) (decimal.Decimal, error)
}

// Policies are the retry policies of the engine's network reads.
type Policies struct {
	Volume  retry.Policy
	Balance retry.Policy
}

type engineState struct {
	mode     string
	params   Params
	strategy Strategy
	sizer    risk.Sizer
	limits   risk.Limits
}

// Engine turns recorded price history into sized trading signals.
type Engine struct {
	store    *history.Store
	balances BalanceSource
	volumes  VolumeSource
	retrier  *retry.Retrier
	policies Policies
	account  solana.PublicKey
	log      zerolog.Logger
	now      func() time.Time

	state atomic.Pointer[engineState]
}

// NewEngine wires the engine. volumes may be nil, in which case volume-gated strategies abstain.
func NewEngine(store *history.Store, balances BalanceSource, volumes VolumeSource, retrier *retry.Retrier, policies Policies, account solana.PublicKey, log zerolog.Logger) *Engine {
	if policies.Volume.Name == "" {
		policies.Volume.Name = "volume"
	}
	if policies.Balance.Name == "" {
		policies.Balance.Name = "balance"
	}
	if policies.Volume.Retryable == nil {
		policies.Volume.Retryable = failure.IsTransient
	}
	if policies.Balance.Retryable == nil {
		policies.Balance.Retryable = failure.IsTransient
	}
	return &Engine{
		store:    store,
		balances: balances,
		volumes:  volumes,
		retrier:  retrier,
		policies: policies,
		account:  account,
		log:      log,
		now:      time.Now,
	}
}

// Reconfigure atomically swaps the strategy and sizing rules. Evaluations already
// running finish with the configuration they started with.
func (e *Engine) Reconfigure(mode string, params Params, r config.Risk) error {
	if err := config.ValidateParams(params); err != nil {
		return err
	}
	strat, err := Build(mode, params)
	if err != nil {
		return err
	}
	canonical, _ := Normalize(mode)
	e.state.Store(&engineState{
		mode:     canonical,
		params:   params,
		strategy: strat,
		sizer:    risk.NewSizer(r.RiskFraction, r.MaxPositionSize),
		limits:   risk.Limits{MaxNotionalPerTrade: decimal.NewFromFloat(r.MaxNotionalPerTrade)},
	})
	e.log.Info().Str("strategy", strat.Name()).Int("lookback", strat.Lookback()).Msg("strategy configured")
	return nil
}

// Mode returns the canonical name of the active strategy.
func (e *Engine) Mode() string {
	if st := e.state.Load(); st != nil {
		return st.mode
	}
	return ""
}

// Params returns the active strategy parameters.
func (e *Engine) Params() Params {
	if st := e.state.Load(); st != nil {
		return st.params
	}
	return Params{}
}

// Strategy returns the active strategy, or nil before the first Reconfigure.
func (e *Engine) Strategy() Strategy {
	if st := e.state.Load(); st != nil {
		return st.strategy
	}
	return nil
}

// Evaluate decides on pair. It returns (nil, nil) when the strategy abstains and an
// error only when a network read failed after retries.
func (e *Engine) Evaluate(ctx context.Context, pair string) (*signal.Signal, error) {
	st := e.state.Load()
	if st == nil {
		return nil, errors.New("strategy engine not configured")
	}
	strat := st.strategy
	logger := e.log.With().Str("pair", pair).Str("strategy", strat.Name()).Logger()

	n := e.store.Len(pair)
	if n < strat.Lookback() {
		logger.Debug().Int("have", n).Int("need", strat.Lookback()).Msg("insufficient history, abstaining")
		return nil, nil
	}
	prices, err := e.store.Window(pair, n)
	if err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}
	in := Input{Pair: pair, History: prices}

	if gated, ok := strat.(VolumeGated); ok && gated.NeedsVolume() {
		vol, err := e.volume(ctx, pair)
		switch {
		case err == nil:
			in.Volume = &vol
		case failure.IsTransient(err):
			return nil, err
		default:
			logger.Debug().Err(err).Msg("volume unavailable")
		}
	}

	action, ok := strat.Evaluate(in)
	if !ok {
		return nil, nil
	}

	balance, err := retry.Run(ctx, e.retrier, e.policies.Balance, func(ctx context.Context) (decimal.Decimal, error) {
		return e.balances.Balance(ctx, e.account)
	})
	if err != nil {
		return nil, failure.Classify("balance", err)
	}

	price := in.Current()
	qty := st.sizer.Size(balance, price)
	if !qty.IsPositive() {
		logger.Info().Str("balance", balance.String()).Msg("signal sized to zero, abstaining")
		return nil, nil
	}
	sig := &signal.Signal{
		ID:         ulid.Make().String(),
		Pair:       pair,
		Action:     action,
		Quantity:   qty,
		LimitPrice: price,
		Account:    e.account,
		Reason:     strat.Name(),
		CreatedAt:  e.now().UTC(),
	}
	if !st.limits.Allow(sig.Notional()) {
		logger.Warn().Str("notional", sig.Notional().String()).Msg("notional above per-trade limit, abstaining")
		return nil, nil
	}
	metrics.SignalsTotal.WithLabelValues(pair, string(action)).Inc()
	logger.Info().
		Str("id", sig.ID).
		Str("side", string(action)).
		Str("qty", qty.String()).
		Str("price", price.String()).
		Msg("signal")
	return sig, nil
}

func (e *Engine) volume(ctx context.Context, pair string) (decimal.Decimal, error) {
	if e.volumes == nil {
		return decimal.Zero, errors.New("no volume source")
	}
	return retry.Run(ctx, e.retrier, e.policies.Volume, func(ctx context.Context) (decimal.Decimal, error) {
		return e.volumes.Volume(ctx, pair)
	})
}
