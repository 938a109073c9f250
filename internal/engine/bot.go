// Package engine runs the poll → evaluate → execute control loop and exposes the operator surface.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	solana "github.com/gagliardetto/solana-go"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"tipbot-go/internal/config"
	dexsol "tipbot-go/internal/dex/solana"
	"tipbot-go/internal/exchange"
	"tipbot-go/internal/failure"
	"tipbot-go/internal/history"
	"tipbot-go/internal/monitor"
	"tipbot-go/internal/portfolio"
	"tipbot-go/internal/retry"
	"tipbot-go/internal/signal"
	"tipbot-go/internal/strategy"
)

// PriceSource polls the oracle and records prices into history.
type PriceSource interface {
	Poll(ctx context.Context) (exchange.Result, error)
}

// Evaluator is the signal engine.
type Evaluator interface {
	Evaluate(ctx context.Context, pair string) (*signal.Signal, error)
	Reconfigure(mode string, params strategy.Params, r config.Risk) error
	Mode() string
	Params() strategy.Params
}

// Executor submits signals as bundles.
type Executor interface {
	Submit(ctx context.Context, sig signal.Signal) (string, error)
}

// BundleChecker reports whether a submitted bundle landed.
type BundleChecker interface {
	BundleStatus(ctx context.Context, id string) (dexsol.BundleStatus, error)
}

// ErrorHandler runs corrective actions for terminal errors.
type ErrorHandler interface {
	Handle(ctx context.Context, err error, owner solana.PublicKey) failure.Kind
}

// BalanceReader answers the operator's balance queries.
type BalanceReader interface {
	SOLBalance(ctx context.Context, owner solana.PublicKey) (decimal.Decimal, error)
	TokenBalance(ctx context.Context, account solana.PublicKey) (decimal.Decimal, error)
}

// Deps are the collaborators of the loop.
type Deps struct {
	Feed       PriceSource
	Signals    Evaluator
	Executor   Executor
	Bundles    BundleChecker // optional; enables the landing sweep
	Errors     ErrorHandler
	Monitor    *monitor.Monitor
	Store      *history.Store
	Book       *portfolio.Book
	Ledger     *portfolio.Ledger
	Balances   BalanceReader
	Retrier    *retry.Retrier
	Owner      solana.PublicKey
	QuoteToken solana.PublicKey
}

// Options tune the loop.
type Options struct {
	Interval     time.Duration
	CycleTimeout time.Duration
	Pairs        []string
	Risk         config.Risk
	OraclePolicy retry.Policy
	SubmitPolicy retry.Policy
	// StatusChecks bounds how many cycles a bundle is polled for before it is given up on.
	StatusChecks int
}

const defaultStatusChecks = 30

type pendingBundle struct {
	sig    signal.Signal
	checks int
}

// Bot drives one cycle at a time. Start and Stop toggle trading; both take effect at the next cycle boundary.
type Bot struct {
	deps Deps
	opts Options
	log  zerolog.Logger
	now  func() time.Time

	running atomic.Bool
	cycles  atomic.Uint64

	mu      sync.Mutex
	risk    config.Risk
	alerts  []Alert
	nextID  int
	notify  chan AlertEvent
	pending map[string]*pendingBundle
}

// New wires a bot. It starts stopped.
func New(deps Deps, opts Options, log zerolog.Logger) *Bot {
	if opts.Interval <= 0 {
		opts.Interval = time.Second
	}
	if opts.CycleTimeout <= 0 {
		opts.CycleTimeout = 2 * time.Minute
	}
	if opts.OraclePolicy.Name == "" {
		opts.OraclePolicy.Name = "oracle"
	}
	if opts.SubmitPolicy.Name == "" {
		opts.SubmitPolicy.Name = "submit"
	}
	if opts.OraclePolicy.Retryable == nil {
		opts.OraclePolicy.Retryable = failure.IsTransient
	}
	if opts.SubmitPolicy.Retryable == nil {
		opts.SubmitPolicy.Retryable = failure.IsTransient
	}
	if opts.StatusChecks <= 0 {
		opts.StatusChecks = defaultStatusChecks
	}
	return &Bot{
		deps:    deps,
		opts:    opts,
		log:     log,
		now:     time.Now,
		risk:    opts.Risk,
		notify:  make(chan AlertEvent, 16),
		pending: make(map[string]*pendingBundle),
	}
}

// Start enables trading from the next cycle on.
func (b *Bot) Start() {
	if !b.running.Swap(true) {
		b.log.Info().Msg("trading started")
	}
}

// Stop disables trading once the current cycle completes.
func (b *Bot) Stop() {
	if b.running.Swap(false) {
		b.log.Info().Msg("trading stopped")
	}
}

// Running reports whether cycles are being executed.
func (b *Bot) Running() bool { return b.running.Load() }

// Cycles returns the number of completed cycles.
func (b *Bot) Cycles() uint64 { return b.cycles.Load() }

// Run ticks until ctx is cancelled. Cancellation is only observed between cycles.
func (b *Bot) Run(ctx context.Context) error {
	ticker := time.NewTicker(b.opts.Interval)
	defer ticker.Stop()
	b.log.Info().Dur("interval", b.opts.Interval).Strs("pairs", b.opts.Pairs).Msg("control loop started")
	for {
		if ctx.Err() != nil {
			break
		}
		if b.running.Load() {
			b.RunCycle(ctx)
		}
		select {
		case <-ctx.Done():
		case <-ticker.C:
		}
	}
	b.log.Info().Uint64("cycles", b.Cycles()).Msg("control loop stopped")
	return nil
}

// RunCycle performs one poll → evaluate → execute pass. The cycle is detached from ctx
// cancellation so in-flight submissions complete; it is bounded by the cycle timeout.
func (b *Bot) RunCycle(ctx context.Context) {
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), b.opts.CycleTimeout)
	defer cancel()
	defer b.cycles.Add(1)

	b.sweepBundles(cctx)

	res, err := retry.Run(cctx, b.deps.Retrier, b.opts.OraclePolicy, b.deps.Feed.Poll)
	if err != nil {
		b.deps.Errors.Handle(cctx, failure.Classify("poll", err), b.deps.Owner)
		return
	}
	for _, pe := range res.Failures {
		err := error(pe)
		if failure.KindOf(err) == failure.Unknown {
			err = failure.New(failure.RPC, "oracle", pe)
		}
		b.deps.Errors.Handle(cctx, err, b.deps.Owner)
	}
	b.checkAlerts(res.Prices)

	pairs := make([]string, 0, len(res.Prices))
	for pair := range res.Prices {
		pairs = append(pairs, pair)
	}
	sort.Strings(pairs)

	for _, pair := range pairs {
		sig, err := b.deps.Signals.Evaluate(cctx, pair)
		if err != nil {
			b.deps.Errors.Handle(cctx, failure.Classify("evaluate", err), b.deps.Owner)
			continue
		}
		if sig == nil {
			continue
		}
		b.execute(cctx, *sig)
	}
}

func (b *Bot) execute(ctx context.Context, sig signal.Signal) {
	start := b.now()
	id, err := retry.Run(ctx, b.deps.Retrier, b.opts.SubmitPolicy, func(ctx context.Context) (string, error) {
		return b.deps.Executor.Submit(ctx, sig)
	})
	outcome := signal.Outcome{
		SignalID: sig.ID,
		Pair:     sig.Pair,
		Action:   sig.Action,
		Quantity: sig.Quantity,
		Price:    sig.LimitPrice,
		Success:  err == nil,
		Latency:  b.now().Sub(start),
		BundleID: id,
		Ts:       b.now().UTC(),
	}
	if err != nil {
		outcome.Err = err.Error()
	} else if b.deps.Book != nil {
		pnl, berr := b.deps.Book.Apply(sig.Pair, sig.Action, sig.Quantity, sig.LimitPrice)
		if berr != nil {
			b.log.Warn().Err(berr).Str("signal", sig.ID).Msg("position book rejected fill")
		}
		outcome.PnL = pnl
	}

	b.deps.Monitor.Record(outcome)
	if b.deps.Ledger != nil {
		b.deps.Ledger.Record(outcome)
	}
	if err != nil {
		b.deps.Errors.Handle(ctx, failure.Classify("submit", err), sig.Account)
		return
	}
	if b.deps.Bundles != nil {
		b.mu.Lock()
		b.pending[id] = &pendingBundle{sig: sig}
		b.mu.Unlock()
	}
}

// sweepBundles checks the landing status of bundles accepted in earlier cycles. A bundle that
// landed with an on-chain error is dispatched as an Execution failure; one still unknown after
// StatusChecks sweeps is dropped.
func (b *Bot) sweepBundles(ctx context.Context) {
	if b.deps.Bundles == nil {
		return
	}
	b.mu.Lock()
	ids := make([]string, 0, len(b.pending))
	for id := range b.pending {
		ids = append(ids, id)
	}
	b.mu.Unlock()
	sort.Strings(ids)

	for _, id := range ids {
		status, err := b.deps.Bundles.BundleStatus(ctx, id)
		b.mu.Lock()
		p := b.pending[id]
		switch {
		case err == nil && status.ConfirmationStatus != "":
			delete(b.pending, id)
		case err != nil && failure.KindOf(err) == failure.Execution:
			delete(b.pending, id)
		default:
			p.checks++
			if p.checks >= b.opts.StatusChecks {
				delete(b.pending, id)
				b.log.Warn().Str("bundle", id).Int("checks", p.checks).Msg("bundle status unknown, no longer tracking")
			}
		}
		b.mu.Unlock()

		if err != nil && failure.KindOf(err) == failure.Execution {
			b.log.Error().Err(err).Str("bundle", id).Str("signal", p.sig.ID).Msg("bundle failed on-chain")
			b.deps.Errors.Handle(ctx, err, p.sig.Account)
		} else if err == nil && status.ConfirmationStatus != "" {
			b.log.Debug().Str("bundle", id).Str("status", status.ConfirmationStatus).Uint64("slot", status.Slot).Msg("bundle landed")
		}
	}
}

// PendingBundles returns the number of accepted bundles whose landing is not yet known.
func (b *Bot) PendingBundles() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

// GetPositions returns tracked positions marked at the latest recorded prices.
func (b *Bot) GetPositions() portfolio.Snapshot {
	if b.deps.Book == nil {
		return portfolio.Snapshot{}
	}
	return b.deps.Book.Snapshot(b.deps.Store.Marks())
}

// Balances is the operator's balance view.
type Balances struct {
	Owner solana.PublicKey
	SOL   decimal.Decimal
	Quote *decimal.Decimal // nil when no quote account is configured
}

// GetBalances queries the chain for the owner's balances.
func (b *Bot) GetBalances(ctx context.Context) (Balances, error) {
	out := Balances{Owner: b.deps.Owner}
	sol, err := b.deps.Balances.SOLBalance(ctx, b.deps.Owner)
	if err != nil {
		return out, fmt.Errorf("sol balance: %w", err)
	}
	out.SOL = sol
	if !b.deps.QuoteToken.IsZero() {
		quote, err := b.deps.Balances.TokenBalance(ctx, b.deps.QuoteToken)
		if err != nil {
			return out, fmt.Errorf("quote balance: %w", err)
		}
		out.Quote = &quote
	}
	return out, nil
}

// UpdateConfig switches strategy and applies a YAML/JSON mapping of strategy and sizing
// knobs (risk_fraction, max_position_size, max_notional_per_trade) on top of the active ones.
// An empty name keeps the active strategy. The swap is atomic; a cycle already evaluating
// finishes with the previous configuration.
func (b *Bot) UpdateConfig(name, params string) error {
	if strings.TrimSpace(name) == "" {
		name = b.deps.Signals.Mode()
	}
	if _, err := strategy.Normalize(name); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	next, risk, err := config.ParseUpdate(b.deps.Signals.Params(), b.risk, params)
	if err != nil {
		return err
	}
	if need := strategy.RequiredCapacity(next); need > b.deps.Store.Capacity() {
		return fmt.Errorf("strategy needs %d prices of history, store holds %d", need, b.deps.Store.Capacity())
	}
	if err := b.deps.Signals.Reconfigure(name, next, risk); err != nil {
		return err
	}
	b.risk = risk
	b.log.Info().Str("strategy", b.deps.Signals.Mode()).
		Float64("risk_fraction", risk.RiskFraction).
		Float64("max_position_size", risk.MaxPositionSize).
		Msg("configuration updated")
	return nil
}

// Risk returns the active sizing rules.
func (b *Bot) Risk() config.Risk {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.risk
}

// Stats returns the monitor's current report.
func (b *Bot) Stats() monitor.Report { return b.deps.Monitor.Report() }

// ErrUnknownPair is returned for alerts on pairs the bot does not poll.
var ErrUnknownPair = errors.New("unknown pair")
