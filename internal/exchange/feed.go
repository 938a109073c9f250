// Package exchange hosts the oracle price feed and auxiliary market data sources.
package exchange

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	solana "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"tipbot-go/internal/failure"
	"tipbot-go/internal/history"
	"tipbot-go/internal/metrics"
	"tipbot-go/internal/signal"
)

// AccountFetcher is the slice of the Solana rpc client the aggregator needs.
type AccountFetcher interface {
	GetMultipleAccountsWithOpts(ctx context.Context, accounts []solana.PublicKey, opts *rpc.GetMultipleAccountsOpts) (*rpc.GetMultipleAccountsResult, error)
}

// Target binds a pair to its oracle price account.
type Target struct {
	Pair    string
	Account solana.PublicKey
}

// PairError is a per-pair failure that did not abort the poll.
type PairError struct {
	Pair string
	Err  error
}

func (e PairError) Error() string { return e.Pair + ": " + e.Err.Error() }

func (e PairError) Unwrap() error { return e.Err }

// Result is the outcome of one poll.
type Result struct {
	Prices   map[string]decimal.Decimal
	Points   []signal.PricePoint
	Failures []PairError
}

// Aggregator polls oracle accounts and records every good price into the history store.
type Aggregator struct {
	fetcher AccountFetcher
	store   *history.Store
	log     zerolog.Logger
	commit  rpc.CommitmentType
	limiter *rate.Limiter

	mu      sync.RWMutex
	targets []Target
}

// Option configures Aggregator construction parameters.
type Option func(*Aggregator)

// WithRateLimit caps polls per second; zero or less disables the limit.
func WithRateLimit(perSecond float64) Option {
	return func(a *Aggregator) {
		if perSecond > 0 {
			a.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
		}
	}
}

// WithCommitment overrides the commitment used for account reads.
func WithCommitment(c rpc.CommitmentType) Option {
	return func(a *Aggregator) {
		if c != "" {
			a.commit = c
		}
	}
}

// NewAggregator constructs an aggregator over the given oracle targets.
func NewAggregator(fetcher AccountFetcher, store *history.Store, targets []Target, log zerolog.Logger, opts ...Option) *Aggregator {
	a := &Aggregator{
		fetcher: fetcher,
		store:   store,
		log:     log,
		commit:  rpc.CommitmentConfirmed,
	}
	a.SetTargets(targets)
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// SetTargets replaces the tracked oracle list (deduplicated by pair, sorted for determinism).
func (a *Aggregator) SetTargets(targets []Target) {
	unique := make(map[string]Target, len(targets))
	for _, t := range targets {
		t.Pair = strings.TrimSpace(t.Pair)
		if t.Pair == "" {
			continue
		}
		unique[t.Pair] = t
	}
	out := make([]Target, 0, len(unique))
	for _, t := range unique {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Pair < out[j].Pair })

	a.mu.Lock()
	a.targets = out
	a.mu.Unlock()
}

// Targets returns a copy of the tracked oracle list.
func (a *Aggregator) Targets() []Target {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return append([]Target(nil), a.targets...)
}

// Poll fetches every oracle account in one round-trip. A transport or protocol failure
// fails the whole poll; decode problems are reported per pair in Result.Failures.
func (a *Aggregator) Poll(ctx context.Context) (Result, error) {
	targets := a.Targets()
	res := Result{Prices: make(map[string]decimal.Decimal, len(targets))}
	if len(targets) == 0 {
		return res, nil
	}
	if a.limiter != nil {
		if err := a.limiter.Wait(ctx); err != nil {
			return res, failure.Classify("getMultipleAccounts", err)
		}
	}

	keys := make([]solana.PublicKey, len(targets))
	for i, t := range targets {
		keys[i] = t.Account
	}
	out, err := a.fetcher.GetMultipleAccountsWithOpts(ctx, keys, &rpc.GetMultipleAccountsOpts{
		Encoding:   solana.EncodingBase64,
		Commitment: a.commit,
	})
	if err != nil {
		return res, failure.Classify("getMultipleAccounts", err)
	}
	if out == nil || len(out.Value) != len(targets) {
		got := 0
		if out != nil {
			got = len(out.Value)
		}
		return res, failure.Newf(failure.RPC, "getMultipleAccounts", "expected %d accounts, got %d", len(targets), got)
	}

	for i, t := range targets {
		price, err := decodeAccount(out.Value[i])
		if err != nil {
			res.Failures = append(res.Failures, PairError{Pair: t.Pair, Err: err})
			metrics.OracleFailuresTotal.WithLabelValues(t.Pair).Inc()
			a.log.Warn().Err(err).Str("pair", t.Pair).Str("account", t.Account.String()).Msg("oracle decode failed")
			continue
		}
		pt := a.store.RecordAt(t.Pair, price.Price, price.PublishSlot)
		res.Prices[t.Pair] = price.Price
		res.Points = append(res.Points, pt)
		metrics.PriceObservationsTotal.WithLabelValues(t.Pair).Inc()
	}
	a.log.Debug().Int("prices", len(res.Prices)).Int("failures", len(res.Failures)).Msg("oracle poll")
	return res, nil
}

func decodeAccount(acc *rpc.Account) (PythPrice, error) {
	if acc == nil {
		return PythPrice{}, fmt.Errorf("account not found")
	}
	if acc.Data == nil {
		return PythPrice{}, fmt.Errorf("account has no data")
	}
	return DecodePythPrice(acc.Data.GetBinary())
}
