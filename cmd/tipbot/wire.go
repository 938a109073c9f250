package main

import (
	"fmt"
	"io"
	"time"

	solana "github.com/gagliardetto/solana-go"
	"github.com/rs/zerolog"

	"tipbot-go/internal/config"
	dexsol "tipbot-go/internal/dex/solana"
	"tipbot-go/internal/engine"
	"tipbot-go/internal/exchange"
	"tipbot-go/internal/execution"
	"tipbot-go/internal/failure"
	"tipbot-go/internal/history"
	"tipbot-go/internal/metrics"
	"tipbot-go/internal/monitor"
	"tipbot-go/internal/portfolio"
	"tipbot-go/internal/retry"
	"tipbot-go/internal/strategy"
)

// app holds every wired component of a running bot.
type app struct {
	cfg     *config.Config
	signer  solana.PrivateKey
	conn    *dexsol.Connection
	relay   *dexsol.Relay
	exec    *execution.Client
	monitor *monitor.Monitor
	bot     *engine.Bot
	closers []io.Closer
}

func (a *app) Close() error {
	var first error
	for _, c := range a.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func ms(n int) time.Duration { return time.Duration(n) * time.Millisecond }

func policy(name string, p config.RetryPolicy) retry.Policy {
	return retry.Policy{
		Name:         name,
		MaxAttempts:  p.MaxAttempts,
		InitialDelay: p.InitialDelay(),
		Multiplier:   p.Multiplier,
		MaxDelay:     p.MaxDelay(),
		Jitter:       0.1,
		Retryable:    failure.IsTransient,
	}
}

func optionalKey(field, s string) (solana.PublicKey, error) {
	if s == "" {
		return solana.PublicKey{}, nil
	}
	key, err := solana.PublicKeyFromBase58(s)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("%s: %w", field, err)
	}
	return key, nil
}

func requiredKey(field, s string) (solana.PublicKey, error) {
	if s == "" {
		return solana.PublicKey{}, fmt.Errorf("%s is required", field)
	}
	return optionalKey(field, s)
}

// newExecution wires the chain connection, the relay and the execution client.
func newExecution(cfg *config.Config, signer solana.PrivateKey, log zerolog.Logger) (*dexsol.Connection, *dexsol.Relay, *execution.Client, error) {
	programID, err := requiredKey("solana.program_id", cfg.Solana.ProgramID)
	if err != nil {
		return nil, nil, nil, err
	}
	tip, err := requiredKey("relay.tip_account", cfg.Relay.TipAccount)
	if err != nil {
		return nil, nil, nil, err
	}
	quote, err := optionalKey("solana.quote_token_account", cfg.Solana.QuoteTokenAccount)
	if err != nil {
		return nil, nil, nil, err
	}
	markets := make([]execution.Market, 0, len(cfg.Markets))
	for _, m := range cfg.Markets {
		market, err := requiredKey(m.Pair+".market", m.Market)
		if err != nil {
			return nil, nil, nil, err
		}
		base, err := optionalKey(m.Pair+".base_token_account", m.BaseTokenAccount)
		if err != nil {
			return nil, nil, nil, err
		}
		markets = append(markets, execution.Market{
			Pair:              m.Pair,
			Market:            market,
			BaseDecimals:      m.BaseDecimals,
			BaseTokenAccount:  base,
			QuoteTokenAccount: quote,
		})
	}

	conn := dexsol.NewConnection(cfg.Solana.RPCURL, cfg.Solana.Commitment)
	relay := dexsol.NewRelay(cfg.Relay.URL, cfg.Relay.RequestsPerSecond, ms(cfg.Relay.TimeoutMs))
	exec := execution.NewClient(execution.Config{
		ProgramID:   programID,
		TipAccount:  tip,
		TipLamports: cfg.Relay.TipLamports,
	}, signer, markets, relay, conn, log.With().Str("component", "execution").Logger())
	return conn, relay, exec, nil
}

// wire builds the full control loop from cfg.
func wire(cfg *config.Config, signer solana.PrivateKey, hub *metrics.Hub, log zerolog.Logger) (*app, error) {
	conn, relay, exec, err := newExecution(cfg, signer, log)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, signer: signer, conn: conn, relay: relay, exec: exec}

	quote, _ := optionalKey("solana.quote_token_account", cfg.Solana.QuoteTokenAccount)
	targets := make([]exchange.Target, 0, len(cfg.Markets))
	pairs := make([]string, 0, len(cfg.Markets))
	volumeSources := map[string]string{}
	for _, m := range cfg.Markets {
		account, err := requiredKey(m.Pair+".price_account", m.PriceAccount)
		if err != nil {
			return nil, err
		}
		targets = append(targets, exchange.Target{Pair: m.Pair, Account: account})
		pairs = append(pairs, m.Pair)
		if m.VolumeSource != "" {
			volumeSources[m.Pair] = m.VolumeSource
		}
	}

	capacity := cfg.Engine.HistoryCapacity
	if need := strategy.RequiredCapacity(cfg.Strategy.Params); need > capacity {
		capacity = need
	}
	store := history.NewStore(capacity)
	retrier := retry.New(log.With().Str("component", "retry").Logger())

	feed := exchange.NewAggregator(conn, store, targets, log.With().Str("component", "oracle").Logger(),
		exchange.WithRateLimit(cfg.Oracle.PollsPerSecond),
		exchange.WithCommitment(conn.Commitment()),
	)

	var volumes strategy.VolumeSource
	if len(volumeSources) > 0 {
		dex, err := exchange.NewDexScreenerVolume(cfg.DexScreener.BaseURL, ms(cfg.DexScreener.TimeoutMs), volumeSources)
		if err != nil {
			return nil, err
		}
		volumes = dex
	}

	signals := strategy.NewEngine(store, dexsol.Balances{Conn: conn, Quote: quote}, volumes, retrier, strategy.Policies{
		Volume:  policy("volume", cfg.Retry.Volume),
		Balance: policy("balance", cfg.Retry.Balance),
	}, signer.PublicKey(), log.With().Str("component", "signals").Logger())
	if err := signals.Reconfigure(cfg.Strategy.Mode, cfg.Strategy.Params, cfg.Risk); err != nil {
		return nil, err
	}

	monOpts := []monitor.Option{}
	if hub != nil {
		monOpts = append(monOpts, monitor.WithPublisher(hub))
	}
	if cfg.Monitor.JournalPath != "" {
		journal, err := portfolio.OpenJournal(cfg.Monitor.JournalPath)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, journal)
		monOpts = append(monOpts, monitor.WithJournal(journal))
	}
	a.monitor = monitor.New(log.With().Str("component", "monitor").Logger(), monOpts...)

	dispatcher := failure.NewDispatcher(log.With().Str("component", "failure").Logger(), a.monitor, conn, exec, retrier, policy("reconnect", cfg.Retry.Reconnect))

	a.bot = engine.New(engine.Deps{
		Feed:       feed,
		Signals:    signals,
		Executor:   exec,
		Bundles:    exec,
		Errors:     dispatcher,
		Monitor:    a.monitor,
		Store:      store,
		Book:       portfolio.NewBook(),
		Ledger:     portfolio.NewLedger(1000),
		Balances:   conn,
		Retrier:    retrier,
		Owner:      signer.PublicKey(),
		QuoteToken: quote,
	}, engine.Options{
		Interval:     ms(cfg.Engine.CycleIntervalMs),
		CycleTimeout: ms(cfg.Engine.CycleTimeoutMs),
		Pairs:        pairs,
		Risk:         cfg.Risk,
		OraclePolicy: policy("oracle", cfg.Retry.Oracle),
		SubmitPolicy: policy("submit", cfg.Retry.Submit),
	}, log)
	return a, nil
}
