// Package execution turns trading signals into tipped, atomic bundles for the block relay.
package execution

import (
	"context"
	"fmt"
	"time"

	solana "github.com/gagliardetto/solana-go"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	dexsol "tipbot-go/internal/dex/solana"
	"tipbot-go/internal/failure"
	"tipbot-go/internal/signal"
)

// priceScale converts a quote price into the program's micro-unit integer price.
const priceScale = 6

const (
	maxCancelsPerTx = 8
	maxBundleTxs    = 5
)

// BundleSender is the relay surface the client needs.
type BundleSender interface {
	SendBundle(ctx context.Context, txs ...*solana.Transaction) (string, error)
	BundleStatuses(ctx context.Context, ids ...string) ([]dexsol.BundleStatus, error)
}

// BlockhashSource provides recent blockhashes.
type BlockhashSource interface {
	LatestBlockhash(ctx context.Context) (solana.Hash, error)
}

// Market describes where a pair trades on the order program.
type Market struct {
	Pair              string
	Market            solana.PublicKey
	BaseDecimals      int
	BaseTokenAccount  solana.PublicKey
	QuoteTokenAccount solana.PublicKey
}

// Config holds the order program and tip settings.
type Config struct {
	ProgramID   solana.PublicKey
	TipAccount  solana.PublicKey
	TipLamports uint64
}

// Client builds and submits order bundles. It never retries; callers wrap it in a retry policy.
type Client struct {
	cfg     Config
	signer  solana.PrivateKey
	markets map[string]Market
	relay   BundleSender
	chain   BlockhashSource
	orders  *OrderTracker
	log     zerolog.Logger

	newOrderKey func() (solana.PrivateKey, error)
}

// NewClient wires an execution client for the given signer and markets.
func NewClient(cfg Config, signer solana.PrivateKey, markets []Market, relay BundleSender, chain BlockhashSource, log zerolog.Logger) *Client {
	byPair := make(map[string]Market, len(markets))
	for _, m := range markets {
		byPair[m.Pair] = m
	}
	return &Client{
		cfg:         cfg,
		signer:      signer,
		markets:     byPair,
		relay:       relay,
		chain:       chain,
		orders:      NewOrderTracker(),
		log:         log,
		newOrderKey: solana.NewRandomPrivateKey,
	}
}

// Signer returns the public key orders are placed for.
func (c *Client) Signer() solana.PublicKey { return c.signer.PublicKey() }

// Orders exposes the outstanding order tracker.
func (c *Client) Orders() *OrderTracker { return c.orders }

type preparedOrder struct {
	market Market
	args   dexsol.TradeOrderArgs
	tokens solana.PublicKey
}

func (c *Client) prepare(sig signal.Signal) (preparedOrder, error) {
	const op = "submit"
	if !sig.Action.Valid() {
		return preparedOrder{}, failure.Newf(failure.InvalidOrder, op, "unknown action %q", sig.Action)
	}
	if !sig.Quantity.IsPositive() {
		return preparedOrder{}, failure.Newf(failure.InvalidOrder, op, "quantity must be positive, got %s", sig.Quantity)
	}
	if !sig.LimitPrice.IsPositive() {
		return preparedOrder{}, failure.Newf(failure.InvalidOrder, op, "price must be positive, got %s", sig.LimitPrice)
	}
	market, ok := c.markets[sig.Pair]
	if !ok {
		return preparedOrder{}, failure.Newf(failure.InvalidOrder, op, "unknown market %q", sig.Pair)
	}
	if sig.Account.IsZero() || !sig.Account.Equals(c.Signer()) {
		return preparedOrder{}, failure.Newf(failure.InvalidOrder, op, "account %s is not the signer", sig.Account)
	}

	amount, err := toUnits(sig.Quantity, int32(market.BaseDecimals))
	if err != nil {
		return preparedOrder{}, failure.New(failure.InvalidOrder, op, fmt.Errorf("quantity: %w", err))
	}
	price, err := toUnits(sig.LimitPrice, priceScale)
	if err != nil {
		return preparedOrder{}, failure.New(failure.InvalidOrder, op, fmt.Errorf("price: %w", err))
	}

	out := preparedOrder{market: market, args: dexsol.TradeOrderArgs{Amount: amount, Price: price, OrderType: dexsol.Limit}}
	if sig.Action == signal.Buy {
		out.args.Side = dexsol.Bid
		out.tokens = market.QuoteTokenAccount
	} else {
		out.args.Side = dexsol.Ask
		out.tokens = market.BaseTokenAccount
	}
	if out.tokens.IsZero() {
		return preparedOrder{}, failure.Newf(failure.InvalidOrder, op, "no token account configured for %s %s", sig.Action, sig.Pair)
	}
	return out, nil
}

// toUnits scales v by 10^exp and truncates; the result must be a positive uint64.
func toUnits(v decimal.Decimal, exp int32) (uint64, error) {
	scaled := v.Shift(exp).Truncate(0)
	if !scaled.IsPositive() {
		return 0, fmt.Errorf("%s rounds to zero at %d decimals", v, exp)
	}
	if !scaled.BigInt().IsUint64() {
		return 0, fmt.Errorf("%s overflows at %d decimals", v, exp)
	}
	return scaled.BigInt().Uint64(), nil
}

// Submit validates sig, builds the tip and the order instruction into one transaction and sends it
// as a single-transaction bundle. Invalid signals never reach the relay.
func (c *Client) Submit(ctx context.Context, sig signal.Signal) (string, error) {
	order, err := c.prepare(sig)
	if err != nil {
		return "", err
	}
	blockhash, err := c.chain.LatestBlockhash(ctx)
	if err != nil {
		return "", err
	}
	orderKey, err := c.newOrderKey()
	if err != nil {
		return "", fmt.Errorf("order keypair: %w", err)
	}

	trade, err := dexsol.NewCreateTradeOrderInstruction(c.cfg.ProgramID, dexsol.TradeOrderAccounts{
		Order:            orderKey.PublicKey(),
		Owner:            c.Signer(),
		Market:           order.market.Market,
		UserTokenAccount: order.tokens,
	}, order.args)
	if err != nil {
		return "", failure.New(failure.InvalidOrder, "submit", err)
	}
	tip := dexsol.NewTipInstruction(c.Signer(), c.cfg.TipAccount, c.cfg.TipLamports)

	tx, err := dexsol.BuildTransaction([]solana.Instruction{tip, trade}, blockhash, c.signer, orderKey)
	if err != nil {
		return "", failure.New(failure.InvalidOrder, "submit", err)
	}
	id, err := c.relay.SendBundle(ctx, tx)
	if err != nil {
		return "", err
	}

	c.orders.Add(c.Signer(), OutstandingOrder{
		Account:   orderKey.PublicKey(),
		Pair:      sig.Pair,
		SignalID:  sig.ID,
		BundleID:  id,
		CreatedAt: time.Now().UTC(),
	})
	c.log.Info().
		Str("bundle", id).
		Str("signal", sig.ID).
		Str("pair", sig.Pair).
		Str("side", string(sig.Action)).
		Uint64("amount", order.args.Amount).
		Uint64("price", order.args.Price).
		Str("order", orderKey.PublicKey().String()).
		Msg("bundle accepted")
	return id, nil
}

// CancelAll cancels every outstanding order of owner in one bundle and returns how many were cancelled.
// Orders beyond one bundle's capacity stay tracked for the next call.
func (c *Client) CancelAll(ctx context.Context, owner solana.PublicKey) (int, error) {
	const op = "cancelAll"
	if !owner.Equals(c.Signer()) {
		return 0, failure.Newf(failure.InvalidOrder, op, "cannot sign for %s", owner)
	}
	open := c.orders.List(owner)
	if len(open) == 0 {
		return 0, nil
	}
	if limit := maxCancelsPerTx * maxBundleTxs; len(open) > limit {
		open = open[:limit]
	}
	blockhash, err := c.chain.LatestBlockhash(ctx)
	if err != nil {
		return 0, err
	}

	var txs []*solana.Transaction
	for start := 0; start < len(open); start += maxCancelsPerTx {
		end := start + maxCancelsPerTx
		if end > len(open) {
			end = len(open)
		}
		ixs := make([]solana.Instruction, 0, end-start+1)
		if start == 0 {
			ixs = append(ixs, dexsol.NewTipInstruction(c.Signer(), c.cfg.TipAccount, c.cfg.TipLamports))
		}
		for _, o := range open[start:end] {
			ix, err := dexsol.NewCancelOrderInstruction(c.cfg.ProgramID, o.Account, owner)
			if err != nil {
				return 0, failure.New(failure.InvalidOrder, op, err)
			}
			ixs = append(ixs, ix)
		}
		tx, err := dexsol.BuildTransaction(ixs, blockhash, c.signer)
		if err != nil {
			return 0, failure.New(failure.InvalidOrder, op, err)
		}
		txs = append(txs, tx)
	}

	id, err := c.relay.SendBundle(ctx, txs...)
	if err != nil {
		return 0, err
	}
	accounts := make([]solana.PublicKey, len(open))
	for i, o := range open {
		accounts[i] = o.Account
	}
	c.orders.Remove(owner, accounts...)
	c.log.Info().Str("bundle", id).Int("orders", len(open)).Msg("cancel bundle accepted")
	return len(open), nil
}

// BundleStatus reports the landing status of a bundle. A bundle that landed with an
// on-chain error yields an Execution error and its order is no longer tracked.
func (c *Client) BundleStatus(ctx context.Context, id string) (dexsol.BundleStatus, error) {
	const op = "bundleStatus"
	statuses, err := c.relay.BundleStatuses(ctx, id)
	if err != nil {
		return dexsol.BundleStatus{}, err
	}
	for _, s := range statuses {
		if s.BundleID != id {
			continue
		}
		if s.Failed() {
			c.orders.RemoveBundle(c.Signer(), id)
			return s, failure.Newf(failure.Execution, op, "bundle %s failed on-chain: %s", id, string(s.Err))
		}
		return s, nil
	}
	return dexsol.BundleStatus{}, failure.Newf(failure.RPC, op, "bundle %s not found", id)
}
