package execution

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"strconv"
	"strings"
	"testing"

	solana "github.com/gagliardetto/solana-go"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dexsol "tipbot-go/internal/dex/solana"
	"tipbot-go/internal/failure"
	"tipbot-go/internal/signal"
)

type fakeRelay struct {
	bundles  [][]*solana.Transaction
	err      error
	statuses []dexsol.BundleStatus
}

func (f *fakeRelay) SendBundle(_ context.Context, txs ...*solana.Transaction) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.bundles = append(f.bundles, txs)
	return "bundle-" + strconv.Itoa(len(f.bundles)), nil
}

func (f *fakeRelay) BundleStatuses(context.Context, ...string) ([]dexsol.BundleStatus, error) {
	return f.statuses, nil
}

type fakeChain struct{ err error }

func (f fakeChain) LatestBlockhash(context.Context) (solana.Hash, error) {
	return solana.Hash{42}, f.err
}

type fixture struct {
	client *Client
	relay  *fakeRelay
	signer solana.PrivateKey
	cfg    Config
	market Market
	logs   *bytes.Buffer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	signer := solana.NewWallet().PrivateKey
	cfg := Config{
		ProgramID:   solana.NewWallet().PublicKey(),
		TipAccount:  solana.NewWallet().PublicKey(),
		TipLamports: 25_000,
	}
	market := Market{
		Pair:              "SOL/USD",
		Market:            solana.NewWallet().PublicKey(),
		BaseDecimals:      9,
		BaseTokenAccount:  solana.NewWallet().PublicKey(),
		QuoteTokenAccount: solana.NewWallet().PublicKey(),
	}
	relay := &fakeRelay{}
	var logs bytes.Buffer
	client := NewClient(cfg, signer, []Market{market}, relay, fakeChain{}, zerolog.New(&logs))
	return &fixture{client: client, relay: relay, signer: signer, cfg: cfg, market: market, logs: &logs}
}

func (f *fixture) signal(action signal.Action, qty, price string) signal.Signal {
	return signal.Signal{
		ID:         "sig-1",
		Pair:       "SOL/USD",
		Action:     action,
		Quantity:   decimal.RequireFromString(qty),
		LimitPrice: decimal.RequireFromString(price),
		Account:    f.signer.PublicKey(),
	}
}

func TestSubmitZeroQuantityNeverReachesRelay(t *testing.T) {
	f := newFixture(t)
	_, err := f.client.Submit(context.Background(), f.signal(signal.Buy, "0", "21"))
	require.Error(t, err)
	assert.Equal(t, failure.InvalidOrder, failure.KindOf(err))
	assert.Empty(t, f.relay.bundles)
}

func TestSubmitValidation(t *testing.T) {
	f := newFixture(t)
	cases := map[string]func(s *signal.Signal){
		"negative qty":   func(s *signal.Signal) { s.Quantity = decimal.NewFromInt(-1) },
		"zero price":     func(s *signal.Signal) { s.LimitPrice = decimal.Zero },
		"unknown market": func(s *signal.Signal) { s.Pair = "DOGE/USD" },
		"zero account":   func(s *signal.Signal) { s.Account = solana.PublicKey{} },
		"foreign owner":  func(s *signal.Signal) { s.Account = solana.NewWallet().PublicKey() },
		"bad action":     func(s *signal.Signal) { s.Action = "HOLD" },
		"dust":           func(s *signal.Signal) { s.Quantity = decimal.RequireFromString("0.0000000001") },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			s := f.signal(signal.Buy, "1", "21")
			mutate(&s)
			_, err := f.client.Submit(context.Background(), s)
			require.Error(t, err)
			assert.Equal(t, failure.InvalidOrder, failure.KindOf(err))
		})
	}
	assert.Empty(t, f.relay.bundles)
}

func TestSubmitBuildsTipFirstAtomicBundle(t *testing.T) {
	f := newFixture(t)

	id, err := f.client.Submit(context.Background(), f.signal(signal.Buy, "1.5", "21.05"))
	require.NoError(t, err)
	assert.Equal(t, "bundle-1", id)

	require.Len(t, f.relay.bundles, 1)
	require.Len(t, f.relay.bundles[0], 1, "one transaction per bundle")
	tx := f.relay.bundles[0][0]
	require.NoError(t, tx.VerifySignatures())
	assert.Len(t, tx.Signatures, 2, "signer and order account")
	assert.True(t, tx.Message.AccountKeys[0].Equals(f.signer.PublicKey()), "signer pays")

	require.Len(t, tx.Message.Instructions, 2)
	tip := tx.Message.Instructions[0]
	assert.True(t, tx.Message.AccountKeys[tip.ProgramIDIndex].Equals(solana.SystemProgramID))
	assert.True(t, tx.Message.AccountKeys[tip.Accounts[1]].Equals(f.cfg.TipAccount))
	assert.Equal(t, uint64(25_000), binary.LittleEndian.Uint64(tip.Data[4:12]))

	order := tx.Message.Instructions[1]
	assert.True(t, tx.Message.AccountKeys[order.ProgramIDIndex].Equals(f.cfg.ProgramID))
	disc := dexsol.Discriminator("create_trade_order")
	assert.Equal(t, disc[:], []byte(order.Data[:8]))
	assert.Equal(t, uint64(1_500_000_000), binary.LittleEndian.Uint64(order.Data[8:16]))
	assert.Equal(t, uint64(21_050_000), binary.LittleEndian.Uint64(order.Data[16:24]))
	assert.Equal(t, byte(dexsol.Bid), order.Data[24])
	assert.True(t, tx.Message.AccountKeys[order.Accounts[3]].Equals(f.market.QuoteTokenAccount), "buys spend quote")

	open := f.client.Orders().List(f.signer.PublicKey())
	require.Len(t, open, 1)
	assert.Equal(t, "bundle-1", open[0].BundleID)
	assert.True(t, strings.Contains(f.logs.String(), "bundle accepted"))
}

func TestSubmitSellUsesBaseAccount(t *testing.T) {
	f := newFixture(t)
	_, err := f.client.Submit(context.Background(), f.signal(signal.Sell, "2", "20"))
	require.NoError(t, err)

	order := f.relay.bundles[0][0].Message.Instructions[1]
	assert.Equal(t, byte(dexsol.Ask), order.Data[24])
	assert.True(t, f.relay.bundles[0][0].Message.AccountKeys[order.Accounts[3]].Equals(f.market.BaseTokenAccount))
}

func TestSubmitPropagatesClassifiedErrors(t *testing.T) {
	f := newFixture(t)
	f.relay.err = failure.New(failure.InsufficientFunds, "sendBundle", errors.New("custom program error: 0x1770"))

	_, err := f.client.Submit(context.Background(), f.signal(signal.Buy, "1", "21"))
	require.Error(t, err)
	assert.Equal(t, failure.InsufficientFunds, failure.KindOf(err))
	assert.Zero(t, f.client.Orders().Count(), "rejected bundle is not tracked")

	f.relay.err = nil
	f.client.chain = fakeChain{err: failure.New(failure.Network, "getLatestBlockhash", errors.New("down"))}
	_, err = f.client.Submit(context.Background(), f.signal(signal.Buy, "1", "21"))
	assert.Equal(t, failure.Network, failure.KindOf(err))
	assert.Empty(t, f.relay.bundles)
}

func TestCancelAllSendsOneBundle(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 10; i++ {
		_, err := f.client.Submit(context.Background(), f.signal(signal.Buy, "1", "21"))
		require.NoError(t, err)
	}
	require.Equal(t, 10, f.client.Orders().Count())

	n, err := f.client.CancelAll(context.Background(), f.signer.PublicKey())
	require.NoError(t, err)
	assert.Equal(t, 10, n)
	assert.Zero(t, f.client.Orders().Count())

	cancel := f.relay.bundles[len(f.relay.bundles)-1]
	require.Len(t, cancel, 2, "ten cancels split over two transactions")
	assert.Len(t, cancel[0].Message.Instructions, 1+maxCancelsPerTx, "tip plus cancels")
	assert.Len(t, cancel[1].Message.Instructions, 2)
	first := cancel[0].Message.Instructions[0]
	assert.True(t, cancel[0].Message.AccountKeys[first.ProgramIDIndex].Equals(solana.SystemProgramID))

	n, err = f.client.CancelAll(context.Background(), f.signer.PublicKey())
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = f.client.CancelAll(context.Background(), solana.NewWallet().PublicKey())
	assert.Equal(t, failure.InvalidOrder, failure.KindOf(err))
}

func TestBundleStatus(t *testing.T) {
	f := newFixture(t)
	id, err := f.client.Submit(context.Background(), f.signal(signal.Buy, "1", "21"))
	require.NoError(t, err)

	f.relay.statuses = []dexsol.BundleStatus{{BundleID: id, ConfirmationStatus: "confirmed", Err: []byte(`{"Ok":null}`)}}
	status, err := f.client.BundleStatus(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "confirmed", status.ConfirmationStatus)
	assert.Equal(t, 1, f.client.Orders().Count())

	f.relay.statuses = []dexsol.BundleStatus{{BundleID: id, Err: []byte(`{"InstructionError":[1,{"Custom":6001}]}`)}}
	_, err = f.client.BundleStatus(context.Background(), id)
	assert.Equal(t, failure.Execution, failure.KindOf(err))
	assert.Zero(t, f.client.Orders().Count())

	f.relay.statuses = nil
	_, err = f.client.BundleStatus(context.Background(), "missing")
	assert.Equal(t, failure.RPC, failure.KindOf(err))
}
