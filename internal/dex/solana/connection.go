package solana

import (
	"context"
	"fmt"
	"sync"

	solana "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/shopspring/decimal"

	"tipbot-go/internal/failure"
)

const lamportsPerSOL = 9 // decimals

// ParseCommitment maps a config string to an rpc commitment, defaulting to confirmed.
func ParseCommitment(s string) rpc.CommitmentType {
	switch s {
	case "processed":
		return rpc.CommitmentProcessed
	case "finalized":
		return rpc.CommitmentFinalized
	default:
		return rpc.CommitmentConfirmed
	}
}

// Connection owns the rpc client used by the oracle, the executor and the balance queries.
// The client can be swapped by Reconnect while other goroutines hold the previous one.
type Connection struct {
	url    string
	commit rpc.CommitmentType

	mu     sync.RWMutex
	client *rpc.Client
}

func NewConnection(rpcURL, commitment string) *Connection {
	return &Connection{
		url:    rpcURL,
		commit: ParseCommitment(commitment),
		client: rpc.New(rpcURL),
	}
}

// RPC returns the current client.
func (c *Connection) RPC() *rpc.Client {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.client
}

func (c *Connection) Commitment() rpc.CommitmentType { return c.commit }

// Reconnect builds a fresh client and swaps it in once the node reports healthy.
func (c *Connection) Reconnect(ctx context.Context) error {
	client := rpc.New(c.url)
	if _, err := client.GetHealth(ctx); err != nil {
		return failure.Classify("getHealth", err)
	}
	c.mu.Lock()
	c.client = client
	c.mu.Unlock()
	return nil
}

// LatestBlockhash fetches a recent blockhash for transaction building.
func (c *Connection) LatestBlockhash(ctx context.Context) (solana.Hash, error) {
	out, err := c.RPC().GetLatestBlockhash(ctx, c.commit)
	if err != nil {
		return solana.Hash{}, failure.Classify("getLatestBlockhash", err)
	}
	if out == nil || out.Value == nil {
		return solana.Hash{}, failure.Newf(failure.RPC, "getLatestBlockhash", "empty result")
	}
	return out.Value.Blockhash, nil
}

// SOLBalance returns the native balance of owner in SOL.
func (c *Connection) SOLBalance(ctx context.Context, owner solana.PublicKey) (decimal.Decimal, error) {
	out, err := c.RPC().GetBalance(ctx, owner, c.commit)
	if err != nil {
		return decimal.Zero, failure.Classify("getBalance", err)
	}
	return decimal.New(int64(out.Value), -lamportsPerSOL), nil
}

// TokenBalance returns the UI amount held by an SPL token account.
func (c *Connection) TokenBalance(ctx context.Context, account solana.PublicKey) (decimal.Decimal, error) {
	out, err := c.RPC().GetTokenAccountBalance(ctx, account, c.commit)
	if err != nil {
		return decimal.Zero, failure.Classify("getTokenAccountBalance", err)
	}
	if out == nil || out.Value == nil {
		return decimal.Zero, failure.Newf(failure.RPC, "getTokenAccountBalance", "empty result for %s", account)
	}
	raw, err := decimal.NewFromString(out.Value.Amount)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse token amount %q: %w", out.Value.Amount, err)
	}
	return raw.Shift(-int32(out.Value.Decimals)), nil
}

// Balances answers the balance queries of the signal engine and the operator surface.
// Quote is the SPL account funding orders; when it is zero the SOL balance is used instead.
type Balances struct {
	Conn  *Connection
	Quote solana.PublicKey
}

// Balance returns the spendable quote balance of owner at this instant.
func (b Balances) Balance(ctx context.Context, owner solana.PublicKey) (decimal.Decimal, error) {
	if b.Quote.IsZero() {
		return b.Conn.SOLBalance(ctx, owner)
	}
	return b.Conn.TokenBalance(ctx, b.Quote)
}

// GetMultipleAccountsWithOpts reads accounts through the current client, so oracle polls follow reconnects.
func (c *Connection) GetMultipleAccountsWithOpts(ctx context.Context, accounts []solana.PublicKey, opts *rpc.GetMultipleAccountsOpts) (*rpc.GetMultipleAccountsResult, error) {
	return c.RPC().GetMultipleAccountsWithOpts(ctx, accounts, opts)
}
