// Package signal standardizes payloads shared between data ingestion, strategy and execution layers.
package signal

import (
	"time"

	solana "github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
)

// PricePoint is a single normalized oracle observation for a pair.
type PricePoint struct {
	Pair       string
	Price      decimal.Decimal
	Seq        uint64 // per-pair observation counter assigned by the history store
	Slot       uint64 // oracle publish slot, 0 when unknown
	ObservedAt time.Time
}

// Action enumerates the directions a strategy may request.
type Action string

const (
	// Buy opens or adds to a long.
	Buy Action = "BUY"
	// Sell reduces a long.
	Sell Action = "SELL"
)

// Valid reports whether the action is one the executor understands.
func (a Action) Valid() bool { return a == Buy || a == Sell }

// Signal is a sized order request produced by the signal engine and consumed once by the executor.
type Signal struct {
	ID         string
	Pair       string
	Action     Action
	Quantity   decimal.Decimal
	LimitPrice decimal.Decimal
	Account    solana.PublicKey
	Reason     string
	CreatedAt  time.Time
}

// Notional returns quantity × limit price.
func (s Signal) Notional() decimal.Decimal { return s.Quantity.Mul(s.LimitPrice) }

// Outcome describes the terminal result of one submitted signal.
type Outcome struct {
	SignalID string          `json:"signal_id"`
	Pair     string          `json:"pair"`
	Action   Action          `json:"action"`
	Quantity decimal.Decimal `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
	Success  bool            `json:"success"`
	Latency  time.Duration   `json:"latency"`
	PnL      decimal.Decimal `json:"pnl"`
	BundleID string          `json:"bundle_id,omitempty"`
	Err      string          `json:"error,omitempty"`
	Ts       time.Time       `json:"ts"`
}
