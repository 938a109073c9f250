// Package portfolio tracks positions opened by accepted bundles and journals outcomes.
package portfolio

import (
	"errors"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"tipbot-go/internal/signal"
)

type positionState struct {
	Qty     decimal.Decimal
	AvgCost decimal.Decimal
}

// Book tracks per-pair positions and realized PnL from accepted orders.
// On-chain balances stay authoritative; the book is the bot's own view of what it opened.
type Book struct {
	mu          sync.Mutex
	realizedPnL decimal.Decimal
	positions   map[string]positionState
}

// Position is a read-only view of a single pair position.
type Position struct {
	Pair        string
	Qty         decimal.Decimal
	AvgCost     decimal.Decimal
	MarketValue decimal.Decimal
	Unrealized  decimal.Decimal
}

// Snapshot is a copy of the book, marked to market with the prices supplied.
type Snapshot struct {
	RealizedPnL   decimal.Decimal
	UnrealizedPnL decimal.Decimal
	Positions     []Position
}

func NewBook() *Book {
	return &Book{positions: make(map[string]positionState)}
}

// Apply books an accepted order and returns the PnL it realized.
// Sells realize only against the tracked quantity; the position never goes below zero.
func (b *Book) Apply(pair string, action signal.Action, qty, price decimal.Decimal) (decimal.Decimal, error) {
	if !qty.IsPositive() {
		return decimal.Zero, errors.New("quantity must be positive")
	}
	if !price.IsPositive() {
		return decimal.Zero, errors.New("price must be positive")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	state := b.positions[pair]
	switch action {
	case signal.Buy:
		newQty := state.Qty.Add(qty)
		newAvg := state.AvgCost.Mul(state.Qty).Add(qty.Mul(price)).Div(newQty)
		b.positions[pair] = positionState{Qty: newQty, AvgCost: newAvg}
		return decimal.Zero, nil

	case signal.Sell:
		covered := decimal.Min(qty, state.Qty)
		if !covered.IsPositive() {
			return decimal.Zero, nil
		}
		realized := price.Sub(state.AvgCost).Mul(covered)
		b.realizedPnL = b.realizedPnL.Add(realized)
		newQty := state.Qty.Sub(covered)
		if newQty.IsZero() {
			delete(b.positions, pair)
		} else {
			b.positions[pair] = positionState{Qty: newQty, AvgCost: state.AvgCost}
		}
		return realized, nil

	default:
		return decimal.Zero, errors.New("unknown order side")
	}
}

// Snapshot returns a copy of positions sorted by pair, marked using marks when a mark is known.
func (b *Book) Snapshot(marks map[string]decimal.Decimal) Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := Snapshot{RealizedPnL: b.realizedPnL, Positions: make([]Position, 0, len(b.positions))}
	for pair, pos := range b.positions {
		p := Position{Pair: pair, Qty: pos.Qty, AvgCost: pos.AvgCost}
		if mark, ok := marks[pair]; ok && mark.IsPositive() {
			p.MarketValue = pos.Qty.Mul(mark)
			p.Unrealized = mark.Sub(pos.AvgCost).Mul(pos.Qty)
			out.UnrealizedPnL = out.UnrealizedPnL.Add(p.Unrealized)
		}
		out.Positions = append(out.Positions, p)
	}
	sort.Slice(out.Positions, func(i, j int) bool { return out.Positions[i].Pair < out.Positions[j].Pair })
	return out
}

// Qty returns the tracked position size for pair.
func (b *Book) Qty(pair string) decimal.Decimal {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.positions[pair].Qty
}

// RealizedPnL returns total closed-trade profit and loss.
func (b *Book) RealizedPnL() decimal.Decimal {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.realizedPnL
}
