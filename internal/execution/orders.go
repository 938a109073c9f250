package execution

import (
	"sync"
	"time"

	solana "github.com/gagliardetto/solana-go"
)

// OutstandingOrder is an order account created by an accepted bundle.
type OutstandingOrder struct {
	Account   solana.PublicKey
	Pair      string
	SignalID  string
	BundleID  string
	CreatedAt time.Time
}

// OrderTracker records outstanding orders per owner, oldest first.
type OrderTracker struct {
	mu     sync.Mutex
	orders map[solana.PublicKey][]OutstandingOrder
}

func NewOrderTracker() *OrderTracker {
	return &OrderTracker{orders: make(map[solana.PublicKey][]OutstandingOrder)}
}

func (t *OrderTracker) Add(owner solana.PublicKey, o OutstandingOrder) {
	t.mu.Lock()
	t.orders[owner] = append(t.orders[owner], o)
	t.mu.Unlock()
}

// List returns a copy of owner's outstanding orders.
func (t *OrderTracker) List(owner solana.PublicKey) []OutstandingOrder {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]OutstandingOrder(nil), t.orders[owner]...)
}

// Count returns the number of outstanding orders across owners.
func (t *OrderTracker) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for _, list := range t.orders {
		n += len(list)
	}
	return n
}

// Remove drops the given order accounts of owner.
func (t *OrderTracker) Remove(owner solana.PublicKey, accounts ...solana.PublicKey) {
	drop := make(map[solana.PublicKey]struct{}, len(accounts))
	for _, a := range accounts {
		drop[a] = struct{}{}
	}
	t.filter(owner, func(o OutstandingOrder) bool {
		_, ok := drop[o.Account]
		return !ok
	})
}

// RemoveBundle drops every order of owner created by bundle id.
func (t *OrderTracker) RemoveBundle(owner solana.PublicKey, id string) {
	t.filter(owner, func(o OutstandingOrder) bool { return o.BundleID != id })
}

func (t *OrderTracker) filter(owner solana.PublicKey, keep func(OutstandingOrder) bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	list := t.orders[owner]
	out := list[:0]
	for _, o := range list {
		if keep(o) {
			out = append(out, o)
		}
	}
	if len(out) == 0 {
		delete(t.orders, owner)
		return
	}
	t.orders[owner] = out
}
