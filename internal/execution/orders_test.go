package execution

import (
	"testing"

	solana "github.com/gagliardetto/solana-go"
)

func TestOrderTracker(t *testing.T) {
	tracker := NewOrderTracker()
	owner := solana.NewWallet().PublicKey()
	a := solana.NewWallet().PublicKey()
	b := solana.NewWallet().PublicKey()
	c := solana.NewWallet().PublicKey()

	tracker.Add(owner, OutstandingOrder{Account: a, BundleID: "x"})
	tracker.Add(owner, OutstandingOrder{Account: b, BundleID: "y"})
	tracker.Add(owner, OutstandingOrder{Account: c, BundleID: "y"})
	if tracker.Count() != 3 {
		t.Fatalf("expected 3 orders, got %d", tracker.Count())
	}

	tracker.RemoveBundle(owner, "y")
	list := tracker.List(owner)
	if len(list) != 1 || !list[0].Account.Equals(a) {
		t.Fatalf("unexpected orders after bundle removal: %+v", list)
	}

	tracker.Remove(owner, a)
	if tracker.Count() != 0 || len(tracker.List(owner)) != 0 {
		t.Fatalf("expected empty tracker")
	}
}
