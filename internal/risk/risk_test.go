package risk

import (
	"math/rand"
	"testing"

	"github.com/shopspring/decimal"
)

func TestAllow(t *testing.T) {
	limits := Limits{MaxNotionalPerTrade: decimal.NewFromInt(50)}
	if !limits.Allow(decimal.RequireFromString("49.9")) {
		t.Fatalf("expected notional under limit to pass")
	}
	if limits.Allow(decimal.RequireFromString("50.1")) {
		t.Fatalf("expected notional above limit to fail")
	}
	if !(Limits{}).Allow(decimal.NewFromInt(1_000_000)) {
		t.Fatalf("expected zero cap to disable the check")
	}
}

func TestSize(t *testing.T) {
	s := NewSizer(0.01, 5)
	got := s.Size(decimal.NewFromInt(10_000), decimal.NewFromInt(20))
	if !got.Equal(decimal.NewFromInt(5)) {
		t.Fatalf("expected 5, got %s", got)
	}
	got = s.Size(decimal.NewFromInt(1_000), decimal.NewFromInt(20))
	if !got.Equal(decimal.RequireFromString("0.5")) {
		t.Fatalf("expected 0.5, got %s", got)
	}
	if !s.Size(decimal.Zero, decimal.NewFromInt(20)).IsZero() {
		t.Fatalf("expected zero size for empty balance")
	}
	if !s.Size(decimal.NewFromInt(10), decimal.Zero).IsZero() {
		t.Fatalf("expected zero size for zero price")
	}
}

func TestSizeNeverExceedsMaxPosition(t *testing.T) {
	s := NewSizer(0.25, 3)
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 1000; i++ {
		balance := decimal.NewFromFloat(rng.Float64() * 1e7)
		price := decimal.NewFromFloat(rng.Float64()*1000 + 1e-6)
		if got := s.Size(balance, price); got.GreaterThan(s.MaxPositionSize) {
			t.Fatalf("size %s above max for balance %s price %s", got, balance, price)
		}
	}
}
