package portfolio

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"tipbot-go/internal/signal"
)

func outcome(id string, ok bool, pnl string) signal.Outcome {
	return signal.Outcome{
		SignalID: id,
		Pair:     "SOL/USD",
		Action:   signal.Buy,
		Quantity: decimal.RequireFromString("1.5"),
		Price:    decimal.RequireFromString("21"),
		Success:  ok,
		Latency:  20 * time.Millisecond,
		PnL:      decimal.RequireFromString(pnl),
		BundleID: "bundle-" + id,
		Ts:       time.Unix(1700000000, 0).UTC(),
	}
}

func TestJournalRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal", "outcomes.jsonl")

	j, err := OpenJournal(path)
	if err != nil {
		t.Fatalf("OpenJournal error: %v", err)
	}
	j.Record(outcome("a", true, "1.5"))
	j.Record(outcome("b", false, "0"))
	if j.Written() != 2 || j.Err() != nil {
		t.Fatalf("written=%d err=%v", j.Written(), j.Err())
	}
	if err := j.Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}
	j.Record(outcome("c", true, "9")) // after close: dropped

	got, skipped, err := ReadJournal(path, 0)
	if err != nil {
		t.Fatalf("ReadJournal error: %v", err)
	}
	if skipped != 0 || len(got) != 2 {
		t.Fatalf("expected 2 outcomes, got %d (skipped %d)", len(got), skipped)
	}
	if got[0].SignalID != "a" || !got[0].Quantity.Equal(decimal.RequireFromString("1.5")) || got[0].Latency != 20*time.Millisecond {
		t.Fatalf("unexpected first outcome %+v", got[0])
	}
}

func TestJournalAppendsAcrossOpens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "outcomes.jsonl")
	for _, id := range []string{"a", "b", "c"} {
		j, err := OpenJournal(path)
		if err != nil {
			t.Fatalf("OpenJournal error: %v", err)
		}
		j.Record(outcome(id, true, "1"))
		if err := j.Close(); err != nil {
			t.Fatalf("Close error: %v", err)
		}
	}

	got, _, err := ReadJournal(path, 2)
	if err != nil {
		t.Fatalf("ReadJournal error: %v", err)
	}
	if len(got) != 2 || got[0].SignalID != "b" || got[1].SignalID != "c" {
		t.Fatalf("expected the last two outcomes, got %+v", got)
	}
}

func TestReadJournalSkipsMalformedLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "outcomes.jsonl")
	data := `{"signal_id":"a","pair":"SOL/USD","success":true,"pnl":"2"}` + "\nnot json\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, skipped, err := ReadJournal(path, 0)
	if err != nil {
		t.Fatalf("ReadJournal error: %v", err)
	}
	if len(got) != 1 || skipped != 1 {
		t.Fatalf("expected 1 outcome and 1 skipped, got %d and %d", len(got), skipped)
	}
}

func TestSummarize(t *testing.T) {
	s := Summarize([]signal.Outcome{outcome("a", true, "1.5"), outcome("b", false, "7"), outcome("c", true, "-0.5")})
	if s.Trades != 3 || s.Successful != 2 || s.Failed != 1 {
		t.Fatalf("unexpected counts %+v", s)
	}
	if !s.PnL.Equal(decimal.NewFromInt(1)) {
		t.Fatalf("expected pnl 1, got %s", s.PnL)
	}
	if s.ByPair["SOL/USD"] != 3 {
		t.Fatalf("unexpected per-pair counts %v", s.ByPair)
	}
}
