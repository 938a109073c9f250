package portfolio

import (
	"sync"

	"tipbot-go/internal/signal"
)

// Ledger keeps the most recent outcomes in memory for quick inspection.
type Ledger struct {
	mu       sync.Mutex
	limit    int
	outcomes []signal.Outcome
}

// NewLedger creates an empty ledger holding at most limit outcomes (unbounded when limit <= 0).
func NewLedger(limit int) *Ledger {
	if limit < 0 {
		limit = 0
	}
	return &Ledger{limit: limit, outcomes: make([]signal.Outcome, 0, limit)}
}

// Record appends an outcome, dropping the oldest past the limit.
func (l *Ledger) Record(o signal.Outcome) {
	l.mu.Lock()
	l.outcomes = append(l.outcomes, o)
	if l.limit > 0 && len(l.outcomes) > l.limit {
		l.outcomes = append(l.outcomes[:0], l.outcomes[len(l.outcomes)-l.limit:]...)
	}
	l.mu.Unlock()
}

// Snapshot returns a copy of the recorded outcomes, oldest first.
func (l *Ledger) Snapshot() []signal.Outcome {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]signal.Outcome, len(l.outcomes))
	copy(out, l.outcomes)
	return out
}

// Reset clears all stored outcomes.
func (l *Ledger) Reset() {
	l.mu.Lock()
	l.outcomes = l.outcomes[:0]
	l.mu.Unlock()
}
