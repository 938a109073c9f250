// Package history keeps a bounded rolling window of oracle prices per trading pair.
package history

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"tipbot-go/internal/signal"
)

var (
	// ErrUnknownPair is returned for pairs that were never recorded.
	ErrUnknownPair = errors.New("unknown pair")
	// ErrInsufficientHistory is returned when fewer points exist than requested.
	ErrInsufficientHistory = errors.New("insufficient history")
)

// ring is a fixed-capacity FIFO of price points; head is the index of the oldest point.
type ring struct {
	points []signal.PricePoint
	head   int
	size   int
	seq    uint64
}

func (r *ring) push(p signal.PricePoint) {
	capacity := len(r.points)
	if r.size < capacity {
		r.points[(r.head+r.size)%capacity] = p
		r.size++
		return
	}
	r.points[r.head] = p
	r.head = (r.head + 1) % capacity
}

func (r *ring) at(i int) signal.PricePoint {
	return r.points[(r.head+i)%len(r.points)]
}

// Store holds per-pair price history. One writer, many readers.
type Store struct {
	mu       sync.RWMutex
	capacity int
	series   map[string]*ring
	now      func() time.Time
}

// NewStore builds a store keeping at most capacity points per pair.
func NewStore(capacity int) *Store {
	if capacity < 1 {
		capacity = 1
	}
	return &Store{
		capacity: capacity,
		series:   make(map[string]*ring),
		now:      time.Now,
	}
}

// Capacity returns the per-pair bound.
func (s *Store) Capacity() int { return s.capacity }

// Record appends a price for pair, evicting the oldest point when full.
func (s *Store) Record(pair string, price decimal.Decimal) signal.PricePoint {
	return s.RecordAt(pair, price, 0)
}

// RecordAt is Record with the oracle publish slot attached.
func (s *Store) RecordAt(pair string, price decimal.Decimal, slot uint64) signal.PricePoint {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := s.series[pair]
	if r == nil {
		r = &ring{points: make([]signal.PricePoint, s.capacity)}
		s.series[pair] = r
	}
	r.seq++
	p := signal.PricePoint{Pair: pair, Price: price, Seq: r.seq, Slot: slot, ObservedAt: s.now().UTC()}
	r.push(p)
	return p
}

// Window returns the n most recent prices for pair, oldest first.
func (s *Store) Window(pair string, n int) ([]decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r := s.series[pair]
	if r == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPair, pair)
	}
	if n < 0 || r.size < n {
		return nil, fmt.Errorf("%w: %s has %d points, need %d", ErrInsufficientHistory, pair, r.size, n)
	}
	out := make([]decimal.Decimal, n)
	start := r.size - n
	for i := 0; i < n; i++ {
		out[i] = r.at(start + i).Price
	}
	return out, nil
}

// Latest returns the most recent price for pair.
func (s *Store) Latest(pair string) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r := s.series[pair]
	if r == nil || r.size == 0 {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrUnknownPair, pair)
	}
	return r.at(r.size - 1).Price, nil
}

// Len reports how many points are currently held for pair.
func (s *Store) Len(pair string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if r := s.series[pair]; r != nil {
		return r.size
	}
	return 0
}

// Snapshot copies every held point for pair, oldest first.
func (s *Store) Snapshot(pair string) []signal.PricePoint {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r := s.series[pair]
	if r == nil {
		return nil
	}
	out := make([]signal.PricePoint, r.size)
	for i := range out {
		out[i] = r.at(i)
	}
	return out
}

// Marks returns the latest price of every known pair.
func (s *Store) Marks() map[string]decimal.Decimal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]decimal.Decimal, len(s.series))
	for pair, r := range s.series {
		if r.size > 0 {
			out[pair] = r.at(r.size - 1).Price
		}
	}
	return out
}

// Pairs lists recorded pairs in sorted order.
func (s *Store) Pairs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.series))
	for pair := range s.series {
		out = append(out, pair)
	}
	sort.Strings(out)
	return out
}
