// Package monitor accumulates trading performance and reports it periodically.
package monitor

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"tipbot-go/internal/failure"
	"tipbot-go/internal/metrics"
	"tipbot-go/internal/signal"
)

// DefaultReportInterval is used when Run is given a non-positive period.
const DefaultReportInterval = 5 * time.Minute

// Publisher receives every periodic report, e.g. the websocket hub.
type Publisher interface {
	Publish(v any)
}

// Journal persists individual outcomes.
type Journal interface {
	Record(o signal.Outcome)
}

// Report is a point-in-time copy of the performance metrics.
type Report struct {
	StartTime   time.Time       `json:"start_time"`
	Uptime      time.Duration   `json:"uptime"`
	TotalTrades int             `json:"total_trades"`
	Successful  int             `json:"successful"`
	Failed      int             `json:"failed"`
	SuccessRate *float64        `json:"success_rate"` // nil before the first trade
	AvgLatency  time.Duration   `json:"avg_latency"`
	TotalPnL    decimal.Decimal `json:"total_pnl"`
	Errors      map[string]int  `json:"errors"`
}

// Monitor is safe for concurrent use; every read and write holds the same lock.
type Monitor struct {
	log        zerolog.Logger
	publishers []Publisher
	journal    Journal
	now        func() time.Time

	mu         sync.Mutex
	start      time.Time
	trades     int
	successful int
	failed     int
	avgLatency float64 // nanoseconds
	pnl        decimal.Decimal
	errors     map[failure.Kind]int
}

// Option customizes a Monitor.
type Option func(*Monitor)

// WithPublisher adds a report subscriber.
func WithPublisher(p Publisher) Option {
	return func(m *Monitor) {
		if p != nil {
			m.publishers = append(m.publishers, p)
		}
	}
}

// WithJournal writes every recorded outcome to j.
func WithJournal(j Journal) Option {
	return func(m *Monitor) { m.journal = j }
}

// WithClock overrides time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Monitor) {
		if now != nil {
			m.now = now
		}
	}
}

func New(log zerolog.Logger, opts ...Option) *Monitor {
	m := &Monitor{
		log:    log,
		now:    time.Now,
		errors: make(map[failure.Kind]int),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.start = m.now()
	return m
}

// Record folds one execution outcome into the metrics.
func (m *Monitor) Record(o signal.Outcome) {
	m.mu.Lock()
	m.trades++
	if o.Success {
		m.successful++
	} else {
		m.failed++
	}
	n := float64(m.trades)
	m.avgLatency = (m.avgLatency*(n-1) + float64(o.Latency)) / n
	m.pnl = m.pnl.Add(o.PnL)
	m.mu.Unlock()

	result := "accepted"
	if !o.Success {
		result = "failed"
	}
	metrics.BundlesTotal.WithLabelValues(o.Pair, string(o.Action), result).Inc()
	metrics.ExecutionLatency.Observe(o.Latency.Seconds())
	if m.journal != nil {
		m.journal.Record(o)
	}
}

// RecordError counts a terminal error by kind.
func (m *Monitor) RecordError(kind failure.Kind) {
	m.mu.Lock()
	m.errors[kind]++
	m.mu.Unlock()
}

// Report returns a snapshot of the current metrics.
func (m *Monitor) Report() Report {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := Report{
		StartTime:   m.start,
		Uptime:      m.now().Sub(m.start),
		TotalTrades: m.trades,
		Successful:  m.successful,
		Failed:      m.failed,
		AvgLatency:  time.Duration(math.Round(m.avgLatency)),
		TotalPnL:    m.pnl,
		Errors:      make(map[string]int, len(m.errors)),
	}
	if m.trades > 0 {
		rate := float64(m.successful) / float64(m.trades)
		r.SuccessRate = &rate
	}
	for k, v := range m.errors {
		r.Errors[k.String()] = v
	}
	return r
}

// Run logs and publishes a report every period until ctx ends.
func (m *Monitor) Run(ctx context.Context, period time.Duration) {
	if period <= 0 {
		period = DefaultReportInterval
	}
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.emit()
		}
	}
}

func (m *Monitor) emit() {
	r := m.Report()
	ev := m.log.Info().
		Dur("uptime", r.Uptime).
		Int("trades", r.TotalTrades).
		Int("successful", r.Successful).
		Int("failed", r.Failed).
		Dur("avg_latency", r.AvgLatency).
		Str("pnl", r.TotalPnL.String())
	if r.SuccessRate != nil {
		ev = ev.Float64("success_rate", *r.SuccessRate)
	}
	ev.Interface("errors", r.Errors).Msg("performance report")
	for _, p := range m.publishers {
		p.Publish(r)
	}
}
