package main

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dexsol "tipbot-go/internal/dex/solana"
	"tipbot-go/internal/engine"
	"tipbot-go/internal/monitor"
	"tipbot-go/internal/portfolio"
)

type fakeOperator struct {
	running bool
	mode    string
	params  string
	alerts  []engine.Alert
	notify  chan engine.AlertEvent
	updErr  error
}

func (f *fakeOperator) Start()        { f.running = true }
func (f *fakeOperator) Stop()         { f.running = false }
func (f *fakeOperator) Running() bool { return f.running }

func (f *fakeOperator) GetPositions() portfolio.Snapshot {
	return portfolio.Snapshot{
		RealizedPnL: decimal.NewFromInt(3),
		Positions:   []portfolio.Position{{Pair: "SOL/USD", Qty: decimal.RequireFromString("0.5")}},
	}
}

func (f *fakeOperator) GetBalances(context.Context) (engine.Balances, error) {
	q := decimal.NewFromInt(1000)
	return engine.Balances{SOL: decimal.RequireFromString("2.5"), Quote: &q}, nil
}

func (f *fakeOperator) UpdateConfig(name, params string) error {
	if f.updErr != nil {
		return f.updErr
	}
	f.mode, f.params = name, params
	return nil
}

func (f *fakeOperator) SetPriceAlert(pair string, level decimal.Decimal, direction string) (engine.Alert, error) {
	dir, err := engine.ParseDirection(direction)
	if err != nil {
		return engine.Alert{}, err
	}
	a := engine.Alert{ID: len(f.alerts) + 1, Pair: pair, Level: level, Direction: dir}
	f.alerts = append(f.alerts, a)
	return a, nil
}

func (f *fakeOperator) Alerts() []engine.Alert                  { return f.alerts }
func (f *fakeOperator) Notifications() <-chan engine.AlertEvent { return f.notify }

func (f *fakeOperator) Stats() monitor.Report {
	return monitor.Report{TotalTrades: 4, Successful: 3, Failed: 1, Errors: map[string]int{"rpc": 1}}
}

type fakeBundles struct{}

func (fakeBundles) BundleStatus(_ context.Context, id string) (dexsol.BundleStatus, error) {
	if id == "missing" {
		return dexsol.BundleStatus{}, errors.New("bundle missing not found")
	}
	return dexsol.BundleStatus{BundleID: id, ConfirmationStatus: "confirmed", Slot: 42}, nil
}

func newTestConsole() (*console, *fakeOperator, *bytes.Buffer) {
	op := &fakeOperator{notify: make(chan engine.AlertEvent, 1)}
	var out bytes.Buffer
	return &console{bot: op, bundles: fakeBundles{}, out: &out}, op, &out
}

func TestConsoleStartStop(t *testing.T) {
	c, op, out := newTestConsole()
	c.Exec(context.Background(), "start")
	assert.True(t, op.running)
	c.Exec(context.Background(), "STOP")
	assert.False(t, op.running)
	assert.Contains(t, out.String(), "trading started")
}

func TestConsoleConfigPassesParams(t *testing.T) {
	c, op, out := newTestConsole()
	c.Exec(context.Background(), "config momentum {rsi_period: 10, min_volume: 5}")
	assert.Equal(t, "momentum", op.mode)
	assert.Equal(t, "{rsi_period: 10, min_volume: 5}", op.params)
	assert.Contains(t, out.String(), "strategy updated")

	op.updErr = errors.New("unknown strategy")
	c.Exec(context.Background(), "config martingale")
	assert.Contains(t, out.String(), "error: unknown strategy")
}

func TestConsoleAlerts(t *testing.T) {
	c, op, out := newTestConsole()
	c.Exec(context.Background(), "alert SOL/USD 105.5 above")
	require.Len(t, op.alerts, 1)
	assert.True(t, op.alerts[0].Level.Equal(decimal.RequireFromString("105.5")))
	c.Exec(context.Background(), "alert SOL/USD abc above")
	c.Exec(context.Background(), "alert SOL/USD 1 sideways")
	c.Exec(context.Background(), "alerts")

	text := out.String()
	assert.Contains(t, text, "alert #1 set: SOL/USD above 105.5")
	assert.Contains(t, text, `bad price "abc"`)
	assert.Contains(t, text, "unknown alert direction")
	assert.Len(t, op.alerts, 1)
}

func TestConsoleReports(t *testing.T) {
	c, _, out := newTestConsole()
	ctx := context.Background()
	c.Exec(ctx, "stats")
	c.Exec(ctx, "positions")
	c.Exec(ctx, "balances")
	c.Exec(ctx, "bundle b-1")
	c.Exec(ctx, "bundle missing")
	c.Exec(ctx, "frobnicate")

	text := out.String()
	assert.Contains(t, text, `"total_trades": 4`)
	assert.Contains(t, text, "SOL/USD")
	assert.Contains(t, text, "SOL   2.5")
	assert.Contains(t, text, "quote 1000")
	assert.Contains(t, text, "bundle b-1 confirmed slot=42")
	assert.Contains(t, text, "error: bundle missing not found")
	assert.Contains(t, text, `unknown command "frobnicate"`)
}

func TestConsoleRunReadsLinesAndForwardsAlerts(t *testing.T) {
	c, op, out := newTestConsole()
	c.in = strings.NewReader("start\n\nstats\n")
	op.notify <- engine.AlertEvent{
		Alert: engine.Alert{ID: 7, Pair: "SOL/USD", Level: decimal.NewFromInt(100), Direction: engine.Below},
		Price: decimal.NewFromInt(99),
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c.Run(ctx)

	assert.True(t, op.running)
	assert.Eventually(t, func() bool {
		c.mu.Lock()
		defer c.mu.Unlock()
		return strings.Contains(out.String(), "ALERT #7 SOL/USD below 100 (price 99)")
	}, time.Second, 5*time.Millisecond)
}
