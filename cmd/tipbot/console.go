package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/goccy/go-json"
	"github.com/shopspring/decimal"

	dexsol "tipbot-go/internal/dex/solana"
	"tipbot-go/internal/engine"
	"tipbot-go/internal/monitor"
	"tipbot-go/internal/portfolio"
)

// operator is the bot surface the console drives.
type operator interface {
	Start()
	Stop()
	Running() bool
	GetPositions() portfolio.Snapshot
	GetBalances(ctx context.Context) (engine.Balances, error)
	UpdateConfig(name, params string) error
	SetPriceAlert(pair string, level decimal.Decimal, direction string) (engine.Alert, error)
	Alerts() []engine.Alert
	Notifications() <-chan engine.AlertEvent
	Stats() monitor.Report
}

type bundleChecker interface {
	BundleStatus(ctx context.Context, id string) (dexsol.BundleStatus, error)
}

const consoleHelp = `commands:
  start | stop                       toggle trading
  stats                              performance report
  positions                          tracked positions
  balances                           on-chain balances
  config <strategy> [yaml params]    e.g. config momentum {rsi_period: 10, risk_fraction: 0.02}
  alert <pair> <price> <above|below> one-shot price alert
  alerts                             pending alerts
  bundle <id>                        relay status of a bundle
  help`

// console is a line-oriented operator interface over stdin/stdout.
type console struct {
	bot     operator
	bundles bundleChecker
	in      io.Reader

	mu  sync.Mutex
	out io.Writer
}

func newConsole(a *app, in io.Reader, out io.Writer) *console {
	return &console{bot: a.bot, bundles: a.exec, in: in, out: out}
}

func (c *console) printf(format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out, format+"\n", args...)
}

func (c *console) printJSON(v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		c.printf("error: %v", err)
		return
	}
	c.printf("%s", data)
}

// Run executes commands until in is exhausted or ctx is cancelled.
func (c *console) Run(ctx context.Context) {
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case ev := <-c.bot.Notifications():
				c.printf("ALERT #%d %s %s %s (price %s)", ev.Alert.ID, ev.Alert.Pair, ev.Alert.Direction, ev.Alert.Level, ev.Price)
			}
		}
	}()

	scanner := bufio.NewScanner(c.in)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		c.Exec(ctx, line)
	}
}

// Exec runs a single command line.
func (c *console) Exec(ctx context.Context, line string) {
	fields := strings.Fields(line)
	switch strings.ToLower(fields[0]) {
	case "help", "?":
		c.printf("%s", consoleHelp)
	case "start":
		c.bot.Start()
		c.printf("trading started")
	case "stop":
		c.bot.Stop()
		c.printf("trading stops after the current cycle")
	case "stats":
		c.printJSON(struct {
			Running bool `json:"running"`
			monitor.Report
		}{c.bot.Running(), c.bot.Stats()})
	case "positions":
		snap := c.bot.GetPositions()
		if len(snap.Positions) == 0 {
			c.printf("no open positions (realized pnl %s)", snap.RealizedPnL)
			return
		}
		for _, p := range snap.Positions {
			c.printf("%-12s qty=%s avg=%s value=%s upnl=%s", p.Pair, p.Qty, p.AvgCost, p.MarketValue, p.Unrealized)
		}
		c.printf("realized=%s unrealized=%s", snap.RealizedPnL, snap.UnrealizedPnL)
	case "balances":
		bal, err := c.bot.GetBalances(ctx)
		if err != nil {
			c.printf("error: %v", err)
			return
		}
		c.printf("owner %s", bal.Owner)
		c.printf("SOL   %s", bal.SOL)
		if bal.Quote != nil {
			c.printf("quote %s", *bal.Quote)
		}
	case "config":
		if len(fields) < 2 {
			c.printf("usage: config <strategy> [yaml params]")
			return
		}
		params := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line[len(fields[0]):]), fields[1]))
		if err := c.bot.UpdateConfig(fields[1], params); err != nil {
			c.printf("error: %v", err)
			return
		}
		c.printf("strategy updated")
	case "alert":
		if len(fields) != 4 {
			c.printf("usage: alert <pair> <price> <above|below>")
			return
		}
		level, err := decimal.NewFromString(fields[2])
		if err != nil {
			c.printf("error: bad price %q", fields[2])
			return
		}
		a, err := c.bot.SetPriceAlert(fields[1], level, fields[3])
		if err != nil {
			c.printf("error: %v", err)
			return
		}
		c.printf("alert #%d set: %s %s %s", a.ID, a.Pair, a.Direction, a.Level)
	case "alerts":
		alerts := c.bot.Alerts()
		if len(alerts) == 0 {
			c.printf("no pending alerts")
		}
		for _, a := range alerts {
			c.printf("#%d %s %s %s", a.ID, a.Pair, a.Direction, a.Level)
		}
	case "bundle":
		if len(fields) != 2 || c.bundles == nil {
			c.printf("usage: bundle <id>")
			return
		}
		status, err := c.bundles.BundleStatus(ctx, fields[1])
		if err != nil {
			c.printf("error: %v", err)
			return
		}
		c.printf("bundle %s %s slot=%d", status.BundleID, status.ConfirmationStatus, status.Slot)
	default:
		c.printf("unknown command %q, try help", fields[0])
	}
}
