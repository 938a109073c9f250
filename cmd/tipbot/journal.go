package main

import (
	"errors"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"tipbot-go/internal/portfolio"
)

func newJournalCmd(rc *rootConfig) *cobra.Command {
	var (
		path string
		tail int
	)
	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Summarize the execution outcome journal",
		RunE: func(cmd *cobra.Command, args []string) error {
			if path == "" {
				cfg, err := rc.load()
				if err != nil {
					return err
				}
				path = cfg.Monitor.JournalPath
			}
			if path == "" {
				return errors.New("no journal configured (monitor.journal_path)")
			}
			outcomes, skipped, err := portfolio.ReadJournal(path, tail)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, o := range outcomes {
				status := "ok"
				if !o.Success {
					status = "FAILED " + o.Err
				}
				fmt.Fprintf(out, "%s %-10s %-4s qty=%s px=%s pnl=%s %s\n",
					o.Ts.Format("2006-01-02T15:04:05Z"), o.Pair, o.Action, o.Quantity, o.Price, o.PnL, status)
			}
			s := portfolio.Summarize(outcomes)
			fmt.Fprintf(out, "trades=%d ok=%d failed=%d pnl=%s", s.Trades, s.Successful, s.Failed, s.PnL)
			if skipped > 0 {
				fmt.Fprintf(out, " skipped=%d", skipped)
			}
			fmt.Fprintln(out)
			pairs := make([]string, 0, len(s.ByPair))
			for p := range s.ByPair {
				pairs = append(pairs, p)
			}
			sort.Strings(pairs)
			for _, p := range pairs {
				fmt.Fprintf(out, "  %-10s %d\n", p, s.ByPair[p])
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&path, "file", "", "Journal path (defaults to monitor.journal_path)")
	cmd.Flags().IntVar(&tail, "tail", 20, "Show only the last N outcomes, 0 for all")
	return cmd
}
