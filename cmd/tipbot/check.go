package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"tipbot-go/internal/strategy"
)

func newCheckConfigCmd(rc *rootConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "check-config",
		Short: "Load, validate and summarize the config",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := rc.load()
			if err != nil {
				return err
			}
			strat, err := strategy.Build(cfg.Strategy.Mode, cfg.Strategy.Params)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "config %s ok\n", rc.ConfigPath)
			fmt.Fprintf(out, "  rpc        %s (%s)\n", cfg.Solana.RPCURL, cfg.Solana.Commitment)
			fmt.Fprintf(out, "  relay      %s tip=%d lamports\n", cfg.Relay.URL, cfg.Relay.TipLamports)
			fmt.Fprintf(out, "  strategy   %s lookback=%d\n", strat.Name(), strat.Lookback())
			fmt.Fprintf(out, "  risk       fraction=%g max_position=%g\n", cfg.Risk.RiskFraction, cfg.Risk.MaxPositionSize)
			for _, m := range cfg.Markets {
				fmt.Fprintf(out, "  market     %s oracle=%s\n", m.Pair, m.PriceAccount)
			}
			return nil
		},
	}
}
