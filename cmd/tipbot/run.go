package main

import (
	"context"
	"os"
	ossignal "os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	dexsol "tipbot-go/internal/dex/solana"
	"tipbot-go/internal/metrics"
)

func newRunCmd(rc *rootConfig) *cobra.Command {
	var (
		start   bool
		console bool
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the poll, evaluate and execute loop until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := rc.load()
			if err != nil {
				return err
			}
			log := rc.logger(cfg)

			signer, err := dexsol.LoadPrivateKey(cfg.Wallet.PrivateKeyBase58)
			if err != nil {
				return err
			}

			hub := metrics.NewHub()
			if cfg.App.MetricsAddr != "" {
				srv := metrics.Serve(cfg.App.MetricsAddr, hub)
				defer srv.Close()
				log.Info().Str("addr", cfg.App.MetricsAddr).Msg("metrics up")
			}

			a, err := wire(cfg, signer, hub, log)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, cancel := ossignal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			go a.monitor.Run(ctx, time.Duration(cfg.Monitor.ReportIntervalSecs)*time.Second)
			if console {
				go func() {
					newConsole(a, cmd.InOrStdin(), cmd.OutOrStdout()).Run(ctx)
				}()
			}
			if start || cfg.Engine.AutoStart {
				a.bot.Start()
			}
			log.Info().
				Str("owner", signer.PublicKey().String()).
				Str("strategy", cfg.Strategy.Mode).
				Int("markets", len(cfg.Markets)).
				Msg("tipbot started")
			err = a.bot.Run(ctx)
			log.Info().Msg("shutting down")
			return err
		},
	}
	cmd.Flags().BoolVar(&start, "start", false, "Start trading immediately instead of waiting for the start command")
	cmd.Flags().BoolVar(&console, "console", false, "Read operator commands from stdin")
	return cmd
}
