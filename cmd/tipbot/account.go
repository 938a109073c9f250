package main

import (
	"context"
	"fmt"
	"time"

	solana "github.com/gagliardetto/solana-go"
	"github.com/spf13/cobra"

	dexsol "tipbot-go/internal/dex/solana"
)

func newInitAccountCmd(rc *rootConfig) *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "init-account",
		Short: "Create the owner's trading account on the order program",
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
			programID, err := requiredKey("solana.program_id", cfg.Solana.ProgramID)
			if err != nil {
				return err
			}
			tip, err := requiredKey("relay.tip_account", cfg.Relay.TipAccount)
			if err != nil {
				return err
			}
			conn := dexsol.NewConnection(cfg.Solana.RPCURL, cfg.Solana.Commitment)
			relay := dexsol.NewRelay(cfg.Relay.URL, cfg.Relay.RequestsPerSecond, ms(cfg.Relay.TimeoutMs))

			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()

			trading, err := solana.NewRandomPrivateKey()
			if err != nil {
				return err
			}
			initIx, err := dexsol.NewInitializeAccountInstruction(programID, trading.PublicKey(), signer.PublicKey())
			if err != nil {
				return err
			}
			blockhash, err := conn.LatestBlockhash(ctx)
			if err != nil {
				return err
			}
			tx, err := dexsol.BuildTransaction([]solana.Instruction{
				dexsol.NewTipInstruction(signer.PublicKey(), tip, cfg.Relay.TipLamports),
				initIx,
			}, blockhash, signer, trading)
			if err != nil {
				return err
			}
			id, err := relay.SendBundle(ctx, tx)
			if err != nil {
				return err
			}
			log.Info().Str("bundle", id).Str("trading_account", trading.PublicKey().String()).Msg("init bundle submitted")
			fmt.Fprintf(cmd.OutOrStdout(), "trading account %s (bundle %s)\n", trading.PublicKey(), id)
			return nil
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 15*time.Second, "Overall deadline")
	return cmd
}
