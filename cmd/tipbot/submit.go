package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	dexsol "tipbot-go/internal/dex/solana"
	"tipbot-go/internal/signal"
)

func parseSide(s string) (signal.Action, error) {
	switch strings.ToLower(s) {
	case "buy", "bid":
		return signal.Buy, nil
	case "sell", "ask":
		return signal.Sell, nil
	default:
		return "", fmt.Errorf("unknown side %q", s)
	}
}

func newSubmitCmd(rc *rootConfig) *cobra.Command {
	var (
		pair, side, qty, price string
		timeout, wait          time.Duration
	)
	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Send one manual limit order as a tipped bundle",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := rc.load()
			if err != nil {
				return err
			}
			log := rc.logger(cfg)
			action, err := parseSide(side)
			if err != nil {
				return err
			}
			q, err := decimal.NewFromString(qty)
			if err != nil {
				return fmt.Errorf("qty: %w", err)
			}
			p, err := decimal.NewFromString(price)
			if err != nil {
				return fmt.Errorf("price: %w", err)
			}
			signer, err := dexsol.LoadPrivateKey(cfg.Wallet.PrivateKeyBase58)
			if err != nil {
				return err
			}
			_, _, exec, err := newExecution(cfg, signer, log)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(context.Background(), timeout+wait)
			defer cancel()

			sig := signal.Signal{
				ID:         ulid.Make().String(),
				Pair:       pair,
				Action:     action,
				Quantity:   q,
				LimitPrice: p,
				Account:    signer.PublicKey(),
				Reason:     "manual",
				CreatedAt:  time.Now().UTC(),
			}
			id, err := exec.Submit(ctx, sig)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "submitted bundle: %s\n", id)
			if wait <= 0 {
				return nil
			}

			deadline := time.Now().Add(wait)
			for time.Now().Before(deadline) {
				status, err := exec.BundleStatus(ctx, id)
				if err == nil && status.ConfirmationStatus != "" {
					fmt.Fprintf(cmd.OutOrStdout(), "bundle %s %s at slot %d\n", id, status.ConfirmationStatus, status.Slot)
					return nil
				}
				if err != nil && status.Failed() {
					return err
				}
				time.Sleep(2 * time.Second)
			}
			return fmt.Errorf("bundle %s not confirmed after %s", id, wait)
		},
	}
	cmd.Flags().StringVar(&pair, "pair", "", "Market pair, e.g. SOL/USDC")
	cmd.Flags().StringVar(&side, "side", "buy", "buy or sell")
	cmd.Flags().StringVar(&qty, "qty", "", "Base quantity")
	cmd.Flags().StringVar(&price, "price", "", "Limit price in quote units")
	cmd.Flags().DurationVar(&timeout, "timeout", 15*time.Second, "Deadline for building and sending the bundle")
	cmd.Flags().DurationVar(&wait, "wait", 0, "Poll the relay for the bundle's status for this long")
	_ = cmd.MarkFlagRequired("pair")
	_ = cmd.MarkFlagRequired("qty")
	_ = cmd.MarkFlagRequired("price")
	return cmd
}
