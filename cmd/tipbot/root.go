package main

import (
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"tipbot-go/internal/config"
	"tipbot-go/internal/util"
)

const defaultConfigPath = "internal/config/config.yaml"

type rootConfig struct {
	ConfigPath string
	LogLevel   string
}

func newRootCmd() *cobra.Command {
	rc := &rootConfig{}
	cmd := &cobra.Command{
		Use:           "tipbot",
		Short:         "Oracle-driven Solana trading bot submitting tipped bundles",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&rc.ConfigPath, "config", defaultConfigPath, "Path to the YAML config")
	cmd.PersistentFlags().StringVar(&rc.LogLevel, "log-level", "", "Override app.log_level: debug|info|warn|error")

	cmd.AddCommand(
		newRunCmd(rc),
		newCheckConfigCmd(rc),
		newInitAccountCmd(rc),
		newSubmitCmd(rc),
		newJournalCmd(rc),
	)
	return cmd
}

// load reads, env-overlays and validates the config.
func (rc *rootConfig) load() (*config.Config, error) {
	cfg, err := config.Load(rc.ConfigPath)
	if err != nil {
		return nil, err
	}
	cfg.ApplyEnv()
	if rc.LogLevel != "" {
		cfg.App.LogLevel = rc.LogLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (rc *rootConfig) logger(cfg *config.Config) zerolog.Logger {
	return util.NewFileLogger(cfg.App.LogLevel, cfg.App.LogFile).With().Str("app", cfg.App.Name).Logger()
}
