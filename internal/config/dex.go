// Package config also contains Solana and relay configuration surfaces.
package config

import (
	"os"

	"github.com/joho/godotenv"
)

// Solana defines the cluster endpoint and the order program.
type Solana struct {
	RPCURL            string `yaml:"rpc_url" validate:"required,url"`
	Commitment        string `yaml:"commitment" validate:"omitempty,oneof=processed confirmed finalized"`
	ProgramID         string `yaml:"program_id" validate:"required"`
	QuoteTokenAccount string `yaml:"quote_token_account"` // SPL account funding buys
	QuoteSymbol       string `yaml:"quote_symbol"`
}

// Relay configures the bundle relay (block engine).
type Relay struct {
	URL               string  `yaml:"url" validate:"required,url"`
	TipAccount        string  `yaml:"tip_account" validate:"required"`
	TipLamports       uint64  `yaml:"tip_lamports"`
	RequestsPerSecond float64 `yaml:"requests_per_second" validate:"gte=0"`
	TimeoutMs         int     `yaml:"timeout_ms" validate:"gte=0"`
}

// Wallet stores encrypted or env-backed signing material metadata.
type Wallet struct {
	PrivateKeyBase58 string `yaml:"private_key_base58"`
}

// ApplyEnv overlays secrets and endpoints from the environment (and a .env file when present).
func (c *Config) ApplyEnv() {
	_ = godotenv.Load() // best-effort
	if v := os.Getenv("SOLANA_RPC_URL"); v != "" {
		c.Solana.RPCURL = v
	}
	if v := os.Getenv("SOLANA_COMMITMENT"); v != "" {
		c.Solana.Commitment = v
	}
	if v := os.Getenv("PROGRAM_ID"); v != "" {
		c.Solana.ProgramID = v
	}
	if v := os.Getenv("RELAY_URL"); v != "" {
		c.Relay.URL = v
	}
	if v := os.Getenv("SOLANA_PRIVATE_KEY_BASE58"); v != "" {
		c.Wallet.PrivateKeyBase58 = v
	}
}
