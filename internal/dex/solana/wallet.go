package solana

import (
	"errors"
	"fmt"
	"os"
	"strings"

	solana "github.com/gagliardetto/solana-go"
	"github.com/joho/godotenv"
)

const privateKeyEnv = "SOLANA_PRIVATE_KEY_BASE58"

func LoadPrivateKeyFromEnv() (solana.PrivateKey, error) {
	_ = godotenv.Load() // best-effort
	b58 := os.Getenv(privateKeyEnv)
	if b58 == "" {
		return nil, errors.New(privateKeyEnv + " not set")
	}
	return solana.PrivateKeyFromBase58(b58)
}

// LoadPrivateKey parses b58, falling back to the environment when it is empty.
func LoadPrivateKey(b58 string) (solana.PrivateKey, error) {
	b58 = strings.TrimSpace(b58)
	if b58 == "" {
		return LoadPrivateKeyFromEnv()
	}
	key, err := solana.PrivateKeyFromBase58(b58)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	return key, nil
}
