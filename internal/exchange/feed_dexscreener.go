package exchange

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/shopspring/decimal"

	"tipbot-go/internal/failure"
)

const defaultDexScreenerBaseURL = "https://api.dexscreener.com"

// ErrNoVolume means no volume figure is available for the pair.
var ErrNoVolume = errors.New("no volume source for pair")

type dexscreenerTarget struct {
	Chain   string
	Address string
}

type dexscreenerPairsResponse struct {
	Pairs []dexscreenerPair `json:"pairs"`
	Pair  *dexscreenerPair  `json:"pair"`
}

type dexscreenerPair struct {
	ChainID     string             `json:"chainId"`
	PairAddress string             `json:"pairAddress"`
	PriceUsd    string             `json:"priceUsd"`
	Volume      dexscreenerVolumes `json:"volume"`
}

type dexscreenerVolumes struct {
	M5  float64 `json:"m5"`
	H1  float64 `json:"h1"`
	H6  float64 `json:"h6"`
	H24 float64 `json:"h24"`
}

func (r *dexscreenerPairsResponse) firstPair() (*dexscreenerPair, bool) {
	if len(r.Pairs) > 0 {
		return &r.Pairs[0], true
	}
	if r.Pair != nil {
		return r.Pair, true
	}
	return nil, false
}

// DexScreenerVolume answers USD trading volume per pair from the DexScreener HTTP API.
type DexScreenerVolume struct {
	baseURL string
	client  *http.Client
	targets map[string]dexscreenerTarget
}

// NewDexScreenerVolume builds a volume source. sources maps a pair to its "chain/pairAddress" target;
// pairs without an entry have no volume.
func NewDexScreenerVolume(baseURL string, timeout time.Duration, sources map[string]string) (*DexScreenerVolume, error) {
	if baseURL == "" {
		baseURL = defaultDexScreenerBaseURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	d := &DexScreenerVolume{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		targets: make(map[string]dexscreenerTarget, len(sources)),
	}
	for pair, raw := range sources {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		target, err := parseDexScreenerTarget(raw)
		if err != nil {
			return nil, fmt.Errorf("volume source for %s: %w", pair, err)
		}
		d.targets[pair] = target
	}
	return d, nil
}

// Volume returns the 24h USD volume of pair, falling back to the 6h then 1h figure.
func (d *DexScreenerVolume) Volume(ctx context.Context, pair string) (decimal.Decimal, error) {
	target, ok := d.targets[pair]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrNoVolume, pair)
	}
	p, err := d.fetch(ctx, target)
	if err != nil {
		return decimal.Zero, err
	}
	for _, v := range []float64{p.Volume.H24, p.Volume.H6, p.Volume.H1} {
		if v > 0 {
			return decimal.NewFromFloat(v), nil
		}
	}
	return decimal.Zero, fmt.Errorf("%w: %s reported no volume", ErrNoVolume, pair)
}

func (d *DexScreenerVolume) fetch(ctx context.Context, target dexscreenerTarget) (*dexscreenerPair, error) {
	const op = "dexscreener"
	url := fmt.Sprintf("%s/latest/dex/pairs/%s/%s", d.baseURL, target.Chain, target.Address)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "tipbot-go/1.0")
	resp, err := d.client.Do(req)
	if err != nil {
		return nil, failure.Classify(op, fmt.Errorf("http do: %w", err))
	}
	defer resp.Body.Close()
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, failure.Newf(failure.RPC, op, "rate limited")
	case resp.StatusCode >= 500:
		return nil, failure.Newf(failure.Network, op, "unexpected status %d", resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var payload dexscreenerPairsResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	pair, ok := payload.firstPair()
	if !ok {
		return nil, fmt.Errorf("%w: no pair data returned", ErrNoVolume)
	}
	return pair, nil
}

func parseDexScreenerTarget(raw string) (dexscreenerTarget, error) {
	parts := strings.SplitN(strings.TrimSpace(raw), "/", 2)
	if len(parts) != 2 {
		return dexscreenerTarget{}, fmt.Errorf("dexscreener target %q must be chain/address", raw)
	}
	chain := strings.ToLower(strings.TrimSpace(parts[0]))
	address := strings.TrimSpace(parts[1])
	if chain == "" || address == "" {
		return dexscreenerTarget{}, fmt.Errorf("dexscreener target %q missing chain or address", raw)
	}
	return dexscreenerTarget{Chain: chain, Address: address}, nil
}
