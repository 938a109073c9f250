package solana

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	solana "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc/jsonrpc"
	"github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"tipbot-go/internal/failure"
)

// Relay is a JSON-RPC client for a bundle relay (Jito-style block engine).
type Relay struct {
	URL     string
	Http    *http.Client
	limiter *rate.Limiter
	nextID  atomic.Uint64
}

// NewRelay builds a relay client. rps <= 0 disables client-side throttling.
func NewRelay(url string, rps float64, timeout time.Duration) *Relay {
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	r := &Relay{
		URL:  strings.TrimRight(url, "/"),
		Http: &http.Client{Timeout: timeout},
	}
	if rps > 0 {
		r.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
	return r
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params"`
}

type rpcResponse struct {
	Result json.RawMessage   `json:"result"`
	Error  *jsonrpc.RPCError `json:"error"`
}

// SendBundle submits the transactions as one all-or-nothing bundle and returns its id.
func (r *Relay) SendBundle(ctx context.Context, txs ...*solana.Transaction) (string, error) {
	if len(txs) == 0 {
		return "", failure.Newf(failure.InvalidOrder, "sendBundle", "empty bundle")
	}
	encoded := make([]string, 0, len(txs))
	for _, tx := range txs {
		s, err := tx.ToBase64()
		if err != nil {
			return "", failure.New(failure.InvalidOrder, "sendBundle", fmt.Errorf("encode tx: %w", err))
		}
		encoded = append(encoded, s)
	}
	params := []any{encoded, map[string]string{"encoding": "base64"}}

	var id string
	if err := r.call(ctx, "sendBundle", params, &id); err != nil {
		return "", err
	}
	if id == "" {
		return "", failure.Newf(failure.RPC, "sendBundle", "relay returned empty bundle id")
	}
	return id, nil
}

// BundleStatus is one entry of getBundleStatuses.
type BundleStatus struct {
	BundleID           string          `json:"bundle_id"`
	Transactions       []string        `json:"transactions"`
	Slot               uint64          `json:"slot"`
	ConfirmationStatus string          `json:"confirmation_status"`
	Err                json.RawMessage `json:"err"`
}

// Failed reports whether the bundle landed with an on-chain error.
func (s BundleStatus) Failed() bool {
	e := strings.TrimSpace(string(s.Err))
	return e != "" && e != "null" && e != `{"Ok":null}`
}

// BundleStatuses queries the landing status of previously submitted bundles.
// Unknown ids are omitted from the result.
func (r *Relay) BundleStatuses(ctx context.Context, ids ...string) ([]BundleStatus, error) {
	var out struct {
		Value []*BundleStatus `json:"value"`
	}
	if err := r.call(ctx, "getBundleStatuses", []any{ids}, &out); err != nil {
		return nil, err
	}
	statuses := make([]BundleStatus, 0, len(out.Value))
	for _, s := range out.Value {
		if s != nil {
			statuses = append(statuses, *s)
		}
	}
	return statuses, nil
}

func (r *Relay) call(ctx context.Context, method string, params, out any) error {
	if r.limiter != nil {
		if err := r.limiter.Wait(ctx); err != nil {
			return failure.Classify(method, err)
		}
	}
	body, err := json.Marshal(rpcRequest{JSONRPC: "2.0", ID: r.nextID.Add(1), Method: method, Params: params})
	if err != nil {
		return fmt.Errorf("%s: marshal request: %w", method, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.URL, bytes.NewReader(body))
	if err != nil {
		return failure.New(failure.Network, method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.Http.Do(req)
	if err != nil {
		return failure.Classify(method, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return failure.New(failure.Network, method, err)
	}

	var envelope rpcResponse
	decodeErr := json.Unmarshal(raw, &envelope)
	if decodeErr == nil && envelope.Error != nil {
		return failure.Classify(method, envelope.Error)
	}
	if resp.StatusCode != http.StatusOK {
		kind := failure.RPC
		if resp.StatusCode >= 500 {
			kind = failure.Network
		}
		return failure.Newf(kind, method, "relay status %d", resp.StatusCode)
	}
	if decodeErr != nil {
		return failure.New(failure.RPC, method, fmt.Errorf("decode response: %w", decodeErr))
	}
	if out != nil {
		if err := json.Unmarshal(envelope.Result, out); err != nil {
			return failure.New(failure.RPC, method, fmt.Errorf("decode result: %w", err))
		}
	}
	return nil
}
