package solana

import (
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/goccy/go-json"
)

type rpcCall struct {
	Method string
	Params json.RawMessage
}

type rpcHandler func(params json.RawMessage) (result any, rpcErr map[string]any)

// newRPCServer answers JSON-RPC POSTs by method name and records every call.
func newRPCServer(t *testing.T, handlers map[string]rpcHandler) (*httptest.Server, func() []rpcCall) {
	t.Helper()
	var (
		mu    sync.Mutex
		calls []rpcCall
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var req struct {
			ID     json.RawMessage `json:"id"`
			Method string          `json:"method"`
			Params json.RawMessage `json:"params"`
		}
		if err := json.Unmarshal(body, &req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		mu.Lock()
		calls = append(calls, rpcCall{Method: req.Method, Params: req.Params})
		mu.Unlock()

		resp := map[string]any{"jsonrpc": "2.0", "id": req.ID}
		h, ok := handlers[req.Method]
		if !ok {
			resp["error"] = map[string]any{"code": -32601, "message": "Method not found"}
		} else if result, rpcErr := h(req.Params); rpcErr != nil {
			resp["error"] = rpcErr
		} else {
			resp["result"] = result
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv, func() []rpcCall {
		mu.Lock()
		defer mu.Unlock()
		return append([]rpcCall(nil), calls...)
	}
}

func ctxValue(v any) map[string]any {
	return map[string]any{"context": map[string]any{"slot": 1}, "value": v}
}
