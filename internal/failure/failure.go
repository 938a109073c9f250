// Package failure classifies errors raised by oracle, relay and RPC calls and routes them to corrective actions.
package failure

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/gagliardetto/solana-go/rpc/jsonrpc"
)

// Kind is the classification attached to a failure.
type Kind int

const (
	// Unknown covers anything that could not be classified.
	Unknown Kind = iota
	// Network is a transport or connectivity failure.
	Network
	// InsufficientFunds means the funding account cannot cover the order.
	InsufficientFunds
	// InvalidOrder is a malformed or unsupported signal.
	InvalidOrder
	// RPC is a protocol-level rejection from the relay or the RPC node.
	RPC
	// Execution means the relay accepted the bundle but it failed on-chain.
	Execution
)

func (k Kind) String() string {
	switch k {
	case Network:
		return "network"
	case InsufficientFunds:
		return "insufficient_funds"
	case InvalidOrder:
		return "invalid_order"
	case RPC:
		return "rpc"
	case Execution:
		return "execution"
	default:
		return "unknown"
	}
}

// Error carries a Kind alongside the failed operation and its cause.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	label := map[Kind]string{
		Network:           "network error",
		InsufficientFunds: "insufficient funds",
		InvalidOrder:      "invalid order",
		RPC:               "rpc error",
		Execution:         "execution error",
	}[e.Kind]
	if label == "" {
		label = "error"
	}
	if e.Op == "" {
		return fmt.Sprintf("%s: %v", label, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", label, e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// New wraps err with kind. A nil err yields nil.
func New(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// Newf builds a classified error from a message.
func Newf(kind Kind, op, format string, args ...any) error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// KindOf returns the kind of the outermost classified error in err's chain.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return Unknown
}

// IsTransient reports whether err is worth retrying.
func IsTransient(err error) bool {
	switch KindOf(err) {
	case Network, RPC:
		return true
	default:
		return false
	}
}

// Anchor custom error codes of the order program.
const (
	codeInsufficientFunds = 6000
	codeUnauthorized      = 6001
)

// Classify wraps a raw error from an rpc or http call with the kind it most likely represents.
// Already classified errors pass through untouched.
func Classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var fe *Error
	if errors.As(err, &fe) {
		return err
	}
	if errors.Is(err, context.Canceled) {
		return New(Unknown, op, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return New(Network, op, err)
	}

	var rpcErr *jsonrpc.RPCError
	if errors.As(err, &rpcErr) {
		return New(classifyMessage(rpcErr.Message, RPC), op, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return New(Network, op, err)
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return New(Network, op, err)
	}
	return New(classifyMessage(err.Error(), Unknown), op, err)
}

// ClassifyMessage maps a relay or node error message to a kind, using fallback when nothing matches.
func ClassifyMessage(msg string, fallback Kind) Kind {
	return classifyMessage(msg, fallback)
}

func classifyMessage(msg string, fallback Kind) Kind {
	m := strings.ToLower(msg)
	switch {
	case strings.Contains(m, "insufficient funds"),
		strings.Contains(m, "insufficient lamports"),
		strings.Contains(m, fmt.Sprintf("custom program error: 0x%x", codeInsufficientFunds)):
		return InsufficientFunds
	case strings.Contains(m, fmt.Sprintf("custom program error: 0x%x", codeUnauthorized)),
		strings.Contains(m, "invalid instruction"):
		return InvalidOrder
	case strings.Contains(m, "simulation failed"),
		strings.Contains(m, "transaction failed"),
		strings.Contains(m, "bundle failed"):
		return Execution
	case strings.Contains(m, "connection refused"),
		strings.Contains(m, "connection reset"),
		strings.Contains(m, "no such host"),
		strings.Contains(m, "i/o timeout"),
		strings.Contains(m, "eof"):
		return Network
	default:
		return fallback
	}
}
