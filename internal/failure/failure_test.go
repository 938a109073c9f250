package failure

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"testing"
	"time"

	solana "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc/jsonrpc"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tipbot-go/internal/retry"
)

func TestKindOfUnwrapsChains(t *testing.T) {
	base := New(InsufficientFunds, "submit", errors.New("balance 1 < 2"))
	wrapped := fmt.Errorf("cycle: %w", base)

	assert.Equal(t, InsufficientFunds, KindOf(wrapped))
	assert.Equal(t, Unknown, KindOf(errors.New("plain")))
	assert.Contains(t, base.Error(), "insufficient funds: submit")
}

func TestIsTransient(t *testing.T) {
	assert.True(t, IsTransient(New(Network, "poll", errors.New("x"))))
	assert.True(t, IsTransient(New(RPC, "poll", errors.New("x"))))
	assert.False(t, IsTransient(New(InvalidOrder, "submit", errors.New("x"))))
	assert.False(t, IsTransient(New(InsufficientFunds, "submit", errors.New("x"))))
	assert.False(t, IsTransient(errors.New("plain")))
}

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want Kind
	}{
		{"url error", &url.Error{Op: "Post", URL: "http://x", Err: errors.New("dial")}, Network},
		{"net op error", &net.OpError{Op: "dial", Err: errors.New("refused")}, Network},
		{"deadline", context.DeadlineExceeded, Network},
		{"rpc error", &jsonrpc.RPCError{Code: -32002, Message: "Blockhash not found"}, RPC},
		{"rpc insufficient", &jsonrpc.RPCError{Code: -32002, Message: "Transaction simulation failed: custom program error: 0x1770"}, InsufficientFunds},
		{"rpc simulation", &jsonrpc.RPCError{Code: -32002, Message: "Transaction simulation failed: Error processing Instruction 1"}, Execution},
		{"message eof", errors.New("unexpected EOF"), Network},
		{"unknown", errors.New("weird"), Unknown},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Classify("op", tc.err)
			assert.Equal(t, tc.want, KindOf(got))
			assert.ErrorIs(t, got, tc.err)
		})
	}
}

func TestClassifyKeepsExistingKind(t *testing.T) {
	orig := New(InvalidOrder, "submit", errors.New("qty"))
	assert.Same(t, orig, Classify("other", orig))
	assert.Nil(t, Classify("op", nil))
}

type fakeReporter struct{ kinds []Kind }

func (f *fakeReporter) RecordError(k Kind) { f.kinds = append(f.kinds, k) }

type fakeReconnector struct {
	calls   int
	failFor int
}

func (f *fakeReconnector) Reconnect(context.Context) error {
	f.calls++
	if f.calls <= f.failFor {
		return errors.New("still down")
	}
	return nil
}

type fakeCanceller struct {
	owners []solana.PublicKey
}

func (f *fakeCanceller) CancelAll(_ context.Context, owner solana.PublicKey) (int, error) {
	f.owners = append(f.owners, owner)
	return 2, nil
}

func newTestDispatcher(rep Reporter, rc Reconnector, c Canceller) *Dispatcher {
	r := retry.New(zerolog.Nop(), retry.WithSleep(func(ctx context.Context, d time.Duration) error { return nil }))
	return NewDispatcher(zerolog.Nop(), rep, rc, c, r, retry.Policy{MaxAttempts: 5, InitialDelay: time.Second})
}

func TestDispatcherNetworkTriggersReconnect(t *testing.T) {
	rep := &fakeReporter{}
	rc := &fakeReconnector{failFor: 2}
	c := &fakeCanceller{}
	d := newTestDispatcher(rep, rc, c)

	kind := d.Handle(context.Background(), New(Network, "poll", errors.New("down")), solana.PublicKey{})

	assert.Equal(t, Network, kind)
	assert.Equal(t, 3, rc.calls)
	assert.Empty(t, c.owners)
	assert.Equal(t, []Kind{Network}, rep.kinds)
}

func TestDispatcherReconnectBudgetIsBounded(t *testing.T) {
	rc := &fakeReconnector{failFor: 100}
	d := newTestDispatcher(&fakeReporter{}, rc, nil)

	d.Handle(context.Background(), New(Network, "poll", errors.New("down")), solana.PublicKey{})

	assert.Equal(t, 6, rc.calls)
}

func TestDispatcherInsufficientFundsCancelsOrders(t *testing.T) {
	rep := &fakeReporter{}
	rc := &fakeReconnector{}
	c := &fakeCanceller{}
	d := newTestDispatcher(rep, rc, c)
	owner := solana.NewWallet().PublicKey()

	kind := d.Handle(context.Background(), New(InsufficientFunds, "submit", errors.New("low")), owner)

	assert.Equal(t, InsufficientFunds, kind)
	require.Len(t, c.owners, 1)
	assert.True(t, c.owners[0].Equals(owner))
	assert.Zero(t, rc.calls)
}

func TestDispatcherInvalidOrderOnlyReports(t *testing.T) {
	rep := &fakeReporter{}
	rc := &fakeReconnector{}
	c := &fakeCanceller{}
	d := newTestDispatcher(rep, rc, c)

	d.Handle(context.Background(), New(InvalidOrder, "submit", errors.New("qty")), solana.NewWallet().PublicKey())
	d.Handle(context.Background(), errors.New("surprise"), solana.PublicKey{})

	assert.Equal(t, []Kind{InvalidOrder, Unknown}, rep.kinds)
	assert.Zero(t, rc.calls)
	assert.Empty(t, c.owners)
}
