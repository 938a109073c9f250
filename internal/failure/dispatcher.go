package failure

import (
	"context"

	solana "github.com/gagliardetto/solana-go"
	"github.com/rs/zerolog"

	"tipbot-go/internal/metrics"
	"tipbot-go/internal/retry"
)

// Reporter receives every terminal error kind.
type Reporter interface {
	RecordError(kind Kind)
}

// Reconnector re-establishes connectivity to the RPC node or relay.
type Reconnector interface {
	Reconnect(ctx context.Context) error
}

// Canceller cancels every outstanding order owned by an account.
type Canceller interface {
	CancelAll(ctx context.Context, owner solana.PublicKey) (int, error)
}

// Dispatcher maps terminal errors to corrective side effects.
type Dispatcher struct {
	log             zerolog.Logger
	reporter        Reporter
	reconnector     Reconnector
	canceller       Canceller
	retrier         *retry.Retrier
	reconnectPolicy retry.Policy
}

// NewDispatcher wires the corrective collaborators. Any of them may be nil, in which
// case that corrective action is skipped and the error is only reported.
func NewDispatcher(log zerolog.Logger, reporter Reporter, reconnector Reconnector, canceller Canceller, retrier *retry.Retrier, reconnectPolicy retry.Policy) *Dispatcher {
	if reconnectPolicy.Name == "" {
		reconnectPolicy.Name = "reconnect"
	}
	return &Dispatcher{
		log:             log,
		reporter:        reporter,
		reconnector:     reconnector,
		canceller:       canceller,
		retrier:         retrier,
		reconnectPolicy: reconnectPolicy,
	}
}

// Handle reports err and runs the corrective action its kind calls for.
// owner is the account the failing operation acted for; it may be the zero key.
func (d *Dispatcher) Handle(ctx context.Context, err error, owner solana.PublicKey) Kind {
	if err == nil {
		return Unknown
	}
	kind := KindOf(err)
	metrics.ErrorsTotal.WithLabelValues(kind.String()).Inc()
	if d.reporter != nil {
		d.reporter.RecordError(kind)
	}

	switch kind {
	case Network:
		d.log.Error().Err(err).Msg("network error")
		d.reconnect(ctx)
	case InsufficientFunds:
		d.log.Error().Err(err).Str("owner", owner.String()).Msg("insufficient funds, cancelling outstanding orders")
		d.cancelAll(ctx, owner)
	case InvalidOrder:
		d.log.Error().Err(err).Msg("invalid order")
	case RPC, Execution:
		d.log.Error().Err(err).Str("kind", kind.String()).Msg("request rejected")
	default:
		d.log.Error().Err(err).Msg("unexpected error")
	}
	return kind
}

func (d *Dispatcher) reconnect(ctx context.Context) {
	if d.reconnector == nil || d.retrier == nil {
		return
	}
	err := retry.Do(ctx, d.retrier, d.reconnectPolicy, d.reconnector.Reconnect)
	if err != nil {
		d.log.Error().Err(err).Msg("failed to reconnect")
		return
	}
	d.log.Info().Msg("reconnected")
}

func (d *Dispatcher) cancelAll(ctx context.Context, owner solana.PublicKey) {
	if d.canceller == nil || owner.IsZero() {
		return
	}
	n, err := d.canceller.CancelAll(ctx, owner)
	if err != nil {
		d.log.Error().Err(err).Msg("failed to cancel orders")
		return
	}
	d.log.Info().Int("cancelled", n).Str("owner", owner.String()).Msg("cancelled outstanding orders")
}
