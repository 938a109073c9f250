// Package retry runs fallible network operations under a bounded exponential backoff policy.
package retry

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/rs/zerolog"

	"tipbot-go/internal/metrics"
)

// Policy describes how often and how patiently an operation is retried.
//
// MaxAttempts counts retries after the initial call, so an operation that
// always fails runs MaxAttempts+1 times.
type Policy struct {
	Name         string
	MaxAttempts  int
	InitialDelay time.Duration
	Multiplier   float64
	MaxDelay     time.Duration
	Jitter       float64 // fraction of the delay added at random, 0 disables
	// Retryable decides whether an error is worth another attempt. Nil retries everything.
	Retryable func(error) bool
}

// Delay returns the wait before retry k (k >= 1): InitialDelay × Multiplier^(k-1), capped at MaxDelay.
func (p Policy) Delay(k int) time.Duration {
	if k < 1 {
		return 0
	}
	mult := p.Multiplier
	if mult <= 0 {
		mult = 2
	}
	d := float64(p.InitialDelay) * math.Pow(mult, float64(k-1))
	if p.MaxDelay > 0 && d > float64(p.MaxDelay) {
		d = float64(p.MaxDelay)
	}
	if d > math.MaxInt64 {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(d)
}

// Schedule lists every delay the policy would wait through before giving up.
func (p Policy) Schedule() []time.Duration {
	out := make([]time.Duration, 0, p.MaxAttempts)
	for k := 1; k <= p.MaxAttempts; k++ {
		out = append(out, p.Delay(k))
	}
	return out
}

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Retrier executes operations according to a Policy.
type Retrier struct {
	log   zerolog.Logger
	sleep SleepFunc
	rand  *rand.Rand
}

// Option customizes a Retrier.
type Option func(*Retrier)

// WithSleep swaps the wait implementation, mostly for tests.
func WithSleep(fn SleepFunc) Option {
	return func(r *Retrier) {
		if fn != nil {
			r.sleep = fn
		}
	}
}

// New builds a Retrier that logs through log.
func New(log zerolog.Logger, opts ...Option) *Retrier {
	r := &Retrier{
		log:   log,
		sleep: contextSleep,
		rand:  rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func contextSleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Operation is one attempt of a fallible call.
type Operation[T any] func(ctx context.Context) (T, error)

// Run calls op until it succeeds, the policy is exhausted, the error is not retryable
// or ctx ends during a backoff. The last error from op is returned unchanged.
func Run[T any](ctx context.Context, r *Retrier, p Policy, op Operation[T]) (T, error) {
	var (
		val T
		err error
	)
	for attempt := 0; ; attempt++ {
		val, err = op(ctx)
		if err == nil {
			return val, nil
		}
		if attempt >= p.MaxAttempts {
			return val, err
		}
		if p.Retryable != nil && !p.Retryable(err) {
			return val, err
		}

		delay := r.withJitter(p, p.Delay(attempt+1))
		metrics.RetriesTotal.WithLabelValues(p.label()).Inc()
		r.log.Warn().
			Err(err).
			Str("op", p.label()).
			Int("retry", attempt+1).
			Int("max", p.MaxAttempts).
			Dur("delay", delay).
			Msg("operation failed, retrying")

		if serr := r.sleep(ctx, delay); serr != nil {
			return val, err
		}
	}
}

// Do is Run for operations without a result value.
func Do(ctx context.Context, r *Retrier, p Policy, op func(ctx context.Context) error) error {
	_, err := Run(ctx, r, p, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return err
}

func (r *Retrier) withJitter(p Policy, d time.Duration) time.Duration {
	if p.Jitter <= 0 || d <= 0 {
		return d
	}
	return d + time.Duration(r.rand.Float64()*p.Jitter*float64(d))
}

func (p Policy) label() string {
	if p.Name == "" {
		return "op"
	}
	return p.Name
}
