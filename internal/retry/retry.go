// Package retry implements the exponential-backoff-with-jitter execution
// policy applied to individual external calls inside the fulfillment
// pipelines. The out-of-process analog, which re-enqueues whole commands with
// a delayed visibility time, lives in the messaging package.
package retry

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/allisson/fulfillment/internal/result"
)

// Thresholds holds the knobs for a backoff policy. MaxAttempts counts the
// additional attempts after the first call, not the total.
type Thresholds struct {
	MaxAttempts            int
	ExponentialBaseSeconds float64
	JitterSeconds          float64
}

// Backoff computes the delay before the given retry attempt:
// 2^attempt * base seconds, plus a random fraction of the jitter window.
// Jitter is additive so the exponential term stays a strict lower bound.
func Backoff(attempt int, thresholds Thresholds, rng *rand.Rand) time.Duration {
	seconds := math.Pow(2, float64(attempt)) * thresholds.ExponentialBaseSeconds
	if thresholds.JitterSeconds > 0 && rng != nil {
		seconds += rng.Float64() * thresholds.JitterSeconds
	}
	return time.Duration(seconds * float64(time.Second))
}

// Policy retries a single operation in-process while its result is classified
// as retriable. The random source and sleep function are injected so tests
// can run deterministically without waiting.
type Policy struct {
	thresholds Thresholds
	rng        *rand.Rand
	sleep      func(ctx context.Context, d time.Duration) error
}

// Option configures a Policy.
type Option func(*Policy)

// WithSleep replaces the delay function. Intended for tests.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(p *Policy) { p.sleep = sleep }
}

// NewPolicy creates a Policy with the given thresholds and random source.
func NewPolicy(thresholds Thresholds, rng *rand.Rand, opts ...Option) *Policy {
	p := &Policy{
		thresholds: thresholds,
		rng:        rng,
		sleep:      sleepContext,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Thresholds returns the policy's configured thresholds.
func (p *Policy) Thresholds() Thresholds {
	return p.thresholds
}

// Execute runs the operation, retrying on retriable failures with an
// exponential backoff plus jitter between attempts. The returned result is
// the first success, or the last observed failure once the attempt budget is
// exhausted or the context is canceled. Each call boundary owns its own
// budget; failures are never aggregated across boundaries.
func Execute[T any](ctx context.Context, p *Policy, op func(ctx context.Context) result.Result[T]) result.Result[T] {
	r := op(ctx)

	for attempt := 1; attempt <= p.thresholds.MaxAttempts && r.Retriable(); attempt++ {
		if err := p.sleep(ctx, Backoff(attempt, p.thresholds, p.rng)); err != nil {
			return r
		}
		r = op(ctx)
	}

	return r
}

// sleepContext waits for the duration without blocking past context
// cancellation.
func sleepContext(ctx context.Context, d time.Duration) error {
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
