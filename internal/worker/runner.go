package worker

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"
)

// runnable is anything with a blocking Run loop, satisfied by Consumer and
// DeadLetterConsumer.
type runnable interface {
	Run(ctx context.Context) error
}

// Runner supervises a set of consumers. If any consumer fails the shared
// context is canceled and the rest shut down.
type Runner struct {
	consumers []runnable
}

// NewRunner creates a runner over the given consumers. Nil entries are
// skipped so optional workers (the dead-letter consumer, for example) can be
// passed unconditionally.
func NewRunner(consumers ...runnable) *Runner {
	r := &Runner{}
	for _, c := range consumers {
		if c != nil {
			r.consumers = append(r.consumers, c)
		}
	}
	return r
}

// Run blocks until the context is canceled or a consumer fails. Context
// cancellation is the normal shutdown path and is not reported as an error.
func (r *Runner) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	for _, c := range r.consumers {
		c := c
		g.Go(func() error {
			return c.Run(ctx)
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
