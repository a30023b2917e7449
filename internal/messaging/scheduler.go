package messaging

import (
	"context"
	"log/slog"
	"math/rand"
	"time"

	apperrors "github.com/allisson/fulfillment/internal/errors"
	"github.com/allisson/fulfillment/internal/retry"
)

// Scheduler decides whether a failed command gets another out-of-process
// attempt. Rather than blocking and retrying in memory it re-enters the
// queue with a delayed visibility time, so broker redelivery guarantees are
// honored and retries survive process restarts.
type Scheduler struct {
	thresholds retry.Thresholds
	rng        *rand.Rand
	clock      func() time.Time
	publisher  CommandPublisher
	logger     *slog.Logger
}

// NewScheduler creates a Scheduler. All collaborators are required; a nil
// one is a programming error, not a domain failure.
func NewScheduler(
	thresholds retry.Thresholds,
	rng *rand.Rand,
	clock func() time.Time,
	publisher CommandPublisher,
	logger *slog.Logger,
) (*Scheduler, error) {
	if rng == nil {
		return nil, apperrors.Precondition("rng")
	}
	if clock == nil {
		return nil, apperrors.Precondition("clock")
	}
	if publisher == nil {
		return nil, apperrors.Precondition("publisher")
	}
	if logger == nil {
		return nil, apperrors.Precondition("logger")
	}

	return &Scheduler{
		thresholds: thresholds,
		rng:        rng,
		clock:      clock,
		publisher:  publisher,
		logger:     logger,
	}, nil
}

// ScheduleIfEligible re-publishes the command with an exponential-backoff
// delay when its attempt budget allows another try. It returns false when
// the budget is exhausted, in which case the caller should let the message
// dead-letter. The published command is a copy with the attempt counter
// incremented; the caller's value is left untouched.
func (s *Scheduler) ScheduleIfEligible(ctx context.Context, cmd Command) (bool, error) {
	if cmd == nil {
		return false, apperrors.Precondition("cmd")
	}

	attempts := cmd.Envelope().PreviousAttempts
	if attempts >= s.thresholds.MaxAttempts {
		return false, nil
	}

	attempts++
	next := cmd.WithEnvelope(cmd.Envelope().WithAttempts(attempts))
	at := s.clock().Add(retry.Backoff(attempts, s.thresholds, s.rng))

	if err := s.publisher.PublishAt(ctx, next, at); err != nil {
		return false, apperrors.Wrap(err, "failed to schedule command retry")
	}

	s.logger.Info("command scheduled for retry",
		slog.String("kind", cmd.Kind()),
		slog.String("order_id", cmd.Envelope().OrderID),
		slog.String("partner_code", cmd.Envelope().PartnerCode),
		slog.String("correlation_id", cmd.Envelope().CorrelationID),
		slog.Int("attempt", attempts),
		slog.Time("not_before", at),
	)
	return true, nil
}
