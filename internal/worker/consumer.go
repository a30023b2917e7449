package worker

import (
	"context"
	"log/slog"
	"time"

	"gocloud.dev/pubsub"

	"github.com/allisson/fulfillment/internal/messaging"
	"github.com/allisson/fulfillment/internal/metrics"
)

// Command dispositions recorded per consumed message.
const (
	dispositionCompleted      = "completed"
	dispositionRetryScheduled = "retry_scheduled"
	dispositionDeadLettered   = "dead_lettered"
	dispositionDecodeFailed   = "decode_failed"
	dispositionDeferred       = "deferred"
)

// deferralPollInterval caps how long a consumer sleeps after nacking a
// message that is not yet due, so shutdown stays responsive.
const deferralPollInterval = time.Second

// Consumer drives one command subscription. It decodes deliveries, defers the
// ones carrying a future not-before instant, dispatches the rest to the
// handler and settles the message by the handler's result.
type Consumer struct {
	sub             *pubsub.Subscription
	handler         Handler
	scheduler       *messaging.Scheduler
	notifyPublisher messaging.CommandPublisher
	pipelineMetrics metrics.PipelineMetrics
	clock           func() time.Time
	logger          *slog.Logger
}

// NewConsumer creates a consumer for the handler's command queue. The
// notifyPublisher may be nil for the notification queue itself; exhaustion
// there dead-letters without producing another escalation command.
func NewConsumer(
	sub *pubsub.Subscription,
	handler Handler,
	scheduler *messaging.Scheduler,
	notifyPublisher messaging.CommandPublisher,
	pipelineMetrics metrics.PipelineMetrics,
	logger *slog.Logger,
) *Consumer {
	return &Consumer{
		sub:             sub,
		handler:         handler,
		scheduler:       scheduler,
		notifyPublisher: notifyPublisher,
		pipelineMetrics: pipelineMetrics,
		clock:           func() time.Time { return time.Now().UTC() },
		logger:          logger,
	}
}

// Run receives and handles messages until the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	c.logger.Info("consumer started", slog.String("kind", c.handler.Kind()))

	for {
		msg, err := c.sub.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.logger.Info("consumer stopped", slog.String("kind", c.handler.Kind()))
				return ctx.Err()
			}
			return err
		}

		c.handleMessage(ctx, msg)
	}
}

func (c *Consumer) handleMessage(ctx context.Context, msg *pubsub.Message) {
	if at, ok := messaging.NotBefore(msg); ok && c.clock().Before(at) {
		c.postpone(ctx, msg, at)
		return
	}

	cmd, err := messaging.DecodeCommand(msg)
	if err != nil {
		c.logger.Error("failed to decode delivery",
			slog.String("kind", msg.Metadata[messaging.AttrKind]),
			slog.Any("error", err),
		)
		c.pipelineMetrics.RecordCommandHandled(ctx, msg.Metadata[messaging.AttrKind], dispositionDecodeFailed)
		c.reject(msg)
		return
	}

	res := c.handler.Handle(ctx, cmd)

	switch {
	case res.Succeeded():
		c.pipelineMetrics.RecordCommandHandled(ctx, cmd.Kind(), dispositionCompleted)
		msg.Ack()

	case res.Retriable():
		scheduled, err := c.scheduler.ScheduleIfEligible(ctx, cmd)
		if err != nil {
			c.logger.Error("failed to schedule command retry",
				slog.String("kind", cmd.Kind()),
				slog.String("order_id", cmd.Envelope().OrderID),
				slog.Any("error", err),
			)
			c.reject(msg)
			return
		}
		if scheduled {
			c.pipelineMetrics.RecordCommandHandled(ctx, cmd.Kind(), dispositionRetryScheduled)
			c.pipelineMetrics.RecordRetryScheduled(ctx, cmd.Kind(), cmd.Envelope().PreviousAttempts+1)
			msg.Ack()
			return
		}
		c.escalate(ctx, cmd, msg, "retry budget exhausted")

	default:
		c.escalate(ctx, cmd, msg, res.Reason)
	}
}

// postpone puts a not-yet-due delivery back on the queue and briefly idles so
// redelivery loops do not spin hot.
func (c *Consumer) postpone(ctx context.Context, msg *pubsub.Message, due time.Time) {
	c.pipelineMetrics.RecordCommandHandled(ctx, msg.Metadata[messaging.AttrKind], dispositionDeferred)
	c.reject(msg)

	wait := time.Until(due)
	if wait > deferralPollInterval {
		wait = deferralPollInterval
	}
	if wait <= 0 {
		return
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

// escalate publishes the fatal-failure command (when this queue has one) and
// rejects the message so the broker dead-letters it.
func (c *Consumer) escalate(ctx context.Context, cmd messaging.Command, msg *pubsub.Message, reason string) {
	c.logger.Error("command failed for good",
		slog.String("kind", cmd.Kind()),
		slog.String("partner_code", cmd.Envelope().PartnerCode),
		slog.String("order_id", cmd.Envelope().OrderID),
		slog.String("correlation_id", cmd.Envelope().CorrelationID),
		slog.String("reason", reason),
	)

	if c.notifyPublisher != nil {
		notify := messaging.NewNotifyOfFatalFailureFrom(cmd)
		if err := c.notifyPublisher.Publish(ctx, notify); err != nil {
			c.logger.Error("failed to publish fatal failure notification",
				slog.String("order_id", cmd.Envelope().OrderID),
				slog.Any("error", err),
			)
		}
	}

	c.pipelineMetrics.RecordCommandHandled(ctx, cmd.Kind(), dispositionDeadLettered)
	c.reject(msg)
}

// reject nacks when the driver supports it; otherwise the message is acked
// to avoid wedging drivers without redelivery semantics.
func (c *Consumer) reject(msg *pubsub.Message) {
	if msg.Nackable() {
		msg.Nack()
		return
	}
	msg.Ack()
}
