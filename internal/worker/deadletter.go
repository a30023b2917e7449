package worker

import (
	"context"
	"log/slog"

	"gocloud.dev/pubsub"

	"github.com/allisson/fulfillment/internal/messaging"
	"github.com/allisson/fulfillment/internal/metrics"
)

// DeadLetterConsumer drains the dead-letter subscription, escalating every
// message it sees. Identity comes from message metadata so even undecodable
// bodies still produce a useful escalation. Messages are always acked;
// notification failures are logged, never block disposition.
type DeadLetterConsumer struct {
	sub             *pubsub.Subscription
	notifier        Notifier
	pipelineMetrics metrics.PipelineMetrics
	logger          *slog.Logger
}

// NewDeadLetterConsumer creates the dead-letter consumer.
func NewDeadLetterConsumer(
	sub *pubsub.Subscription,
	notifier Notifier,
	pipelineMetrics metrics.PipelineMetrics,
	logger *slog.Logger,
) *DeadLetterConsumer {
	return &DeadLetterConsumer{
		sub:             sub,
		notifier:        notifier,
		pipelineMetrics: pipelineMetrics,
		logger:          logger,
	}
}

// Run receives and escalates dead-lettered messages until the context is
// canceled.
func (c *DeadLetterConsumer) Run(ctx context.Context) error {
	c.logger.Info("dead-letter consumer started")

	for {
		msg, err := c.sub.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.logger.Info("dead-letter consumer stopped")
				return ctx.Err()
			}
			return err
		}

		c.handleMessage(ctx, msg)
	}
}

func (c *DeadLetterConsumer) handleMessage(ctx context.Context, msg *pubsub.Message) {
	location := msg.Metadata[messaging.AttrKind]
	partnerCode := msg.Metadata[messaging.AttrPartnerCode]
	orderID := msg.Metadata[messaging.AttrOrderID]
	correlationID := msg.Metadata[messaging.AttrCorrelationID]

	c.logger.Warn("dead-lettered message received",
		slog.String("location", location),
		slog.String("partner_code", partnerCode),
		slog.String("order_id", orderID),
		slog.String("correlation_id", correlationID),
	)

	res := c.notifier.NotifyDeadLetter(ctx, location, partnerCode, orderID, correlationID)
	if !res.Succeeded() {
		c.logger.Error("dead-letter escalation failed",
			slog.String("order_id", orderID),
			slog.String("reason", res.Reason),
		)
	}

	c.pipelineMetrics.RecordCommandHandled(ctx, location, dispositionDeadLettered)
	msg.Ack()
}
