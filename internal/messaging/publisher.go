package messaging

import (
	"context"
	"log/slog"
	"time"

	"gocloud.dev/pubsub"

	apperrors "github.com/allisson/fulfillment/internal/errors"
)

// CommandPublisher publishes commands to the queue a publisher is bound to.
// One publisher exists per command type, mirroring one queue per command.
type CommandPublisher interface {
	Publish(ctx context.Context, cmd Command) error
	PublishAt(ctx context.Context, cmd Command, at time.Time) error
}

// QueuePublisher is a CommandPublisher over a gocloud.dev/pubsub topic.
type QueuePublisher struct {
	topic  *pubsub.Topic
	logger *slog.Logger
}

// NewQueuePublisher creates a publisher bound to the given topic.
func NewQueuePublisher(topic *pubsub.Topic, logger *slog.Logger) *QueuePublisher {
	return &QueuePublisher{topic: topic, logger: logger}
}

// Publish validates and sends the command for immediate delivery.
func (p *QueuePublisher) Publish(ctx context.Context, cmd Command) error {
	return p.PublishAt(ctx, cmd, time.Time{})
}

// PublishAt validates and sends the command with a not-before instant. The
// subscriber defers deliveries that arrive ahead of their time.
func (p *QueuePublisher) PublishAt(ctx context.Context, cmd Command, at time.Time) error {
	if cmd == nil {
		return apperrors.Precondition("cmd")
	}
	if err := cmd.Validate(); err != nil {
		return apperrors.Wrap(err, "refusing to publish invalid command")
	}

	msg, err := EncodeCommand(cmd, at)
	if err != nil {
		return err
	}

	if err := p.topic.Send(ctx, msg); err != nil {
		return apperrors.Wrapf(err, "failed to publish %s command", cmd.Kind())
	}

	p.logger.Debug("command published",
		slog.String("kind", cmd.Kind()),
		slog.String("order_id", cmd.Envelope().OrderID),
		slog.String("partner_code", cmd.Envelope().PartnerCode),
		slog.String("correlation_id", cmd.Envelope().CorrelationID),
	)
	return nil
}

// EventPublisher publishes events without surfacing failures; an event that
// cannot be published is logged and dropped.
type EventPublisher interface {
	TryPublish(ctx context.Context, evt Event)
}

// TopicEventPublisher is an EventPublisher over a gocloud.dev/pubsub topic.
// A nil topic disables event publication entirely.
type TopicEventPublisher struct {
	topic  *pubsub.Topic
	logger *slog.Logger
}

// NewTopicEventPublisher creates an event publisher for the given topic.
func NewTopicEventPublisher(topic *pubsub.Topic, logger *slog.Logger) *TopicEventPublisher {
	return &TopicEventPublisher{topic: topic, logger: logger}
}

// TryPublish sends the event, logging (never returning) any failure.
func (p *TopicEventPublisher) TryPublish(ctx context.Context, evt Event) {
	if p.topic == nil {
		return
	}

	msg, err := EncodeEvent(evt)
	if err != nil {
		p.logger.Error("failed to encode event",
			slog.String("kind", string(evt.Kind)),
			slog.Any("error", err),
		)
		return
	}

	if err := p.topic.Send(ctx, msg); err != nil {
		p.logger.Error("failed to publish event",
			slog.String("kind", string(evt.Kind)),
			slog.String("order_id", evt.Meta.OrderID),
			slog.String("correlation_id", evt.Meta.CorrelationID),
			slog.Any("error", err),
		)
	}
}
