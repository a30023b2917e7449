// Package worker runs the queue consumers that drive the fulfillment
// pipelines. Each command queue gets one consumer; the consumer decodes the
// command, hands it to the matching handler, and settles the message
// according to the handler's result: success acks, a retriable failure
// re-enqueues with backoff, a final or budget-exhausted failure escalates and
// lets the broker dead-letter.
package worker

import (
	"context"
	"log/slog"

	"github.com/allisson/fulfillment/internal/messaging"
	orderUsecase "github.com/allisson/fulfillment/internal/order/usecase"
	"github.com/allisson/fulfillment/internal/result"
)

// Handler processes one decoded command and reports the pipeline result.
// Handlers own the success-side effects (follow-up commands, events); message
// settlement stays with the consumer.
type Handler interface {
	Kind() string
	Handle(ctx context.Context, cmd messaging.Command) result.Result[string]
}

// Notifier escalates orders whose pipelines failed for good.
type Notifier interface {
	NotifyOrderFailure(ctx context.Context, partnerCode, orderID, correlationID string) result.Result[string]
	NotifyDeadLetter(ctx context.Context, location, partnerCode, orderID, correlationID string) result.Result[string]
}

// ProcessOrderHandler stages orders and hands them off to submission.
type ProcessOrderHandler struct {
	processor       orderUsecase.OrderProcessor
	submitPublisher messaging.CommandPublisher
	events          messaging.EventPublisher
	logger          *slog.Logger
}

// NewProcessOrderHandler creates the process-order handler.
func NewProcessOrderHandler(
	processor orderUsecase.OrderProcessor,
	submitPublisher messaging.CommandPublisher,
	events messaging.EventPublisher,
	logger *slog.Logger,
) *ProcessOrderHandler {
	return &ProcessOrderHandler{
		processor:       processor,
		submitPublisher: submitPublisher,
		events:          events,
		logger:          logger,
	}
}

func (h *ProcessOrderHandler) Kind() string { return messaging.KindProcessOrder }

// Handle runs the staging pipeline and, on success, enqueues the follow-up
// submission command.
func (h *ProcessOrderHandler) Handle(ctx context.Context, cmd messaging.Command) result.Result[string] {
	processCmd, ok := cmd.(messaging.ProcessOrder)
	if !ok {
		return result.Failure[string]("unexpected command type", result.RecoverabilityFinal)
	}

	meta := processCmd.Envelope()
	res, err := h.processor.Process(ctx, orderUsecase.ProcessRequest{
		PartnerCode:   meta.PartnerCode,
		OrderID:       meta.OrderID,
		CorrelationID: meta.CorrelationID,
		Assets:        processCmd.Assets,
		Emulation:     processCmd.Emulation,
	})
	if err != nil {
		h.logger.Error("process order command rejected",
			slog.String("order_id", meta.OrderID),
			slog.Any("error", err),
		)
		return result.Exception[string]()
	}

	if !res.Succeeded() {
		h.events.TryPublish(ctx, messaging.NewEventFrom(cmd, messaging.EventOrderProcessingFailed))
		return res
	}

	next := messaging.NewSubmitOrderFrom(processCmd, processCmd.Emulation)
	if err := h.submitPublisher.Publish(ctx, next); err != nil {
		h.logger.Error("failed to enqueue submission after staging",
			slog.String("order_id", meta.OrderID),
			slog.Any("error", err),
		)
		// The pending entry is written; redelivery restages the same key and
		// tries the handoff again.
		return result.TransientException[string]()
	}

	h.events.TryPublish(ctx, messaging.NewEventFrom(cmd, messaging.EventOrderProcessed))
	return res
}

// SubmitOrderHandler moves staged orders through downstream submission.
type SubmitOrderHandler struct {
	submitter orderUsecase.OrderSubmitter
	events    messaging.EventPublisher
	logger    *slog.Logger
}

// NewSubmitOrderHandler creates the submit-order handler.
func NewSubmitOrderHandler(
	submitter orderUsecase.OrderSubmitter,
	events messaging.EventPublisher,
	logger *slog.Logger,
) *SubmitOrderHandler {
	return &SubmitOrderHandler{submitter: submitter, events: events, logger: logger}
}

func (h *SubmitOrderHandler) Kind() string { return messaging.KindSubmitOrderForProduction }

// Handle runs the completion pipeline.
func (h *SubmitOrderHandler) Handle(ctx context.Context, cmd messaging.Command) result.Result[string] {
	submitCmd, ok := cmd.(messaging.SubmitOrderForProduction)
	if !ok {
		return result.Failure[string]("unexpected command type", result.RecoverabilityFinal)
	}

	meta := submitCmd.Envelope()
	res, err := h.submitter.Submit(ctx, orderUsecase.SubmitRequest{
		PartnerCode:   meta.PartnerCode,
		OrderID:       meta.OrderID,
		CorrelationID: meta.CorrelationID,
		Emulation:     submitCmd.Emulation,
	})
	if err != nil {
		h.logger.Error("submit order command rejected",
			slog.String("order_id", meta.OrderID),
			slog.Any("error", err),
		)
		return result.Exception[string]()
	}

	if !res.Succeeded() {
		h.events.TryPublish(ctx, messaging.NewEventFrom(cmd, messaging.EventOrderSubmissionFailed))
		return res
	}

	h.events.TryPublish(ctx, messaging.NewEventFrom(cmd, messaging.EventOrderSubmitted))
	return res
}

// NotifyHandler delivers fatal-failure escalations.
type NotifyHandler struct {
	notifier Notifier
	events   messaging.EventPublisher
	logger   *slog.Logger
}

// NewNotifyHandler creates the notification handler.
func NewNotifyHandler(notifier Notifier, events messaging.EventPublisher, logger *slog.Logger) *NotifyHandler {
	return &NotifyHandler{notifier: notifier, events: events, logger: logger}
}

func (h *NotifyHandler) Kind() string { return messaging.KindNotifyOfFatalFailure }

// Handle posts the escalation webhook.
func (h *NotifyHandler) Handle(ctx context.Context, cmd messaging.Command) result.Result[string] {
	if _, ok := cmd.(messaging.NotifyOfFatalFailure); !ok {
		return result.Failure[string]("unexpected command type", result.RecoverabilityFinal)
	}

	meta := cmd.Envelope()
	res := h.notifier.NotifyOrderFailure(ctx, meta.PartnerCode, meta.OrderID, meta.CorrelationID)

	if !res.Succeeded() {
		h.events.TryPublish(ctx, messaging.NewEventFrom(cmd, messaging.EventNotificationFailed))
		return res
	}

	h.events.TryPublish(ctx, messaging.NewEventFrom(cmd, messaging.EventNotificationSent))
	return res
}
