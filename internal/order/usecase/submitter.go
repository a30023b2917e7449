package usecase

import (
	"context"
	"log/slog"
	"strings"

	apperrors "github.com/allisson/fulfillment/internal/errors"
	orderDomain "github.com/allisson/fulfillment/internal/order/domain"
	"github.com/allisson/fulfillment/internal/result"
	"github.com/allisson/fulfillment/internal/retry"
)

// ProductionService interface defines the downstream submission call.
type ProductionService interface {
	SubmitOrder(ctx context.Context, doc *orderDomain.OrderDocument, correlationID string) result.Result[string]
}

// OrderStore interface defines the storage operations used by the submitter.
type OrderStore interface {
	GetPending(ctx context.Context, partnerCode, orderID string) (*orderDomain.OrderDocument, error)
	SaveCompleted(ctx context.Context, partnerCode, orderID string, doc *orderDomain.OrderDocument) error
	DeletePending(ctx context.Context, partnerCode, orderID string) error
	CompletedExists(ctx context.Context, partnerCode, orderID string) (bool, error)
}

// SubmitRequest identifies the staged order to submit.
type SubmitRequest struct {
	PartnerCode   string
	OrderID       string
	CorrelationID string
	Emulation     *result.Emulation
}

// Submitter moves staged orders through downstream submission into completed
// storage.
type Submitter struct {
	production ProductionService
	store      OrderStore
	policy     *retry.Policy
	logger     *slog.Logger
}

// NewSubmitter creates a Submitter. All collaborators are required.
func NewSubmitter(
	production ProductionService,
	store OrderStore,
	policy *retry.Policy,
	logger *slog.Logger,
) (*Submitter, error) {
	if production == nil {
		return nil, apperrors.Precondition("production")
	}
	if store == nil {
		return nil, apperrors.Precondition("store")
	}
	if policy == nil {
		return nil, apperrors.Precondition("policy")
	}
	if logger == nil {
		return nil, apperrors.Precondition("logger")
	}

	return &Submitter{
		production: production,
		store:      store,
		policy:     policy,
		logger:     logger,
	}, nil
}

// Submit runs the completion pipeline: retrieve the pending document, submit
// it downstream, record it as completed, best-effort delete the pending copy.
// The success payload is the production-assigned reference.
//
// The completed-storage write is the commit point. Pending cleanup failures
// are logged and do not fail the pipeline; a leftover pending entry is
// harmless clutter, a missing completed entry would be data loss.
func (s *Submitter) Submit(ctx context.Context, req SubmitRequest) (result.Result[string], error) {
	if req.PartnerCode == "" {
		return result.Result[string]{}, apperrors.Precondition("partnerCode")
	}
	if req.OrderID == "" {
		return result.Result[string]{}, apperrors.Precondition("orderID")
	}

	partnerCode := strings.ToUpper(req.PartnerCode)
	orderID := strings.ToUpper(req.OrderID)
	logger := s.logger.With(
		slog.String("partner_code", partnerCode),
		slog.String("order_id", orderID),
		slog.String("correlation_id", req.CorrelationID),
	)

	pendingRes := retry.Execute(ctx, s.policy, func(ctx context.Context) result.Result[*orderDomain.OrderDocument] {
		return s.retrievePending(ctx, partnerCode, orderID)
	})
	if !pendingRes.Succeeded() {
		if pendingRes.Reason == result.ReasonNotFoundInPendingStore {
			// A redelivery after successful cleanup looks exactly like a
			// never-staged order. The completed entry disambiguates.
			completed, err := s.store.CompletedExists(ctx, partnerCode, orderID)
			if err != nil {
				logger.Error("failed to check completed storage", slog.Any("error", err))
				return result.Erase(pendingRes), nil
			}
			if completed {
				logger.Info("order already completed, treating redelivery as success")
				return result.Success("order already completed"), nil
			}
		}
		logger.Warn("pending order retrieval failed", slog.String("reason", pendingRes.Reason))
		return result.Erase(pendingRes), nil
	}

	submitRes := retry.Execute(ctx, s.policy, func(ctx context.Context) result.Result[string] {
		return s.submitDownstream(ctx, pendingRes.Payload, req.CorrelationID, req.Emulation)
	})
	if !submitRes.Succeeded() {
		logger.Warn("downstream submission failed", slog.String("reason", submitRes.Reason))
		return submitRes, nil
	}

	completedRes := retry.Execute(ctx, s.policy, func(ctx context.Context) result.Result[string] {
		return s.persistCompleted(ctx, partnerCode, orderID, pendingRes.Payload)
	})
	if !completedRes.Succeeded() {
		logger.Error("completed storage write failed after submission",
			slog.String("reason", completedRes.Reason))
		return completedRes, nil
	}

	if err := s.store.DeletePending(ctx, partnerCode, orderID); err != nil {
		logger.Warn("pending cleanup failed after completion", slog.Any("error", err))
	}

	logger.Info("order submitted for production", slog.String("production_ref", submitRes.Payload))
	return submitRes, nil
}

func (s *Submitter) retrievePending(
	ctx context.Context,
	partnerCode, orderID string,
) result.Result[*orderDomain.OrderDocument] {
	doc, err := s.store.GetPending(ctx, partnerCode, orderID)
	if err != nil {
		if apperrors.Is(err, apperrors.ErrNotFound) {
			return result.Failure[*orderDomain.OrderDocument](
				result.ReasonNotFoundInPendingStore, result.RecoverabilityFinal)
		}
		s.logger.Error("failed to read pending order",
			slog.String("partner_code", partnerCode),
			slog.String("order_id", orderID),
			slog.Any("error", err),
		)
		return result.TransientException[*orderDomain.OrderDocument]()
	}
	return result.Success(doc)
}

func (s *Submitter) submitDownstream(
	ctx context.Context,
	doc *orderDomain.OrderDocument,
	correlationID string,
	emulation *result.Emulation,
) result.Result[string] {
	if emulation != nil && emulation.OrderSubmission != nil {
		emulated := *emulation.OrderSubmission
		s.logger.Debug("downstream submission emulated", slog.String("outcome", string(emulated.Outcome)))
		return emulated
	}

	return s.production.SubmitOrder(ctx, doc, correlationID)
}

func (s *Submitter) persistCompleted(
	ctx context.Context,
	partnerCode, orderID string,
	doc *orderDomain.OrderDocument,
) result.Result[string] {
	if err := s.store.SaveCompleted(ctx, partnerCode, orderID, doc); err != nil {
		s.logger.Error("failed to write completed order",
			slog.String("partner_code", partnerCode),
			slog.String("order_id", orderID),
			slog.Any("error", err),
		)
		return result.TransientException[string]()
	}
	return result.Success(partnerCode + `\` + orderID)
}
