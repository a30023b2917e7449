// Package usecase implements the two fulfillment pipelines: the processor,
// which stages an upstream order as a production document in pending storage,
// and the submitter, which moves a staged document through downstream
// submission into completed storage.
//
// Every stage returns a tri-state result and is wrapped independently in the
// in-process retry policy; a failure at any stage short-circuits the pipeline
// and is returned as the pipeline's own result. Only invariant violations
// (missing required arguments, nil collaborators) surface as errors.
package usecase

import (
	"context"
	"log/slog"
	"strings"
	"time"

	apperrors "github.com/allisson/fulfillment/internal/errors"
	orderDomain "github.com/allisson/fulfillment/internal/order/domain"
	"github.com/allisson/fulfillment/internal/result"
	"github.com/allisson/fulfillment/internal/retry"
	skuDomain "github.com/allisson/fulfillment/internal/sku/domain"
)

// DetailSource interface defines the upstream order detail lookup.
type DetailSource interface {
	GetOrderDetails(ctx context.Context, partnerCode, orderID, correlationID string) result.Result[orderDomain.OrderDetails]
}

// LineItemRenderer interface defines per-SKU template rendering.
type LineItemRenderer interface {
	Render(ctx context.Context, rc skuDomain.RenderContext) result.Result[string]
}

// PendingOrderWriter interface defines the pending storage write used by the
// processor.
type PendingOrderWriter interface {
	SavePending(ctx context.Context, partnerCode, orderID string, doc *orderDomain.OrderDocument) error
}

// ProcessorConfig holds the partner-wide values stamped onto every document.
type ProcessorConfig struct {
	PartnerSubCode               string
	DefaultServiceLevelAgreement string
}

// ProcessRequest identifies the order to stage and carries the per-line-item
// asset URLs produced upstream.
type ProcessRequest struct {
	PartnerCode   string
	OrderID       string
	CorrelationID string
	Assets        map[string]string
	Emulation     *result.Emulation
}

// Processor stages upstream orders as pending production documents.
type Processor struct {
	details  DetailSource
	renderer LineItemRenderer
	store    PendingOrderWriter
	policy   *retry.Policy
	cfg      ProcessorConfig
	logger   *slog.Logger
}

// NewProcessor creates a Processor. All collaborators are required.
func NewProcessor(
	details DetailSource,
	renderer LineItemRenderer,
	store PendingOrderWriter,
	policy *retry.Policy,
	cfg ProcessorConfig,
	logger *slog.Logger,
) (*Processor, error) {
	if details == nil {
		return nil, apperrors.Precondition("details")
	}
	if renderer == nil {
		return nil, apperrors.Precondition("renderer")
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

	return &Processor{
		details:  details,
		renderer: renderer,
		store:    store,
		policy:   policy,
		cfg:      cfg,
		logger:   logger,
	}, nil
}

// Process runs the staging pipeline: retrieve details, assemble the document,
// persist it to pending storage. The success payload is the storage key. The
// only externally visible success effect is a new or overwritten pending
// entry for that key, so re-invocation for the same order is safe.
func (p *Processor) Process(ctx context.Context, req ProcessRequest) (result.Result[string], error) {
	if req.PartnerCode == "" {
		return result.Result[string]{}, apperrors.Precondition("partnerCode")
	}
	if req.OrderID == "" {
		return result.Result[string]{}, apperrors.Precondition("orderID")
	}

	partnerCode := strings.ToUpper(req.PartnerCode)
	orderID := strings.ToUpper(req.OrderID)
	logger := p.logger.With(
		slog.String("partner_code", partnerCode),
		slog.String("order_id", orderID),
		slog.String("correlation_id", req.CorrelationID),
	)

	detailsRes := retry.Execute(ctx, p.policy, func(ctx context.Context) result.Result[orderDomain.OrderDetails] {
		return p.retrieveDetails(ctx, partnerCode, req.OrderID, req.CorrelationID, req.Emulation)
	})
	if !detailsRes.Succeeded() {
		logger.Warn("order detail retrieval failed", slog.String("reason", detailsRes.Reason))
		return result.Erase(detailsRes), nil
	}

	docRes := retry.Execute(ctx, p.policy, func(ctx context.Context) result.Result[*orderDomain.OrderDocument] {
		return p.buildDocument(ctx, partnerCode, req, detailsRes.Payload)
	})
	if !docRes.Succeeded() {
		logger.Warn("order document assembly failed", slog.String("reason", docRes.Reason))
		return result.Erase(docRes), nil
	}

	persistRes := retry.Execute(ctx, p.policy, func(ctx context.Context) result.Result[string] {
		return p.persistPending(ctx, partnerCode, orderID, docRes.Payload)
	})
	if !persistRes.Succeeded() {
		logger.Warn("pending storage write failed", slog.String("reason", persistRes.Reason))
		return persistRes, nil
	}

	logger.Info("order staged for submission", slog.String("storage_key", persistRes.Payload))
	return persistRes, nil
}

func (p *Processor) retrieveDetails(
	ctx context.Context,
	partnerCode, orderID, correlationID string,
	emulation *result.Emulation,
) result.Result[orderDomain.OrderDetails] {
	if emulation != nil && emulation.OrderDetails != nil {
		emulated := *emulation.OrderDetails
		p.logger.Debug("order detail retrieval emulated", slog.String("outcome", string(emulated.Outcome)))
		if !emulated.Succeeded() {
			return result.Failure[orderDomain.OrderDetails](emulated.Reason, emulated.Recoverable)
		}
		return result.Success(orderDomain.OrderDetails{OrderID: orderID})
	}

	return p.details.GetOrderDetails(ctx, partnerCode, orderID, correlationID)
}

func (p *Processor) buildDocument(
	ctx context.Context,
	partnerCode string,
	req ProcessRequest,
	details orderDomain.OrderDetails,
) result.Result[*orderDomain.OrderDocument] {
	if req.Emulation != nil && req.Emulation.DocumentBuild != nil {
		emulated := *req.Emulation.DocumentBuild
		p.logger.Debug("document assembly emulated", slog.String("outcome", string(emulated.Outcome)))
		if !emulated.Succeeded() {
			return result.Failure[*orderDomain.OrderDocument](emulated.Reason, emulated.Recoverable)
		}
		return result.Success(&orderDomain.OrderDocument{
			Identity: orderDomain.OrderIdentity{
				PartnerCode:    partnerCode,
				PartnerOrderID: details.OrderID,
			},
		})
	}

	doc := details.ToDocument()
	doc.Identity.PartnerCode = partnerCode
	doc.Identity.PartnerSubCode = p.cfg.PartnerSubCode
	doc.Identity.TransactionID = req.CorrelationID
	doc.Shipping = orderDomain.OrderShipping{Instruction: orderDomain.ShipWhenComplete}
	doc.Instructions = orderDomain.OrderInstructions{Priority: orderDomain.PriorityNormal}
	if details.OrderDate != nil {
		doc.PartnerMetadata.OrderDateUTC = details.OrderDate.UTC()
	} else {
		doc.PartnerMetadata.OrderDateUTC = time.Now().UTC()
	}

	for i := range doc.LineItems {
		item := &doc.LineItems[i]

		assetURL, ok := req.Assets[item.LineItemID]
		if !ok {
			return result.Failure[*orderDomain.OrderDocument](
				"no asset provided for line item "+item.LineItemID, result.RecoverabilityFinal)
		}
		if item.ResourceID == "" {
			item.ResourceID = assetURL
		}
		if item.ServiceLevelAgreement == "" {
			item.ServiceLevelAgreement = p.cfg.DefaultServiceLevelAgreement
		}
		item.TotalQuantity = details.TotalOrderedQuantity(item.LineItemID)
		item.RecipientCount = details.RecipientCount(item.LineItemID)

		src := details.LineItems[i]
		rendered := p.renderer.Render(ctx, skuDomain.RenderContext{
			SKU:                  item.ProductCode,
			Description:          item.Description,
			AssetURL:             assetURL,
			TotalSheetCount:      src.TotalSheetCount,
			AdditionalSheetCount: src.AdditionalSheetCount,
			CountInSet:           item.CountInSet,
			TotalQuantity:        item.TotalQuantity,
			RecipientCount:       item.RecipientCount,
		})
		if !rendered.Succeeded() {
			return result.Failure[*orderDomain.OrderDocument](rendered.Reason, rendered.Recoverable)
		}
		item.Item = rendered.Payload
	}

	return result.Success(&doc)
}

func (p *Processor) persistPending(
	ctx context.Context,
	partnerCode, orderID string,
	doc *orderDomain.OrderDocument,
) result.Result[string] {
	if err := p.store.SavePending(ctx, partnerCode, orderID, doc); err != nil {
		p.logger.Error("failed to write pending order",
			slog.String("partner_code", partnerCode),
			slog.String("order_id", orderID),
			slog.Any("error", err),
		)
		return result.TransientException[string]()
	}
	return result.Success(partnerCode + `\` + orderID)
}
