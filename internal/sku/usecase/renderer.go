// Package usecase implements template rendering for order line items.
package usecase

import (
	"context"
	"log/slog"
	"strings"
	"text/template"

	apperrors "github.com/allisson/fulfillment/internal/errors"
	"github.com/allisson/fulfillment/internal/result"
	skuDomain "github.com/allisson/fulfillment/internal/sku/domain"
)

// TemplateRepository interface defines template repository operations.
type TemplateRepository interface {
	GetBySKU(ctx context.Context, sku string) (*skuDomain.Template, error)
	List(ctx context.Context, offset, limit int) ([]*skuDomain.Template, error)
	Upsert(ctx context.Context, template *skuDomain.Template) error
	Delete(ctx context.Context, sku string) error
}

// Renderer renders a SKU's stored template into the line item content
// submitted to production.
type Renderer struct {
	templateRepo TemplateRepository
	logger       *slog.Logger
}

// NewRenderer creates a new Renderer instance.
func NewRenderer(templateRepo TemplateRepository, logger *slog.Logger) *Renderer {
	return &Renderer{templateRepo: templateRepo, logger: logger}
}

// Render produces the line item content for a product code. An unknown SKU is
// a final failure, since redelivering the message cannot make reference data
// appear. Repository errors are retriable.
func (r *Renderer) Render(ctx context.Context, rc skuDomain.RenderContext) result.Result[string] {
	tmpl, err := r.templateRepo.GetBySKU(ctx, rc.SKU)
	if err != nil {
		if apperrors.Is(err, apperrors.ErrNotFound) {
			r.logger.Warn("no template for product code", slog.String("sku", rc.SKU))
			return result.Failure[string]("no template exists for product code "+rc.SKU, result.RecoverabilityFinal)
		}
		r.logger.Error("failed to load template",
			slog.String("sku", rc.SKU),
			slog.Any("error", err),
		)
		return result.TransientException[string]()
	}

	parsed, err := template.New(tmpl.SKU).Parse(tmpl.Body)
	if err != nil {
		r.logger.Error("template body does not parse",
			slog.String("sku", rc.SKU),
			slog.Any("error", err),
		)
		return result.Failure[string]("template for product code "+rc.SKU+" is malformed", result.RecoverabilityFinal)
	}

	var out strings.Builder
	if err := parsed.Execute(&out, rc); err != nil {
		r.logger.Error("template execution failed",
			slog.String("sku", rc.SKU),
			slog.Any("error", err),
		)
		return result.Failure[string]("template for product code "+rc.SKU+" could not be rendered", result.RecoverabilityFinal)
	}

	return result.Success(out.String())
}
