// Package domain defines the product template model. Each orderable SKU has
// one template whose body is rendered into the line item content sent to
// production.
package domain

import (
	"time"

	jellyvalidation "github.com/jellydator/validation"

	"github.com/allisson/fulfillment/internal/validation"
)

// Template holds the renderable body for one SKU.
type Template struct {
	// SKU is the product code the template belongs to.
	SKU string
	// Body is the template text, rendered with per-line-item details.
	Body string
	// CreatedAt is the UTC timestamp when the template was first stored.
	CreatedAt time.Time
	// UpdatedAt is the UTC timestamp of the last body change.
	UpdatedAt time.Time
}

// Validate checks the template is storable: a canonical SKU and a non-blank
// body.
func (t *Template) Validate() error {
	return validation.WrapValidationError(jellyvalidation.ValidateStruct(t,
		jellyvalidation.Field(&t.SKU,
			jellyvalidation.Required.Error("sku is required"),
			validation.UppercaseCode,
		),
		jellyvalidation.Field(&t.Body,
			jellyvalidation.Required.Error("template body is required"),
			validation.NotBlank,
		),
	))
}

// RenderContext carries the per-line-item values a template body can
// reference.
type RenderContext struct {
	SKU                  string
	Description          string
	AssetURL             string
	TotalSheetCount      int
	AdditionalSheetCount int
	CountInSet           int
	TotalQuantity        int
	RecipientCount       int
}
