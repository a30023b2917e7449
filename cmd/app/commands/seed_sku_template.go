package commands

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/template"

	"github.com/allisson/fulfillment/internal/app"
	"github.com/allisson/fulfillment/internal/config"
	skuDomain "github.com/allisson/fulfillment/internal/sku/domain"
)

// RunSeedSKUTemplate stores the template body read from a file under the
// given SKU, creating or replacing it. The body must parse as a Go
// text/template; broken templates are rejected before touching storage.
func RunSeedSKUTemplate(ctx context.Context, sku, bodyPath string, io IOTuple) error {
	sku = strings.ToUpper(strings.TrimSpace(sku))
	if sku == "" {
		return fmt.Errorf("sku is required")
	}

	body, err := os.ReadFile(bodyPath)
	if err != nil {
		return fmt.Errorf("failed to read template body: %w", err)
	}

	if _, err := template.New(sku).Parse(string(body)); err != nil {
		return fmt.Errorf("template body does not parse: %w", err)
	}

	cfg := config.Load()
	container := app.NewContainer(cfg)
	logger := container.Logger()
	defer closeContainer(container, logger)

	templateRepo, err := container.TemplateRepository()
	if err != nil {
		return fmt.Errorf("failed to initialize template repository: %w", err)
	}

	tmpl := &skuDomain.Template{
		SKU:  sku,
		Body: string(body),
	}
	if err := tmpl.Validate(); err != nil {
		return fmt.Errorf("invalid template: %w", err)
	}
	if err := templateRepo.Upsert(ctx, tmpl); err != nil {
		return fmt.Errorf("failed to store template: %w", err)
	}

	fmt.Fprintf(io.Writer, "template stored for sku %s (%d bytes)\n", sku, len(body))
	return nil
}
