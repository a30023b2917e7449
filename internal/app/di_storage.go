package app

import (
	"context"
	"fmt"

	"gocloud.dev/blob"

	orderRepository "github.com/allisson/fulfillment/internal/order/repository"
	skuRepository "github.com/allisson/fulfillment/internal/sku/repository"
	skuUsecase "github.com/allisson/fulfillment/internal/sku/usecase"
)

// initBuckets opens the pending and completed order buckets from their
// configured gocloud URLs.
func (c *Container) initBuckets(ctx context.Context) error {
	c.bucketsInit.Do(func() {
		pending, err := blob.OpenBucket(ctx, c.config.PendingBucketURL)
		if err != nil {
			c.initErrors["buckets"] = fmt.Errorf("failed to open pending bucket: %w", err)
			return
		}

		completed, err := blob.OpenBucket(ctx, c.config.CompletedBucketURL)
		if err != nil {
			_ = pending.Close()
			c.initErrors["buckets"] = fmt.Errorf("failed to open completed bucket: %w", err)
			return
		}

		c.pendingBucket = pending
		c.completedBucket = completed
	})
	if err, exists := c.initErrors["buckets"]; exists {
		return err
	}
	return nil
}

// OrderStore returns the order document store over the pending and completed
// buckets.
func (c *Container) OrderStore(ctx context.Context) (*orderRepository.BlobOrderRepository, error) {
	c.orderStoreInit.Do(func() {
		if err := c.initBuckets(ctx); err != nil {
			c.initErrors["orderStore"] = err
			return
		}
		c.orderStore = orderRepository.NewBlobOrderRepository(c.pendingBucket, c.completedBucket)
	})
	if err, exists := c.initErrors["orderStore"]; exists {
		return nil, err
	}
	return c.orderStore, nil
}

// TemplateRepository returns the SKU template repository for the configured
// database driver.
func (c *Container) TemplateRepository() (skuUsecase.TemplateRepository, error) {
	c.templateRepoInit.Do(func() {
		db, err := c.DB()
		if err != nil {
			c.initErrors["templateRepo"] = fmt.Errorf("failed to get database for template repository: %w", err)
			return
		}

		switch c.config.DBDriver {
		case "mysql":
			c.templateRepo = skuRepository.NewMySQLTemplateRepository(db)
		case "postgres":
			c.templateRepo = skuRepository.NewPostgreSQLTemplateRepository(db)
		default:
			c.initErrors["templateRepo"] = fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
		}
	})
	if err, exists := c.initErrors["templateRepo"]; exists {
		return nil, err
	}
	return c.templateRepo, nil
}

// Renderer returns the SKU template renderer.
func (c *Container) Renderer() (*skuUsecase.Renderer, error) {
	c.rendererInit.Do(func() {
		templateRepo, err := c.TemplateRepository()
		if err != nil {
			c.initErrors["renderer"] = err
			return
		}
		c.renderer = skuUsecase.NewRenderer(templateRepo, c.Logger())
	})
	if err, exists := c.initErrors["renderer"]; exists {
		return nil, err
	}
	return c.renderer, nil
}
