package app

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/allisson/fulfillment/internal/ecommerce"
	fulfillmentHTTP "github.com/allisson/fulfillment/internal/http"
	"github.com/allisson/fulfillment/internal/notification"
	orderHTTP "github.com/allisson/fulfillment/internal/order/http"
	orderUsecase "github.com/allisson/fulfillment/internal/order/usecase"
	"github.com/allisson/fulfillment/internal/production"
	"github.com/allisson/fulfillment/internal/retry"
	skuHTTP "github.com/allisson/fulfillment/internal/sku/http"
	"github.com/allisson/fulfillment/internal/worker"
)

// EcommerceClient returns the upstream order-details client.
func (c *Container) EcommerceClient() *ecommerce.Client {
	c.ecommerceInit.Do(func() {
		c.ecommerceClient = ecommerce.NewClient(
			c.config.EcommerceBaseURL,
			c.config.EcommerceTimeout,
			c.Logger(),
		)
	})
	return c.ecommerceClient
}

// ProductionClient returns the downstream order-production client.
func (c *Container) ProductionClient() *production.Client {
	c.productionInit.Do(func() {
		c.productionClient = production.NewClient(
			c.config.ProductionBaseURL,
			c.config.ProductionTimeout,
			c.Logger(),
		)
	})
	return c.productionClient
}

// Notifier returns the escalation webhook notifier.
func (c *Container) Notifier() (*notification.WebhookNotifier, error) {
	c.notifierInit.Do(func() {
		notifier, err := notification.NewWebhookNotifier(
			c.config.NotifierEnabled,
			c.config.NotifierWebhookURL,
			[]byte(c.config.NotifierSecret),
			c.config.NotifierTimeout,
			c.Logger(),
		)
		if err != nil {
			c.initErrors["notifier"] = fmt.Errorf("failed to create notifier: %w", err)
			return
		}
		c.notifier = notifier
	})
	if err, exists := c.initErrors["notifier"]; exists {
		return nil, err
	}
	return c.notifier, nil
}

// newOperationRetryPolicy builds the in-process retry policy applied per
// external call boundary. Each pipeline gets its own policy and random
// source; pipelines run on separate consumer goroutines.
func (c *Container) newOperationRetryPolicy() *retry.Policy {
	thresholds := retry.Thresholds{
		MaxAttempts:            c.config.OperationRetryMaxAttempts,
		ExponentialBaseSeconds: c.config.OperationRetryExponentialSeconds,
		JitterSeconds:          c.config.OperationRetryJitterSeconds,
	}
	return retry.NewPolicy(thresholds, rand.New(rand.NewSource(time.Now().UnixNano())))
}

// Processor returns the staging pipeline, wrapped with metrics.
func (c *Container) Processor(ctx context.Context) (orderUsecase.OrderProcessor, error) {
	c.processorInit.Do(func() {
		renderer, err := c.Renderer()
		if err != nil {
			c.initErrors["processor"] = err
			return
		}

		store, err := c.OrderStore(ctx)
		if err != nil {
			c.initErrors["processor"] = err
			return
		}

		pipelineMetrics, err := c.PipelineMetrics()
		if err != nil {
			c.initErrors["processor"] = err
			return
		}

		processor, err := orderUsecase.NewProcessor(
			c.EcommerceClient(),
			renderer,
			store,
			c.newOperationRetryPolicy(),
			orderUsecase.ProcessorConfig{
				PartnerSubCode:               c.config.PartnerSubCode,
				DefaultServiceLevelAgreement: c.config.ServiceLevelAgreementCode,
			},
			c.Logger(),
		)
		if err != nil {
			c.initErrors["processor"] = fmt.Errorf("failed to create processor: %w", err)
			return
		}

		c.processor = orderUsecase.NewProcessorWithMetrics(processor, pipelineMetrics)
	})
	if err, exists := c.initErrors["processor"]; exists {
		return nil, err
	}
	return c.processor, nil
}

// Submitter returns the completion pipeline, wrapped with metrics.
func (c *Container) Submitter(ctx context.Context) (orderUsecase.OrderSubmitter, error) {
	c.submitterInit.Do(func() {
		store, err := c.OrderStore(ctx)
		if err != nil {
			c.initErrors["submitter"] = err
			return
		}

		pipelineMetrics, err := c.PipelineMetrics()
		if err != nil {
			c.initErrors["submitter"] = err
			return
		}

		submitter, err := orderUsecase.NewSubmitter(
			c.ProductionClient(),
			store,
			c.newOperationRetryPolicy(),
			c.Logger(),
		)
		if err != nil {
			c.initErrors["submitter"] = fmt.Errorf("failed to create submitter: %w", err)
			return
		}

		c.submitter = orderUsecase.NewSubmitterWithMetrics(submitter, pipelineMetrics)
	})
	if err, exists := c.initErrors["submitter"]; exists {
		return nil, err
	}
	return c.submitter, nil
}

// WorkerRunner returns the runner driving every queue consumer: one per
// command queue plus the dead-letter drainer when a subscription is
// configured.
func (c *Container) WorkerRunner(ctx context.Context) (*worker.Runner, error) {
	c.workerRunnerInit.Do(func() {
		runner, err := c.initWorkerRunner(ctx)
		if err != nil {
			c.initErrors["workerRunner"] = err
			return
		}
		c.workerRunner = runner
	})
	if err, exists := c.initErrors["workerRunner"]; exists {
		return nil, err
	}
	return c.workerRunner, nil
}

func (c *Container) initWorkerRunner(ctx context.Context) (*worker.Runner, error) {
	logger := c.Logger()

	if err := c.initMessaging(ctx); err != nil {
		return nil, err
	}

	processor, err := c.Processor(ctx)
	if err != nil {
		return nil, err
	}

	submitter, err := c.Submitter(ctx)
	if err != nil {
		return nil, err
	}

	notifier, err := c.Notifier()
	if err != nil {
		return nil, err
	}

	pipelineMetrics, err := c.PipelineMetrics()
	if err != nil {
		return nil, err
	}

	processScheduler, err := c.newCommandScheduler(c.processPublisher)
	if err != nil {
		return nil, fmt.Errorf("failed to create process order scheduler: %w", err)
	}
	submitScheduler, err := c.newCommandScheduler(c.submitPublisher)
	if err != nil {
		return nil, fmt.Errorf("failed to create submit order scheduler: %w", err)
	}
	notifyScheduler, err := c.newCommandScheduler(c.notifyPublisher)
	if err != nil {
		return nil, fmt.Errorf("failed to create notify scheduler: %w", err)
	}

	processConsumer := worker.NewConsumer(
		c.processOrderSub,
		worker.NewProcessOrderHandler(processor, c.submitPublisher, c.eventPublisher, logger),
		processScheduler,
		c.notifyPublisher,
		pipelineMetrics,
		logger,
	)

	submitConsumer := worker.NewConsumer(
		c.submitOrderSub,
		worker.NewSubmitOrderHandler(submitter, c.eventPublisher, logger),
		submitScheduler,
		c.notifyPublisher,
		pipelineMetrics,
		logger,
	)

	// The notify queue has no escalation target of its own; exhaustion there
	// dead-letters without publishing another command.
	notifyConsumer := worker.NewConsumer(
		c.notifySub,
		worker.NewNotifyHandler(notifier, c.eventPublisher, logger),
		notifyScheduler,
		nil,
		pipelineMetrics,
		logger,
	)

	var deadLetterConsumer *worker.DeadLetterConsumer
	if c.deadLetterSub != nil {
		deadLetterConsumer = worker.NewDeadLetterConsumer(c.deadLetterSub, notifier, pipelineMetrics, logger)
	}

	if deadLetterConsumer != nil {
		return worker.NewRunner(processConsumer, submitConsumer, notifyConsumer, deadLetterConsumer), nil
	}
	return worker.NewRunner(processConsumer, submitConsumer, notifyConsumer), nil
}

// initHTTPServer creates the API server with its router and handlers.
func (c *Container) initHTTPServer() (*fulfillmentHTTP.Server, error) {
	logger := c.Logger()
	ctx := context.Background()

	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for http server: %w", err)
	}

	processPublisher, err := c.ProcessOrderPublisher(ctx)
	if err != nil {
		return nil, err
	}

	eventPublisher, err := c.EventPublisher(ctx)
	if err != nil {
		return nil, err
	}

	templateRepo, err := c.TemplateRepository()
	if err != nil {
		return nil, err
	}

	provider, err := c.MetricsProvider()
	if err != nil {
		return nil, err
	}

	server := fulfillmentHTTP.NewServer(db, c.config.ServerHost, c.config.ServerPort, logger)

	routerConfig := fulfillmentHTTP.RouterConfig{
		GinMode:          c.config.GetGinMode(),
		APIKeyHash:       c.config.APIKeyHash,
		RateLimitEnabled: c.config.RateLimitEnabled,
		RateLimitRPS:     c.config.RateLimitRequestsPerSec,
		RateLimitBurst:   c.config.RateLimitBurst,
		CORSEnabled:      c.config.CORSEnabled,
		CORSAllowOrigins: c.config.CORSAllowOrigins,
		MetricsEnabled:   c.config.MetricsEnabled,
		MetricsNamespace: c.config.MetricsNamespace,
		OrderHandler:     orderHTTP.NewOrderHandler(processPublisher, eventPublisher, logger),
		TemplateHandler:  skuHTTP.NewTemplateHandler(templateRepo, logger),
	}
	if provider != nil {
		routerConfig.MeterProvider = provider.MeterProvider()
	}

	if err := server.SetupRouter(routerConfig); err != nil {
		return nil, fmt.Errorf("failed to setup router: %w", err)
	}

	return server, nil
}
