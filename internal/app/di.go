// Package app provides the dependency injection container assembling the
// fulfillment service: storage, queues, pipelines, workers and servers.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"gocloud.dev/blob"
	"gocloud.dev/pubsub"

	"github.com/allisson/fulfillment/internal/config"
	"github.com/allisson/fulfillment/internal/database"
	"github.com/allisson/fulfillment/internal/ecommerce"
	fulfillmentHTTP "github.com/allisson/fulfillment/internal/http"
	"github.com/allisson/fulfillment/internal/messaging"
	"github.com/allisson/fulfillment/internal/metrics"
	"github.com/allisson/fulfillment/internal/notification"
	orderRepository "github.com/allisson/fulfillment/internal/order/repository"
	orderUsecase "github.com/allisson/fulfillment/internal/order/usecase"
	"github.com/allisson/fulfillment/internal/production"
	skuUsecase "github.com/allisson/fulfillment/internal/sku/usecase"
	"github.com/allisson/fulfillment/internal/worker"
)

// Container holds all application dependencies and provides methods to access
// them. It follows the lazy initialization pattern - components are created on
// first access.
type Container struct {
	// Configuration
	config *config.Config

	// Infrastructure
	logger          *slog.Logger
	db              *sql.DB
	metricsProvider *metrics.Provider
	pipelineMetrics metrics.PipelineMetrics

	// Storage
	pendingBucket   *blob.Bucket
	completedBucket *blob.Bucket
	orderStore      *orderRepository.BlobOrderRepository
	templateRepo    skuUsecase.TemplateRepository

	// Messaging
	processOrderTopic *pubsub.Topic
	submitOrderTopic  *pubsub.Topic
	notifyTopic       *pubsub.Topic
	eventsTopic       *pubsub.Topic
	processOrderSub   *pubsub.Subscription
	submitOrderSub    *pubsub.Subscription
	notifySub         *pubsub.Subscription
	deadLetterSub     *pubsub.Subscription
	processPublisher  messaging.CommandPublisher
	submitPublisher   messaging.CommandPublisher
	notifyPublisher   messaging.CommandPublisher
	eventPublisher    messaging.EventPublisher

	// External services and pipelines
	ecommerceClient  *ecommerce.Client
	productionClient *production.Client
	notifier         *notification.WebhookNotifier
	renderer         *skuUsecase.Renderer
	processor        orderUsecase.OrderProcessor
	submitter        orderUsecase.OrderSubmitter

	// Servers and workers
	httpServer    *fulfillmentHTTP.Server
	metricsServer *fulfillmentHTTP.MetricsServer
	workerRunner  *worker.Runner

	// Initialization flags and mutex for thread-safety
	mu                  sync.Mutex
	loggerInit          sync.Once
	dbInit              sync.Once
	metricsProviderInit sync.Once
	pipelineMetricsInit sync.Once
	bucketsInit         sync.Once
	orderStoreInit      sync.Once
	templateRepoInit    sync.Once
	messagingInit       sync.Once
	ecommerceInit       sync.Once
	productionInit      sync.Once
	notifierInit        sync.Once
	rendererInit        sync.Once
	processorInit       sync.Once
	submitterInit       sync.Once
	httpServerInit      sync.Once
	metricsServerInit   sync.Once
	workerRunnerInit    sync.Once
	initErrors          map[string]error
}

// NewContainer creates a new dependency injection container with the provided
// configuration.
func NewContainer(cfg *config.Config) *Container {
	return &Container{
		config:     cfg,
		initErrors: make(map[string]error),
	}
}

// Config returns the application configuration.
func (c *Container) Config() *config.Config {
	return c.config
}

// Logger returns the configured logger instance.
// It creates a new logger on first access based on the log level in configuration.
func (c *Container) Logger() *slog.Logger {
	c.loggerInit.Do(func() {
		c.logger = c.initLogger()
	})
	return c.logger
}

// DB returns the database connection.
// It creates and configures the database connection on first access.
func (c *Container) DB() (*sql.DB, error) {
	c.dbInit.Do(func() {
		db, err := database.Connect(database.Config{
			Driver:             c.config.DBDriver,
			ConnectionString:   c.config.DBConnectionString,
			MaxOpenConnections: c.config.DBMaxOpenConnections,
			MaxIdleConnections: c.config.DBMaxIdleConnections,
			ConnMaxLifetime:    c.config.DBConnMaxLifetime,
		})
		if err != nil {
			c.initErrors["db"] = fmt.Errorf("failed to connect to database: %w", err)
			return
		}
		c.db = db
	})
	if err, exists := c.initErrors["db"]; exists {
		return nil, err
	}
	return c.db, nil
}

// MetricsProvider returns the OTel/Prometheus metrics provider, or nil when
// metrics are disabled.
func (c *Container) MetricsProvider() (*metrics.Provider, error) {
	c.metricsProviderInit.Do(func() {
		if !c.config.MetricsEnabled {
			return
		}
		provider, err := metrics.NewProvider(c.config.MetricsNamespace)
		if err != nil {
			c.initErrors["metricsProvider"] = fmt.Errorf("failed to create metrics provider: %w", err)
			return
		}
		c.metricsProvider = provider
	})
	if err, exists := c.initErrors["metricsProvider"]; exists {
		return nil, err
	}
	return c.metricsProvider, nil
}

// PipelineMetrics returns the pipeline metrics recorder; a no-op recorder is
// used when metrics are disabled.
func (c *Container) PipelineMetrics() (metrics.PipelineMetrics, error) {
	c.pipelineMetricsInit.Do(func() {
		provider, err := c.MetricsProvider()
		if err != nil {
			c.initErrors["pipelineMetrics"] = err
			return
		}
		if provider == nil {
			c.pipelineMetrics = metrics.NewNoOpPipelineMetrics()
			return
		}
		pm, err := metrics.NewPipelineMetrics(provider.MeterProvider(), c.config.MetricsNamespace)
		if err != nil {
			c.initErrors["pipelineMetrics"] = fmt.Errorf("failed to create pipeline metrics: %w", err)
			return
		}
		c.pipelineMetrics = pm
	})
	if err, exists := c.initErrors["pipelineMetrics"]; exists {
		return nil, err
	}
	return c.pipelineMetrics, nil
}

// HTTPServer returns the API server with its router fully configured.
func (c *Container) HTTPServer() (*fulfillmentHTTP.Server, error) {
	c.httpServerInit.Do(func() {
		server, err := c.initHTTPServer()
		if err != nil {
			c.initErrors["httpServer"] = err
			return
		}
		c.httpServer = server
	})
	if err, exists := c.initErrors["httpServer"]; exists {
		return nil, err
	}
	return c.httpServer, nil
}

// MetricsServer returns the Prometheus metrics server, or nil when metrics
// are disabled.
func (c *Container) MetricsServer() (*fulfillmentHTTP.MetricsServer, error) {
	c.metricsServerInit.Do(func() {
		provider, err := c.MetricsProvider()
		if err != nil {
			c.initErrors["metricsServer"] = err
			return
		}
		if provider == nil {
			return
		}
		c.metricsServer = fulfillmentHTTP.NewMetricsServer(
			c.config.ServerHost,
			c.config.MetricsPort,
			c.Logger(),
			provider,
		)
	})
	if err, exists := c.initErrors["metricsServer"]; exists {
		return nil, err
	}
	return c.metricsServer, nil
}

// Shutdown performs cleanup of all initialized resources.
// It should be called when the application is shutting down.
func (c *Container) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var shutdownErrors []error

	if c.httpServer != nil {
		if err := c.httpServer.Shutdown(ctx); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("http server shutdown: %w", err))
		}
	}

	if c.metricsServer != nil {
		if err := c.metricsServer.Shutdown(ctx); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("metrics server shutdown: %w", err))
		}
	}

	for name, topic := range map[string]*pubsub.Topic{
		"process order topic": c.processOrderTopic,
		"submit order topic":  c.submitOrderTopic,
		"notify topic":        c.notifyTopic,
		"events topic":        c.eventsTopic,
	} {
		if topic == nil {
			continue
		}
		if err := topic.Shutdown(ctx); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("%s shutdown: %w", name, err))
		}
	}

	for name, sub := range map[string]*pubsub.Subscription{
		"process order subscription": c.processOrderSub,
		"submit order subscription":  c.submitOrderSub,
		"notify subscription":        c.notifySub,
		"dead letter subscription":   c.deadLetterSub,
	} {
		if sub == nil {
			continue
		}
		if err := sub.Shutdown(ctx); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("%s shutdown: %w", name, err))
		}
	}

	for name, bucket := range map[string]*blob.Bucket{
		"pending bucket":   c.pendingBucket,
		"completed bucket": c.completedBucket,
	} {
		if bucket == nil {
			continue
		}
		if err := bucket.Close(); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("%s close: %w", name, err))
		}
	}

	if c.db != nil {
		if err := c.db.Close(); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("database close: %w", err))
		}
	}

	if c.metricsProvider != nil {
		if err := c.metricsProvider.Shutdown(ctx); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("metrics provider shutdown: %w", err))
		}
	}

	if len(shutdownErrors) > 0 {
		return fmt.Errorf("shutdown errors: %v", shutdownErrors)
	}

	return nil
}

// initLogger creates and configures a structured logger based on the log level.
func (c *Container) initLogger() *slog.Logger {
	var logLevel slog.Level
	switch c.config.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})

	return slog.New(handler)
}
