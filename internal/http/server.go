// Package http provides the API server, its router and middleware, and the
// separate Prometheus metrics server.
package http

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	otelmetric "go.opentelemetry.io/otel/metric"

	"github.com/allisson/fulfillment/internal/metrics"
	orderHTTP "github.com/allisson/fulfillment/internal/order/http"
	skuHTTP "github.com/allisson/fulfillment/internal/sku/http"
)

// Server represents the API HTTP server.
type Server struct {
	server *http.Server
	router *gin.Engine
	db     *sql.DB
	logger *slog.Logger
}

// NewServer creates a new API server. The database handle is only used by the
// readiness probe; routes are registered via SetupRouter.
func NewServer(
	db *sql.DB,
	host string,
	port int,
	logger *slog.Logger,
) *Server {
	return &Server{
		db:     db,
		logger: logger,
		server: &http.Server{
			Addr:         fmt.Sprintf("%s:%d", host, port),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
	}
}

// RouterConfig holds everything SetupRouter needs to build the API router.
type RouterConfig struct {
	GinMode          string
	APIKeyHash       string
	RateLimitEnabled bool
	RateLimitRPS     float64
	RateLimitBurst   int
	CORSEnabled      bool
	CORSAllowOrigins string
	MetricsEnabled   bool
	MetricsNamespace string
	MeterProvider    otelmetric.MeterProvider

	OrderHandler    *orderHTTP.OrderHandler
	TemplateHandler *skuHTTP.TemplateHandler
}

// SetupRouter builds the Gin router: probes stay public, every /v1 route sits
// behind API key authentication and rate limiting.
func (s *Server) SetupRouter(cfg RouterConfig) error {
	if cfg.GinMode != "" {
		gin.SetMode(cfg.GinMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestid.New(requestid.WithGenerator(func() string {
		return uuid.Must(uuid.NewV7()).String()
	})))
	router.Use(CustomLoggerMiddleware(s.logger))

	if corsMiddleware := createCORSMiddleware(cfg.CORSEnabled, cfg.CORSAllowOrigins, s.logger); corsMiddleware != nil {
		router.Use(corsMiddleware)
	}

	if cfg.MetricsEnabled && cfg.MeterProvider != nil {
		router.Use(metrics.HTTPMetricsMiddleware(cfg.MeterProvider, cfg.MetricsNamespace))
	}

	router.GET("/health", s.healthHandler)
	router.GET("/ready", s.readinessHandler)

	authMiddleware, err := APIKeyAuthMiddleware(cfg.APIKeyHash, s.logger)
	if err != nil {
		return fmt.Errorf("failed to create auth middleware: %w", err)
	}

	v1 := router.Group("/v1")
	v1.Use(authMiddleware)
	if cfg.RateLimitEnabled {
		v1.Use(RateLimitMiddleware(cfg.RateLimitRPS, cfg.RateLimitBurst, s.logger))
	}

	if cfg.OrderHandler != nil {
		v1.POST("/partners/:partner_code/orders/:order_id", cfg.OrderHandler.EnqueueHandler)
	}

	if cfg.TemplateHandler != nil {
		v1.GET("/sku-templates", cfg.TemplateHandler.ListHandler)
		v1.PUT("/sku-templates/:sku", cfg.TemplateHandler.UpsertHandler)
		v1.GET("/sku-templates/:sku", cfg.TemplateHandler.GetHandler)
		v1.DELETE("/sku-templates/:sku", cfg.TemplateHandler.DeleteHandler)
	}

	s.router = router
	return nil
}

// healthHandler reports process liveness.
func (s *Server) healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// readinessHandler reports whether the server can serve traffic, checking each
// dependency individually.
func (s *Server) readinessHandler(c *gin.Context) {
	components := gin.H{}
	ready := true

	if s.db == nil {
		components["database"] = "error"
		ready = false
	} else {
		pingCtx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		if err := s.db.PingContext(pingCtx); err != nil {
			s.logger.Error("readiness database ping failed", slog.Any("error", err))
			components["database"] = "error"
			ready = false
		} else {
			components["database"] = "ok"
		}
	}

	if !ready {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":     "not_ready",
			"components": components,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":     "ready",
		"components": components,
	})
}

// Start starts the HTTP server. SetupRouter must have been called first.
func (s *Server) Start(ctx context.Context) error {
	if s.router == nil {
		return fmt.Errorf("router is not configured")
	}
	s.server.Handler = s.router

	s.logger.Info("starting http server", slog.String("addr", s.server.Addr))

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.server.Shutdown(ctx)
}
