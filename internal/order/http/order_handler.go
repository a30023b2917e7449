// Package http provides HTTP handlers for order intake. Accepted orders are
// not processed inline; the handler enqueues a processing command and replies
// 202, leaving the pipelines to the queue workers.
package http

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"

	"github.com/allisson/fulfillment/internal/httputil"
	"github.com/allisson/fulfillment/internal/messaging"
	"github.com/allisson/fulfillment/internal/result"
)

// EnqueueOrderRequest is the intake payload: the asset URL produced for each
// line item, keyed by line item id.
type EnqueueOrderRequest struct {
	Assets    map[string]string `json:"assets"`
	Emulation *result.Emulation `json:"emulation,omitempty"`
}

// EnqueueOrderResponse acknowledges an accepted order.
type EnqueueOrderResponse struct {
	PartnerCode   string `json:"partner_code"`
	OrderID       string `json:"order_id"`
	CorrelationID string `json:"correlation_id"`
	Status        string `json:"status"`
}

// OrderHandler handles HTTP requests for order intake.
type OrderHandler struct {
	commands messaging.CommandPublisher
	events   messaging.EventPublisher
	logger   *slog.Logger
}

// NewOrderHandler creates a new order handler with required dependencies.
func NewOrderHandler(
	commands messaging.CommandPublisher,
	events messaging.EventPublisher,
	logger *slog.Logger,
) *OrderHandler {
	return &OrderHandler{
		commands: commands,
		events:   events,
		logger:   logger,
	}
}

// EnqueueHandler accepts an order for fulfillment.
// POST /v1/partners/:partner_code/orders/:order_id
// Returns 202 Accepted with the correlation id assigned to the attempt.
func (h *OrderHandler) EnqueueHandler(c *gin.Context) {
	partnerCode := strings.ToUpper(strings.TrimSpace(c.Param("partner_code")))
	orderID := strings.ToUpper(strings.TrimSpace(c.Param("order_id")))

	var req EnqueueOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}

	// The request id doubles as the correlation id of the whole fulfillment
	// attempt; every command, event and log line downstream carries it.
	correlationID := requestid.Get(c)

	cmd := messaging.ProcessOrder{
		Meta:      messaging.NewEnvelope(partnerCode, orderID, correlationID),
		Assets:    req.Assets,
		Emulation: req.Emulation,
	}
	if err := cmd.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}

	if err := h.commands.Publish(c.Request.Context(), cmd); err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	h.events.TryPublish(c.Request.Context(), messaging.NewEventFrom(cmd, messaging.EventOrderReceived))

	h.logger.Info("order accepted for fulfillment",
		slog.String("partner_code", partnerCode),
		slog.String("order_id", orderID),
		slog.String("correlation_id", correlationID),
	)

	c.JSON(http.StatusAccepted, EnqueueOrderResponse{
		PartnerCode:   partnerCode,
		OrderID:       orderID,
		CorrelationID: correlationID,
		Status:        "accepted",
	})
}
