// Package ecommerce implements the HTTP client for the upstream storefront
// that owns order details.
package ecommerce

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	orderDomain "github.com/allisson/fulfillment/internal/order/domain"
	"github.com/allisson/fulfillment/internal/result"
)

// HeaderCorrelationID carries the pipeline correlation id on outbound calls.
const HeaderCorrelationID = "X-Request-ID"

// Client fetches order details from the storefront API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a storefront client with the given base URL and request
// timeout.
func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// GetOrderDetails fetches the details for one order. Transport failures and
// server errors are retriable; client errors are final, since the request
// will not change on redelivery.
func (c *Client) GetOrderDetails(
	ctx context.Context,
	partnerCode, orderID, correlationID string,
) result.Result[orderDomain.OrderDetails] {
	endpoint := c.baseURL + "/orders/" + url.PathEscape(orderID) + "?partner_code=" + url.QueryEscape(partnerCode)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		c.logger.Error("failed to build order details request", slog.Any("error", err))
		return result.Exception[orderDomain.OrderDetails]()
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(HeaderCorrelationID, correlationID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("order details request failed",
			slog.String("order_id", orderID),
			slog.Any("error", err),
		)
		return result.TransientException[orderDomain.OrderDetails]()
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return result.TransientException[orderDomain.OrderDetails]()
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		var details orderDomain.OrderDetails
		if err := json.Unmarshal(body, &details); err != nil {
			c.logger.Error("storefront returned an undecodable order",
				slog.String("order_id", orderID),
				slog.Any("error", err),
			)
			return result.Failure[orderDomain.OrderDetails](
				"storefront returned an undecodable order", result.RecoverabilityFinal)
		}
		return result.Success(details)
	case resp.StatusCode == http.StatusNotFound:
		return result.Failure[orderDomain.OrderDetails](
			"order not found upstream", result.RecoverabilityFinal)
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		c.logger.Warn("storefront unavailable",
			slog.String("order_id", orderID),
			slog.Int("status", resp.StatusCode),
		)
		return result.Failure[orderDomain.OrderDetails](
			"storefront returned status "+resp.Status, result.RecoverabilityRetriable)
	default:
		return result.Failure[orderDomain.OrderDetails](
			"storefront rejected the request with status "+resp.Status, result.RecoverabilityFinal)
	}
}
