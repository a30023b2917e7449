// Package production implements the HTTP client for the downstream
// production service that manufactures submitted orders.
package production

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	orderDomain "github.com/allisson/fulfillment/internal/order/domain"
	"github.com/allisson/fulfillment/internal/result"
)

// HeaderCorrelationID carries the pipeline correlation id on outbound calls.
const HeaderCorrelationID = "X-Request-ID"

// Client submits order documents to the production service.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a production client with the given base URL and request
// timeout.
func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

type submissionResponse struct {
	ID string `json:"id"`
}

// SubmitOrder posts the document for manufacturing. The success payload is
// the production-assigned order reference. A business rejection is final; the
// document will not become acceptable by resending it unchanged. Transport
// failures and server errors are retriable.
func (c *Client) SubmitOrder(
	ctx context.Context,
	doc *orderDomain.OrderDocument,
	correlationID string,
) result.Result[string] {
	body, err := json.Marshal(doc)
	if err != nil {
		c.logger.Error("failed to encode order document", slog.Any("error", err))
		return result.Exception[string]()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/orders", bytes.NewReader(body))
	if err != nil {
		c.logger.Error("failed to build submission request", slog.Any("error", err))
		return result.Exception[string]()
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderCorrelationID, correlationID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("order submission request failed",
			slog.String("order_id", doc.Identity.PartnerOrderID),
			slog.Any("error", err),
		)
		return result.TransientException[string]()
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return result.TransientException[string]()
	}

	switch {
	case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated:
		var submission submissionResponse
		if err := json.Unmarshal(respBody, &submission); err != nil {
			c.logger.Error("production returned an undecodable response",
				slog.String("order_id", doc.Identity.PartnerOrderID),
				slog.Any("error", err),
			)
			return result.Failure[string](
				"production returned an undecodable response", result.RecoverabilityFinal)
		}
		return result.Success(submission.ID)
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		c.logger.Warn("production unavailable",
			slog.String("order_id", doc.Identity.PartnerOrderID),
			slog.Int("status", resp.StatusCode),
		)
		return result.Failure[string](
			"production returned status "+resp.Status, result.RecoverabilityRetriable)
	default:
		return result.Failure[string](
			"production rejected the order with status "+resp.Status, result.RecoverabilityFinal)
	}
}
