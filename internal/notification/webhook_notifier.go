// Package notification escalates orders that the pipelines could not
// complete. Escalations go out as signed webhook posts so the receiving
// operations tooling can authenticate them.
package notification

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/crypto/hkdf"

	apperrors "github.com/allisson/fulfillment/internal/errors"
	"github.com/allisson/fulfillment/internal/result"
)

// HeaderSignature carries the hex HMAC-SHA256 signature of the request body.
const HeaderSignature = "X-Fulfillment-Signature"

// Escalation kinds posted to the webhook.
const (
	KindFatalFailure = "order_fatal_failure"
	KindDeadLetter   = "dead_lettered_message"
)

// Payload is the webhook request body.
type Payload struct {
	Kind          string    `json:"kind"`
	PartnerCode   string    `json:"partner_code"`
	OrderID       string    `json:"order_id"`
	CorrelationID string    `json:"correlation_id"`
	Location      string    `json:"location,omitempty"`
	OccurredAtUTC time.Time `json:"occurred_at_utc"`
}

// WebhookNotifier posts signed escalation payloads to a configured endpoint.
// A disabled notifier reports success without sending, so environments
// without an escalation hook keep the same pipeline behavior.
type WebhookNotifier struct {
	enabled    bool
	webhookURL string
	signingKey []byte
	httpClient *http.Client
	clock      func() time.Time
	logger     *slog.Logger
}

// NewWebhookNotifier creates a notifier. The signing key is derived from the
// shared secret with HKDF-SHA256, keeping the raw secret out of signature
// computation.
func NewWebhookNotifier(
	enabled bool,
	webhookURL string,
	secret []byte,
	timeout time.Duration,
	logger *slog.Logger,
) (*WebhookNotifier, error) {
	if enabled && webhookURL == "" {
		return nil, apperrors.Precondition("webhookURL")
	}

	var signingKey []byte
	if enabled {
		if len(secret) == 0 {
			return nil, apperrors.Precondition("secret")
		}
		key, err := deriveSigningKey(secret)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to derive webhook signing key")
		}
		signingKey = key
	}

	return &WebhookNotifier{
		enabled:    enabled,
		webhookURL: webhookURL,
		signingKey: signingKey,
		httpClient: &http.Client{Timeout: timeout},
		clock:      func() time.Time { return time.Now().UTC() },
		logger:     logger,
	}, nil
}

// deriveSigningKey uses HKDF-SHA256 to derive a 32-byte signing key from the
// configured secret. Info parameter is versioned for future algorithm changes.
func deriveSigningKey(secret []byte) ([]byte, error) {
	info := []byte("fulfillment-webhook-signing-v1")
	reader := hkdf.New(sha256.New, secret, nil, info)

	signingKey := make([]byte, 32)
	if _, err := io.ReadFull(reader, signingKey); err != nil {
		return nil, err
	}
	return signingKey, nil
}

// Sign computes the hex HMAC-SHA256 signature of body under key. Receivers
// recompute it to authenticate the webhook.
func Sign(key, body []byte) string {
	mac := hmac.New(sha256.New, key)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// NotifyOrderFailure escalates an order whose pipeline retries are exhausted.
func (n *WebhookNotifier) NotifyOrderFailure(
	ctx context.Context,
	partnerCode, orderID, correlationID string,
) result.Result[string] {
	return n.post(ctx, Payload{
		Kind:          KindFatalFailure,
		PartnerCode:   partnerCode,
		OrderID:       orderID,
		CorrelationID: correlationID,
		OccurredAtUTC: n.clock(),
	})
}

// NotifyDeadLetter escalates a message that landed on the dead-letter queue.
// Location names the queue the message died on.
func (n *WebhookNotifier) NotifyDeadLetter(
	ctx context.Context,
	location, partnerCode, orderID, correlationID string,
) result.Result[string] {
	return n.post(ctx, Payload{
		Kind:          KindDeadLetter,
		PartnerCode:   partnerCode,
		OrderID:       orderID,
		CorrelationID: correlationID,
		Location:      location,
		OccurredAtUTC: n.clock(),
	})
}

func (n *WebhookNotifier) post(ctx context.Context, payload Payload) result.Result[string] {
	if !n.enabled {
		n.logger.Debug("notifications disabled, escalation dropped",
			slog.String("kind", payload.Kind),
			slog.String("order_id", payload.OrderID),
		)
		return result.Success("notifications disabled")
	}

	body, err := json.Marshal(payload)
	if err != nil {
		n.logger.Error("failed to encode escalation payload", slog.Any("error", err))
		return result.Exception[string]()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
	if err != nil {
		n.logger.Error("failed to build escalation request", slog.Any("error", err))
		return result.Exception[string]()
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderSignature, Sign(n.signingKey, body))

	resp, err := n.httpClient.Do(req)
	if err != nil {
		n.logger.Warn("escalation request failed",
			slog.String("kind", payload.Kind),
			slog.String("order_id", payload.OrderID),
			slog.Any("error", err),
		)
		return result.TransientException[string]()
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		n.logger.Info("escalation delivered",
			slog.String("kind", payload.Kind),
			slog.String("partner_code", payload.PartnerCode),
			slog.String("order_id", payload.OrderID),
			slog.String("correlation_id", payload.CorrelationID),
		)
		return result.Success("escalation delivered")
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return result.Failure[string](
			"escalation endpoint returned status "+resp.Status, result.RecoverabilityRetriable)
	default:
		return result.Failure[string](
			"escalation endpoint rejected the payload with status "+resp.Status, result.RecoverabilityFinal)
	}
}
