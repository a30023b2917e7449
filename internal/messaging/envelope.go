// Package messaging defines the command and event messages that drive the
// fulfillment pipelines, their queue codec, the gocloud.dev/pubsub publishers
// and the out-of-process command retry scheduler.
package messaging

import (
	"time"

	validation "github.com/jellydator/validation"

	"github.com/google/uuid"
)

// Envelope is the common base of every command and event. The ID is unique
// per message and regenerated whenever a new message is derived from another;
// the correlation id and the partner/order identity propagate unchanged
// across a causal chain so every message of one fulfillment attempt shares a
// traceable lineage.
type Envelope struct {
	ID               uuid.UUID `json:"id"`
	CorrelationID    string    `json:"correlation_id"`
	CurrentUser      string    `json:"current_user,omitempty"`
	OccurredAtUTC    time.Time `json:"occurred_at_utc"`
	PartnerCode      string    `json:"partner_code"`
	OrderID          string    `json:"order_id"`
	PreviousAttempts int       `json:"previous_attempts"`
}

// NewEnvelope creates the envelope for a brand new causal chain.
func NewEnvelope(partnerCode, orderID, correlationID string) Envelope {
	return Envelope{
		ID:            uuid.Must(uuid.NewV7()),
		CorrelationID: correlationID,
		OccurredAtUTC: time.Now().UTC(),
		PartnerCode:   partnerCode,
		OrderID:       orderID,
	}
}

// Derive creates the envelope for a new message caused by this one: a fresh
// ID and timestamp, zeroed attempts, with correlation and order identity
// copied so the lineage stays traceable.
func (e Envelope) Derive() Envelope {
	return Envelope{
		ID:            uuid.Must(uuid.NewV7()),
		CorrelationID: e.CorrelationID,
		CurrentUser:   e.CurrentUser,
		OccurredAtUTC: time.Now().UTC(),
		PartnerCode:   e.PartnerCode,
		OrderID:       e.OrderID,
	}
}

// WithAttempts returns a copy of the envelope with the attempt counter set.
// The retry scheduler publishes the copy rather than mutating the original,
// avoiding aliasing hazards when the same command value is retried from more
// than one code path.
func (e Envelope) WithAttempts(attempts int) Envelope {
	e.PreviousAttempts = attempts
	return e
}

// Validate checks the identity fields every message must carry.
func (e Envelope) Validate() error {
	return validation.ValidateStruct(&e,
		validation.Field(&e.ID, validation.By(requireUUID)),
		validation.Field(&e.PartnerCode, validation.Required.Error("partner code is required")),
		validation.Field(&e.OrderID, validation.Required.Error("order id is required")),
	)
}

func requireUUID(value any) error {
	id, ok := value.(uuid.UUID)
	if !ok || id == uuid.Nil {
		return validation.NewError("validation_required", "a message id is required")
	}
	return nil
}
