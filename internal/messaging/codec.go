package messaging

import (
	"encoding/json"
	"fmt"
	"time"

	"gocloud.dev/pubsub"

	apperrors "github.com/allisson/fulfillment/internal/errors"
)

// Message metadata keys. The kind attribute routes decoding; the not-before
// attribute carries the delayed-delivery instant for scheduled retries, since
// gocloud.dev/pubsub has no broker-side scheduling. correlation id and order
// identity are duplicated into metadata so dead-letter inspection can recover
// them without decoding the body.
const (
	AttrKind          = "kind"
	AttrCorrelationID = "correlation_id"
	AttrPartnerCode   = "partner_code"
	AttrOrderID       = "order_id"
	AttrNotBefore     = "not_before"
)

// EncodeCommand serializes a command into a pubsub message. A non-zero
// notBefore is stamped into metadata for the subscriber to honor.
func EncodeCommand(cmd Command, notBefore time.Time) (*pubsub.Message, error) {
	body, err := json.Marshal(cmd)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to encode command")
	}

	meta := cmd.Envelope()
	msg := &pubsub.Message{
		Body: body,
		Metadata: map[string]string{
			AttrKind:          cmd.Kind(),
			AttrCorrelationID: meta.CorrelationID,
			AttrPartnerCode:   meta.PartnerCode,
			AttrOrderID:       meta.OrderID,
		},
	}
	if !notBefore.IsZero() {
		msg.Metadata[AttrNotBefore] = notBefore.UTC().Format(time.RFC3339Nano)
	}

	return msg, nil
}

// DecodeCommand reconstructs a command from a pubsub message using the kind
// attribute for routing.
func DecodeCommand(msg *pubsub.Message) (Command, error) {
	kind := msg.Metadata[AttrKind]

	switch kind {
	case KindProcessOrder:
		var cmd ProcessOrder
		if err := json.Unmarshal(msg.Body, &cmd); err != nil {
			return nil, apperrors.Wrap(err, "failed to decode process order command")
		}
		return cmd, nil
	case KindSubmitOrderForProduction:
		var cmd SubmitOrderForProduction
		if err := json.Unmarshal(msg.Body, &cmd); err != nil {
			return nil, apperrors.Wrap(err, "failed to decode submit order command")
		}
		return cmd, nil
	case KindNotifyOfFatalFailure:
		var cmd NotifyOfFatalFailure
		if err := json.Unmarshal(msg.Body, &cmd); err != nil {
			return nil, apperrors.Wrap(err, "failed to decode notify command")
		}
		return cmd, nil
	default:
		return nil, fmt.Errorf("%w: unknown command kind %q", apperrors.ErrInvalidInput, kind)
	}
}

// NotBefore extracts the delayed-delivery instant, if any.
func NotBefore(msg *pubsub.Message) (time.Time, bool) {
	raw, ok := msg.Metadata[AttrNotBefore]
	if !ok || raw == "" {
		return time.Time{}, false
	}
	at, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, false
	}
	return at, true
}

// EncodeEvent serializes an event into a pubsub message.
func EncodeEvent(evt Event) (*pubsub.Message, error) {
	body, err := json.Marshal(evt)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to encode event")
	}

	return &pubsub.Message{
		Body: body,
		Metadata: map[string]string{
			AttrKind:          string(evt.Kind),
			AttrCorrelationID: evt.Meta.CorrelationID,
			AttrPartnerCode:   evt.Meta.PartnerCode,
			AttrOrderID:       evt.Meta.OrderID,
		},
	}, nil
}
