package messaging

// EventKind names a fact emitted after a command completes.
type EventKind string

const (
	EventOrderReceived         EventKind = "order_received"
	EventOrderProcessed        EventKind = "order_processed"
	EventOrderProcessingFailed EventKind = "order_processing_failed"
	EventOrderSubmitted        EventKind = "order_submitted"
	EventOrderSubmissionFailed EventKind = "order_submission_failed"
	EventNotificationSent      EventKind = "notification_sent"
	EventNotificationFailed    EventKind = "notification_failed"
)

// Event is a fact message published after handling a command. Events are
// best-effort: publish failures are logged, never surfaced to the pipeline.
type Event struct {
	Meta Envelope  `json:"meta"`
	Kind EventKind `json:"kind"`
}

// NewEventFrom derives an event from the command that caused it, keeping the
// correlation lineage and regenerating the message id.
func NewEventFrom(src Command, kind EventKind) Event {
	return Event{Meta: src.Envelope().Derive(), Kind: kind}
}

// NewEvent creates an event at the start of a causal chain (e.g. order
// received at the API edge).
func NewEvent(partnerCode, orderID, correlationID string, kind EventKind) Event {
	return Event{Meta: NewEnvelope(partnerCode, orderID, correlationID), Kind: kind}
}
