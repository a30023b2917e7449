package messaging

import (
	validation "github.com/jellydator/validation"

	"github.com/allisson/fulfillment/internal/result"
)

// Command kinds, used for queue routing and logging.
const (
	KindProcessOrder             = "process_order"
	KindSubmitOrderForProduction = "submit_order_for_production"
	KindNotifyOfFatalFailure     = "notify_of_fatal_failure"
)

// Command is an instruction message driving one pipeline stage. Commands are
// value types; WithEnvelope returns a copy so published messages never alias
// the caller's value.
type Command interface {
	Kind() string
	Envelope() Envelope
	WithEnvelope(e Envelope) Command
	Validate() error
}

// ProcessOrder asks the processor to stage the identified order for
// submission. Assets maps line item ids to the asset URLs produced for them.
type ProcessOrder struct {
	Meta      Envelope          `json:"meta"`
	Assets    map[string]string `json:"assets"`
	Emulation *result.Emulation `json:"emulation,omitempty"`
}

func (c ProcessOrder) Kind() string       { return KindProcessOrder }
func (c ProcessOrder) Envelope() Envelope { return c.Meta }

func (c ProcessOrder) WithEnvelope(e Envelope) Command {
	c.Meta = e
	return c
}

// Validate checks the command's identity and payload.
func (c ProcessOrder) Validate() error {
	if err := c.Meta.Validate(); err != nil {
		return err
	}
	return validation.ValidateStruct(&c,
		validation.Field(&c.Assets, validation.Required.Error("at least one asset is required")),
	)
}

// SubmitOrderForProduction asks the submitter to move a staged order through
// downstream submission.
type SubmitOrderForProduction struct {
	Meta      Envelope          `json:"meta"`
	Emulation *result.Emulation `json:"emulation,omitempty"`
}

func (c SubmitOrderForProduction) Kind() string       { return KindSubmitOrderForProduction }
func (c SubmitOrderForProduction) Envelope() Envelope { return c.Meta }

func (c SubmitOrderForProduction) WithEnvelope(e Envelope) Command {
	c.Meta = e
	return c
}

func (c SubmitOrderForProduction) Validate() error {
	return c.Meta.Validate()
}

// NotifyOfFatalFailure asks the notifier to escalate an order whose retries
// are exhausted.
type NotifyOfFatalFailure struct {
	Meta Envelope `json:"meta"`
}

func (c NotifyOfFatalFailure) Kind() string       { return KindNotifyOfFatalFailure }
func (c NotifyOfFatalFailure) Envelope() Envelope { return c.Meta }

func (c NotifyOfFatalFailure) WithEnvelope(e Envelope) Command {
	c.Meta = e
	return c
}

func (c NotifyOfFatalFailure) Validate() error {
	return c.Meta.Validate()
}

// NewSubmitOrderFrom derives the follow-up submission command from a handled
// command, carrying the emulation through so staged test runs keep their
// pre-baked results.
func NewSubmitOrderFrom(src Command, emulation *result.Emulation) SubmitOrderForProduction {
	return SubmitOrderForProduction{Meta: src.Envelope().Derive(), Emulation: emulation}
}

// NewNotifyOfFatalFailureFrom derives the escalation command from a handled
// command.
func NewNotifyOfFatalFailureFrom(src Command) NotifyOfFatalFailure {
	return NotifyOfFatalFailure{Meta: src.Envelope().Derive()}
}
