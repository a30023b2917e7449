// Package result defines the tri-state operation result returned by every
// fulfillment pipeline stage. A result carries an outcome, a human-readable
// failure reason, a recoverability classification that drives retry behavior,
// and a typed payload.
package result

import "encoding/json"

// Outcome identifies whether an operation succeeded.
type Outcome string

const (
	OutcomeUnknown Outcome = "unknown"
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
)

// Recoverability classifies a failure for retry purposes. It is only
// meaningful when the outcome is a failure.
type Recoverability string

const (
	RecoverabilityUnknown Recoverability = "unknown"

	// RecoverabilityRetriable marks a failure that may succeed if the same
	// operation is attempted again (timeouts, 5xx responses, storage blips).
	RecoverabilityRetriable Recoverability = "retriable"

	// RecoverabilityFinal marks a failure that retrying will not change
	// (business rejections, malformed data, missing reference data).
	RecoverabilityFinal Recoverability = "final"
)

// Well-known failure reasons shared across the pipelines.
const (
	ReasonException              = "an exception occurred"
	ReasonNotFoundInPendingStore = "not found in pending storage"
)

// Result is the value returned by every pipeline stage. Results are created
// fresh per call and never mutated after construction.
type Result[T any] struct {
	Outcome     Outcome        `json:"outcome"`
	Reason      string         `json:"reason"`
	Recoverable Recoverability `json:"recoverable"`
	Payload     T              `json:"payload"`
}

// Success creates a successful result carrying the given payload.
func Success[T any](payload T) Result[T] {
	return Result[T]{
		Outcome:     OutcomeSuccess,
		Reason:      "",
		Recoverable: RecoverabilityFinal,
		Payload:     payload,
	}
}

// Failure creates a failed result with the given reason and recoverability.
func Failure[T any](reason string, recoverable Recoverability) Result[T] {
	return Result[T]{
		Outcome:     OutcomeFailure,
		Reason:      reason,
		Recoverable: recoverable,
	}
}

// Exception is the canned result for an unclassified error caught inside a
// stage. It defaults to a final failure; call sites that sit on a transport
// or storage boundary should use TransientException instead.
func Exception[T any]() Result[T] {
	return Failure[T](ReasonException, RecoverabilityFinal)
}

// TransientException is the canned result for an unclassified error on an
// external-call boundary, where a retry may well succeed.
func TransientException[T any]() Result[T] {
	return Failure[T](ReasonException, RecoverabilityRetriable)
}

// Succeeded reports whether the operation completed successfully.
func (r Result[T]) Succeeded() bool {
	return r.Outcome == OutcomeSuccess
}

// Retriable reports whether the result is a failure eligible for a backoff
// retry of the same operation.
func (r Result[T]) Retriable() bool {
	return r.Outcome == OutcomeFailure && r.Recoverable == RecoverabilityRetriable
}

// Erase drops the typed payload, keeping outcome, reason and recoverability.
// Pipelines use it to surface a typed stage failure as their own result.
func Erase[T any](r Result[T]) Result[string] {
	return Result[string]{
		Outcome:     r.Outcome,
		Reason:      r.Reason,
		Recoverable: r.Recoverable,
	}
}

// String renders the result as indented JSON for log output.
func (r Result[T]) String() string {
	out, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return string(r.Outcome) + ": " + r.Reason
	}
	return string(out)
}

// Emulation carries pre-baked stage results threaded through a pipeline in
// place of the real collaborator calls. Each stage checks its slot first and,
// when set, runs identical logging and result shaping without touching the
// external dependency. Nil slots fall through to the real call.
type Emulation struct {
	OrderDetails    *Result[string] `json:"order_details,omitempty"`
	DocumentBuild   *Result[string] `json:"document_build,omitempty"`
	OrderSubmission *Result[string] `json:"order_submission,omitempty"`
}
