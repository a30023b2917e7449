// Package validation provides custom validation rules for the application.
package validation

import (
	"regexp"
	"strings"

	validation "github.com/jellydator/validation"

	apperrors "github.com/allisson/fulfillment/internal/errors"
)

var (
	// codeRegex matches the canonical form of partner codes, order ids and
	// SKUs: uppercase alphanumerics with optional dashes and underscores.
	codeRegex = regexp.MustCompile(`^[A-Z0-9][A-Z0-9_-]*$`)
)

// WrapValidationError wraps validation errors as domain ErrInvalidInput
func WrapValidationError(err error) error {
	if err == nil {
		return nil
	}
	return apperrors.Wrap(apperrors.ErrInvalidInput, err.Error())
}

// UppercaseCode validates that an identifier is in canonical uppercase form.
// Partner codes, order ids and SKUs are normalized to this form before they
// reach storage or the queues.
var UppercaseCode = validation.NewStringRuleWithError(
	func(s string) bool {
		return codeRegex.MatchString(s)
	},
	validation.NewError(
		"validation_uppercase_code",
		"must contain only uppercase letters, digits, dashes and underscores",
	),
)

// NoWhitespace validates that string doesn't contain leading/trailing whitespace
var NoWhitespace = validation.NewStringRuleWithError(
	func(s string) bool {
		return s == strings.TrimSpace(s)
	},
	validation.NewError("validation_no_whitespace", "must not contain leading or trailing whitespace"),
)

// NotBlank validates that a string is not empty after trimming whitespace
var NotBlank = validation.NewStringRuleWithError(
	func(s string) bool {
		return strings.TrimSpace(s) != ""
	},
	validation.NewError("validation_not_blank", "must not be blank"),
)
