package validation

import (
	"errors"
	"fmt"
	"strings"
)

// ValidationErrorType classifies what is wrong with a field
type ValidationErrorType string

const (
	ErrorTypeRequired         ValidationErrorType = "required"
	ErrorTypeInvalidFormat    ValidationErrorType = "invalid_format"
	ErrorTypeInvalidLength    ValidationErrorType = "invalid_length"
	ErrorTypeInvalidValue     ValidationErrorType = "invalid_value"
	ErrorTypeInvalidRange     ValidationErrorType = "invalid_range"
	ErrorTypeInvalidCharacter ValidationErrorType = "invalid_character"
)

// fieldLabels names fields the way a task form or the account screens do
var fieldLabels = map[string]string{
	"task_id":      "task ID",
	"due_date":     "due date",
	"display_name": "display name",
	"date_range":   "date range",
}

// label is the user-facing name of field
func label(field string) string {
	if l, ok := fieldLabels[field]; ok {
		return l
	}
	return strings.ReplaceAll(field, "_", " ")
}

// FieldError is one problem with one input field. Message is already
// phrased for the user.
type FieldError struct {
	Field   string
	Type    ValidationErrorType
	Message string
	Value   interface{}
}

// Error implements the error interface for FieldError
func (fe *FieldError) Error() string {
	return fe.Field + ": " + fe.Message
}

// ValidationError collects every field problem found in one input, so a
// form can report them together
type ValidationError struct {
	Errors []FieldError
}

// NewValidationError creates an empty ValidationError
func NewValidationError() *ValidationError {
	return &ValidationError{Errors: make([]FieldError, 0)}
}

// Error implements the error interface for ValidationError
func (ve *ValidationError) Error() string {
	switch len(ve.Errors) {
	case 0:
		return "validation error"
	case 1:
		return ve.Errors[0].Error()
	}
	parts := make([]string, len(ve.Errors))
	for i := range ve.Errors {
		parts[i] = ve.Errors[i].Error()
	}
	return fmt.Sprintf("%d validation errors: %s", len(ve.Errors), strings.Join(parts, "; "))
}

// IsValidationError checks if an error is, or wraps, a ValidationError
func IsValidationError(err error) bool {
	_, ok := AsValidationError(err)
	return ok
}

// AsValidationError extracts a ValidationError from err's chain.
func AsValidationError(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}

// HasErrors reports whether any field failed
func (ve *ValidationError) HasErrors() bool {
	return len(ve.Errors) > 0
}

func (ve *ValidationError) add(field string, errorType ValidationErrorType, message string, value interface{}) {
	ve.Errors = append(ve.Errors, FieldError{Field: field, Type: errorType, Message: message, Value: value})
}

// AddRequiredError records a missing or blank field
func (ve *ValidationError) AddRequiredError(field string) {
	ve.add(field, ErrorTypeRequired, label(field)+" is required", nil)
}

// AddInvalidFormatError records a value that does not follow expectedFormat
func (ve *ValidationError) AddInvalidFormatError(field string, value interface{}, expectedFormat string) {
	ve.add(field, ErrorTypeInvalidFormat, fmt.Sprintf("%s must be written as %s", label(field), expectedFormat), value)
}

// AddInvalidLengthError records a value outside min..max characters. A
// zero bound is not enforced.
func (ve *ValidationError) AddInvalidLengthError(field string, value interface{}, min, max int) {
	var message string
	switch {
	case min > 0 && max > 0:
		message = fmt.Sprintf("%s must be %d to %d characters", label(field), min, max)
	case min > 0:
		message = fmt.Sprintf("%s must be at least %d characters", label(field), min)
	case max > 0:
		message = fmt.Sprintf("%s is too long (at most %d characters)", label(field), max)
	default:
		message = label(field) + " has the wrong length"
	}
	ve.add(field, ErrorTypeInvalidLength, message, value)
}

// AddInvalidValueError records a value outside the accepted set
func (ve *ValidationError) AddInvalidValueError(field string, value interface{}, reason string) {
	ve.add(field, ErrorTypeInvalidValue, fmt.Sprintf("%s %s", label(field), reason), value)
}

// AddInvalidRangeError records bounds that contradict each other
func (ve *ValidationError) AddInvalidRangeError(field string, value interface{}, reason string) {
	ve.add(field, ErrorTypeInvalidRange, fmt.Sprintf("%s is invalid: %s", label(field), reason), value)
}

// AddInvalidCharacterError records a line break in a one-line field or a
// control character anywhere
func (ve *ValidationError) AddInvalidCharacterError(field string, value interface{}) {
	ve.add(field, ErrorTypeInvalidCharacter, label(field)+" contains a line break or control character", value)
}

// GetUserFriendlyMessage returns the messages as a user would read them
func (ve *ValidationError) GetUserFriendlyMessage() string {
	switch len(ve.Errors) {
	case 0:
		return "Input validation failed"
	case 1:
		return ve.Errors[0].Message
	}
	lines := make([]string, len(ve.Errors))
	for i := range ve.Errors {
		lines[i] = "- " + ve.Errors[i].Message
	}
	return "Multiple validation errors occurred:\n" + strings.Join(lines, "\n")
}
