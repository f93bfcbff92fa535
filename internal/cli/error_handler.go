package cli

import (
	"fmt"

	"protask/internal/errors"
	"protask/internal/validation"
)

// ErrorHandler provides centralized error handling for command handlers
type ErrorHandler struct{}

// NewErrorHandler creates a new error handler
func NewErrorHandler() *ErrorHandler {
	return &ErrorHandler{}
}

// Handle provides user-friendly error messages for validation and other errors
func (eh *ErrorHandler) Handle(operation string, err error) error {
	if err == nil {
		return nil
	}
	if message, ok := eh.userMessage(err); ok {
		return fmt.Errorf("failed to %s: %s", operation, message)
	}
	return fmt.Errorf("failed to %s: %w", operation, err)
}

// HandleSimple provides user-friendly error messages without operation context
func (eh *ErrorHandler) HandleSimple(err error) error {
	if err == nil {
		return nil
	}
	if message, ok := eh.userMessage(err); ok {
		return fmt.Errorf("%s", message)
	}
	return err
}

func (eh *ErrorHandler) userMessage(err error) (string, bool) {
	// Field errors say more than the wrapping validation message
	if validationErr, ok := validation.AsValidationError(err); ok && validationErr.HasErrors() {
		return validationErr.GetUserFriendlyMessage(), true
	}

	if _, ok := errors.AsAppError(err); ok {
		return errors.GetUserMessage(err), true
	}
	return "", false
}

// IsValidationError checks if an error is a validation error
func (eh *ErrorHandler) IsValidationError(err error) bool {
	if validation.IsValidationError(err) {
		return true
	}
	return errors.IsErrorType(err, errors.ErrorTypeValidation)
}

// IsNotFoundError checks if an error is a not found error
func (eh *ErrorHandler) IsNotFoundError(err error) bool {
	return errors.IsErrorType(err, errors.ErrorTypeNotFound)
}

// IsDatabaseError checks if an error is a database error
func (eh *ErrorHandler) IsDatabaseError(err error) bool {
	return errors.IsErrorType(err, errors.ErrorTypeDatabase)
}

// IsAuthRequired checks if an error means nobody is signed in
func (eh *ErrorHandler) IsAuthRequired(err error) bool {
	return errors.IsErrorType(err, errors.ErrorTypeAuthRequired)
}

// IsCredentialError checks if an error is a sign-in or sign-up rejection
func (eh *ErrorHandler) IsCredentialError(err error) bool {
	_, ok := errors.CredentialReasonOf(err)
	return ok
}

// GetErrorCode returns the error code for structured errors
func (eh *ErrorHandler) GetErrorCode(err error) string {
	return errors.GetErrorCode(err)
}
