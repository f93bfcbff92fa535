package validation

import (
	"protask/internal/config"
)

// AccountValidator validates credentials and profile input
type AccountValidator struct {
	validator *Validator
}

// NewAccountValidator creates a new account validator
func NewAccountValidator() *AccountValidator {
	return &AccountValidator{validator: NewValidator()}
}

// NewAccountValidatorWithConfig creates an account validator using configured limits
func NewAccountValidatorWithConfig(cfg *config.Config) *AccountValidator {
	return &AccountValidator{validator: NewValidatorWithConfig(cfg)}
}

// IsValidEmail reports whether email is a well-formed bare address.
func (av *AccountValidator) IsValidEmail(email string) bool {
	return av.validator.IsValidEmail(email)
}

// IsStrongPassword reports whether password meets the minimum length.
func (av *AccountValidator) IsStrongPassword(password string) bool {
	return len([]rune(password)) >= av.validator.passwordMinLength()
}

// ValidateDisplayName validates a display name for sign-up or rename.
func (av *AccountValidator) ValidateDisplayName(name string) error {
	validationError := NewValidationError()

	if !av.validator.IsNonEmptyString(name) {
		validationError.AddRequiredError("display_name")
		return validationError
	}
	max := av.validator.displayNameMaxLength()
	if !av.validator.IsValidStringLength(name, 1, max) {
		validationError.AddInvalidLengthError("display_name", name, 0, max)
	}
	if !av.validator.IsSingleLine(name) || av.validator.HasControlCharacters(name) {
		validationError.AddInvalidCharacterError("display_name", name)
	}

	if validationError.HasErrors() {
		return validationError
	}
	return nil
}
