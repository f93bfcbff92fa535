package validation

import (
	"net/mail"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"protask/internal/config"
	"protask/internal/domain"
)

// Validator provides common validation utilities
type Validator struct {
	config *config.Config
}

// NewValidator creates a new validator instance
func NewValidator() *Validator {
	return &Validator{
		config: nil, // Use defaults
	}
}

// NewValidatorWithConfig creates a new validator instance with configuration
func NewValidatorWithConfig(cfg *config.Config) *Validator {
	return &Validator{
		config: cfg,
	}
}

// IsNonEmptyString checks if a string is not empty after trimming whitespace
func (v *Validator) IsNonEmptyString(s string) bool {
	return strings.TrimSpace(s) != ""
}

// IsValidStringLength checks if the rune count of the trimmed string is
// within the specified range. A max of 0 means unbounded.
func (v *Validator) IsValidStringLength(s string, min, max int) bool {
	length := utf8.RuneCountInString(strings.TrimSpace(s))
	return length >= min && (max <= 0 || length <= max)
}

// HasControlCharacters reports whether s contains control characters other
// than newlines and tabs.
func (v *Validator) HasControlCharacters(s string) bool {
	return strings.IndexFunc(s, func(r rune) bool {
		return unicode.IsControl(r) && r != '\n' && r != '\t' && r != '\r'
	}) >= 0
}

// IsSingleLine reports whether s contains no line breaks.
func (v *Validator) IsSingleLine(s string) bool {
	return !strings.ContainsAny(s, "\r\n")
}

// IsValidEmail checks for a bare address such as name@example.com.
func (v *Validator) IsValidEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return false
	}
	at := strings.LastIndex(email, "@")
	return at > 0 && strings.Contains(email[at+1:], ".")
}

// IsValidDate checks that s is a calendar date in domain.DateLayout.
func (v *Validator) IsValidDate(s string) bool {
	_, err := time.Parse(domain.DateLayout, strings.TrimSpace(s))
	return err == nil
}

// IsValidDateRange checks if a date range is logical
func (v *Validator) IsValidDateRange(start, end *time.Time) bool {
	if start == nil || end == nil {
		return true // open-ended ranges are valid
	}
	return !start.After(*end)
}

// TrimAndValidateString trims whitespace and returns the cleaned string
func (v *Validator) TrimAndValidateString(s string) string {
	return strings.TrimSpace(s)
}

func (v *Validator) titleMaxLength() int {
	if v.config != nil {
		return v.config.Validation.TitleMaxLength
	}
	return 200
}

func (v *Validator) descriptionMaxLength() int {
	if v.config != nil {
		return v.config.Validation.DescriptionMaxLength
	}
	return 2000
}

func (v *Validator) categoryMaxLength() int {
	if v.config != nil {
		return v.config.Validation.CategoryMaxLength
	}
	return 50
}

func (v *Validator) displayNameMaxLength() int {
	if v.config != nil {
		return v.config.Validation.DisplayNameMaxLength
	}
	return 100
}

func (v *Validator) passwordMinLength() int {
	if v.config != nil {
		return v.config.Auth.PasswordMinLength
	}
	return 6
}
