package validation

import (
	"protask/internal/config"
	"protask/internal/domain"
)

// TaskValidator provides validation for task writes
type TaskValidator struct {
	validator *Validator
}

// NewTaskValidator creates a new task validator
func NewTaskValidator() *TaskValidator {
	return &TaskValidator{
		validator: NewValidator(),
	}
}

// NewTaskValidatorWithConfig creates a task validator using configured limits
func NewTaskValidatorWithConfig(cfg *config.Config) *TaskValidator {
	return &TaskValidator{
		validator: NewValidatorWithConfig(cfg),
	}
}

// ValidateFields validates the editable fields of a task. Empty priority is
// accepted and later defaulted; empty due date means no due date.
func (tv *TaskValidator) ValidateFields(fields domain.TaskFields) error {
	validationError := NewValidationError()

	if !tv.validator.IsNonEmptyString(fields.Title) {
		validationError.AddRequiredError("title")
	} else {
		if !tv.validator.IsValidStringLength(fields.Title, 1, tv.validator.titleMaxLength()) {
			validationError.AddInvalidLengthError("title", fields.Title, 0, tv.validator.titleMaxLength())
		}
		if !tv.validator.IsSingleLine(fields.Title) || tv.validator.HasControlCharacters(fields.Title) {
			validationError.AddInvalidCharacterError("title", fields.Title)
		}
	}

	if !tv.validator.IsValidStringLength(fields.Description, 0, tv.validator.descriptionMaxLength()) {
		validationError.AddInvalidLengthError("description", fields.Description, 0, tv.validator.descriptionMaxLength())
	}
	if tv.validator.HasControlCharacters(fields.Description) {
		validationError.AddInvalidCharacterError("description", fields.Description)
	}

	if !tv.validator.IsValidStringLength(fields.Category, 0, tv.validator.categoryMaxLength()) {
		validationError.AddInvalidLengthError("category", fields.Category, 0, tv.validator.categoryMaxLength())
	}
	if !tv.validator.IsSingleLine(fields.Category) || tv.validator.HasControlCharacters(fields.Category) {
		validationError.AddInvalidCharacterError("category", fields.Category)
	}

	if fields.Priority != "" && !fields.Priority.IsValid() {
		validationError.AddInvalidValueError("priority", fields.Priority, "must be Low, Medium or High")
	}

	if tv.validator.IsNonEmptyString(fields.DueDate) && !tv.validator.IsValidDate(fields.DueDate) {
		validationError.AddInvalidFormatError("due_date", fields.DueDate, "YYYY-MM-DD")
	}

	if validationError.HasErrors() {
		return validationError
	}
	return nil
}

// Normalize trims the fields and applies the default priority. It does not
// validate.
func (tv *TaskValidator) Normalize(fields domain.TaskFields) domain.TaskFields {
	fields.Title = tv.validator.TrimAndValidateString(fields.Title)
	fields.Description = tv.validator.TrimAndValidateString(fields.Description)
	fields.Category = tv.validator.TrimAndValidateString(fields.Category)
	fields.DueDate = tv.validator.TrimAndValidateString(fields.DueDate)
	if fields.Priority == "" {
		fields.Priority = domain.DefaultPriority
	}
	return fields
}

// ValidateTaskID validates a task ID
func (tv *TaskValidator) ValidateTaskID(id string) error {
	if !tv.validator.IsNonEmptyString(id) {
		validationError := NewValidationError()
		validationError.AddRequiredError("task_id")
		return validationError
	}
	return nil
}

// ValidateViewSpec checks the parts of a view specification that can be
// wrong, which is only the custom date range ordering.
func (tv *TaskValidator) ValidateViewSpec(spec domain.ViewSpec) error {
	if spec.DateRange.Mode == domain.DateRangeCustom &&
		!tv.validator.IsValidDateRange(spec.DateRange.Start, spec.DateRange.End) {
		validationError := NewValidationError()
		validationError.AddInvalidRangeError("date_range", spec.DateRange, "start must not be after end")
		return validationError
	}
	return nil
}
