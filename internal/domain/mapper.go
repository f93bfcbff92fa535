package domain

import (
	"fmt"
	"time"
)

// Document field names shared by every backend.
const (
	FieldTitle       = "title"
	FieldDescription = "description"
	FieldCategory    = "category"
	FieldPriority    = "priority"
	FieldDueDate     = "dueDate"
	FieldStatus      = "status"
	FieldCreatedAt   = "createdAt"
	FieldDisplayName = "displayName"
	FieldEmail       = "email"
)

// TaskMapper handles conversion between domain tasks and stored document fields.
type TaskMapper struct{}

// NewTaskMapper creates a new TaskMapper instance.
func NewTaskMapper() *TaskMapper {
	return &TaskMapper{}
}

// FromFields converts a stored document into a Task. Missing priority and
// status fall back to their defaults; anything else missing stays empty.
func (m *TaskMapper) FromFields(id string, fields map[string]any) Task {
	task := Task{
		ID:          id,
		Title:       stringField(fields, FieldTitle),
		Description: stringField(fields, FieldDescription),
		Category:    stringField(fields, FieldCategory),
		Priority:    Priority(stringField(fields, FieldPriority)),
		DueDate:     stringField(fields, FieldDueDate),
		Status:      Status(stringField(fields, FieldStatus)),
		CreatedAt:   timeField(fields, FieldCreatedAt),
	}
	if task.Priority == "" {
		task.Priority = DefaultPriority
	}
	if task.Status == "" {
		task.Status = StatusPending
	}
	return task
}

// ToFields converts the editable part of a task into document fields.
// Status and createdAt are never included.
func (m *TaskMapper) ToFields(f TaskFields) map[string]any {
	return map[string]any{
		FieldTitle:       f.Title,
		FieldDescription: f.Description,
		FieldCategory:    f.Category,
		FieldPriority:    string(f.Priority),
		FieldDueDate:     f.DueDate,
	}
}

// StatusFields is the single-field write used to flip completion.
func (m *TaskMapper) StatusFields(s Status) map[string]any {
	return map[string]any{FieldStatus: string(s)}
}

// ProfileMapper handles conversion between profiles and stored document fields.
type ProfileMapper struct{}

// NewProfileMapper creates a new ProfileMapper instance.
func NewProfileMapper() *ProfileMapper {
	return &ProfileMapper{}
}

// FromFields converts a stored profile document into a Profile.
func (m *ProfileMapper) FromFields(fields map[string]any) Profile {
	return Profile{
		DisplayName: stringField(fields, FieldDisplayName),
		Email:       stringField(fields, FieldEmail),
		CreatedAt:   timeField(fields, FieldCreatedAt),
	}
}

// ToFields converts the name and email of a profile into document fields.
// createdAt is left to the caller so an existing value is never overwritten.
func (m *ProfileMapper) ToFields(p Profile) map[string]any {
	return map[string]any{
		FieldDisplayName: p.DisplayName,
		FieldEmail:       p.Email,
	}
}

// Mapper provides a unified interface for all mapping operations.
type Mapper struct {
	Task    *TaskMapper
	Profile *ProfileMapper
}

// NewMapper creates a new Mapper instance with all sub-mappers.
func NewMapper() *Mapper {
	return &Mapper{
		Task:    NewTaskMapper(),
		Profile: NewProfileMapper(),
	}
}

func stringField(fields map[string]any, key string) string {
	switch v := fields[key].(type) {
	case nil:
		return ""
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

// timeField accepts the shapes a timestamp takes after a round trip through
// the different backends: a time value, an RFC 3339 string or epoch
// milliseconds decoded from JSON.
func timeField(fields map[string]any, key string) *time.Time {
	var ts time.Time
	switch v := fields[key].(type) {
	case time.Time:
		ts = v
	case *time.Time:
		if v == nil {
			return nil
		}
		ts = *v
	case string:
		parsed, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			return nil
		}
		ts = parsed
	case float64:
		ts = time.UnixMilli(int64(v)).UTC()
	case int64:
		ts = time.UnixMilli(v).UTC()
	default:
		return nil
	}
	return &ts
}
