package domain

import (
	"strings"
	"time"
)

// Priority is the urgency label of a task. Values outside the three known
// levels can arrive from the remote store and are kept verbatim.
type Priority string

const (
	PriorityLow    Priority = "Low"
	PriorityMedium Priority = "Medium"
	PriorityHigh   Priority = "High"
)

// DefaultPriority is applied when a task carries no priority.
const DefaultPriority = PriorityMedium

// Priorities lists the known priority levels from highest to lowest.
var Priorities = []Priority{PriorityHigh, PriorityMedium, PriorityLow}

// ParsePriority matches s case-insensitively against the known levels.
func ParsePriority(s string) (Priority, bool) {
	for _, p := range Priorities {
		if strings.EqualFold(strings.TrimSpace(s), string(p)) {
			return p, true
		}
	}
	return "", false
}

// Rank orders priorities High > Medium > Low. Unknown values rank below Low.
func (p Priority) Rank() int {
	switch p {
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 1
	default:
		return 0
	}
}

// IsValid reports whether p is one of the known levels.
func (p Priority) IsValid() bool {
	return p.Rank() > 0
}

// Status is the completion state of a task.
type Status string

const (
	StatusPending   Status = "Pending"
	StatusCompleted Status = "Completed"
)

// ParseStatus matches s case-insensitively against the known statuses.
func ParseStatus(s string) (Status, bool) {
	switch {
	case strings.EqualFold(strings.TrimSpace(s), string(StatusPending)):
		return StatusPending, true
	case strings.EqualFold(strings.TrimSpace(s), string(StatusCompleted)):
		return StatusCompleted, true
	}
	return "", false
}

// Toggle flips Pending and Completed. Anything that is not Completed is
// treated as Pending.
func (s Status) Toggle() Status {
	if s == StatusCompleted {
		return StatusPending
	}
	return StatusCompleted
}

// Task represents a task record in the domain model.
// This is a pure domain model without storage-specific concerns.
type Task struct {
	ID          string
	Title       string
	Description string
	Category    string
	Priority    Priority
	DueDate     string // calendar date, DateLayout; may be empty or malformed
	Status      Status
	CreatedAt   *time.Time
}

// TaskFields is the user-editable part of a task.
type TaskFields struct {
	Title       string
	Description string
	Category    string
	Priority    Priority
	DueDate     string
}

// IsCompleted reports whether the task is done.
func (t Task) IsCompleted() bool {
	return t.Status == StatusCompleted
}

// Due returns the due date at midnight in loc. The second result is false
// when the task has no due date or it cannot be parsed.
func (t Task) Due(loc *time.Location) (time.Time, bool) {
	return ParseDate(t.DueDate, loc)
}

// IsOverdue reports whether a pending task's due date lies before the day of now.
func (t Task) IsOverdue(now time.Time) bool {
	if t.IsCompleted() {
		return false
	}
	due, ok := t.Due(now.Location())
	if !ok {
		return false
	}
	return due.Before(StartOfDay(now))
}

// Fields returns the editable subset of the task.
func (t Task) Fields() TaskFields {
	return TaskFields{
		Title:       t.Title,
		Description: t.Description,
		Category:    t.Category,
		Priority:    t.Priority,
		DueDate:     t.DueDate,
	}
}

// IsValid checks if the task has valid data.
func (t Task) IsValid() bool {
	return strings.TrimSpace(t.Title) != ""
}

// String returns the task title for display purposes.
func (t Task) String() string {
	return t.Title
}
