package domain

import (
	"fmt"
	"strings"
	"time"
)

// StatusFilter selects tasks by completion state.
type StatusFilter string

const (
	StatusFilterAll       StatusFilter = "All"
	StatusFilterPending   StatusFilter = "Pending"
	StatusFilterCompleted StatusFilter = "Completed"
)

// DateRangeMode selects tasks by due date.
type DateRangeMode string

const (
	DateRangeAll    DateRangeMode = "All"
	DateRangeToday  DateRangeMode = "Today"
	DateRangePast   DateRangeMode = "Past"
	DateRangeCustom DateRangeMode = "Custom"
)

// DateRange is the due-date filter. Start and End are only consulted in
// Custom mode; a nil bound leaves that side open.
type DateRange struct {
	Mode  DateRangeMode
	Start *time.Time
	End   *time.Time
}

// SortKey names the field a view is ordered by.
type SortKey string

const (
	SortByDueDate   SortKey = "dueDate"
	SortByPriority  SortKey = "priority"
	SortByCreatedAt SortKey = "createdAt"
)

// SortDirection is ascending or descending.
type SortDirection string

const (
	SortAscending  SortDirection = "asc"
	SortDescending SortDirection = "desc"
)

// Toggle flips the direction.
func (d SortDirection) Toggle() SortDirection {
	if d == SortDescending {
		return SortAscending
	}
	return SortDescending
}

// ViewSpec describes which tasks a view shows and in what order.
type ViewSpec struct {
	Status        StatusFilter
	Category      *string // nil means every category
	Search        string
	DateRange     DateRange
	SortKey       SortKey
	SortDirection SortDirection
}

// DefaultViewSpec shows everything ordered by due date ascending.
func DefaultViewSpec() ViewSpec {
	return ViewSpec{
		Status:        StatusFilterAll,
		DateRange:     DateRange{Mode: DateRangeAll},
		SortKey:       SortByDueDate,
		SortDirection: SortAscending,
	}
}

// Normalize fills zero-valued fields with their defaults.
func (v ViewSpec) Normalize() ViewSpec {
	if v.Status == "" {
		v.Status = StatusFilterAll
	}
	if v.DateRange.Mode == "" {
		v.DateRange.Mode = DateRangeAll
	}
	if v.SortKey == "" {
		v.SortKey = SortByDueDate
	}
	if v.SortDirection == "" {
		v.SortDirection = SortAscending
	}
	return v
}

// WithCategory returns a copy restricted to category c.
func (v ViewSpec) WithCategory(c string) ViewSpec {
	v.Category = &c
	return v
}

// WithAllCategories returns a copy with the category filter cleared.
func (v ViewSpec) WithAllCategories() ViewSpec {
	v.Category = nil
	return v
}

// ParseStatusFilter parses a status filter name case-insensitively.
func ParseStatusFilter(s string) (StatusFilter, error) {
	for _, f := range []StatusFilter{StatusFilterAll, StatusFilterPending, StatusFilterCompleted} {
		if strings.EqualFold(s, string(f)) {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown status filter %q (want all, pending or completed)", s)
}

// ParseDateRangeMode parses a date-range mode case-insensitively.
func ParseDateRangeMode(s string) (DateRangeMode, error) {
	for _, m := range []DateRangeMode{DateRangeAll, DateRangeToday, DateRangePast, DateRangeCustom} {
		if strings.EqualFold(s, string(m)) {
			return m, nil
		}
	}
	return "", fmt.Errorf("unknown date range %q (want all, today, past or custom)", s)
}

// ParseSortKey parses a sort key case-insensitively.
func ParseSortKey(s string) (SortKey, error) {
	for _, k := range []SortKey{SortByDueDate, SortByPriority, SortByCreatedAt} {
		if strings.EqualFold(s, string(k)) {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown sort key %q (want dueDate, priority or createdAt)", s)
}

// ParseSortDirection accepts asc/ascending and desc/descending.
func ParseSortDirection(s string) (SortDirection, error) {
	switch strings.ToLower(s) {
	case "asc", "ascending":
		return SortAscending, nil
	case "desc", "descending":
		return SortDescending, nil
	}
	return "", fmt.Errorf("unknown sort direction %q (want asc or desc)", s)
}
