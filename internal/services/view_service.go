package services

import (
	"sort"
	"strings"
	"time"

	"protask/internal/domain"
	"protask/internal/errors"
	"protask/internal/validation"
)

// BuildView filters and orders the canonical set for display. It is pure:
// the same set, spec and now always give the same sequence. now supplies
// both "today" and the location due dates are read in.
func BuildView(set *CanonicalSet, spec domain.ViewSpec, now time.Time) []domain.Task {
	spec = spec.Normalize()
	loc := now.Location()
	today := domain.StartOfDay(now)
	search := strings.ToLower(spec.Search)

	// Tasks is id ordered, which makes the stable sort below deterministic.
	out := make([]domain.Task, 0, set.Len())
	for _, task := range set.Tasks() {
		if !matchesStatus(task, spec.Status) {
			continue
		}
		if spec.Category != nil && task.Category != *spec.Category {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(task.Title), search) &&
			!strings.Contains(strings.ToLower(task.Description), search) {
			continue
		}
		if !matchesDateRange(task, spec.DateRange, today, loc) {
			continue
		}
		out = append(out, task)
	}

	compare := comparatorFor(spec.SortKey, loc)
	descending := spec.SortDirection == domain.SortDescending
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.IsCompleted() != b.IsCompleted() {
			return !a.IsCompleted()
		}
		// a missing due date stays last whatever the direction
		if spec.SortKey == domain.SortByDueDate {
			_, aok := a.Due(loc)
			_, bok := b.Due(loc)
			if aok != bok {
				return aok
			}
			if !aok {
				return false
			}
		}
		c := compare(a, b)
		if descending {
			c = -c
		}
		return c < 0
	})
	return out
}

func matchesStatus(task domain.Task, filter domain.StatusFilter) bool {
	switch filter {
	case domain.StatusFilterPending:
		return task.Status == domain.StatusPending
	case domain.StatusFilterCompleted:
		return task.Status == domain.StatusCompleted
	default:
		return true
	}
}

// matchesDateRange applies the due date filter. Tasks without a usable due
// date only pass the All mode.
func matchesDateRange(task domain.Task, r domain.DateRange, today time.Time, loc *time.Location) bool {
	if r.Mode == domain.DateRangeAll {
		return true
	}
	due, ok := task.Due(loc)
	if !ok {
		return false
	}

	switch r.Mode {
	case domain.DateRangeToday:
		return due.Equal(today)
	case domain.DateRangePast:
		return due.Before(today) && !task.IsCompleted()
	case domain.DateRangeCustom:
		if r.Start != nil && due.Before(domain.StartOfDay(r.Start.In(loc))) {
			return false
		}
		if r.End != nil && due.After(domain.EndOfDay(r.End.In(loc))) {
			return false
		}
		return true
	default:
		return true
	}
}

// comparatorFor returns the ascending comparison for key. Priority and
// createdAt already put High and newest first when ascending.
func comparatorFor(key domain.SortKey, loc *time.Location) func(a, b domain.Task) int {
	switch key {
	case domain.SortByPriority:
		return func(a, b domain.Task) int {
			return b.Priority.Rank() - a.Priority.Rank()
		}
	case domain.SortByCreatedAt:
		return func(a, b domain.Task) int {
			return compareTimes(createdAt(b), createdAt(a))
		}
	default:
		return func(a, b domain.Task) int {
			ad, _ := a.Due(loc)
			bd, _ := b.Due(loc)
			return compareTimes(ad, bd)
		}
	}
}

func createdAt(t domain.Task) time.Time {
	if t.CreatedAt == nil {
		return time.Time{}
	}
	return *t.CreatedAt
}

func compareTimes(a, b time.Time) int {
	switch {
	case a.Before(b):
		return -1
	case a.After(b):
		return 1
	default:
		return 0
	}
}

// Categories returns the distinct non-empty categories in the set, sorted.
func Categories(set *CanonicalSet) []string {
	seen := make(map[string]struct{})
	for _, task := range set.Tasks() {
		if task.Category != "" {
			seen[task.Category] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for c := range seen {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// viewServiceImpl implements the ViewService interface
type viewServiceImpl struct {
	validator *validation.TaskValidator
	now       Clock
}

// NewViewService creates a new ViewService instance
func NewViewService(validator *validation.TaskValidator, now Clock) ViewService {
	if validator == nil {
		validator = validation.NewTaskValidator()
	}
	if now == nil {
		now = time.Now
	}
	return &viewServiceImpl{validator: validator, now: now}
}

// View validates spec and builds the view for the current day.
func (v *viewServiceImpl) View(set *CanonicalSet, spec domain.ViewSpec) ([]domain.Task, error) {
	if err := v.validator.ValidateViewSpec(spec); err != nil {
		return nil, errors.NewValidationError("invalid view", err)
	}
	return BuildView(set, spec, v.now()), nil
}

func (v *viewServiceImpl) Categories(set *CanonicalSet) []string {
	return Categories(set)
}

// IsOverdue reports whether a pending task was due before today.
func (v *viewServiceImpl) IsOverdue(task domain.Task) bool {
	return task.IsOverdue(v.now())
}
