package services

import (
	"time"

	"protask/internal/domain"
)

// Aggregate counts the canonical set by status, priority and category.
// Only values that occur become keys; the category key is the raw value,
// so uncategorized tasks are counted under "".
func Aggregate(set *CanonicalSet) Statistics {
	stats := Statistics{
		CountsByStatus:   make(map[domain.Status]int),
		CountsByPriority: make(map[domain.Priority]int),
		CountsByCategory: make(map[string]int),
	}

	completed := 0
	for _, task := range set.Tasks() {
		stats.TotalCount++
		stats.CountsByStatus[task.Status]++
		stats.CountsByPriority[task.Priority]++
		stats.CountsByCategory[task.Category]++
		if task.IsCompleted() {
			completed++
		}
	}
	stats.CompletionPercentage = CompletionPercentage(completed, stats.TotalCount)
	return stats
}

// CompletionPercentage is 100*completed/total rounded half up, and 0 when
// total is 0.
func CompletionPercentage(completed, total int) int {
	if total <= 0 {
		return 0
	}
	return (200*completed + total) / (2 * total)
}

// Count returns the count for key, which is zero when key never occurred.
func Count[K comparable](counts map[K]int, key K) int {
	return counts[key]
}

// reportingServiceImpl implements the ReportingService interface
type reportingServiceImpl struct {
	now Clock
}

// NewReportingService creates a new ReportingService instance
func NewReportingService(now Clock) ReportingService {
	if now == nil {
		now = time.Now
	}
	return &reportingServiceImpl{now: now}
}

func (r *reportingServiceImpl) Aggregate(set *CanonicalSet) Statistics {
	return Aggregate(set)
}

// Dashboard adds the overdue count and category list to the statistics.
func (r *reportingServiceImpl) Dashboard(set *CanonicalSet) DashboardData {
	now := r.now()
	overdue := 0
	for _, task := range set.Tasks() {
		if task.IsOverdue(now) {
			overdue++
		}
	}
	return DashboardData{
		Statistics:   Aggregate(set),
		OverdueCount: overdue,
		Categories:   Categories(set),
	}
}
