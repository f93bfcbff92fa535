package cli

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"protask/internal/config"
	"protask/internal/domain"
	"protask/internal/services"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
)

func ac(light, dark string) lipgloss.AdaptiveColor {
	return lipgloss.AdaptiveColor{Light: light, Dark: dark}
}

// Palette, readable on light and dark backgrounds.
var (
	colorHigh    lipgloss.TerminalColor = ac("#dc2626", "#f87171")
	colorMedium  lipgloss.TerminalColor = ac("#ca8a04", "#facc15")
	colorLow     lipgloss.TerminalColor = ac("#16a34a", "#4ade80")
	colorUnknown lipgloss.TerminalColor = ac("240", "245")
	colorMuted   lipgloss.TerminalColor = ac("240", "243")
	colorAccent  lipgloss.TerminalColor = ac("27", "62")
)

// Renderer formats tasks, views and statistics for the terminal.
type Renderer struct {
	cfg   *config.Config
	color bool

	heading   lipgloss.Style
	muted     lipgloss.Style
	overdue   lipgloss.Style
	completed lipgloss.Style
	priority  map[domain.Priority]lipgloss.Style
	fallback  lipgloss.Style
}

// NewRenderer builds the styles for cfg. With colour disabled every style
// renders plain text.
func NewRenderer(cfg *config.Config) *Renderer {
	if cfg == nil {
		cfg = config.NewConfig()
	}
	r := &Renderer{cfg: cfg, color: cfg.Display.Color}

	plain := lipgloss.NewStyle()
	r.heading, r.muted, r.overdue, r.completed, r.fallback = plain, plain, plain, plain, plain
	r.priority = map[domain.Priority]lipgloss.Style{}
	if !r.color {
		return r
	}

	r.heading = plain.Foreground(colorAccent).Bold(true)
	r.muted = plain.Foreground(colorMuted)
	r.overdue = plain.Foreground(colorHigh).Bold(true)
	r.completed = plain.Foreground(colorMuted).Strikethrough(true)
	r.fallback = plain.Foreground(colorUnknown)
	r.priority = map[domain.Priority]lipgloss.Style{
		domain.PriorityHigh:   plain.Foreground(colorHigh).Bold(true),
		domain.PriorityMedium: plain.Foreground(colorMedium),
		domain.PriorityLow:    plain.Foreground(colorLow),
	}
	return r
}

func (r *Renderer) priorityStyle(p domain.Priority) lipgloss.Style {
	if st, ok := r.priority[p]; ok {
		return st
	}
	return r.fallback
}

// truncate shortens s to width runes, marking the cut with an ellipsis.
func truncate(s string, width int) string {
	runes := []rune(s)
	if width <= 0 || len(runes) <= width {
		return s
	}
	if width == 1 {
		return "…"
	}
	return string(runes[:width-1]) + "…"
}

// ShortID is the id suffix shown in listings. Ids are time ordered, so the
// tail is the part that tells tasks apart.
func ShortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[len(id)-8:]
}

// FormatDue renders a due date with the configured layout. Unparseable
// values are shown as stored.
func (r *Renderer) FormatDue(task domain.Task, now time.Time) string {
	if task.DueDate == "" {
		return ""
	}
	due, ok := task.Due(now.Location())
	if !ok {
		return task.DueDate
	}
	return due.Format(r.cfg.Display.DateFormat)
}

// FormatCreated renders the creation time relative to now.
func FormatCreated(task domain.Task, now time.Time) string {
	if task.CreatedAt == nil {
		return "just now"
	}
	return humanize.RelTime(*task.CreatedAt, now, "ago", "from now")
}

// TaskLine renders one task as a single line.
func (r *Renderer) TaskLine(task domain.Task, overdue bool, now time.Time) string {
	check := "[ ]"
	if task.IsCompleted() {
		check = "[x]"
	}

	title := truncate(task.Title, r.cfg.Display.TitleWidth)
	if task.IsCompleted() {
		title = r.completed.Render(title)
	}

	parts := []string{
		r.muted.Render(ShortID(task.ID)),
		check,
		title,
		r.priorityStyle(task.Priority).Render(string(task.Priority)),
	}
	if task.Category != "" {
		parts = append(parts, r.muted.Render("#"+task.Category))
	}
	if due := r.FormatDue(task, now); due != "" {
		due = "due " + due
		if overdue {
			due = r.overdue.Render(due + " (overdue)")
		}
		parts = append(parts, due)
	}
	parts = append(parts, r.muted.Render("created "+FormatCreated(task, now)))
	return strings.Join(parts, "  ")
}

// TaskDetail renders every field of a task, one per line.
func (r *Renderer) TaskDetail(task domain.Task, overdue bool, now time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n", r.heading.Render(task.Title), r.muted.Render("("+task.ID+")"))
	fmt.Fprintf(&b, "  Status:   %s\n", task.Status)
	fmt.Fprintf(&b, "  Priority: %s\n", r.priorityStyle(task.Priority).Render(string(task.Priority)))
	if task.Category != "" {
		fmt.Fprintf(&b, "  Category: %s\n", task.Category)
	}
	if due := r.FormatDue(task, now); due != "" {
		if overdue {
			due = r.overdue.Render(due + " (overdue)")
		}
		fmt.Fprintf(&b, "  Due:      %s\n", due)
	}
	if task.Description != "" {
		fmt.Fprintf(&b, "  %s\n", strings.ReplaceAll(task.Description, "\n", "\n  "))
	}
	fmt.Fprintf(&b, "  Created:  %s\n", FormatCreated(task, now))
	return b.String()
}

// WriteTasks prints one line per task, or a notice when there are none.
func (r *Renderer) WriteTasks(w io.Writer, tasks []domain.Task, isOverdue func(domain.Task) bool, now time.Time) {
	if len(tasks) == 0 {
		fmt.Fprintln(w, "No tasks found")
		return
	}
	for _, task := range tasks {
		fmt.Fprintln(w, r.TaskLine(task, isOverdue(task), now))
	}
}

// WriteDerived prints a live view frame: a header, the tasks and a summary.
func (r *Renderer) WriteDerived(w io.Writer, d *services.Derived, now time.Time) {
	header := fmt.Sprintf("%d of %d tasks", len(d.Tasks), d.Stats.TotalCount)
	if !d.Synced {
		header += " (syncing…)"
	}
	fmt.Fprintln(w, r.heading.Render(header))
	r.WriteTasks(w, d.Tasks, func(t domain.Task) bool { return t.IsOverdue(now) }, now)
	fmt.Fprintln(w, r.muted.Render(fmt.Sprintf("%d%% complete · updated %s", d.Stats.CompletionPercentage, d.ComputedAt.Format("15:04:05"))))
}

// WriteDashboard prints the statistics screen.
func (r *Renderer) WriteDashboard(w io.Writer, data *services.DashboardData) {
	stats := data.Statistics
	fmt.Fprintln(w, r.heading.Render("Tasks"))
	fmt.Fprintf(w, "  Total:     %s\n", humanize.Comma(int64(stats.TotalCount)))
	fmt.Fprintf(w, "  Completed: %d%%\n", stats.CompletionPercentage)
	overdue := fmt.Sprintf("%d", data.OverdueCount)
	if data.OverdueCount > 0 {
		overdue = r.overdue.Render(overdue)
	}
	fmt.Fprintf(w, "  Overdue:   %s\n", overdue)

	fmt.Fprintln(w, r.heading.Render("By status"))
	for _, status := range []domain.Status{domain.StatusPending, domain.StatusCompleted} {
		fmt.Fprintf(w, "  %-10s %d\n", status, services.Count(stats.CountsByStatus, status))
	}

	fmt.Fprintln(w, r.heading.Render("By priority"))
	for _, p := range domain.Priorities {
		fmt.Fprintf(w, "  %s %d\n", r.priorityStyle(p).Render(fmt.Sprintf("%-10s", p)), services.Count(stats.CountsByPriority, p))
	}
	for _, p := range unknownKeys(stats.CountsByPriority) {
		fmt.Fprintf(w, "  %s %d\n", r.fallback.Render(fmt.Sprintf("%-10s", p)), stats.CountsByPriority[p])
	}

	if len(stats.CountsByCategory) > 0 {
		fmt.Fprintln(w, r.heading.Render("By category"))
		categories := make([]string, 0, len(stats.CountsByCategory))
		for c := range stats.CountsByCategory {
			categories = append(categories, c)
		}
		sort.Strings(categories)
		for _, c := range categories {
			label := c
			if label == "" {
				label = "(none)"
			}
			fmt.Fprintf(w, "  %-10s %d\n", label, stats.CountsByCategory[c])
		}
	}
}

// unknownKeys returns priorities outside the known levels, sorted.
func unknownKeys(counts map[domain.Priority]int) []domain.Priority {
	var out []domain.Priority
	for p := range counts {
		if !p.IsValid() {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
