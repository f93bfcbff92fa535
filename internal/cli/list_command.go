package cli

import (
	"context"
	"strings"
	"time"

	"protask/internal/api"
	"protask/internal/domain"
	"protask/internal/errors"
	"protask/internal/services"
)

// clearScreen homes the cursor and clears the terminal between watch frames
const clearScreen = "\033[H\033[2J"

// ListOptions are the view flags of the list command. Empty strings keep
// the default for that part of the view.
type ListOptions struct {
	Status    string
	Category  *string // nil lists every category; "" lists uncategorized tasks
	Search    string
	Range     string
	From      string
	To        string
	Sort      string
	Direction string
	Watch     bool
}

// ListCommand handles the list command
type ListCommand struct {
	app         *App
	businessAPI api.BusinessAPI

	Options ListOptions
}

// NewListCommand creates a new list command handler
func NewListCommand(app *App) *ListCommand {
	return &ListCommand{app: app, businessAPI: app.businessAPI}
}

// Execute runs the list command. Positional args are a search phrase.
func (c *ListCommand) Execute(ctx context.Context, args []string) error {
	opts := c.Options
	if opts.Search == "" && len(args) > 0 {
		opts.Search = strings.Join(args, " ")
	}

	spec, err := BuildViewSpec(opts, timeNow().Location())
	if err != nil {
		return err
	}

	if opts.Watch {
		return c.watchTasks(ctx, spec)
	}
	return c.listTasks(ctx, spec)
}

func (c *ListCommand) listTasks(ctx context.Context, spec domain.ViewSpec) error {
	tasks, err := c.businessAPI.ListTasks(ctx, spec)
	if err != nil {
		return err
	}
	c.app.warnIfNotLoaded()
	c.app.renderer.WriteTasks(c.app.out, tasks, c.businessAPI.IsOverdue, timeNow())
	return nil
}

// watchTasks redraws the view on every change until ctx is done
func (c *ListCommand) watchTasks(ctx context.Context, spec domain.ViewSpec) error {
	return c.businessAPI.WatchTasks(ctx, spec, func(d *services.Derived) {
		if c.app.renderer.color {
			c.app.printf("%s", clearScreen)
		}
		c.app.renderer.WriteDerived(c.app.out, d, timeNow())
	})
}

// BuildViewSpec turns list flags into a view. Custom bounds are calendar
// dates in loc; giving either bound implies the custom range.
func BuildViewSpec(opts ListOptions, loc *time.Location) (domain.ViewSpec, error) {
	spec := domain.DefaultViewSpec()
	spec.Search = strings.TrimSpace(opts.Search)
	if opts.Category != nil {
		spec = spec.WithCategory(*opts.Category)
	} else {
		spec = spec.WithAllCategories()
	}

	if opts.Status != "" {
		status, err := domain.ParseStatusFilter(opts.Status)
		if err != nil {
			return spec, errors.NewInvalidInputError("status", opts.Status, err.Error())
		}
		spec.Status = status
	}

	if opts.Sort != "" {
		key, err := domain.ParseSortKey(opts.Sort)
		if err != nil {
			return spec, errors.NewInvalidInputError("sort", opts.Sort, err.Error())
		}
		spec.SortKey = key
	}
	if opts.Direction != "" {
		dir, err := domain.ParseSortDirection(opts.Direction)
		if err != nil {
			return spec, errors.NewInvalidInputError("direction", opts.Direction, err.Error())
		}
		spec.SortDirection = dir
	}

	if opts.Range != "" {
		mode, err := domain.ParseDateRangeMode(opts.Range)
		if err != nil {
			return spec, errors.NewInvalidInputError("range", opts.Range, err.Error())
		}
		spec.DateRange.Mode = mode
	}
	if opts.From != "" || opts.To != "" {
		if opts.Range != "" && spec.DateRange.Mode != domain.DateRangeCustom {
			return spec, errors.NewInvalidInputError("range", opts.Range, "--from and --to need the custom range")
		}
		spec.DateRange.Mode = domain.DateRangeCustom
	}
	if opts.From != "" {
		start, ok := domain.ParseDate(opts.From, loc)
		if !ok {
			return spec, errors.NewInvalidInputError("from", opts.From, "expected a date like 2024-06-01")
		}
		spec.DateRange.Start = &start
	}
	if opts.To != "" {
		end, ok := domain.ParseDate(opts.To, loc)
		if !ok {
			return spec, errors.NewInvalidInputError("to", opts.To, "expected a date like 2024-06-30")
		}
		spec.DateRange.End = &end
	}

	return spec, nil
}
