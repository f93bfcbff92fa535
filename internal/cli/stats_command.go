package cli

import (
	"context"

	"protask/internal/api"
)

// StatsCommand handles the stats command
type StatsCommand struct {
	app         *App
	businessAPI api.BusinessAPI
}

// NewStatsCommand creates a new stats command handler
func NewStatsCommand(app *App) *StatsCommand {
	return &StatsCommand{app: app, businessAPI: app.businessAPI}
}

// Execute prints totals, completion and the per-status, per-priority and
// per-category breakdowns
func (c *StatsCommand) Execute(ctx context.Context, args []string) error {
	data, err := c.businessAPI.GetDashboardData(ctx)
	if err != nil {
		return err
	}
	c.app.warnIfNotLoaded()
	c.app.renderer.WriteDashboard(c.app.out, data)
	return nil
}

// CategoriesCommand handles the categories command
type CategoriesCommand struct {
	app         *App
	businessAPI api.BusinessAPI
}

// NewCategoriesCommand creates a new categories command handler
func NewCategoriesCommand(app *App) *CategoriesCommand {
	return &CategoriesCommand{app: app, businessAPI: app.businessAPI}
}

// Execute prints the categories in use, one per line
func (c *CategoriesCommand) Execute(ctx context.Context, args []string) error {
	categories, err := c.businessAPI.ListCategories(ctx)
	if err != nil {
		return err
	}
	c.app.warnIfNotLoaded()
	if len(categories) == 0 {
		c.app.printf("No categories\n")
		return nil
	}
	for _, category := range categories {
		c.app.printf("%s\n", category)
	}
	return nil
}
