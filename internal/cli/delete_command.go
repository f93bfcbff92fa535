package cli

import (
	"context"
	"fmt"

	"protask/internal/api"
)

// DeleteCommand handles the delete command
type DeleteCommand struct {
	app         *App
	businessAPI api.BusinessAPI

	// Yes skips the confirmation prompt
	Yes bool
}

// NewDeleteCommand creates a new delete command handler
func NewDeleteCommand(app *App) *DeleteCommand {
	return &DeleteCommand{app: app, businessAPI: app.businessAPI}
}

// Execute runs the delete command
func (c *DeleteCommand) Execute(ctx context.Context, args []string) error {
	return c.deleteTask(ctx, args)
}

// deleteTask resolves the task, confirms, then removes it
func (c *DeleteCommand) deleteTask(ctx context.Context, args []string) error {
	ref, err := taskRefArg(args)
	if err != nil {
		return err
	}

	task, err := c.businessAPI.GetTask(ctx, ref)
	if err != nil {
		return err
	}

	if !c.Yes {
		ok, err := c.app.confirm(fmt.Sprintf("Delete %q?", task.Title))
		if err != nil {
			return err
		}
		if !ok {
			c.app.printf("Delete cancelled.\n")
			return nil
		}
	}

	// Delete by full id so a concurrent change cannot redirect the ref
	if err := c.businessAPI.DeleteTask(ctx, task.ID); err != nil {
		return err
	}

	c.app.printf("Deleted task: %s\n", task.Title)
	return nil
}
