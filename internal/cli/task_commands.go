package cli

import (
	"context"
	"strings"

	"protask/internal/api"
	"protask/internal/domain"
	"protask/internal/errors"
)

// AddCommand handles the add command
type AddCommand struct {
	app         *App
	businessAPI api.BusinessAPI

	Description string
	Category    string
	Priority    string
	Due         string
}

// NewAddCommand creates a new add command handler
func NewAddCommand(app *App) *AddCommand {
	return &AddCommand{app: app, businessAPI: app.businessAPI}
}

// Execute creates a task titled by the joined args
func (c *AddCommand) Execute(ctx context.Context, args []string) error {
	fields := domain.TaskFields{
		Title:       strings.Join(args, " "),
		Description: c.Description,
		Category:    c.Category,
		DueDate:     parseDueDate(c.Due),
	}
	if c.Priority != "" {
		p, err := parsePriorityFlag(c.Priority)
		if err != nil {
			return err
		}
		fields.Priority = p
	}

	id, err := c.businessAPI.AddTask(ctx, fields)
	if err != nil {
		return err
	}
	c.app.printf("Added task %s: %s\n", ShortID(id), strings.TrimSpace(fields.Title))
	return nil
}

// EditCommand handles the edit command. Nil fields are left unchanged.
type EditCommand struct {
	app         *App
	businessAPI api.BusinessAPI

	Title       *string
	Description *string
	Category    *string
	Priority    *string
	Due         *string
}

// NewEditCommand creates a new edit command handler
func NewEditCommand(app *App) *EditCommand {
	return &EditCommand{app: app, businessAPI: app.businessAPI}
}

// Execute applies the set fields to the task named by args[0]
func (c *EditCommand) Execute(ctx context.Context, args []string) error {
	ref, err := taskRefArg(args)
	if err != nil {
		return err
	}

	patch := api.TaskPatch{
		Title:       c.Title,
		Description: c.Description,
		Category:    c.Category,
	}
	if c.Priority != nil {
		p, err := parsePriorityFlag(*c.Priority)
		if err != nil {
			return err
		}
		patch.Priority = &p
	}
	if c.Due != nil {
		due := parseDueDate(*c.Due)
		patch.DueDate = &due
	}

	task, err := c.businessAPI.EditTask(ctx, ref, patch)
	if err != nil {
		return err
	}
	c.app.printf("Updated task %s\n", ShortID(task.ID))
	c.app.printf("%s", c.app.renderer.TaskDetail(*task, c.businessAPI.IsOverdue(*task), timeNow()))
	return nil
}

// ShowCommand handles the show command
type ShowCommand struct {
	app         *App
	businessAPI api.BusinessAPI
}

// NewShowCommand creates a new show command handler
func NewShowCommand(app *App) *ShowCommand {
	return &ShowCommand{app: app, businessAPI: app.businessAPI}
}

// Execute prints every field of the task named by args[0]
func (c *ShowCommand) Execute(ctx context.Context, args []string) error {
	ref, err := taskRefArg(args)
	if err != nil {
		return err
	}
	task, err := c.businessAPI.GetTask(ctx, ref)
	if err != nil {
		return err
	}
	c.app.printf("%s", c.app.renderer.TaskDetail(*task, c.businessAPI.IsOverdue(*task), timeNow()))
	return nil
}

// ToggleCommand handles the toggle command
type ToggleCommand struct {
	app         *App
	businessAPI api.BusinessAPI
}

// NewToggleCommand creates a new toggle command handler
func NewToggleCommand(app *App) *ToggleCommand {
	return &ToggleCommand{app: app, businessAPI: app.businessAPI}
}

// Execute flips the status of the task named by args[0]
func (c *ToggleCommand) Execute(ctx context.Context, args []string) error {
	ref, err := taskRefArg(args)
	if err != nil {
		return err
	}
	task, status, err := c.businessAPI.ToggleTask(ctx, ref)
	if err != nil {
		return err
	}
	if status == domain.StatusCompleted {
		c.app.printf("Completed: %s\n", task.Title)
	} else {
		c.app.printf("Reopened: %s\n", task.Title)
	}
	return nil
}

func taskRefArg(args []string) (string, error) {
	if len(args) == 0 || strings.TrimSpace(args[0]) == "" {
		return "", errors.NewInvalidInputError("task", "", "a task ID is required")
	}
	if len(args) > 1 {
		return "", errors.NewInvalidInputError("task", strings.Join(args, " "), "expected a single task ID")
	}
	return args[0], nil
}
