package cli

import (
	"context"

	"protask/internal/errors"
)

// Command represents a CLI command
type Command interface {
	Execute(ctx context.Context, args []string) error
}

// CommandRegistry manages all available commands
type CommandRegistry struct {
	commands map[string]Command
}

// NewCommandRegistry creates a new command registry
func NewCommandRegistry(app *App) *CommandRegistry {
	registry := &CommandRegistry{
		commands: make(map[string]Command),
	}

	// Account commands
	registry.Register("signup", NewSignUpCommand(app))
	registry.Register("login", NewLogInCommand(app))
	registry.Register("logout", NewLogOutCommand(app))
	registry.Register("whoami", NewWhoAmICommand(app))
	registry.Register("reset-password", NewResetPasswordCommand(app))
	registry.Register("profile", NewProfileCommand(app))

	// Task commands
	registry.Register("add", NewAddCommand(app))
	registry.Register("edit", NewEditCommand(app))
	registry.Register("show", NewShowCommand(app))
	registry.Register("toggle", NewToggleCommand(app))
	registry.Register("delete", NewDeleteCommand(app))

	// View commands
	registry.Register("list", NewListCommand(app))
	registry.Register("stats", NewStatsCommand(app))
	registry.Register("categories", NewCategoriesCommand(app))

	return registry
}

// Register adds a command to the registry
func (r *CommandRegistry) Register(name string, command Command) {
	r.commands[name] = command
}

// Execute runs the specified command with the given arguments
func (r *CommandRegistry) Execute(ctx context.Context, commandName string, args []string) error {
	command, exists := r.commands[commandName]
	if !exists {
		return errors.NewInvalidInputError("command", commandName, "unknown command")
	}
	return command.Execute(ctx, args)
}

// GetUsage returns the usage string for the CLI
func (r *CommandRegistry) GetUsage() string {
	return "usage: protask signup|login|logout|whoami|reset-password|profile set-name " +
		"or protask add \"title\" or protask edit|show|toggle|delete <id> " +
		"or protask list [search] or protask stats or protask categories"
}
