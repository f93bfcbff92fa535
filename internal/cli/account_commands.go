package cli

import (
	"context"
	"strings"

	"protask/internal/api"
	"protask/internal/errors"
)

// SignUpCommand handles the signup command
type SignUpCommand struct {
	app         *App
	businessAPI api.BusinessAPI

	// Password and DisplayName are prompted for when empty
	Password    string
	DisplayName string
}

// NewSignUpCommand creates a new signup command handler
func NewSignUpCommand(app *App) *SignUpCommand {
	return &SignUpCommand{app: app, businessAPI: app.businessAPI}
}

// Execute registers the account named by args[0] and signs it in
func (c *SignUpCommand) Execute(ctx context.Context, args []string) error {
	email, err := emailArg(args)
	if err != nil {
		return err
	}

	password := c.Password
	if password == "" {
		if password, err = c.app.prompt("Password: "); err != nil {
			return err
		}
	}
	name := c.DisplayName
	if name == "" {
		if name, err = c.app.prompt("Display name: "); err != nil {
			return err
		}
	}

	identity, err := c.businessAPI.SignUp(ctx, email, password, name)
	if err != nil {
		return err
	}
	c.app.printf("Welcome, %s! Signed in as %s\n", identity.DisplayName, identity.Email)
	return nil
}

// LogInCommand handles the login command
type LogInCommand struct {
	app         *App
	businessAPI api.BusinessAPI

	// Password is prompted for when empty
	Password string
}

// NewLogInCommand creates a new login command handler
func NewLogInCommand(app *App) *LogInCommand {
	return &LogInCommand{app: app, businessAPI: app.businessAPI}
}

// Execute signs in the account named by args[0]
func (c *LogInCommand) Execute(ctx context.Context, args []string) error {
	email, err := emailArg(args)
	if err != nil {
		return err
	}

	password := c.Password
	if password == "" {
		if password, err = c.app.prompt("Password: "); err != nil {
			return err
		}
	}

	identity, err := c.businessAPI.LogIn(ctx, email, password)
	if err != nil {
		return err
	}
	c.app.printf("Welcome back, %s!\n", identity.DisplayName)
	return nil
}

// LogOutCommand handles the logout command
type LogOutCommand struct {
	app         *App
	businessAPI api.BusinessAPI
}

// NewLogOutCommand creates a new logout command handler
func NewLogOutCommand(app *App) *LogOutCommand {
	return &LogOutCommand{app: app, businessAPI: app.businessAPI}
}

// Execute ends the session
func (c *LogOutCommand) Execute(ctx context.Context, args []string) error {
	if err := c.businessAPI.LogOut(ctx); err != nil {
		return err
	}
	c.app.printf("Signed out\n")
	return nil
}

// WhoAmICommand handles the whoami command
type WhoAmICommand struct {
	app         *App
	businessAPI api.BusinessAPI
}

// NewWhoAmICommand creates a new whoami command handler
func NewWhoAmICommand(app *App) *WhoAmICommand {
	return &WhoAmICommand{app: app, businessAPI: app.businessAPI}
}

// Execute prints the signed-in identity
func (c *WhoAmICommand) Execute(ctx context.Context, args []string) error {
	identity, err := c.businessAPI.WhoAmI(ctx)
	if err != nil {
		return err
	}
	c.app.printf("%s <%s>\n", identity.DisplayName, identity.Email)
	return nil
}

// ResetPasswordCommand handles both halves of a password reset. Without a
// token it requests one for args[0]; with a token it sets the new password.
type ResetPasswordCommand struct {
	app         *App
	businessAPI api.BusinessAPI

	Token       string
	NewPassword string
}

// NewResetPasswordCommand creates a new reset-password command handler
func NewResetPasswordCommand(app *App) *ResetPasswordCommand {
	return &ResetPasswordCommand{app: app, businessAPI: app.businessAPI}
}

// Execute requests or confirms a reset
func (c *ResetPasswordCommand) Execute(ctx context.Context, args []string) error {
	if c.Token == "" {
		email, err := emailArg(args)
		if err != nil {
			return err
		}
		if err := c.businessAPI.RequestPasswordReset(ctx, email); err != nil {
			return err
		}
		c.app.printf("If an account exists for %s, a reset token has been issued.\n", email)
		return nil
	}

	password := c.NewPassword
	if password == "" {
		var err error
		if password, err = c.app.prompt("New password: "); err != nil {
			return err
		}
	}
	if err := c.businessAPI.ConfirmPasswordReset(ctx, c.Token, password); err != nil {
		return err
	}
	c.app.printf("Password updated. Log in with the new password.\n")
	return nil
}

// ProfileCommand handles profile subcommands. The only one is set-name.
type ProfileCommand struct {
	app         *App
	businessAPI api.BusinessAPI
}

// NewProfileCommand creates a new profile command handler
func NewProfileCommand(app *App) *ProfileCommand {
	return &ProfileCommand{app: app, businessAPI: app.businessAPI}
}

// Execute dispatches `profile set-name <name>`
func (c *ProfileCommand) Execute(ctx context.Context, args []string) error {
	if len(args) == 0 || args[0] != "set-name" {
		return errors.NewInvalidInputError("subcommand", strings.Join(args, " "), "usage: profile set-name <name>")
	}
	return c.SetName(ctx, strings.Join(args[1:], " "))
}

// SetName renames the signed-in identity
func (c *ProfileCommand) SetName(ctx context.Context, name string) error {
	identity, err := c.businessAPI.UpdateDisplayName(ctx, name)
	if err != nil {
		return err
	}
	c.app.printf("Display name set to %s\n", identity.DisplayName)
	return nil
}

func emailArg(args []string) (string, error) {
	if len(args) == 0 || strings.TrimSpace(args[0]) == "" {
		return "", errors.NewInvalidInputError("email", "", "an email address is required")
	}
	return strings.TrimSpace(args[0]), nil
}
