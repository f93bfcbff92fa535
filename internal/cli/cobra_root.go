package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"protask/internal/api"
	"protask/internal/config"

	"github.com/spf13/cobra"
)

// Connector opens the task client for a loaded configuration. The returned
// closer releases everything the connector opened.
type Connector func(ctx context.Context, cfg *config.Config) (api.BusinessAPI, io.Closer, error)

// RootCommand represents the base command when called without any subcommands
type RootCommand struct {
	cmd     *cobra.Command
	loader  *config.Loader
	connect Connector

	config      *config.Config
	businessAPI api.BusinessAPI
	closer      io.Closer

	in           io.Reader
	errorHandler *ErrorHandler
}

// NewRootCommand creates the root cobra command with global flags. The
// configuration is loaded and the client connected once flags are parsed.
func NewRootCommand(loader *config.Loader, connect Connector) *RootCommand {
	root := &RootCommand{
		loader:       loader,
		connect:      connect,
		in:           os.Stdin,
		errorHandler: NewErrorHandler(),
	}

	root.cmd = &cobra.Command{
		Use:   "protask",
		Short: "A command-line task manager with live synced views",
		Long: `protask manages a personal task list kept in a document store and shows
filtered, sorted views of it that stay current as the store changes.

FEATURES:
  • Sign up, log in and reset your password; the session survives restarts
  • Add, edit, complete and delete tasks with priority, category and due date
  • Filter by status, category, text and due date; sort by due date,
    priority or creation time
  • Watch a view update live as tasks change
  • Statistics by status, priority and category, including overdue tasks
  • Store documents in a local SQLite file or a shared PostgreSQL database

EXAMPLES:
  protask signup ada@example.com              # Create an account
  protask add "Write report" --due tomorrow   # Add a task due tomorrow
  protask list --status pending --sort priority --dir desc
  protask list --range past                   # Tasks whose due date has passed
  protask list --watch                        # Live view, Ctrl-C to stop
  protask toggle 1a2b3c4d                     # Complete or reopen a task
  protask stats                               # Completion and breakdowns

CONFIGURATION:
  Configuration follows this priority order: command-line flags > environment
  variables > config file (PROTASK_CONFIG or ~/.protask/config.yaml) > defaults

  Database Configuration:
    PROTASK_DB_BACKEND                      Document backend: sqlite or postgres (default: sqlite)
    PROTASK_DB_DIR                          Database directory (default: ~/.protask)
    PROTASK_DB_FILENAME                     Database filename (default: protask.db)
    PROTASK_POSTGRES_URL                    PostgreSQL connection URL for the postgres backend
    PROTASK_DB_QUERY_TIMEOUT                Query timeout (default: 10s)
    PROTASK_DB_WRITE_TIMEOUT                Write timeout (default: 5s)

  Display Configuration:
    PROTASK_DISPLAY_DATE_FORMAT             Due date format (default: Jan 2, 2006)
    PROTASK_DISPLAY_TITLE_WIDTH             Title column width (default: 40)
    PROTASK_DISPLAY_COLOR                   Colored output (default: true; NO_COLOR disables)

  Application Configuration:
    PROTASK_APP_TIMEOUT                     Command timeout (default: 60s)
    PROTASK_APP_VERBOSE                     Enable verbose output (default: false)
    PROTASK_DEBUG                           Print debug logging to stderr

GETTING HELP:
  protask [command] --help                  # Get help for any specific command
  protask completion bash                   # Generate bash completion script`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !needsClient(cmd) {
				return nil
			}
			return root.setup(cmd.Context())
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return root.teardown()
		},
	}

	// Add global flags for configuration overrides
	root.addGlobalFlags()

	// Add all subcommands
	root.addSubcommands()

	return root
}

// SetIO redirects prompts and output, mainly for tests
func (r *RootCommand) SetIO(in io.Reader, out io.Writer) {
	r.in = in
	r.cmd.SetOut(out)
	r.cmd.SetErr(out)
}

// SetArgs overrides os.Args[1:]
func (r *RootCommand) SetArgs(args []string) {
	r.cmd.SetArgs(args)
}

// Execute runs the root command and turns failures into user-facing messages
func (r *RootCommand) Execute() error {
	err := r.cmd.Execute()
	// PostRun is skipped when the command fails
	if closeErr := r.teardown(); err == nil {
		err = closeErr
	}
	return r.errorHandler.HandleSimple(err)
}

// addGlobalFlags adds global configuration flags
func (r *RootCommand) addGlobalFlags() {
	flags := r.cmd.PersistentFlags()

	flags.String("config", "", "Config file (overrides PROTASK_CONFIG)")

	// Database configuration
	flags.String("backend", "", "Document backend, sqlite or postgres (overrides PROTASK_DB_BACKEND)")
	flags.String("db-dir", "", "Database directory (overrides PROTASK_DB_DIR)")
	flags.String("db-filename", "", "Database filename (overrides PROTASK_DB_FILENAME)")
	flags.String("postgres-url", "", "PostgreSQL connection URL (overrides PROTASK_POSTGRES_URL)")
	flags.Duration("db-query-timeout", 0, "Database query timeout (overrides PROTASK_DB_QUERY_TIMEOUT)")
	flags.Duration("db-write-timeout", 0, "Database write timeout (overrides PROTASK_DB_WRITE_TIMEOUT)")

	// Display configuration
	flags.String("date-format", "", "Due date display format (overrides PROTASK_DISPLAY_DATE_FORMAT)")
	flags.Int("title-width", 0, "Title column width (overrides PROTASK_DISPLAY_TITLE_WIDTH)")
	flags.Bool("no-color", false, "Disable colored output (overrides PROTASK_DISPLAY_COLOR)")

	// Application configuration
	flags.Duration("app-timeout", 0, "Command timeout (overrides PROTASK_APP_TIMEOUT)")
	flags.Bool("verbose", false, "Enable verbose output (overrides PROTASK_APP_VERBOSE)")
}

// overridesFromFlags collects the flags the user actually set
func (r *RootCommand) overridesFromFlags() *config.ConfigOverrides {
	flags := r.cmd.PersistentFlags()
	overrides := &config.ConfigOverrides{}

	if flags.Changed("backend") {
		v, _ := flags.GetString("backend")
		overrides.Backend = &v
	}
	if flags.Changed("db-dir") {
		v, _ := flags.GetString("db-dir")
		overrides.DBDir = &v
	}
	if flags.Changed("db-filename") {
		v, _ := flags.GetString("db-filename")
		overrides.DBFilename = &v
	}
	if flags.Changed("postgres-url") {
		v, _ := flags.GetString("postgres-url")
		overrides.PostgresURL = &v
	}
	if flags.Changed("db-query-timeout") {
		v, _ := flags.GetDuration("db-query-timeout")
		overrides.DBQueryTimeout = &v
	}
	if flags.Changed("db-write-timeout") {
		v, _ := flags.GetDuration("db-write-timeout")
		overrides.DBWriteTimeout = &v
	}

	if flags.Changed("date-format") {
		v, _ := flags.GetString("date-format")
		overrides.DateFormat = &v
	}
	if flags.Changed("title-width") {
		v, _ := flags.GetInt("title-width")
		overrides.TitleWidth = &v
	}
	if noColor, _ := flags.GetBool("no-color"); noColor {
		color := false
		overrides.Color = &color
	}

	if flags.Changed("app-timeout") {
		v, _ := flags.GetDuration("app-timeout")
		overrides.Timeout = &v
	}
	if flags.Changed("verbose") {
		v, _ := flags.GetBool("verbose")
		overrides.Verbose = &v
	}

	return overrides
}

// setup loads the configuration and connects the client
func (r *RootCommand) setup(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if path, _ := r.cmd.PersistentFlags().GetString("config"); path != "" {
		r.loader.WithFile(path)
	}

	cfg, err := r.loader.LoadWithOverrides(r.overridesFromFlags())
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	r.config = cfg

	if cfg.Application.Verbose {
		fmt.Fprintf(r.cmd.ErrOrStderr(), "using %s documents, accounts in %s\n", cfg.Database.Backend, cfg.GetDatabasePath())
	}

	ctx, cancel := context.WithTimeout(ctx, r.getAppTimeout())
	defer cancel()
	businessAPI, closer, err := r.connect(ctx, cfg)
	if err != nil {
		return err
	}
	r.businessAPI = businessAPI
	r.closer = closer
	return nil
}

// teardown closes the client once
func (r *RootCommand) teardown() error {
	if r.closer == nil {
		return nil
	}
	closer := r.closer
	r.closer = nil
	return closer.Close()
}

// newApp builds the App the command handlers run against
func (r *RootCommand) newApp() *App {
	return NewAppWithConfig(r.businessAPI, r.config).WithIO(r.in, r.cmd.OutOrStdout())
}

// run executes a handler under the application timeout
func (r *RootCommand) run(command Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), r.getAppTimeout())
	defer cancel()
	return command.Execute(ctx, args)
}

// runInteractive executes a handler that waits on the user, so it gets
// twice the application timeout
func (r *RootCommand) runInteractive(command Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), r.getAppTimeout()*2)
	defer cancel()
	return command.Execute(ctx, args)
}

// addSubcommands adds all CLI subcommands to the root command
func (r *RootCommand) addSubcommands() {
	r.cmd.AddCommand(r.accountCommands()...)
	r.cmd.AddCommand(r.taskCommands()...)
	r.cmd.AddCommand(r.viewCommands()...)
}

func (r *RootCommand) accountCommands() []*cobra.Command {
	var signUpPassword, signUpName string
	signUpCmd := &cobra.Command{
		Use:   "signup <email>",
		Short: "Create an account and sign in",
		Long:  "Create an account with an email, password and display name. Missing values are prompted for.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			handler := NewSignUpCommand(r.newApp())
			handler.Password = signUpPassword
			handler.DisplayName = signUpName
			return r.runInteractive(handler, args)
		},
	}
	signUpCmd.Flags().StringVar(&signUpPassword, "password", "", "Account password")
	signUpCmd.Flags().StringVar(&signUpName, "name", "", "Display name")

	var logInPassword string
	logInCmd := &cobra.Command{
		Use:   "login <email>",
		Short: "Sign in to an existing account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			handler := NewLogInCommand(r.newApp())
			handler.Password = logInPassword
			return r.runInteractive(handler, args)
		},
	}
	logInCmd.Flags().StringVar(&logInPassword, "password", "", "Account password")

	logOutCmd := &cobra.Command{
		Use:   "logout",
		Short: "Sign out",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.run(NewLogOutCommand(r.newApp()), args)
		},
	}

	whoAmICmd := &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.run(NewWhoAmICommand(r.newApp()), args)
		},
	}

	var resetToken, resetPassword string
	resetCmd := &cobra.Command{
		Use:   "reset-password [email]",
		Short: "Request or complete a password reset",
		Long: `Request a reset token for an email, then use it to set a new password.

Examples:
  protask reset-password ada@example.com             # Issue a reset token
  protask reset-password --token <token>             # Set a new password (prompted)`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			handler := NewResetPasswordCommand(r.newApp())
			handler.Token = resetToken
			handler.NewPassword = resetPassword
			return r.runInteractive(handler, args)
		},
	}
	resetCmd.Flags().StringVar(&resetToken, "token", "", "Reset token to confirm")
	resetCmd.Flags().StringVar(&resetPassword, "new-password", "", "New password, with --token")

	profileCmd := &cobra.Command{
		Use:   "profile",
		Short: "Manage your profile",
	}
	profileCmd.AddCommand(&cobra.Command{
		Use:   "set-name <name>",
		Short: "Change your display name",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.run(NewProfileCommand(r.newApp()), append([]string{"set-name"}, args...))
		},
	})

	return []*cobra.Command{signUpCmd, logInCmd, logOutCmd, whoAmICmd, resetCmd, profileCmd}
}

func (r *RootCommand) taskCommands() []*cobra.Command {
	var add AddCommand
	addCmd := &cobra.Command{
		Use:   "add <title>",
		Short: "Add a pending task",
		Long: `Add a pending task. Priority defaults to medium.

Due dates are YYYY-MM-DD or one of today, tomorrow and +Nd.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			handler := NewAddCommand(r.newApp())
			handler.Description = add.Description
			handler.Category = add.Category
			handler.Priority = add.Priority
			handler.Due = add.Due
			return r.run(handler, args)
		},
	}
	addCmd.Flags().StringVarP(&add.Description, "description", "d", "", "Task description")
	addCmd.Flags().StringVarP(&add.Category, "category", "c", "", "Task category")
	addCmd.Flags().StringVarP(&add.Priority, "priority", "p", "", "low, medium or high")
	addCmd.Flags().StringVar(&add.Due, "due", "", "Due date")

	editCmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Change the fields of a task",
		Long:  "Change the fields of a task. Only the flags given are written; pass an empty --due or --category to clear it.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			handler := NewEditCommand(r.newApp())
			handler.Title = changedString(cmd, "title")
			handler.Description = changedString(cmd, "description")
			handler.Category = changedString(cmd, "category")
			handler.Priority = changedString(cmd, "priority")
			handler.Due = changedString(cmd, "due")
			return r.run(handler, args)
		},
	}
	editCmd.Flags().String("title", "", "New title")
	editCmd.Flags().StringP("description", "d", "", "New description")
	editCmd.Flags().StringP("category", "c", "", "New category")
	editCmd.Flags().StringP("priority", "p", "", "low, medium or high")
	editCmd.Flags().String("due", "", "New due date")

	showCmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show every field of a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.run(NewShowCommand(r.newApp()), args)
		},
	}

	toggleCmd := &cobra.Command{
		Use:   "toggle <id>",
		Short: "Complete a pending task or reopen a completed one",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.run(NewToggleCommand(r.newApp()), args)
		},
	}

	var yes bool
	deleteCmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a task",
		Long: `Delete a task. This operation cannot be undone; you are asked to
confirm unless --yes is given.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			handler := NewDeleteCommand(r.newApp())
			handler.Yes = yes
			return r.runInteractive(handler, args)
		},
	}
	deleteCmd.Flags().BoolVarP(&yes, "yes", "y", false, "Delete without asking")

	return []*cobra.Command{addCmd, editCmd, showCmd, toggleCmd, deleteCmd}
}

func (r *RootCommand) viewCommands() []*cobra.Command {
	var opts ListOptions
	listCmd := &cobra.Command{
		Use:   "list [search]",
		Short: "List tasks",
		Long: `List tasks with optional filtering and sorting.

Text filters match title and description (case-insensitive).
Date ranges: all, today, past, or custom with --from and/or --to.

Examples:
  protask list                                # Everything, soonest due first
  protask list report                         # Tasks mentioning "report"
  protask list --category work --status pending
  protask list --from 2024-06-01 --to 2024-06-30
  protask list --sort createdAt --dir desc --watch`,
		RunE: func(cmd *cobra.Command, args []string) error {
			handler := NewListCommand(r.newApp())
			handler.Options = opts
			handler.Options.Category = changedString(cmd, "category")
			if !opts.Watch {
				return r.run(handler, args)
			}
			// A watch runs until interrupted
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
			defer stop()
			return handler.Execute(ctx, args)
		},
	}
	listCmd.Flags().StringVarP(&opts.Status, "status", "s", "", "all, pending or completed")
	listCmd.Flags().StringP("category", "c", "", "Only this category; empty for uncategorized")
	listCmd.Flags().StringVarP(&opts.Search, "search", "q", "", "Text to search for")
	listCmd.Flags().StringVarP(&opts.Range, "range", "r", "", "all, today, past or custom")
	listCmd.Flags().StringVar(&opts.From, "from", "", "Custom range start date")
	listCmd.Flags().StringVar(&opts.To, "to", "", "Custom range end date")
	listCmd.Flags().StringVar(&opts.Sort, "sort", "", "dueDate, priority or createdAt")
	listCmd.Flags().StringVar(&opts.Direction, "dir", "", "asc or desc")
	listCmd.Flags().BoolVarP(&opts.Watch, "watch", "w", false, "Keep the view open and redraw on changes")

	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Show task statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.run(NewStatsCommand(r.newApp()), args)
		},
	}

	categoriesCmd := &cobra.Command{
		Use:   "categories",
		Short: "List the categories in use",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.run(NewCategoriesCommand(r.newApp()), args)
		},
	}

	return []*cobra.Command{listCmd, statsCmd, categoriesCmd}
}

// needsClient is false for the built-in help and completion commands
func needsClient(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		switch c.Name() {
		case "help", cobra.ShellCompRequestCmd, cobra.ShellCompNoDescRequestCmd, "completion":
			return false
		}
	}
	return true
}

// changedString returns the flag value only when the user set it
func changedString(cmd *cobra.Command, name string) *string {
	if !cmd.Flags().Changed(name) {
		return nil
	}
	v, _ := cmd.Flags().GetString(name)
	return &v
}

// getAppTimeout returns the configured application timeout
func (r *RootCommand) getAppTimeout() time.Duration {
	if r.config != nil {
		return r.config.Application.Timeout
	}
	return 60 * time.Second // Default timeout
}
