package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"protask/internal/api"
	"protask/internal/config"
	"protask/internal/domain"
	"protask/internal/errors"
)

// timeNow is a variable that can be replaced in tests
var timeNow = time.Now

// App represents the main CLI application
type App struct {
	businessAPI api.BusinessAPI
	config      *config.Config
	renderer    *Renderer
	registry    *CommandRegistry

	out io.Writer
	in  *bufio.Reader
}

// NewApp creates a new CLI application instance with default configuration
func NewApp(businessAPI api.BusinessAPI) *App {
	return NewAppWithConfig(businessAPI, config.NewConfig())
}

// NewAppWithConfig creates a new CLI application instance writing to stdout
// and prompting on stdin
func NewAppWithConfig(businessAPI api.BusinessAPI, cfg *config.Config) *App {
	if cfg == nil {
		cfg = config.NewConfig()
	}
	app := &App{
		businessAPI: businessAPI,
		config:      cfg,
		renderer:    NewRenderer(cfg),
		out:         os.Stdout,
		in:          bufio.NewReader(os.Stdin),
	}
	app.registry = NewCommandRegistry(app)
	return app
}

// WithIO redirects prompts and output, mainly for tests
func (a *App) WithIO(in io.Reader, out io.Writer) *App {
	a.in = bufio.NewReader(in)
	a.out = out
	return a
}

// Run executes the CLI application with the given arguments
func (a *App) Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("%s", a.registry.GetUsage())
	}

	commandName := args[0]
	commandArgs := args[1:]

	return a.registry.Execute(ctx, commandName, commandArgs)
}

// printf writes formatted output
func (a *App) printf(format string, args ...any) {
	fmt.Fprintf(a.out, format, args...)
}

// warnIfNotLoaded explains an empty result when the task subscription
// has failed
func (a *App) warnIfNotLoaded() {
	if err := a.businessAPI.LoadError(); err != nil {
		a.printf("Warning: %s\n", errors.GetUserMessage(err))
	}
}

// prompt asks for one line of input. Reaching the end of input with
// nothing typed is an error so that scripted runs fail instead of hanging.
func (a *App) prompt(label string) (string, error) {
	fmt.Fprint(a.out, label)
	line, err := a.in.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", errors.NewInvalidInputError("input", label, "no input provided")
	}
	return strings.TrimSpace(line), nil
}

// confirm asks a yes/no question; anything but y or yes is a no
func (a *App) confirm(question string) (bool, error) {
	answer, err := a.prompt(question + " [y/N]: ")
	if err != nil {
		return false, err
	}
	switch strings.ToLower(answer) {
	case "y", "yes":
		return true, nil
	}
	return false, nil
}

// today is the current day in the local zone
func today() time.Time {
	return domain.StartOfDay(timeNow())
}

// parseDueDate accepts a calendar date plus the shorthands today, tomorrow
// and +Nd. Empty input clears the due date. Anything else is passed through
// for validation to reject with a proper message.
func parseDueDate(s string) string {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "":
		return ""
	case "today":
		return domain.FormatDate(today())
	case "tomorrow":
		return domain.FormatDate(today().AddDate(0, 0, 1))
	}
	var days int
	if n, err := fmt.Sscanf(s, "+%dd", &days); err == nil && n == 1 && fmt.Sprintf("+%dd", days) == s {
		return domain.FormatDate(today().AddDate(0, 0, days))
	}
	return s
}

// parsePriorityFlag maps a flag value onto a known priority
func parsePriorityFlag(s string) (domain.Priority, error) {
	p, ok := domain.ParsePriority(s)
	if !ok {
		return "", errors.NewInvalidInputError("priority", s, "must be one of low, medium or high")
	}
	return p, nil
}
