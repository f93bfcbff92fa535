package cli

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"protask/internal/api"
	"protask/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingCloser struct{ closed int }

func (c *countingCloser) Close() error {
	c.closed++
	return nil
}

// rootHarness runs cobra invocations against one shared mock
type rootHarness struct {
	t          *testing.T
	configPath string
	mock       *mockBusinessAPI
	closer     *countingCloser
	connects   int
	lastConfig *config.Config
}

func newRootHarness(t *testing.T, configYAML string) *rootHarness {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(configYAML), 0o600))

	prevNow := timeNow
	timeNow = func() time.Time { return cliNow }
	t.Cleanup(func() { timeNow = prevNow })

	return &rootHarness{t: t, configPath: path, mock: newMockBusinessAPI(), closer: &countingCloser{}}
}

func (h *rootHarness) connect(ctx context.Context, cfg *config.Config) (api.BusinessAPI, io.Closer, error) {
	h.connects++
	h.lastConfig = cfg
	return h.mock, h.closer, nil
}

// run executes one command line and returns its output
func (h *rootHarness) run(input string, args ...string) (string, error) {
	root := NewRootCommand(config.NewLoader().WithFile(h.configPath), h.connect)
	var out bytes.Buffer
	root.SetIO(strings.NewReader(input), &out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestRootCommand_Workflow(t *testing.T) {
	h := newRootHarness(t, "display:\n  color: false\n")

	_, err := h.run("", "whoami")
	require.Error(t, err)
	assert.Equal(t, "Please log in or sign up to continue.", err.Error())

	out, err := h.run("", "signup", "ada@example.com", "--password", "secret1", "--name", "Ada")
	require.NoError(t, err)
	assert.Equal(t, "Welcome, Ada! Signed in as ada@example.com\n", out)

	out, err = h.run("", "add", "Write", "report", "-c", "work", "-p", "high", "--due", "2024-06-10")
	require.NoError(t, err)
	assert.Equal(t, "Added task 00000001: Write report\n", out)

	out, err = h.run("", "edit", "00000001", "--due", "", "--title", "Write the report")
	require.NoError(t, err)
	assert.Contains(t, out, "Write the report (")
	assert.NotContains(t, out, "Due:")

	out, err = h.run("", "list", "--category", "work", "--sort", "priority", "--dir", "desc")
	require.NoError(t, err)
	assert.Equal(t, "00000001  [ ]  Write the report  High  #work  created 1 hour ago\n", out)

	out, err = h.run("", "list", "--category", "")
	require.NoError(t, err)
	assert.Equal(t, "No tasks found\n", out)

	out, err = h.run("n\n", "delete", "00000001")
	require.NoError(t, err)
	assert.Contains(t, out, "Delete cancelled.")

	out, err = h.run("", "delete", "--yes", "00000001")
	require.NoError(t, err)
	assert.Equal(t, "Deleted task: Write the report\n", out)

	assert.Equal(t, h.connects, h.closer.closed, "every connection is closed")
}

func TestRootCommand_FlagsOverrideConfig(t *testing.T) {
	h := newRootHarness(t, "display:\n  color: false\n  title_width: 30\n")
	dir := t.TempDir()

	_, err := h.run("", "--title-width", "12", "--db-dir", dir, "--app-timeout", "5s", "logout")
	require.NoError(t, err)

	require.NotNil(t, h.lastConfig)
	assert.Equal(t, 12, h.lastConfig.Display.TitleWidth)
	assert.Equal(t, dir, h.lastConfig.Database.Dir)
	assert.Equal(t, 5*time.Second, h.lastConfig.Application.Timeout)
	assert.False(t, h.lastConfig.Display.Color)

	_, err = h.run("", "logout")
	require.NoError(t, err)
	assert.Equal(t, 30, h.lastConfig.Display.TitleWidth)
}

func TestRootCommand_InvalidConfiguration(t *testing.T) {
	h := newRootHarness(t, "database:\n  backend: mongo\n")

	_, err := h.run("", "stats")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database.backend")
	assert.Zero(t, h.connects)

	// overrides are validated too
	h = newRootHarness(t, "")
	_, err = h.run("", "--backend", "postgres", "stats")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "postgres_url")
	assert.Zero(t, h.connects)
}

func TestRootCommand_HelpDoesNotConnect(t *testing.T) {
	h := newRootHarness(t, "")

	out, err := h.run("", "--help")
	require.NoError(t, err)
	assert.Contains(t, out, "protask manages a personal task list")

	out, err = h.run("", "help", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "--watch")

	assert.Zero(t, h.connects)
}

func TestRootCommand_ArgumentChecks(t *testing.T) {
	h := newRootHarness(t, "display:\n  color: false\n")

	_, err := h.run("", "toggle")
	require.Error(t, err)
	_, err = h.run("", "stats", "extra")
	require.Error(t, err)
	assert.Equal(t, h.connects, h.closer.closed)
}
