package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoader_DefaultsWithoutFile(t *testing.T) {
	isolate(t)

	cfg, err := NewLoader().Load()
	require.NoError(t, err)
	assert.Equal(t, NewConfig().Database.Filename, cfg.Database.Filename)
}

func TestLoader_ReadsDefaultFileLocation(t *testing.T) {
	home := isolate(t)
	writeFile(t, filepath.Join(home, ".protask", "config.yaml"), `
database:
  filename: tasks.db
validation:
  title_max_length: 120
`)

	cfg, err := NewLoader().Load()
	require.NoError(t, err)
	assert.Equal(t, "tasks.db", cfg.Database.Filename)
	assert.Equal(t, 120, cfg.Validation.TitleMaxLength)
	assert.Equal(t, 2000, cfg.Validation.DescriptionMaxLength, "unset keys keep defaults")
}

func TestLoader_CascadeOrder(t *testing.T) {
	home := isolate(t)
	path := filepath.Join(home, "custom.yaml")
	writeFile(t, path, `
database:
  filename: from-file.db
  query_timeout: 4s
application:
  timeout: 30s
`)
	t.Setenv(ConfigPathEnv, path)
	t.Setenv("PROTASK_DB_FILENAME", "from-env.db")

	timeout := 15 * time.Second
	cfg, err := NewLoader().LoadWithOverrides(&ConfigOverrides{Timeout: &timeout})
	require.NoError(t, err)

	assert.Equal(t, "from-env.db", cfg.Database.Filename, "env beats file")
	assert.Equal(t, 4*time.Second, cfg.Database.QueryTimeout, "file beats defaults")
	assert.Equal(t, 15*time.Second, cfg.Application.Timeout, "flags beat file")
}

func TestLoader_ExplicitFileMustExist(t *testing.T) {
	home := isolate(t)

	_, err := NewLoader().WithFile(filepath.Join(home, "missing.yaml")).Load()
	assert.Error(t, err)
}

func TestLoader_InvalidYAML(t *testing.T) {
	home := isolate(t)
	path := filepath.Join(home, "bad.yaml")
	writeFile(t, path, "database: [unclosed")

	_, err := NewLoader().WithFile(path).Load()
	assert.Error(t, err)
}

func TestLoader_OverridesAreValidated(t *testing.T) {
	isolate(t)
	backend := "mysql"

	_, err := NewLoader().LoadWithOverrides(&ConfigOverrides{Backend: &backend})
	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "database.backend", cfgErr.Field)
}

func TestLoader_ApplyOverrides(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	color := false
	width := 60
	verbose := true

	cfg, err := NewLoader().LoadWithOverrides(&ConfigOverrides{
		DBDir:      &dir,
		Color:      &color,
		TitleWidth: &width,
		Verbose:    &verbose,
	})
	require.NoError(t, err)
	assert.Equal(t, dir, cfg.Database.Dir)
	assert.False(t, cfg.Display.Color)
	assert.Equal(t, 60, cfg.Display.TitleWidth)
	assert.True(t, cfg.Application.Verbose)
}
