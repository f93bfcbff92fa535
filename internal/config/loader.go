package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// ConfigPathEnv names the environment variable pointing at a config file.
const ConfigPathEnv = "PROTASK_CONFIG"

// Loader handles loading configuration from multiple sources
type Loader struct {
	config   *Config
	filePath string
	explicit bool
}

// NewLoader creates a new configuration loader. The config file is taken
// from PROTASK_CONFIG, falling back to ~/.protask/config.yaml.
func NewLoader() *Loader {
	l := &Loader{config: NewConfig()}
	if path := os.Getenv(ConfigPathEnv); path != "" {
		l.filePath = path
		l.explicit = true
	} else if home, err := os.UserHomeDir(); err == nil {
		l.filePath = filepath.Join(home, ".protask", "config.yaml")
	}
	return l
}

// WithFile makes the loader read path instead of the default location.
// Unlike the default location, a missing file is then an error.
func (l *Loader) WithFile(path string) *Loader {
	l.filePath = path
	l.explicit = true
	return l
}

// Load loads configuration using the cascading strategy:
// 1. Start with defaults
// 2. Override with the YAML config file, if present
// 3. Override with environment variables
// 4. Override with command line flags (LoadWithOverrides)
func (l *Loader) Load() (*Config, error) {
	if err := l.loadFromFile(); err != nil {
		return nil, err
	}

	if err := l.config.LoadFromEnvironment(); err != nil {
		return nil, err
	}

	if err := l.config.Validate(); err != nil {
		return nil, err
	}

	return l.config, nil
}

// LoadWithOverrides loads configuration and applies command line overrides
func (l *Loader) LoadWithOverrides(overrides *ConfigOverrides) (*Config, error) {
	config, err := l.Load()
	if err != nil {
		return nil, err
	}

	if overrides != nil {
		l.applyOverrides(config, overrides)
	}

	// Re-validate after applying overrides
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func (l *Loader) loadFromFile() error {
	if l.filePath == "" {
		return nil
	}
	data, err := os.ReadFile(l.filePath)
	if err != nil {
		if os.IsNotExist(err) && !l.explicit {
			return nil
		}
		return fmt.Errorf("read config file %s: %w", l.filePath, err)
	}
	if err := yaml.Unmarshal(data, l.config); err != nil {
		return fmt.Errorf("parse config file %s: %w", l.filePath, err)
	}
	return nil
}

// ConfigOverrides holds command line flag overrides
type ConfigOverrides struct {
	// Database overrides
	Backend        *string
	DBDir          *string
	DBFilename     *string
	PostgresURL    *string
	DBQueryTimeout *time.Duration
	DBWriteTimeout *time.Duration

	// Display overrides
	DateFormat *string
	TitleWidth *int
	Color      *bool

	// Application overrides
	Timeout *time.Duration
	Verbose *bool
}

// applyOverrides applies command line overrides to the configuration
func (l *Loader) applyOverrides(config *Config, overrides *ConfigOverrides) {
	if overrides.Backend != nil {
		config.Database.Backend = *overrides.Backend
	}
	if overrides.DBDir != nil {
		config.Database.Dir = *overrides.DBDir
	}
	if overrides.DBFilename != nil {
		config.Database.Filename = *overrides.DBFilename
	}
	if overrides.PostgresURL != nil {
		config.Database.PostgresURL = *overrides.PostgresURL
	}
	if overrides.DBQueryTimeout != nil {
		config.Database.QueryTimeout = *overrides.DBQueryTimeout
	}
	if overrides.DBWriteTimeout != nil {
		config.Database.WriteTimeout = *overrides.DBWriteTimeout
	}

	if overrides.DateFormat != nil {
		config.Display.DateFormat = *overrides.DateFormat
	}
	if overrides.TitleWidth != nil {
		config.Display.TitleWidth = *overrides.TitleWidth
	}
	if overrides.Color != nil {
		config.Display.Color = *overrides.Color
	}

	if overrides.Timeout != nil {
		config.Application.Timeout = *overrides.Timeout
	}
	if overrides.Verbose != nil {
		config.Application.Verbose = *overrides.Verbose
	}
}

// ParseDurationWithFallback parses a duration string with a fallback value
func ParseDurationWithFallback(s string, fallback time.Duration) time.Duration {
	if d, err := time.ParseDuration(s); err == nil {
		return d
	}
	return fallback
}

// ParseIntWithFallback parses an integer string with a fallback value
func ParseIntWithFallback(s string, fallback int) int {
	if i, err := strconv.Atoi(s); err == nil {
		return i
	}
	return fallback
}

// ParseBoolWithFallback parses a boolean string with a fallback value
func ParseBoolWithFallback(s string, fallback bool) bool {
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	return fallback
}

// ParseUint32WithFallback parses a uint32 string with a fallback value
func ParseUint32WithFallback(s string, base int, fallback uint32) uint32 {
	if u, err := strconv.ParseUint(s, base, 32); err == nil {
		return uint32(u)
	}
	return fallback
}
