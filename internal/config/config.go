package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Backend names accepted by DatabaseConfig.Backend.
const (
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// Config holds all configuration options for the task client
type Config struct {
	Database    DatabaseConfig    `yaml:"database"`
	Auth        AuthConfig        `yaml:"auth"`
	Validation  ValidationConfig  `yaml:"validation"`
	Display     DisplayConfig     `yaml:"display"`
	Application ApplicationConfig `yaml:"application"`
}

// DatabaseConfig holds storage-related configuration. The local SQLite file
// always holds accounts and the session; documents live in Backend.
type DatabaseConfig struct {
	Backend        string        `yaml:"backend" env:"PROTASK_DB_BACKEND"`
	Dir            string        `yaml:"dir" env:"PROTASK_DB_DIR"`
	Filename       string        `yaml:"filename" env:"PROTASK_DB_FILENAME"`
	PostgresURL    string        `yaml:"postgres_url" env:"PROTASK_POSTGRES_URL"`
	QueryTimeout   time.Duration `yaml:"query_timeout" env:"PROTASK_DB_QUERY_TIMEOUT"`
	WriteTimeout   time.Duration `yaml:"write_timeout" env:"PROTASK_DB_WRITE_TIMEOUT"`
	DirPermissions uint32        `yaml:"dir_permissions" env:"PROTASK_DB_DIR_PERMISSIONS"`
}

// AuthConfig holds local identity provider settings
type AuthConfig struct {
	PasswordMinLength int           `yaml:"password_min_length" env:"PROTASK_AUTH_PASSWORD_MIN"`
	BcryptCost        int           `yaml:"bcrypt_cost" env:"PROTASK_AUTH_BCRYPT_COST"`
	ResetTokenTTL     time.Duration `yaml:"reset_token_ttl" env:"PROTASK_AUTH_RESET_TTL"`
}

// ValidationConfig holds validation rules configuration
type ValidationConfig struct {
	TitleMaxLength       int `yaml:"title_max_length" env:"PROTASK_VALIDATION_TITLE_MAX"`
	DescriptionMaxLength int `yaml:"description_max_length" env:"PROTASK_VALIDATION_DESCRIPTION_MAX"`
	CategoryMaxLength    int `yaml:"category_max_length" env:"PROTASK_VALIDATION_CATEGORY_MAX"`
	DisplayNameMaxLength int `yaml:"display_name_max_length" env:"PROTASK_VALIDATION_DISPLAY_NAME_MAX"`
}

// DisplayConfig holds display formatting configuration
type DisplayConfig struct {
	DateFormat string `yaml:"date_format" env:"PROTASK_DISPLAY_DATE_FORMAT"`
	TitleWidth int    `yaml:"title_width" env:"PROTASK_DISPLAY_TITLE_WIDTH"`
	Color      bool   `yaml:"color" env:"PROTASK_DISPLAY_COLOR"`
}

// ApplicationConfig holds application-level configuration
type ApplicationConfig struct {
	Timeout time.Duration `yaml:"timeout" env:"PROTASK_APP_TIMEOUT"`
	Verbose bool          `yaml:"verbose" env:"PROTASK_APP_VERBOSE"`
}

// NewConfig creates a new configuration with sensible defaults
func NewConfig() *Config {
	homeDir, _ := os.UserHomeDir()

	return &Config{
		Database: DatabaseConfig{
			Backend:        BackendSQLite,
			Dir:            filepath.Join(homeDir, ".protask"),
			Filename:       "protask.db",
			QueryTimeout:   10 * time.Second,
			WriteTimeout:   5 * time.Second,
			DirPermissions: 0755,
		},
		Auth: AuthConfig{
			PasswordMinLength: 6,
			BcryptCost:        10,
			ResetTokenTTL:     time.Hour,
		},
		Validation: ValidationConfig{
			TitleMaxLength:       200,
			DescriptionMaxLength: 2000,
			CategoryMaxLength:    50,
			DisplayNameMaxLength: 100,
		},
		Display: DisplayConfig{
			DateFormat: "Jan 2, 2006",
			TitleWidth: 40,
			Color:      true,
		},
		Application: ApplicationConfig{
			Timeout: 60 * time.Second,
			Verbose: false,
		},
	}
}

// GetDatabasePath returns the full path to the database file
func (c *Config) GetDatabasePath() string {
	return filepath.Join(c.Database.Dir, c.Database.Filename)
}

// LoadFromEnvironment loads configuration from environment variables.
// Unparseable values are ignored and the previous value is kept.
func (c *Config) LoadFromEnvironment() error {
	// Database configuration
	if backend := os.Getenv("PROTASK_DB_BACKEND"); backend != "" {
		c.Database.Backend = backend
	}
	if dir := os.Getenv("PROTASK_DB_DIR"); dir != "" {
		c.Database.Dir = dir
	}
	if filename := os.Getenv("PROTASK_DB_FILENAME"); filename != "" {
		c.Database.Filename = filename
	}
	if url := os.Getenv("PROTASK_POSTGRES_URL"); url != "" {
		c.Database.PostgresURL = url
	}
	if timeout := os.Getenv("PROTASK_DB_QUERY_TIMEOUT"); timeout != "" {
		c.Database.QueryTimeout = ParseDurationWithFallback(timeout, c.Database.QueryTimeout)
	}
	if timeout := os.Getenv("PROTASK_DB_WRITE_TIMEOUT"); timeout != "" {
		c.Database.WriteTimeout = ParseDurationWithFallback(timeout, c.Database.WriteTimeout)
	}
	if perms := os.Getenv("PROTASK_DB_DIR_PERMISSIONS"); perms != "" {
		c.Database.DirPermissions = ParseUint32WithFallback(perms, 8, c.Database.DirPermissions)
	}

	// Auth configuration
	if minLen := os.Getenv("PROTASK_AUTH_PASSWORD_MIN"); minLen != "" {
		c.Auth.PasswordMinLength = ParseIntWithFallback(minLen, c.Auth.PasswordMinLength)
	}
	if cost := os.Getenv("PROTASK_AUTH_BCRYPT_COST"); cost != "" {
		c.Auth.BcryptCost = ParseIntWithFallback(cost, c.Auth.BcryptCost)
	}
	if ttl := os.Getenv("PROTASK_AUTH_RESET_TTL"); ttl != "" {
		c.Auth.ResetTokenTTL = ParseDurationWithFallback(ttl, c.Auth.ResetTokenTTL)
	}

	// Validation configuration
	if n := os.Getenv("PROTASK_VALIDATION_TITLE_MAX"); n != "" {
		c.Validation.TitleMaxLength = ParseIntWithFallback(n, c.Validation.TitleMaxLength)
	}
	if n := os.Getenv("PROTASK_VALIDATION_DESCRIPTION_MAX"); n != "" {
		c.Validation.DescriptionMaxLength = ParseIntWithFallback(n, c.Validation.DescriptionMaxLength)
	}
	if n := os.Getenv("PROTASK_VALIDATION_CATEGORY_MAX"); n != "" {
		c.Validation.CategoryMaxLength = ParseIntWithFallback(n, c.Validation.CategoryMaxLength)
	}
	if n := os.Getenv("PROTASK_VALIDATION_DISPLAY_NAME_MAX"); n != "" {
		c.Validation.DisplayNameMaxLength = ParseIntWithFallback(n, c.Validation.DisplayNameMaxLength)
	}

	// Display configuration
	if format := os.Getenv("PROTASK_DISPLAY_DATE_FORMAT"); format != "" {
		c.Display.DateFormat = format
	}
	if width := os.Getenv("PROTASK_DISPLAY_TITLE_WIDTH"); width != "" {
		c.Display.TitleWidth = ParseIntWithFallback(width, c.Display.TitleWidth)
	}
	if color := os.Getenv("PROTASK_DISPLAY_COLOR"); color != "" {
		c.Display.Color = ParseBoolWithFallback(color, c.Display.Color)
	}
	if os.Getenv("NO_COLOR") != "" {
		c.Display.Color = false
	}

	// Application configuration
	if timeout := os.Getenv("PROTASK_APP_TIMEOUT"); timeout != "" {
		c.Application.Timeout = ParseDurationWithFallback(timeout, c.Application.Timeout)
	}
	if verbose := os.Getenv("PROTASK_APP_VERBOSE"); verbose != "" {
		c.Application.Verbose = ParseBoolWithFallback(verbose, c.Application.Verbose)
	}

	return nil
}

// Validate validates the configuration and returns any errors
func (c *Config) Validate() error {
	// Validate database configuration
	switch c.Database.Backend {
	case BackendSQLite:
	case BackendPostgres:
		if c.Database.PostgresURL == "" {
			return &ConfigError{Field: "database.postgres_url", Message: "postgres backend requires a connection URL"}
		}
	default:
		return &ConfigError{Field: "database.backend", Message: "backend must be sqlite or postgres, got " + strconv.Quote(c.Database.Backend)}
	}
	if c.Database.Dir == "" {
		return &ConfigError{Field: "database.dir", Message: "database directory cannot be empty"}
	}
	if c.Database.Filename == "" {
		return &ConfigError{Field: "database.filename", Message: "database filename cannot be empty"}
	}
	if c.Database.QueryTimeout <= 0 {
		return &ConfigError{Field: "database.query_timeout", Message: "query timeout must be positive"}
	}
	if c.Database.WriteTimeout <= 0 {
		return &ConfigError{Field: "database.write_timeout", Message: "write timeout must be positive"}
	}

	// Validate auth configuration
	if c.Auth.PasswordMinLength < 1 {
		return &ConfigError{Field: "auth.password_min_length", Message: "password minimum length must be at least 1"}
	}
	if c.Auth.BcryptCost < 4 || c.Auth.BcryptCost > 31 {
		return &ConfigError{Field: "auth.bcrypt_cost", Message: "bcrypt cost must be between 4 and 31"}
	}
	if c.Auth.ResetTokenTTL <= 0 {
		return &ConfigError{Field: "auth.reset_token_ttl", Message: "reset token lifetime must be positive"}
	}

	// Validate validation configuration
	if c.Validation.TitleMaxLength < 1 {
		return &ConfigError{Field: "validation.title_max_length", Message: "title maximum length must be at least 1"}
	}
	if c.Validation.DescriptionMaxLength < 0 {
		return &ConfigError{Field: "validation.description_max_length", Message: "description maximum length cannot be negative"}
	}
	if c.Validation.CategoryMaxLength < 0 {
		return &ConfigError{Field: "validation.category_max_length", Message: "category maximum length cannot be negative"}
	}
	if c.Validation.DisplayNameMaxLength < 1 {
		return &ConfigError{Field: "validation.display_name_max_length", Message: "display name maximum length must be at least 1"}
	}

	// Validate display configuration
	if c.Display.DateFormat == "" {
		return &ConfigError{Field: "display.date_format", Message: "date format cannot be empty"}
	}
	if c.Display.TitleWidth < 10 {
		return &ConfigError{Field: "display.title_width", Message: "title width must be at least 10"}
	}

	// Validate application configuration
	if c.Application.Timeout <= 0 {
		return &ConfigError{Field: "application.timeout", Message: "application timeout must be positive"}
	}

	return nil
}

// ConfigError represents a configuration validation error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return e.Field + ": " + e.Message
}
