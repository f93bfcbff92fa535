package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"time"

	"protask/internal/api"
	"protask/internal/config"
	"protask/internal/remote"
	"protask/internal/repository/postgres"
	"protask/internal/repository/sqlite"
	"protask/internal/validation"
)

// Environment represents the current environment
type Environment string

const (
	Development Environment = "development"
	Testing     Environment = "testing"
	Production  Environment = "production"
)

// externalChangePoll is how often the SQLite file is checked for commits
// made by other protask processes, such as a second terminal
const externalChangePoll = time.Second

// ClientFactory opens the identity provider and document store for an
// environment and wires a started client over them
type ClientFactory struct {
	env    Environment
	stderr io.Writer
}

// NewClientFactory creates a new client factory for the given environment
func NewClientFactory(env Environment, stderr io.Writer) *ClientFactory {
	return &ClientFactory{env: env, stderr: stderr}
}

// closers releases resources in reverse order of acquisition
type closers []func() error

func (c closers) Close() error {
	var errs []error
	for i := len(c) - 1; i >= 0; i-- {
		if err := c[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return stderrors.Join(errs...)
}

// Connect implements cli.Connector. Accounts and the session always live
// in SQLite; documents go to the configured backend.
func (f *ClientFactory) Connect(ctx context.Context, cfg *config.Config) (api.BusinessAPI, io.Closer, error) {
	var opened closers
	fail := func(err error) (api.BusinessAPI, io.Closer, error) {
		_ = opened.Close()
		return nil, nil, err
	}

	path, err := f.databasePath(cfg)
	if err != nil {
		return fail(err)
	}

	repo, err := sqlite.NewWithOptions(path, f.sqliteOptions(cfg))
	if err != nil {
		return fail(fmt.Errorf("failed to initialize %s database: %w", f.env, err))
	}
	opened = append(opened, repo.Close)

	var store remote.DocumentStore = repo
	if cfg.Database.Backend == config.BackendPostgres {
		pg, err := postgres.Open(ctx, cfg.Database.PostgresURL)
		if err != nil {
			return fail(fmt.Errorf("failed to connect to postgres: %w", err))
		}
		opened = append(opened, func() error { pg.Close(); return nil })
		store = pg
	}

	client := api.NewClient(repo, store, cfg)
	opened = append(opened, func() error { client.Close(); return nil })
	if err := client.Start(ctx); err != nil {
		return fail(err)
	}

	return api.NewBusinessAPI(client), opened, nil
}

// databasePath picks the SQLite file for the environment
func (f *ClientFactory) databasePath(cfg *config.Config) (string, error) {
	switch f.env {
	case Development:
		// a local database file in the working directory
		return cfg.Database.Filename, nil
	case Testing:
		return sqlite.MemoryPath, nil
	default:
		if err := os.MkdirAll(cfg.Database.Dir, os.FileMode(cfg.Database.DirPermissions)); err != nil {
			return "", fmt.Errorf("failed to create database directory: %w", err)
		}
		return cfg.GetDatabasePath(), nil
	}
}

func (f *ClientFactory) sqliteOptions(cfg *config.Config) sqlite.Options {
	opts := sqlite.DefaultOptions()
	opts.Validator = validation.NewAccountValidatorWithConfig(cfg)
	opts.BcryptCost = cfg.Auth.BcryptCost
	opts.ResetTokenTTL = cfg.Auth.ResetTokenTTL
	opts.QueryTimeout = cfg.Database.QueryTimeout
	opts.WriteTimeout = cfg.Database.WriteTimeout
	if f.env != Testing {
		opts.PollInterval = externalChangePoll
	}
	// There is no mail transport; the token is shown to whoever asked.
	opts.ResetNotifier = func(email, token string) {
		fmt.Fprintf(f.stderr, "Password reset token for %s (valid for %s):\n  %s\n", email, cfg.Auth.ResetTokenTTL, token)
	}
	return opts
}

// getEnvironment determines the current environment
func getEnvironment() Environment {
	switch Environment(os.Getenv("PROTASK_ENV")) {
	case Development:
		return Development
	case Testing:
		return Testing
	default:
		// Default to production for safety
		return Production
	}
}
