package sqlite

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"protask/internal/domain"
	"protask/internal/errors"
	"protask/internal/logging"
	"protask/internal/remote"
	"protask/internal/repository/sqlite/migrations"
	"protask/internal/validation"

	"golang.org/x/crypto/bcrypt"
	_ "modernc.org/sqlite"
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// Options tunes the repository. Zero values fall back to DefaultOptions.
type Options struct {
	// Validator checks email format and password strength on sign-up.
	Validator *validation.AccountValidator
	// BcryptCost is the work factor for password hashes.
	BcryptCost int
	// ResetTokenTTL bounds how long a password-reset token stays usable.
	ResetTokenTTL time.Duration
	// ResetNotifier delivers a freshly issued reset token. The local
	// provider has no mail transport, so the caller decides what to do.
	ResetNotifier func(email, token string)
	QueryTimeout  time.Duration
	WriteTimeout  time.Duration
	// PollInterval enables detection of commits made by other processes
	// sharing the database file. Zero disables it.
	PollInterval time.Duration
	// Now is the clock used for server timestamps.
	Now func() time.Time
}

// DefaultOptions returns options suitable for tests and local use.
func DefaultOptions() Options {
	return Options{
		Validator:     validation.NewAccountValidator(),
		BcryptCost:    bcrypt.DefaultCost,
		ResetTokenTTL: time.Hour,
		Now:           time.Now,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.Validator == nil {
		o.Validator = d.Validator
	}
	if o.BcryptCost == 0 {
		o.BcryptCost = d.BcryptCost
	}
	if o.ResetTokenTTL <= 0 {
		o.ResetTokenTTL = d.ResetTokenTTL
	}
	if o.Now == nil {
		o.Now = d.Now
	}
	return o
}

// SQLiteRepository is a local identity provider and document store backed
// by a single SQLite database.
type SQLiteRepository struct {
	db   *sql.DB
	opts Options
	bus  *remote.Bus

	listenersMu  sync.Mutex
	listeners    map[int]func(*domain.Account)
	nextListener int
	// notifyMu keeps session notifications in order
	notifyMu sync.Mutex

	stopPoll  chan struct{}
	pollDone  chan struct{}
	closeOnce sync.Once
}

var (
	_ remote.IdentityProvider       = (*SQLiteRepository)(nil)
	_ remote.DocumentStore          = (*SQLiteRepository)(nil)
	_ remote.PasswordResetConfirmer = (*SQLiteRepository)(nil)
)

// New creates a new SQLite repository instance with default options
func New(dbPath string) (*SQLiteRepository, error) {
	return NewWithOptions(dbPath, DefaultOptions())
}

// NewWithOptions opens dbPath, runs migrations and starts change detection
// when configured.
func NewWithOptions(dbPath string, opts Options) (*SQLiteRepository, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, errors.NewDatabaseError("open database", err)
	}
	// One connection serializes writers and keeps an in-memory database alive.
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)

	for _, pragma := range []string{"PRAGMA foreign_keys = ON", "PRAGMA busy_timeout = 5000"} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, errors.NewDatabaseError("configure database", err)
		}
	}

	if err := migrations.RunMigrations(db); err != nil {
		db.Close()
		return nil, errors.NewDatabaseError("run migrations", err)
	}

	r := &SQLiteRepository{
		db:        db,
		opts:      opts.withDefaults(),
		listeners: make(map[int]func(*domain.Account)),
	}
	r.bus = remote.NewBus(r.loadCollection)

	if r.opts.PollInterval > 0 && dbPath != MemoryPath {
		r.stopPoll = make(chan struct{})
		r.pollDone = make(chan struct{})
		go r.watchExternalChanges(r.opts.PollInterval)
	}

	logging.Debugf("sqlite: opened %s\n", dbPath)
	return r, nil
}

// Close stops subscriptions and closes the database connection
func (r *SQLiteRepository) Close() error {
	var err error
	r.closeOnce.Do(func() {
		if r.stopPoll != nil {
			close(r.stopPoll)
			<-r.pollDone
		}
		r.bus.Close()
		err = r.db.Close()
	})
	return err
}

func (r *SQLiteRepository) queryContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.opts.QueryTimeout > 0 {
		return context.WithTimeout(ctx, r.opts.QueryTimeout)
	}
	return ctx, func() {}
}

func (r *SQLiteRepository) writeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.opts.WriteTimeout > 0 {
		return context.WithTimeout(ctx, r.opts.WriteTimeout)
	}
	return ctx, func() {}
}

func (r *SQLiteRepository) now() time.Time {
	return r.opts.Now()
}

// watchExternalChanges polls data_version, which SQLite bumps whenever
// another connection commits, and wakes every subscriber when it moves.
func (r *SQLiteRepository) watchExternalChanges(interval time.Duration) {
	defer close(r.pollDone)

	version, err := r.dataVersion()
	if err != nil {
		logging.Debugf("sqlite: change detection disabled: %v\n", err)
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-r.stopPoll:
			return
		case <-ticker.C:
			current, err := r.dataVersion()
			if err != nil {
				logging.Debugf("sqlite: data_version: %v\n", err)
				continue
			}
			if current != version {
				version = current
				logging.Debugln("sqlite: external change detected")
				r.bus.PublishAll()
			}
		}
	}
}

func (r *SQLiteRepository) dataVersion() (int64, error) {
	var v int64
	err := r.db.QueryRow("PRAGMA data_version").Scan(&v)
	return v, err
}
