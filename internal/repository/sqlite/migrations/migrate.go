package migrations

import (
	"database/sql"
	"embed"
	"fmt"
	"sort"
	"strings"
)

//go:embed *.sql
var migrationsFS embed.FS

// GoMigrationFunc is a migration step written in Go. It runs inside the
// migration's transaction.
type GoMigrationFunc func(tx *sql.Tx) error

// Migration represents a database migration
type Migration struct {
	Version  int
	Up       string
	Down     string
	UpFunc   GoMigrationFunc
	DownFunc GoMigrationFunc
}

var goMigrations = map[int]Migration{}

// RegisterGoMigration adds a Go migration. It is called from init functions.
func RegisterGoMigration(version int, up, down GoMigrationFunc) {
	if _, dup := goMigrations[version]; dup {
		panic(fmt.Sprintf("migration %d registered twice", version))
	}
	goMigrations[version] = Migration{Version: version, UpFunc: up, DownFunc: down}
}

// RunMigrations executes all pending migrations. A migration that failed
// half way leaves the database marked dirty, and later runs refuse to
// continue until it is repaired by hand.
func RunMigrations(db *sql.DB) error {
	if err := createMigrationsTable(db); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	dirty, err := getDirtyMigrations(db)
	if err != nil {
		return fmt.Errorf("failed to check migration state: %w", err)
	}
	if len(dirty) > 0 {
		return fmt.Errorf("database is in a dirty state; failed migration(s): %v", dirty)
	}

	migrations, err := loadMigrations()
	if err != nil {
		return fmt.Errorf("failed to load migrations: %w", err)
	}

	applied, err := getAppliedMigrations(db)
	if err != nil {
		return fmt.Errorf("failed to get applied migrations: %w", err)
	}

	for _, migration := range migrations {
		if applied[migration.Version] {
			continue
		}
		if err := applyMigration(db, migration); err != nil {
			markDirty(db, migration.Version)
			return fmt.Errorf("failed to apply migration %d: %w", migration.Version, err)
		}
	}

	return nil
}

// Versions returns the applied migration versions in order.
func Versions(db *sql.DB) ([]int, error) {
	applied, err := getAppliedMigrations(db)
	if err != nil {
		return nil, err
	}
	versions := make([]int, 0, len(applied))
	for v := range applied {
		versions = append(versions, v)
	}
	sort.Ints(versions)
	return versions, nil
}

func createMigrationsTable(db *sql.DB) error {
	query := `
	CREATE TABLE IF NOT EXISTS migrations (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		dirty BOOLEAN DEFAULT FALSE
	)`
	_, err := db.Exec(query)
	return err
}

func loadMigrations() ([]Migration, error) {
	entries, err := migrationsFS.ReadDir(".")
	if err != nil {
		return nil, err
	}

	byVersion := make(map[int]Migration, len(goMigrations))
	for v, m := range goMigrations {
		byVersion[v] = m
	}

	for _, entry := range entries {
		if !strings.HasSuffix(entry.Name(), ".up.sql") {
			continue
		}

		version := extractVersion(entry.Name())
		if version == 0 {
			continue
		}
		if _, dup := byVersion[version]; dup {
			return nil, fmt.Errorf("migration %d defined in both SQL and Go", version)
		}

		upSQL, err := migrationsFS.ReadFile(entry.Name())
		if err != nil {
			return nil, err
		}

		downFile := strings.Replace(entry.Name(), ".up.sql", ".down.sql", 1)
		downSQL, err := migrationsFS.ReadFile(downFile)
		if err != nil {
			return nil, err
		}

		byVersion[version] = Migration{
			Version: version,
			Up:      string(upSQL),
			Down:    string(downSQL),
		}
	}

	migrations := make([]Migration, 0, len(byVersion))
	for _, m := range byVersion {
		migrations = append(migrations, m)
	}
	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})

	return migrations, nil
}

func getAppliedMigrations(db *sql.DB) (map[int]bool, error) {
	rows, err := db.Query("SELECT version FROM migrations WHERE dirty = FALSE")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	applied := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			return nil, err
		}
		applied[version] = true
	}
	return applied, rows.Err()
}

func getDirtyMigrations(db *sql.DB) ([]int, error) {
	rows, err := db.Query("SELECT version FROM migrations WHERE dirty = TRUE ORDER BY version")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var dirty []int
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			return nil, err
		}
		dirty = append(dirty, version)
	}
	return dirty, rows.Err()
}

func markDirty(db *sql.DB, version int) {
	_, _ = db.Exec("INSERT OR REPLACE INTO migrations (version, dirty) VALUES (?, TRUE)", version)
}

func applyMigration(db *sql.DB, migration Migration) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}

	if migration.UpFunc != nil {
		err = migration.UpFunc(tx)
	} else {
		_, err = tx.Exec(migration.Up)
	}
	if err != nil {
		tx.Rollback()
		return err
	}

	if _, err := tx.Exec("INSERT INTO migrations (version) VALUES (?)", migration.Version); err != nil {
		tx.Rollback()
		return err
	}

	return tx.Commit()
}

func extractVersion(filename string) int {
	var version int
	fmt.Sscanf(filename, "%d_", &version)
	return version
}
