package migrations

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"protask/internal/logging"
)

func init() {
	RegisterGoMigration(2, Up_000002_normalize_due_dates, Down_000002_normalize_due_dates)
}

// Up_000002_normalize_due_dates rewrites task due dates stored as full
// timestamps to plain calendar dates. Values that cannot be parsed are left
// untouched; readers treat them as having no due date.
func Up_000002_normalize_due_dates(tx *sql.Tx) error {
	type doc struct {
		collection string
		id         string
		fields     string
	}
	var docs []doc

	// Read all rows into memory first to avoid locking issues
	rows, err := tx.Query("SELECT collection, id, fields FROM documents WHERE collection LIKE 'users/%/tasks'")
	if err != nil {
		return fmt.Errorf("failed to query task documents: %w", err)
	}
	for rows.Next() {
		var d doc
		if err := rows.Scan(&d.collection, &d.id, &d.fields); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan task document: %w", err)
		}
		docs = append(docs, d)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return fmt.Errorf("error iterating task documents: %w", err)
	}
	rows.Close()

	stmt, err := tx.Prepare("UPDATE documents SET fields = ? WHERE collection = ? AND id = ?")
	if err != nil {
		return fmt.Errorf("failed to prepare update statement: %w", err)
	}
	defer stmt.Close()

	updated := 0
	for _, d := range docs {
		var fields map[string]any
		if err := json.Unmarshal([]byte(d.fields), &fields); err != nil {
			logging.Debugf("migration 2: skipping %s/%s: %v\n", d.collection, d.id, err)
			continue
		}
		due, ok := fields["dueDate"].(string)
		if !ok {
			continue
		}
		normalized, changed := normalizeDueDate(due)
		if !changed {
			continue
		}
		fields["dueDate"] = normalized
		encoded, err := json.Marshal(fields)
		if err != nil {
			return fmt.Errorf("failed to encode %s/%s: %w", d.collection, d.id, err)
		}
		if _, err := stmt.Exec(string(encoded), d.collection, d.id); err != nil {
			return fmt.Errorf("failed to update %s/%s: %w", d.collection, d.id, err)
		}
		updated++
	}

	logging.Debugf("migration 2: normalized %d of %d task due dates\n", updated, len(docs))
	return nil
}

// Down_000002_normalize_due_dates is a no-op: calendar dates are valid input
// for every earlier reader.
func Down_000002_normalize_due_dates(tx *sql.Tx) error {
	return nil
}

// normalizeDueDate reduces a timestamp to its calendar date in its own
// offset. Plain dates and unparseable values are reported unchanged.
func normalizeDueDate(s string) (string, bool) {
	trimmed := strings.TrimSpace(s)
	if _, err := time.Parse("2006-01-02", trimmed); err == nil {
		return trimmed, trimmed != s
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05", "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, trimmed); err == nil {
			return t.Format("2006-01-02"), true
		}
	}
	return s, false
}
