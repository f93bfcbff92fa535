package sqlite

import (
	"context"
	"database/sql"
	stderrors "errors"

	"protask/internal/errors"
)

// Querier is satisfied by both *sql.DB and *sql.Tx.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// HandleDatabaseError converts database errors to structured app errors
func HandleDatabaseError(operation string, err error) error {
	return errors.NewDatabaseError(operation, err)
}

// HandleNoRowsError handles sql.ErrNoRows errors consistently
func HandleNoRowsError(err error, entityType string, id string) error {
	if stderrors.Is(err, sql.ErrNoRows) {
		return errors.NewNotFoundError(entityType, id)
	}
	return err
}

// ValidateRowsAffected checks if a database operation affected the expected number of rows
func ValidateRowsAffected(result sql.Result, entityType string, id string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return HandleDatabaseError("get rows affected", err)
	}
	if rows == 0 {
		return errors.NewNotFoundError(entityType, id)
	}
	return nil
}

// ExecuteWithRowsAffected executes a query and validates that rows were affected
func ExecuteWithRowsAffected(ctx context.Context, q Querier, query string, entityType string, id string, args ...interface{}) error {
	result, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return HandleDatabaseError("execute query", err)
	}

	return ValidateRowsAffected(result, entityType, id)
}

// Execute runs a statement whose affected row count does not matter
func Execute(ctx context.Context, q Querier, operation string, query string, args ...interface{}) error {
	if _, err := q.ExecContext(ctx, query, args...); err != nil {
		return HandleDatabaseError(operation, err)
	}
	return nil
}

// QuerySingle executes a query that returns a single row and scans it
func QuerySingle[T any](ctx context.Context, q Querier, query string, scanFunc func(Scanner) (*T, error), entityType string, id string, args ...interface{}) (*T, error) {
	row := q.QueryRowContext(ctx, query, args...)
	result, err := scanFunc(row)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, errors.NewNotFoundError(entityType, id)
		}
		return nil, HandleDatabaseError("scan "+entityType, err)
	}
	return result, nil
}

// QueryMultiple executes a query that returns multiple rows and scans them
func QueryMultiple[T any](ctx context.Context, q Querier, query string, scanFunc func(Rows) ([]*T, error), entityType string, args ...interface{}) ([]*T, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, HandleDatabaseError("query "+entityType, err)
	}
	defer rows.Close()

	results, err := scanFunc(rows)
	if err != nil {
		return nil, HandleDatabaseError("scan "+entityType, err)
	}

	return results, nil
}

// WithTx runs fn in a transaction, committing when it returns nil.
func WithTx(ctx context.Context, db *sql.DB, operation string, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return HandleDatabaseError("begin "+operation, err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return HandleDatabaseError("commit "+operation, err)
	}
	return nil
}
