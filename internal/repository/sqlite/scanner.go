package sqlite

import (
	"database/sql"
)

// Scanner interface defines the common scanning behavior for both sql.Row and sql.Rows
type Scanner interface {
	Scan(dest ...interface{}) error
}

// Rows interface defines the common behavior for sql.Rows
type Rows interface {
	Next() bool
	Scan(dest ...interface{}) error
	Err() error
}

// ScanAccount scans a single account from a database row
func ScanAccount(scanner Scanner) (*Account, error) {
	account := &Account{}
	var createdAt string

	err := scanner.Scan(
		&account.ID,
		&account.Email,
		&account.PasswordHash,
		&account.DisplayName,
		&createdAt,
	)
	if err != nil {
		return nil, err
	}

	if t, err := ParseTimeFromDB(createdAt); err == nil {
		account.CreatedAt = t
	}
	return account, nil
}

// ScanDocument scans a single document from a database row
func ScanDocument(scanner Scanner) (*Document, error) {
	doc := &Document{}
	var createdAt, updatedAt string

	err := scanner.Scan(&doc.Collection, &doc.ID, &doc.Fields, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	if t, err := ParseTimeFromDB(createdAt); err == nil {
		doc.CreatedAt = t
	}
	if t, err := ParseTimeFromDB(updatedAt); err == nil {
		doc.UpdatedAt = t
	}
	return doc, nil
}

// ScanDocuments scans multiple documents from database rows
func ScanDocuments(rows Rows) ([]*Document, error) {
	var docs []*Document
	for rows.Next() {
		doc, err := ScanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return docs, nil
}

// ScanPasswordReset scans a single password reset from a database row
func ScanPasswordReset(scanner Scanner) (*PasswordReset, error) {
	reset := &PasswordReset{}
	var expiresAt string
	var usedAt sql.NullString

	err := scanner.Scan(&reset.TokenHash, &reset.AccountID, &expiresAt, &usedAt)
	if err != nil {
		return nil, err
	}

	t, err := ParseTimeFromDB(expiresAt)
	if err != nil {
		return nil, err
	}
	reset.ExpiresAt = t
	if usedAt.Valid {
		if used, err := ParseTimeFromDB(usedAt.String); err == nil {
			reset.UsedAt = &used
		}
	}
	return reset, nil
}
