package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"protask/internal/errors"
	"protask/internal/remote"

	"github.com/google/uuid"
)

const documentColumns = `collection, id, fields, created_at, updated_at`

// Subscribe delivers the membership of collection now and after every write
// to it, through this process or, with polling enabled, any other.
func (r *SQLiteRepository) Subscribe(ctx context.Context, collection string, onSnapshot remote.SnapshotFunc, onError remote.ErrorFunc) (remote.Unsubscribe, error) {
	return r.bus.Subscribe(ctx, collection, onSnapshot, onError)
}

func (r *SQLiteRepository) loadCollection(ctx context.Context, collection string) ([]remote.Document, error) {
	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	rows, err := QueryMultiple(ctx, r.db,
		`SELECT `+documentColumns+` FROM documents WHERE collection = ? ORDER BY id`,
		ScanDocuments, "documents", collection)
	if err != nil {
		return nil, err
	}

	docs := make([]remote.Document, 0, len(rows))
	for _, row := range rows {
		doc, err := toRemote(row)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// Get returns the document or nil when it does not exist.
func (r *SQLiteRepository) Get(ctx context.Context, collection, id string) (*remote.Document, error) {
	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	row, err := r.getRow(ctx, r.db, collection, id)
	if err != nil || row == nil {
		return nil, err
	}
	doc, err := toRemote(row)
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// Create stores a new document under a generated id.
func (r *SQLiteRepository) Create(ctx context.Context, collection string, fields remote.Fields) (string, error) {
	id := uuid.Must(uuid.NewV7()).String()
	now := r.now()

	encoded, err := EncodeFields(remote.ResolveServerTimestamps(fields, now))
	if err != nil {
		return "", errors.NewInvalidInputError("fields", nil, err.Error())
	}

	ctx, cancel := r.writeContext(ctx)
	defer cancel()
	err = Execute(ctx, r.db, "create document",
		`INSERT INTO documents (`+documentColumns+`) VALUES (?, ?, ?, ?, ?)`,
		collection, id, encoded, FormatTimeForDB(now), FormatTimeForDB(now))
	if err != nil {
		return "", err
	}

	r.bus.Publish(collection)
	return id, nil
}

// Set writes the document, creating it if needed. With merge the fields are
// overlaid on the stored ones.
func (r *SQLiteRepository) Set(ctx context.Context, collection, id string, fields remote.Fields, merge bool) error {
	return r.write(ctx, collection, id, fields, merge, false)
}

// Update patches an existing document.
func (r *SQLiteRepository) Update(ctx context.Context, collection, id string, fields remote.Fields) error {
	return r.write(ctx, collection, id, fields, true, true)
}

// Delete removes the document. Deleting a missing document succeeds.
func (r *SQLiteRepository) Delete(ctx context.Context, collection, id string) error {
	ctx, cancel := r.writeContext(ctx)
	defer cancel()

	if err := Execute(ctx, r.db, "delete document",
		`DELETE FROM documents WHERE collection = ? AND id = ?`, collection, id); err != nil {
		return err
	}
	r.bus.Publish(collection)
	return nil
}

func (r *SQLiteRepository) write(ctx context.Context, collection, id string, fields remote.Fields, merge, mustExist bool) error {
	now := r.now()
	resolved := remote.ResolveServerTimestamps(fields, now)

	ctx, cancel := r.writeContext(ctx)
	defer cancel()
	err := WithTx(ctx, r.db, "write document", func(tx *sql.Tx) error {
		existing, err := r.getRow(ctx, tx, collection, id)
		if err != nil {
			return err
		}
		if existing == nil && mustExist {
			return errors.NewNotFoundError("document", collection+"/"+id)
		}

		final := resolved
		createdAt := FormatTimeForDB(now)
		if existing != nil {
			createdAt = FormatTimeForDB(existing.CreatedAt)
			if merge {
				stored, err := DecodeFields(existing.Fields)
				if err != nil {
					return HandleDatabaseError("decode document", err)
				}
				final = remote.MergeFields(stored, resolved)
			}
		}

		encoded, err := EncodeFields(final)
		if err != nil {
			return errors.NewInvalidInputError("fields", nil, err.Error())
		}
		return Execute(ctx, tx, "write document",
			`INSERT INTO documents (`+documentColumns+`) VALUES (?, ?, ?, ?, ?)
			 ON CONFLICT(collection, id) DO UPDATE SET fields = excluded.fields, updated_at = excluded.updated_at`,
			collection, id, encoded, createdAt, FormatTimeForDB(now))
	})
	if err != nil {
		return err
	}

	r.bus.Publish(collection)
	return nil
}

func (r *SQLiteRepository) getRow(ctx context.Context, q Querier, collection, id string) (*Document, error) {
	row, err := QuerySingle(ctx, q,
		`SELECT `+documentColumns+` FROM documents WHERE collection = ? AND id = ?`,
		ScanDocument, "document", collection+"/"+id, collection, id)
	if err != nil {
		if errors.IsErrorType(err, errors.ErrorTypeNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return row, nil
}

func toRemote(row *Document) (remote.Document, error) {
	fields, err := DecodeFields(row.Fields)
	if err != nil {
		return remote.Document{}, HandleDatabaseError(fmt.Sprintf("decode document %s/%s", row.Collection, row.ID), err)
	}
	return remote.Document{ID: row.ID, Fields: fields}, nil
}
