// Package postgres is a document store on a shared PostgreSQL database.
// Changes made by any client reach every subscriber through LISTEN/NOTIFY.
package postgres

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"sync"
	"time"

	"protask/internal/errors"
	"protask/internal/logging"
	"protask/internal/remote"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// NotifyChannel is the channel every write is announced on. The payload is
// the collection path.
const NotifyChannel = "protask_documents"

// DocumentStore is a PostgreSQL-backed remote.DocumentStore.
type DocumentStore struct {
	pool *pgxpool.Pool
	bus  *remote.Bus
	now  func() time.Time

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

var _ remote.DocumentStore = (*DocumentStore)(nil)

// NewDocumentStore creates a DocumentStore on pool.
func NewDocumentStore(pool *pgxpool.Pool) *DocumentStore {
	s := &DocumentStore{pool: pool, now: time.Now}
	s.bus = remote.NewBus(s.loadCollection)
	return s
}

// Open connects to url, creates the table and starts listening.
func Open(ctx context.Context, url string) (*DocumentStore, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, errors.NewDatabaseError("connect postgres", err)
	}
	s := NewDocumentStore(pool)
	if err := s.EnsureTable(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	if err := s.Listen(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// EnsureTable creates the documents table if it doesn't exist.
func (s *DocumentStore) EnsureTable(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS protask_documents (
			collection TEXT NOT NULL,
			id         TEXT NOT NULL,
			fields     JSONB NOT NULL DEFAULT '{}',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (collection, id)
		)`)
	if err != nil {
		return errors.NewDatabaseError("create documents table", err)
	}
	return nil
}

// Listen starts forwarding notifications from other clients to local
// subscribers. It holds one pooled connection until Close.
func (s *DocumentStore) Listen(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return nil
	}

	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return errors.NewDatabaseError("acquire listener connection", err)
	}
	if _, err := conn.Exec(ctx, "LISTEN "+NotifyChannel); err != nil {
		conn.Release()
		return errors.NewDatabaseError("listen", err)
	}

	listenCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)
		defer func() {
			// a connection still subscribed must not go back to the pool
			conn.Conn().Close(context.Background())
			conn.Release()
		}()
		for {
			n, err := conn.Conn().WaitForNotification(listenCtx)
			if err != nil {
				if listenCtx.Err() == nil {
					logging.Errorf("postgres: change listener stopped: %v\n", err)
				}
				return
			}
			s.bus.Publish(n.Payload)
		}
	}()
	return nil
}

// Close stops the listener and subscriptions and closes the pool.
func (s *DocumentStore) Close() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
	s.bus.Close()
	s.pool.Close()
}

// Subscribe delivers the membership of collection now and after every
// announced write to it.
func (s *DocumentStore) Subscribe(ctx context.Context, collection string, onSnapshot remote.SnapshotFunc, onError remote.ErrorFunc) (remote.Unsubscribe, error) {
	return s.bus.Subscribe(ctx, collection, onSnapshot, onError)
}

func (s *DocumentStore) loadCollection(ctx context.Context, collection string) ([]remote.Document, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, fields FROM protask_documents WHERE collection = $1 ORDER BY id`, collection)
	if err != nil {
		return nil, errors.NewDatabaseError("query "+collection, err)
	}
	defer rows.Close()
	return scanDocumentRows(rows)
}

// Get returns the document or nil when it does not exist.
func (s *DocumentStore) Get(ctx context.Context, collection, id string) (*remote.Document, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx,
		`SELECT fields FROM protask_documents WHERE collection = $1 AND id = $2`, collection, id).Scan(&raw)
	if err != nil {
		if stderrors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, errors.NewDatabaseError(fmt.Sprintf("get %s/%s", collection, id), err)
	}
	fields, err := decodeFields(raw)
	if err != nil {
		return nil, err
	}
	return &remote.Document{ID: id, Fields: fields}, nil
}

// Create stores a new document under a generated id.
func (s *DocumentStore) Create(ctx context.Context, collection string, fields remote.Fields) (string, error) {
	id := uuid.Must(uuid.NewV7()).String()
	encoded, err := s.encode(fields)
	if err != nil {
		return "", err
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO protask_documents (collection, id, fields) VALUES ($1, $2, $3::jsonb)`,
		collection, id, encoded)
	if err != nil {
		return "", errors.NewDatabaseError("create document", err)
	}
	s.announce(ctx, collection)
	return id, nil
}

// Set writes the document, creating it if needed. With merge the fields are
// overlaid on the stored ones at the top level.
func (s *DocumentStore) Set(ctx context.Context, collection, id string, fields remote.Fields, merge bool) error {
	encoded, err := s.encode(fields)
	if err != nil {
		return err
	}

	_, err = s.pool.Exec(ctx, upsertQuery(merge), collection, id, encoded)
	if err != nil {
		return errors.NewDatabaseError("set document", err)
	}
	s.announce(ctx, collection)
	return nil
}

// Update patches an existing document.
func (s *DocumentStore) Update(ctx context.Context, collection, id string, fields remote.Fields) error {
	encoded, err := s.encode(fields)
	if err != nil {
		return err
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE protask_documents SET fields = fields || $3::jsonb, updated_at = NOW()
		 WHERE collection = $1 AND id = $2`,
		collection, id, encoded)
	if err != nil {
		return errors.NewDatabaseError("update document", err)
	}
	if tag.RowsAffected() == 0 {
		return errors.NewNotFoundError("document", collection+"/"+id)
	}
	s.announce(ctx, collection)
	return nil
}

// Delete removes the document. Deleting a missing document succeeds.
func (s *DocumentStore) Delete(ctx context.Context, collection, id string) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM protask_documents WHERE collection = $1 AND id = $2`, collection, id)
	if err != nil {
		return errors.NewDatabaseError("delete document", err)
	}
	s.announce(ctx, collection)
	return nil
}

// announce wakes local subscribers at once and tells other clients through
// NOTIFY. A failed NOTIFY only delays remote clients, so it is logged.
func (s *DocumentStore) announce(ctx context.Context, collection string) {
	s.bus.Publish(collection)
	if _, err := s.pool.Exec(ctx, `SELECT pg_notify($1, $2)`, NotifyChannel, collection); err != nil {
		logging.Errorf("postgres: notify %s: %v\n", collection, err)
	}
}

func (s *DocumentStore) encode(fields remote.Fields) (string, error) {
	resolved := remote.ResolveServerTimestamps(fields, s.now())
	b, err := json.Marshal(resolved)
	if err != nil {
		return "", errors.NewInvalidInputError("fields", nil, err.Error())
	}
	return string(b), nil
}

func upsertQuery(merge bool) string {
	update := "excluded.fields"
	if merge {
		update = "protask_documents.fields || excluded.fields"
	}
	return `INSERT INTO protask_documents (collection, id, fields) VALUES ($1, $2, $3::jsonb)
		ON CONFLICT (collection, id) DO UPDATE SET fields = ` + update + `, updated_at = NOW()`
}

func decodeFields(raw []byte) (remote.Fields, error) {
	fields := remote.Fields{}
	if len(raw) == 0 {
		return fields, nil
	}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, errors.NewDatabaseError("decode document", err)
	}
	return fields, nil
}

func scanDocumentRows(rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}) ([]remote.Document, error) {
	var docs []remote.Document
	for rows.Next() {
		var id string
		var raw []byte
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, errors.NewDatabaseError("scan document", err)
		}
		fields, err := decodeFields(raw)
		if err != nil {
			return nil, err
		}
		docs = append(docs, remote.Document{ID: id, Fields: fields})
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewDatabaseError("row iteration", err)
	}
	return docs, nil
}
