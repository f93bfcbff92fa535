// Package remote defines the contracts of the collaborators the task engine
// talks to: an identity provider and a document store with live
// collection subscriptions.
package remote

import (
	"context"
	"time"

	"protask/internal/domain"
)

// Fields is the field map of a stored document.
type Fields = map[string]any

// Document is one record of a collection.
type Document struct {
	ID     string
	Fields Fields
}

type sentinel string

// ServerTimestamp may be used as a field value on any write. The store
// replaces it with its own clock at write time.
const ServerTimestamp sentinel = "__server_timestamp__"

// IsServerTimestamp reports whether v is the ServerTimestamp sentinel.
func IsServerTimestamp(v any) bool {
	s, ok := v.(sentinel)
	return ok && s == ServerTimestamp
}

// ResolveServerTimestamps returns a copy of f with every ServerTimestamp
// replaced by now in UTC, RFC 3339 with nanoseconds.
func ResolveServerTimestamps(f Fields, now time.Time) Fields {
	out := make(Fields, len(f))
	for k, v := range f {
		if IsServerTimestamp(v) {
			out[k] = now.UTC().Format(time.RFC3339Nano)
			continue
		}
		out[k] = v
	}
	return out
}

// MergeFields returns a copy of base overlaid with patch.
func MergeFields(base, patch Fields) Fields {
	out := make(Fields, len(base)+len(patch))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range patch {
		out[k] = v
	}
	return out
}

// Unsubscribe stops a listener. It is safe to call more than once and
// does not wait for an in-flight callback to return.
type Unsubscribe func()

// SnapshotFunc receives the full membership of a collection.
type SnapshotFunc func(docs []Document)

// ErrorFunc receives a failed load. The subscription stays open; a later
// snapshot means it has recovered.
type ErrorFunc func(err error)

// IdentityProvider authenticates users and tracks the current session.
type IdentityProvider interface {
	SignUp(ctx context.Context, email, password string) (*domain.Account, error)
	LogIn(ctx context.Context, email, password string) (*domain.Account, error)
	SignOut(ctx context.Context) error
	RequestPasswordReset(ctx context.Context, email string) error
	UpdateProfile(ctx context.Context, id, displayName string) error
	// OnSessionChange registers fn and invokes it once with the current
	// account (nil when signed out), then again on every change.
	OnSessionChange(fn func(account *domain.Account)) Unsubscribe
}

// PasswordResetConfirmer is implemented by providers that complete a reset
// locally instead of through an emailed link.
type PasswordResetConfirmer interface {
	ConfirmPasswordReset(ctx context.Context, token, newPassword string) error
}

// DocumentStore is a remote collection store with live subscriptions.
type DocumentStore interface {
	// Subscribe delivers the full membership of collection now and after
	// every change, in order, until the returned Unsubscribe is called.
	Subscribe(ctx context.Context, collection string, onSnapshot SnapshotFunc, onError ErrorFunc) (Unsubscribe, error)
	// Get returns nil without error when the document does not exist.
	Get(ctx context.Context, collection, id string) (*Document, error)
	Create(ctx context.Context, collection string, fields Fields) (string, error)
	// Set writes the document; with merge the given fields are overlaid on
	// the existing ones instead of replacing them.
	Set(ctx context.Context, collection, id string, fields Fields, merge bool) error
	// Update patches an existing document and fails with a not-found error
	// when it is absent.
	Update(ctx context.Context, collection, id string, fields Fields) error
	Delete(ctx context.Context, collection, id string) error
}

// ProfileDocumentID is the id of the single document in a profile collection.
const ProfileDocumentID = "data"

// TasksCollection is the path of a user's task collection.
func TasksCollection(userID string) string {
	return "users/" + userID + "/tasks"
}

// ProfileCollection is the path of a user's profile collection.
func ProfileCollection(userID string) string {
	return "users/" + userID + "/profile"
}
