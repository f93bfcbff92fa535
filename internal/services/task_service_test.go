package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"protask/internal/domain"
	"protask/internal/errors"
	"protask/internal/remote"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaskService_RequiresIdentity(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.session.Start(context.Background()))
	ctx := context.Background()
	fields := domain.TaskFields{Title: "Write report"}

	tests := []struct {
		name string
		call func() error
	}{
		{"create", func() error { _, err := h.gateway.CreateTask(ctx, fields); return err }},
		{"update", func() error { return h.gateway.UpdateTask(ctx, "t001", fields) }},
		{"toggle", func() error { _, err := h.gateway.ToggleStatus(ctx, "t001"); return err }},
		{"delete", func() error { return h.gateway.DeleteTask(ctx, "t001") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()
			require.Error(t, err)
			assert.True(t, errors.IsErrorType(err, errors.ErrorTypeAuthRequired))
		})
	}
	assert.Equal(t, int32(0), h.store.writes.Load())
}

func TestTaskService_CreateTask(t *testing.T) {
	h, identity := signedIn(t)
	collection := remote.TasksCollection(identity.ID)

	id, err := h.gateway.CreateTask(context.Background(), domain.TaskFields{
		Title:    "  Write report ",
		Category: "work",
		DueDate:  "2024-06-20",
	})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	doc := h.store.doc(collection, id)
	assert.Equal(t, "Write report", doc[domain.FieldTitle])
	assert.Equal(t, string(domain.StatusPending), doc[domain.FieldStatus])
	assert.Equal(t, string(domain.PriorityMedium), doc[domain.FieldPriority])
	assert.Equal(t, h.store.now.UTC().Format(time.RFC3339Nano), doc[domain.FieldCreatedAt])

	// the set only changes through the subscription
	set := waitForSet(t, h.tasks, func(s *CanonicalSet) bool { return s.Len() == 1 })
	task, ok := set.Get(id)
	require.True(t, ok)
	assert.Equal(t, "Write report", task.Title)
	require.NotNil(t, task.CreatedAt)
	assert.True(t, task.CreatedAt.Equal(h.store.now))
}

func TestTaskService_Validation(t *testing.T) {
	h, _ := signedIn(t)
	before := h.store.writes.Load()

	tests := []struct {
		name   string
		fields domain.TaskFields
	}{
		{"blank title", domain.TaskFields{Title: "   "}},
		{"multi-line title", domain.TaskFields{Title: "one\ntwo"}},
		{"unknown priority", domain.TaskFields{Title: "ok", Priority: "Urgent"}},
		{"malformed due date", domain.TaskFields{Title: "ok", DueDate: "tomorrow"}},
		{"long title", domain.TaskFields{Title: strings.Repeat("x", 5000)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.gateway.CreateTask(context.Background(), tt.fields)
			require.Error(t, err)
			assert.True(t, errors.IsErrorType(err, errors.ErrorTypeValidation))
		})
	}

	err := h.gateway.UpdateTask(context.Background(), " ", domain.TaskFields{Title: "ok"})
	assert.True(t, errors.IsErrorType(err, errors.ErrorTypeValidation))
	assert.Equal(t, before, h.store.writes.Load())
}

func TestTaskService_UpdateTaskKeepsStatusAndCreatedAt(t *testing.T) {
	h, identity := signedIn(t)
	collection := remote.TasksCollection(identity.ID)
	h.store.put(collection, "t1", remote.Fields{
		domain.FieldTitle:     "Old",
		domain.FieldStatus:    string(domain.StatusCompleted),
		domain.FieldCreatedAt: "2024-01-02T03:04:05Z",
	})

	err := h.gateway.UpdateTask(context.Background(), "t1", domain.TaskFields{Title: "New", Priority: domain.PriorityHigh})
	require.NoError(t, err)

	doc := h.store.doc(collection, "t1")
	assert.Equal(t, "New", doc[domain.FieldTitle])
	assert.Equal(t, string(domain.PriorityHigh), doc[domain.FieldPriority])
	assert.Equal(t, string(domain.StatusCompleted), doc[domain.FieldStatus])
	assert.Equal(t, "2024-01-02T03:04:05Z", doc[domain.FieldCreatedAt])

	err = h.gateway.UpdateTask(context.Background(), "missing", domain.TaskFields{Title: "New"})
	assert.True(t, errors.IsErrorType(err, errors.ErrorTypeNotFound))
}

func TestTaskService_ToggleStatus(t *testing.T) {
	h, identity := signedIn(t)
	collection := remote.TasksCollection(identity.ID)
	h.store.put(collection, "t1", remote.Fields{domain.FieldTitle: "Toggle me"})
	waitForSet(t, h.tasks, func(s *CanonicalSet) bool { return s.Len() == 1 })

	next, err := h.gateway.ToggleStatus(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, next)
	assert.Equal(t, string(domain.StatusCompleted), h.store.doc(collection, "t1")[domain.FieldStatus])

	// the next toggle reads the reconciled set
	waitForSet(t, h.tasks, func(s *CanonicalSet) bool {
		task, ok := s.Get("t1")
		return ok && task.IsCompleted()
	})
	next, err = h.gateway.ToggleStatus(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, next)
	assert.Equal(t, "Toggle me", h.store.doc(collection, "t1")[domain.FieldTitle])

	_, err = h.gateway.ToggleStatus(context.Background(), "nope")
	assert.True(t, errors.IsErrorType(err, errors.ErrorTypeNotFound))
}

func TestTaskService_DeleteTask(t *testing.T) {
	h, identity := signedIn(t)
	collection := remote.TasksCollection(identity.ID)
	h.store.put(collection, "t1", remote.Fields{domain.FieldTitle: "Bye"})
	waitForSet(t, h.tasks, func(s *CanonicalSet) bool { return s.Len() == 1 })

	require.NoError(t, h.gateway.DeleteTask(context.Background(), "t1"))
	assert.Nil(t, h.store.doc(collection, "t1"))
	waitForSet(t, h.tasks, func(s *CanonicalSet) bool { return s.Len() == 0 })

	// deleting again is not an error
	assert.NoError(t, h.gateway.DeleteTask(context.Background(), "t1"))
}

func TestTaskService_StoreFailureLeavesSetAlone(t *testing.T) {
	h, identity := signedIn(t)
	collection := remote.TasksCollection(identity.ID)
	h.store.put(collection, "t1", remote.Fields{domain.FieldTitle: "Gone elsewhere"})
	set := waitForSet(t, h.tasks, func(s *CanonicalSet) bool { return s.Len() == 1 })

	// removed remotely, but the snapshot has not arrived yet
	h.store.mu.Lock()
	delete(h.store.docs[collection], "t1")
	h.store.mu.Unlock()

	_, err := h.gateway.ToggleStatus(context.Background(), "t1")
	assert.True(t, errors.IsErrorType(err, errors.ErrorTypeNotFound))
	assert.Same(t, set, h.tasks.Snapshot())
}

func TestTaskService_SignOutDuringMutation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(h *harness) error
		wantErr bool
	}{
		{
			name: "create succeeds late",
			mutate: func(h *harness) error {
				_, err := h.gateway.CreateTask(context.Background(), domain.TaskFields{Title: "Late"})
				return err
			},
		},
		{
			name: "update fails late",
			mutate: func(h *harness) error {
				return h.gateway.UpdateTask(context.Background(), "missing", domain.TaskFields{Title: "Late"})
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, _ := signedIn(t)
			_, err := h.tasks.WaitSynced(context.Background())
			require.NoError(t, err)

			entered := make(chan struct{})
			release := make(chan struct{})
			h.store.mu.Lock()
			h.store.writeHook = func(string) {
				close(entered)
				<-release
			}
			h.store.mu.Unlock()

			done := make(chan error, 1)
			go func() { done <- tt.mutate(h) }()

			<-entered
			require.NoError(t, h.session.LogOut(context.Background()))
			assert.Nil(t, h.tasks.Snapshot())
			close(release)

			err = <-done
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Never(t, func() bool { return h.tasks.Snapshot() != nil }, 100*time.Millisecond, 5*time.Millisecond)
		})
	}
}
