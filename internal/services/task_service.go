package services

import (
	"context"

	"protask/internal/domain"
	"protask/internal/errors"
	"protask/internal/logging"
	"protask/internal/remote"
	"protask/internal/validation"
)

// taskServiceImpl implements the TaskService interface
type taskServiceImpl struct {
	session       SessionService
	tasks         TaskStore
	store         remote.DocumentStore
	mapper        *domain.Mapper
	taskValidator *validation.TaskValidator
}

// NewTaskService creates a new TaskService instance
func NewTaskService(session SessionService, tasks TaskStore, store remote.DocumentStore, taskValidator *validation.TaskValidator) TaskService {
	if taskValidator == nil {
		taskValidator = validation.NewTaskValidator()
	}
	return &taskServiceImpl{
		session:       session,
		tasks:         tasks,
		store:         store,
		mapper:        domain.NewMapper(),
		taskValidator: taskValidator,
	}
}

// requireIdentity fails before any remote call when nobody is signed in.
func (t *taskServiceImpl) requireIdentity(operation string) (domain.Identity, error) {
	identity, ok := t.session.Identity()
	if !ok {
		return domain.Identity{}, errors.NewAuthRequiredError(operation)
	}
	return identity, nil
}

// validateFields normalizes and validates the editable fields
func (t *taskServiceImpl) validateFields(fields domain.TaskFields) (domain.TaskFields, error) {
	fields = t.taskValidator.Normalize(fields)
	if err := t.taskValidator.ValidateFields(fields); err != nil {
		return fields, errors.NewValidationError("invalid task", err)
	}
	return fields, nil
}

func (t *taskServiceImpl) validateID(id string) error {
	if err := t.taskValidator.ValidateTaskID(id); err != nil {
		return errors.NewValidationError("invalid task ID", err)
	}
	return nil
}

// settle logs results that arrive after the identity that issued them has
// signed out. They are still returned to the caller, but nothing else
// acts on them.
func (t *taskServiceImpl) settle(issuer domain.Identity, operation string, err error) {
	if current, ok := t.session.Identity(); ok && current.ID == issuer.ID {
		return
	}
	if err != nil {
		logging.Debugf("tasks: discarded %s failure for signed-out %s: %v\n", operation, issuer.ID, err)
		return
	}
	logging.Debugf("tasks: discarded %s result for signed-out %s\n", operation, issuer.ID)
}

// CreateTask stores a new pending task. The store assigns the id and the
// creation time.
func (t *taskServiceImpl) CreateTask(ctx context.Context, fields domain.TaskFields) (string, error) {
	identity, err := t.requireIdentity("create a task")
	if err != nil {
		return "", err
	}
	fields, err = t.validateFields(fields)
	if err != nil {
		return "", err
	}

	doc := t.mapper.Task.ToFields(fields)
	doc[domain.FieldStatus] = string(domain.StatusPending)
	doc[domain.FieldCreatedAt] = remote.ServerTimestamp

	id, err := t.store.Create(ctx, remote.TasksCollection(identity.ID), doc)
	t.settle(identity, "create", err)
	if err != nil {
		return "", err
	}
	return id, nil
}

// UpdateTask writes the editable fields only, leaving status and createdAt
// as they are.
func (t *taskServiceImpl) UpdateTask(ctx context.Context, id string, fields domain.TaskFields) error {
	identity, err := t.requireIdentity("update a task")
	if err != nil {
		return err
	}
	if err := t.validateID(id); err != nil {
		return err
	}
	fields, err = t.validateFields(fields)
	if err != nil {
		return err
	}

	err = t.store.Update(ctx, remote.TasksCollection(identity.ID), id, t.mapper.Task.ToFields(fields))
	t.settle(identity, "update", err)
	return err
}

// ToggleStatus flips Pending and Completed based on the canonical set and
// returns the status written.
func (t *taskServiceImpl) ToggleStatus(ctx context.Context, id string) (domain.Status, error) {
	identity, err := t.requireIdentity("change a task's status")
	if err != nil {
		return "", err
	}
	if err := t.validateID(id); err != nil {
		return "", err
	}

	set := t.tasks.Snapshot()
	if set == nil || set.Owner() != identity.ID {
		return "", errors.NewAuthRequiredError("change a task's status")
	}
	task, ok := set.Get(id)
	if !ok {
		return "", errors.NewNotFoundError("task", id)
	}

	next := task.Status.Toggle()
	err = t.store.Update(ctx, remote.TasksCollection(identity.ID), id, t.mapper.Task.StatusFields(next))
	t.settle(identity, "toggle", err)
	if err != nil {
		return "", err
	}
	return next, nil
}

// DeleteTask removes the task. Confirmation is the caller's job.
func (t *taskServiceImpl) DeleteTask(ctx context.Context, id string) error {
	identity, err := t.requireIdentity("delete a task")
	if err != nil {
		return err
	}
	if err := t.validateID(id); err != nil {
		return err
	}

	err = t.store.Delete(ctx, remote.TasksCollection(identity.ID), id)
	t.settle(identity, "delete", err)
	return err
}
