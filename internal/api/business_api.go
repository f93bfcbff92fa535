package api

import (
	"context"
	"strings"

	"protask/internal/domain"
	"protask/internal/errors"
	"protask/internal/services"
)

// TaskPatch carries the fields an edit changes. Nil fields keep their
// current value.
type TaskPatch struct {
	Title       *string
	Description *string
	Category    *string
	Priority    *domain.Priority
	DueDate     *string
}

// IsEmpty reports whether the patch changes nothing.
func (p TaskPatch) IsEmpty() bool {
	return p.Title == nil && p.Description == nil && p.Category == nil && p.Priority == nil && p.DueDate == nil
}

// Apply overlays the patch on fields.
func (p TaskPatch) Apply(fields domain.TaskFields) domain.TaskFields {
	if p.Title != nil {
		fields.Title = *p.Title
	}
	if p.Description != nil {
		fields.Description = *p.Description
	}
	if p.Category != nil {
		fields.Category = *p.Category
	}
	if p.Priority != nil {
		fields.Priority = *p.Priority
	}
	if p.DueDate != nil {
		fields.DueDate = *p.DueDate
	}
	return fields
}

// BusinessAPI defines the workflows the command line drives
type BusinessAPI interface {
	// ========== Account Workflows ==========

	// SignUp registers an account and signs it in
	SignUp(ctx context.Context, email, password, displayName string) (*domain.Identity, error)

	// LogIn signs in an existing account
	LogIn(ctx context.Context, email, password string) (*domain.Identity, error)

	// LogOut ends the session; it is a no-op when nobody is signed in
	LogOut(ctx context.Context) error

	// WhoAmI returns the signed-in identity
	WhoAmI(ctx context.Context) (*domain.Identity, error)

	// RequestPasswordReset issues a reset token for email
	RequestPasswordReset(ctx context.Context, email string) error

	// ConfirmPasswordReset sets a new password with a reset token
	ConfirmPasswordReset(ctx context.Context, token, newPassword string) error

	// UpdateDisplayName renames the signed-in identity
	UpdateDisplayName(ctx context.Context, name string) (*domain.Identity, error)

	// ========== Task Workflows ==========

	// AddTask creates a pending task and returns its id
	AddTask(ctx context.Context, fields domain.TaskFields) (string, error)

	// EditTask applies patch to the task matching ref
	EditTask(ctx context.Context, ref string, patch TaskPatch) (*domain.Task, error)

	// ToggleTask flips the task matching ref between Pending and Completed
	ToggleTask(ctx context.Context, ref string) (*domain.Task, domain.Status, error)

	// DeleteTask removes the task matching ref
	DeleteTask(ctx context.Context, ref string) error

	// ========== Query Operations ==========

	// GetTask resolves ref, a full id or a unique id prefix or suffix
	GetTask(ctx context.Context, ref string) (*domain.Task, error)

	// ListTasks returns the view of the current tasks under spec
	ListTasks(ctx context.Context, spec domain.ViewSpec) ([]domain.Task, error)

	// WatchTasks calls fn with every recomputed view until ctx is done
	WatchTasks(ctx context.Context, spec domain.ViewSpec, fn func(*services.Derived)) error

	// IsOverdue reports whether a pending task was due before today
	IsOverdue(task domain.Task) bool

	// LoadError is the failure of the current task subscription, if any.
	// Queries still succeed with an empty list while it is set.
	LoadError() error

	// ========== Dashboard and Analytics ==========

	// GetDashboardData returns statistics, overdue count and categories
	GetDashboardData(ctx context.Context) (*services.DashboardData, error)

	// ListCategories returns the distinct categories in use
	ListCategories(ctx context.Context) ([]string, error)
}

// businessAPIImpl implements the BusinessAPI interface
type businessAPIImpl struct {
	client   *Client
	services *services.ServiceContainer
}

// NewBusinessAPI creates a new BusinessAPI instance over a started client
func NewBusinessAPI(client *Client) BusinessAPI {
	return &businessAPIImpl{
		client:   client,
		services: client.Services(),
	}
}

// ========== Account Workflows ==========

func (b *businessAPIImpl) SignUp(ctx context.Context, email, password, displayName string) (*domain.Identity, error) {
	identity, err := b.services.SessionService.SignUp(ctx, email, password, displayName)
	if err != nil {
		return nil, err
	}
	return &identity, nil
}

func (b *businessAPIImpl) LogIn(ctx context.Context, email, password string) (*domain.Identity, error) {
	identity, err := b.services.SessionService.LogIn(ctx, email, password)
	if err != nil {
		return nil, err
	}
	return &identity, nil
}

func (b *businessAPIImpl) LogOut(ctx context.Context) error {
	return b.services.SessionService.LogOut(ctx)
}

func (b *businessAPIImpl) WhoAmI(ctx context.Context) (*domain.Identity, error) {
	identity, ok := b.services.SessionService.Identity()
	if !ok {
		return nil, errors.NewAuthRequiredError("show the current account")
	}
	return &identity, nil
}

func (b *businessAPIImpl) RequestPasswordReset(ctx context.Context, email string) error {
	return b.services.SessionService.RequestPasswordReset(ctx, email)
}

func (b *businessAPIImpl) ConfirmPasswordReset(ctx context.Context, token, newPassword string) error {
	return b.services.SessionService.ConfirmPasswordReset(ctx, token, newPassword)
}

func (b *businessAPIImpl) UpdateDisplayName(ctx context.Context, name string) (*domain.Identity, error) {
	if err := b.services.SessionService.UpdateDisplayName(ctx, name); err != nil {
		return nil, err
	}
	return b.WhoAmI(ctx)
}

// ========== Task Workflows ==========

func (b *businessAPIImpl) AddTask(ctx context.Context, fields domain.TaskFields) (string, error) {
	return b.services.TaskService.CreateTask(ctx, fields)
}

func (b *businessAPIImpl) EditTask(ctx context.Context, ref string, patch TaskPatch) (*domain.Task, error) {
	// 1. Nothing to write
	if patch.IsEmpty() {
		return nil, errors.NewInvalidInputError("fields", "", "nothing to change")
	}

	// 2. Resolve against the synced set
	task, err := b.GetTask(ctx, ref)
	if err != nil {
		return nil, err
	}

	// 3. Write the merged editable fields. A stored priority outside the
	// known levels cannot be written back, so it falls to the default.
	current := task.Fields()
	if !current.Priority.IsValid() {
		current.Priority = domain.DefaultPriority
	}
	fields := patch.Apply(current)
	if err := b.services.TaskService.UpdateTask(ctx, task.ID, fields); err != nil {
		return nil, err
	}

	edited := *task
	edited.Title = fields.Title
	edited.Description = fields.Description
	edited.Category = fields.Category
	edited.Priority = fields.Priority
	edited.DueDate = fields.DueDate
	return &edited, nil
}

func (b *businessAPIImpl) ToggleTask(ctx context.Context, ref string) (*domain.Task, domain.Status, error) {
	task, err := b.GetTask(ctx, ref)
	if err != nil {
		return nil, "", err
	}
	status, err := b.services.TaskService.ToggleStatus(ctx, task.ID)
	if err != nil {
		return nil, "", err
	}
	return task, status, nil
}

func (b *businessAPIImpl) DeleteTask(ctx context.Context, ref string) error {
	task, err := b.GetTask(ctx, ref)
	if err != nil {
		return err
	}
	return b.services.TaskService.DeleteTask(ctx, task.ID)
}

// ========== Query Operations ==========

func (b *businessAPIImpl) GetTask(ctx context.Context, ref string) (*domain.Task, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, errors.NewInvalidInputError("task", ref, "task ID is required")
	}

	set, err := b.services.TaskStore.WaitSynced(ctx)
	if err != nil {
		return nil, err
	}
	if task, ok := set.Get(ref); ok {
		return &task, nil
	}

	var matches []domain.Task
	for _, task := range set.Tasks() {
		if strings.HasPrefix(task.ID, ref) || strings.HasSuffix(task.ID, ref) {
			matches = append(matches, task)
		}
	}
	switch len(matches) {
	case 0:
		return nil, errors.NewNotFoundError("task", ref)
	case 1:
		return &matches[0], nil
	default:
		return nil, errors.NewInvalidInputError("task", ref, "matches more than one task; give more of the ID")
	}
}

// loadedSet waits for the first snapshot. A failed subscription has
// already been logged by the store and reads as an empty list.
func (b *businessAPIImpl) loadedSet(ctx context.Context) (*services.CanonicalSet, error) {
	set, err := b.services.TaskStore.WaitSynced(ctx)
	if err != nil && set != nil && errors.IsErrorType(err, errors.ErrorTypeSubscription) {
		return set, nil
	}
	return set, err
}

func (b *businessAPIImpl) ListTasks(ctx context.Context, spec domain.ViewSpec) ([]domain.Task, error) {
	set, err := b.loadedSet(ctx)
	if err != nil {
		return nil, err
	}
	return b.services.ViewService.View(set, spec)
}

// WatchTasks blocks until ctx is done. While the subscription is failing
// the watch keeps rendering the empty set.
func (b *businessAPIImpl) WatchTasks(ctx context.Context, spec domain.ViewSpec, fn func(*services.Derived)) error {
	if _, err := b.loadedSet(ctx); err != nil {
		return err
	}
	view, err := b.client.NewLiveView(spec)
	if err != nil {
		return err
	}
	defer view.Close()

	// deliveries happen on store goroutines; fn runs on this one
	updates := make(chan *services.Derived, 1)
	stop := view.Watch(func(d *services.Derived) {
		select {
		case <-updates:
		default:
		}
		updates <- d
	})
	defer stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case d := <-updates:
			if d.Owner == "" {
				return errors.NewAuthRequiredError("watch tasks")
			}
			fn(d)
		}
	}
}

func (b *businessAPIImpl) IsOverdue(task domain.Task) bool {
	return b.services.ViewService.IsOverdue(task)
}

func (b *businessAPIImpl) LoadError() error {
	return b.services.TaskStore.LastError()
}

// ========== Dashboard and Analytics ==========

func (b *businessAPIImpl) GetDashboardData(ctx context.Context) (*services.DashboardData, error) {
	set, err := b.loadedSet(ctx)
	if err != nil {
		return nil, err
	}
	data := b.services.ReportingService.Dashboard(set)
	return &data, nil
}

func (b *businessAPIImpl) ListCategories(ctx context.Context) ([]string, error) {
	set, err := b.loadedSet(ctx)
	if err != nil {
		return nil, err
	}
	return b.services.ViewService.Categories(set), nil
}
