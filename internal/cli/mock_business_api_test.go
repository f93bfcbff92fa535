package cli

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"protask/internal/api"
	"protask/internal/config"
	"protask/internal/domain"
	"protask/internal/errors"
	"protask/internal/services"
)

// cliNow is the fixed "now" of every CLI test
var cliNow = time.Date(2024, 6, 15, 9, 0, 0, 0, time.UTC)

type mockAccount struct {
	password string
	identity domain.Identity
}

// mockBusinessAPI implements the BusinessAPI interface in memory. Writes are
// visible immediately, as if the subscription delivered them at once.
type mockBusinessAPI struct {
	mu sync.Mutex

	accounts    map[string]*mockAccount
	resetTokens map[string]string
	identity    *domain.Identity

	tasks  map[string]domain.Task
	nextID int

	// failWith makes every call after sign-in fail
	failWith error
	// loadErr hides every task, as a failed subscription does
	loadErr error
}

// newMockBusinessAPI creates a new mock BusinessAPI instance
func newMockBusinessAPI() *mockBusinessAPI {
	return &mockBusinessAPI{
		accounts:    make(map[string]*mockAccount),
		resetTokens: make(map[string]string),
		tasks:       make(map[string]domain.Task),
	}
}

var _ api.BusinessAPI = (*mockBusinessAPI)(nil)

func (m *mockBusinessAPI) SignUp(ctx context.Context, email, password, displayName string) (*domain.Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.identity != nil {
		return nil, errors.NewInvalidInputError("session", email, "already signed in")
	}
	if _, exists := m.accounts[email]; exists {
		return nil, errors.NewCredentialError(errors.ReasonAlreadyRegistered)
	}
	if len(password) < 6 {
		return nil, errors.NewCredentialError(errors.ReasonWeakPassword)
	}
	identity := domain.Identity{ID: fmt.Sprintf("user-%d", len(m.accounts)+1), Email: email, DisplayName: displayName}
	m.accounts[email] = &mockAccount{password: password, identity: identity}
	m.identity = &identity
	return &identity, nil
}

func (m *mockBusinessAPI) LogIn(ctx context.Context, email, password string) (*domain.Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.identity != nil {
		return nil, errors.NewInvalidInputError("session", email, "already signed in")
	}
	account, exists := m.accounts[email]
	if !exists || account.password != password {
		return nil, errors.NewCredentialError(errors.ReasonInvalidCredentials)
	}
	identity := account.identity
	m.identity = &identity
	return &identity, nil
}

func (m *mockBusinessAPI) LogOut(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.identity = nil
	return nil
}

func (m *mockBusinessAPI) WhoAmI(ctx context.Context) (*domain.Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.identity == nil {
		return nil, errors.NewAuthRequiredError("show the current account")
	}
	identity := *m.identity
	return &identity, nil
}

func (m *mockBusinessAPI) RequestPasswordReset(ctx context.Context, email string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.accounts[email]; exists {
		m.resetTokens["token-"+email] = email
	}
	return nil
}

func (m *mockBusinessAPI) ConfirmPasswordReset(ctx context.Context, token, newPassword string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	email, ok := m.resetTokens[token]
	if !ok {
		return errors.NewInvalidInputError("token", token, "reset token is invalid or expired")
	}
	delete(m.resetTokens, token)
	m.accounts[email].password = newPassword
	return nil
}

func (m *mockBusinessAPI) UpdateDisplayName(ctx context.Context, name string) (*domain.Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.identity == nil {
		return nil, errors.NewAuthRequiredError("update the display name")
	}
	if strings.TrimSpace(name) == "" {
		return nil, errors.NewValidationError("display name cannot be empty", nil)
	}
	renamed := m.identity.WithDisplayName(strings.TrimSpace(name))
	m.identity = &renamed
	m.accounts[renamed.Email].identity = renamed
	return &renamed, nil
}

// requireSession must be called with mu held
func (m *mockBusinessAPI) requireSession(operation string) error {
	if m.identity == nil {
		return errors.NewAuthRequiredError(operation)
	}
	return m.failWith
}

func (m *mockBusinessAPI) AddTask(ctx context.Context, fields domain.TaskFields) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.requireSession("create a task"); err != nil {
		return "", err
	}
	fields.Title = strings.TrimSpace(fields.Title)
	if fields.Title == "" {
		return "", errors.NewValidationError("title is required", nil)
	}
	if fields.Priority == "" {
		fields.Priority = domain.DefaultPriority
	}

	m.nextID++
	created := cliNow.Add(-time.Duration(m.nextID) * time.Hour)
	id := fmt.Sprintf("0190%04d-7000-8000-aaaa-%012d", m.nextID, m.nextID)
	m.tasks[id] = domain.Task{
		ID:          id,
		Title:       fields.Title,
		Description: fields.Description,
		Category:    fields.Category,
		Priority:    fields.Priority,
		DueDate:     fields.DueDate,
		Status:      domain.StatusPending,
		CreatedAt:   &created,
	}
	return id, nil
}

func (m *mockBusinessAPI) EditTask(ctx context.Context, ref string, patch api.TaskPatch) (*domain.Task, error) {
	if patch.IsEmpty() {
		return nil, errors.NewInvalidInputError("fields", "", "nothing to change")
	}
	task, err := m.GetTask(ctx, ref)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	fields := patch.Apply(task.Fields())
	task.Title = fields.Title
	task.Description = fields.Description
	task.Category = fields.Category
	task.Priority = fields.Priority
	task.DueDate = fields.DueDate
	m.tasks[task.ID] = *task
	return task, nil
}

func (m *mockBusinessAPI) ToggleTask(ctx context.Context, ref string) (*domain.Task, domain.Status, error) {
	task, err := m.GetTask(ctx, ref)
	if err != nil {
		return nil, "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	toggled := *task
	toggled.Status = task.Status.Toggle()
	m.tasks[task.ID] = toggled
	return task, toggled.Status, nil
}

func (m *mockBusinessAPI) DeleteTask(ctx context.Context, ref string) error {
	task, err := m.GetTask(ctx, ref)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tasks, task.ID)
	return nil
}

func (m *mockBusinessAPI) GetTask(ctx context.Context, ref string) (*domain.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.requireSession("read tasks"); err != nil {
		return nil, err
	}
	if task, ok := m.tasks[ref]; ok {
		return &task, nil
	}
	var matches []domain.Task
	for id, task := range m.tasks {
		if strings.HasPrefix(id, ref) || strings.HasSuffix(id, ref) {
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

// snapshot must be called with mu held
func (m *mockBusinessAPI) snapshot() *services.CanonicalSet {
	if m.loadErr != nil {
		return services.NewCanonicalSet(m.identity.ID, uint64(m.nextID), nil)
	}
	tasks := make([]domain.Task, 0, len(m.tasks))
	for _, task := range m.tasks {
		tasks = append(tasks, task)
	}
	return services.NewCanonicalSet(m.identity.ID, uint64(m.nextID), tasks)
}

func (m *mockBusinessAPI) ListTasks(ctx context.Context, spec domain.ViewSpec) ([]domain.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.requireSession("read tasks"); err != nil {
		return nil, err
	}
	return services.BuildView(m.snapshot(), spec.Normalize(), cliNow), nil
}

func (m *mockBusinessAPI) WatchTasks(ctx context.Context, spec domain.ViewSpec, fn func(*services.Derived)) error {
	m.mu.Lock()
	if err := m.requireSession("watch tasks"); err != nil {
		m.mu.Unlock()
		return err
	}
	set := m.snapshot()
	m.mu.Unlock()

	spec = spec.Normalize()
	fn(&services.Derived{
		Owner:      set.Owner(),
		SetVersion: set.Version(),
		Synced:     true,
		Spec:       spec,
		Tasks:      services.BuildView(set, spec, cliNow),
		Stats:      services.Aggregate(set),
		Categories: services.Categories(set),
		ComputedAt: cliNow,
	})
	<-ctx.Done()
	return nil
}

func (m *mockBusinessAPI) IsOverdue(task domain.Task) bool {
	return task.IsOverdue(cliNow)
}

func (m *mockBusinessAPI) LoadError() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loadErr
}

func (m *mockBusinessAPI) GetDashboardData(ctx context.Context) (*services.DashboardData, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.requireSession("read statistics"); err != nil {
		return nil, err
	}
	set := m.snapshot()
	data := services.NewReportingService(func() time.Time { return cliNow }).Dashboard(set)
	return &data, nil
}

func (m *mockBusinessAPI) ListCategories(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.requireSession("read categories"); err != nil {
		return nil, err
	}
	return services.Categories(m.snapshot()), nil
}

// setupTestAppWithMockBusinessAPI creates an App over a fresh mock with
// colour off, output captured and the clock fixed at cliNow
func setupTestAppWithMockBusinessAPI(t *testing.T) (*App, func()) {
	t.Helper()
	return setupTestAppWithInput(t, "")
}

// setupTestAppWithInput is setupTestAppWithMockBusinessAPI with canned
// answers for prompts
func setupTestAppWithInput(t *testing.T, input string) (*App, func()) {
	t.Helper()

	cfg := config.NewConfig()
	cfg.Display.Color = false

	app := NewAppWithConfig(newMockBusinessAPI(), cfg).WithIO(strings.NewReader(input), &bytes.Buffer{})

	prevNow := timeNow
	timeNow = func() time.Time { return cliNow }
	cleanup := func() {
		timeNow = prevNow
	}

	return app, cleanup
}

// mockOf returns the mock behind app
func mockOf(app *App) *mockBusinessAPI {
	return app.businessAPI.(*mockBusinessAPI)
}

// output returns and resets what app has printed
func output(app *App) string {
	buf := app.out.(*bytes.Buffer)
	out := buf.String()
	buf.Reset()
	return out
}

// signedIn signs the mock in as Ada
func signedIn(t *testing.T, app *App) {
	t.Helper()
	if _, err := app.businessAPI.SignUp(context.Background(), "ada@example.com", "secret1", "Ada"); err != nil {
		t.Fatalf("SignUp failed: %v", err)
	}
}

// addTask adds a task through the mock and returns its id
func addTask(t *testing.T, app *App, fields domain.TaskFields) string {
	t.Helper()
	id, err := app.businessAPI.AddTask(context.Background(), fields)
	if err != nil {
		t.Fatalf("AddTask failed: %v", err)
	}
	return id
}
