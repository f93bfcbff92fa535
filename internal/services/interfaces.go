package services

import (
	"context"
	"time"

	"protask/internal/domain"
	"protask/internal/remote"
)

// SessionStatus is the position of the session state machine.
type SessionStatus int

const (
	StatusUnauthenticated SessionStatus = iota
	StatusAuthenticating
	StatusAuthenticated
)

// String returns the string representation of the session status
func (s SessionStatus) String() string {
	switch s {
	case StatusUnauthenticated:
		return "unauthenticated"
	case StatusAuthenticating:
		return "authenticating"
	case StatusAuthenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}

// SessionState is replaced wholesale on every transition. Identity is set
// only while Authenticated. LastError annotates the most recent failed
// attempt and is cleared by the next successful one.
type SessionState struct {
	Status    SessionStatus
	Identity  *domain.Identity
	LastError error
	// Epoch increases with every transition.
	Epoch uint64
}

// IsAuthenticated reports whether an identity is present.
func (s SessionState) IsAuthenticated() bool {
	return s.Status == StatusAuthenticated && s.Identity != nil
}

// Statistics summarises a canonical set. Keys that never occur are absent.
type Statistics struct {
	CountsByStatus       map[domain.Status]int   `json:"counts_by_status"`
	CountsByPriority     map[domain.Priority]int `json:"counts_by_priority"`
	CountsByCategory     map[string]int          `json:"counts_by_category"`
	CompletionPercentage int                     `json:"completion_percentage"`
	TotalCount           int                     `json:"total_count"`
}

// DashboardData is everything the statistics screen shows.
type DashboardData struct {
	Statistics   Statistics `json:"statistics"`
	OverdueCount int        `json:"overdue_count"`
	Categories   []string   `json:"categories"`
}

// SessionService tracks the authenticated identity and gates the rest of
// the system on it.
type SessionService interface {
	// Start registers with the identity provider. A session persisted by
	// the provider is restored before Start returns if the provider reports
	// it synchronously.
	Start(ctx context.Context) error
	Stop()

	State() SessionState
	Identity() (domain.Identity, bool)
	// Watch calls fn with the current state and then after every
	// transition. Calls are made synchronously inside the transition.
	Watch(fn func(SessionState)) remote.Unsubscribe

	SignUp(ctx context.Context, email, password, displayName string) (domain.Identity, error)
	LogIn(ctx context.Context, email, password string) (domain.Identity, error)
	LogOut(ctx context.Context) error
	RequestPasswordReset(ctx context.Context, email string) error
	ConfirmPasswordReset(ctx context.Context, token, newPassword string) error
	UpdateDisplayName(ctx context.Context, name string) error
}

// TaskStore owns the canonical set of the current identity.
type TaskStore interface {
	// Snapshot returns the current canonical set, or nil while signed out.
	Snapshot() *CanonicalSet
	// Watch calls fn with the current set and after every replacement.
	Watch(fn func(*CanonicalSet)) remote.Unsubscribe
	// WaitSynced blocks until the first snapshot for the current identity
	// has been applied.
	WaitSynced(ctx context.Context) (*CanonicalSet, error)
	// LastError is the failure of the current subscription, if any.
	LastError() error
	Close()
}

// TaskService validates and forwards task writes to the document store.
// The canonical set is never patched locally; writes come back through the
// subscription.
type TaskService interface {
	CreateTask(ctx context.Context, fields domain.TaskFields) (string, error)
	UpdateTask(ctx context.Context, id string, fields domain.TaskFields) error
	ToggleStatus(ctx context.Context, id string) (domain.Status, error)
	DeleteTask(ctx context.Context, id string) error
}

// ViewService turns a canonical set into what a list screen shows.
type ViewService interface {
	View(set *CanonicalSet, spec domain.ViewSpec) ([]domain.Task, error)
	Categories(set *CanonicalSet) []string
	IsOverdue(task domain.Task) bool
}

// ReportingService computes the statistics screen.
type ReportingService interface {
	Aggregate(set *CanonicalSet) Statistics
	Dashboard(set *CanonicalSet) DashboardData
}

// ServiceContainer manages all services and their dependencies
type ServiceContainer struct {
	SessionService   SessionService
	TaskStore        TaskStore
	TaskService      TaskService
	ViewService      ViewService
	ReportingService ReportingService
}

// Clock returns the current time. Services take one so tests can pin "today".
type Clock func() time.Time
