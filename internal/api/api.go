package api

import (
	"context"
	"sync"
	"time"

	"protask/internal/config"
	"protask/internal/domain"
	"protask/internal/errors"
	"protask/internal/remote"
	"protask/internal/services"
	"protask/internal/validation"
)

// Client wires the session, task store, gateway and derived views over one
// identity provider and one document store. Callers Start it once and Close
// it when done.
type Client struct {
	identity remote.IdentityProvider
	store    remote.DocumentStore
	cfg      *config.Config
	now      services.Clock

	taskValidator *validation.TaskValidator
	services      *services.ServiceContainer

	closeOnce sync.Once
}

// NewClient creates a new Client. A nil cfg uses the defaults.
func NewClient(identity remote.IdentityProvider, store remote.DocumentStore, cfg *config.Config) *Client {
	return NewClientWithClock(identity, store, cfg, time.Now)
}

// NewClientWithClock is NewClient with a fixed notion of "today", which the
// overdue and date-range logic read.
func NewClientWithClock(identity remote.IdentityProvider, store remote.DocumentStore, cfg *config.Config, now services.Clock) *Client {
	if cfg == nil {
		cfg = config.NewConfig()
	}
	if now == nil {
		now = time.Now
	}
	taskValidator := validation.NewTaskValidatorWithConfig(cfg)
	session := services.NewSessionService(identity, store, validation.NewAccountValidatorWithConfig(cfg))
	tasks := services.NewTaskStore(session, store)

	return &Client{
		identity:      identity,
		store:         store,
		cfg:           cfg,
		now:           now,
		taskValidator: taskValidator,
		services: &services.ServiceContainer{
			SessionService:   session,
			TaskStore:        tasks,
			TaskService:      services.NewTaskService(session, tasks, store, taskValidator),
			ViewService:      services.NewViewService(taskValidator, now),
			ReportingService: services.NewReportingService(now),
		},
	}
}

// Start restores any persisted session. The task subscription follows on
// its own once a session is authenticated.
func (c *Client) Start(ctx context.Context) error {
	return c.services.SessionService.Start(ctx)
}

// Close stops the subscription and detaches from the identity provider.
// The provider and store themselves are left open.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		c.services.TaskStore.Close()
		c.services.SessionService.Stop()
	})
}

// Services exposes the wired services.
func (c *Client) Services() *services.ServiceContainer {
	return c.services
}

// Config returns the configuration the client was built with.
func (c *Client) Config() *config.Config {
	return c.cfg
}

// NewLiveView starts a derived view over the client's task store. The
// caller closes it.
func (c *Client) NewLiveView(spec domain.ViewSpec) (*services.LiveView, error) {
	spec = spec.Normalize()
	if err := c.taskValidator.ValidateViewSpec(spec); err != nil {
		return nil, errors.NewValidationError("invalid view", err)
	}
	return services.NewLiveView(c.services.TaskStore, spec, c.taskValidator, c.now), nil
}
