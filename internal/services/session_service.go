package services

import (
	"context"
	"sync"
	"sync/atomic"

	"protask/internal/domain"
	"protask/internal/errors"
	"protask/internal/logging"
	"protask/internal/remote"
	"protask/internal/validation"
)

// sessionServiceImpl implements the SessionService interface.
//
// Transitions are serialized by tmu and published to watchers while tmu is
// held, so a watcher observes transitions in order and a LogOut has torn
// down every watcher's state by the time it returns. The service makes its
// own provider and store calls outside tmu, but watchers run under it: the
// task store subscribes and unsubscribes from there. DocumentStore
// Subscribe and the Unsubscribe it returns must therefore not wait on a
// session transition.
type sessionServiceImpl struct {
	provider  remote.IdentityProvider
	store     remote.DocumentStore
	mapper    *domain.Mapper
	validator *validation.AccountValidator

	state atomic.Pointer[SessionState]
	tmu   sync.Mutex

	// attempts counts sign-ups and log-ins in flight. Provider
	// notifications caused by them are left to the attempt.
	attempts atomic.Int32

	wmu         sync.Mutex
	watchers    map[int]func(SessionState)
	nextWatcher int

	baseCtx     context.Context
	cancel      context.CancelFunc
	unsubscribe remote.Unsubscribe
	startOnce   sync.Once
}

// NewSessionService creates a new SessionService instance
func NewSessionService(provider remote.IdentityProvider, store remote.DocumentStore, validator *validation.AccountValidator) SessionService {
	if validator == nil {
		validator = validation.NewAccountValidator()
	}
	s := &sessionServiceImpl{
		provider:  provider,
		store:     store,
		mapper:    domain.NewMapper(),
		validator: validator,
		watchers:  make(map[int]func(SessionState)),
	}
	s.state.Store(&SessionState{Status: StatusUnauthenticated})
	s.baseCtx, s.cancel = context.WithCancel(context.Background())
	return s
}

// Start registers with the identity provider.
func (s *sessionServiceImpl) Start(ctx context.Context) error {
	s.startOnce.Do(func() {
		s.baseCtx, s.cancel = context.WithCancel(context.WithoutCancel(ctx))
		s.unsubscribe = s.provider.OnSessionChange(s.onProviderChange)
	})
	return nil
}

// Stop unregisters from the provider. The current state is left as is.
func (s *sessionServiceImpl) Stop() {
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
	if s.cancel != nil {
		s.cancel()
	}
}

func (s *sessionServiceImpl) State() SessionState {
	return *s.state.Load()
}

func (s *sessionServiceImpl) Identity() (domain.Identity, bool) {
	st := s.State()
	if !st.IsAuthenticated() {
		return domain.Identity{}, false
	}
	return *st.Identity, true
}

func (s *sessionServiceImpl) Watch(fn func(SessionState)) remote.Unsubscribe {
	s.tmu.Lock()
	defer s.tmu.Unlock()

	s.wmu.Lock()
	id := s.nextWatcher
	s.nextWatcher++
	s.watchers[id] = fn
	s.wmu.Unlock()

	fn(s.State())

	var once sync.Once
	return func() {
		once.Do(func() {
			s.wmu.Lock()
			delete(s.watchers, id)
			s.wmu.Unlock()
		})
	}
}

// transition applies next when guard accepts the current state. The epoch
// is advanced and every watcher is told before the lock is released.
func (s *sessionServiceImpl) transition(guard func(SessionState) bool, next func(SessionState) SessionState) (SessionState, bool) {
	s.tmu.Lock()
	defer s.tmu.Unlock()

	current := s.State()
	if guard != nil && !guard(current) {
		return current, false
	}
	updated := next(current)
	updated.Epoch = current.Epoch + 1
	s.state.Store(&updated)
	logging.Debugf("session: %s -> %s (epoch %d)\n", current.Status, updated.Status, updated.Epoch)

	s.wmu.Lock()
	fns := make([]func(SessionState), 0, len(s.watchers))
	for _, fn := range s.watchers {
		fns = append(fns, fn)
	}
	s.wmu.Unlock()
	for _, fn := range fns {
		fn(updated)
	}
	return updated, true
}

func atEpoch(epoch uint64) func(SessionState) bool {
	return func(st SessionState) bool { return st.Epoch == epoch }
}

// beginAttempt moves an unauthenticated session to Authenticating.
func (s *sessionServiceImpl) beginAttempt(operation string) (uint64, error) {
	var reason string
	st, ok := s.transition(func(st SessionState) bool {
		switch st.Status {
		case StatusAuthenticated:
			reason = "already logged in; log out first"
			return false
		case StatusAuthenticating:
			reason = "another authentication attempt is in progress"
			return false
		}
		return true
	}, func(st SessionState) SessionState {
		return SessionState{Status: StatusAuthenticating, LastError: st.LastError}
	})
	if !ok {
		return 0, errors.NewInvalidInputError("session", operation, reason)
	}
	s.attempts.Add(1)
	return st.Epoch, nil
}

// failAttempt returns to Unauthenticated with err annotated, unless the
// attempt was superseded.
func (s *sessionServiceImpl) failAttempt(epoch uint64, err error) {
	s.transition(atEpoch(epoch), func(SessionState) SessionState {
		return SessionState{Status: StatusUnauthenticated, LastError: err}
	})
}

// completeAttempt publishes identity unless the attempt was superseded, in
// which case the provider session it created is ended again.
func (s *sessionServiceImpl) completeAttempt(ctx context.Context, epoch uint64, identity domain.Identity) (domain.Identity, error) {
	_, ok := s.transition(atEpoch(epoch), func(SessionState) SessionState {
		return SessionState{Status: StatusAuthenticated, Identity: &identity}
	})
	if ok {
		return identity, nil
	}

	logging.Debugf("session: discarding superseded sign-in for %s\n", identity.ID)
	if err := s.provider.SignOut(ctx); err != nil {
		logging.Errorf("session: could not end superseded provider session: %v\n", err)
	}
	return domain.Identity{}, errors.NewAuthRequiredError("complete sign-in after log out")
}

// SignUp registers an account, persists its profile and signs it in.
func (s *sessionServiceImpl) SignUp(ctx context.Context, email, password, displayName string) (domain.Identity, error) {
	if err := s.validator.ValidateDisplayName(displayName); err != nil {
		return domain.Identity{}, errors.NewValidationError("invalid display name", err)
	}

	epoch, err := s.beginAttempt("sign up")
	if err != nil {
		return domain.Identity{}, err
	}
	defer s.attempts.Add(-1)

	account, err := s.provider.SignUp(ctx, email, password)
	if err != nil {
		err = classifyAuthError("sign up", err)
		s.failAttempt(epoch, err)
		return domain.Identity{}, err
	}

	if err := s.provider.UpdateProfile(ctx, account.ID, displayName); err != nil {
		logging.Errorf("session: could not set provider display name: %v\n", err)
	}
	if err := s.persistProfile(ctx, account.ID, domain.Profile{DisplayName: displayName, Email: account.Email}); err != nil {
		logging.Errorf("session: could not persist profile: %v\n", err)
	}

	return s.completeAttempt(ctx, epoch, account.Identity(displayName))
}

// LogIn authenticates an existing account.
func (s *sessionServiceImpl) LogIn(ctx context.Context, email, password string) (domain.Identity, error) {
	epoch, err := s.beginAttempt("log in")
	if err != nil {
		return domain.Identity{}, err
	}
	defer s.attempts.Add(-1)

	account, err := s.provider.LogIn(ctx, email, password)
	if err != nil {
		err = classifyAuthError("log in", err)
		s.failAttempt(epoch, err)
		return domain.Identity{}, err
	}

	name := s.resolveDisplayName(ctx, account)
	return s.completeAttempt(ctx, epoch, account.Identity(name))
}

// LogOut ends the session locally first, so every watcher has discarded
// its state before the provider is contacted.
func (s *sessionServiceImpl) LogOut(ctx context.Context) error {
	_, changed := s.transition(func(st SessionState) bool {
		return st.Status != StatusUnauthenticated
	}, func(SessionState) SessionState {
		return SessionState{Status: StatusUnauthenticated}
	})
	if !changed {
		return nil
	}

	if err := s.provider.SignOut(ctx); err != nil {
		return errors.NewUnknownAuthError("log out", err)
	}
	return nil
}

// RequestPasswordReset asks the provider to send a reset. It never changes
// the session state.
func (s *sessionServiceImpl) RequestPasswordReset(ctx context.Context, email string) error {
	if err := s.provider.RequestPasswordReset(ctx, email); err != nil {
		return errors.NewUnknownAuthError("request password reset", err)
	}
	return nil
}

// ConfirmPasswordReset completes a reset on providers that support it.
func (s *sessionServiceImpl) ConfirmPasswordReset(ctx context.Context, token, newPassword string) error {
	confirmer, ok := s.provider.(remote.PasswordResetConfirmer)
	if !ok {
		return errors.NewInvalidInputError("token", "", "password resets are completed through the emailed link")
	}
	if err := confirmer.ConfirmPasswordReset(ctx, token, newPassword); err != nil {
		if errors.IsErrorType(err, errors.ErrorTypeCredential) || errors.IsErrorType(err, errors.ErrorTypeInvalidInput) {
			return err
		}
		return errors.NewUnknownAuthError("confirm password reset", err)
	}
	return nil
}

// UpdateDisplayName changes the name at the provider and in the persisted
// profile. If the profile write fails the provider change is reverted.
func (s *sessionServiceImpl) UpdateDisplayName(ctx context.Context, name string) error {
	identity, ok := s.Identity()
	if !ok {
		return errors.NewAuthRequiredError("update display name")
	}
	if err := s.validator.ValidateDisplayName(name); err != nil {
		return errors.NewValidationError("invalid display name", err)
	}

	previous := identity.DisplayName
	if err := s.provider.UpdateProfile(ctx, identity.ID, name); err != nil {
		return errors.NewProfileUpdateError(err)
	}

	err := s.store.Set(ctx, remote.ProfileCollection(identity.ID), remote.ProfileDocumentID,
		remote.Fields{domain.FieldDisplayName: name}, true)
	if err != nil {
		if rerr := s.provider.UpdateProfile(ctx, identity.ID, previous); rerr != nil {
			logging.Errorf("session: could not restore provider display name: %v\n", rerr)
		}
		return errors.NewProfileUpdateError(err)
	}

	_, applied := s.transition(func(st SessionState) bool {
		return st.IsAuthenticated() && st.Identity.ID == identity.ID
	}, func(st SessionState) SessionState {
		renamed := st.Identity.WithDisplayName(name)
		st.Identity = &renamed
		return st
	})
	if !applied {
		logging.Debugf("session: display name change for %s finished after log out\n", identity.ID)
	}
	return nil
}

// onProviderChange follows sessions the provider reports on its own: the
// persisted one at startup and session loss. Changes caused by an attempt
// in progress are left to that attempt.
func (s *sessionServiceImpl) onProviderChange(account *domain.Account) {
	current := s.State()
	if current.Status == StatusAuthenticating || s.attempts.Load() > 0 {
		return
	}

	if account == nil {
		s.transition(func(st SessionState) bool {
			return st.Status == StatusAuthenticated
		}, func(SessionState) SessionState {
			logging.Debugln("session: provider reported sign-out")
			return SessionState{Status: StatusUnauthenticated}
		})
		return
	}

	if current.IsAuthenticated() && current.Identity.ID == account.ID {
		return
	}

	st, ok := s.transition(func(st SessionState) bool {
		return st.Status != StatusAuthenticating
	}, func(SessionState) SessionState {
		return SessionState{Status: StatusAuthenticating}
	})
	if !ok {
		return
	}

	name := s.resolveDisplayName(s.baseCtx, account)
	identity := account.Identity(name)
	s.transition(atEpoch(st.Epoch), func(SessionState) SessionState {
		return SessionState{Status: StatusAuthenticated, Identity: &identity}
	})
}

// resolveDisplayName reads the persisted profile, creating it from the
// account when it is missing. Failures fall back to the email.
func (s *sessionServiceImpl) resolveDisplayName(ctx context.Context, account *domain.Account) string {
	doc, err := s.store.Get(ctx, remote.ProfileCollection(account.ID), remote.ProfileDocumentID)
	if err != nil {
		logging.Errorf("session: could not read profile: %v\n", err)
		return domain.Profile{Email: account.Email}.ResolveName()
	}
	if doc != nil {
		profile := s.mapper.Profile.FromFields(doc.Fields)
		if profile.Email == "" {
			profile.Email = account.Email
		}
		return profile.ResolveName()
	}

	healed := domain.Profile{DisplayName: domain.Profile{Email: account.Email}.ResolveName(), Email: account.Email}
	if err := s.persistProfile(ctx, account.ID, healed); err != nil {
		logging.Errorf("session: could not create missing profile: %v\n", err)
	}
	return healed.DisplayName
}

// persistProfile merges profile into the stored record and stamps
// createdAt only when the record does not have one yet.
func (s *sessionServiceImpl) persistProfile(ctx context.Context, userID string, profile domain.Profile) error {
	collection := remote.ProfileCollection(userID)
	fields := s.mapper.Profile.ToFields(profile)

	existing, err := s.store.Get(ctx, collection, remote.ProfileDocumentID)
	if err != nil {
		return err
	}
	if existing == nil || existing.Fields[domain.FieldCreatedAt] == nil {
		fields[domain.FieldCreatedAt] = remote.ServerTimestamp
	}
	return s.store.Set(ctx, collection, remote.ProfileDocumentID, fields, true)
}

// classifyAuthError keeps credential errors and wraps everything else as
// an opaque authentication failure.
func classifyAuthError(operation string, err error) error {
	if errors.IsErrorType(err, errors.ErrorTypeCredential) {
		return err
	}
	return errors.NewUnknownAuthError(operation, err)
}
