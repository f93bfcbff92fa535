package services

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"protask/internal/domain"
	"protask/internal/errors"
	"protask/internal/remote"

	"github.com/stretchr/testify/require"
)

// fakeProvider is an in-memory identity provider.
type fakeProvider struct {
	mu        sync.Mutex
	accounts  map[string]fakeAccount
	current   *domain.Account
	listeners map[int]func(*domain.Account)
	nextID    int

	signUpErr   error
	logInErr    error
	resetErr    error
	updateErrs  []error
	updateCalls []string
	resets      []string
	// logInGate, when set, holds LogIn until it is closed.
	logInGate chan struct{}
	signOuts  int
}

type fakeAccount struct {
	account  domain.Account
	password string
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		accounts:  make(map[string]fakeAccount),
		listeners: make(map[int]func(*domain.Account)),
	}
}

// addAccount registers an account without signing it in.
func (p *fakeProvider) addAccount(email, password string) domain.Account {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nextID++
	acc := domain.Account{ID: fmt.Sprintf("u%d", p.nextID), Email: email}
	p.accounts[email] = fakeAccount{account: acc, password: password}
	return acc
}

// restore pretends a session survived from an earlier run.
func (p *fakeProvider) restore(acc domain.Account) {
	p.mu.Lock()
	p.current = &acc
	p.mu.Unlock()
}

func (p *fakeProvider) SignUp(ctx context.Context, email, password string) (*domain.Account, error) {
	p.mu.Lock()
	if p.signUpErr != nil {
		p.mu.Unlock()
		return nil, p.signUpErr
	}
	if _, exists := p.accounts[email]; exists {
		p.mu.Unlock()
		return nil, errors.NewCredentialError(errors.ReasonAlreadyRegistered)
	}
	p.mu.Unlock()

	acc := p.addAccount(email, password)
	p.setCurrent(&acc)
	return &acc, nil
}

func (p *fakeProvider) LogIn(ctx context.Context, email, password string) (*domain.Account, error) {
	p.mu.Lock()
	gate := p.logInGate
	p.mu.Unlock()
	if gate != nil {
		<-gate
	}

	p.mu.Lock()
	if p.logInErr != nil {
		p.mu.Unlock()
		return nil, p.logInErr
	}
	entry, ok := p.accounts[email]
	p.mu.Unlock()
	if !ok || entry.password != password {
		return nil, errors.NewCredentialError(errors.ReasonInvalidCredentials)
	}

	acc := entry.account
	p.setCurrent(&acc)
	return &acc, nil
}

func (p *fakeProvider) SignOut(ctx context.Context) error {
	p.mu.Lock()
	p.signOuts++
	p.mu.Unlock()
	p.setCurrent(nil)
	return nil
}

func (p *fakeProvider) RequestPasswordReset(ctx context.Context, email string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.resetErr != nil {
		return p.resetErr
	}
	p.resets = append(p.resets, email)
	return nil
}

func (p *fakeProvider) UpdateProfile(ctx context.Context, id, displayName string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.updateCalls = append(p.updateCalls, displayName)
	if len(p.updateErrs) > 0 {
		err := p.updateErrs[0]
		p.updateErrs = p.updateErrs[1:]
		return err
	}
	return nil
}

func (p *fakeProvider) OnSessionChange(fn func(*domain.Account)) remote.Unsubscribe {
	p.mu.Lock()
	id := len(p.listeners)
	p.listeners[id] = fn
	current := p.current
	p.mu.Unlock()

	fn(current)
	return func() {
		p.mu.Lock()
		delete(p.listeners, id)
		p.mu.Unlock()
	}
}

func (p *fakeProvider) setCurrent(acc *domain.Account) {
	p.mu.Lock()
	p.current = acc
	fns := make([]func(*domain.Account), 0, len(p.listeners))
	for _, fn := range p.listeners {
		fns = append(fns, fn)
	}
	p.mu.Unlock()
	for _, fn := range fns {
		fn(acc)
	}
}

func (p *fakeProvider) calls() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.updateCalls...)
}

// fakeStore is an in-memory document store. Subscriptions go through a
// real remote.Bus so deliveries are asynchronous as with the backends.
type fakeStore struct {
	mu     sync.Mutex
	docs   map[string]map[string]remote.Fields
	nextID int
	bus    *remote.Bus

	writes    atomic.Int32
	getErr    error
	setErr    error
	loadErr   error
	subErr    error
	writeHook func(op string)

	// subscribeHook runs at the start of every Subscribe.
	subscribeHook func(collection string)
	now       time.Time
}

func newFakeStore() *fakeStore {
	s := &fakeStore{
		docs: make(map[string]map[string]remote.Fields),
		now:  time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	s.bus = remote.NewBus(s.load)
	return s
}

func (s *fakeStore) load(ctx context.Context, collection string) ([]remote.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	ids := make([]string, 0, len(s.docs[collection]))
	for id := range s.docs[collection] {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]remote.Document, len(ids))
	for i, id := range ids {
		out[i] = remote.Document{ID: id, Fields: remote.MergeFields(nil, s.docs[collection][id])}
	}
	return out, nil
}

func (s *fakeStore) put(collection, id string, fields remote.Fields) {
	s.mu.Lock()
	if s.docs[collection] == nil {
		s.docs[collection] = make(map[string]remote.Fields)
	}
	s.docs[collection][id] = remote.ResolveServerTimestamps(fields, s.now)
	s.mu.Unlock()
	s.bus.Publish(collection)
}

func (s *fakeStore) doc(collection, id string) remote.Fields {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.docs[collection][id]
}

func (s *fakeStore) beforeWrite(op string) {
	s.writes.Add(1)
	s.mu.Lock()
	hook := s.writeHook
	s.mu.Unlock()
	if hook != nil {
		hook(op)
	}
}

func (s *fakeStore) Subscribe(ctx context.Context, collection string, onSnapshot remote.SnapshotFunc, onError remote.ErrorFunc) (remote.Unsubscribe, error) {
	s.mu.Lock()
	err, hook := s.subErr, s.subscribeHook
	s.mu.Unlock()
	if hook != nil {
		hook(collection)
	}
	if err != nil {
		return nil, err
	}
	return s.bus.Subscribe(ctx, collection, onSnapshot, onError)
}

func (s *fakeStore) Get(ctx context.Context, collection, id string) (*remote.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return nil, s.getErr
	}
	fields, ok := s.docs[collection][id]
	if !ok {
		return nil, nil
	}
	return &remote.Document{ID: id, Fields: remote.MergeFields(nil, fields)}, nil
}

func (s *fakeStore) Create(ctx context.Context, collection string, fields remote.Fields) (string, error) {
	s.beforeWrite("create")
	s.mu.Lock()
	s.nextID++
	id := fmt.Sprintf("t%03d", s.nextID)
	s.mu.Unlock()
	s.put(collection, id, fields)
	return id, nil
}

func (s *fakeStore) Set(ctx context.Context, collection, id string, fields remote.Fields, merge bool) error {
	s.beforeWrite("set")
	s.mu.Lock()
	if s.setErr != nil {
		s.mu.Unlock()
		return s.setErr
	}
	existing := s.docs[collection][id]
	s.mu.Unlock()
	if merge {
		fields = remote.MergeFields(existing, fields)
	}
	s.put(collection, id, fields)
	return nil
}

func (s *fakeStore) Update(ctx context.Context, collection, id string, fields remote.Fields) error {
	s.beforeWrite("update")
	s.mu.Lock()
	existing, ok := s.docs[collection][id]
	s.mu.Unlock()
	if !ok {
		return errors.NewNotFoundError("document", collection+"/"+id)
	}
	s.put(collection, id, remote.MergeFields(existing, fields))
	return nil
}

func (s *fakeStore) Delete(ctx context.Context, collection, id string) error {
	s.beforeWrite("delete")
	s.mu.Lock()
	delete(s.docs[collection], id)
	s.mu.Unlock()
	s.bus.Publish(collection)
	return nil
}

// harness wires the services the way the client does.
type harness struct {
	provider *fakeProvider
	store    *fakeStore
	session  SessionService
	tasks    TaskStore
	gateway  TaskService
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{provider: newFakeProvider(), store: newFakeStore()}
	h.session = NewSessionService(h.provider, h.store, nil)
	h.tasks = NewTaskStore(h.session, h.store)
	h.gateway = NewTaskService(h.session, h.tasks, h.store, nil)
	t.Cleanup(func() {
		h.tasks.Close()
		h.session.Stop()
		h.store.bus.Close()
	})
	return h
}

// signedIn returns a harness with a started session for a fresh account.
func signedIn(t *testing.T) (*harness, domain.Identity) {
	t.Helper()
	h := newHarness(t)
	require.NoError(t, h.session.Start(context.Background()))
	identity, err := h.session.SignUp(context.Background(), "ada@example.com", "secret1", "Ada")
	require.NoError(t, err)
	return h, identity
}

// waitForSet waits until the canonical set satisfies cond.
func waitForSet(t *testing.T, tasks TaskStore, cond func(*CanonicalSet) bool) *CanonicalSet {
	t.Helper()
	var got *CanonicalSet
	require.Eventually(t, func() bool {
		got = tasks.Snapshot()
		return got != nil && got.Synced() && cond(got)
	}, 2*time.Second, 5*time.Millisecond)
	return got
}

func timePtr(t time.Time) *time.Time {
	return &t
}

func strPtr(s string) *string {
	return &s
}
