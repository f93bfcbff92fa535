package services

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"

	"protask/internal/domain"
	"protask/internal/errors"
	"protask/internal/logging"
	"protask/internal/remote"
)

// CanonicalSet is the authoritative copy of one identity's tasks. It is
// immutable; the task store replaces it wholesale.
type CanonicalSet struct {
	owner   string
	version uint64
	synced  bool
	tasks   map[string]domain.Task
}

// NewCanonicalSet builds a set owned by owner. When ids repeat the later
// task wins.
func NewCanonicalSet(owner string, version uint64, tasks []domain.Task) *CanonicalSet {
	byID := make(map[string]domain.Task, len(tasks))
	for _, t := range tasks {
		byID[t.ID] = t
	}
	return &CanonicalSet{owner: owner, version: version, synced: true, tasks: byID}
}

func emptySet(owner string, version uint64) *CanonicalSet {
	return &CanonicalSet{owner: owner, version: version, tasks: map[string]domain.Task{}}
}

// Owner is the id of the identity the set belongs to.
func (c *CanonicalSet) Owner() string { return c.owner }

// Version increases with every replacement made by the same store.
func (c *CanonicalSet) Version() uint64 { return c.version }

// Synced reports whether the set came from a snapshot rather than being the
// empty placeholder created at sign-in.
func (c *CanonicalSet) Synced() bool { return c.synced }

func (c *CanonicalSet) Len() int {
	if c == nil {
		return 0
	}
	return len(c.tasks)
}

// Get looks a task up by id.
func (c *CanonicalSet) Get(id string) (domain.Task, bool) {
	if c == nil {
		return domain.Task{}, false
	}
	t, ok := c.tasks[id]
	return t, ok
}

// Tasks returns a copy of the tasks ordered by id.
func (c *CanonicalSet) Tasks() []domain.Task {
	if c == nil {
		return []domain.Task{}
	}
	out := make([]domain.Task, 0, len(c.tasks))
	for _, t := range c.tasks {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// taskStoreImpl implements the TaskStore interface. It follows the session
// and keeps exactly one subscription per authenticated identity.
type taskStoreImpl struct {
	store  remote.DocumentStore
	mapper *domain.Mapper

	current atomic.Pointer[CanonicalSet]

	// mu guards the subscription bookkeeping below.
	mu          sync.Mutex
	generation  uint64
	owner       string
	version     uint64
	unsubscribe remote.Unsubscribe
	lastErr     error
	synced      chan struct{}

	// notifyMu orders deliveries to watchers.
	notifyMu    sync.Mutex
	wmu         sync.Mutex
	watchers    map[int]func(*CanonicalSet)
	nextWatcher int

	stopSession remote.Unsubscribe
	closeOnce   sync.Once
}

// NewTaskStore creates a TaskStore that follows session.
func NewTaskStore(session SessionService, store remote.DocumentStore) TaskStore {
	ts := &taskStoreImpl{
		store:    store,
		mapper:   domain.NewMapper(),
		watchers: make(map[int]func(*CanonicalSet)),
		synced:   make(chan struct{}),
	}
	ts.stopSession = session.Watch(ts.onSession)
	return ts
}

func (ts *taskStoreImpl) Snapshot() *CanonicalSet {
	return ts.current.Load()
}

func (ts *taskStoreImpl) LastError() error {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return ts.lastErr
}

func (ts *taskStoreImpl) Watch(fn func(*CanonicalSet)) remote.Unsubscribe {
	ts.notifyMu.Lock()
	defer ts.notifyMu.Unlock()

	ts.wmu.Lock()
	id := ts.nextWatcher
	ts.nextWatcher++
	ts.watchers[id] = fn
	ts.wmu.Unlock()

	fn(ts.current.Load())

	var once sync.Once
	return func() {
		once.Do(func() {
			ts.wmu.Lock()
			delete(ts.watchers, id)
			ts.wmu.Unlock()
		})
	}
}

func (ts *taskStoreImpl) WaitSynced(ctx context.Context) (*CanonicalSet, error) {
	for {
		ts.mu.Lock()
		owner, lastErr, synced := ts.owner, ts.lastErr, ts.synced
		ts.mu.Unlock()

		if owner == "" {
			return nil, errors.NewAuthRequiredError("load tasks")
		}
		if lastErr != nil {
			return ts.current.Load(), lastErr
		}
		if set := ts.current.Load(); set != nil && set.Owner() == owner && set.Synced() {
			return set, nil
		}

		select {
		case <-synced:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Close stops following the session and drops the subscription.
func (ts *taskStoreImpl) Close() {
	ts.closeOnce.Do(func() {
		ts.stopSession()
		ts.teardown()
	})
}

// onSession runs inside the session transition, so the set is gone by the
// time a log out returns.
func (ts *taskStoreImpl) onSession(state SessionState) {
	if !state.IsAuthenticated() {
		ts.teardown()
		return
	}

	ts.mu.Lock()
	if ts.owner == state.Identity.ID && ts.unsubscribe != nil {
		ts.mu.Unlock()
		return
	}
	ts.mu.Unlock()

	ts.teardown()
	ts.subscribe(state.Identity.ID)
}

func (ts *taskStoreImpl) subscribe(owner string) {
	ts.mu.Lock()
	ts.generation++
	generation := ts.generation
	ts.owner = owner
	ts.lastErr = nil
	ts.version++
	ts.current.Store(emptySet(owner, ts.version))
	ts.mu.Unlock()
	ts.publish()

	collection := remote.TasksCollection(owner)
	unsubscribe, err := ts.store.Subscribe(context.Background(), collection,
		func(docs []remote.Document) { ts.apply(generation, owner, docs) },
		func(err error) { ts.fail(generation, collection, err) })
	if err != nil {
		ts.fail(generation, collection, err)
		return
	}

	ts.mu.Lock()
	if ts.generation != generation {
		// torn down while subscribing
		ts.mu.Unlock()
		unsubscribe()
		return
	}
	ts.unsubscribe = unsubscribe
	ts.mu.Unlock()
	logging.Debugf("tasks: subscribed to %s (generation %d)\n", collection, generation)
}

func (ts *taskStoreImpl) teardown() {
	ts.mu.Lock()
	if ts.owner == "" && ts.current.Load() == nil {
		ts.mu.Unlock()
		return
	}
	ts.generation++
	unsubscribe := ts.unsubscribe
	ts.unsubscribe = nil
	ts.owner = ""
	ts.lastErr = nil
	ts.current.Store(nil)
	ts.signalSynced()
	ts.synced = make(chan struct{})
	ts.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	logging.Debugln("tasks: canonical set torn down")
	ts.publish()
}

// apply replaces the set with a snapshot unless the subscription that
// produced it is no longer current.
func (ts *taskStoreImpl) apply(generation uint64, owner string, docs []remote.Document) {
	tasks := make([]domain.Task, len(docs))
	for i, doc := range docs {
		tasks[i] = ts.mapper.Task.FromFields(doc.ID, doc.Fields)
	}

	ts.mu.Lock()
	if ts.generation != generation || ts.owner != owner {
		ts.mu.Unlock()
		logging.Debugf("tasks: dropped stale snapshot for generation %d\n", generation)
		return
	}
	if ts.lastErr != nil {
		logging.Debugf("tasks: subscription for %s recovered\n", owner)
		ts.lastErr = nil
	}
	ts.version++
	ts.current.Store(NewCanonicalSet(owner, ts.version, tasks))
	ts.signalSynced()
	ts.mu.Unlock()

	ts.publish()
}

func (ts *taskStoreImpl) fail(generation uint64, collection string, cause error) {
	err := errors.NewSubscriptionError(collection, cause)

	ts.mu.Lock()
	if ts.generation != generation {
		ts.mu.Unlock()
		return
	}
	ts.lastErr = err
	ts.version++
	ts.current.Store(emptySet(ts.owner, ts.version))
	ts.signalSynced()
	ts.mu.Unlock()

	logging.Errorf("tasks: %v\n", err)
	ts.publish()
}

// signalSynced wakes WaitSynced callers. mu must be held.
func (ts *taskStoreImpl) signalSynced() {
	select {
	case <-ts.synced:
	default:
		close(ts.synced)
	}
}

// publish hands watchers the latest set. Reading the set under notifyMu
// means the last delivery is always the newest set, whatever order the
// callers got here in.
func (ts *taskStoreImpl) publish() {
	ts.notifyMu.Lock()
	defer ts.notifyMu.Unlock()

	set := ts.current.Load()
	ts.wmu.Lock()
	fns := make([]func(*CanonicalSet), 0, len(ts.watchers))
	for _, fn := range ts.watchers {
		fns = append(fns, fn)
	}
	ts.wmu.Unlock()
	for _, fn := range fns {
		fn(set)
	}
}
