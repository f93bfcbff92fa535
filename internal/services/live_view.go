package services

import (
	"sync"
	"sync/atomic"
	"time"

	"protask/internal/domain"
	"protask/internal/errors"
	"protask/internal/remote"
	"protask/internal/validation"
)

// Derived is everything a list screen renders, computed from one canonical
// set and one view specification.
type Derived struct {
	Owner        string
	SetVersion   uint64
	SpecRevision uint64
	Synced       bool
	Spec         domain.ViewSpec
	Tasks        []domain.Task
	Stats        Statistics
	Categories   []string
	ComputedAt   time.Time
}

// LiveView keeps a Derived value current. It recomputes whenever the task
// store replaces the canonical set or the view specification changes.
type LiveView struct {
	tasks     TaskStore
	validator *validation.TaskValidator
	now       Clock

	// mu serializes recomputation, so a publish never replaces a result
	// computed from newer inputs.
	mu      sync.Mutex
	spec    domain.ViewSpec
	specRev uint64
	current atomic.Pointer[Derived]

	notifyMu    sync.Mutex
	wmu         sync.Mutex
	watchers    map[int]func(*Derived)
	nextWatcher int

	stop      remote.Unsubscribe
	closeOnce sync.Once
}

// NewLiveView starts following tasks with spec as the initial view.
func NewLiveView(tasks TaskStore, spec domain.ViewSpec, validator *validation.TaskValidator, now Clock) *LiveView {
	if validator == nil {
		validator = validation.NewTaskValidator()
	}
	if now == nil {
		now = time.Now
	}
	lv := &LiveView{
		tasks:     tasks,
		validator: validator,
		now:       now,
		spec:      spec.Normalize(),
		watchers:  make(map[int]func(*Derived)),
	}
	lv.stop = tasks.Watch(func(*CanonicalSet) { lv.refresh() })
	return lv
}

// Current returns the latest result. It is never nil after construction.
func (lv *LiveView) Current() *Derived {
	return lv.current.Load()
}

// Spec returns the view specification in effect.
func (lv *LiveView) Spec() domain.ViewSpec {
	lv.mu.Lock()
	defer lv.mu.Unlock()
	return lv.spec
}

// SetSpec replaces the view specification and recomputes.
func (lv *LiveView) SetSpec(spec domain.ViewSpec) error {
	return lv.UpdateSpec(func(domain.ViewSpec) domain.ViewSpec { return spec })
}

// UpdateSpec derives a new specification from the current one, for
// example to flip the sort direction.
func (lv *LiveView) UpdateSpec(change func(domain.ViewSpec) domain.ViewSpec) error {
	lv.mu.Lock()
	next := change(lv.spec).Normalize()
	if err := lv.validator.ValidateViewSpec(next); err != nil {
		lv.mu.Unlock()
		return errors.NewValidationError("invalid view", err)
	}
	lv.spec = next
	lv.specRev++
	lv.recomputeLocked()
	lv.mu.Unlock()

	lv.publish()
	return nil
}

// Refresh recomputes against the current clock, e.g. after midnight.
func (lv *LiveView) Refresh() {
	lv.refresh()
}

func (lv *LiveView) refresh() {
	lv.mu.Lock()
	lv.recomputeLocked()
	lv.mu.Unlock()
	lv.publish()
}

func (lv *LiveView) recomputeLocked() {
	set := lv.tasks.Snapshot()
	now := lv.now()
	d := &Derived{
		SpecRevision: lv.specRev,
		Spec:         lv.spec,
		Tasks:        BuildView(set, lv.spec, now),
		Stats:        Aggregate(set),
		Categories:   Categories(set),
		ComputedAt:   now,
	}
	if set != nil {
		d.Owner = set.Owner()
		d.SetVersion = set.Version()
		d.Synced = set.Synced()
	}
	lv.current.Store(d)
}

// Watch calls fn with the current result and after every recomputation.
// fn must not call SetSpec or UpdateSpec.
func (lv *LiveView) Watch(fn func(*Derived)) remote.Unsubscribe {
	lv.notifyMu.Lock()
	defer lv.notifyMu.Unlock()

	lv.wmu.Lock()
	id := lv.nextWatcher
	lv.nextWatcher++
	lv.watchers[id] = fn
	lv.wmu.Unlock()

	fn(lv.current.Load())

	var once sync.Once
	return func() {
		once.Do(func() {
			lv.wmu.Lock()
			delete(lv.watchers, id)
			lv.wmu.Unlock()
		})
	}
}

func (lv *LiveView) publish() {
	lv.notifyMu.Lock()
	defer lv.notifyMu.Unlock()

	d := lv.current.Load()
	lv.wmu.Lock()
	fns := make([]func(*Derived), 0, len(lv.watchers))
	for _, fn := range lv.watchers {
		fns = append(fns, fn)
	}
	lv.wmu.Unlock()
	for _, fn := range fns {
		fn(d)
	}
}

// Close stops following the task store.
func (lv *LiveView) Close() {
	lv.closeOnce.Do(lv.stop)
}
