package remote

import (
	"context"
	"sync"

	"protask/internal/logging"
)

// Loader reads the full membership of a collection.
type Loader func(ctx context.Context, collection string) ([]Document, error)

// Bus fans collection changes out to live subscribers. Each subscriber has
// its own goroutine; change signals coalesce, so a slow subscriber receives
// the latest membership instead of every intermediate one. Deliveries to one
// subscriber never overlap and always reflect a load started after the
// signal that triggered them. A failed load is reported to onError and
// retried on the next change signal; the subscription stays open until it
// is unsubscribed.
type Bus struct {
	load   Loader
	mu     sync.Mutex
	subs   map[string]map[*busSubscription]struct{}
	closed bool
}

type busSubscription struct {
	collection string
	dirty      chan struct{}
	done       chan struct{}
	once       sync.Once
	cancel     context.CancelFunc
	onSnapshot SnapshotFunc
	onError    ErrorFunc
}

// NewBus creates a Bus that reads collections through load.
func NewBus(load Loader) *Bus {
	return &Bus{
		load: load,
		subs: make(map[string]map[*busSubscription]struct{}),
	}
}

// Subscribe registers a listener on collection. The first snapshot is
// delivered asynchronously, never from inside Subscribe.
func (b *Bus) Subscribe(ctx context.Context, collection string, onSnapshot SnapshotFunc, onError ErrorFunc) (Unsubscribe, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	sub := &busSubscription{
		collection: collection,
		dirty:      make(chan struct{}, 1),
		done:       make(chan struct{}),
		cancel:     cancel,
		onSnapshot: onSnapshot,
		onError:    onError,
	}
	sub.dirty <- struct{}{}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		cancel()
		return nil, context.Canceled
	}
	if b.subs[collection] == nil {
		b.subs[collection] = make(map[*busSubscription]struct{})
	}
	b.subs[collection][sub] = struct{}{}
	b.mu.Unlock()

	go b.run(runCtx, sub)

	return func() { b.remove(sub) }, nil
}

// Publish signals every subscriber of collection that it changed.
func (b *Bus) Publish(collection string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for sub := range b.subs[collection] {
		select {
		case sub.dirty <- struct{}{}:
		default:
			// already pending; the next load picks this change up
		}
	}
}

// PublishAll signals every subscriber of every collection.
func (b *Bus) PublishAll() {
	b.mu.Lock()
	collections := make([]string, 0, len(b.subs))
	for c := range b.subs {
		collections = append(collections, c)
	}
	b.mu.Unlock()
	for _, c := range collections {
		b.Publish(c)
	}
}

// Subscribers returns the number of live subscriptions on collection.
func (b *Bus) Subscribers(collection string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[collection])
}

// Close stops every subscription. Later Subscribe calls fail.
func (b *Bus) Close() {
	b.mu.Lock()
	b.closed = true
	var all []*busSubscription
	for _, set := range b.subs {
		for sub := range set {
			all = append(all, sub)
		}
	}
	b.mu.Unlock()
	for _, sub := range all {
		b.remove(sub)
	}
}

func (b *Bus) remove(sub *busSubscription) {
	sub.once.Do(func() {
		close(sub.done)
		sub.cancel()
		b.mu.Lock()
		if set, ok := b.subs[sub.collection]; ok {
			delete(set, sub)
			if len(set) == 0 {
				delete(b.subs, sub.collection)
			}
		}
		b.mu.Unlock()
	})
}

func (b *Bus) run(ctx context.Context, sub *busSubscription) {
	for {
		select {
		case <-sub.done:
			return
		case <-sub.dirty:
		}

		docs, err := b.load(ctx, sub.collection)

		select {
		case <-sub.done:
			return
		default:
		}

		if err != nil {
			logging.Debugf("bus: load %s failed, retrying on next change: %v\n", sub.collection, err)
			if sub.onError != nil {
				sub.onError(err)
			}
			continue
		}
		sub.onSnapshot(docs)
	}
}
