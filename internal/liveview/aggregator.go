// Package liveview keeps one signed-in user's map of friend positions current
// by folding change-feed events into a seeded snapshot.
package liveview

import (
	"context"
	"sync"

	"friendmap/internal/changefeed"
	"friendmap/internal/models"
	"friendmap/pkg/logger"

	"go.uber.org/zap"
)

// Resolver loads the caller's mutual friends and their current rows.
type Resolver interface {
	MutualFriends(ctx context.Context, uid string) (map[string]string, error)
	ResolveFriendLocations(ctx context.Context, uid string) ([]models.FriendLocation, error)
}

type Subscriber interface {
	Subscribe(table string, types []changefeed.EventType, h changefeed.Handler) *changefeed.Subscription
}

// WatchFunc receives the full friend list after every change. It is called
// synchronously and must not block.
type WatchFunc func([]models.FriendLocation)

// Aggregator is the live view for one user. Location events are applied as
// they arrive; any share-link event touching the user re-resolves the friend
// set, so approvals and disconnects show up without a reload.
type Aggregator struct {
	uid      string
	resolver Resolver
	feed     Subscriber
	log      *zap.SugaredLogger

	mu        sync.Mutex
	state     State
	resolving bool
	pending   []changefeed.Event
	watchers  map[int]WatchFunc
	nextWatch int
	subs      []*changefeed.Subscription

	// notifyMu keeps watcher deliveries ordered; each delivery reads the
	// latest state while holding it.
	notifyMu sync.Mutex

	refreshCh chan struct{}
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	closeOnce sync.Once
}

func New(uid string, resolver Resolver, feed Subscriber) *Aggregator {
	return &Aggregator{
		uid:       uid,
		resolver:  resolver,
		feed:      feed,
		log:       logger.With("uid", uid, "component", "liveview"),
		state:     NewState(uid, nil, nil),
		watchers:  make(map[int]WatchFunc),
		refreshCh: make(chan struct{}, 1),
	}
}

// Start subscribes to both tables and seeds the view. Events arriving while
// the seed query runs are replayed on top of it. A seed failure is returned
// but leaves the aggregator running with an empty view; Close must still be
// called.
func (a *Aggregator) Start(ctx context.Context) error {
	loopCtx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel

	a.mu.Lock()
	a.resolving = true
	a.mu.Unlock()

	a.subs = append(a.subs,
		a.feed.Subscribe((models.LiveLocation{}).TableName(), changefeed.AllEvents, a.onLocation),
		a.feed.Subscribe((models.ShareLink{}).TableName(), changefeed.AllEvents, a.onShare),
	)

	err := a.resolve(ctx)

	a.wg.Add(1)
	go a.refreshLoop(loopCtx)
	return err
}

// Refresh asks for the friend set to be re-resolved in the background.
func (a *Aggregator) Refresh() {
	select {
	case a.refreshCh <- struct{}{}:
	default:
	}
}

// Watch registers fn and immediately delivers the current list to it.
func (a *Aggregator) Watch(fn WatchFunc) (cancel func()) {
	a.notifyMu.Lock()
	defer a.notifyMu.Unlock()

	a.mu.Lock()
	id := a.nextWatch
	a.nextWatch++
	a.watchers[id] = fn
	list := a.state.List()
	a.mu.Unlock()

	fn(list)
	return func() {
		a.mu.Lock()
		delete(a.watchers, id)
		a.mu.Unlock()
	}
}

func (a *Aggregator) Snapshot() []models.FriendLocation {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state.List()
}

func (a *Aggregator) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Close releases both subscriptions and stops the refresh loop. Safe to call
// more than once and on an aggregator whose Start failed.
func (a *Aggregator) Close() {
	a.closeOnce.Do(func() {
		for _, s := range a.subs {
			s.Close()
		}
		if a.cancel != nil {
			a.cancel()
		}
		a.wg.Wait()

		a.mu.Lock()
		a.watchers = make(map[int]WatchFunc)
		a.mu.Unlock()
	})
}

func (a *Aggregator) onLocation(ev changefeed.Event) {
	a.mu.Lock()
	if a.resolving {
		a.pending = append(a.pending, ev)
		a.mu.Unlock()
		return
	}
	prev := a.state
	a.state = ApplyEvent(a.state, ev)
	changed := !sameState(prev, a.state)
	a.mu.Unlock()

	if changed {
		a.notify()
	}
}

func (a *Aggregator) onShare(ev changefeed.Event) {
	link, ok := ev.Row().(*models.ShareLink)
	if !ok || link == nil || !link.Involves(a.uid) {
		return
	}
	a.Refresh()
}

func (a *Aggregator) refreshLoop(ctx context.Context) {
	defer a.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-a.refreshCh:
			a.mu.Lock()
			a.resolving = true
			a.mu.Unlock()
			if err := a.resolve(ctx); err != nil && ctx.Err() == nil {
				a.log.Warnw("re-resolving friends failed", "error", err)
			}
		}
	}
}

// resolve must be entered with resolving set. It loads a fresh view, replays
// the events buffered meanwhile, installs it and notifies watchers. On error
// the buffered events are replayed onto the current view instead.
func (a *Aggregator) resolve(ctx context.Context) error {
	friends, err := a.resolver.MutualFriends(ctx, a.uid)
	var locs []models.FriendLocation
	if err == nil {
		locs, err = a.resolver.ResolveFriendLocations(ctx, a.uid)
	}

	a.mu.Lock()
	next := a.state
	if err == nil {
		next = NewState(a.uid, friends, locs)
	}
	for _, ev := range a.pending {
		next = ApplyEvent(next, ev)
	}
	a.pending = nil
	a.resolving = false
	a.state = next
	a.mu.Unlock()

	a.notify()
	if err == nil {
		a.log.Debugw("friend set resolved", "friends", len(friends), "visible", len(locs))
	}
	return err
}

func (a *Aggregator) notify() {
	a.notifyMu.Lock()
	defer a.notifyMu.Unlock()

	a.mu.Lock()
	list := a.state.List()
	fns := make([]WatchFunc, 0, len(a.watchers))
	for _, fn := range a.watchers {
		fns = append(fns, fn)
	}
	a.mu.Unlock()

	for _, fn := range fns {
		fn(list)
	}
}

// sameState reports whether two states show the same positions.
func sameState(a, b State) bool {
	if len(a.locations) != len(b.locations) || len(a.friends) != len(b.friends) {
		return false
	}
	if len(a.locations) == 0 {
		return true
	}
	for k, v := range a.locations {
		if w, ok := b.locations[k]; !ok || w != v {
			return false
		}
	}
	return true
}
