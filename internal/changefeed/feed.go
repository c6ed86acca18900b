package changefeed

import (
	"sync"
	"time"

	"friendmap/internal/metrics"
	"friendmap/pkg/logger"
)

type EventType string

const (
	Insert EventType = "INSERT"
	Update EventType = "UPDATE"
	Delete EventType = "DELETE"
)

// AllEvents subscribes to every event type.
var AllEvents = []EventType{Insert, Update, Delete}

// Record is any row the feed can carry.
type Record interface {
	TableName() string
}

// Event is one row-level change. Delete events carry only Old.
type Event struct {
	Table string
	Type  EventType
	New   Record
	Old   Record
	At    time.Time
}

// Row returns New, or Old for deletes.
func (e Event) Row() Record {
	if e.New != nil {
		return e.New
	}
	return e.Old
}

// Publisher is implemented by Feed; repositories depend on this.
type Publisher interface {
	Publish(ev Event)
}

type Handler func(Event)

// Feed fans row changes out to subscribers. Each subscription has its own
// queue drained by one goroutine, so a subscriber sees events in publish order.
type Feed struct {
	mu         sync.RWMutex
	subs       map[string]map[*Subscription]struct{}
	bufferSize int
}

func New(bufferSize int) *Feed {
	if bufferSize <= 0 {
		bufferSize = 256
	}
	return &Feed{
		subs:       make(map[string]map[*Subscription]struct{}),
		bufferSize: bufferSize,
	}
}

// Subscribe registers h for the given table and event types. The handler runs
// on the subscription's own goroutine and must not call Close on it.
func (f *Feed) Subscribe(table string, types []EventType, h Handler) *Subscription {
	if len(types) == 0 {
		types = AllEvents
	}
	s := &Subscription{
		feed:    f,
		table:   table,
		types:   make(map[EventType]struct{}, len(types)),
		queue:   make(chan Event, f.bufferSize),
		handler: h,
		done:    make(chan struct{}),
	}
	for _, t := range types {
		s.types[t] = struct{}{}
	}

	f.mu.Lock()
	if f.subs[table] == nil {
		f.subs[table] = make(map[*Subscription]struct{})
	}
	f.subs[table][s] = struct{}{}
	f.mu.Unlock()

	go s.run()
	return s
}

// Publish never blocks: a subscriber whose queue is full misses the event.
func (f *Feed) Publish(ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	if ev.Table == "" {
		if row := ev.Row(); row != nil {
			ev.Table = row.TableName()
		}
	}
	metrics.ObserveFeedEvent(ev.Table, string(ev.Type))

	f.mu.RLock()
	defer f.mu.RUnlock()
	for s := range f.subs[ev.Table] {
		if _, ok := s.types[ev.Type]; !ok {
			continue
		}
		select {
		case s.queue <- ev:
		default:
			metrics.ObserveFeedDrop(ev.Table)
			logger.Warn("change-feed subscriber queue full, dropping event", "table", ev.Table, "type", ev.Type)
		}
	}
}

// SubscriberCount reports live subscriptions for a table.
func (f *Feed) SubscriberCount(table string) int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.subs[table])
}

func (f *Feed) unregister(s *Subscription) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if m := f.subs[s.table]; m != nil {
		delete(m, s)
		if len(m) == 0 {
			delete(f.subs, s.table)
		}
	}
}

type Subscription struct {
	feed      *Feed
	table     string
	types     map[EventType]struct{}
	queue     chan Event
	handler   Handler
	done      chan struct{}
	closeOnce sync.Once
}

func (s *Subscription) run() {
	defer close(s.done)
	for ev := range s.queue {
		s.handler(ev)
	}
}

// Close unregisters the subscription, lets queued events drain, and waits for
// the handler goroutine to exit. Safe to call more than once.
func (s *Subscription) Close() {
	s.closeOnce.Do(func() {
		// Unregister under the write lock first so no Publish can still be
		// sending on the queue when it is closed.
		s.feed.unregister(s)
		close(s.queue)
	})
	<-s.done
}
