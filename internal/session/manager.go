// Package session runs the per-user publisher loop and live view between
// sign-in and sign-out.
package session

import (
	"context"
	"sync"
	"time"

	"friendmap/internal/liveview"
	"friendmap/internal/metrics"
	"friendmap/internal/publisher"
	apperrors "friendmap/pkg/errors"
	"friendmap/pkg/logger"
)

const readingBuffer = 16

// Session is one signed-in user's publisher and live view.
type Session struct {
	UID       string
	Publisher *publisher.Publisher
	View      *liveview.Aggregator

	// life serialises seeding the view and restarts against teardown.
	life   sync.Mutex
	closed bool

	// Guarded by Manager.mu. refs counts attached map sockets; lastUsed is
	// bumped by every Open and Submit.
	refs     int
	lastUsed time.Time

	mu       sync.Mutex
	readings chan publisher.Reading
	cancel   context.CancelFunc
	done     chan struct{}
	runErr   error
}

// Running reports whether the position loop is still accepting readings.
func (s *Session) Running() bool {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()
	select {
	case <-done:
		return false
	default:
		return true
	}
}

// start launches the position loop. Callers hold no lock.
func (s *Session) start() {
	ctx, cancel := context.WithCancel(context.Background())
	readings := make(chan publisher.Reading, readingBuffer)
	done := make(chan struct{})

	s.mu.Lock()
	s.readings, s.cancel, s.done, s.runErr = readings, cancel, done, nil
	s.mu.Unlock()

	go func() {
		defer close(done)
		err := s.Publisher.Run(ctx, readings)
		if err != nil {
			logger.Warn("position loop stopped", "uid", s.UID, "error", err)
		}
		s.mu.Lock()
		s.runErr = err
		s.mu.Unlock()
	}()
}

func (s *Session) stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.mu.Unlock()
	if cancel != nil {
		cancel()
		<-done
	}
}

// Manager owns every live session, keyed by uid.
type Manager struct {
	store    publisher.LocationStore
	resolver liveview.Resolver
	feed     liveview.Subscriber
	opts     publisher.Options

	now func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewManager(store publisher.LocationStore, resolver liveview.Resolver, feed liveview.Subscriber, opts publisher.Options) *Manager {
	return &Manager{
		store:    store,
		resolver: resolver,
		feed:     feed,
		opts:     opts,
		now:      time.Now,
		sessions: make(map[string]*Session),
	}
}

// Open returns the user's session, creating it on first sign-in. Opening a
// session whose position loop stopped on an unavailable error restarts the
// loop, which is how a client retries. A session opened this way holds no
// reference and is reaped once idle.
func (m *Manager) Open(ctx context.Context, uid string) (*Session, error) {
	return m.open(ctx, uid, false)
}

// Acquire opens the session and takes a reference on it for as long as a
// client is attached. release drops the reference; the session is torn down
// when the last one goes. release is safe to call more than once.
func (m *Manager) Acquire(ctx context.Context, uid string) (*Session, func(), error) {
	s, err := m.open(ctx, uid, true)
	if err != nil {
		return nil, nil, err
	}
	var once sync.Once
	release := func() { once.Do(func() { m.release(s) }) }
	return s, release, nil
}

func (m *Manager) open(ctx context.Context, uid string, acquire bool) (*Session, error) {
	if uid == "" {
		return nil, apperrors.New(apperrors.ErrCodeUnauthorized, "no signed-in user")
	}

	m.mu.Lock()
	if s, ok := m.sessions[uid]; ok {
		s.lastUsed = m.now()
		if acquire {
			s.refs++
		}
		m.mu.Unlock()
		s.life.Lock()
		if !s.closed && !s.Running() {
			s.start()
			logger.Info("position loop restarted", "uid", uid)
		}
		s.life.Unlock()
		return s, nil
	}
	s := &Session{
		UID:       uid,
		Publisher: publisher.New(uid, m.store, m.opts),
		View:      liveview.New(uid, m.resolver, m.feed),
		lastUsed:  m.now(),
	}
	if acquire {
		s.refs = 1
	}
	s.start()
	s.life.Lock()
	m.sessions[uid] = s
	m.mu.Unlock()
	metrics.SessionOpened()

	err := s.View.Start(ctx)
	s.life.Unlock()
	if err != nil {
		// The view stays subscribed and recovers on the next share event.
		logger.Warn("seeding live view failed", "uid", uid, "error", err)
	}
	logger.Info("session opened", "uid", uid)
	return s, nil
}

func (m *Manager) release(s *Session) {
	m.mu.Lock()
	s.refs--
	s.lastUsed = m.now()
	last := s.refs <= 0 && m.sessions[s.UID] == s
	if last {
		delete(m.sessions, s.UID)
	}
	m.mu.Unlock()
	if last {
		teardown(s)
	}
}

// Reap tears down sessions with no attached client that have not been used
// for idle. It returns how many were closed.
func (m *Manager) Reap(idle time.Duration) int {
	cutoff := m.now().Add(-idle)
	m.mu.Lock()
	var stale []*Session
	for uid, s := range m.sessions {
		if s.refs <= 0 && !s.lastUsed.After(cutoff) {
			stale = append(stale, s)
			delete(m.sessions, uid)
		}
	}
	m.mu.Unlock()

	for _, s := range stale {
		teardown(s)
	}
	return len(stale)
}

// RunReaper calls Reap periodically until ctx is done. A non-positive idle
// disables reaping.
func (m *Manager) RunReaper(ctx context.Context, idle time.Duration) {
	if idle <= 0 {
		return
	}
	interval := idle / 2
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := m.Reap(idle); n > 0 {
				logger.Info("idle sessions reaped", "count", n)
			}
		}
	}
}

func (m *Manager) Get(uid string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[uid]
	return s, ok
}

// Submit feeds one reading into the user's position loop.
func (m *Manager) Submit(ctx context.Context, uid string, r publisher.Reading) error {
	m.mu.Lock()
	s, ok := m.sessions[uid]
	if ok {
		s.lastUsed = m.now()
	}
	m.mu.Unlock()
	if !ok {
		return apperrors.New(apperrors.ErrCodeUnauthorized, "no active session, sign in again")
	}
	s.mu.Lock()
	readings, done := s.readings, s.done
	s.mu.Unlock()

	select {
	case readings <- r:
		return nil
	case <-done:
		return apperrors.New(apperrors.ErrCodeUnavailable, "location unavailable, reload to try again")
	case <-ctx.Done():
		return apperrors.Wrap(ctx.Err(), apperrors.ErrCodeTimeout, "position stream is busy")
	}
}

// Close tears down the user's session. Closing an unknown uid is a no-op.
func (m *Manager) Close(uid string) {
	m.mu.Lock()
	s, ok := m.sessions[uid]
	delete(m.sessions, uid)
	m.mu.Unlock()
	if !ok {
		return
	}
	teardown(s)
}

// CloseAll tears down every session; used on shutdown.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	all := make([]*Session, 0, len(m.sessions))
	for uid, s := range m.sessions {
		all = append(all, s)
		delete(m.sessions, uid)
	}
	m.mu.Unlock()

	var wg sync.WaitGroup
	for _, s := range all {
		wg.Add(1)
		go func(s *Session) {
			defer wg.Done()
			teardown(s)
		}(s)
	}
	wg.Wait()
}

func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

func teardown(s *Session) {
	s.life.Lock()
	defer s.life.Unlock()
	s.closed = true
	defer metrics.SessionClosed()
	defer s.View.Close()
	s.stop()
	logger.Info("session closed", "uid", s.UID)
}
