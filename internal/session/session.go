// Package session enforces the one-export-at-a-time rule and tracks the
// lifecycle, progress and cancellation flag of the active export.
package session

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"
)

// ErrBusy is returned when another export holds the manager.
var ErrBusy = errors.New("another export is in progress")

// Stats accumulates facts about one export.
type Stats struct {
	Duration        time.Duration
	Filename        string
	Strategy        string
	Tried           []string // pipelines attempted, in order
	TilesSkipped    int
	SectionsSkipped int
	Pages           int
	Bytes           int
}

// Manager hands out at most one active Session.
type Manager struct {
	sem *semaphore.Weighted

	mu     sync.Mutex
	active *Session
}

// NewManager returns an idle manager.
func NewManager() *Manager {
	return &Manager{sem: semaphore.NewWeighted(1)}
}

// Acquire starts a session for format or fails immediately with ErrBusy.
func (m *Manager) Acquire(format string) (*Session, error) {
	if !m.sem.TryAcquire(1) {
		return nil, ErrBusy
	}
	s := &Session{
		ID:      uuid.NewString(),
		Format:  format,
		Started: time.Now(),
		done:    make(chan struct{}),
		manager: m,
	}
	m.mu.Lock()
	m.active = s
	m.mu.Unlock()
	return s, nil
}

// Active returns the running session, or nil.
func (m *Manager) Active() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// Cancel aborts the running session. It reports whether one was running.
func (m *Manager) Cancel() bool {
	s := m.Active()
	if s == nil {
		return false
	}
	s.Abort()
	return true
}

func (m *Manager) release(s *Session) {
	m.mu.Lock()
	if m.active == s {
		m.active = nil
	}
	m.mu.Unlock()
	m.sem.Release(1)
}

// Session is one in-flight export, owned by the orchestrator that
// acquired it.
type Session struct {
	ID      string
	Format  string
	Started time.Time

	aborted   atomic.Bool
	abortOnce sync.Once
	done      chan struct{}

	mu       sync.Mutex
	state    State
	progress float64
	stats    Stats

	releaseOnce sync.Once
	manager     *Manager
}

// Abort sets the cancellation flag. Safe to call more than once and from
// any goroutine.
func (s *Session) Abort() {
	s.abortOnce.Do(func() {
		s.aborted.Store(true)
		close(s.done)
	})
}

// Aborted reports whether Abort was called.
func (s *Session) Aborted() bool {
	return s.aborted.Load()
}

// Done is closed by Abort.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Transition moves the session to next.
func (s *Session) Transition(next State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !CanTransition(s.state, next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s.state, next)
	}
	s.state = next
	if next.Terminal() {
		s.stats.Duration = time.Since(s.Started)
	}
	return nil
}

// Advance raises progress to pct, clamped to [0, 100]. Progress never
// decreases; the returned value is the effective percentage and ok is
// false when nothing changed.
func (s *Session) Advance(pct float64) (float64, bool) {
	pct = min(max(pct, 0), 100)
	s.mu.Lock()
	defer s.mu.Unlock()
	if pct <= s.progress {
		return s.progress, false
	}
	s.progress = pct
	return pct, true
}

// Progress returns the current percentage.
func (s *Session) Progress() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.progress
}

// Elapsed returns the time since the session started.
func (s *Session) Elapsed() time.Duration {
	return time.Since(s.Started)
}

// Update mutates the stats under the session lock.
func (s *Session) Update(fn func(*Stats)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.stats)
}

// Stats returns a copy of the accumulated stats.
func (s *Session) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.stats
	st.Tried = append([]string(nil), s.stats.Tried...)
	return st
}

// Release returns the session slot to the manager. Only the first call
// has an effect.
func (s *Session) Release() {
	s.releaseOnce.Do(func() {
		s.manager.release(s)
	})
}
