package server

import (
	"bytes"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/chazu/knight/vm"
)

// Session is one client's interpreter: its own globals, confined to its own
// worker goroutine. Output written by OUTPUT and DUMP collects in out until
// the evaluation that produced it returns.
type Session struct {
	ID     string
	worker *Worker
	out    *bytes.Buffer // touched only on the worker goroutine

	mu       sync.Mutex
	lastUsed time.Time
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastUsed = now
	s.mu.Unlock()
}

// LastUsed returns when the session last served a request.
func (s *Session) LastUsed() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastUsed
}

// InterpreterFactory builds the interpreter for a new session. out receives
// everything the interpreter writes.
type InterpreterFactory func(out *bytes.Buffer) *vm.Interpreter

// SessionStore manages evaluation sessions.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	factory  InterpreterFactory
	now      func() time.Time
}

// NewSessionStore creates a new session store.
func NewSessionStore(factory InterpreterFactory) *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*Session),
		factory:  factory,
		now:      time.Now,
	}
}

// Create starts a new session with a fresh interpreter.
func (s *SessionStore) Create() *Session {
	out := &bytes.Buffer{}
	session := &Session{
		ID:       uuid.NewString(),
		worker:   NewWorker(s.factory(out)),
		out:      out,
		lastUsed: s.now(),
	}

	s.mu.Lock()
	s.sessions[session.ID] = session
	s.mu.Unlock()

	return session
}

// Get retrieves a session by ID and marks it used.
func (s *SessionStore) Get(id string) (*Session, bool) {
	s.mu.RLock()
	session, ok := s.sessions[id]
	s.mu.RUnlock()

	if ok {
		session.touch(s.now())
	}
	return session, ok
}

// GetOrCreate returns the session named by id, or a new session when id is
// empty. The second result reports whether the session was created.
// An unknown non-empty id is not found.
func (s *SessionStore) GetOrCreate(id string) (*Session, bool, bool) {
	if strings.TrimSpace(id) == "" {
		return s.Create(), true, true
	}
	session, ok := s.Get(id)
	return session, false, ok
}

// Destroy removes a session and stops its worker.
func (s *SessionStore) Destroy(id string) bool {
	s.mu.Lock()
	session, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()

	if ok {
		if session.worker.Busy() {
			log.Warning("destroyed session is still evaluating; its worker exits when the evaluation returns",
				"session", id)
		}
		session.worker.Stop()
	}
	return ok
}

// IDs returns the ids of all live sessions in sorted order.
func (s *SessionStore) IDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Len returns the number of live sessions.
func (s *SessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Sweep destroys sessions idle for longer than ttl and returns how many it
// removed.
func (s *SessionStore) Sweep(ttl time.Duration) int {
	cutoff := s.now().Add(-ttl)

	s.mu.RLock()
	var stale []string
	for id, session := range s.sessions {
		if session.LastUsed().Before(cutoff) {
			stale = append(stale, id)
		}
	}
	s.mu.RUnlock()

	removed := 0
	for _, id := range stale {
		if s.Destroy(id) {
			removed++
		}
	}
	return removed
}

// StartSweeper runs periodic TTL sweeps in the background.
// Returns a stop function.
func (s *SessionStore) StartSweeper(interval, ttl time.Duration) func() {
	ticker := time.NewTicker(interval)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-ticker.C:
				if n := s.Sweep(ttl); n > 0 {
					log.Info("swept idle sessions", "count", n)
				}
			case <-done:
				ticker.Stop()
				return
			}
		}
	}()
	var once sync.Once
	return func() { once.Do(func() { close(done) }) }
}

// Close destroys every session.
func (s *SessionStore) Close() {
	for _, id := range s.IDs() {
		s.Destroy(id)
	}
}
