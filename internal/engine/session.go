package engine

import (
	"context"
	"sync"
	"time"

	"github.com/kayz/formforge/internal/form"
	"github.com/kayz/formforge/internal/logger"
)

// Session owns exactly one form. The mutex enforces the one-revision-at-a-
// time contract: the engine's all-or-nothing guarantee relies on the form
// not being mutated while a revision is in flight.
type Session struct {
	mu        sync.Mutex
	form      form.Form
	updatedAt time.Time
}

// SessionStore maps session ids to their forms and funnels every mutation
// through the per-session lock. Forms live in memory only; they are
// discarded when the session is reset, pruned or the process exits.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	engine   *Engine
}

// NewSessionStore creates a session store backed by the given engine.
func NewSessionStore(engine *Engine) *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*Session),
		engine:   engine,
	}
}

func (s *SessionStore) session(id string) *Session {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()
	if ok {
		return sess
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[id]; ok {
		return sess
	}
	sess = &Session{form: form.Empty(), updatedAt: time.Now()}
	s.sessions[id] = sess
	return sess
}

// Form returns a copy of the session's current form.
func (s *SessionStore) Form(id string) form.Form {
	sess := s.session(id)
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.form.Clone()
}

// Reset replaces the session's form with the empty form.
func (s *SessionStore) Reset(id string) {
	sess := s.session(id)
	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.form = form.Empty()
	sess.updatedAt = time.Now()
}

// Revise runs one revision against the session's form. Overlapping calls
// for the same session are rejected with ErrRevisionInFlight rather than
// queued, so a slow model cannot pile up conflicting edits.
func (s *SessionStore) Revise(ctx context.Context, id, instruction string) (form.Revision, error) {
	return s.ReviseObserved(ctx, id, instruction, nil)
}

// ReviseObserved is Revise with a live fragment observer (see
// Engine.ReviseSession).
func (s *SessionStore) ReviseObserved(ctx context.Context, id, instruction string, onFragment func(string)) (form.Revision, error) {
	sess := s.session(id)
	if !sess.mu.TryLock() {
		return form.Revision{}, ErrRevisionInFlight
	}
	defer sess.mu.Unlock()

	rev, err := s.engine.ReviseSession(ctx, id, instruction, sess.form.Clone(), onFragment)
	if err != nil {
		return form.Revision{}, err
	}

	sess.form = rev.Form.Clone()
	sess.updatedAt = time.Now()
	return rev, nil
}

// ReviseFrom runs one revision against an explicit base form instead of the
// session's stored one. The base is validated but never committed; only a
// successful revision's result replaces the session form, so a failure
// leaves the session exactly where it was.
func (s *SessionStore) ReviseFrom(ctx context.Context, id, instruction string, base form.Form, onFragment func(string)) (form.Revision, error) {
	if err := form.Check(base); err != nil {
		return form.Revision{}, err
	}

	sess := s.session(id)
	if !sess.mu.TryLock() {
		return form.Revision{}, ErrRevisionInFlight
	}
	defer sess.mu.Unlock()

	rev, err := s.engine.ReviseSession(ctx, id, instruction, base.Clone(), onFragment)
	if err != nil {
		return form.Revision{}, err
	}

	sess.form = rev.Form.Clone()
	sess.updatedAt = time.Now()
	return rev, nil
}

// SetForm replaces the session's form wholesale, validating it first.
func (s *SessionStore) SetForm(id string, f form.Form) error {
	if err := form.Check(f); err != nil {
		return err
	}

	sess := s.session(id)
	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.form = f.Clone()
	sess.updatedAt = time.Now()
	return nil
}

// PutField applies a direct, non-AI field edit to the session's form.
func (s *SessionStore) PutField(id, name string, def form.Field) (form.Form, error) {
	sess := s.session(id)
	sess.mu.Lock()
	defer sess.mu.Unlock()

	next := sess.form.Clone()
	if err := next.Put(name, def); err != nil {
		return form.Form{}, err
	}
	sess.form = next
	sess.updatedAt = time.Now()
	return next.Clone(), nil
}

// DeleteField removes a field directly, bypassing the engine.
func (s *SessionStore) DeleteField(id, name string) (form.Form, error) {
	sess := s.session(id)
	sess.mu.Lock()
	defer sess.mu.Unlock()

	next := sess.form.Clone()
	if err := next.Delete(name); err != nil {
		return form.Form{}, err
	}
	sess.form = next
	sess.updatedAt = time.Now()
	return next.Clone(), nil
}

// Count returns the number of live sessions.
func (s *SessionStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// PruneIdle discards sessions untouched for longer than ttl and returns how
// many were removed. Sessions mid-revision hold their lock and are skipped.
func (s *SessionStore) PruneIdle(ttl time.Duration) int {
	cutoff := time.Now().Add(-ttl)

	s.mu.Lock()
	defer s.mu.Unlock()

	pruned := 0
	for id, sess := range s.sessions {
		if !sess.mu.TryLock() {
			continue
		}
		idle := sess.updatedAt.Before(cutoff)
		sess.mu.Unlock()
		if idle {
			delete(s.sessions, id)
			pruned++
		}
	}
	if pruned > 0 {
		logger.Info("[SESSIONS] pruned %d idle session(s)", pruned)
	}
	return pruned
}
