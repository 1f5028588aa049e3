package validation

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Registry hands out session handles to remote form hosts. Each handle
// maps to exactly one Session; sessions idle for longer than the TTL are
// closed and forgotten.
type Registry struct {
	engine   *Engine
	ttl      time.Duration
	mu       sync.RWMutex
	sessions map[string]*Session
	now      func() time.Time
}

// NewRegistry creates a Registry. A non-positive ttl disables expiry.
func NewRegistry(engine *Engine, ttl time.Duration) *Registry {
	return &Registry{
		engine:   engine,
		ttl:      ttl,
		sessions: make(map[string]*Session),
		now:      time.Now,
	}
}

// Open starts a new session and returns its handle.
func (r *Registry) Open() (string, *Session) {
	id := uuid.New().String()
	s := newSession(r.engine, r.clock)
	r.mu.Lock()
	r.sessions[id] = s
	r.mu.Unlock()
	return id, s
}

// Get resolves a handle. Unknown or expired handles yield a *ContextError.
func (r *Registry) Get(id string) (*Session, error) {
	r.mu.RLock()
	s, ok := r.sessions[id]
	r.mu.RUnlock()
	if !ok {
		return nil, &ContextError{Op: "lookup", Reason: "no validation session " + id}
	}
	if r.expired(s) {
		r.Close(id)
		return nil, &ContextError{Op: "lookup", Reason: "validation session " + id + " expired"}
	}
	return s, nil
}

// Close ends the session behind id. Unknown handles are ignored.
func (r *Registry) Close(id string) {
	r.mu.Lock()
	s, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()
	if ok {
		s.Close()
	}
}

// Len returns the number of open sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// clock reads r.now on every call so sessions follow clock overrides.
func (r *Registry) clock() time.Time { return r.now() }

func (r *Registry) expired(s *Session) bool {
	return r.ttl > 0 && r.now().Sub(s.idleSince()) > r.ttl
}

// Sweep closes every expired session and returns how many were closed.
func (r *Registry) Sweep() int {
	r.mu.Lock()
	var stale []*Session
	for id, s := range r.sessions {
		if r.expired(s) {
			stale = append(stale, s)
			delete(r.sessions, id)
		}
	}
	r.mu.Unlock()
	for _, s := range stale {
		s.Close()
	}
	return len(stale)
}

// StartCleanup sweeps expired sessions every interval until ctx is done.
func (r *Registry) StartCleanup(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.Sweep()
			}
		}
	}()
}
