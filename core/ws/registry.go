package ws

import (
	"sort"
	"sync"
)

// Registry tracks open sessions by id. Its mutex is held only for map
// access; sends and closes happen after it is released.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Session)}
}

// Add registers s under its id.
func (r *Registry) Add(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.id] = s
}

// Remove unregisters id and reports whether it was present.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.sessions[id]
	delete(r.sessions, id)
	return ok
}

// remove unregisters s only if its id still maps to s.
func (r *Registry) remove(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.sessions[s.id]; ok && cur == s {
		delete(r.sessions, s.id)
	}
}

// Get returns the session registered under id.
func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	return s, ok
}

// Len returns the number of registered sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// IDs returns the registered ids, sorted.
func (r *Registry) IDs() []string {
	r.mu.Lock()
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	r.mu.Unlock()
	sort.Strings(ids)
	return ids
}

// Send queues msg on session id. It reports whether the session was found;
// the write itself happens later on the session's own writer.
func (r *Registry) Send(id string, msg []byte, isText bool) bool {
	s, ok := r.Get(id)
	if !ok {
		return false
	}
	_ = s.Send(msg, isText)
	return true
}

// SendMany queues msg on every listed session and returns how many were found.
func (r *Registry) SendMany(ids []string, msg []byte, isText bool) int {
	r.mu.Lock()
	targets := make([]*Session, 0, len(ids))
	for _, id := range ids {
		if s, ok := r.sessions[id]; ok {
			targets = append(targets, s)
		}
	}
	r.mu.Unlock()

	for _, s := range targets {
		_ = s.Send(msg, isText)
	}
	return len(targets)
}

// Broadcast queues msg on every registered session and returns the count.
func (r *Registry) Broadcast(msg []byte, isText bool) int {
	targets := r.snapshot()
	for _, s := range targets {
		_ = s.Send(msg, isText)
	}
	return len(targets)
}

// CloseAll closes every registered session with code and reason.
func (r *Registry) CloseAll(code int, reason string) int {
	targets := r.snapshot()
	for _, s := range targets {
		_ = s.Close(code, reason)
	}
	return len(targets)
}

func (r *Registry) snapshot() []*Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	return out
}
