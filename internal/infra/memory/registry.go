package memory

import (
	"sync"

	"github.com/truongquangquoc2011/tracnghiemonline-platform-api-sub000/internal/app"
	"github.com/truongquangquoc2011/tracnghiemonline-platform-api-sub000/internal/domain"
)

// Registry is the in-memory implementation of app.LiveRegistry. PIN
// uniqueness among live sessions is enforced by the pins index.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*app.Session // by session id
	pins     map[string]string       // live pin -> session id
}

func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]*app.Session),
		pins:     make(map[string]string),
	}
}

func (r *Registry) Register(s *app.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, taken := r.pins[s.PIN()]; taken {
		return domain.ErrPINTaken
	}
	r.pins[s.PIN()] = s.ID()
	r.sessions[s.ID()] = s
	return nil
}

func (r *Registry) Get(sessionID string) (*app.Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[sessionID]
	return s, ok
}

func (r *Registry) GetByPIN(pin string) (*app.Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.pins[pin]
	if !ok {
		return nil, false
	}
	s, ok := r.sessions[id]
	return s, ok
}

func (r *Registry) Release(s *app.Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if id, ok := r.pins[s.PIN()]; ok && id == s.ID() {
		delete(r.pins, s.PIN())
	}
}

// Remove discards the session entirely. Unlike Release it also forgets the
// session id; used to unwind a creation that failed after registration.
func (r *Registry) Remove(s *app.Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if id, ok := r.pins[s.PIN()]; ok && id == s.ID() {
		delete(r.pins, s.PIN())
	}
	delete(r.sessions, s.ID())
}
