package redis

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/truongquangquoc2011/tracnghiemonline-platform-api-sub000/internal/app"
	"github.com/truongquangquoc2011/tracnghiemonline-platform-api-sub000/internal/domain"
)

// Registry is a Redis-aware implementation of app.LiveRegistry.
// Notes:
//   - Live session state stays in a local in-memory map; this process owns the
//     room and its broadcast fan-out.
//   - Redis holds the PIN claims (SETNX with TTL), so two instances sharing a
//     Redis cannot hand out the same code, and claims survive a restart until
//     they expire.
type Registry struct {
	client *redis.Client
	ttl    time.Duration

	mu       sync.RWMutex
	sessions map[string]*app.Session
	pins     map[string]string
}

func NewRegistry(client *redis.Client, ttl time.Duration) *Registry {
	return &Registry{
		client:   client,
		ttl:      ttl,
		sessions: make(map[string]*app.Session),
		pins:     make(map[string]string),
	}
}

func (r *Registry) Register(s *app.Session) error {
	claimed, err := r.client.SetNX(context.Background(), r.pinKey(s.PIN()), s.ID(), r.ttl).Result()
	if err != nil {
		return err
	}
	if !claimed {
		return domain.ErrPINTaken
	}

	r.mu.Lock()
	if _, taken := r.pins[s.PIN()]; taken {
		r.mu.Unlock()
		// The redis claim can expire while the local session still lives.
		// The SETNX above then succeeded with the losing session's id;
		// drop it rather than let it shadow the live claim until TTL.
		_ = r.client.Del(context.Background(), r.pinKey(s.PIN())).Err()
		return domain.ErrPINTaken
	}
	r.pins[s.PIN()] = s.ID()
	r.sessions[s.ID()] = s
	r.mu.Unlock()
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
	if id, ok := r.pins[s.PIN()]; ok && id == s.ID() {
		delete(r.pins, s.PIN())
	}
	r.mu.Unlock()

	// best-effort: an expired claim resolves itself via TTL
	_ = r.client.Del(context.Background(), r.pinKey(s.PIN())).Err()
}

// Remove discards the session entirely, forgetting its id as well as the pin
// claim; used to unwind a creation that failed after registration.
func (r *Registry) Remove(s *app.Session) {
	r.mu.Lock()
	if id, ok := r.pins[s.PIN()]; ok && id == s.ID() {
		delete(r.pins, s.PIN())
	}
	delete(r.sessions, s.ID())
	r.mu.Unlock()

	_ = r.client.Del(context.Background(), r.pinKey(s.PIN())).Err()
}

func (r *Registry) pinKey(pin string) string {
	return "lobby:pin:" + pin
}
