package memory

import (
	"context"
	"sync"

	"github.com/truongquangquoc2011/tracnghiemonline-platform-api-sub000/internal/domain"
)

// Recorder keeps durable records in process memory. It mirrors the upsert
// semantics of the Postgres recorder, in particular the single-row guarantee
// per (session, player, question) response key.
type Recorder struct {
	mu        sync.RWMutex
	sessions  map[string]domain.Session
	players   map[string]domain.Player
	responses map[responseKey]domain.Response
}

type responseKey struct {
	sessionID  string
	playerID   string
	questionID string
}

func NewRecorder() *Recorder {
	return &Recorder{
		sessions:  make(map[string]domain.Session),
		players:   make(map[string]domain.Player),
		responses: make(map[responseKey]domain.Response),
	}
}

func (r *Recorder) SaveSession(_ context.Context, s domain.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.ID] = s
	return nil
}

func (r *Recorder) SavePlayer(_ context.Context, p domain.Player) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.players[p.ID] = p
	return nil
}

func (r *Recorder) SaveResponse(_ context.Context, resp domain.Response) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.responses[responseKey{resp.SessionID, resp.PlayerID, resp.QuestionID}] = resp
	return nil
}

// Session returns the recorded session, if any.
func (r *Recorder) Session(id string) (domain.Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	return s, ok
}

// Player returns the recorded player, if any.
func (r *Recorder) Player(id string) (domain.Player, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.players[id]
	return p, ok
}

// Responses returns every recorded response for a player within a session.
func (r *Recorder) Responses(sessionID, playerID string) []domain.Response {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.Response
	for key, resp := range r.responses {
		if key.sessionID == sessionID && key.playerID == playerID {
			out = append(out, resp)
		}
	}
	return out
}
