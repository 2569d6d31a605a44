package app

import (
	"context"
	"fmt"
	"log"
	"math/rand"

	"github.com/truongquangquoc2011/tracnghiemonline-platform-api-sub000/internal/domain"
)

// LiveRegistry owns the live sessions of this process and enforces PIN
// uniqueness among them (in-memory, or Redis-backed across restarts).
type LiveRegistry interface {
	// Register adds the session and claims its PIN; domain.ErrPINTaken if a
	// live session already holds it.
	Register(s *Session) error
	Get(sessionID string) (*Session, bool)
	GetByPIN(pin string) (*Session, bool)
	// Release frees the PIN once the session has ended. The session itself
	// stays resolvable by id so late reads still see the final state.
	Release(s *Session)
	// Remove discards a session that never went live, freeing both its PIN
	// and its id. Used to unwind a creation that failed after registration.
	Remove(s *Session)
}

// ContentRepository loads quiz content (from cache/backing store).
type ContentRepository interface {
	GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
}

// Recorder durably persists sessions, players and responses. Every method is
// an upsert, so retries after a failure are safe.
type Recorder interface {
	SaveSession(ctx context.Context, s domain.Session) error
	SavePlayer(ctx context.Context, p domain.Player) error
	SaveResponse(ctx context.Context, r domain.Response) error
}

// LobbyService contains the lobby use cases: session lifecycle, membership,
// answer processing and leaderboard reads.
type LobbyService struct {
	sessions LiveRegistry
	content  ContentRepository
	recorder Recorder
}

func NewLobbyService(sessions LiveRegistry, content ContentRepository, recorder Recorder) *LobbyService {
	return &LobbyService{sessions: sessions, content: content, recorder: recorder}
}

const pinAttempts = 64

// CreateSession binds a new waiting lobby to the quiz and allocates a PIN
// that no live session holds.
func (s *LobbyService) CreateSession(ctx context.Context, quizID, hostID string, settings domain.SessionSettings) (domain.Session, error) {
	quiz, err := s.content.GetQuiz(ctx, quizID)
	if err != nil {
		return domain.Session{}, err
	}

	for i := 0; i < pinAttempts; i++ {
		session := NewSession(quizID, hostID, newPIN(), settings, quiz)
		if err := s.sessions.Register(session); err != nil {
			if err == domain.ErrPINTaken {
				continue
			}
			return domain.Session{}, err
		}
		rec := session.Snapshot()
		if err := s.recorder.SaveSession(ctx, rec); err != nil {
			// Unwind the registration, or the pin stays claimed by a
			// session nobody holds a handle to.
			s.sessions.Remove(session)
			return domain.Session{}, err
		}
		return rec, nil
	}
	return domain.Session{}, fmt.Errorf("could not allocate a free pin after %d attempts", pinAttempts)
}

// newPIN draws a 6-digit join code. Uniqueness is the registry's job.
func newPIN() string {
	return fmt.Sprintf("%06d", 100000+rand.Intn(900000))
}

// SessionByID resolves a live session by id.
func (s *LobbyService) SessionByID(sessionID string) (*Session, error) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return session, nil
}

// FindByPIN resolves a live session by its join code.
func (s *LobbyService) FindByPIN(pin string) (*Session, error) {
	session, ok := s.sessions.GetByPIN(pin)
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return session, nil
}

// Join adds (or resolves) a membership in the session behind the PIN.
func (s *LobbyService) Join(ctx context.Context, pin string, params JoinParams) (domain.Session, domain.Player, error) {
	session, err := s.FindByPIN(pin)
	if err != nil {
		return domain.Session{}, domain.Player{}, err
	}
	player, err := session.Join(params)
	if err != nil {
		return domain.Session{}, domain.Player{}, err
	}
	if err := s.recorder.SavePlayer(ctx, player); err != nil {
		return domain.Session{}, domain.Player{}, err
	}
	return session.Snapshot(), player, nil
}

// Leave marks the player as departed; leaving twice is not an error.
func (s *LobbyService) Leave(ctx context.Context, sessionID, playerID string) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return
	}
	player, changed := session.Leave(playerID)
	if !changed {
		return
	}
	if err := s.recorder.SavePlayer(ctx, player); err != nil {
		log.Printf("lobby: record leave of %s: %v", playerID, err)
	}
}

// Kick removes a player for good. The caller is responsible for the host
// check on the transport side; repeats are tolerated.
func (s *LobbyService) Kick(ctx context.Context, sessionID, playerID string) error {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return domain.ErrSessionNotFound
	}
	player, err := session.Kick(playerID)
	if err != nil {
		return err
	}
	if err := s.recorder.SavePlayer(ctx, player); err != nil {
		log.Printf("lobby: record kick of %s: %v", playerID, err)
	}
	return nil
}

// Start performs the host-only waiting -> running transition, at most once.
func (s *LobbyService) Start(ctx context.Context, sessionID, requesterID string) (GameStarted, error) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return GameStarted{}, domain.ErrSessionNotFound
	}
	started, err := session.Start(requesterID)
	if err != nil {
		return GameStarted{}, err
	}
	if err := s.recorder.SaveSession(ctx, session.Snapshot()); err != nil {
		log.Printf("lobby: record start of %s: %v", sessionID, err)
	}
	return started, nil
}

// NextQuestion opens the question at index for the session.
func (s *LobbyService) NextQuestion(ctx context.Context, sessionID, requesterID string, index int) (QuestionStarted, error) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return QuestionStarted{}, domain.ErrSessionNotFound
	}
	opened, err := session.OpenQuestion(requesterID, index)
	if err != nil {
		return QuestionStarted{}, err
	}
	if err := s.recorder.SaveSession(ctx, session.Snapshot()); err != nil {
		log.Printf("lobby: record question %d of %s: %v", index, sessionID, err)
	}
	return opened, nil
}

// End closes the session and frees its PIN for reuse.
func (s *LobbyService) End(ctx context.Context, sessionID, requesterID string) (GameEnded, error) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return GameEnded{}, domain.ErrSessionNotFound
	}
	ended, err := session.End(requesterID)
	if err != nil {
		return GameEnded{}, err
	}
	s.sessions.Release(session)
	if err := s.recorder.SaveSession(ctx, session.Snapshot()); err != nil {
		log.Printf("lobby: record end of %s: %v", sessionID, err)
	}
	return ended, nil
}

// Submit scores one answer and returns the submitter feedback plus the
// refreshed leaderboard.
func (s *LobbyService) Submit(ctx context.Context, sessionID, playerID, questionID, answerID string, timeTakenMs int) (AnswerFeedback, domain.Leaderboard, error) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return AnswerFeedback{}, domain.Leaderboard{}, domain.ErrSessionNotFound
	}
	resp, feedback, lb, err := session.Submit(playerID, questionID, answerID, timeTakenMs)
	if err != nil {
		return AnswerFeedback{}, domain.Leaderboard{}, err
	}
	if err := s.recorder.SaveResponse(ctx, resp); err != nil {
		return AnswerFeedback{}, domain.Leaderboard{}, err
	}
	if player, ok := session.Player(playerID); ok {
		if err := s.recorder.SavePlayer(ctx, player); err != nil {
			return AnswerFeedback{}, domain.Leaderboard{}, err
		}
	}
	return feedback, lb, nil
}

// Leaderboard returns the current standings for a session.
func (s *LobbyService) Leaderboard(sessionID string) (domain.Leaderboard, error) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return domain.Leaderboard{}, domain.ErrSessionNotFound
	}
	return session.Leaderboard(), nil
}

// Subscribe attaches a listener to a session's room events.
func (s *LobbyService) Subscribe(sessionID string) (<-chan Event, func(), error) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return nil, nil, domain.ErrSessionNotFound
	}
	ch, cancel := session.Subscribe()
	return ch, cancel, nil
}
