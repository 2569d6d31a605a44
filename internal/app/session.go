package app

import (
	"math/rand"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/truongquangquoc2011/tracnghiemonline-platform-api-sub000/internal/domain"
	"github.com/truongquangquoc2011/tracnghiemonline-platform-api-sub000/internal/scoring"
)

// Session is the live, in-process state of one lobby. All mutating methods
// take the session mutex, so every operation on one session is serialized
// while unrelated sessions proceed independently. Quiz content is bound at
// creation; no I/O happens under the lock.
type Session struct {
	mu   sync.Mutex
	rec  domain.Session
	quiz domain.Quiz

	order    []int // question permutation, built on start
	asked    []string
	openedAt time.Time

	players   map[string]*domain.Player
	responses map[string]map[string]*domain.Response // playerID -> questionID
	joinSeq   int

	subscribers map[chan Event]struct{}

	now func() time.Time
	rnd *rand.Rand
}

// JoinParams carries everything a join attempt may identify itself with.
type JoinParams struct {
	Nickname       string
	UserID         string
	ClientKey      string
	ResumePlayerID string
	TeamID         string
}

// NewSession binds a quiz to a fresh waiting lobby.
func NewSession(quizID, hostID, pin string, settings domain.SessionSettings, quiz domain.Quiz) *Session {
	return NewSessionWithClock(quizID, hostID, pin, settings, quiz, time.Now)
}

// NewSessionWithClock is test-only for deterministic timestamps.
func NewSessionWithClock(quizID, hostID, pin string, settings domain.SessionSettings, quiz domain.Quiz, now func() time.Time) *Session {
	if settings.Mode == "" {
		settings.Mode = domain.ModeClassic
	}
	return &Session{
		rec: domain.Session{
			ID:                  uuid.NewString(),
			QuizID:              quizID,
			HostID:              hostID,
			PIN:                 pin,
			Settings:            settings,
			Status:              domain.StatusWaiting,
			ActiveQuestionIndex: -1,
			CreatedAt:           now(),
		},
		quiz:        quiz,
		players:     make(map[string]*domain.Player),
		responses:   make(map[string]map[string]*domain.Response),
		subscribers: make(map[chan Event]struct{}),
		now:         now,
		rnd:         rand.New(rand.NewSource(now().UnixNano())),
	}
}

// ID returns the session id.
func (s *Session) ID() string { return s.rec.ID }

// PIN returns the session join code.
func (s *Session) PIN() string { return s.rec.PIN }

// HostID returns the host's user id.
func (s *Session) HostID() string { return s.rec.HostID }

// Snapshot copies the durable view of the session.
func (s *Session) Snapshot() domain.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rec
}

// State returns the roster snapshot sent to newly joined connections.
func (s *Session) State() LobbyState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

func (s *Session) stateLocked() LobbyState {
	roster := make([]RosterEntry, 0, len(s.players))
	for _, p := range s.players {
		if !p.Active() {
			continue
		}
		roster = append(roster, RosterEntry{PlayerID: p.ID, Nickname: p.Nickname, TeamID: p.TeamID})
	}
	sort.Slice(roster, func(i, j int) bool {
		return s.players[roster[i].PlayerID].JoinSeq < s.players[roster[j].PlayerID].JoinSeq
	})
	return LobbyState{Session: s.rec, Players: roster, Ranking: s.leaderboardLocked()}
}

// Join resolves or creates a membership per the resolution order: resume id,
// then registered user id, then device client key, then a new player.
func (s *Session) Join(params JoinParams) (domain.Player, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.rec.Status == domain.StatusEnded {
		return domain.Player{}, domain.ErrSessionEnded
	}

	if params.ResumePlayerID != "" {
		if p, ok := s.players[params.ResumePlayerID]; ok && !p.Kicked {
			p.LeftAt = nil
			s.broadcastLocked(Event{Type: EventPlayerJoined, Payload: MembershipChange{PlayerID: p.ID, Nickname: p.Nickname}})
			// Leaving dropped the player off the board; rejoining puts
			// them back, so the room hears both sides.
			s.broadcastLocked(Event{Type: EventLeaderboard, Payload: s.leaderboardLocked()})
			return *p, nil
		}
	}
	if params.UserID != "" {
		if p := s.activeByUserLocked(params.UserID); p != nil {
			return *p, nil
		}
	}
	if params.ClientKey != "" {
		if p := s.activeByClientKeyLocked(params.ClientKey); p != nil {
			return *p, nil
		}
	}

	for _, existing := range s.players {
		if existing.Active() && strings.EqualFold(existing.Nickname, params.Nickname) {
			return domain.Player{}, domain.ErrNicknameTaken
		}
	}

	s.joinSeq++
	p := &domain.Player{
		ID:        uuid.NewString(),
		SessionID: s.rec.ID,
		Nickname:  params.Nickname,
		UserID:    params.UserID,
		TeamID:    params.TeamID,
		ClientKey: params.ClientKey,
		JoinedAt:  s.now(),
		JoinSeq:   s.joinSeq,
	}
	s.players[p.ID] = p
	s.broadcastLocked(Event{Type: EventPlayerJoined, Payload: MembershipChange{PlayerID: p.ID, Nickname: p.Nickname}})
	return *p, nil
}

func (s *Session) activeByUserLocked(userID string) *domain.Player {
	for _, p := range s.players {
		if p.Active() && p.UserID == userID {
			return p
		}
	}
	return nil
}

func (s *Session) activeByClientKeyLocked(clientKey string) *domain.Player {
	for _, p := range s.players {
		if p.Active() && p.ClientKey == clientKey {
			return p
		}
	}
	return nil
}

// Leave marks the player as departed. Leaving twice is a no-op.
func (s *Session) Leave(playerID string) (domain.Player, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.players[playerID]
	if !ok || p.LeftAt != nil {
		return domain.Player{}, false
	}
	now := s.now()
	p.LeftAt = &now
	payload := MembershipChange{PlayerID: p.ID, Nickname: p.Nickname}
	s.broadcastLocked(Event{Type: EventPlayerLeft, Payload: payload})
	s.broadcastLocked(Event{Type: EventLeaderboard, Payload: s.leaderboardLocked()})
	return *p, true
}

// Kick removes the player for good; the transport layer enforces that only
// the host sends kicks. Kicking twice is tolerated.
func (s *Session) Kick(playerID string) (domain.Player, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.players[playerID]
	if !ok {
		return domain.Player{}, domain.ErrPlayerNotFound
	}
	if !p.Kicked {
		now := s.now()
		p.Kicked = true
		p.LeftAt = &now
		s.broadcastLocked(Event{Type: EventPlayerKicked, Payload: MembershipChange{PlayerID: p.ID, Nickname: p.Nickname}})
		s.broadcastLocked(Event{Type: EventLeaderboard, Payload: s.leaderboardLocked()})
	}
	return *p, nil
}

// Start performs the waiting -> running transition. The status check and the
// write happen under the same lock, so concurrent duplicate starts yield
// exactly one success; the rest fail with a conflict.
func (s *Session) Start(requesterID string) (GameStarted, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if requesterID != s.rec.HostID {
		return GameStarted{}, domain.ErrNotHost
	}
	switch s.rec.Status {
	case domain.StatusEnded:
		return GameStarted{}, domain.ErrSessionEnded
	case domain.StatusRunning:
		return GameStarted{}, domain.ErrAlreadyStarted
	}

	now := s.now()
	s.rec.Status = domain.StatusRunning
	s.rec.StartedAt = &now

	s.order = make([]int, len(s.quiz.Questions))
	for i := range s.order {
		s.order[i] = i
	}
	if s.rec.Settings.QuestionOrderRandom {
		s.rnd.Shuffle(len(s.order), func(i, j int) {
			s.order[i], s.order[j] = s.order[j], s.order[i]
		})
	}

	started := GameStarted{StartedAt: now}
	s.broadcastLocked(Event{Type: EventGameStarted, Payload: started})
	return started, nil
}

// OpenQuestion makes the question at index the active one and announces it
// with correctness flags withheld.
func (s *Session) OpenQuestion(requesterID string, index int) (QuestionStarted, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if requesterID != s.rec.HostID {
		return QuestionStarted{}, domain.ErrNotHost
	}
	if s.rec.Status != domain.StatusRunning {
		return QuestionStarted{}, domain.ErrNotAcceptingAnswers
	}
	if index < 0 || index >= len(s.order) {
		return QuestionStarted{}, domain.ErrQuestionOutOfRange
	}

	q := s.quiz.Questions[s.order[index]]
	s.rec.ActiveQuestionIndex = index
	s.openedAt = s.now()
	// A reopened question must not appear twice in the asked order, or the
	// streak walk would count its answer twice.
	if !s.askedLocked(q.ID) {
		s.asked = append(s.asked, q.ID)
	}

	view := s.questionViewLocked(q)
	started := QuestionStarted{Index: index, Question: view, OpenedAt: s.openedAt}
	s.broadcastLocked(Event{Type: EventQuestionStarted, Payload: started})
	return started, nil
}

func (s *Session) askedLocked(questionID string) bool {
	for _, id := range s.asked {
		if id == questionID {
			return true
		}
	}
	return false
}

func (s *Session) questionViewLocked(q domain.Question) QuestionView {
	answers := make([]AnswerOptionView, len(q.Options))
	for i, opt := range q.Options {
		answers[i] = AnswerOptionView{ID: opt.ID, Text: opt.Text, Shape: opt.Shape, Order: opt.Order}
	}
	sort.Slice(answers, func(i, j int) bool { return answers[i].Order < answers[j].Order })
	if s.rec.Settings.AnswerOrderRandom {
		s.rnd.Shuffle(len(answers), func(i, j int) {
			answers[i], answers[j] = answers[j], answers[i]
		})
	}
	return QuestionView{
		ID:           q.ID,
		Text:         q.Text,
		Media:        q.Media,
		TimeLimitSec: effectiveTimeLimit(q),
		Multiplier:   effectiveMultiplier(q),
		MultiSelect:  q.MultiSelect,
		Answers:      answers,
	}
}

// End closes the session. Ending from waiting is allowed (host cancels the
// lobby); ending twice is a conflict.
func (s *Session) End(requesterID string) (GameEnded, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if requesterID != s.rec.HostID {
		return GameEnded{}, domain.ErrNotHost
	}
	if s.rec.Status == domain.StatusEnded {
		return GameEnded{}, domain.ErrSessionEnded
	}

	now := s.now()
	s.rec.Status = domain.StatusEnded
	s.rec.EndedAt = &now

	ended := GameEnded{EndedAt: now, Leaderboard: s.leaderboardLocked()}
	s.broadcastLocked(Event{Type: EventGameEnded, Payload: ended})
	return ended, nil
}

// Submit validates, scores and records one answer. The response is keyed by
// (player, question): a resubmission before the round closes overwrites the
// stored one, and totals are recomputed from all responses rather than
// accumulated, so replays cannot double-count.
func (s *Session) Submit(playerID, questionID, answerID string, timeTakenMs int) (domain.Response, AnswerFeedback, domain.Leaderboard, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.rec.Status != domain.StatusRunning {
		return domain.Response{}, AnswerFeedback{}, domain.Leaderboard{}, domain.ErrNotAcceptingAnswers
	}
	p, ok := s.players[playerID]
	if !ok {
		return domain.Response{}, AnswerFeedback{}, domain.Leaderboard{}, domain.ErrPlayerNotFound
	}
	if !p.Active() {
		return domain.Response{}, AnswerFeedback{}, domain.Leaderboard{}, domain.ErrNotAMember
	}
	if s.rec.ActiveQuestionIndex < 0 {
		return domain.Response{}, AnswerFeedback{}, domain.Leaderboard{}, domain.ErrQuestionNotActive
	}
	q := s.quiz.Questions[s.order[s.rec.ActiveQuestionIndex]]
	if q.ID != questionID {
		return domain.Response{}, AnswerFeedback{}, domain.Leaderboard{}, domain.ErrQuestionNotActive
	}

	correct := false
	if answerID != "" {
		opt, ok := q.Option(answerID)
		if !ok {
			return domain.Response{}, AnswerFeedback{}, domain.Leaderboard{}, domain.ErrAnswerMismatch
		}
		correct = opt.Correct
	}

	if timeTakenMs < 0 {
		timeTakenMs = 0
	}
	base, bonus := scoring.Points(correct, timeTakenMs, effectiveTimeLimit(q), effectiveMultiplier(q))

	now := s.now()
	byQuestion, ok := s.responses[playerID]
	if !ok {
		byQuestion = make(map[string]*domain.Response)
		s.responses[playerID] = byQuestion
	}
	resp, ok := byQuestion[questionID]
	if !ok {
		resp = &domain.Response{
			SessionID:  s.rec.ID,
			PlayerID:   playerID,
			QuestionID: questionID,
			CreatedAt:  now,
		}
		byQuestion[questionID] = resp
	}
	resp.AnswerID = answerID
	resp.IsCorrect = correct
	resp.TimeTakenMs = timeTakenMs
	resp.BasePoints = base
	resp.SpeedBonus = bonus
	resp.PointsAwarded = base + bonus
	resp.UpdatedAt = now

	s.recomputeTotalsLocked(p)

	lb := s.leaderboardLocked()
	s.broadcastLocked(Event{Type: EventLeaderboard, Payload: lb})

	feedback := AnswerFeedback{
		QuestionID:    questionID,
		IsCorrect:     correct,
		Points:        resp.PointsAwarded,
		TotalScore:    p.TotalScore,
		StreakCurrent: p.StreakCurrent,
	}
	return *resp, feedback, lb, nil
}

// recomputeTotalsLocked derives score and streaks from the player's current
// responses in asked order. A question asked but never answered breaks the
// streak, same as an incorrect answer.
func (s *Session) recomputeTotalsLocked(p *domain.Player) {
	total := 0
	for _, resp := range s.responses[p.ID] {
		total += resp.PointsAwarded
	}
	p.TotalScore = total

	if !s.rec.Settings.StreaksEnabled {
		p.StreakCurrent, p.StreakMax = 0, 0
		return
	}
	run, best := 0, 0
	for _, qid := range s.asked {
		resp, ok := s.responses[p.ID][qid]
		if ok && resp.IsCorrect {
			run++
			if run > best {
				best = run
			}
		} else {
			run = 0
		}
	}
	p.StreakCurrent, p.StreakMax = run, best
}

// Leaderboard ranks active players by score, ties broken by join order.
func (s *Session) Leaderboard() domain.Leaderboard {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.leaderboardLocked()
}

func (s *Session) leaderboardLocked() domain.Leaderboard {
	entries := make([]domain.LeaderboardEntry, 0, len(s.players))
	for _, p := range s.players {
		if !p.Active() {
			continue
		}
		entries = append(entries, domain.LeaderboardEntry{
			PlayerID:  p.ID,
			Nickname:  p.Nickname,
			TeamID:    p.TeamID,
			Score:     p.TotalScore,
			StreakMax: p.StreakMax,
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		return s.players[entries[i].PlayerID].JoinSeq < s.players[entries[j].PlayerID].JoinSeq
	})
	return domain.Leaderboard{SessionID: s.rec.ID, Entries: entries, UpdatedAt: s.now()}
}

// Player returns a copy of the membership record.
func (s *Session) Player(playerID string) (domain.Player, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.players[playerID]
	if !ok {
		return domain.Player{}, false
	}
	return *p, true
}

// Subscribe returns a channel receiving every room event from now on. The
// caller must invoke the cancel function to avoid leaks.
func (s *Session) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, 16)

	s.mu.Lock()
	s.subscribers[ch] = struct{}{}
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		if _, ok := s.subscribers[ch]; ok {
			delete(s.subscribers, ch)
			close(ch)
		}
		s.mu.Unlock()
	}
	return ch, cancel
}

func (s *Session) broadcastLocked(ev Event) {
	for ch := range s.subscribers {
		select {
		case ch <- ev:
		default:
			// Drop the oldest event so a slow client cannot block the room.
			select {
			case <-ch:
			default:
			}
			ch <- ev
		}
	}
}

func effectiveTimeLimit(q domain.Question) int {
	if q.TimeLimitSec <= 0 {
		return 30
	}
	return q.TimeLimitSec
}

func effectiveMultiplier(q domain.Question) int {
	if q.Multiplier < 1 {
		return 1
	}
	return q.Multiplier
}
