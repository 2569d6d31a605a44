package domain

import "time"

// SessionStatus is the lifecycle state of a lobby session.
type SessionStatus string

const (
	StatusWaiting SessionStatus = "waiting"
	StatusRunning SessionStatus = "running"
	StatusEnded   SessionStatus = "ended"
)

// Mode selects how players compete within a session.
type Mode string

const (
	ModeClassic Mode = "classic"
	ModeTeam    Mode = "team"
)

// SessionSettings are the host-chosen options fixed at session creation.
type SessionSettings struct {
	Mode                Mode `json:"mode"`
	AnswerOrderRandom   bool `json:"answerOrderRandom"`
	QuestionOrderRandom bool `json:"questionOrderRandom"`
	StreaksEnabled      bool `json:"streaksEnabled"`
}

// Session is the durable record of one live run of a quiz.
type Session struct {
	ID                  string          `json:"id"`
	QuizID              string          `json:"quizId"`
	HostID              string          `json:"hostId"`
	PIN                 string          `json:"pinCode"`
	Settings            SessionSettings `json:"settings"`
	Status              SessionStatus   `json:"status"`
	ActiveQuestionIndex int             `json:"activeQuestionIndex"` // -1 until the first question opens
	CreatedAt           time.Time       `json:"createdAt"`
	StartedAt           *time.Time      `json:"startedAt,omitempty"`
	EndedAt             *time.Time      `json:"endedAt,omitempty"`
}

// Player is one participant's membership in one session.
type Player struct {
	ID            string     `json:"id"`
	SessionID     string     `json:"sessionId"`
	Nickname      string     `json:"nickname"`
	UserID        string     `json:"userId,omitempty"` // empty for anonymous players
	TeamID        string     `json:"teamId,omitempty"`
	ClientKey     string     `json:"-"` // per-device idempotency token
	JoinedAt      time.Time  `json:"joinedAt"`
	JoinSeq       int        `json:"-"` // per-session join order, tie-break key
	LeftAt        *time.Time `json:"leftAt,omitempty"`
	Kicked        bool       `json:"kicked"`
	StreakCurrent int        `json:"streakCurrent"`
	StreakMax     int        `json:"streakMax"`
	TotalScore    int        `json:"totalScore"`
}

// Active reports whether the player still participates in the session.
func (p Player) Active() bool {
	return p.LeftAt == nil && !p.Kicked
}

// Response is one player's scored answer to one question. At most one exists
// per (session, player, question); resubmission overwrites it.
type Response struct {
	SessionID     string    `json:"sessionId"`
	PlayerID      string    `json:"playerId"`
	QuestionID    string    `json:"questionId"`
	AnswerID      string    `json:"answerId,omitempty"` // empty means no answer / timed out
	IsCorrect     bool      `json:"isCorrect"`
	TimeTakenMs   int       `json:"timeTakenMs"`
	BasePoints    int       `json:"basePoints"`
	SpeedBonus    int       `json:"speedBonus"`
	PointsAwarded int       `json:"pointsAwarded"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// LeaderboardEntry is a snapshot-friendly view of a ranked player.
type LeaderboardEntry struct {
	PlayerID  string `json:"playerId"`
	Nickname  string `json:"nickname"`
	TeamID    string `json:"teamId,omitempty"`
	Score     int    `json:"score"`
	StreakMax int    `json:"streakMax"`
}

// Leaderboard captures the ordered scoreboard for a session.
type Leaderboard struct {
	SessionID string             `json:"sessionId"`
	Entries   []LeaderboardEntry `json:"entries"`
	UpdatedAt time.Time          `json:"updatedAt"`
}

// AnswerOption represents one selectable answer of a question.
type AnswerOption struct {
	ID      string `json:"id"`
	Text    string `json:"text"`
	Shape   string `json:"shape,omitempty"`
	Order   int    `json:"order"`
	Correct bool   `json:"correct"`
}

// Question models a timed question with its options in display order.
type Question struct {
	ID           string         `json:"id"`
	Text         string         `json:"text"`
	Media        string         `json:"media,omitempty"`
	TimeLimitSec int            `json:"timeLimitSec"` // defaults to 30 if zero
	Multiplier   int            `json:"multiplier"`   // defaults to 1 if zero
	MultiSelect  bool           `json:"multiSelect"`
	Options      []AnswerOption `json:"options"`
}

// Option returns the answer option with the given id, if it belongs to q.
func (q Question) Option(answerID string) (AnswerOption, bool) {
	for _, opt := range q.Options {
		if opt.ID == answerID {
			return opt, true
		}
	}
	return AnswerOption{}, false
}

// Quiz is the content-store view of a question set.
type Quiz struct {
	ID        string     `json:"id"`
	Title     string     `json:"title,omitempty"`
	Questions []Question `json:"questions"`
}
