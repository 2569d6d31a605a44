package app

import (
	"time"

	"github.com/truongquangquoc2011/tracnghiemonline-platform-api-sub000/internal/domain"
)

// Event is one room-scoped notification fanned out to every connection
// subscribed to a session.
type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// Event types fanned out to rooms.
const (
	EventLobbyState      = "lobby_state"
	EventPlayerJoined    = "player_joined"
	EventPlayerLeft      = "player_left"
	EventPlayerKicked    = "player_kicked"
	EventGameStarted     = "game_started"
	EventQuestionStarted = "question_started"
	EventLeaderboard     = "leaderboard_update"
	EventGameEnded       = "game_ended"
)

// LobbyState is the roster snapshot sent to a freshly joined connection.
type LobbyState struct {
	Session domain.Session     `json:"session"`
	Players []RosterEntry      `json:"players"`
	Ranking domain.Leaderboard `json:"leaderboard"`
}

// RosterEntry is the membership view broadcast in lobby and join events.
type RosterEntry struct {
	PlayerID string `json:"playerId"`
	Nickname string `json:"nickname"`
	TeamID   string `json:"teamId,omitempty"`
}

// MembershipChange is the payload of player_joined/player_left/player_kicked.
type MembershipChange struct {
	PlayerID string `json:"playerId"`
	Nickname string `json:"nickname"`
}

// GameStarted announces the waiting -> running transition.
type GameStarted struct {
	StartedAt time.Time `json:"startedAt"`
}

// QuestionView is the client-facing question with correctness withheld.
type QuestionView struct {
	ID           string             `json:"id"`
	Text         string             `json:"text"`
	Media        string             `json:"media,omitempty"`
	TimeLimitSec int                `json:"timeLimit"`
	Multiplier   int                `json:"multiplier"`
	MultiSelect  bool               `json:"multiSelect"`
	Answers      []AnswerOptionView `json:"answers"`
}

// AnswerOptionView is an answer option stripped of its correctness flag.
type AnswerOptionView struct {
	ID    string `json:"id"`
	Text  string `json:"text"`
	Shape string `json:"shape,omitempty"`
	Order int    `json:"order"`
}

// QuestionStarted announces a newly opened question to the room.
type QuestionStarted struct {
	Index    int          `json:"index"`
	Question QuestionView `json:"question"`
	OpenedAt time.Time    `json:"openedAt"`
}

// AnswerFeedback goes to the submitting connection only.
type AnswerFeedback struct {
	QuestionID    string `json:"questionId"`
	IsCorrect     bool   `json:"isCorrect"`
	Points        int    `json:"points"`
	TotalScore    int    `json:"totalScore"`
	StreakCurrent int    `json:"streakCurrent"`
}

// GameEnded carries the final standings.
type GameEnded struct {
	EndedAt     time.Time          `json:"endedAt"`
	Leaderboard domain.Leaderboard `json:"leaderboard"`
}
