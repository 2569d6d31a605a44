package postgres

import (
	"context"
	"time"

	"github.com/uptrace/bun"

	"github.com/truongquangquoc2011/tracnghiemonline-platform-api-sub000/internal/domain"
)

// Recorder persists sessions, players and responses through bun. Each write
// is an upsert keyed on the invariant the schema enforces: session id, player
// id, and the (session, player, question) response key.
type Recorder struct {
	db *bun.DB
}

func NewRecorder(db *bun.DB) *Recorder {
	return &Recorder{db: db}
}

type sessionRow struct {
	bun.BaseModel `bun:"table:game_sessions"`

	ID                  string     `bun:"id,pk"`
	QuizID              string     `bun:"quiz_id,notnull"`
	HostID              string     `bun:"host_id,notnull"`
	PIN                 string     `bun:"pin,notnull"`
	Mode                string     `bun:"mode,notnull"`
	AnswerOrderRandom   bool       `bun:"answer_order_random"`
	QuestionOrderRandom bool       `bun:"question_order_random"`
	StreaksEnabled      bool       `bun:"streaks_enabled"`
	Status              string     `bun:"status,notnull"`
	ActiveQuestionIndex int        `bun:"active_question_index"`
	CreatedAt           time.Time  `bun:"created_at,notnull"`
	StartedAt           *time.Time `bun:"started_at"`
	EndedAt             *time.Time `bun:"ended_at"`
}

type playerRow struct {
	bun.BaseModel `bun:"table:game_players"`

	ID            string     `bun:"id,pk"`
	SessionID     string     `bun:"session_id,notnull"`
	Nickname      string     `bun:"nickname,notnull"`
	UserID        string     `bun:"user_id"`
	TeamID        string     `bun:"team_id"`
	ClientKey     string     `bun:"client_key"`
	JoinedAt      time.Time  `bun:"joined_at,notnull"`
	JoinSeq       int        `bun:"join_seq,notnull"`
	LeftAt        *time.Time `bun:"left_at"`
	Kicked        bool       `bun:"kicked"`
	StreakCurrent int        `bun:"streak_current"`
	StreakMax     int        `bun:"streak_max"`
	TotalScore    int        `bun:"total_score"`
}

type responseRow struct {
	bun.BaseModel `bun:"table:game_responses"`

	SessionID     string    `bun:"session_id,pk"`
	PlayerID      string    `bun:"player_id,pk"`
	QuestionID    string    `bun:"question_id,pk"`
	AnswerID      *string   `bun:"answer_id"`
	IsCorrect     bool      `bun:"is_correct"`
	TimeTakenMs   int       `bun:"time_taken_ms"`
	BasePoints    int       `bun:"base_points"`
	SpeedBonus    int       `bun:"speed_bonus"`
	PointsAwarded int       `bun:"points_awarded"`
	CreatedAt     time.Time `bun:"created_at,notnull"`
	UpdatedAt     time.Time `bun:"updated_at,notnull"`
}

func (r *Recorder) SaveSession(ctx context.Context, s domain.Session) error {
	row := &sessionRow{
		ID:                  s.ID,
		QuizID:              s.QuizID,
		HostID:              s.HostID,
		PIN:                 s.PIN,
		Mode:                string(s.Settings.Mode),
		AnswerOrderRandom:   s.Settings.AnswerOrderRandom,
		QuestionOrderRandom: s.Settings.QuestionOrderRandom,
		StreaksEnabled:      s.Settings.StreaksEnabled,
		Status:              string(s.Status),
		ActiveQuestionIndex: s.ActiveQuestionIndex,
		CreatedAt:           s.CreatedAt,
		StartedAt:           s.StartedAt,
		EndedAt:             s.EndedAt,
	}
	_, err := r.db.NewInsert().
		Model(row).
		On("CONFLICT (id) DO UPDATE").
		Set("status = EXCLUDED.status").
		Set("active_question_index = EXCLUDED.active_question_index").
		Set("started_at = EXCLUDED.started_at").
		Set("ended_at = EXCLUDED.ended_at").
		Exec(ctx)
	return err
}

func (r *Recorder) SavePlayer(ctx context.Context, p domain.Player) error {
	row := &playerRow{
		ID:            p.ID,
		SessionID:     p.SessionID,
		Nickname:      p.Nickname,
		UserID:        p.UserID,
		TeamID:        p.TeamID,
		ClientKey:     p.ClientKey,
		JoinedAt:      p.JoinedAt,
		JoinSeq:       p.JoinSeq,
		LeftAt:        p.LeftAt,
		Kicked:        p.Kicked,
		StreakCurrent: p.StreakCurrent,
		StreakMax:     p.StreakMax,
		TotalScore:    p.TotalScore,
	}
	_, err := r.db.NewInsert().
		Model(row).
		On("CONFLICT (id) DO UPDATE").
		Set("nickname = EXCLUDED.nickname").
		Set("left_at = EXCLUDED.left_at").
		Set("kicked = EXCLUDED.kicked").
		Set("streak_current = EXCLUDED.streak_current").
		Set("streak_max = EXCLUDED.streak_max").
		Set("total_score = EXCLUDED.total_score").
		Exec(ctx)
	return err
}

func (r *Recorder) SaveResponse(ctx context.Context, resp domain.Response) error {
	row := &responseRow{
		SessionID:     resp.SessionID,
		PlayerID:      resp.PlayerID,
		QuestionID:    resp.QuestionID,
		IsCorrect:     resp.IsCorrect,
		TimeTakenMs:   resp.TimeTakenMs,
		BasePoints:    resp.BasePoints,
		SpeedBonus:    resp.SpeedBonus,
		PointsAwarded: resp.PointsAwarded,
		CreatedAt:     resp.CreatedAt,
		UpdatedAt:     resp.UpdatedAt,
	}
	if resp.AnswerID != "" {
		answerID := resp.AnswerID
		row.AnswerID = &answerID
	}
	_, err := r.db.NewInsert().
		Model(row).
		On("CONFLICT (session_id, player_id, question_id) DO UPDATE").
		Set("answer_id = EXCLUDED.answer_id").
		Set("is_correct = EXCLUDED.is_correct").
		Set("time_taken_ms = EXCLUDED.time_taken_ms").
		Set("base_points = EXCLUDED.base_points").
		Set("speed_bonus = EXCLUDED.speed_bonus").
		Set("points_awarded = EXCLUDED.points_awarded").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	return err
}

// CountResponses reports how many response rows exist for one player in one
// session; tests use it to pin the upsert-not-duplicate invariant.
func (r *Recorder) CountResponses(ctx context.Context, sessionID, playerID string) (int, error) {
	return r.db.NewSelect().
		Model((*responseRow)(nil)).
		Where("session_id = ?", sessionID).
		Where("player_id = ?", playerID).
		Count(ctx)
}
