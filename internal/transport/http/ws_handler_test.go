package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/truongquangquoc2011/tracnghiemonline-platform-api-sub000/internal/app"
	"github.com/truongquangquoc2011/tracnghiemonline-platform-api-sub000/internal/domain"
	"github.com/truongquangquoc2011/tracnghiemonline-platform-api-sub000/internal/infra/memory"
)

func newWebSocketServer(t *testing.T) (*app.LobbyService, *httptest.Server) {
	t.Helper()
	content := memory.NewContentRepository(memory.NewStaticQuizLoader(sampleQuizzes()), time.Minute)
	service := app.NewLobbyService(memory.NewRegistry(), content, memory.NewRecorder())

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", NewWSHandler(service).ServeWS)
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return service, server
}

func dial(t *testing.T, server *httptest.Server) *websocket.Conn {
	t.Helper()
	u := "ws" + server.URL[len("http"):] + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func sendEvent(conn *websocket.Conn, t *testing.T, eventType string, payload map[string]any) {
	t.Helper()
	if err := conn.WriteJSON(map[string]any{"type": eventType, "payload": payload}); err != nil {
		t.Fatalf("write %s: %v", eventType, err)
	}
}

func readNext(conn *websocket.Conn, t *testing.T, expect string) (string, map[string]any) {
	t.Helper()
	var msg struct {
		Type    string         `json:"type"`
		Payload map[string]any `json:"payload"`
	}
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read json: %v", err)
	}
	if expect != "" && msg.Type != expect {
		t.Fatalf("expected type %s, got %s", expect, msg.Type)
	}
	return msg.Type, msg.Payload
}

// readUntil drains interleaved room broadcasts until the wanted type arrives.
func readUntil(conn *websocket.Conn, t *testing.T, want string) map[string]any {
	t.Helper()
	for i := 0; i < 10; i++ {
		typ, payload := readNext(conn, t, "")
		if typ == want {
			return payload
		}
	}
	t.Fatalf("never received %s", want)
	return nil
}

func sampleQuizzes() map[string]domain.Quiz {
	return map[string]domain.Quiz{
		"quiz-1": {
			ID: "quiz-1",
			Questions: []domain.Question{
				{
					ID:           "q1",
					Text:         "What is 2 + 2?",
					TimeLimitSec: 30,
					Multiplier:   1,
					Options: []domain.AnswerOption{
						{ID: "o1", Text: "3", Order: 0},
						{ID: "o2", Text: "4", Order: 1, Correct: true},
						{ID: "o3", Text: "5", Order: 2},
					},
				},
			},
		},
	}
}

func TestWebSocketFullGameFlow(t *testing.T) {
	service, server := newWebSocketServer(t)
	session, err := service.CreateSession(context.Background(), "quiz-1", "host-1", domain.SessionSettings{StreaksEnabled: true})
	if err != nil {
		t.Fatalf("create session: %v", err)
	}

	host := dial(t, server)
	sendEvent(host, t, "join", map[string]any{"pinCode": session.PIN, "userId": "host-1"})
	_, joined := readNext(host, t, "joined")
	if joined["host"] != true {
		t.Fatalf("expected host binding, got %v", joined)
	}
	readNext(host, t, "lobby_state")

	player := dial(t, server)
	sendEvent(player, t, "join", map[string]any{"pinCode": session.PIN, "nickname": "Alice"})
	_, joined = readNext(player, t, "joined")
	playerInfo, ok := joined["player"].(map[string]any)
	if !ok || playerInfo["nickname"] != "Alice" {
		t.Fatalf("expected player payload, got %v", joined)
	}
	readNext(player, t, "lobby_state")

	// The host hears the membership change.
	change := readUntil(host, t, "player_joined")
	if change["nickname"] != "Alice" {
		t.Fatalf("unexpected player_joined payload %v", change)
	}

	sendEvent(host, t, "start_game", nil)
	readUntil(host, t, "game_started")
	readUntil(player, t, "game_started")

	sendEvent(host, t, "next_question", map[string]any{"nextIndex": 0})
	question := readUntil(player, t, "question_started")
	view, ok := question["question"].(map[string]any)
	if !ok {
		t.Fatalf("question_started missing question: %v", question)
	}
	answers, ok := view["answers"].([]any)
	if !ok || len(answers) != 3 {
		t.Fatalf("expected 3 answers, got %v", view["answers"])
	}
	for _, raw := range answers {
		if _, leaked := raw.(map[string]any)["correct"]; leaked {
			t.Fatalf("correctness leaked to clients: %v", raw)
		}
	}

	sendEvent(player, t, "submit_answer", map[string]any{
		"questionId":  "q1",
		"answerId":    "o2",
		"timeTakenMs": 5000,
	})
	feedback := readUntil(player, t, "answer_feedback")
	if feedback["isCorrect"] != true || feedback["points"] != float64(1417) {
		t.Fatalf("unexpected feedback %v", feedback)
	}
	standings := readUntil(host, t, "leaderboard_update")
	entries, ok := standings["entries"].([]any)
	if !ok || len(entries) != 1 {
		t.Fatalf("unexpected leaderboard %v", standings)
	}

	sendEvent(host, t, "end_game", nil)
	final := readUntil(player, t, "game_ended")
	if _, ok := final["leaderboard"]; !ok {
		t.Fatalf("game_ended missing final standings: %v", final)
	}
}

func TestWebSocketDisconnectIsImplicitLeave(t *testing.T) {
	service, server := newWebSocketServer(t)
	session, err := service.CreateSession(context.Background(), "quiz-1", "host-1", domain.SessionSettings{})
	if err != nil {
		t.Fatalf("create session: %v", err)
	}

	host := dial(t, server)
	sendEvent(host, t, "join", map[string]any{"pinCode": session.PIN, "userId": "host-1"})
	readNext(host, t, "joined")
	readNext(host, t, "lobby_state")

	player := dial(t, server)
	sendEvent(player, t, "join", map[string]any{"pinCode": session.PIN, "nickname": "Bob"})
	readNext(player, t, "joined")
	readUntil(host, t, "player_joined")

	player.Close()

	left := readUntil(host, t, "player_left")
	if left["nickname"] != "Bob" {
		t.Fatalf("unexpected player_left payload %v", left)
	}
}

func TestWebSocketPlayerCannotStart(t *testing.T) {
	service, server := newWebSocketServer(t)
	session, err := service.CreateSession(context.Background(), "quiz-1", "host-1", domain.SessionSettings{})
	if err != nil {
		t.Fatalf("create session: %v", err)
	}

	player := dial(t, server)
	sendEvent(player, t, "join", map[string]any{"pinCode": session.PIN, "nickname": "Carol"})
	readNext(player, t, "joined")
	readNext(player, t, "lobby_state")

	sendEvent(player, t, "start_game", nil)
	failure := readUntil(player, t, "error")
	if failure["code"] != "forbidden" {
		t.Fatalf("expected forbidden, got %v", failure)
	}
}

func TestWebSocketJoinUnknownPIN(t *testing.T) {
	_, server := newWebSocketServer(t)

	conn := dial(t, server)
	sendEvent(conn, t, "join", map[string]any{"pinCode": "000000", "nickname": "Ghost"})
	_, failure := readNext(conn, t, "error")
	if failure["code"] != "not_found" {
		t.Fatalf("expected not_found, got %v", failure)
	}
}
