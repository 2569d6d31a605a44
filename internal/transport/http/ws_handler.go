package http

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/truongquangquoc2011/tracnghiemonline-platform-api-sub000/internal/app"
	"github.com/truongquangquoc2011/tracnghiemonline-platform-api-sub000/internal/domain"
)

// WSHandler is the realtime gateway: it binds each live connection to at most
// one {session, player} pair, routes inbound events into the lobby use cases
// and fans room events back out. A connection is unbound until its join event;
// a disconnect of a bound player counts as an implicit leave.
type WSHandler struct {
	service  *app.LobbyService
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.LobbyService) *WSHandler {
	return &WSHandler{
		service: service,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type joinPayload struct {
	PINCode        string `json:"pinCode"`
	Nickname       string `json:"nickname"`
	TeamID         string `json:"teamId"`
	UserID         string `json:"userId"`
	ClientKey      string `json:"clientKey"`
	ResumePlayerID string `json:"resumePlayerId"`
}

type nextQuestionPayload struct {
	NextIndex int `json:"nextIndex"`
}

type submitAnswerPayload struct {
	QuestionID  string  `json:"questionId"`
	AnswerID    *string `json:"answerId"`
	TimeTakenMs int     `json:"timeTakenMs"`
}

type kickPlayerPayload struct {
	PlayerID string `json:"playerId"`
}

type joinedPayload struct {
	SessionID string         `json:"sessionId"`
	Player    *domain.Player `json:"player,omitempty"`
	Host      bool           `json:"host,omitempty"`
}

type errorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// connBinding is the per-connection state established by a join event.
type connBinding struct {
	sessionID string
	playerID  string // empty on the host's connection
	actorID   string // requester identity for host-only operations
}

// ServeWS upgrades the request and runs the connection's event loop.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws: upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	send := make(chan app.Event, 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})
	var cancelUpdates func()

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("ws: write error: %v", err)
				return
			}
		}
	}()

	var binding *connBinding

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}

		switch inbound.Type {
		case "join":
			if binding != nil {
				send <- app.Event{Type: "error", Payload: errorPayload{Code: "conflict", Message: "connection already joined a session"}}
				continue
			}
			var payload joinPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				send <- invalidPayloadEvent("join")
				continue
			}
			b, updates, cancel, err := h.join(r.Context(), payload, send)
			if err != nil {
				send <- errorEvent(err, "")
				continue
			}
			binding = b
			cancelUpdates = cancel
			go func() {
				defer close(updatesDone)
				for {
					select {
					case ev, ok := <-updates:
						if !ok {
							return
						}
						select {
						case send <- ev:
						case <-closeSignals:
							return
						}
					case <-closeSignals:
						return
					}
				}
			}()

		case "leave":
			if binding != nil && binding.playerID != "" {
				h.service.Leave(r.Context(), binding.sessionID, binding.playerID)
			}
			// Closing the socket ends the read loop; the implicit leave on
			// disconnect below is idempotent.
			_ = conn.Close()

		case "start_game":
			if binding == nil {
				send <- errorEvent(domain.ErrSessionNotFound, "join first")
				continue
			}
			if _, err := h.service.Start(r.Context(), binding.sessionID, binding.actorID); err != nil {
				send <- errorEvent(err, "")
			}

		case "next_question":
			if binding == nil {
				send <- errorEvent(domain.ErrSessionNotFound, "join first")
				continue
			}
			var payload nextQuestionPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				send <- invalidPayloadEvent("next_question")
				continue
			}
			if _, err := h.service.NextQuestion(r.Context(), binding.sessionID, binding.actorID, payload.NextIndex); err != nil {
				send <- errorEvent(err, "")
			}

		case "submit_answer":
			if binding == nil || binding.playerID == "" {
				send <- errorEvent(domain.ErrNotAMember, "")
				continue
			}
			var payload submitAnswerPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				send <- invalidPayloadEvent("submit_answer")
				continue
			}
			answerID := ""
			if payload.AnswerID != nil {
				answerID = *payload.AnswerID
			}
			feedback, _, err := h.service.Submit(r.Context(), binding.sessionID, binding.playerID, payload.QuestionID, answerID, payload.TimeTakenMs)
			if err != nil {
				send <- errorEvent(err, "")
				continue
			}
			// Feedback goes to the submitter only; the leaderboard reaches
			// the room through the subscription.
			send <- app.Event{Type: "answer_feedback", Payload: feedback}

		case "end_game":
			if binding == nil {
				send <- errorEvent(domain.ErrSessionNotFound, "join first")
				continue
			}
			if _, err := h.service.End(r.Context(), binding.sessionID, binding.actorID); err != nil {
				send <- errorEvent(err, "")
			}

		case "kick_player":
			if binding == nil {
				send <- errorEvent(domain.ErrSessionNotFound, "join first")
				continue
			}
			var payload kickPlayerPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				send <- invalidPayloadEvent("kick_player")
				continue
			}
			if err := h.kick(r.Context(), binding, payload.PlayerID); err != nil {
				send <- errorEvent(err, "")
			}

		default:
			send <- app.Event{Type: "error", Payload: errorPayload{Code: "invalid_input", Message: "unsupported message type"}}
		}
	}

	// Disconnect of a bound player is an implicit leave; the room hears about
	// it through the membership broadcast.
	if binding != nil && binding.playerID != "" {
		h.service.Leave(context.Background(), binding.sessionID, binding.playerID)
	}
	if cancelUpdates != nil {
		cancelUpdates()
		close(closeSignals)
		<-updatesDone
	}
	close(send)
	<-writerDone
}

// join resolves the PIN, binds the connection either as the session's host or
// as a player, subscribes it to the room and queues the initial snapshot.
func (h *WSHandler) join(ctx context.Context, payload joinPayload, send chan app.Event) (*connBinding, <-chan app.Event, func(), error) {
	session, err := h.service.FindByPIN(payload.PINCode)
	if err != nil {
		return nil, nil, nil, err
	}

	// The host rejoins its own lobby without a membership record.
	if payload.UserID != "" && payload.UserID == session.HostID() && payload.Nickname == "" {
		updates, cancel, err := h.service.Subscribe(session.ID())
		if err != nil {
			return nil, nil, nil, err
		}
		send <- app.Event{Type: "joined", Payload: joinedPayload{SessionID: session.ID(), Host: true}}
		send <- app.Event{Type: app.EventLobbyState, Payload: session.State()}
		return &connBinding{sessionID: session.ID(), actorID: payload.UserID}, updates, cancel, nil
	}

	_, player, err := h.service.Join(ctx, payload.PINCode, app.JoinParams{
		Nickname:       payload.Nickname,
		UserID:         payload.UserID,
		ClientKey:      payload.ClientKey,
		ResumePlayerID: payload.ResumePlayerID,
		TeamID:         payload.TeamID,
	})
	if err != nil {
		return nil, nil, nil, err
	}

	updates, cancel, err := h.service.Subscribe(session.ID())
	if err != nil {
		return nil, nil, nil, err
	}

	actorID := player.UserID
	if actorID == "" {
		actorID = player.ID
	}
	send <- app.Event{Type: "joined", Payload: joinedPayload{SessionID: session.ID(), Player: &player}}
	send <- app.Event{Type: app.EventLobbyState, Payload: session.State()}
	return &connBinding{sessionID: session.ID(), playerID: player.ID, actorID: actorID}, updates, cancel, nil
}

// kick enforces the host check at the transport boundary, mirroring where
// start/end enforce theirs, before reaching the membership primitive.
func (h *WSHandler) kick(ctx context.Context, binding *connBinding, playerID string) error {
	session, err := h.service.SessionByID(binding.sessionID)
	if err != nil {
		return err
	}
	if binding.actorID != session.HostID() {
		return domain.ErrNotHost
	}
	return h.service.Kick(ctx, binding.sessionID, playerID)
}

func errorEvent(err error, message string) app.Event {
	if message == "" {
		message = err.Error()
	}
	return app.Event{Type: "error", Payload: errorPayload{Code: domain.ErrorCode(err), Message: message}}
}

func invalidPayloadEvent(event string) app.Event {
	return app.Event{Type: "error", Payload: errorPayload{Code: "invalid_input", Message: "invalid " + event + " payload"}}
}
