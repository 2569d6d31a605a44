package http

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/truongquangquoc2011/tracnghiemonline-platform-api-sub000/internal/app"
	"github.com/truongquangquoc2011/tracnghiemonline-platform-api-sub000/internal/domain"
)

// APIHandler is the synchronous entry point into the same lobby core the
// websocket gateway uses: create a session, join by PIN, read a leaderboard
// snapshot.
type APIHandler struct {
	service *app.LobbyService
}

func NewAPIHandler(service *app.LobbyService) *APIHandler {
	return &APIHandler{service: service}
}

// Register mounts the REST routes on mux.
func (h *APIHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/sessions", h.createSession)
	mux.HandleFunc("POST /api/sessions/join", h.join)
	mux.HandleFunc("GET /api/sessions/{pin}/leaderboard", h.leaderboard)
}

type createSessionRequest struct {
	QuizID   string                 `json:"quizId"`
	HostID   string                 `json:"hostId"`
	Settings domain.SessionSettings `json:"settings"`
}

func (h *APIHandler) createSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.QuizID == "" || req.HostID == "" {
		writeError(w, http.StatusBadRequest, "invalid_input", "quizId and hostId are required")
		return
	}
	session, err := h.service.CreateSession(r.Context(), req.QuizID, req.HostID, req.Settings)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, session)
}

type joinRequest struct {
	PINCode        string `json:"pinCode"`
	Nickname       string `json:"nickname"`
	TeamID         string `json:"teamId"`
	UserID         string `json:"userId"`
	ClientKey      string `json:"clientKey"`
	ResumePlayerID string `json:"resumePlayerId"`
}

type joinResponse struct {
	SessionID string        `json:"sessionId"`
	Player    domain.Player `json:"player"`
}

func (h *APIHandler) join(w http.ResponseWriter, r *http.Request) {
	var req joinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.PINCode == "" {
		writeError(w, http.StatusBadRequest, "invalid_input", "pinCode is required")
		return
	}
	session, player, err := h.service.Join(r.Context(), req.PINCode, app.JoinParams{
		Nickname:       req.Nickname,
		UserID:         req.UserID,
		ClientKey:      req.ClientKey,
		ResumePlayerID: req.ResumePlayerID,
		TeamID:         req.TeamID,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, joinResponse{SessionID: session.ID, Player: player})
}

func (h *APIHandler) leaderboard(w http.ResponseWriter, r *http.Request) {
	session, err := h.service.FindByPIN(r.PathValue("pin"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, session.Leaderboard())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("api: encode response: %v", err)
	}
}

func writeDomainError(w http.ResponseWriter, err error) {
	code := domain.ErrorCode(err)
	writeError(w, httpStatus(code), code, err.Error())
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{"code": code, "message": message})
}

func httpStatus(code string) int {
	switch code {
	case "not_found":
		return http.StatusNotFound
	case "conflict":
		return http.StatusConflict
	case "forbidden":
		return http.StatusForbidden
	case "invalid_input":
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
