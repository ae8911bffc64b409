package handler

import (
	"net/http"

	"github.com/Rrens/aniverse-chat/internal/api/middleware"
	"github.com/Rrens/aniverse-chat/internal/api/response"
	"github.com/Rrens/aniverse-chat/internal/domain"
	"github.com/Rrens/aniverse-chat/internal/service"
	"github.com/google/uuid"
)

type SessionHandler struct {
	chatService *service.ChatService
}

func NewSessionHandler(chatService *service.ChatService) *SessionHandler {
	return &SessionHandler{chatService: chatService}
}

type createSessionRequest struct {
	Title string `json:"title" validate:"max=200"`
}

type renameSessionRequest struct {
	Title string `json:"title" validate:"required,max=200"`
}

type submitTurnRequest struct {
	Content string `json:"content" validate:"max=16000"`
}

// TurnResponse is the body of a successful turn
type TurnResponse struct {
	Message   string          `json:"message"`
	SessionID uuid.UUID       `json:"sessionId"`
	Reply     *domain.Message `json:"reply,omitempty"`
}

// List returns the caller's sessions, most recently active first
func (h *SessionHandler) List(w http.ResponseWriter, r *http.Request) {
	owner, ok := middleware.GetOwner(r.Context())
	if !ok {
		response.Unauthorized(w, "unauthorized")
		return
	}

	sessions, err := h.chatService.ListSessions(r.Context(), owner)
	if err != nil {
		writeError(w, r, err)
		return
	}

	response.OK(w, sessions)
}

// Create creates a new session
func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	owner, ok := middleware.GetOwner(r.Context())
	if !ok {
		response.Unauthorized(w, "unauthorized")
		return
	}

	var req createSessionRequest
	if !decodeBody(w, r, &req, true) {
		return
	}

	session, err := h.chatService.CreateSession(r.Context(), owner, req.Title)
	if err != nil {
		writeError(w, r, err)
		return
	}

	response.OK(w, session)
}

// Get returns one session
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	owner, ok := middleware.GetOwner(r.Context())
	if !ok {
		response.Unauthorized(w, "unauthorized")
		return
	}
	id, ok := sessionID(w, r)
	if !ok {
		return
	}

	session, err := h.chatService.GetSession(r.Context(), owner, id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	response.OK(w, session)
}

// Rename changes a session's title
func (h *SessionHandler) Rename(w http.ResponseWriter, r *http.Request) {
	owner, ok := middleware.GetOwner(r.Context())
	if !ok {
		response.Unauthorized(w, "unauthorized")
		return
	}
	id, ok := sessionID(w, r)
	if !ok {
		return
	}

	var req renameSessionRequest
	if !decodeBody(w, r, &req, false) {
		return
	}

	session, err := h.chatService.RenameSession(r.Context(), owner, id, req.Title)
	if err != nil {
		writeError(w, r, err)
		return
	}

	response.OK(w, session)
}

// Delete deletes a session and its messages
func (h *SessionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	owner, ok := middleware.GetOwner(r.Context())
	if !ok {
		response.Unauthorized(w, "unauthorized")
		return
	}
	id, ok := sessionID(w, r)
	if !ok {
		return
	}

	if err := h.chatService.DeleteSession(r.Context(), owner, id); err != nil {
		writeError(w, r, err)
		return
	}

	response.OK(w, map[string]string{"message": "Session deleted"})
}

// ListMessages returns a session's messages oldest first
func (h *SessionHandler) ListMessages(w http.ResponseWriter, r *http.Request) {
	owner, ok := middleware.GetOwner(r.Context())
	if !ok {
		response.Unauthorized(w, "unauthorized")
		return
	}
	id, ok := sessionID(w, r)
	if !ok {
		return
	}

	messages, err := h.chatService.ListMessages(r.Context(), owner, id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	response.OK(w, messages)
}

// SubmitTurn sends a user message and answers with the assistant reply
func (h *SessionHandler) SubmitTurn(w http.ResponseWriter, r *http.Request) {
	owner, ok := middleware.GetOwner(r.Context())
	if !ok {
		response.Unauthorized(w, "unauthorized")
		return
	}
	id, ok := sessionID(w, r)
	if !ok {
		return
	}

	var req submitTurnRequest
	if !decodeBody(w, r, &req, false) {
		return
	}

	result, err := h.chatService.SubmitTurn(r.Context(), owner, id, req.Content)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if result.Failure != nil {
		writeTurnFailure(w, result.SessionID, result.Message, result.Failure)
		return
	}

	response.OK(w, TurnResponse{
		Message:   result.Message,
		SessionID: result.SessionID,
		Reply:     result.Reply,
	})
}
