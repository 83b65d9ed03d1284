package api

import (
	"fmt"
	"net/http"

	"github.com/dosiblog/gateway/internal/log"
)

// sessionHandler serves conversation-history endpoints.
type sessionHandler struct {
	service ChatService
	logger  log.Logger
}

type sessionSummary struct {
	SessionID    string `json:"sessionId"`
	MessageCount int    `json:"messageCount"`
}

type sessionInfo struct {
	SessionID    string        `json:"sessionId"`
	MessageCount int           `json:"messageCount"`
	Messages     []sessionTurn `json:"messages"`
}

type sessionTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// list reports all known sessions, cleared ones included.
func (h *sessionHandler) list(w http.ResponseWriter, _ *http.Request) {
	ids := h.service.Sessions()
	sessions := make([]sessionSummary, 0, len(ids))
	for _, id := range ids {
		sessions = append(sessions, sessionSummary{
			SessionID:    id,
			MessageCount: len(h.service.SessionHistory(id)),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": sessions}, h.logger)
}

func (h *sessionHandler) get(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	turns := h.service.SessionHistory(id)

	messages := make([]sessionTurn, 0, len(turns))
	for _, t := range turns {
		messages = append(messages, sessionTurn{Role: t.Role, Content: t.Content})
	}
	writeJSON(w, http.StatusOK, sessionInfo{
		SessionID:    id,
		MessageCount: len(messages),
		Messages:     messages,
	}, h.logger)
}

func (h *sessionHandler) clear(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	h.service.ClearSession(id)
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "success",
		"message": fmt.Sprintf("session %s cleared", id),
	}, h.logger)
}
