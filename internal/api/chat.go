package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/dosiblog/gateway/internal/agent"
	"github.com/dosiblog/gateway/internal/gateway"
	"github.com/dosiblog/gateway/internal/llm"
	"github.com/dosiblog/gateway/internal/log"
)

// maxChatBodyBytes bounds inbound chat request bodies.
const maxChatBodyBytes = 1 << 20

// chatHandler serves the chat endpoints.
//
// Endpoints:
//   - POST /api/chat        - synchronous chat (JSON request/response)
//   - POST /api/chat/stream - streaming chat (Server-Sent Events)
type chatHandler struct {
	service ChatService
	logger  log.Logger
}

// chatResponse is the synchronous chat reply.
type chatResponse struct {
	Response  string   `json:"response"`
	SessionID string   `json:"sessionId"`
	Mode      string   `json:"mode"`
	ToolsUsed []string `json:"toolsUsed"`
}

// streamEvent is one SSE data payload. Every stream ends with an event
// carrying done=true; tool notifications carry an empty chunk.
type streamEvent struct {
	Chunk     string   `json:"chunk"`
	Done      bool     `json:"done"`
	Tool      string   `json:"tool,omitempty"`
	ToolsUsed []string `json:"toolsUsed,omitempty"`
}

// streamErrorEvent is the terminal SSE payload on failure.
type streamErrorEvent struct {
	Error string `json:"error"`
	Done  bool   `json:"done"`
}

func (h *chatHandler) send(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}

	reply, err := h.service.Handle(r.Context(), req)
	if err != nil {
		status, code := classifyChatError(err)
		writeError(w, status, code, err.Error(), h.logger)
		return
	}

	mode := req.Mode
	if mode == "" {
		mode = gateway.ModeAgent
	}
	toolsUsed := reply.ToolsInvoked
	if toolsUsed == nil {
		toolsUsed = []string{}
	}
	writeJSON(w, http.StatusOK, chatResponse{
		Response:  reply.Answer,
		SessionID: reply.SessionID,
		Mode:      mode,
		ToolsUsed: toolsUsed,
	}, h.logger)
}

func (h *chatHandler) stream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming_unsupported", "streaming not supported", h.logger)
		return
	}

	req, ok := h.decode(w, r)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	// Write failures usually mean the client went away; remember the
	// first one and stop writing.
	var writeErr error
	emit := func(payload any) {
		if writeErr != nil {
			return
		}
		writeErr = writeEvent(w, flusher, payload)
	}

	reply, err := h.service.HandleStream(r.Context(), req, gateway.Events{
		OnText: func(chunk string) {
			if chunk != "" {
				emit(streamEvent{Chunk: chunk})
			}
		},
		OnTool: func(name string) {
			emit(streamEvent{Tool: name})
		},
	})
	if err != nil {
		h.logger.Warn("stream failed", "sessionId", req.SessionID, "error", err)
		emit(streamErrorEvent{Error: err.Error(), Done: true})
		return
	}

	emit(streamEvent{Done: true, ToolsUsed: reply.ToolsInvoked})
	h.logger.Debug("stream completed", "sessionId", req.SessionID, "tools", len(reply.ToolsInvoked))
}

// decode parses and bounds the request body. On failure it writes the
// error response and reports false.
func (h *chatHandler) decode(w http.ResponseWriter, r *http.Request) (gateway.Request, bool) {
	var req gateway.Request
	r.Body = http.MaxBytesReader(w, r.Body, maxChatBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "invalid request body", h.logger)
		return gateway.Request{}, false
	}
	return req, true
}

// classifyChatError maps gateway errors to HTTP status and error code.
func classifyChatError(err error) (int, string) {
	switch {
	case errors.Is(err, agent.ErrEmptyMessage):
		return http.StatusBadRequest, "empty_message"
	case errors.Is(err, gateway.ErrMissingSession):
		return http.StatusBadRequest, "missing_session"
	case errors.Is(err, gateway.ErrInvalidMode):
		return http.StatusBadRequest, "invalid_mode"
	case errors.Is(err, agent.ErrUnknownTool):
		return http.StatusInternalServerError, "unknown_tool"
	case errors.Is(err, agent.ErrToolLoopExceeded):
		return http.StatusInternalServerError, "tool_loop_exceeded"
	case errors.Is(err, llm.ErrNotConfigured):
		return http.StatusInternalServerError, "llm_not_configured"
	case errors.Is(err, llm.ErrUnavailable):
		return http.StatusBadGateway, "llm_unavailable"
	default:
		return http.StatusInternalServerError, "chat_failed"
	}
}

// writeEvent writes a single data-only SSE event: "data: <json>\n\n".
func writeEvent(w io.Writer, flusher http.Flusher, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		return fmt.Errorf("write event: %w", err)
	}
	flusher.Flush()
	return nil
}
