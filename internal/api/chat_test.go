package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dosiblog/gateway/internal/agent"
	"github.com/dosiblog/gateway/internal/gateway"
	"github.com/dosiblog/gateway/internal/history"
)

func postJSON(t *testing.T, srv *Server, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

// sseEvents parses the data payloads out of an SSE body.
func sseEvents(t *testing.T, body string) []map[string]any {
	t.Helper()
	var events []map[string]any
	for _, line := range strings.Split(body, "\n") {
		data, ok := strings.CutPrefix(line, "data: ")
		if !ok {
			continue
		}
		var event map[string]any
		if err := json.Unmarshal([]byte(data), &event); err != nil {
			t.Fatalf("unmarshal event %q: %v", data, err)
		}
		events = append(events, event)
	}
	return events
}

func TestChat_Send(t *testing.T) {
	svc := &stubService{reply: &gateway.Reply{
		Answer:       "the sum is 3",
		SessionID:    "s1",
		ToolsInvoked: []string{"add"},
	}}
	srv := newTestServer(t, svc, ServerConfig{})

	rec := postJSON(t, srv, "/api/chat", `{"message":"add 1 and 2","sessionId":"s1"}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %s)", rec.Code, rec.Body)
	}
	var body chatResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body.Response != "the sum is 3" || body.SessionID != "s1" {
		t.Errorf("body = %+v", body)
	}
	if body.Mode != gateway.ModeAgent {
		t.Errorf("Mode = %q, want agent default", body.Mode)
	}
	if len(body.ToolsUsed) != 1 || body.ToolsUsed[0] != "add" {
		t.Errorf("ToolsUsed = %v, want [add]", body.ToolsUsed)
	}

	if svc.lastReq.Message != "add 1 and 2" || svc.lastReq.SessionID != "s1" {
		t.Errorf("service request = %+v", svc.lastReq)
	}
}

func TestChat_SendErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"empty message", agent.ErrEmptyMessage, http.StatusBadRequest, "empty_message"},
		{"missing session", gateway.ErrMissingSession, http.StatusBadRequest, "missing_session"},
		{"invalid mode", gateway.ErrInvalidMode, http.StatusBadRequest, "invalid_mode"},
		{"unknown tool", agent.ErrUnknownTool, http.StatusInternalServerError, "unknown_tool"},
		{"loop exceeded", agent.ErrToolLoopExceeded, http.StatusInternalServerError, "tool_loop_exceeded"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, &stubService{err: tt.err}, ServerConfig{})

			rec := postJSON(t, srv, "/api/chat", `{"message":"x","sessionId":"s"}`)
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			var body errorResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if body.Error.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", body.Error.Code, tt.wantCode)
			}
		})
	}
}

func TestChat_SendRejectsBadBody(t *testing.T) {
	srv := newTestServer(t, &stubService{}, ServerConfig{})

	rec := postJSON(t, srv, "/api/chat", `{not json`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestChat_Stream(t *testing.T) {
	svc := &stubService{
		reply: &gateway.Reply{Answer: "sum: 3", SessionID: "s1", ToolsInvoked: []string{"add"}},
		streamFn: func(events gateway.Events) {
			events.OnTool("add")
			events.OnText("sum")
			events.OnText(": 3")
		},
	}
	srv := newTestServer(t, svc, ServerConfig{})

	rec := postJSON(t, srv, "/api/chat/stream", `{"message":"add","sessionId":"s1"}`)

	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q, want text/event-stream", ct)
	}

	events := sseEvents(t, rec.Body.String())
	if len(events) != 4 {
		t.Fatalf("events = %v, want 4", events)
	}

	if events[0]["tool"] != "add" || events[0]["done"] != false {
		t.Errorf("events[0] = %v, want tool notification", events[0])
	}
	if events[0]["chunk"] != "" {
		t.Errorf("tool notification chunk = %v, want empty", events[0]["chunk"])
	}
	if events[1]["chunk"] != "sum" || events[2]["chunk"] != ": 3" {
		t.Errorf("chunks = %v %v", events[1], events[2])
	}

	last := events[len(events)-1]
	if last["done"] != true {
		t.Errorf("last event = %v, want done:true", last)
	}
	tools, _ := last["toolsUsed"].([]any)
	if len(tools) != 1 || tools[0] != "add" {
		t.Errorf("toolsUsed = %v, want [add]", last["toolsUsed"])
	}
}

func TestChat_StreamError(t *testing.T) {
	srv := newTestServer(t, &stubService{err: agent.ErrUnknownTool}, ServerConfig{})

	rec := postJSON(t, srv, "/api/chat/stream", `{"message":"x","sessionId":"s"}`)

	events := sseEvents(t, rec.Body.String())
	if len(events) != 1 {
		t.Fatalf("events = %v, want a single error event", events)
	}
	if events[0]["done"] != true {
		t.Errorf("error event = %v, want done:true", events[0])
	}
	if msg, _ := events[0]["error"].(string); !strings.Contains(msg, "unknown tool") {
		t.Errorf("error = %v, want the failure message", events[0]["error"])
	}
}

func TestChat_StreamAlwaysEndsDone(t *testing.T) {
	svc := &stubService{
		reply:    &gateway.Reply{Answer: "", SessionID: "s1"},
		streamFn: func(gateway.Events) {},
	}
	srv := newTestServer(t, svc, ServerConfig{})

	rec := postJSON(t, srv, "/api/chat/stream", `{"message":"x","sessionId":"s1"}`)

	events := sseEvents(t, rec.Body.String())
	if len(events) == 0 {
		t.Fatal("no events")
	}
	if events[len(events)-1]["done"] != true {
		t.Errorf("last event = %v, want done:true", events[len(events)-1])
	}
}

func TestSession_Endpoints(t *testing.T) {
	svc := &stubService{histories: map[string][]history.Turn{
		"s1": {
			{Role: history.RoleUser, Content: "hello"},
			{Role: history.RoleAssistant, Content: "hi"},
		},
		"s2": nil,
	}}
	srv := newTestServer(t, svc, ServerConfig{})

	// List
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/sessions", nil))
	var listBody struct {
		Sessions []sessionSummary `json:"sessions"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &listBody); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(listBody.Sessions) != 2 || listBody.Sessions[0].SessionID != "s1" || listBody.Sessions[0].MessageCount != 2 {
		t.Errorf("sessions = %+v", listBody.Sessions)
	}

	// Info
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/session/s1", nil))
	var info sessionInfo
	if err := json.Unmarshal(rec.Body.Bytes(), &info); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if info.SessionID != "s1" || info.MessageCount != 2 || info.Messages[0].Role != "user" {
		t.Errorf("info = %+v", info)
	}

	// Clear
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/session/s1", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("clear status = %d, want 200", rec.Code)
	}
	if len(svc.cleared) != 1 || svc.cleared[0] != "s1" {
		t.Errorf("cleared = %v, want [s1]", svc.cleared)
	}
}
