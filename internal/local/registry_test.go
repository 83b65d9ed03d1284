package local

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// connect wires an SDK client to a registered server over in-memory
// transports. Both sessions are cleaned up via t.Cleanup.
func connect(t *testing.T, name string) *mcp.ClientSession {
	t.Helper()

	srv, ok := NewRegistry().Server(name)
	if !ok {
		t.Fatalf("Server(%q) not found", name)
	}

	ctx := context.Background()
	serverTransport, clientTransport := mcp.NewInMemoryTransports()

	serverSession, err := srv.Connect(ctx, serverTransport, nil)
	if err != nil {
		t.Fatalf("server.Connect() unexpected error: %v", err)
	}
	t.Cleanup(func() { _ = serverSession.Close() })

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "1.0.0"}, nil)
	clientSession, err := client.Connect(ctx, clientTransport, nil)
	if err != nil {
		t.Fatalf("client.Connect() unexpected error: %v", err)
	}
	t.Cleanup(func() { _ = clientSession.Close() })

	return clientSession
}

func callText(t *testing.T, session *mcp.ClientSession, tool string, args map[string]any) string {
	t.Helper()

	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      tool,
		Arguments: args,
	})
	if err != nil {
		t.Fatalf("CallTool(%q) unexpected error: %v", tool, err)
	}
	if result.IsError {
		t.Fatalf("CallTool(%q) returned error result: %v", tool, result.Content)
	}
	if len(result.Content) == 0 {
		t.Fatalf("CallTool(%q) returned empty content", tool)
	}
	text, ok := result.Content[0].(*mcp.TextContent)
	if !ok {
		t.Fatalf("CallTool(%q) content[0] type = %T, want *mcp.TextContent", tool, result.Content[0])
	}
	return text.Text
}

func TestRegistry_Lookup(t *testing.T) {
	r := NewRegistry()

	for _, name := range []string{"math", "MATH", "Clock"} {
		if _, ok := r.Server(name); !ok {
			t.Errorf("Server(%q) not found, lookup should be case-insensitive", name)
		}
	}
	if _, ok := r.Server("weather"); ok {
		t.Error("Server(weather) found, want miss")
	}
}

func TestMathServer_ListTools(t *testing.T) {
	session := connect(t, "math")

	result, err := session.ListTools(context.Background(), nil)
	if err != nil {
		t.Fatalf("ListTools() unexpected error: %v", err)
	}

	var names []string
	for _, tool := range result.Tools {
		names = append(names, tool.Name)
		if tool.Description == "" {
			t.Errorf("tool %q has empty description", tool.Name)
		}
	}
	sort.Strings(names)

	want := []string{"add", "divide", "multiply"}
	if len(names) != len(want) {
		t.Fatalf("ListTools() = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("tool[%d] = %q, want %q", i, names[i], want[i])
		}
	}
}

func TestMathServer_Add(t *testing.T) {
	session := connect(t, "math")

	got := callText(t, session, "add", map[string]any{"a": 19, "b": 23})
	if got != "42" {
		t.Errorf("add(19, 23) = %q, want %q", got, "42")
	}
}

func TestMathServer_DivideByZero(t *testing.T) {
	session := connect(t, "math")

	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "divide",
		Arguments: map[string]any{"a": 1, "b": 0},
	})
	if err != nil {
		t.Fatalf("CallTool(divide) unexpected error: %v", err)
	}
	if !result.IsError {
		t.Fatal("divide by zero should return an error result")
	}
}

func TestClockServer_CurrentTime(t *testing.T) {
	session := connect(t, "clock")

	text := callText(t, session, "current_time", nil)

	var parsed map[string]any
	if err := json.Unmarshal([]byte(text), &parsed); err != nil {
		t.Fatalf("current_time result is not JSON: %v\ntext: %s", err, text)
	}
	if parsed["timezone"] != "UTC" {
		t.Errorf("timezone = %v, want UTC", parsed["timezone"])
	}
	if _, ok := parsed["iso"]; !ok {
		t.Error("current_time result missing iso field")
	}
}

func TestClockServer_UnknownTimezone(t *testing.T) {
	session := connect(t, "clock")

	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "current_time",
		Arguments: map[string]any{"timezone": "Mars/Olympus"},
	})
	if err != nil {
		t.Fatalf("CallTool(current_time) unexpected error: %v", err)
	}
	if !result.IsError {
		t.Fatal("unknown timezone should return an error result")
	}
	text := result.Content[0].(*mcp.TextContent).Text
	if !strings.Contains(text, "Mars/Olympus") {
		t.Errorf("error text = %q, want to contain the timezone", text)
	}
}
