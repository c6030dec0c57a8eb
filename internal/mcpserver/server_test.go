package mcpserver

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
)

type fakeHandler struct {
	calls  int
	prompt string
	format string
	reply  string
}

func (f *fakeHandler) Handle(_ context.Context, prompt, format string) string {
	f.calls++
	f.prompt = prompt
	f.format = format
	return f.reply
}

func callTool(t *testing.T, handler Handler, args map[string]any) string {
	t.Helper()
	request := mcp.CallToolRequest{}
	request.Params.Name = ToolName
	request.Params.Arguments = args

	result, err := ToolHandler(handler)(context.Background(), request)
	if err != nil {
		t.Fatalf("ToolHandler() error = %v", err)
	}
	if result.IsError {
		t.Fatal("tool result must not be flagged as a protocol error")
	}
	if len(result.Content) != 1 {
		t.Fatalf("content blocks = %d, want 1", len(result.Content))
	}
	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("content type = %T, want mcp.TextContent", result.Content[0])
	}
	return text.Text
}

func TestToolHandlerPassesArguments(t *testing.T) {
	handler := &fakeHandler{reply: "SELECT * FROM authors"}

	got := callTool(t, handler, map[string]any{"prompt": "all authors", "output_format": "query_only"})
	if got != "SELECT * FROM authors" {
		t.Fatalf("reply = %q", got)
	}
	if handler.prompt != "all authors" || handler.format != "query_only" {
		t.Fatalf("handler saw prompt=%q format=%q", handler.prompt, handler.format)
	}
}

func TestToolHandlerDefaultsFormat(t *testing.T) {
	handler := &fakeHandler{reply: "ok"}

	callTool(t, handler, map[string]any{"prompt": "all authors"})
	if handler.format != DefaultFormat {
		t.Fatalf("format = %q, want %q", handler.format, DefaultFormat)
	}
}

func TestToolHandlerRequiresPrompt(t *testing.T) {
	handler := &fakeHandler{reply: "unused"}

	got := callTool(t, handler, map[string]any{"prompt": "  "})
	if got != "Error: prompt is required" {
		t.Fatalf("reply = %q", got)
	}
	if handler.calls != 0 {
		t.Fatalf("handler called %d times", handler.calls)
	}
}

func TestToolHandlerReturnsErrorsAsText(t *testing.T) {
	handler := &fakeHandler{reply: "SQL Error: Invalid object name 'authorz'."}

	got := callTool(t, handler, map[string]any{"prompt": "x"})
	if got != handler.reply {
		t.Fatalf("reply = %q", got)
	}
}

func TestToolDeclaresReadOnlyAnnotations(t *testing.T) {
	tool := Tool()
	if tool.Name != ToolName {
		t.Fatalf("Name = %q", tool.Name)
	}
	raw, err := json.Marshal(tool)
	if err != nil {
		t.Fatalf("marshal tool: %v", err)
	}
	body := string(raw)
	for _, want := range []string{`"readOnlyHint":true`, `"destructiveHint":false`, `"required":["prompt"]`, `"default":"formatted"`} {
		if !strings.Contains(body, want) {
			t.Fatalf("tool JSON %s missing %s", body, want)
		}
	}
}

func TestServerListsTool(t *testing.T) {
	s := New("nlquery", "test", &fakeHandler{})

	response := s.HandleMessage(context.Background(), json.RawMessage(`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`))
	raw, err := json.Marshal(response)
	if err != nil {
		t.Fatalf("marshal response: %v", err)
	}
	if !strings.Contains(string(raw), `"name":"nl_query"`) {
		t.Fatalf("tools/list response = %s", raw)
	}
}
