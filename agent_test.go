package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
)

// scriptedModel replays a fixed sequence of responses; the last one repeats
// once the script is exhausted.
type scriptedModel struct {
	mu        sync.Mutex
	responses []string
	err       error
	calls     int
	prompts   []string
}

func (m *scriptedModel) Generate(_ context.Context, prompt string) (any, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.prompts = append(m.prompts, prompt)
	if m.err != nil {
		return nil, m.err
	}
	idx := m.calls - 1
	if idx >= len(m.responses) {
		idx = len(m.responses) - 1
	}
	return m.responses[idx], nil
}

type panicModel struct{}

func (panicModel) Generate(context.Context, string) (any, error) {
	panic("model blew up")
}

type echoTool struct {
	lastSession string
}

func (t *echoTool) Spec() ToolSpec {
	return ToolSpec{
		Name:        "echo_payload",
		Description: "Echoes its payload argument.",
		InputSchema: map[string]any{
			"type":       "object",
			"properties": map[string]any{"payload": map[string]any{"type": "string"}},
			"required":   []string{"payload"},
		},
	}
}

func (t *echoTool) Invoke(_ context.Context, req ToolRequest) (ToolResponse, error) {
	t.lastSession = req.SessionID
	payload, _ := req.Arguments["payload"].(string)
	return ToolResponse{Content: "echo: " + payload}, nil
}

func collectEvents(t *testing.T, ch <-chan Event) []Event {
	t.Helper()
	var events []Event
	for ev := range ch {
		events = append(events, ev)
	}
	return events
}

func TestAgentDirectReply(t *testing.T) {
	model := &scriptedModel{responses: []string{`{"use_tool": false, "reply": "No tool needed, how can I help?"}`}}
	a, err := New(Options{Name: "test_agent", Model: model})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	events := collectEvents(t, a.Run(context.Background(), "s1", nil, "hello there"))
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d: %v", len(events), events)
	}
	if events[0].Type != EventModelText || events[1].Type != EventFinal {
		t.Fatalf("unexpected event types: %v, %v", events[0].Type, events[1].Type)
	}
	if events[1].Text != "No tool needed, how can I help?" {
		t.Fatalf("unexpected final text: %q", events[1].Text)
	}
}

func TestAgentToolFlow(t *testing.T) {
	tool := &echoTool{}
	model := &scriptedModel{responses: []string{
		`{"use_tool": true, "tool_name": "echo_payload", "arguments": {"payload": "ping"}}`,
		"The tool replied with ping.",
	}}
	a, err := New(Options{Name: "test_agent", Model: model, Tools: []Tool{tool}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	events := collectEvents(t, a.Run(context.Background(), "session-42", nil, "echo ping please"))

	wantTypes := []EventType{EventToolCall, EventToolResult, EventModelText, EventFinal}
	if len(events) != len(wantTypes) {
		t.Fatalf("expected %d events, got %d: %v", len(wantTypes), len(events), events)
	}
	for i, want := range wantTypes {
		if events[i].Type != want {
			t.Fatalf("event %d: got %v, want %v", i, events[i].Type, want)
		}
	}
	if events[1].Result != "echo: ping" {
		t.Fatalf("unexpected tool result: %q", events[1].Result)
	}
	if events[3].Text != "The tool replied with ping." {
		t.Fatalf("unexpected final text: %q", events[3].Text)
	}
	if tool.lastSession != "session-42" {
		t.Fatalf("tool saw session %q, want session-42", tool.lastSession)
	}
}

func TestAgentUnknownTool(t *testing.T) {
	model := &scriptedModel{responses: []string{`{"use_tool": true, "tool_name": "no_such_tool", "arguments": {}}`}}
	a, err := New(Options{Name: "test_agent", Model: model})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	events := collectEvents(t, a.Run(context.Background(), "s1", nil, "do something"))
	last := events[len(events)-1]
	if last.Type != EventError {
		t.Fatalf("expected terminal error event, got %v", last.Type)
	}
	if !strings.Contains(last.Err, "unknown tool: no_such_tool") {
		t.Fatalf("unexpected error: %q", last.Err)
	}
}

func TestAgentEmptyInput(t *testing.T) {
	a, err := New(Options{Name: "test_agent", Model: &scriptedModel{responses: []string{"unused"}}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	events := collectEvents(t, a.Run(context.Background(), "s1", nil, "   "))
	if len(events) != 1 || events[0].Type != EventError {
		t.Fatalf("expected a single error event, got %v", events)
	}
	if events[0].Err != "user input is empty" {
		t.Fatalf("unexpected error: %q", events[0].Err)
	}
}

func TestAgentHistoryInPrompt(t *testing.T) {
	model := &scriptedModel{responses: []string{`{"use_tool": false, "reply": "ok"}`}}
	a, err := New(Options{Name: "test_agent", Model: model})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	history := []Exchange{{User: "find buses to Pune", Agent: "Which date?"}}
	collectEvents(t, a.Run(context.Background(), "s1", history, "2025-07-20"))

	if len(model.prompts) != 1 {
		t.Fatalf("expected 1 model call, got %d", len(model.prompts))
	}
	prompt := model.prompts[0]
	if !strings.Contains(prompt, "find buses to Pune") || !strings.Contains(prompt, "Which date?") {
		t.Fatalf("history missing from prompt:\n%s", prompt)
	}
}

func TestRunTurnLastTextWins(t *testing.T) {
	tool := &echoTool{}
	model := &scriptedModel{responses: []string{
		`{"use_tool": true, "tool_name": "echo_payload", "arguments": {"payload": "x"}}`,
		"final summary",
	}}
	a, err := New(Options{Name: "test_agent", Model: model, Tools: []Tool{tool}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	result := RunTurn(context.Background(), a, "s1", nil, "echo x")
	if result.Failed() {
		t.Fatalf("unexpected failure: %q", result.Err)
	}
	if result.Utterance != "final summary" {
		t.Fatalf("got utterance %q, want %q", result.Utterance, "final summary")
	}
	if len(result.Trace) != 4 {
		t.Fatalf("expected 4 trace lines, got %d: %v", len(result.Trace), result.Trace)
	}
}

func TestRunTurnModelError(t *testing.T) {
	model := &scriptedModel{err: errors.New("upstream unavailable")}
	a, err := New(Options{Name: "test_agent", Model: model})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	result := RunTurn(context.Background(), a, "s1", nil, "hello")
	if !result.Failed() {
		t.Fatal("expected failed turn")
	}
	if !strings.Contains(result.Err, "model call failed") {
		t.Fatalf("unexpected error: %q", result.Err)
	}
	if result.Utterance != "" {
		t.Fatalf("expected empty utterance, got %q", result.Utterance)
	}
}

func TestRunTurnPanicSurfacesAsError(t *testing.T) {
	a, err := New(Options{Name: "test_agent", Model: panicModel{}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	result := RunTurn(context.Background(), a, "s1", nil, "hello")
	if !result.Failed() {
		t.Fatal("expected failed turn")
	}
	if !strings.HasPrefix(result.Err, "execution failed:") {
		t.Fatalf("unexpected error: %q", result.Err)
	}
	if !strings.Contains(result.Err, "model blew up") {
		t.Fatalf("panic cause missing from error: %q", result.Err)
	}
}

func TestExtractJSON(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{`{"a": 1}`, `{"a": 1}`},
		{"Here you go:\n```json\n{\"use_tool\": false}\n```", `{"use_tool": false}`},
		{`prefix {"outer": {"inner": 2}} suffix`, `{"outer": {"inner": 2}}`},
		{"no json at all", ""},
		{"{unbalanced", ""},
	}
	for _, tc := range cases {
		if got := ExtractJSON(tc.in); got != tc.want {
			t.Errorf("ExtractJSON(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestParseDecisionFallsBackToReply(t *testing.T) {
	d := parseDecision("plain prose answer")
	if d.UseTool {
		t.Fatal("prose must not become a tool call")
	}
	if d.Reply != "plain prose answer" {
		t.Fatalf("unexpected reply: %q", d.Reply)
	}
}

func TestEventTraceLine(t *testing.T) {
	ev := Event{Type: EventToolCall, Tool: "find_available_buses", Args: map[string]any{"origin": "Mumbai"}}
	line := ev.TraceLine()
	if !strings.Contains(line, "tool_call") || !strings.Contains(line, "find_available_buses") {
		t.Fatalf("unexpected trace line: %q", line)
	}
	errLine := Event{Type: EventError, Err: fmt.Sprintf("tool %s failed", "x")}.TraceLine()
	if !strings.Contains(errLine, "[error]") {
		t.Fatalf("unexpected error trace line: %q", errLine)
	}
}
