package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Protocol-Lattice/booking-agents/src/models"
)

const defaultInstruction = "You are a helpful booking assistant. Use the available tools to serve the user's request and ask for any missing details before calling a tool."

// Agent pairs a natural-language instruction with a tool set and a language
// model. The instruction is the sole control mechanism: the model decides,
// per turn, whether enough information has been gathered to invoke a tool or
// whether to ask the user for the missing fields.
type Agent struct {
	name        string
	description string
	instruction string
	model       models.Agent
	catalog     ToolCatalog
	logger      *slog.Logger
}

// Options configure a new Agent.
type Options struct {
	Name        string
	Description string
	Instruction string
	Model       models.Agent
	Tools       []Tool
	Catalog     ToolCatalog
	Logger      *slog.Logger
}

// New creates an Agent with the provided options.
func New(opts Options) (*Agent, error) {
	if opts.Model == nil {
		return nil, errors.New("agent requires a language model")
	}
	if strings.TrimSpace(opts.Name) == "" {
		return nil, errors.New("agent requires a name")
	}

	instruction := opts.Instruction
	if strings.TrimSpace(instruction) == "" {
		instruction = defaultInstruction
	}

	catalog := opts.Catalog
	tolerant := false
	if catalog == nil {
		catalog = NewStaticToolCatalog(nil)
		tolerant = true
	}
	for _, tool := range opts.Tools {
		if tool == nil {
			continue
		}
		if err := catalog.Register(tool); err != nil {
			if tolerant {
				continue
			}
			return nil, err
		}
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Agent{
		name:        opts.Name,
		description: opts.Description,
		instruction: instruction,
		model:       opts.Model,
		catalog:     catalog,
		logger:      logger,
	}, nil
}

func (a *Agent) Name() string        { return a.name }
func (a *Agent) Description() string { return a.description }

// ToolSpecs returns the registered tool specifications in deterministic order.
func (a *Agent) ToolSpecs() []ToolSpec {
	if a.catalog == nil {
		return nil
	}
	return a.catalog.Specs()
}

// Tools returns the registered tools in deterministic order.
func (a *Agent) Tools() []Tool {
	if a.catalog == nil {
		return nil
	}
	return a.catalog.Tools()
}

// Run drives exactly one user message to completion and emits the typed
// event trace. The channel is closed when the turn ends; an EventError is
// always the last event on a failed turn. A panic anywhere in the turn is
// recovered and surfaced as an EventError.
func (a *Agent) Run(ctx context.Context, sessionID string, history []Exchange, userInput string) <-chan Event {
	ch := make(chan Event, 8)
	go func() {
		defer close(ch)
		defer func() {
			if r := recover(); r != nil {
				ch <- Event{Type: EventError, Err: fmt.Sprintf("execution failed: %v", r)}
			}
		}()
		a.runTurn(ctx, ch, sessionID, history, userInput)
	}()
	return ch
}

type toolDecision struct {
	UseTool   bool           `json:"use_tool"`
	ToolName  string         `json:"tool_name"`
	Arguments map[string]any `json:"arguments"`
	Reply     string         `json:"reply"`
}

func (a *Agent) runTurn(ctx context.Context, ch chan<- Event, sessionID string, history []Exchange, userInput string) {
	if strings.TrimSpace(userInput) == "" {
		ch <- Event{Type: EventError, Err: "user input is empty"}
		return
	}

	raw, err := a.model.Generate(ctx, a.buildDecisionPrompt(history, userInput))
	if err != nil {
		ch <- Event{Type: EventError, Err: fmt.Sprintf("model call failed: %v", err)}
		return
	}

	decision := parseDecision(fmt.Sprint(raw))
	if !decision.UseTool {
		reply := strings.TrimSpace(decision.Reply)
		if reply == "" {
			reply = strings.TrimSpace(fmt.Sprint(raw))
		}
		ch <- Event{Type: EventModelText, Text: reply}
		ch <- Event{Type: EventFinal, Text: reply}
		return
	}

	tool, spec, ok := a.catalog.Lookup(decision.ToolName)
	if !ok {
		ch <- Event{Type: EventError, Err: fmt.Sprintf("unknown tool: %s", decision.ToolName)}
		return
	}

	ch <- Event{Type: EventToolCall, Tool: spec.Name, Args: decision.Arguments}
	a.logger.Info("tool invocation", "agent", a.name, "tool", spec.Name)

	resp, err := tool.Invoke(ctx, ToolRequest{SessionID: sessionID, Arguments: decision.Arguments})
	if err != nil {
		ch <- Event{Type: EventError, Err: fmt.Sprintf("tool %s failed: %v", spec.Name, err)}
		return
	}
	ch <- Event{Type: EventToolResult, Tool: spec.Name, Result: resp.Content}

	raw, err = a.model.Generate(ctx, a.buildSummaryPrompt(userInput, spec.Name, resp.Content))
	if err != nil {
		ch <- Event{Type: EventError, Err: fmt.Sprintf("model call failed: %v", err)}
		return
	}
	text := strings.TrimSpace(fmt.Sprint(raw))
	if text == "" {
		text = resp.Content
	}
	ch <- Event{Type: EventModelText, Text: text}
	ch <- Event{Type: EventFinal, Text: text}
}

func (a *Agent) buildDecisionPrompt(history []Exchange, userInput string) string {
	var sb strings.Builder
	sb.Grow(4096)

	sb.WriteString(a.instruction)

	if tools := a.renderTools(); tools != "" {
		sb.WriteString("\n\n")
		sb.WriteString(tools)
	}

	sb.WriteString("\n\nConversation so far:\n")
	sb.WriteString(renderHistory(history))

	sb.WriteString("\nCurrent user message:\n")
	sb.WriteString(strings.TrimSpace(userInput))

	sb.WriteString("\n\nDecide whether a tool call is needed now.\n")
	sb.WriteString("Respond with ONLY valid JSON. NO markdown code blocks. NO explanations.\n")
	sb.WriteString(`When a tool is needed: {"use_tool": true, "tool_name": "<exact_tool_name>", "arguments": {...}}` + "\n")
	sb.WriteString(`When no tool is needed: {"use_tool": false, "reply": "<your reply to the user>"}` + "\n")
	return sb.String()
}

func (a *Agent) buildSummaryPrompt(userInput, toolName, toolResult string) string {
	var sb strings.Builder
	sb.WriteString(a.instruction)
	sb.WriteString("\n\nThe user asked:\n")
	sb.WriteString(strings.TrimSpace(userInput))
	sb.WriteString(fmt.Sprintf("\n\nThe %s tool returned:\n%s\n", toolName, toolResult))
	sb.WriteString("\nProvide a clear summary of the tool output for the user. If the payload reports an error, explain it plainly.\n")
	return sb.String()
}

// renderTools formats the available tool specs into a prompt-friendly block.
func (a *Agent) renderTools() string {
	specs := a.ToolSpecs()
	if len(specs) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("Available tools:\n")
	for _, spec := range specs {
		sb.WriteString(fmt.Sprintf("- %s: %s\n", spec.Name, spec.Description))
		if len(spec.InputSchema) > 0 {
			if schemaJSON, err := json.MarshalIndent(spec.InputSchema, "  ", "  "); err == nil {
				sb.WriteString("  Input schema: ")
				sb.Write(schemaJSON)
				sb.WriteString("\n")
			}
		}
	}
	return sb.String()
}

func renderHistory(history []Exchange) string {
	if len(history) == 0 {
		return "(no prior turns)\n"
	}
	var sb strings.Builder
	for _, ex := range history {
		if user := strings.TrimSpace(ex.User); user != "" {
			sb.WriteString("user: ")
			sb.WriteString(escapePromptContent(user))
			sb.WriteString("\n")
		}
		if reply := strings.TrimSpace(ex.Agent); reply != "" {
			sb.WriteString("agent: ")
			sb.WriteString(escapePromptContent(reply))
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

// escapePromptContent safely escapes content that might break formatting.
func escapePromptContent(s string) string {
	return strings.ReplaceAll(s, "`", "'")
}

func parseDecision(raw string) toolDecision {
	var decision toolDecision
	jsonStr := ExtractJSON(raw)
	if jsonStr == "" {
		return toolDecision{Reply: raw}
	}
	if err := json.Unmarshal([]byte(jsonStr), &decision); err != nil {
		return toolDecision{Reply: raw}
	}
	return decision
}

// ExtractJSON extracts the first balanced JSON object from a string.
// Model replies often wrap the object in prose or code fences; everything
// outside the braces is ignored.
func ExtractJSON(s string) string {
	start := -1
	end := -1
	depth := 0

	for i, ch := range s {
		if ch == '{' {
			if start == -1 {
				start = i
			}
			depth++
		} else if ch == '}' {
			depth--
			if depth == 0 && start != -1 {
				end = i + 1
				break
			}
		}
	}

	if start != -1 && end != -1 {
		return s[start:end]
	}
	return ""
}
