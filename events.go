package agent

import "fmt"

// EventType tags the events emitted while a turn is being driven to
// completion. The set is closed so consumers can switch exhaustively
// instead of duck-typing runtime objects.
type EventType int

const (
	// EventModelText carries model-authored text. The last one seen
	// before the stream ends is the turn's utterance.
	EventModelText EventType = iota
	// EventToolCall records the runtime deciding to invoke a tool.
	EventToolCall
	// EventToolResult carries the raw payload a tool returned.
	EventToolResult
	// EventError is terminal: no further events follow it.
	EventError
	// EventFinal closes a successful turn and repeats the final utterance.
	EventFinal
)

func (t EventType) String() string {
	switch t {
	case EventModelText:
		return "model_text"
	case EventToolCall:
		return "tool_call"
	case EventToolResult:
		return "tool_result"
	case EventError:
		return "error"
	case EventFinal:
		return "final"
	default:
		return fmt.Sprintf("event(%d)", int(t))
	}
}

// Event is one element of a turn's trace.
type Event struct {
	Type   EventType
	Text   string         // model-authored text (EventModelText, EventFinal)
	Tool   string         // tool name (EventToolCall, EventToolResult)
	Args   map[string]any // tool arguments (EventToolCall)
	Result string         // tool payload (EventToolResult)
	Err    string         // failure description (EventError)
}

// TraceLine renders the event as a single diagnostic line for audit logs.
func (e Event) TraceLine() string {
	switch e.Type {
	case EventToolCall:
		return fmt.Sprintf("[%s] %s %v", e.Type, e.Tool, e.Args)
	case EventToolResult:
		return fmt.Sprintf("[%s] %s => %s", e.Type, e.Tool, e.Result)
	case EventError:
		return fmt.Sprintf("[%s] %s", e.Type, e.Err)
	default:
		return fmt.Sprintf("[%s] %s", e.Type, e.Text)
	}
}
