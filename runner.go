package agent

import "context"

// TurnResult is the condensed outcome of one driven turn.
//
// Utterance is the last model-authored text seen on the stream; it may be
// empty when the turn failed before the model produced anything. Err is
// non-empty exactly when the turn ended on an error event. Trace preserves
// the full event log for audit purposes.
type TurnResult struct {
	Utterance string
	Err       string
	Trace     []string
}

// Failed reports whether the turn terminated on an error.
func (r TurnResult) Failed() bool { return r.Err != "" }

// RunTurn drives the agent's event stream for exactly one user message to
// completion and extracts the final utterance. The last EventModelText (or
// EventFinal) wins; the first EventError stops consumption and the rest of
// the stream is discarded. No retry is attempted.
func RunTurn(ctx context.Context, a *Agent, sessionID string, history []Exchange, query string) TurnResult {
	var result TurnResult

	for event := range a.Run(ctx, sessionID, history, query) {
		result.Trace = append(result.Trace, event.TraceLine())
		switch event.Type {
		case EventModelText, EventFinal:
			if event.Text != "" {
				result.Utterance = event.Text
			}
		case EventError:
			result.Err = event.Err
			return result
		}
	}
	return result
}
