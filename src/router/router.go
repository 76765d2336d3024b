// Package router implements the client agent that fronts the specialist
// booking agents. Each turn runs a fixed pipeline: discover specialist
// cards, let the model pick a specialist, open or reuse a session with it,
// and forward the query over HTTP. The specialist's reply is relayed
// verbatim as the router's own answer.
package router

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	agent "github.com/Protocol-Lattice/booking-agents"
	"github.com/Protocol-Lattice/booking-agents/src/discovery"
	"github.com/Protocol-Lattice/booking-agents/src/models"
	"github.com/pkg/errors"
)

const (
	// AgentName is the well-known name of the routing agent.
	AgentName = "client_booking_agent"

	sessionStartTimeout = 10 * time.Second
	delegateTimeout     = 15 * time.Second

	// errSessionPrefix marks a cached session slot that holds a failure
	// description instead of a usable session id.
	errSessionPrefix = "Error:"
)

const greetingReply = "Hello! I can help you book bus or movie tickets. What would you like to do?"

var greetings = map[string]struct{}{
	"hello":        {},
	"hi":           {},
	"hey":          {},
	"good morning": {},
	"good evening": {},
}

// Options configure a Router.
type Options struct {
	Model          models.Agent
	Cards          *discovery.CardClient
	DiscoveryURLs  []string
	SessionAPIBase string // base URL whose /start_agent_interaction/ opens specialist sessions
	Logger         *slog.Logger
}

// Router delegates user queries to specialist agents discovered via agent
// cards. The specialist-session cache lives on the Router value and is
// guarded by a mutex, so two Router instances never share state.
type Router struct {
	model          models.Agent
	cards          *discovery.CardClient
	discoveryURLs  []string
	sessionAPIBase string
	startClient    *http.Client
	delegateClient *http.Client
	logger         *slog.Logger

	mu       sync.Mutex
	sessions map[string]string // specialist name -> session id, or an "Error: ..." string
}

// New creates a Router.
func New(opts Options) (*Router, error) {
	if opts.Model == nil {
		return nil, errors.New("router requires a language model")
	}
	if strings.TrimSpace(opts.SessionAPIBase) == "" {
		return nil, errors.New("router requires the specialist session API base URL")
	}
	cards := opts.Cards
	if cards == nil {
		cards = discovery.NewCardClient(opts.Logger)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		model:          opts.Model,
		cards:          cards,
		discoveryURLs:  opts.DiscoveryURLs,
		sessionAPIBase: strings.TrimRight(opts.SessionAPIBase, "/"),
		startClient:    &http.Client{Timeout: sessionStartTimeout},
		delegateClient: &http.Client{Timeout: delegateTimeout},
		logger:         logger,
		sessions:       make(map[string]string),
	}, nil
}

func (r *Router) Name() string { return AgentName }

func (r *Router) Description() string {
	return "Routes queries to specialist booking agents, managing sessions with each specialist."
}

// Capabilities lists the summary tags published on the router's card.
func (r *Router) Capabilities() []string {
	return []string{"routing booking queries", "delegating to specialist agents"}
}

// HandleTurn runs one user query through the delegation pipeline. The
// steps are strictly sequential; a failed step produces a user-visible
// failure string rather than aborting the turn, matching the behavior of
// the specialists whose replies it relays.
func (r *Router) HandleTurn(ctx context.Context, sessionID string, history []agent.Exchange, query string) agent.TurnResult {
	var result agent.TurnResult
	trace := func(e agent.Event) {
		result.Trace = append(result.Trace, e.TraceLine())
	}
	finish := func(text string) agent.TurnResult {
		result.Utterance = text
		trace(agent.Event{Type: agent.EventFinal, Text: text})
		return result
	}

	query = strings.TrimSpace(query)
	if query == "" {
		result.Err = "user input is empty"
		trace(agent.Event{Type: agent.EventError, Err: result.Err})
		return result
	}

	if isGreeting(query) {
		trace(agent.Event{Type: agent.EventModelText, Text: greetingReply})
		return finish(greetingReply)
	}

	cards := r.cards.FetchAll(ctx, r.discoveryURLs)
	if len(cards) == 0 {
		return finish("No specialist agents are reachable right now. Please try again later.")
	}

	choice, err := r.selectSpecialist(ctx, cards, history, query)
	if err != nil {
		result.Err = fmt.Sprintf("model call failed: %v", err)
		trace(agent.Event{Type: agent.EventError, Err: result.Err})
		return result
	}
	if !choice.Delegate {
		reply := strings.TrimSpace(choice.Reply)
		if reply == "" {
			reply = "I can only help with bus and movie ticket bookings."
		}
		trace(agent.Event{Type: agent.EventModelText, Text: reply})
		return finish(reply)
	}

	card, ok := findCard(cards, choice.AgentName)
	if !ok {
		return finish(fmt.Sprintf("I don't know a specialist called %q.", choice.AgentName))
	}

	specialistSession := r.startSession(ctx, card.AgentName)
	if strings.HasPrefix(specialistSession, errSessionPrefix) {
		return finish(fmt.Sprintf("Cannot delegate: previous step failed: (%s)", specialistSession))
	}

	trace(agent.Event{Type: agent.EventToolCall, Tool: "delegate", Args: map[string]any{
		"agent": card.AgentName, "url": card.Endpoints.ExecuteTask.URL,
	}})
	reply := r.delegate(ctx, card, specialistSession, query)
	trace(agent.Event{Type: agent.EventToolResult, Tool: "delegate", Result: reply})
	trace(agent.Event{Type: agent.EventModelText, Text: reply})
	return finish(reply)
}

func isGreeting(query string) bool {
	normalized := strings.ToLower(strings.TrimRight(strings.TrimSpace(query), "!. "))
	_, ok := greetings[normalized]
	return ok
}

type routeChoice struct {
	Delegate  bool   `json:"delegate"`
	AgentName string `json:"agent_name"`
	Reply     string `json:"reply"`
}

func (r *Router) selectSpecialist(ctx context.Context, cards []discovery.Card, history []agent.Exchange, query string) (routeChoice, error) {
	raw, err := r.model.Generate(ctx, buildSelectionPrompt(cards, history, query))
	if err != nil {
		return routeChoice{}, err
	}
	text := fmt.Sprint(raw)
	jsonStr := agent.ExtractJSON(text)
	if jsonStr == "" {
		return routeChoice{Reply: text}, nil
	}
	var choice routeChoice
	if err := json.Unmarshal([]byte(jsonStr), &choice); err != nil {
		return routeChoice{Reply: text}, nil
	}
	return choice, nil
}

func buildSelectionPrompt(cards []discovery.Card, history []agent.Exchange, query string) string {
	var sb strings.Builder
	sb.WriteString("You are a master routing agent for a ticket booking service. ")
	sb.WriteString("Pick the specialist agent best suited to the user's request, or answer directly when none fits.\n\n")
	sb.WriteString("Available specialists:\n")
	for _, card := range cards {
		sb.WriteString(fmt.Sprintf("- %s: %s (capabilities: %s)\n",
			card.AgentName, card.Description, strings.Join(card.CapabilitiesSummary, ", ")))
	}
	sb.WriteString("\nConversation so far:\n")
	if len(history) == 0 {
		sb.WriteString("(no prior turns)\n")
	}
	for _, ex := range history {
		if user := strings.TrimSpace(ex.User); user != "" {
			sb.WriteString("user: " + user + "\n")
		}
		if reply := strings.TrimSpace(ex.Agent); reply != "" {
			sb.WriteString("agent: " + reply + "\n")
		}
	}
	sb.WriteString("\nCurrent user message:\n")
	sb.WriteString(query)
	sb.WriteString("\n\nRespond with ONLY valid JSON. NO markdown code blocks. NO explanations.\n")
	sb.WriteString(`To delegate: {"delegate": true, "agent_name": "<exact_agent_name>"}` + "\n")
	sb.WriteString(`To answer directly: {"delegate": false, "reply": "<your reply to the user>"}` + "\n")
	return sb.String()
}

func findCard(cards []discovery.Card, name string) (discovery.Card, bool) {
	for _, card := range cards {
		if card.AgentName == name {
			return card, true
		}
	}
	return discovery.Card{}, false
}

// startSession returns a usable session id for the named specialist, or a
// failure description prefixed with "Error:". Failure strings are cached
// like session ids but are retried on the next lookup.
func (r *Router) startSession(ctx context.Context, specialistName string) string {
	r.mu.Lock()
	cached, ok := r.sessions[specialistName]
	r.mu.Unlock()
	if ok && !strings.HasPrefix(cached, errSessionPrefix) {
		return cached
	}

	record := func(value string) string {
		r.mu.Lock()
		r.sessions[specialistName] = value
		r.mu.Unlock()
		return value
	}

	startURL := r.sessionAPIBase + "/start_agent_interaction/"
	body, err := json.Marshal(map[string]string{"agent_name": specialistName})
	if err != nil {
		return record(fmt.Sprintf("Error: Failed to start session with %s: %v", specialistName, err))
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, startURL, bytes.NewReader(body))
	if err != nil {
		return record(fmt.Sprintf("Error: Failed to start session with %s: %v", specialistName, err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.startClient.Do(req)
	if err != nil {
		return record(fmt.Sprintf("Error: Failed to start session with %s: %v", specialistName, err))
	}
	defer resp.Body.Close()

	payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if resp.StatusCode != http.StatusOK {
		return record(fmt.Sprintf("Error: Failed to start session with %s: status %d: %s",
			specialistName, resp.StatusCode, strings.TrimSpace(string(payload))))
	}

	var started struct {
		SessionID string `json:"session_id"`
	}
	if err := json.Unmarshal(payload, &started); err != nil || started.SessionID == "" {
		return record(fmt.Sprintf("Error: Could not get session_id from %s. Response: %s",
			specialistName, strings.TrimSpace(string(payload))))
	}

	r.logger.Info("specialist session started", "specialist", specialistName, "session_id", started.SessionID)
	return record(started.SessionID)
}

// delegate forwards the query to the specialist's execute endpoint and
// returns the user-visible reply string. All failures are rendered into
// the reply rather than returned as errors.
func (r *Router) delegate(ctx context.Context, card discovery.Card, specialistSession, query string) string {
	name := card.AgentName
	executeURL := card.Endpoints.ExecuteTask.URL

	body, err := json.Marshal(map[string]string{"query": query})
	if err != nil {
		return fmt.Sprintf("Failed to delegate to %s (with session). Error: %v", name, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, executeURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Sprintf("Failed to delegate to %s (with session). Error: %v", name, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Session-Id", specialistSession)

	resp, err := r.delegateClient.Do(req)
	if err != nil {
		return fmt.Sprintf("Failed to delegate to %s (with session). Error: %v", name, err)
	}
	defer resp.Body.Close()

	payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode != http.StatusOK {
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			// A 4xx naming the session means the specialist no longer
			// knows it; drop the cached id so the next turn renews it.
			r.dropSessionIfStale(name, specialistSession, string(payload))
		}
		details := strings.TrimSpace(string(payload))
		if details == "" {
			details = "No additional error details in response."
		}
		return fmt.Sprintf("Failed to delegate to %s (with session). HTTP Error: %d. Details: %s",
			name, resp.StatusCode, details)
	}

	var reply struct {
		FinalAgentUtterance *string `json:"final_agent_utterance"`
		ErrorMessage        *string `json:"error_message"`
	}
	if err := json.Unmarshal(payload, &reply); err != nil {
		return fmt.Sprintf("Failed to delegate to %s (with session). Error: %v", name, err)
	}
	switch {
	case reply.FinalAgentUtterance != nil && *reply.FinalAgentUtterance != "":
		return *reply.FinalAgentUtterance
	case reply.ErrorMessage != nil && *reply.ErrorMessage != "":
		msg := *reply.ErrorMessage
		r.dropSessionIfStale(name, specialistSession, msg)
		return fmt.Sprintf("Error from %s: %s", name, msg)
	default:
		return fmt.Sprintf("Unexpected response structure from %s: %s", name, strings.TrimSpace(string(payload)))
	}
}

func (r *Router) dropSessionIfStale(specialistName, specialistSession, details string) {
	if !strings.Contains(details, specialistSession) && !strings.Contains(strings.ToLower(details), "session") {
		return
	}
	r.mu.Lock()
	if r.sessions[specialistName] == specialistSession {
		delete(r.sessions, specialistName)
	}
	r.mu.Unlock()
	r.logger.Warn("dropped stale specialist session", "specialist", specialistName, "session_id", specialistSession)
}
