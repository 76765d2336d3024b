// Package service exposes hosted agents over HTTP: session creation, query
// turns, and agent-card discovery. Specialists and the router share the
// same surface, so any hosted agent can be delegated to by another.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	pkgerrors "github.com/pkg/errors"

	agent "github.com/Protocol-Lattice/booking-agents"
	"github.com/Protocol-Lattice/booking-agents/src/audit"
	"github.com/Protocol-Lattice/booking-agents/src/discovery"
	"github.com/Protocol-Lattice/booking-agents/src/session"
)

// DefaultUserID is the single API-level user identity; the service has no
// authentication layer and attributes every session to it.
const DefaultUserID = "user_1"

const cardVersion = "1.0.0"

// TurnHandler is an agent the service can host. HandleTurn must drive
// exactly one user query to completion and report failures inside the
// TurnResult rather than panicking.
type TurnHandler interface {
	Name() string
	Description() string
	Capabilities() []string
	HandleTurn(ctx context.Context, sessionID string, history []agent.Exchange, query string) agent.TurnResult
}

// Specialist adapts a tool-calling agent to the hosting contract.
type Specialist struct {
	agent        *agent.Agent
	capabilities []string
}

// NewSpecialist wraps a tool-calling agent with the capability tags to
// publish on its card.
func NewSpecialist(a *agent.Agent, capabilities []string) *Specialist {
	return &Specialist{agent: a, capabilities: capabilities}
}

func (s *Specialist) Name() string           { return s.agent.Name() }
func (s *Specialist) Description() string    { return s.agent.Description() }
func (s *Specialist) Capabilities() []string { return s.capabilities }

func (s *Specialist) HandleTurn(ctx context.Context, sessionID string, history []agent.Exchange, query string) agent.TurnResult {
	return agent.RunTurn(ctx, s.agent, sessionID, history, query)
}

// Options configure a Server.
type Options struct {
	Store         session.Store
	Audit         *audit.Logger // nil disables audit logging
	PublicBaseURL string        // externally reachable base URL, no trailing slash
	Logger        *slog.Logger
}

// Server hosts named agents behind the HTTP surface.
type Server struct {
	echo    *echo.Echo
	store   session.Store
	audit   *audit.Logger
	baseURL string
	logger  *slog.Logger
	agents  map[string]TurnHandler
}

// New builds a Server and registers its routes. Agents are attached with
// Host before Start.
func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())

	s := &Server{
		echo:    e,
		store:   opts.Store,
		audit:   opts.Audit,
		baseURL: strings.TrimRight(opts.PublicBaseURL, "/"),
		logger:  logger,
		agents:  make(map[string]TurnHandler),
	}

	e.Use(s.requestLogger)
	e.POST("/start_agent_interaction/", s.startInteraction)
	e.POST("/:agent_name/query", s.queryTurn)
	e.GET("/:agent_name/.well-known/agent-card", s.agentCard)
	return s
}

// Host registers an agent under its own name. Later registrations with the
// same name replace earlier ones.
func (s *Server) Host(h TurnHandler) {
	s.agents[h.Name()] = h
}

// Start serves HTTP on addr until Shutdown or a listener error.
func (s *Server) Start(addr string) error {
	return s.echo.Start(addr)
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// Handler exposes the routed handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

func (s *Server) requestLogger(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)
		s.logger.Info("http request",
			"method", c.Request().Method,
			"path", c.Request().URL.Path,
			"status", c.Response().Status,
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return err
	}
}

type startRequest struct {
	AgentName string `json:"agent_name"`
}

type startResponse struct {
	AgentName     string `json:"agent_name"`
	SessionID     string `json:"session_id"`
	UserID        string `json:"user_id"`
	QueryEndpoint string `json:"query_endpoint"`
}

type queryRequest struct {
	Query string `json:"query"`
}

type queryResponse struct {
	FinalAgentUtterance *string `json:"final_agent_utterance"`
	SessionID           string  `json:"session_id"`
	UserID              string  `json:"user_id"`
	ErrorMessage        *string `json:"error_message"`
}

func (s *Server) startInteraction(c echo.Context) error {
	var req startRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Could not start session: invalid request body")
	}
	if s.store == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "Session service not available.")
	}
	if _, ok := s.agents[req.AgentName]; !ok {
		return echo.NewHTTPError(http.StatusBadRequest,
			fmt.Sprintf("Could not start session: agent '%s' is not hosted here", req.AgentName))
	}

	ctx := c.Request().Context()
	sess, err := s.store.Create(ctx, req.AgentName, DefaultUserID)
	if err != nil {
		s.logger.Error("session create failed", "agent", req.AgentName, "error", err)
		return echo.NewHTTPError(http.StatusBadRequest,
			fmt.Sprintf("Could not start session: %v", pkgerrors.Cause(err)))
	}

	resp := startResponse{
		AgentName:     req.AgentName,
		SessionID:     sess.ID,
		UserID:        sess.UserID,
		QueryEndpoint: s.baseURL + "/" + req.AgentName + "/query",
	}
	s.audit.LogSessionStart(ctx, audit.SessionStart{
		SessionID:     sess.ID,
		UserID:        sess.UserID,
		AgentName:     req.AgentName,
		QueryEndpoint: resp.QueryEndpoint,
		StartTime:     sess.StartTime,
	})
	s.logger.Info("session started", "agent", req.AgentName, "session_id", sess.ID)
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) queryTurn(c echo.Context) error {
	agentName := c.Param("agent_name")
	sessionID := c.Request().Header.Get("X-Session-Id")
	if sessionID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "X-Session-Id header is required")
	}

	var req queryRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if s.store == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "Session service not available.")
	}

	ctx := c.Request().Context()

	handler, ok := s.agents[agentName]
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, fmt.Sprintf("Agent '%s' not found.", agentName))
	}

	sess, err := s.store.Get(ctx, sessionID, DefaultUserID, agentName)
	if err != nil {
		if pkgerrors.Is(err, session.ErrNotFound) {
			return s.turnError(c, sessionID, fmt.Sprintf(
				"Session ID '%s' not found for user '%s' and agent '%s'.",
				sessionID, DefaultUserID, agentName))
		}
		s.logger.Error("session lookup failed", "session_id", sessionID, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError,
			fmt.Sprintf("Error processing query: %v", pkgerrors.Cause(err)))
	}

	history := make([]agent.Exchange, 0, len(sess.Turns))
	for _, turn := range sess.Turns {
		history = append(history, agent.Exchange{User: turn.UserInput, Agent: turn.AgentOutput})
	}

	started := time.Now()
	result := handler.HandleTurn(ctx, sessionID, history, req.Query)
	elapsed := time.Since(started)

	if err := s.store.AppendTurn(ctx, sessionID, session.Turn{
		UserInput:    req.Query,
		AgentOutput:  result.Utterance,
		ErrorMessage: result.Err,
	}); err != nil {
		s.logger.Error("turn not persisted", "session_id", sessionID, "error", err)
	}

	s.audit.LogInteraction(ctx, audit.Interaction{
		SessionID:           sessionID,
		UserID:              DefaultUserID,
		AgentName:           agentName,
		Query:               req.Query,
		FullLog:             result.Trace,
		FinalAgentUtterance: result.Utterance,
		Error:               result.Err,
		TurnDurationMs:      elapsed.Milliseconds(),
	})

	return c.JSON(http.StatusOK, queryResponse{
		FinalAgentUtterance: optional(result.Utterance),
		SessionID:           sessionID,
		UserID:              DefaultUserID,
		ErrorMessage:        optional(result.Err),
	})
}

// turnError reports a turn-level failure in the response body. The status
// stays 200: the HTTP exchange succeeded, the agent turn did not.
func (s *Server) turnError(c echo.Context, sessionID, message string) error {
	return c.JSON(http.StatusOK, queryResponse{
		SessionID:    sessionID,
		UserID:       DefaultUserID,
		ErrorMessage: optional(message),
	})
}

func (s *Server) agentCard(c echo.Context) error {
	agentName := c.Param("agent_name")
	handler, ok := s.agents[agentName]
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, fmt.Sprintf("No agent card for '%s'", agentName))
	}
	card := discovery.NewCard(handler.Name(), cardVersion, handler.Description(), handler.Capabilities(), s.baseURL)
	return c.JSON(http.StatusOK, card)
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
