// Package session stores conversation sessions and their turns. The backing
// store is swappable (in-memory map or Postgres table) with no change in
// contract.
package session

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when no session matches the requested
// (session_id, user_id, app_name) triple.
var ErrNotFound = errors.New("session not found")

// Turn is one user-query/agent-response exchange. Immutable once appended.
type Turn struct {
	UserInput    string
	AgentOutput  string // empty when the turn errored before an utterance
	ErrorMessage string
	CreatedAt    time.Time
}

// Session is an ordered conversation owned by one (user, app) pair.
type Session struct {
	ID        string
	AppName   string
	UserID    string
	StartTime time.Time
	Turns     []Turn
}

// Store is the session service contract.
//
// Get matches exactly on all three keys: a session created under one
// (user_id, app_name) pair is not retrievable under another. Appends are
// serialized by the store; ordering across concurrent writers to the same
// session is unspecified.
type Store interface {
	Create(ctx context.Context, appName, userID string) (*Session, error)
	Get(ctx context.Context, sessionID, userID, appName string) (*Session, error)
	AppendTurn(ctx context.Context, sessionID string, turn Turn) error
}
