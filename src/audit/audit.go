// Package audit writes session-start and per-turn interaction documents to
// MongoDB. Logging is best-effort: a nil or unconfigured logger is a no-op
// and audit failures never fail the request that triggered them.
package audit

import (
	"context"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	defaultDatabase       = "booking_agent_logs"
	sessionCollection     = "agent_sessions"
	interactionCollection = "agent_interactions"
	defaultConnectTimeout = 5 * time.Second
	defaultWriteTimeout   = 3 * time.Second
)

// SessionStart records the outcome of a start-session request.
type SessionStart struct {
	SessionID     string    `bson:"session_id"`
	UserID        string    `bson:"user_id"`
	AgentName     string    `bson:"agent_name"`
	QueryEndpoint string    `bson:"query_endpoint_returned"`
	StartTime     time.Time `bson:"start_time"`
}

// Interaction records one completed turn, including the full event trace
// and the turn duration.
type Interaction struct {
	SessionID           string    `bson:"session_id"`
	UserID              string    `bson:"user_id"`
	AgentName           string    `bson:"agent_name"`
	Query               string    `bson:"query"`
	FullLog             []string  `bson:"full_log"`
	FinalAgentUtterance string    `bson:"final_agent_utterance,omitempty"`
	Error               string    `bson:"error,omitempty"`
	Timestamp           time.Time `bson:"timestamp"`
	TurnDurationMs      int64     `bson:"turn_duration_ms"`
}

// Logger writes audit documents to MongoDB.
type Logger struct {
	client *mongo.Client
	db     *mongo.Database
	logger *slog.Logger
}

// Connect dials MongoDB and returns a ready Logger. An empty URI returns a
// nil Logger, which is valid and disables auditing.
func Connect(ctx context.Context, uri string, logger *slog.Logger) (*Logger, error) {
	if uri == "" {
		return nil, nil
	}
	if logger == nil {
		logger = slog.Default()
	}

	dialCtx, cancel := context.WithTimeout(ctx, defaultConnectTimeout)
	defer cancel()

	client, err := mongo.Connect(dialCtx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	return &Logger{
		client: client,
		db:     client.Database(defaultDatabase),
		logger: logger,
	}, nil
}

// Close disconnects from MongoDB.
func (l *Logger) Close(ctx context.Context) error {
	if l == nil || l.client == nil {
		return nil
	}
	return l.client.Disconnect(ctx)
}

// LogSessionStart records a newly created session.
func (l *Logger) LogSessionStart(ctx context.Context, doc SessionStart) {
	if l == nil || l.db == nil {
		return
	}
	if doc.StartTime.IsZero() {
		doc.StartTime = time.Now().UTC()
	}

	writeCtx, cancel := context.WithTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	if _, err := l.db.Collection(sessionCollection).InsertOne(writeCtx, doc); err != nil {
		l.logger.Warn("audit: session start not logged", "session_id", doc.SessionID, "error", err)
	}
}

// LogInteraction records one completed turn.
func (l *Logger) LogInteraction(ctx context.Context, doc Interaction) {
	if l == nil || l.db == nil {
		return
	}
	if doc.Timestamp.IsZero() {
		doc.Timestamp = time.Now().UTC()
	}

	writeCtx, cancel := context.WithTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	if _, err := l.db.Collection(interactionCollection).InsertOne(writeCtx, doc); err != nil {
		l.logger.Warn("audit: interaction not logged", "session_id", doc.SessionID, "error", err)
	}
}
