package session

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
)

// PostgresStore persists sessions and turns in two relational tables.
type PostgresStore struct {
	DB *pgxpool.Pool
}

// NewPostgresStore connects to Postgres and ensures the schema exists.
func NewPostgresStore(ctx context.Context, connStr string) (*PostgresStore, error) {
	db, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to Postgres")
	}
	store := &PostgresStore{DB: db}
	if err := store.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

func (ps *PostgresStore) migrate(ctx context.Context) error {
	const schema = `
		CREATE TABLE IF NOT EXISTS agent_sessions (
			id         TEXT PRIMARY KEY,
			app_name   TEXT NOT NULL,
			user_id    TEXT NOT NULL,
			start_time TIMESTAMPTZ NOT NULL DEFAULT now()
		);
		CREATE TABLE IF NOT EXISTS agent_turns (
			id            BIGSERIAL PRIMARY KEY,
			session_id    TEXT NOT NULL REFERENCES agent_sessions(id),
			user_input    TEXT NOT NULL,
			agent_output  TEXT,
			error_message TEXT,
			created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
		);
		CREATE INDEX IF NOT EXISTS idx_agent_turns_session ON agent_turns (session_id, id);
	`
	if _, err := ps.DB.Exec(ctx, schema); err != nil {
		return errors.Wrap(err, "migrate session schema")
	}
	return nil
}

func (ps *PostgresStore) Create(ctx context.Context, appName, userID string) (*Session, error) {
	sess := &Session{
		ID:        uuid.NewString(),
		AppName:   appName,
		UserID:    userID,
		StartTime: time.Now().UTC(),
	}
	_, err := ps.DB.Exec(ctx,
		`INSERT INTO agent_sessions (id, app_name, user_id, start_time) VALUES ($1, $2, $3, $4)`,
		sess.ID, sess.AppName, sess.UserID, sess.StartTime)
	if err != nil {
		return nil, errors.Wrap(err, "create session")
	}
	return sess, nil
}

func (ps *PostgresStore) Get(ctx context.Context, sessionID, userID, appName string) (*Session, error) {
	sess := &Session{}
	err := ps.DB.QueryRow(ctx,
		`SELECT id, app_name, user_id, start_time
		 FROM agent_sessions
		 WHERE id = $1 AND user_id = $2 AND app_name = $3`,
		sessionID, userID, appName,
	).Scan(&sess.ID, &sess.AppName, &sess.UserID, &sess.StartTime)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "load session")
	}

	rows, err := ps.DB.Query(ctx,
		`SELECT user_input, agent_output, error_message, created_at
		 FROM agent_turns
		 WHERE session_id = $1
		 ORDER BY id`,
		sessionID)
	if err != nil {
		return nil, errors.Wrap(err, "load turns")
	}
	defer rows.Close()

	for rows.Next() {
		var turn Turn
		var output, errMsg sql.NullString
		if err := rows.Scan(&turn.UserInput, &output, &errMsg, &turn.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "scan turn")
		}
		turn.AgentOutput = output.String
		turn.ErrorMessage = errMsg.String
		sess.Turns = append(sess.Turns, turn)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate turns")
	}
	return sess, nil
}

func (ps *PostgresStore) AppendTurn(ctx context.Context, sessionID string, turn Turn) error {
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now().UTC()
	}
	tag, err := ps.DB.Exec(ctx,
		`INSERT INTO agent_turns (session_id, user_input, agent_output, error_message, created_at)
		 SELECT $1, $2, $3, $4, $5
		 WHERE EXISTS (SELECT 1 FROM agent_sessions WHERE id = $1)`,
		sessionID, turn.UserInput, nullable(turn.AgentOutput), nullable(turn.ErrorMessage), turn.CreatedAt)
	if err != nil {
		return errors.Wrap(err, "append turn")
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Close releases the underlying pool.
func (ps *PostgresStore) Close() {
	if ps != nil && ps.DB != nil {
		ps.DB.Close()
	}
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

var _ Store = (*PostgresStore)(nil)
