package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore keeps sessions in a process-lifetime map. Suitable for demos
// and tests; all state is lost on restart.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*Session)}
}

func (s *MemoryStore) Create(_ context.Context, appName, userID string) (*Session, error) {
	sess := &Session{
		ID:        uuid.NewString(),
		AppName:   appName,
		UserID:    userID,
		StartTime: time.Now().UTC(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.ID] = sess
	return snapshot(sess), nil
}

func (s *MemoryStore) Get(_ context.Context, sessionID, userID, appName string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[sessionID]
	if !ok || sess.UserID != userID || sess.AppName != appName {
		return nil, ErrNotFound
	}
	return snapshot(sess), nil
}

func (s *MemoryStore) AppendTurn(_ context.Context, sessionID string, turn Turn) error {
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return ErrNotFound
	}
	sess.Turns = append(sess.Turns, turn)
	return nil
}

// snapshot copies the session so callers never observe later appends.
func snapshot(sess *Session) *Session {
	out := *sess
	out.Turns = make([]Turn, len(sess.Turns))
	copy(out.Turns, sess.Turns)
	return &out
}

var _ Store = (*MemoryStore)(nil)
