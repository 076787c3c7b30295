package chat

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/jobfinder/assistant/internal/apperr"
	"github.com/jobfinder/assistant/internal/domain"
)

// ErrSessionClosed marks an append against a closed session.
var ErrSessionClosed = errors.New("session closed")

// SessionManager owns the session lifecycle: active sessions accept turns,
// idle is advisory, closed sessions reject turns and are replaced by a
// fresh session on the next chat request.
type SessionManager struct {
	store       domain.SessionStore
	idleTimeout time.Duration
}

// NewSessionManager creates a SessionManager.
func NewSessionManager(store domain.SessionStore, idleTimeout time.Duration) *SessionManager {
	if idleTimeout <= 0 {
		idleTimeout = 30 * time.Minute
	}
	return &SessionManager{store: store, idleTimeout: idleTimeout}
}

// StartOrResume resolves the client token to a session. Absent, unknown, or
// closed tokens yield a fresh session; resumption advances
// last_activity_at.
func (m *SessionManager) StartOrResume(ctx context.Context, token string, userID *int64) (*domain.ChatSession, error) {
	if token == "" {
		return m.store.CreateSession(ctx, userID, nil)
	}

	session, err := m.store.GetSessionByToken(ctx, token)
	if errors.Is(err, apperr.ErrNotFound) {
		return m.store.CreateSession(ctx, userID, nil)
	}
	if err != nil {
		return nil, err
	}
	if session.Status == domain.SessionClosed {
		return m.store.CreateSession(ctx, userID, nil)
	}

	if session.Idle(m.idleTimeout, time.Now()) {
		// Advisory only; resumption is always allowed.
		log.Printf("[chat] Session %s resumed after idle period", session.ID)
	}
	if err := m.store.TouchSession(ctx, session.ID); err != nil {
		return nil, err
	}
	session.LastActivityAt = time.Now()
	return session, nil
}

// AppendTurn appends one message to the session's immutable log.
func (m *SessionManager) AppendTurn(ctx context.Context, session *domain.ChatSession, role, content string, relatedJobID *int64) (*domain.ChatMessage, error) {
	if session.Status == domain.SessionClosed {
		return nil, ErrSessionClosed
	}
	msg := &domain.ChatMessage{
		SessionID:    session.ID,
		Role:         role,
		Content:      content,
		RelatedJobID: relatedJobID,
	}
	if err := m.store.AppendMessage(ctx, msg); err != nil {
		return nil, err
	}
	if err := m.store.TouchSession(ctx, session.ID); err != nil {
		return nil, err
	}
	return msg, nil
}

// Close ends the session identified by token.
func (m *SessionManager) Close(ctx context.Context, token string) error {
	session, err := m.store.GetSessionByToken(ctx, token)
	if err != nil {
		return err
	}
	return m.store.CloseSession(ctx, session.ID)
}

// History returns the full persisted log.
func (m *SessionManager) History(ctx context.Context, session *domain.ChatSession) ([]domain.ChatMessage, error) {
	return m.store.ListMessages(ctx, session.ID)
}
