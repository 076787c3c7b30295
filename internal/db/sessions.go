package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jobfinder/assistant/internal/apperr"
	"github.com/jobfinder/assistant/internal/domain"
)

// CreateSession inserts a fresh active session with a generated token.
// userID is nil for anonymous sessions.
func (db *DB) CreateSession(ctx context.Context, userID *int64, metadata map[string]string) (*domain.ChatSession, error) {
	meta, err := marshalExtra(metadata)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal session metadata: %w", err)
	}

	session := &domain.ChatSession{
		ID:       uuid.New(),
		Token:    uuid.NewString(),
		UserID:   userID,
		Status:   domain.SessionActive,
		Metadata: metadata,
	}
	err = db.pool.QueryRow(ctx,
		`INSERT INTO chat_sessions (id, session_token, user_id, status, metadata)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING created_at, last_activity_at`,
		session.ID, session.Token, userID, session.Status, meta,
	).Scan(&session.CreatedAt, &session.LastActivityAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return session, nil
}

// GetSessionByToken resolves the opaque client token.
func (db *DB) GetSessionByToken(ctx context.Context, token string) (*domain.ChatSession, error) {
	var (
		session domain.ChatSession
		metaRaw []byte
	)
	err := db.pool.QueryRow(ctx,
		`SELECT id, session_token, user_id, status, metadata, created_at, last_activity_at
		 FROM chat_sessions WHERE session_token = $1`,
		token,
	).Scan(
		&session.ID, &session.Token, &session.UserID, &session.Status,
		&metaRaw, &session.CreatedAt, &session.LastActivityAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("session token %q", token)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	if len(metaRaw) > 0 {
		if err := json.Unmarshal(metaRaw, &session.Metadata); err != nil {
			return nil, fmt.Errorf("failed to decode session metadata: %w", err)
		}
	}
	return &session, nil
}

// TouchSession advances last_activity_at.
func (db *DB) TouchSession(ctx context.Context, sessionID uuid.UUID) error {
	_, err := db.pool.Exec(ctx,
		`UPDATE chat_sessions SET last_activity_at = NOW() WHERE id = $1`,
		sessionID,
	)
	if err != nil {
		return fmt.Errorf("failed to touch session: %w", err)
	}
	return nil
}

// CloseSession marks the session closed. Closed sessions reject new turns.
func (db *DB) CloseSession(ctx context.Context, sessionID uuid.UUID) error {
	tag, err := db.pool.Exec(ctx,
		`UPDATE chat_sessions SET status = $2 WHERE id = $1`,
		sessionID, domain.SessionClosed,
	)
	if err != nil {
		return fmt.Errorf("failed to close session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("session %s", sessionID)
	}
	return nil
}

// AppendMessage appends one message to the session log. The insert is a
// single atomic row; history is never rewritten.
func (db *DB) AppendMessage(ctx context.Context, msg *domain.ChatMessage) error {
	err := db.pool.QueryRow(ctx,
		`INSERT INTO chat_messages (session_id, role, content, related_job_id)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, created_at`,
		msg.SessionID, msg.Role, msg.Content, msg.RelatedJobID,
	).Scan(&msg.ID, &msg.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to append message: %w", err)
	}
	return nil
}

// ListMessages returns the full persisted log in append order.
func (db *DB) ListMessages(ctx context.Context, sessionID uuid.UUID) ([]domain.ChatMessage, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id, session_id, role, content, related_job_id, created_at
		 FROM chat_messages
		 WHERE session_id = $1
		 ORDER BY created_at, id`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()

	var messages []domain.ChatMessage
	for rows.Next() {
		var msg domain.ChatMessage
		if err := rows.Scan(
			&msg.ID, &msg.SessionID, &msg.Role, &msg.Content,
			&msg.RelatedJobID, &msg.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}
