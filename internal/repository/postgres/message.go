package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/Rrens/aniverse-chat/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// AppendMessage inserts a message and advances the session's updated_at.
// The session row is locked FOR UPDATE, so appends and deletes on one
// session run one at a time while other sessions are unaffected.
func (s *Store) AppendMessage(ctx context.Context, sessionID uuid.UUID, role domain.MessageRole, content string) (*domain.Message, error) {
	if err := domain.ValidateMessage(role, content); err != nil {
		return nil, err
	}

	tx, err := s.db.Pool.Begin(ctx)
	if err != nil {
		return nil, storageError("begin append", err)
	}
	defer tx.Rollback(ctx)

	var updatedAt time.Time
	err = tx.QueryRow(ctx, `SELECT updated_at FROM chat_sessions WHERE id = $1 FOR UPDATE`, sessionID).Scan(&updatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, storageError("lock session", err)
	}

	msg := &domain.Message{
		ID:        uuid.New(),
		SessionID: sessionID,
		Role:      role,
		Content:   content,
		Timestamp: domain.NextMessageTime(s.timestamp(), updatedAt.UTC()),
	}

	query := `
		INSERT INTO chat_messages (id, session_id, role, content, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	if _, err := tx.Exec(ctx, query, msg.ID, msg.SessionID, string(msg.Role), msg.Content, msg.Timestamp); err != nil {
		return nil, storageError("create message", err)
	}

	if _, err := tx.Exec(ctx, `UPDATE chat_sessions SET updated_at = $2 WHERE id = $1`, sessionID, msg.Timestamp); err != nil {
		return nil, storageError("touch session", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, storageError("commit append", err)
	}
	return msg, nil
}

// ListMessages returns the session's messages oldest first. The existence
// check and the read share one repeatable-read snapshot, so a concurrent
// delete is seen either not at all or completely.
func (s *Store) ListMessages(ctx context.Context, sessionID uuid.UUID) ([]domain.Message, error) {
	tx, err := s.db.Pool.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.RepeatableRead,
		AccessMode: pgx.ReadOnly,
	})
	if err != nil {
		return nil, storageError("begin list", err)
	}
	defer tx.Rollback(ctx)

	var exists bool
	if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM chat_sessions WHERE id = $1)`, sessionID).Scan(&exists); err != nil {
		return nil, storageError("check session", err)
	}
	if !exists {
		return nil, domain.ErrSessionNotFound
	}

	query := `
		SELECT id, session_id, role, content, created_at
		FROM chat_messages
		WHERE session_id = $1
		ORDER BY created_at ASC, seq ASC
	`
	rows, err := tx.Query(ctx, query, sessionID)
	if err != nil {
		return nil, storageError("list messages", err)
	}
	defer rows.Close()

	messages := []domain.Message{}
	for rows.Next() {
		var m domain.Message
		var roleStr string
		if err := rows.Scan(&m.ID, &m.SessionID, &roleStr, &m.Content, &m.Timestamp); err != nil {
			return nil, storageError("scan message", err)
		}
		m.Role = domain.MessageRole(roleStr)
		m.Timestamp = m.Timestamp.UTC()
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, storageError("list messages", err)
	}

	return messages, nil
}
