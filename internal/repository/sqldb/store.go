// Package sqldb implements domain.SessionStore on database/sql for SQLite and MySQL.
// Timestamps are stored as Unix microseconds so both engines order them the same way.
package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Rrens/aniverse-chat/internal/domain"
	_ "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"
)

// Store implements domain.SessionStore
type Store struct {
	db      *sql.DB
	dialect Dialect
	now     func() time.Time
}

// Open connects to the database, verifies it and creates the schema if missing
func Open(ctx context.Context, dialect Dialect, dsn string) (*Store, error) {
	db, err := sql.Open(dialect.DriverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if dialect.Name == SQLite.Name {
		db.SetMaxOpenConns(1) // SQLite only supports one writer
		db.SetMaxIdleConns(1)
	} else {
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	for _, stmt := range dialect.Schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to create schema: %w", err)
		}
	}

	log.Debug().Str("dialect", dialect.Name).Msg("sql session store ready")

	return &Store{db: db, dialect: dialect, now: time.Now}, nil
}

func (s *Store) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

func (s *Store) CreateSession(ctx context.Context, title, owner string) (*domain.ChatSession, error) {
	now := s.timestamp()
	session := &domain.ChatSession{
		ID:        uuid.New(),
		Title:     domain.NormalizeTitle(title),
		Owner:     owner,
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO chat_sessions (id, title, owner, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		session.ID.String(), session.Title, session.Owner, now.UnixMicro(), now.UnixMicro(),
	)
	if err != nil {
		return nil, storageError("create session", err)
	}
	return session, nil
}

func (s *Store) GetSession(ctx context.Context, id uuid.UUID) (*domain.ChatSession, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, title, owner, created_at, updated_at FROM chat_sessions WHERE id = ?`,
		id.String(),
	)
	session, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, storageError("get session", err)
	}
	return session, nil
}

func (s *Store) ListSessions(ctx context.Context, owner string) ([]domain.ChatSession, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, owner, created_at, updated_at FROM chat_sessions
		WHERE owner = ?
		ORDER BY updated_at DESC, created_at DESC, id DESC`,
		owner,
	)
	if err != nil {
		return nil, storageError("list sessions", err)
	}
	defer rows.Close()

	sessions := []domain.ChatSession{}
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, storageError("scan session", err)
		}
		sessions = append(sessions, *session)
	}
	if err := rows.Err(); err != nil {
		return nil, storageError("list sessions", err)
	}
	return sessions, nil
}

func (s *Store) RenameSession(ctx context.Context, id uuid.UUID, title string) (*domain.ChatSession, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, storageError("begin rename", err)
	}
	defer tx.Rollback()

	session, err := scanSession(tx.QueryRowContext(ctx,
		`SELECT id, title, owner, created_at, updated_at FROM chat_sessions WHERE id = ?`+s.dialect.ForUpdate,
		id.String(),
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, storageError("lock session", err)
	}

	session.Title = domain.NormalizeTitle(title)
	if _, err := tx.ExecContext(ctx, `UPDATE chat_sessions SET title = ? WHERE id = ?`, session.Title, id.String()); err != nil {
		return nil, storageError("rename session", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, storageError("commit rename", err)
	}
	return session, nil
}

func (s *Store) AppendMessage(ctx context.Context, sessionID uuid.UUID, role domain.MessageRole, content string) (*domain.Message, error) {
	if err := domain.ValidateMessage(role, content); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, storageError("begin append", err)
	}
	defer tx.Rollback()

	var updatedAt int64
	err = tx.QueryRowContext(ctx,
		`SELECT updated_at FROM chat_sessions WHERE id = ?`+s.dialect.ForUpdate,
		sessionID.String(),
	).Scan(&updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
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
		Timestamp: domain.NextMessageTime(s.timestamp(), fromMicros(updatedAt)),
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO chat_messages (id, session_id, role, content, created_at) VALUES (?, ?, ?, ?, ?)`,
		msg.ID.String(), sessionID.String(), string(msg.Role), msg.Content, msg.Timestamp.UnixMicro(),
	)
	if err != nil {
		return nil, storageError("create message", err)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE chat_sessions SET updated_at = ? WHERE id = ?`,
		msg.Timestamp.UnixMicro(), sessionID.String(),
	)
	if err != nil {
		return nil, storageError("touch session", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, storageError("commit append", err)
	}
	return msg, nil
}

func (s *Store) ListMessages(ctx context.Context, sessionID uuid.UUID) ([]domain.Message, error) {
	tx, err := s.db.BeginTx(ctx, s.dialect.SnapshotTx)
	if err != nil {
		return nil, storageError("begin list", err)
	}
	defer tx.Rollback()

	var count int
	err = tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM chat_sessions WHERE id = ?`, sessionID.String()).Scan(&count)
	if err != nil {
		return nil, storageError("check session", err)
	}
	if count == 0 {
		return nil, domain.ErrSessionNotFound
	}

	rows, err := tx.QueryContext(ctx,
		`SELECT id, session_id, role, content, created_at FROM chat_messages
		WHERE session_id = ?
		ORDER BY created_at ASC, seq ASC`,
		sessionID.String(),
	)
	if err != nil {
		return nil, storageError("list messages", err)
	}
	defer rows.Close()

	messages := []domain.Message{}
	for rows.Next() {
		var (
			m         domain.Message
			role      string
			createdAt int64
		)
		if err := rows.Scan(&m.ID, &m.SessionID, &role, &m.Content, &createdAt); err != nil {
			return nil, storageError("scan message", err)
		}
		m.Role = domain.MessageRole(role)
		m.Timestamp = fromMicros(createdAt)
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, storageError("list messages", err)
	}
	return messages, nil
}

// DeleteSession removes the session and its messages in one transaction
func (s *Store) DeleteSession(ctx context.Context, id uuid.UUID) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storageError("begin delete", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM chat_messages WHERE session_id = ?`, id.String()); err != nil {
		return storageError("delete messages", err)
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM chat_sessions WHERE id = ?`, id.String())
	if err != nil {
		return storageError("delete session", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return storageError("delete session", err)
	}
	if affected == 0 {
		return domain.ErrSessionNotFound
	}

	if err := tx.Commit(); err != nil {
		return storageError("commit delete", err)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*domain.ChatSession, error) {
	var (
		session              domain.ChatSession
		createdAt, updatedAt int64
	)
	if err := row.Scan(&session.ID, &session.Title, &session.Owner, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	session.CreatedAt = fromMicros(createdAt)
	session.UpdatedAt = fromMicros(updatedAt)
	return &session, nil
}

func fromMicros(v int64) time.Time {
	return time.UnixMicro(v).UTC()
}

func storageError(op string, err error) error {
	return fmt.Errorf("failed to %s: %w: %w", op, domain.ErrStorageUnavailable, err)
}
