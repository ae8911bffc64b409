package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/Rrens/aniverse-chat/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Store implements domain.SessionStore on PostgreSQL.
// Sessions and messages live in chat_sessions / chat_messages, see migrations/.
type Store struct {
	db  *DB
	now func() time.Time
}

// NewStore creates a new postgres-backed session store
func NewStore(db *DB) *Store {
	return &Store{db: db, now: time.Now}
}

// timestamp returns the current time at the precision postgres keeps
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

	query := `
		INSERT INTO chat_sessions (id, title, owner, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := s.db.Pool.Exec(ctx, query,
		session.ID,
		session.Title,
		session.Owner,
		session.CreatedAt,
		session.UpdatedAt,
	)
	if err != nil {
		return nil, storageError("create session", err)
	}
	return session, nil
}

func (s *Store) GetSession(ctx context.Context, id uuid.UUID) (*domain.ChatSession, error) {
	query := `
		SELECT id, title, owner, created_at, updated_at
		FROM chat_sessions
		WHERE id = $1
	`
	session, err := scanSession(s.db.Pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, storageError("get session", err)
	}
	return session, nil
}

func (s *Store) ListSessions(ctx context.Context, owner string) ([]domain.ChatSession, error) {
	query := `
		SELECT id, title, owner, created_at, updated_at
		FROM chat_sessions
		WHERE owner = $1
		ORDER BY updated_at DESC, created_at DESC, id DESC
	`
	rows, err := s.db.Pool.Query(ctx, query, owner)
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
	query := `
		UPDATE chat_sessions
		SET title = $2
		WHERE id = $1
		RETURNING id, title, owner, created_at, updated_at
	`
	session, err := scanSession(s.db.Pool.QueryRow(ctx, query, id, domain.NormalizeTitle(title)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, storageError("rename session", err)
	}
	return session, nil
}

// DeleteSession locks the session row and removes it with its messages in one transaction
func (s *Store) DeleteSession(ctx context.Context, id uuid.UUID) error {
	tx, err := s.db.Pool.Begin(ctx)
	if err != nil {
		return storageError("begin delete", err)
	}
	defer tx.Rollback(ctx)

	var locked uuid.UUID
	err = tx.QueryRow(ctx, `SELECT id FROM chat_sessions WHERE id = $1 FOR UPDATE`, id).Scan(&locked)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrSessionNotFound
	}
	if err != nil {
		return storageError("lock session", err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM chat_messages WHERE session_id = $1`, id); err != nil {
		return storageError("delete messages", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM chat_sessions WHERE id = $1`, id); err != nil {
		return storageError("delete session", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return storageError("commit delete", err)
	}
	return nil
}

// Ping verifies database connectivity
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the underlying pool
func (s *Store) Close() error {
	s.db.Close()
	return nil
}

func scanSession(row pgx.Row) (*domain.ChatSession, error) {
	var session domain.ChatSession
	if err := row.Scan(
		&session.ID,
		&session.Title,
		&session.Owner,
		&session.CreatedAt,
		&session.UpdatedAt,
	); err != nil {
		return nil, err
	}
	session.CreatedAt = session.CreatedAt.UTC()
	session.UpdatedAt = session.UpdatedAt.UTC()
	return &session, nil
}
