// Package mongo implements domain.SessionStore on MongoDB.
//
// Sessions and messages live in separate collections so a conversation is
// not bounded by the 16 MB document limit. No multi-document transactions
// are used: an append first advances the session document (atomic per
// document, serialized per session) and then inserts the message; a delete
// first marks the session deleted, which readers and appends re-check
// before trusting what they read or wrote.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Rrens/aniverse-chat/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	sessionCollection = "chat_sessions"
	messageCollection = "chat_messages"
)

type sessionDoc struct {
	ID        string    `bson:"_id"`
	Title     string    `bson:"title"`
	Owner     string    `bson:"owner"`
	CreatedAt time.Time `bson:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt"`
	Seq       int64     `bson:"seq"`
	Deleted   bool      `bson:"deleted,omitempty"`
}

type messageDoc struct {
	ID        string    `bson:"_id"`
	SessionID string    `bson:"sessionId"`
	Seq       int64     `bson:"seq"`
	Role      string    `bson:"role"`
	Content   string    `bson:"content"`
	Timestamp time.Time `bson:"timestamp"`
}

// Store implements domain.SessionStore
type Store struct {
	client   *mongo.Client
	sessions *mongo.Collection
	messages *mongo.Collection
	now      func() time.Time
}

// Open connects to MongoDB, verifies the connection and ensures indexes
func Open(ctx context.Context, uri, database string, timeout time.Duration) (*Store, error) {
	clientOpts := options.Client().ApplyURI(uri)
	if timeout > 0 {
		clientOpts.SetConnectTimeout(timeout)
	}

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping: %w", err)
	}

	db := client.Database(database)
	s := &Store{
		client:   client,
		sessions: db.Collection(sessionCollection),
		messages: db.Collection(messageCollection),
		now:      time.Now,
	}

	if err := s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}

	log.Debug().Str("database", database).Msg("mongo session store ready")

	return s, nil
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	_, err := s.sessions.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{
			{Key: "owner", Value: 1},
			{Key: "updatedAt", Value: -1},
			{Key: "createdAt", Value: -1},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create session index: %w", err)
	}

	_, err = s.messages.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "sessionId", Value: 1}, {Key: "seq", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("failed to create message index: %w", err)
	}
	return nil
}

// timestamp matches the millisecond precision of BSON dates
func (s *Store) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Millisecond)
}

// live matches a session that has not been marked deleted
func live(id string) bson.M {
	return bson.M{"_id": id, "deleted": bson.M{"$ne": true}}
}

func (s *Store) CreateSession(ctx context.Context, title, owner string) (*domain.ChatSession, error) {
	now := s.timestamp()
	doc := sessionDoc{
		ID:        uuid.New().String(),
		Title:     domain.NormalizeTitle(title),
		Owner:     owner,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if _, err := s.sessions.InsertOne(ctx, doc); err != nil {
		return nil, storageError("create session", err)
	}
	return doc.toSession()
}

func (s *Store) GetSession(ctx context.Context, id uuid.UUID) (*domain.ChatSession, error) {
	var doc sessionDoc
	err := s.sessions.FindOne(ctx, live(id.String())).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, storageError("get session", err)
	}
	return doc.toSession()
}

func (s *Store) ListSessions(ctx context.Context, owner string) ([]domain.ChatSession, error) {
	opts := options.Find().
		SetSort(bson.D{
			{Key: "updatedAt", Value: -1},
			{Key: "createdAt", Value: -1},
			{Key: "_id", Value: -1},
		})

	cursor, err := s.sessions.Find(ctx, bson.M{"owner": owner, "deleted": bson.M{"$ne": true}}, opts)
	if err != nil {
		return nil, storageError("list sessions", err)
	}
	defer cursor.Close(ctx)

	sessions := []domain.ChatSession{}
	for cursor.Next(ctx) {
		var doc sessionDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, storageError("decode session", err)
		}
		session, err := doc.toSession()
		if err != nil {
			return nil, storageError("decode session", err)
		}
		sessions = append(sessions, *session)
	}
	if err := cursor.Err(); err != nil {
		return nil, storageError("list sessions", err)
	}
	return sessions, nil
}

func (s *Store) RenameSession(ctx context.Context, id uuid.UUID, title string) (*domain.ChatSession, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var doc sessionDoc
	err := s.sessions.FindOneAndUpdate(ctx,
		live(id.String()),
		bson.M{"$set": bson.M{"title": domain.NormalizeTitle(title)}},
		opts,
	).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, storageError("rename session", err)
	}
	return doc.toSession()
}

// AppendMessage advances updatedAt to max(updatedAt, now) and takes the
// next sequence number in one update of the session document, then inserts
// the message with that timestamp. An append that lost a race with a delete
// removes its own message and reports the session as not found.
func (s *Store) AppendMessage(ctx context.Context, sessionID uuid.UUID, role domain.MessageRole, content string) (*domain.Message, error) {
	if err := domain.ValidateMessage(role, content); err != nil {
		return nil, err
	}

	id := sessionID.String()
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var session sessionDoc
	err := s.sessions.FindOneAndUpdate(ctx,
		live(id),
		bson.M{
			"$max": bson.M{"updatedAt": s.timestamp()},
			"$inc": bson.M{"seq": 1},
		},
		opts,
	).Decode(&session)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, storageError("append message", err)
	}

	msg := messageDoc{
		ID:        uuid.New().String(),
		SessionID: id,
		Seq:       session.Seq,
		Role:      string(role),
		Content:   content,
		Timestamp: session.UpdatedAt,
	}
	if _, err := s.messages.InsertOne(ctx, msg); err != nil {
		return nil, storageError("append message", err)
	}

	alive, err := s.isLive(ctx, id)
	if err != nil {
		return nil, storageError("append message", err)
	}
	if !alive {
		if _, err := s.messages.DeleteOne(context.WithoutCancel(ctx), bson.M{"_id": msg.ID}); err != nil {
			log.Warn().Err(err).Str("session_id", id).Msg("Failed to remove message of deleted session")
		}
		return nil, domain.ErrSessionNotFound
	}

	return msg.toMessage(sessionID)
}

// ListMessages reads the messages between two checks of the session. A
// delete that started before the second check makes the result not found,
// so a partially deleted conversation is never returned.
func (s *Store) ListMessages(ctx context.Context, sessionID uuid.UUID) ([]domain.Message, error) {
	id := sessionID.String()

	alive, err := s.isLive(ctx, id)
	if err != nil {
		return nil, storageError("list messages", err)
	}
	if !alive {
		return nil, domain.ErrSessionNotFound
	}

	cursor, err := s.messages.Find(ctx,
		bson.M{"sessionId": id},
		options.Find().SetSort(bson.D{{Key: "seq", Value: 1}}),
	)
	if err != nil {
		return nil, storageError("list messages", err)
	}
	defer cursor.Close(ctx)

	messages := []domain.Message{}
	for cursor.Next(ctx) {
		var doc messageDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, storageError("decode message", err)
		}
		msg, err := doc.toMessage(sessionID)
		if err != nil {
			return nil, storageError("decode message", err)
		}
		messages = append(messages, *msg)
	}
	if err := cursor.Err(); err != nil {
		return nil, storageError("list messages", err)
	}

	alive, err = s.isLive(ctx, id)
	if err != nil {
		return nil, storageError("list messages", err)
	}
	if !alive {
		return nil, domain.ErrSessionNotFound
	}
	return messages, nil
}

// DeleteSession marks the session deleted, which hides it and its messages
// at once, then removes the messages and the session document. A session
// left marked by an interrupted delete is cleaned up by the next call.
func (s *Store) DeleteSession(ctx context.Context, id uuid.UUID) error {
	var before sessionDoc
	err := s.sessions.FindOneAndUpdate(ctx,
		bson.M{"_id": id.String()},
		bson.M{"$set": bson.M{"deleted": true}},
		options.FindOneAndUpdate().SetReturnDocument(options.Before),
	).Decode(&before)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.ErrSessionNotFound
	}
	if err != nil {
		return storageError("delete session", err)
	}

	// the session is already gone for every reader; finish even if the caller left
	cleanupCtx := context.WithoutCancel(ctx)
	if _, err := s.messages.DeleteMany(cleanupCtx, bson.M{"sessionId": id.String()}); err != nil {
		return storageError("delete messages", err)
	}
	if _, err := s.sessions.DeleteOne(cleanupCtx, bson.M{"_id": id.String()}); err != nil {
		return storageError("delete session", err)
	}

	if before.Deleted {
		return domain.ErrSessionNotFound
	}
	return nil
}

func (s *Store) isLive(ctx context.Context, id string) (bool, error) {
	n, err := s.sessions.CountDocuments(ctx, live(id), options.Count().SetLimit(1))
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

func (s *Store) Close() error {
	return s.client.Disconnect(context.Background())
}

func (d sessionDoc) toSession() (*domain.ChatSession, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return nil, fmt.Errorf("invalid session id %q: %w", d.ID, err)
	}
	return &domain.ChatSession{
		ID:        id,
		Title:     d.Title,
		Owner:     d.Owner,
		CreatedAt: d.CreatedAt.UTC(),
		UpdatedAt: d.UpdatedAt.UTC(),
	}, nil
}

func (d messageDoc) toMessage(sessionID uuid.UUID) (*domain.Message, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return nil, fmt.Errorf("invalid message id %q: %w", d.ID, err)
	}
	return &domain.Message{
		ID:        id,
		SessionID: sessionID,
		Role:      domain.MessageRole(d.Role),
		Content:   d.Content,
		Timestamp: d.Timestamp.UTC(),
	}, nil
}

func storageError(op string, err error) error {
	return fmt.Errorf("failed to %s: %w: %w", op, domain.ErrStorageUnavailable, err)
}
