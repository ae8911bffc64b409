package mongo

import (
	"context"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
)

// DropDatabase removes the per-test database
func DropDatabase(ctx context.Context, s *Store) error {
	return s.sessions.Database().Drop(ctx)
}

// MarkDeleted leaves a session as an interrupted delete would
func MarkDeleted(ctx context.Context, s *Store, id uuid.UUID) error {
	_, err := s.sessions.UpdateOne(ctx, bson.M{"_id": id.String()}, bson.M{"$set": bson.M{"deleted": true}})
	return err
}

// CountMessages counts stored message documents of a session
func CountMessages(ctx context.Context, s *Store, id uuid.UUID) (int64, error) {
	return s.messages.CountDocuments(ctx, bson.M{"sessionId": id.String()})
}
