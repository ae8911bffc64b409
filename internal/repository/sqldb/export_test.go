package sqldb

import "context"

// Truncate empties both tables between integration test runs
func Truncate(ctx context.Context, s *Store) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM chat_messages`); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `DELETE FROM chat_sessions`)
	return err
}
