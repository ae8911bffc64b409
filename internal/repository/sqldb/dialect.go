package sqldb

import (
	"database/sql"
	"fmt"
	"strings"
)

// Dialect describes the SQL differences between the supported engines
type Dialect struct {
	Name       string
	DriverName string
	// ForUpdate is appended to row-locking selects. SQLite serializes writers
	// on its single connection and needs none.
	ForUpdate string
	// SnapshotTx are the options for read transactions that must see one
	// consistent snapshot. nil means the driver default.
	SnapshotTx *sql.TxOptions
	Schema     []string
}

var SQLite = Dialect{
	Name:       "sqlite",
	DriverName: "sqlite",
	ForUpdate:  "",
	Schema: []string{
		`CREATE TABLE IF NOT EXISTS chat_sessions (
			id         TEXT PRIMARY KEY,
			title      TEXT NOT NULL,
			owner      TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_chat_sessions_owner_activity
			ON chat_sessions (owner, updated_at DESC, created_at DESC)`,
		`CREATE TABLE IF NOT EXISTS chat_messages (
			seq        INTEGER PRIMARY KEY AUTOINCREMENT,
			id         TEXT NOT NULL UNIQUE,
			session_id TEXT NOT NULL REFERENCES chat_sessions(id) ON DELETE CASCADE,
			role       TEXT NOT NULL CHECK (role IN ('user', 'assistant')),
			content    TEXT NOT NULL,
			created_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_chat_messages_session
			ON chat_messages (session_id, created_at, seq)`,
	},
}

var MySQL = Dialect{
	Name:       "mysql",
	DriverName: "mysql",
	ForUpdate:  " FOR UPDATE",
	SnapshotTx: &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true},
	Schema: []string{
		`CREATE TABLE IF NOT EXISTS chat_sessions (
			id         CHAR(36) NOT NULL PRIMARY KEY,
			title      VARCHAR(255) NOT NULL,
			owner      VARCHAR(255) NOT NULL,
			created_at BIGINT NOT NULL,
			updated_at BIGINT NOT NULL,
			INDEX idx_chat_sessions_owner_activity (owner, updated_at DESC, created_at DESC)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
		`CREATE TABLE IF NOT EXISTS chat_messages (
			seq        BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY,
			id         CHAR(36) NOT NULL UNIQUE,
			session_id CHAR(36) NOT NULL,
			role       VARCHAR(16) NOT NULL,
			content    MEDIUMTEXT NOT NULL,
			created_at BIGINT NOT NULL,
			INDEX idx_chat_messages_session (session_id, created_at, seq),
			CONSTRAINT fk_chat_messages_session FOREIGN KEY (session_id)
				REFERENCES chat_sessions(id) ON DELETE CASCADE
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	},
}

// DialectFor returns the dialect registered under name
func DialectFor(name string) (Dialect, error) {
	switch strings.ToLower(name) {
	case SQLite.Name:
		return SQLite, nil
	case MySQL.Name:
		return MySQL, nil
	default:
		return Dialect{}, fmt.Errorf("unsupported sql dialect: %s", name)
	}
}

// SQLiteDSN builds a DSN for a database file with foreign keys enforced
func SQLiteDSN(path string) string {
	return fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
}
