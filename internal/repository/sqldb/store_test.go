package sqldb_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/Rrens/aniverse-chat/internal/domain"
	"github.com/Rrens/aniverse-chat/internal/repository/sqldb"
	"github.com/Rrens/aniverse-chat/internal/repository/storetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSQLiteStore(t *testing.T) *sqldb.Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "chat.db")
	store, err := sqldb.Open(context.Background(), sqldb.SQLite, sqldb.SQLiteDSN(path))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLiteStoreConformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) domain.SessionStore {
		return newSQLiteStore(t)
	})
}

func TestSQLiteStore_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "chat.db")

	store, err := sqldb.Open(ctx, sqldb.SQLite, sqldb.SQLiteDSN(path))
	require.NoError(t, err)

	session, err := store.CreateSession(ctx, "persisted", "local")
	require.NoError(t, err)
	_, err = store.AppendMessage(ctx, session.ID, domain.RoleUser, "still here?")
	require.NoError(t, err)
	require.NoError(t, store.Close())

	reopened, err := sqldb.Open(ctx, sqldb.SQLite, sqldb.SQLiteDSN(path))
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.GetSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, "persisted", got.Title)

	messages, err := reopened.ListMessages(ctx, session.ID)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, "still here?", messages[0].Content)
	assert.Equal(t, domain.RoleUser, messages[0].Role)
}

func TestDialectFor(t *testing.T) {
	d, err := sqldb.DialectFor("SQLite")
	require.NoError(t, err)
	assert.Equal(t, "sqlite", d.Name)

	d, err = sqldb.DialectFor("mysql")
	require.NoError(t, err)
	assert.Equal(t, " FOR UPDATE", d.ForUpdate)

	_, err = sqldb.DialectFor("oracle")
	assert.Error(t, err)
}

// TestMySQLStoreConformance needs TEST_MYSQL_DSN, e.g. user:pass@tcp(localhost:3306)/aniverse_test
func TestMySQLStoreConformance(t *testing.T) {
	dsn := os.Getenv("TEST_MYSQL_DSN")
	if dsn == "" {
		t.Skip("Requires database connection - set TEST_MYSQL_DSN to run as integration test")
	}

	storetest.Run(t, func(t *testing.T) domain.SessionStore {
		ctx := context.Background()
		store, err := sqldb.Open(ctx, sqldb.MySQL, dsn)
		require.NoError(t, err)
		t.Cleanup(func() { _ = store.Close() })

		require.NoError(t, sqldb.Truncate(ctx, store))
		return store
	})
}
