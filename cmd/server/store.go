package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Rrens/aniverse-chat/internal/config"
	"github.com/Rrens/aniverse-chat/internal/domain"
	"github.com/Rrens/aniverse-chat/internal/repository/memory"
	"github.com/Rrens/aniverse-chat/internal/repository/mongo"
	"github.com/Rrens/aniverse-chat/internal/repository/postgres"
	"github.com/Rrens/aniverse-chat/internal/repository/sqldb"
	"github.com/rs/zerolog/log"
)

// openStore builds the session store selected by storage.driver
func openStore(ctx context.Context, cfg *config.Config) (domain.SessionStore, error) {
	switch cfg.Storage.Driver {
	case config.DriverMemory:
		log.Warn().Msg("Using in-memory session store, conversations are lost on restart")
		return memory.NewStore(), nil

	case config.DriverPostgres:
		if cfg.Database.AutoMigrate {
			if err := postgres.RunMigrations(cfg.Database.DSN(), cfg.Database.MigrationsURL()); err != nil {
				return nil, err
			}
		}
		db, err := postgres.NewDB(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		return postgres.NewStore(db), nil

	case config.DriverSQLite:
		if err := os.MkdirAll(filepath.Dir(cfg.SQLite.Path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create sqlite directory: %w", err)
		}
		store, err := sqldb.Open(ctx, sqldb.SQLite, sqldb.SQLiteDSN(cfg.SQLite.Path))
		if err != nil {
			return nil, err
		}
		return store, nil

	case config.DriverMySQL:
		store, err := sqldb.Open(ctx, sqldb.MySQL, cfg.MySQL.DSN())
		if err != nil {
			return nil, err
		}
		return store, nil

	case config.DriverMongo:
		store, err := mongo.Open(ctx, cfg.Mongo.URI, cfg.Mongo.Database, cfg.Mongo.ConnectTimeout)
		if err != nil {
			return nil, err
		}
		return store, nil
	}

	return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
}
