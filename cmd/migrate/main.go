package main

import (
	"flag"

	"github.com/Rrens/aniverse-chat/internal/config"
	"github.com/Rrens/aniverse-chat/internal/logger"
	"github.com/Rrens/aniverse-chat/internal/repository/postgres"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

func main() {
	path := flag.String("path", "", "migrations directory (defaults to database.migrations_path)")
	flag.Parse()

	// Load .env file if it exists
	_ = godotenv.Load()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	closer, err := logger.Setup(cfg.Logging)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to set up logging")
	}
	defer closer.Close()

	if *path != "" {
		cfg.Database.MigrationsPath = *path
	}

	log.Info().
		Str("host", cfg.Database.Host).
		Int("port", cfg.Database.Port).
		Str("source", cfg.Database.MigrationsURL()).
		Msg("Applying migrations")

	if err := postgres.RunMigrations(cfg.Database.DSN(), cfg.Database.MigrationsURL()); err != nil {
		log.Fatal().Err(err).Msg("Migration failed")
	}
}
