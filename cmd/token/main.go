// Command token prints a bearer access token for an owner, for servers
// running with auth.mode=jwt.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/Rrens/aniverse-chat/internal/config"
	"github.com/Rrens/aniverse-chat/internal/service"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

func main() {
	owner := flag.String("owner", "", "principal the token is issued for")
	flag.Parse()

	_ = godotenv.Load()

	if *owner == "" {
		fmt.Fprintln(os.Stderr, "usage: token -owner <name>")
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	authService, err := service.NewAuthService(cfg.Auth)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize auth")
	}

	token, err := authService.IssueAccessToken(*owner)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to issue token")
	}

	fmt.Println(token)
}
