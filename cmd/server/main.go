package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Rrens/aniverse-chat/internal/api"
	"github.com/Rrens/aniverse-chat/internal/config"
	"github.com/Rrens/aniverse-chat/internal/llm"
	"github.com/Rrens/aniverse-chat/internal/llm/anthropic"
	"github.com/Rrens/aniverse-chat/internal/llm/deepseek"
	"github.com/Rrens/aniverse-chat/internal/llm/gemini"
	"github.com/Rrens/aniverse-chat/internal/llm/ollama"
	"github.com/Rrens/aniverse-chat/internal/llm/openai"
	"github.com/Rrens/aniverse-chat/internal/llm/perplexity"
	"github.com/Rrens/aniverse-chat/internal/logger"
	"github.com/Rrens/aniverse-chat/internal/repository/redis"
	"github.com/Rrens/aniverse-chat/internal/service"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// turnLockGrace keeps a distributed turn lock alive a little past the provider timeout
const turnLockGrace = 15 * time.Second

func main() {
	// Load .env file - try multiple locations
	envPaths := []string{".env", "../.env", "../../.env"}
	envLoaded := ""
	for _, p := range envPaths {
		if err := godotenv.Load(p); err == nil {
			envLoaded = p
			break
		}
	}

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

	if envLoaded != "" {
		log.Debug().Str("path", envLoaded).Msg("Loaded .env file")
	}

	log.Info().
		Str("host", cfg.Server.Host).
		Int("port", cfg.Server.Port).
		Str("storage", cfg.Storage.Driver).
		Str("auth_mode", cfg.Auth.Mode).
		Msg("Starting AniVerse chat server")

	ctx := context.Background()

	// Initialize session store
	store, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.Storage.Driver).Msg("Failed to open session store")
	}
	defer store.Close()

	// Initialize Redis
	var (
		turnLocker  service.TurnLocker
		rateLimiter *redis.RateLimiter
	)
	if cfg.Redis.Enabled {
		redisClient, err := redis.NewClient(ctx, cfg.Redis)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to Redis")
		}
		defer redisClient.Close()

		turnLocker = redis.NewTurnLocker(redisClient, cfg.LLM.Timeout+turnLockGrace)
		if cfg.Security.RateLimit.Enabled {
			rateLimiter = redis.NewRateLimiter(
				redisClient,
				cfg.Security.RateLimit.RequestsPerMinute,
				cfg.Security.RateLimit.Burst,
			)
		}
	}

	// Initialize LLM Router with providers
	llmRouter := newLLMRouter(cfg.LLM)

	// Initialize services
	authService, err := service.NewAuthService(cfg.Auth)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize auth")
	}
	chatService := service.NewChatService(store, llmRouter, turnLocker, service.NewChatConfig(cfg.LLM))

	// Initialize router
	router := api.NewRouter(cfg, api.Dependencies{
		ChatService: chatService,
		AuthService: authService,
		RateLimiter: rateLimiter,
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in goroutine
	go func() {
		log.Info().Msgf("Server listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}

// newLLMRouter registers every provider; unconfigured ones stay listed so
// the health endpoint can report them
func newLLMRouter(cfg config.LLMConfig) *llm.Router {
	llmRouter := llm.NewRouter(cfg.DefaultProvider)

	llmRouter.RegisterProvider(perplexity.NewProvider(cfg.Perplexity))
	llmRouter.RegisterProvider(openai.NewProvider(cfg.OpenAI))
	llmRouter.RegisterProvider(anthropic.NewProvider(cfg.Anthropic))
	llmRouter.RegisterProvider(deepseek.NewProvider(cfg.DeepSeek))
	llmRouter.RegisterProvider(ollama.NewProvider(cfg.Ollama))
	llmRouter.RegisterProvider(gemini.NewProvider(cfg.Gemini))

	log.Info().
		Str("default", cfg.DefaultProvider).
		Strs("configured", llmRouter.ListProviders()).
		Msg("LLM providers initialized")

	if _, err := llmRouter.GetProvider(cfg.DefaultProvider); err != nil {
		log.Warn().Err(err).Msg("Default LLM provider is not configured, turns will get a fallback reply")
	}

	return llmRouter
}
