package api

import (
	"net/http"

	"github.com/Rrens/aniverse-chat/internal/api/handler"
	customMiddleware "github.com/Rrens/aniverse-chat/internal/api/middleware"
	"github.com/Rrens/aniverse-chat/internal/config"
	"github.com/Rrens/aniverse-chat/internal/repository/redis"
	"github.com/Rrens/aniverse-chat/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// Dependencies are the long-lived components the router serves
type Dependencies struct {
	ChatService *service.ChatService
	AuthService *service.AuthService

	// RateLimiter is optional; nil disables API rate limiting
	RateLimiter *redis.RateLimiter
}

// NewRouter creates and configures the HTTP router
func NewRouter(cfg *config.Config, deps Dependencies) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(customMiddleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(cfg.Server.MiddlewareTimeout))

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Server.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-Request-ID", "X-RateLimit-Remaining"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	sessionHandler := handler.NewSessionHandler(deps.ChatService)
	healthHandler := handler.NewHealthHandler(deps.ChatService, cfg.Storage.Driver)

	authMiddleware := customMiddleware.NewAuthMiddleware(deps.AuthService, cfg.Auth)

	r.Route("/api/v1", func(r chi.Router) {
		// Health check
		r.Get("/health", healthHandler.Health)
		r.Get("/ready", healthHandler.Ready)
		r.Get("/llm-providers", healthHandler.LLMProviders)

		// Identified routes
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.Authenticate)
			if deps.RateLimiter != nil {
				r.Use(customMiddleware.NewRateLimitMiddleware(deps.RateLimiter).Limit)
			}

			r.Get("/me", handler.Me)

			r.Route("/sessions", func(r chi.Router) {
				r.Get("/", sessionHandler.List)
				r.Post("/", sessionHandler.Create)

				r.Route("/{sessionID}", func(r chi.Router) {
					r.Get("/", sessionHandler.Get)
					r.Patch("/", sessionHandler.Rename)
					r.Delete("/", sessionHandler.Delete)

					r.Get("/messages", sessionHandler.ListMessages)
					r.Post("/messages", sessionHandler.SubmitTurn)
				})
			})
		})
	})

	return r
}
