package middleware

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/Rrens/aniverse-chat/internal/api/response"
	"github.com/Rrens/aniverse-chat/internal/config"
	"github.com/Rrens/aniverse-chat/internal/domain"
	"github.com/Rrens/aniverse-chat/internal/repository/redis"
	"github.com/Rrens/aniverse-chat/internal/service"
	"github.com/rs/zerolog/log"
)

type contextKey string

const identityKey contextKey = "identity"

// AuthMiddleware resolves every request to an owner
type AuthMiddleware struct {
	authService *service.AuthService
	cookie      config.AuthConfig
}

// NewAuthMiddleware creates a new auth middleware
func NewAuthMiddleware(authService *service.AuthService, cfg config.AuthConfig) *AuthMiddleware {
	return &AuthMiddleware{authService: authService, cookie: cfg}
}

// Authenticate puts the request's identity into the context. In anonymous
// mode it also sets the identity cookie when a new principal was minted.
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var creds service.Credentials

		if authHeader := r.Header.Get("Authorization"); authHeader != "" && m.authService.Mode() == config.AuthModeJWT {
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
				response.Unauthorized(w, "invalid authorization header format")
				return
			}
			creds.BearerToken = strings.TrimSpace(parts[1])
		}

		if cookie, err := r.Cookie(m.cookie.CookieName); err == nil {
			creds.IdentityCookie = cookie.Value
		}

		identity, err := m.authService.Resolve(creds)
		if err != nil {
			if errors.Is(err, domain.ErrUnauthenticated) {
				log.Debug().Err(err).Msg("Rejected request without valid credentials")
				response.Unauthorized(w, "invalid or missing access token")
				return
			}
			log.Error().Err(err).Msg("Failed to resolve identity")
			response.InternalError(w, "internal server error")
			return
		}

		if identity.IssuedToken != "" {
			http.SetCookie(w, &http.Cookie{
				Name:     m.cookie.CookieName,
				Value:    identity.IssuedToken,
				Path:     "/",
				MaxAge:   int(m.cookie.CookieTTL.Seconds()),
				HttpOnly: true,
				Secure:   m.cookie.CookieSecure,
				SameSite: http.SameSiteLaxMode,
			})
		}

		ctx := context.WithValue(r.Context(), identityKey, identity)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetIdentity gets the identity from context
func GetIdentity(ctx context.Context) (*service.Identity, bool) {
	identity, ok := ctx.Value(identityKey).(*service.Identity)
	return identity, ok
}

// GetOwner gets the owner of the request from context
func GetOwner(ctx context.Context) (string, bool) {
	identity, ok := GetIdentity(ctx)
	if !ok {
		return "", false
	}
	return identity.Owner, true
}

// RateLimitMiddleware handles rate limiting of API clients
type RateLimitMiddleware struct {
	rateLimiter *redis.RateLimiter
}

// NewRateLimitMiddleware creates a new rate limit middleware
func NewRateLimitMiddleware(rateLimiter *redis.RateLimiter) *RateLimitMiddleware {
	return &RateLimitMiddleware{rateLimiter: rateLimiter}
}

// Limit applies rate limiting per owner, falling back to the client address
func (m *RateLimitMiddleware) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key, ok := GetOwner(r.Context())
		if !ok {
			key = clientIP(r)
		}

		allowed, remaining, resetTime, err := m.rateLimiter.Allow(r.Context(), key)
		if err != nil {
			// If rate limiter fails, allow the request but log the error
			log.Warn().Err(err).Msg("Rate limiter unavailable")
			next.ServeHTTP(w, r)
			return
		}

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(m.rateLimiter.Limit()))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		w.Header().Set("X-RateLimit-Reset", resetTime.UTC().Format("2006-01-02T15:04:05Z"))

		if !allowed {
			response.Error(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
