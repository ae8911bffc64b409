package service

import (
	"fmt"
	"strings"

	"github.com/Rrens/aniverse-chat/internal/config"
	"github.com/Rrens/aniverse-chat/internal/domain"
	"github.com/Rrens/aniverse-chat/internal/security"
	"github.com/rs/zerolog/log"
)

// Identity is the principal a request acts as
type Identity struct {
	Owner string
	Mode  string

	// IssuedToken is set when a new anonymous identity was minted and must
	// be handed back to the client.
	IssuedToken string
}

// Credentials are what a request presented
type Credentials struct {
	BearerToken    string
	IdentityCookie string
}

// AuthService resolves request credentials to an owner
type AuthService struct {
	mode         string
	defaultOwner string
	jwtManager   *security.JWTManager
}

// NewAuthService creates a new auth service
func NewAuthService(cfg config.AuthConfig) (*AuthService, error) {
	s := &AuthService{
		mode:         cfg.Mode,
		defaultOwner: strings.TrimSpace(cfg.DefaultOwner),
	}

	switch cfg.Mode {
	case config.AuthModeNone:
		if s.defaultOwner == "" {
			return nil, fmt.Errorf("default owner is required in %s mode", cfg.Mode)
		}
	case config.AuthModeAnonymous, config.AuthModeJWT:
		manager, err := security.NewJWTManager(cfg.JWTSecret, cfg.AccessTokenTTL, cfg.CookieTTL)
		if err != nil {
			return nil, fmt.Errorf("failed to create jwt manager: %w", err)
		}
		s.jwtManager = manager
	default:
		return nil, fmt.Errorf("unknown auth mode %q", cfg.Mode)
	}

	return s, nil
}

// Mode returns the configured auth mode
func (s *AuthService) Mode() string {
	return s.mode
}

// Resolve maps credentials to an identity.
//
// In anonymous mode a missing or invalid cookie mints a fresh principal, so
// it never fails. In jwt mode a valid bearer token is required.
func (s *AuthService) Resolve(creds Credentials) (*Identity, error) {
	switch s.mode {
	case config.AuthModeNone:
		return &Identity{Owner: s.defaultOwner, Mode: s.mode}, nil

	case config.AuthModeAnonymous:
		if creds.IdentityCookie != "" {
			owner, err := s.jwtManager.ValidateIdentity(creds.IdentityCookie)
			if err == nil {
				return &Identity{Owner: owner, Mode: s.mode}, nil
			}
			log.Debug().Err(err).Msg("Discarding invalid identity cookie")
		}
		owner, token, err := s.jwtManager.IssueIdentity()
		if err != nil {
			return nil, err
		}
		return &Identity{Owner: owner, Mode: s.mode, IssuedToken: token}, nil

	case config.AuthModeJWT:
		if creds.BearerToken == "" {
			return nil, domain.ErrUnauthenticated
		}
		owner, err := s.jwtManager.ValidateAccessToken(creds.BearerToken)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrUnauthenticated, err)
		}
		return &Identity{Owner: owner, Mode: s.mode}, nil
	}

	return nil, domain.ErrUnauthenticated
}

// IssueAccessToken signs a bearer token for owner. Only available in jwt mode.
func (s *AuthService) IssueAccessToken(owner string) (string, error) {
	if s.mode != config.AuthModeJWT {
		return "", fmt.Errorf("access tokens are not used in %s mode", s.mode)
	}
	return s.jwtManager.GenerateAccessToken(owner)
}
