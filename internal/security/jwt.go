package security

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/hkdf"
)

const (
	issuer           = "aniverse-chat"
	audienceAPI      = "aniverse-api"
	audienceIdentity = "aniverse-identity"

	// AnonymousPrefix marks principals minted for anonymous browsers
	AnonymousPrefix = "anon-"
)

// JWTManager signs and verifies the two token kinds the server accepts:
// bearer access tokens naming an owner, and anonymous identity cookies.
// Access tokens are signed with the configured secret itself so any issuer
// sharing it can mint them. Identity cookies use a key derived from the
// secret, so a cookie can never pass as an access token or the reverse.
type JWTManager struct {
	accessKey      []byte
	identityKey    []byte
	accessTokenTTL time.Duration
	identityTTL    time.Duration
}

// NewJWTManager creates a new JWT manager
func NewJWTManager(secret string, accessTTL, identityTTL time.Duration) (*JWTManager, error) {
	if secret == "" {
		return nil, errors.New("jwt secret is required")
	}

	identityKey := make([]byte, 32)
	kdf := hkdf.New(sha256.New, []byte(secret), nil, []byte("aniverse identity cookie v1"))
	if _, err := io.ReadFull(kdf, identityKey); err != nil {
		return nil, fmt.Errorf("failed to derive identity key: %w", err)
	}

	return &JWTManager{
		accessKey:      []byte(secret),
		identityKey:    identityKey,
		accessTokenTTL: accessTTL,
		identityTTL:    identityTTL,
	}, nil
}

// GenerateAccessToken issues a bearer token for owner
func (m *JWTManager) GenerateAccessToken(owner string) (string, error) {
	owner = strings.TrimSpace(owner)
	if owner == "" {
		return "", errors.New("owner is required")
	}
	return m.sign(owner, audienceAPI, m.accessTokenTTL, m.accessKey)
}

// ValidateAccessToken validates an access token and returns its owner
func (m *JWTManager) ValidateAccessToken(tokenString string) (string, error) {
	return m.parse(tokenString, audienceAPI, m.accessKey)
}

// IssueIdentity mints a new anonymous principal and its signed cookie value
func (m *JWTManager) IssueIdentity() (owner, token string, err error) {
	owner = AnonymousPrefix + uuid.NewString()
	token, err = m.sign(owner, audienceIdentity, m.identityTTL, m.identityKey)
	if err != nil {
		return "", "", fmt.Errorf("failed to sign identity: %w", err)
	}
	return owner, token, nil
}

// ValidateIdentity validates an identity cookie and returns its owner
func (m *JWTManager) ValidateIdentity(tokenString string) (string, error) {
	return m.parse(tokenString, audienceIdentity, m.identityKey)
}

// AccessTokenTTL returns the access token TTL
func (m *JWTManager) AccessTokenTTL() time.Duration {
	return m.accessTokenTTL
}

// IdentityTTL returns how long identity cookies stay valid
func (m *JWTManager) IdentityTTL() time.Duration {
	return m.identityTTL
}

func (m *JWTManager) sign(subject, audience string, ttl time.Duration, key []byte) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		Audience:  jwt.ClaimStrings{audience},
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		Issuer:    issuer,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(key)
}

func (m *JWTManager) parse(tokenString, audience string, key []byte) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return key, nil
	}, jwt.WithAudience(audience), jwt.WithIssuer(issuer), jwt.WithExpirationRequired())

	if err != nil {
		return "", fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok || !token.Valid {
		return "", errors.New("invalid token")
	}

	if strings.TrimSpace(claims.Subject) == "" {
		return "", errors.New("token has no subject")
	}

	return claims.Subject, nil
}
