package service

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	domainerror "github.com/yunhaishang/Mallorn-sub002/internal/domain/error"
	"github.com/yunhaishang/Mallorn-sub002/internal/domain/model"
)

// TokenService handles access token generation and validation plus
// refresh token minting.
type TokenService interface {
	// GenerateAccessToken creates a signed access token for a principal.
	GenerateAccessToken(principal *model.Principal) (token string, claims *AccessTokenClaims, err error)

	// GenerateRefreshToken creates a new opaque refresh token and the
	// hash under which it is persisted.
	GenerateRefreshToken() (token string, hash string, err error)

	// ValidateAccessToken verifies signature and registered claims and
	// returns the embedded claims.
	ValidateAccessToken(token string) (*AccessTokenClaims, error)

	// HashRefreshToken hashes a refresh token for storage lookup.
	HashRefreshToken(token string) string
}

// AccessTokenClaims contains the claims embedded in an access token.
type AccessTokenClaims struct {
	jwt.RegisteredClaims
	Active        bool `json:"active"`
	EmailVerified bool `json:"email_verified"`
	CreditScore   int  `json:"credit_score"`
}

// TokenID returns the token's unique id (jti).
func (c *AccessTokenClaims) TokenID() string { return c.ID }

// PrincipalID parses the subject claim.
func (c *AccessTokenClaims) PrincipalID() (uuid.UUID, error) {
	return uuid.Parse(c.Subject)
}

// TokenConfig holds configuration for token generation.
type TokenConfig struct {
	Issuer          string
	Audience        string
	AccessLifetime  time.Duration
	RefreshLifetime time.Duration
	SigningKey      []byte
}

// DefaultTokenConfig returns default token configuration.
func DefaultTokenConfig() TokenConfig {
	return TokenConfig{
		Issuer:          "mallorn-auth",
		Audience:        "mallorn",
		AccessLifetime:  2 * time.Hour,
		RefreshLifetime: 7 * 24 * time.Hour,
	}
}

// tokenService implements TokenService.
type tokenService struct {
	config TokenConfig
	now    func() time.Time
}

// NewTokenService creates a new TokenService.
func NewTokenService(config TokenConfig) (TokenService, error) {
	if len(config.SigningKey) == 0 {
		return nil, errors.New("token signing key is required")
	}
	if config.AccessLifetime <= 0 {
		config.AccessLifetime = DefaultTokenConfig().AccessLifetime
	}
	if config.RefreshLifetime <= 0 {
		config.RefreshLifetime = DefaultTokenConfig().RefreshLifetime
	}

	return &tokenService{
		config: config,
		now:    func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *tokenService) GenerateAccessToken(principal *model.Principal) (string, *AccessTokenClaims, error) {
	now := s.now()

	claims := &AccessTokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   principal.ID().String(),
			Issuer:    s.config.Issuer,
			Audience:  jwt.ClaimStrings{s.config.Audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.config.AccessLifetime)),
		},
		Active:        principal.Active(),
		EmailVerified: principal.EmailVerified(),
		CreditScore:   principal.CreditScore(),
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.config.SigningKey)
	if err != nil {
		return "", nil, fmt.Errorf("sign access token: %w", err)
	}

	return token, claims, nil
}

func (s *tokenService) GenerateRefreshToken() (string, string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", "", fmt.Errorf("generate refresh token: %w", err)
	}

	token := base64.RawURLEncoding.EncodeToString(buf)
	return token, s.HashRefreshToken(token), nil
}

func (s *tokenService) ValidateAccessToken(token string) (*AccessTokenClaims, error) {
	claims := &AccessTokenClaims{}

	parsed, err := jwt.ParseWithClaims(
		token,
		claims,
		func(t *jwt.Token) (any, error) { return s.config.SigningKey, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.config.Issuer),
		jwt.WithAudience(s.config.Audience),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, domainerror.ErrTokenExpired.WithCause(err)
		}
		return nil, domainerror.ErrTokenInvalid.WithCause(err)
	}
	if !parsed.Valid {
		return nil, domainerror.ErrTokenInvalid
	}

	return claims, nil
}

func (s *tokenService) HashRefreshToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
