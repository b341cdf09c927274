package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/charlesng35/backoffice/internal/permissions"
)

// DefaultAccessTokenTTL is used when no TTL is configured.
const DefaultAccessTokenTTL = 15 * time.Minute

var (
	ErrEmptyToken    = errors.New("jwt: token string is empty")
	ErrInvalidClaims = errors.New("jwt: invalid identity claims")
)

// JWTConfig configures a JWTService.
type JWTConfig struct {
	Secret         string
	Issuer         string
	AccessTokenTTL time.Duration
	Clock          func() time.Time
}

// Claims carry the authenticated caller identity between requests.
type Claims struct {
	UserID    string           `json:"uid"`
	Role      permissions.Role `json:"role"`
	CompanyID string           `json:"cid"`
	jwt.RegisteredClaims
}

// Identity returns the engine identity encoded in the claims.
func (c *Claims) Identity() permissions.Identity {
	if c == nil {
		return permissions.Identity{}
	}
	return permissions.Identity{ID: c.UserID, Role: c.Role, CompanyID: c.CompanyID}
}

// JWTService issues and validates HS256 identity tokens.
type JWTService struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

func NewJWTService(cfg JWTConfig) (*JWTService, error) {
	if cfg.Secret == "" {
		return nil, errors.New("jwt: secret must be provided")
	}

	ttl := cfg.AccessTokenTTL
	if ttl <= 0 {
		ttl = DefaultAccessTokenTTL
	}

	now := time.Now
	if cfg.Clock != nil {
		now = cfg.Clock
	}

	return &JWTService{
		secret: []byte(cfg.Secret),
		issuer: cfg.Issuer,
		ttl:    ttl,
		now:    now,
	}, nil
}

// TTL reports how long issued tokens stay valid.
func (s *JWTService) TTL() time.Duration { return s.ttl }

// SecretLength reports the signing secret size in bytes.
func (s *JWTService) SecretLength() int { return len(s.secret) }

// IssueIdentity signs a token for id and returns it with its expiry.
func (s *JWTService) IssueIdentity(id permissions.Identity) (string, time.Time, error) {
	if strings.TrimSpace(id.ID) == "" {
		return "", time.Time{}, errors.New("jwt: user id is required")
	}
	if !id.Role.Known() {
		return "", time.Time{}, fmt.Errorf("jwt: unknown role %q", id.Role)
	}

	now := s.now()
	expiresAt := now.Add(s.ttl)

	claims := &Claims{
		UserID:    id.ID,
		Role:      id.Role,
		CompanyID: id.CompanyID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.ID,
			Issuer:    s.issuer,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("jwt: sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// ValidateAccessToken parses tokenString and returns its claims. Tokens with a
// missing user id or an unknown role are rejected.
func (s *JWTService) ValidateAccessToken(tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, ErrEmptyToken
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	)

	var claims Claims
	_, err := parser.ParseWithClaims(tokenString, &claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("jwt: parse token: %w", err)
	}

	if s.issuer != "" && claims.Issuer != s.issuer {
		return nil, errors.New("jwt: invalid issuer")
	}
	if claims.UserID == "" || !claims.Role.Known() {
		return nil, ErrInvalidClaims
	}

	return &claims, nil
}
