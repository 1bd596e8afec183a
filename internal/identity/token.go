package identity

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenService issues and validates the HS256 session tokens used by
// DevProvider. A hosted provider issues its own tokens; this exists so the
// dev setup produces sessions with the same shape the middleware expects.
//
// The "sub" claim carries the external identity id.
type TokenService struct {
	secret []byte
}

// NewTokenService creates a TokenService with the given secret.
// The secret should be at least 32 bytes of random data in production.
func NewTokenService(secret string) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("identity: session secret must be at least 16 characters")
	}
	return &TokenService{secret: []byte(secret)}, nil
}

type sessionClaims struct {
	jwt.RegisteredClaims
}

const sessionLifetime = 24 * time.Hour

// Generate creates and signs a session token for the given external
// identity id.
func (s *TokenService) Generate(externalID string) (string, error) {
	now := time.Now()

	c := sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   externalID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(sessionLifetime)),
			Issuer:    "codelove",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("identity: signing session token: %w", err)
	}

	return signed, nil
}

// GenerateWithDuration creates a token with a custom expiry. Used in tests.
func (s *TokenService) GenerateWithDuration(externalID string, d time.Duration) (string, error) {
	now := time.Now()

	c := sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   externalID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(d)),
			Issuer:    "codelove",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("identity: signing session token: %w", err)
	}

	return signed, nil
}

// Validate parses and verifies a session token and returns the external
// identity id from the subject claim.
//
// Pinning the algorithm to HS256 blocks algorithm-confusion attacks where a
// token signed with "none" or an asymmetric scheme would otherwise pass.
func (s *TokenService) Validate(tokenStr string) (string, error) {
	var c sessionClaims

	token, err := jwt.ParseWithClaims(tokenStr, &c,
		func(t *jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer("codelove"),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return "", fmt.Errorf("identity: validating session token: %w", err)
	}
	if !token.Valid || c.Subject == "" {
		return "", errors.New("identity: session token has no subject")
	}

	return c.Subject, nil
}
