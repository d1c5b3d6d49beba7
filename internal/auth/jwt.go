package auth

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// jwtService signs and verifies per-connection tokens: HS256-signed
// RegisteredClaims with a secret/expiry construction, disabled entirely
// when no secret is configured. Tokens are keyed on a connection id
// subject rather than a user account, since this gateway has no user
// accounts.
type jwtService struct {
	secret []byte
	expiry time.Duration
}

func newJWTService(secret string, expiry time.Duration) *jwtService {
	return &jwtService{secret: []byte(secret), expiry: expiry}
}

type claims struct {
	jwt.RegisteredClaims
}

// Generate issues a signed token whose subject is connectionID.
func (s *jwtService) Generate(connectionID string) (string, error) {
	if s == nil || len(s.secret) == 0 {
		return "", ErrAuthDisabled
	}
	if strings.TrimSpace(connectionID) == "" {
		return "", fmt.Errorf("auth: connection id required")
	}

	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  connectionID,
			IssuedAt: jwt.NewNumericDate(time.Now()),
		},
	}
	if s.expiry > 0 {
		c.ExpiresAt = jwt.NewNumericDate(time.Now().Add(s.expiry))
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	return token.SignedString(s.secret)
}

// Validate parses and validates token, returning its subject connection id.
func (s *jwtService) Validate(token string) (string, error) {
	if s == nil || len(s.secret) == 0 {
		return "", ErrAuthDisabled
	}

	parsed, err := jwt.ParseWithClaims(token, &claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return "", ErrInvalidToken
	}

	parsedClaims, ok := parsed.Claims.(*claims)
	if !ok || !parsed.Valid || strings.TrimSpace(parsedClaims.Subject) == "" {
		return "", ErrInvalidToken
	}
	return parsedClaims.Subject, nil
}
