package auth

import (
	"crypto/subtle"
	"time"
)

// Service verifies the default_password configured for the gateway and
// issues/persists a per-connection token on successful login. It
// satisfies internal/connection.Authenticator.
type Service struct {
	password string
	jwt      *jwtService
	tokens   *tokenStore
}

// NewService builds a Service. password is compared in constant time
// against the "login" command's argument; jwtSecret/jwtExpiration
// configure token signing (Generate falls back to a plain random-looking
// failure via ErrAuthDisabled if jwtSecret is empty, in which case
// IssueToken returns that error instead of minting an unsigned token);
// tokenFilePath is where issued tokens are persisted ("" disables
// persistence, matching a read-only or ephemeral deployment).
func NewService(password, jwtSecret string, jwtExpiration time.Duration, tokenFilePath string) *Service {
	return &Service{
		password: password,
		jwt:      newJWTService(jwtSecret, jwtExpiration),
		tokens:   newTokenStore(tokenFilePath),
	}
}

// VerifyPassword reports whether password matches the configured
// default_password, using a constant-time comparison so login attempts
// cannot time their way to the correct value. An unconfigured password
// never matches, even against an empty guess.
func (s *Service) VerifyPassword(password string) bool {
	if s == nil || s.password == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(password), []byte(s.password)) == 1
}

// IssueToken signs a new JWT for connectionID and records it in the token
// file so a reconnect can present it instead of the password again.
func (s *Service) IssueToken(connectionID string) (string, error) {
	token, err := s.jwt.Generate(connectionID)
	if err != nil {
		return "", err
	}
	if err := s.tokens.Put(connectionID, token); err != nil {
		return "", err
	}
	return token, nil
}

// IsValid reports whether token is the most recently issued token for
// connectionID.
func (s *Service) IsValid(connectionID, token string) bool {
	return s.tokens.IsValid(connectionID, token)
}
