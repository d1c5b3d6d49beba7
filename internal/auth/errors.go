// Package auth implements the login collaborator: password verification
// for the "login" command and per-connection token issuance backed by a
// JWT, persisted to a token file so a restart does not silently
// invalidate every previously issued token.
package auth

import "errors"

var (
	// ErrAuthDisabled is returned by Generate/Validate when no JWT secret
	// is configured, rather than panicking on a zero-value secret.
	ErrAuthDisabled = errors.New("auth: jwt disabled (no secret configured)")

	// ErrInvalidToken is returned by Validate for any malformed, expired,
	// or signature-mismatched token.
	ErrInvalidToken = errors.New("auth: invalid token")

	// ErrInvalidPassword is returned by VerifyPassword when no password
	// has been configured, so an empty default_password can never match.
	ErrInvalidPassword = errors.New("auth: no password configured")
)
