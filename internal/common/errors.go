// Package common defines shared constants and sentinel errors used across
// client and server layers of authkeeper. Callers should use errors.Is to
// match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Service-level errors (generic/internal flow control).
	ErrorInternal = errors.New("internal error")
	ErrForbidden  = errors.New("forbidden")

	// Registration and login.
	ErrInvalidInput       = errors.New("invalid input")
	ErrUsernameTaken      = errors.New("username or email already registered")
	ErrInvalidCredentials = errors.New("invalid credentials")

	// Access token decoding. ErrMalformedToken and ErrInvalidSignature are
	// always reported together with ErrTokenInvalid.
	ErrTokenInvalid     = errors.New("invalid token")
	ErrMalformedToken   = errors.New("malformed token")
	ErrInvalidSignature = errors.New("invalid signature")

	// Token lifecycle errors.
	ErrTokenExpired  = errors.New("token expired")
	ErrTokenRevoked  = errors.New("token revoked")
	ErrTokenNotFound = errors.New("token not found")

	// ErrReuseDetected is returned after a superseded or revoked refresh token
	// was presented. The whole rotation chain is already revoked when callers
	// see it.
	ErrReuseDetected = errors.New("refresh token reuse detected")
)
