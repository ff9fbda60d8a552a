// Package common defines shared constants and sentinel errors used across
// the authkeeper server layers. Callers should use errors.Is to match these
// values; lower layers wrap them with fmt.Errorf("...: %w", err).
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound     = errors.New("not found")
	ErrDuplicateToken = errors.New("duplicate refresh token")
	ErrUserExists     = errors.New("user already exists")

	// Service-level errors (generic/internal flow control).
	ErrorInternal   = errors.New("internal error")
	ErrInvalidInput = errors.New("invalid input")

	// Startup errors.
	ErrKeyUnavailable = errors.New("signing key unavailable")

	// Token codec errors.
	ErrInvalidSignature = errors.New("invalid token signature")
	ErrTokenExpired     = errors.New("token expired")
	ErrWrongKind        = errors.New("wrong token kind")
	ErrInvalidClaims    = errors.New("invalid claim set")

	// Refresh lifecycle errors.
	ErrInvalidToken        = errors.New("invalid token")
	ErrUnknownToken        = errors.New("unknown refresh token")
	ErrTokenRevoked        = errors.New("refresh token revoked")
	ErrRefreshTokenExpired = errors.New("refresh token expired")

	// Authentication errors. Deliberately coarse.
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountDisabled    = errors.New("account disabled")
	ErrAccountUnavailable = errors.New("account unavailable")

	// Access guard errors.
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrForbidden       = errors.New("forbidden")
)
