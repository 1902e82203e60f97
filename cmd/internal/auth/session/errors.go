package session

import "errors"

var (
	// ErrInvalidToken is returned for any token verification failure:
	// bad signature, wrong audience, expired, malformed, missing claims.
	// Callers must not branch on the underlying reason.
	ErrInvalidToken = errors.New("invalid token")

	// ErrSessionNotFound is returned when a jti does not match any row.
	// A rotated-away (stale) jti surfaces as not found by design.
	ErrSessionNotFound = errors.New("session not found")

	// ErrSessionExpired is returned when the session row has passed expires_at.
	ErrSessionExpired = errors.New("session expired")

	// ErrSessionRevoked is returned when the session row is revoked.
	ErrSessionRevoked = errors.New("session revoked")

	// ErrNotSessionOwner is returned when a caller targets a session that
	// exists but belongs to another user.
	ErrNotSessionOwner = errors.New("not session owner")

	// ErrConfig is returned for invalid configuration.
	ErrConfig = errors.New("invalid config")
)
