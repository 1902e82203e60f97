package session

import (
	"context"
	"time"
)

// Row is one refresh session as persisted. A row keeps its identity across
// rotations; only the jti, last_used_at and expires_at change in place.
type Row struct {
	ID         string
	UserID     string
	JTI        string
	DeviceID   *string
	UserAgent  *string
	IP         *string
	CreatedAt  time.Time
	LastUsedAt time.Time
	ExpiresAt  time.Time
	Revoked    bool
}

// Active reports whether the row is neither revoked nor expired at now.
func (r Row) Active(now time.Time) bool {
	return !r.Revoked && now.Before(r.ExpiresAt)
}

// DeviceMeta is the client context captured at login and carried on the row
// for the whole session lifetime.
type DeviceMeta struct {
	DeviceID  *string
	UserAgent string
	IP        string
}

// CreateInput is everything needed to persist a fresh session row.
type CreateInput struct {
	UserID    string
	JTI       string
	Meta      DeviceMeta
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Store persists refresh sessions. Implementations must make CreateWithCap
// and Rotate atomic with respect to concurrent callers for the same user
// and jti respectively.
type Store interface {
	// CreateWithCap inserts the row and, in the same transaction, deletes
	// the oldest active sessions of the user so that at most max remain.
	CreateWithCap(ctx context.Context, in CreateInput, max int) (Row, error)

	// FindActive returns the session for jti only if it is active at now.
	// Revoked or expired rows surface as ErrSessionRevoked/ErrSessionExpired;
	// unknown jti as ErrSessionNotFound.
	FindActive(ctx context.Context, jti string, now time.Time) (Row, error)

	// Rotate swaps the row's jti in place under a row lock and pushes
	// last_used_at/expires_at forward. The row must be active at now;
	// a jti that was already rotated away is ErrSessionNotFound.
	Rotate(ctx context.Context, oldJTI, newJTI string, now time.Time, ttl time.Duration) (Row, error)

	// GetByJTI returns the row regardless of state.
	GetByJTI(ctx context.Context, jti string) (Row, error)

	// Revoke marks the session revoked. Revoking an already revoked or
	// expired session is a no-op, not an error.
	Revoke(ctx context.Context, jti string, now time.Time) error

	// RevokeAll revokes every active session of the user and returns how
	// many rows were affected.
	RevokeAll(ctx context.Context, userID string, now time.Time) (int64, error)

	// ListByUser returns the user's sessions, active first, newest first
	// within each group.
	ListByUser(ctx context.Context, userID string, now time.Time) ([]Row, error)

	// PruneExpired deletes rows whose expiry is at or before cutoff and
	// returns how many were removed.
	PruneExpired(ctx context.Context, cutoff time.Time) (int64, error)
}
