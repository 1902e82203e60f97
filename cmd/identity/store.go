package identity

import (
	"context"
	"time"
)

// User is the canonical security principal.
type User struct {
	// ID is the internal primary key. Never exposed over HTTP.
	ID string
	// PublicID is the stable external identifier used as the token subject.
	PublicID string

	Username string
	Email    *string
	FullName *string

	IsActive    bool
	IsSuperuser bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// UserAuth pairs a user with its password digest for login verification.
// The digest never leaves the login path.
type UserAuth struct {
	User         User
	PasswordHash string
}

// CreateUserInput describes a provisioning request (seed tool / admin flow).
type CreateUserInput struct {
	Username     string
	Email        *string
	FullName     *string
	PasswordHash string
	IsSuperuser  bool
	Now          time.Time
}

// Store is the identity persistence boundary.
type Store interface {
	// GetAuthByLogin resolves an active user by username or email (exact,
	// case-sensitive match) together with its password digest.
	// Returns ErrNotFound for unknown, inactive, or ambiguous logins.
	GetAuthByLogin(ctx context.Context, login string) (UserAuth, error)

	// GetActiveByPublicID resolves an active user by its public id.
	// Returns ErrNotFound when the user is missing or deactivated.
	GetActiveByPublicID(ctx context.Context, publicID string) (User, error)

	// Create provisions a new user. Returns a ConflictError when username or
	// email is already taken.
	Create(ctx context.Context, in CreateUserInput) (User, error)
}
