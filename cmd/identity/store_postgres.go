package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore implements Store over PostgreSQL.
//
// The pgx pool is owned by the caller; this store must not close it.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore constructs a PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool) (*PostgresStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("identity: nil pool")
	}
	return &PostgresStore{pool: pool}, nil
}

const userColumns = `
	id, public_id, username, email, full_name,
	hashed_password, is_active, is_superuser, created_at, updated_at`

// GetAuthByLogin resolves an active user by exact username or email match.
func (s *PostgresStore) GetAuthByLogin(ctx context.Context, login string) (UserAuth, error) {
	const op = "identity.GetAuthByLogin"

	login = strings.TrimSpace(login)
	if login == "" {
		return UserAuth{}, OpError{Op: op, Kind: ErrInvalidInput}
	}

	row := s.pool.QueryRow(ctx, `
		SELECT`+userColumns+`
		FROM users
		WHERE (username = $1 OR email = $1)
		  AND is_active = TRUE
	`, login)

	ua, err := scanUserAuth(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return UserAuth{}, OpError{Op: op, Kind: ErrNotFound}
	}
	if err != nil {
		return UserAuth{}, fmt.Errorf("%s: %w", op, err)
	}
	return ua, nil
}

// GetActiveByPublicID resolves an active user by public id.
func (s *PostgresStore) GetActiveByPublicID(ctx context.Context, publicID string) (User, error) {
	const op = "identity.GetActiveByPublicID"

	if strings.TrimSpace(publicID) == "" {
		return User{}, OpError{Op: op, Kind: ErrInvalidInput}
	}

	row := s.pool.QueryRow(ctx, `
		SELECT`+userColumns+`
		FROM users
		WHERE public_id = $1
		  AND is_active = TRUE
	`, publicID)

	ua, err := scanUserAuth(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, OpError{Op: op, Kind: ErrNotFound}
	}
	if err != nil {
		return User{}, fmt.Errorf("%s: %w", op, err)
	}
	return ua.User, nil
}

// Create provisions a new user row.
func (s *PostgresStore) Create(ctx context.Context, in CreateUserInput) (User, error) {
	const op = "identity.Create"

	username := strings.TrimSpace(in.Username)
	if username == "" || in.PasswordHash == "" {
		return User{}, OpError{Op: op, Kind: ErrInvalidInput}
	}
	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	u := User{
		ID:          uuid.NewString(),
		PublicID:    uuid.NewString(),
		Username:    username,
		Email:       in.Email,
		FullName:    in.FullName,
		IsActive:    true,
		IsSuperuser: in.IsSuperuser,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO users (
			id, public_id, username, email, full_name,
			hashed_password, is_active, is_superuser, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, TRUE, $7, $8, $8)
	`, u.ID, u.PublicID, u.Username, u.Email, u.FullName, in.PasswordHash, u.IsSuperuser, now)
	if err != nil {
		if field, ok := classifyUniqueViolation(err); ok {
			return User{}, ConflictError{Op: op, Field: field}
		}
		return User{}, fmt.Errorf("%s: %w", op, err)
	}
	return u, nil
}

func scanUserAuth(row pgx.Row) (UserAuth, error) {
	var ua UserAuth
	err := row.Scan(
		&ua.User.ID,
		&ua.User.PublicID,
		&ua.User.Username,
		&ua.User.Email,
		&ua.User.FullName,
		&ua.PasswordHash,
		&ua.User.IsActive,
		&ua.User.IsSuperuser,
		&ua.User.CreatedAt,
		&ua.User.UpdatedAt,
	)
	return ua, err
}

func classifyUniqueViolation(err error) (field string, ok bool) {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return "", false
	}
	if pgErr.Code != "23505" { // unique_violation
		return "", false
	}
	switch {
	case strings.Contains(pgErr.ConstraintName, "username"):
		return "username", true
	case strings.Contains(pgErr.ConstraintName, "email"):
		return "email", true
	default:
		return "", true
	}
}
