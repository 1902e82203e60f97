package session

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid/v2"
)

const sessionColumns = `
	id, user_id, jti, device_id, user_agent, ip,
	created_at, last_used_at, expires_at, is_revoked`

// PostgresStore implements Store using PostgreSQL (auth_sessions).
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a Postgres-backed session store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// NewJTI returns a fresh session identifier.
func NewJTI() string {
	return ulid.Make().String()
}

func scanRow(scan func(...any) error) (Row, error) {
	var row Row
	err := scan(
		&row.ID,
		&row.UserID,
		&row.JTI,
		&row.DeviceID,
		&row.UserAgent,
		&row.IP,
		&row.CreatedAt,
		&row.LastUsedAt,
		&row.ExpiresAt,
		&row.Revoked,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Row{}, ErrSessionNotFound
	}
	if err != nil {
		return Row{}, err
	}
	return row, nil
}

// CreateWithCap inserts the session and evicts the user's oldest active
// sessions in the same transaction so at most max remain.
func (s *PostgresStore) CreateWithCap(ctx context.Context, in CreateInput, max int) (Row, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Row{}, err
	}
	defer tx.Rollback(ctx)

	row, err := createTx(ctx, tx, in)
	if err != nil {
		return Row{}, err
	}
	if err := enforceCapTx(ctx, tx, in.UserID, in.IssuedAt, max); err != nil {
		return Row{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Row{}, err
	}
	return row, nil
}

// FindActive loads the session for jti and checks it is usable at now.
func (s *PostgresStore) FindActive(ctx context.Context, jti string, now time.Time) (Row, error) {
	row, err := s.GetByJTI(ctx, jti)
	if err != nil {
		return Row{}, err
	}
	if row.Revoked {
		return Row{}, ErrSessionRevoked
	}
	if !now.Before(row.ExpiresAt) {
		return Row{}, ErrSessionExpired
	}
	return row, nil
}

// Rotate swaps the jti in place under a row lock. The row keeps its identity;
// only jti, last_used_at and expires_at move.
func (s *PostgresStore) Rotate(ctx context.Context, oldJTI, newJTI string, now time.Time, ttl time.Duration) (Row, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Row{}, err
	}
	defer tx.Rollback(ctx)

	row, err := getByJTIForUpdateTx(ctx, tx, oldJTI)
	if err != nil {
		return Row{}, err
	}
	if row.Revoked {
		return Row{}, ErrSessionRevoked
	}
	if !now.Before(row.ExpiresAt) {
		return Row{}, ErrSessionExpired
	}

	row, err = rotateTx(ctx, tx, row.ID, newJTI, now, now.Add(ttl))
	if err != nil {
		return Row{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Row{}, err
	}
	return row, nil
}

// GetByJTI loads a session row regardless of state.
func (s *PostgresStore) GetByJTI(ctx context.Context, jti string) (Row, error) {
	r := s.pool.QueryRow(ctx, `
		SELECT `+sessionColumns+`
		FROM auth_sessions
		WHERE jti = $1
	`, jti)
	return scanRow(r.Scan)
}

// Revoke marks the session revoked (idempotent).
func (s *PostgresStore) Revoke(ctx context.Context, jti string, now time.Time) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE auth_sessions
		SET is_revoked = TRUE, last_used_at = $2
		WHERE jti = $1 AND is_revoked = FALSE
	`, jti, now)
	return err
}

// RevokeAll revokes every active session of the user.
func (s *PostgresStore) RevokeAll(ctx context.Context, userID string, now time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE auth_sessions
		SET is_revoked = TRUE, last_used_at = $2
		WHERE user_id = $1 AND is_revoked = FALSE
	`, userID, now)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// ListByUser returns the user's sessions, active first, newest first.
func (s *PostgresStore) ListByUser(ctx context.Context, userID string, now time.Time) ([]Row, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+sessionColumns+`
		FROM auth_sessions
		WHERE user_id = $1
		ORDER BY (is_revoked = FALSE AND expires_at > $2) DESC, created_at DESC
	`, userID, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		row, err := scanRow(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// PruneExpired deletes rows whose expiry is at or before cutoff.
func (s *PostgresStore) PruneExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM auth_sessions
		WHERE expires_at <= $1
	`, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
