package session

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"
)

func createTx(ctx context.Context, tx pgx.Tx, in CreateInput) (Row, error) {
	id := ulid.Make().String()

	r := tx.QueryRow(ctx, `
		INSERT INTO auth_sessions (
			id, user_id, jti, device_id, user_agent, ip,
			created_at, last_used_at, expires_at, is_revoked
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $7, $8, FALSE
		)
		RETURNING `+sessionColumns+`
	`, id, in.UserID, in.JTI, in.Meta.DeviceID,
		nullIfEmpty(in.Meta.UserAgent), nullIfEmpty(in.Meta.IP),
		in.IssuedAt, in.ExpiresAt)
	return scanRow(r.Scan)
}

// enforceCapTx deletes the user's oldest active sessions beyond max. The row
// just inserted in this transaction counts toward the cap.
func enforceCapTx(ctx context.Context, tx pgx.Tx, userID string, now time.Time, max int) error {
	if max <= 0 {
		return nil
	}
	_, err := tx.Exec(ctx, `
		DELETE FROM auth_sessions
		WHERE user_id = $1 AND is_revoked = FALSE AND expires_at > $2
		AND id NOT IN (
			SELECT id FROM auth_sessions
			WHERE user_id = $1 AND is_revoked = FALSE AND expires_at > $2
			ORDER BY created_at DESC
			LIMIT $3
		)
	`, userID, now, max)
	return err
}

func getByJTIForUpdateTx(ctx context.Context, tx pgx.Tx, jti string) (Row, error) {
	r := tx.QueryRow(ctx, `
		SELECT `+sessionColumns+`
		FROM auth_sessions
		WHERE jti = $1
		FOR UPDATE
	`, jti)
	return scanRow(r.Scan)
}

func rotateTx(ctx context.Context, tx pgx.Tx, id, newJTI string, now, expiresAt time.Time) (Row, error) {
	r := tx.QueryRow(ctx, `
		UPDATE auth_sessions
		SET jti = $2, last_used_at = $3, expires_at = $4
		WHERE id = $1
		RETURNING `+sessionColumns+`
	`, id, newJTI, now, expiresAt)
	return scanRow(r.Scan)
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
