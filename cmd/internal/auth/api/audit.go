package authapi

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Audit event kinds. The table is append-only; rows are never updated.
const (
	EventLoginSuccess  = "login_success"
	EventLoginFail     = "login_fail"
	EventRefresh       = "refresh"
	EventLogout        = "logout"
	EventLogoutAll     = "logout_all"
	EventRevokeSession = "revoke_session"
)

// AuditEvent is one security-relevant occurrence.
type AuditEvent struct {
	Event     string
	UserID    *string
	JTI       *string
	IP        *string
	UserAgent *string
	At        time.Time
}

// AuditWriter appends audit events. Implementations must be safe for
// concurrent use.
type AuditWriter interface {
	Insert(ctx context.Context, e AuditEvent) error
}

// PostgresAuditLog writes audit events to auth_audit.
type PostgresAuditLog struct {
	pool *pgxpool.Pool
}

// NewPostgresAuditLog creates a Postgres-backed audit writer.
func NewPostgresAuditLog(pool *pgxpool.Pool) *PostgresAuditLog {
	return &PostgresAuditLog{pool: pool}
}

// Insert appends one audit row.
func (a *PostgresAuditLog) Insert(ctx context.Context, e AuditEvent) error {
	at := e.At
	if at.IsZero() {
		at = time.Now().UTC()
	}
	_, err := a.pool.Exec(ctx, `
		INSERT INTO auth_audit (id, user_id, event, jti, ip, user_agent, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, uuid.NewString(), e.UserID, e.Event, e.JTI, e.IP, e.UserAgent, at)
	return err
}

// audit writes an event best-effort: a failed insert is logged and never
// fails the surrounding request.
func (h *Handler) audit(ctx context.Context, event string, userID, jti *string, ip, ua string, at time.Time) {
	e := AuditEvent{
		Event:     event,
		UserID:    userID,
		JTI:       jti,
		IP:        nilIfEmpty(truncate(ip, maxIPLen)),
		UserAgent: nilIfEmpty(truncate(ua, maxUserAgentLen)),
		At:        at.UTC(),
	}
	if err := h.auditLog.Insert(ctx, e); err != nil {
		h.log.Error("auth.audit.insert.fail", "err", err, "event", event)
	}
}

var _ AuditWriter = (*PostgresAuditLog)(nil)

// NopAuditLog discards events. Useful in tests and tooling.
type NopAuditLog struct{}

// Insert implements AuditWriter.
func (NopAuditLog) Insert(context.Context, AuditEvent) error { return nil }
