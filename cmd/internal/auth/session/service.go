package session

import (
	"context"
	"strings"
	"time"
)

// Identity is the slice of the user record the session layer needs: the
// internal id keys session rows, the public id becomes the token subject,
// and the display claims ride on access tokens.
type Identity struct {
	ID          string
	PublicID    string
	Username    string
	IsSuperuser bool
}

// Issued is the result of issuing or rotating a session: a fresh access
// token and the refresh token bound to the session's current jti.
type Issued struct {
	JTI          string
	AccessToken  string
	AccessExp    time.Time
	RefreshToken string
	RefreshExp   time.Time
	Row          Row
}

// Service implements the high-level session operations.
//
// It issues sessions (access + refresh), validates access tokens against the
// live session row, rotates refresh tokens, and handles per-session and
// per-user revocation. Rotation atomicity lives in the Store.
type Service struct {
	cfg   Config
	codec TokenCodec
	store Store
}

// NewService constructs a Service over the given store and codec.
func NewService(cfg Config, store Store, codec TokenCodec) *Service {
	return &Service{cfg: cfg, store: store, codec: codec}
}

func (s *Service) issuePair(user Identity, jti string, now time.Time) (Issued, error) {
	access, accessExp, err := s.codec.IssueAccess(user.PublicID, jti, AccessExtra{
		Username:    user.Username,
		IsSuperuser: user.IsSuperuser,
	}, now)
	if err != nil {
		return Issued{}, err
	}
	refresh, refreshExp, err := s.codec.IssueRefresh(user.PublicID, jti, now)
	if err != nil {
		return Issued{}, err
	}
	return Issued{
		JTI:          jti,
		AccessToken:  access,
		AccessExp:    accessExp,
		RefreshToken: refresh,
		RefreshExp:   refreshExp,
	}, nil
}

// IssueSession creates a session row for the user and returns a fresh token
// pair. Creation and concurrency-cap eviction happen in one transaction, so
// the user never ends up with more than MaxActive live sessions.
func (s *Service) IssueSession(ctx context.Context, now time.Time, user Identity, meta DeviceMeta) (Issued, error) {
	jti := NewJTI()

	issued, err := s.issuePair(user, jti, now)
	if err != nil {
		return Issued{}, err
	}

	row, err := s.store.CreateWithCap(ctx, CreateInput{
		UserID:    user.ID,
		JTI:       jti,
		Meta:      meta,
		IssuedAt:  now.UTC(),
		ExpiresAt: issued.RefreshExp,
	}, s.cfg.MaxActive)
	if err != nil {
		return Issued{}, err
	}

	issued.Row = row
	return issued, nil
}

// Authenticate verifies an access token and confirms its session is still
// active. A valid signature is not enough: revoked, expired, or rotated-away
// sessions reject the token.
func (s *Service) Authenticate(ctx context.Context, accessToken string, now time.Time) (Claims, error) {
	claims, err := s.codec.Verify(accessToken, KindAccess, now)
	if err != nil {
		return Claims{}, err
	}
	if _, err := s.store.FindActive(ctx, claims.JTI, now); err != nil {
		return Claims{}, err
	}
	return claims, nil
}

// VerifyRefresh verifies a refresh token and returns its claims together
// with the backing active session row.
func (s *Service) VerifyRefresh(ctx context.Context, refreshToken string, now time.Time) (Claims, Row, error) {
	refreshToken = strings.TrimSpace(refreshToken)
	claims, err := s.codec.Verify(refreshToken, KindRefresh, now)
	if err != nil {
		return Claims{}, Row{}, err
	}
	row, err := s.store.FindActive(ctx, claims.JTI, now)
	if err != nil {
		return Claims{}, Row{}, err
	}
	return claims, row, nil
}

// RotateRefresh swaps the session's jti in place and returns a token pair
// bound to the new jti. The old refresh token stops matching any row the
// moment the rotation commits; presenting it again is ErrSessionNotFound.
func (s *Service) RotateRefresh(ctx context.Context, now time.Time, oldJTI string, user Identity) (Issued, error) {
	jti := NewJTI()

	issued, err := s.issuePair(user, jti, now)
	if err != nil {
		return Issued{}, err
	}

	row, err := s.store.Rotate(ctx, oldJTI, jti, now.UTC(), s.cfg.RefreshTTL)
	if err != nil {
		return Issued{}, err
	}

	issued.Row = row
	return issued, nil
}

// RevokeSession revokes a single session by jti. Idempotent.
func (s *Service) RevokeSession(ctx context.Context, now time.Time, jti string) error {
	return s.store.Revoke(ctx, jti, now.UTC())
}

// RevokeOwned revokes a session only if it belongs to the user. Unknown jti
// is ErrSessionNotFound; someone else's session is ErrNotSessionOwner.
func (s *Service) RevokeOwned(ctx context.Context, now time.Time, userID, jti string) error {
	row, err := s.store.GetByJTI(ctx, jti)
	if err != nil {
		return err
	}
	if row.UserID != userID {
		return ErrNotSessionOwner
	}
	return s.store.Revoke(ctx, jti, now.UTC())
}

// RevokeAll revokes every active session of the user and reports the count.
func (s *Service) RevokeAll(ctx context.Context, now time.Time, userID string) (int64, error) {
	return s.store.RevokeAll(ctx, userID, now.UTC())
}

// ListSessions returns the user's sessions, active first, newest first.
func (s *Service) ListSessions(ctx context.Context, userID string, now time.Time) ([]Row, error) {
	return s.store.ListByUser(ctx, userID, now)
}
