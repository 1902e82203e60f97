package session

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Kind discriminates access from refresh tokens. The audience claim is fixed
// per kind and never caller-supplied, so a token of one kind can never be
// presented where the other is expected.
type Kind string

const (
	// KindAccess is the short-lived token presented on every protected request.
	KindAccess Kind = "access"
	// KindRefresh is the long-lived token exchanged at /auth/refresh.
	KindRefresh Kind = "refresh"
)

// Claims is the verified identity envelope extracted from a token.
type Claims struct {
	// Subject is the user's public id.
	Subject string
	// JTI is the session identifier the token is bound to.
	JTI string

	// Denormalized display claims, present on access tokens.
	Username    string
	IsSuperuser bool

	IssuedAt  time.Time
	ExpiresAt time.Time
}

// AccessExtra carries the denormalized display claims embedded in access tokens.
type AccessExtra struct {
	Username    string
	IsSuperuser bool
}

// TokenCodec signs and verifies the access/refresh token pair.
type TokenCodec interface {
	IssueAccess(sub, jti string, extra AccessExtra, now time.Time) (token string, exp time.Time, err error)
	IssueRefresh(sub, jti string, now time.Time) (token string, exp time.Time, err error)

	// Verify checks signature, issuer, exact audience for kind, exp/nbf with
	// leeway, and presence of sub+jti. Every failure collapses to
	// ErrInvalidToken; the reason is not exposed to callers.
	Verify(token string, kind Kind, now time.Time) (Claims, error)
}

type jwtClaims struct {
	jwt.RegisteredClaims
	Typ         string `json:"typ,omitempty"`
	Username    string `json:"username,omitempty"`
	IsSuperuser bool   `json:"is_superuser,omitempty"`
}

type hmacCodec struct {
	cfg    Config
	secret []byte
}

// NewHMACCodec builds a TokenCodec signing with HS256.
func NewHMACCodec(cfg Config) (TokenCodec, error) {
	if strings.TrimSpace(cfg.SecretKey) == "" {
		return nil, ErrConfig
	}
	if cfg.Algorithm != "" && !strings.EqualFold(cfg.Algorithm, "HS256") {
		return nil, ErrConfig
	}
	if cfg.AudienceAccess == "" || cfg.AudienceRefresh == "" || cfg.AudienceAccess == cfg.AudienceRefresh {
		return nil, ErrConfig
	}
	return &hmacCodec{cfg: cfg, secret: []byte(cfg.SecretKey)}, nil
}

func (c *hmacCodec) audience(kind Kind) string {
	if kind == KindRefresh {
		return c.cfg.AudienceRefresh
	}
	return c.cfg.AudienceAccess
}

func (c *hmacCodec) ttl(kind Kind) time.Duration {
	if kind == KindRefresh {
		return c.cfg.RefreshTTL
	}
	return c.cfg.AccessTTL
}

func (c *hmacCodec) issue(kind Kind, sub, jti string, extra AccessExtra, now time.Time) (string, time.Time, error) {
	now = now.UTC()
	exp := now.Add(c.ttl(kind))

	claims := jwtClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			ID:        jti,
			Issuer:    c.cfg.Issuer,
			Audience:  jwt.ClaimStrings{c.audience(kind)},
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		Typ: strings.ToUpper(string(kind)),
	}
	if kind == KindAccess {
		claims.Username = extra.Username
		claims.IsSuperuser = extra.IsSuperuser
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString(c.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

func (c *hmacCodec) IssueAccess(sub, jti string, extra AccessExtra, now time.Time) (string, time.Time, error) {
	return c.issue(KindAccess, sub, jti, extra, now)
}

func (c *hmacCodec) IssueRefresh(sub, jti string, now time.Time) (string, time.Time, error) {
	return c.issue(KindRefresh, sub, jti, AccessExtra{}, now)
}

func (c *hmacCodec) Verify(token string, kind Kind, now time.Time) (Claims, error) {
	if strings.TrimSpace(token) == "" || len(token) > 4096 {
		return Claims{}, ErrInvalidToken
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(c.cfg.Issuer),
		jwt.WithAudience(c.audience(kind)),
		jwt.WithLeeway(c.cfg.Leeway),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)

	parsed := &jwtClaims{}
	if _, err := parser.ParseWithClaims(token, parsed, func(*jwt.Token) (any, error) {
		return c.secret, nil
	}); err != nil {
		return Claims{}, ErrInvalidToken
	}

	if parsed.Subject == "" || parsed.ID == "" {
		return Claims{}, ErrInvalidToken
	}

	out := Claims{
		Subject:     parsed.Subject,
		JTI:         parsed.ID,
		Username:    parsed.Username,
		IsSuperuser: parsed.IsSuperuser,
	}
	if parsed.IssuedAt != nil {
		out.IssuedAt = parsed.IssuedAt.Time
	}
	if parsed.ExpiresAt != nil {
		out.ExpiresAt = parsed.ExpiresAt.Time
	}
	return out, nil
}
