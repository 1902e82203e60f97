package session

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config defines all runtime configuration for the session subsystem.
//
// It controls token TTLs, signing material, audience values, clock-skew
// leeway, the concurrent-session cap, and the prune interval. It is
// intentionally explicit and environment-driven so deployments can tune
// security parameters without code changes.
type Config struct {
	// SecretKey is the HS256 signing secret. Required.
	SecretKey string

	// Algorithm is the JWT signing algorithm. Only HS256 is supported.
	Algorithm string

	// Issuer is the value set in and required from the "iss" claim.
	Issuer string

	// AudienceAccess and AudienceRefresh are the fixed "aud" values per
	// token kind. A token of one kind must never verify as the other.
	AudienceAccess  string
	AudienceRefresh string

	// AccessTTL is the access-token lifetime (minutes-scale).
	AccessTTL time.Duration

	// RefreshTTL is the refresh-token and session lifetime (days-scale).
	RefreshTTL time.Duration

	// Leeway is the clock-skew tolerance applied to exp/nbf checks.
	Leeway time.Duration

	// MaxActive caps concurrent unrevoked, unexpired sessions per user.
	MaxActive int

	// PruneInterval is how often expired session rows are deleted.
	PruneInterval time.Duration
}

// DefaultConfig returns defaults matching the production deployment.
// SecretKey must still be provided via environment.
func DefaultConfig() Config {
	return Config{
		Algorithm:       "HS256",
		Issuer:          "sarir-backend",
		AudienceAccess:  "access",
		AudienceRefresh: "refresh",
		AccessTTL:       15 * time.Minute,
		RefreshTTL:      7 * 24 * time.Hour,
		Leeway:          15 * time.Second,
		MaxActive:       2,
		PruneInterval:   30 * time.Minute,
	}
}

// LoadConfigFromEnv loads session configuration from environment variables.
//
// Required:
//   - SECRET_KEY
//
// Optional:
//   - JWT_ALGORITHM (must be HS256 when set)
//   - ACCESS_TOKEN_EXPIRE_MINUTES, REFRESH_TOKEN_EXPIRE_DAYS
//   - JWT_ISSUER, JWT_AUDIENCE_ACCESS, JWT_AUDIENCE_REFRESH
//   - JWT_LEEWAY_SECONDS
//   - SARIR_SESSION_MAX_ACTIVE, SARIR_PRUNE_INTERVAL
//
// Returns ErrConfig if configuration is invalid.
func LoadConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()

	cfg.SecretKey = strings.TrimSpace(os.Getenv("SECRET_KEY"))
	if cfg.SecretKey == "" {
		return Config{}, ErrConfig
	}

	if v := strings.TrimSpace(os.Getenv("JWT_ALGORITHM")); v != "" {
		if !strings.EqualFold(v, "HS256") {
			return Config{}, ErrConfig
		}
		cfg.Algorithm = "HS256"
	}

	if v := os.Getenv("ACCESS_TOKEN_EXPIRE_MINUTES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return Config{}, ErrConfig
		}
		cfg.AccessTTL = time.Duration(n) * time.Minute
	}

	if v := os.Getenv("REFRESH_TOKEN_EXPIRE_DAYS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return Config{}, ErrConfig
		}
		cfg.RefreshTTL = time.Duration(n) * 24 * time.Hour
	}

	if v := os.Getenv("JWT_ISSUER"); v != "" {
		cfg.Issuer = v
	}
	if v := os.Getenv("JWT_AUDIENCE_ACCESS"); v != "" {
		cfg.AudienceAccess = v
	}
	if v := os.Getenv("JWT_AUDIENCE_REFRESH"); v != "" {
		cfg.AudienceRefresh = v
	}
	if cfg.AudienceAccess == cfg.AudienceRefresh {
		return Config{}, ErrConfig
	}

	if v := os.Getenv("JWT_LEEWAY_SECONDS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return Config{}, ErrConfig
		}
		cfg.Leeway = time.Duration(n) * time.Second
	}

	if v := os.Getenv("SARIR_SESSION_MAX_ACTIVE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return Config{}, ErrConfig
		}
		cfg.MaxActive = n
	}

	if v := os.Getenv("SARIR_PRUNE_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return Config{}, ErrConfig
		}
		cfg.PruneInterval = d
	}

	return cfg, nil
}
