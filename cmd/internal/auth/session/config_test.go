package session

import (
	"errors"
	"testing"
	"time"
)

func TestLoadConfigFromEnv_Defaults(t *testing.T) {
	t.Setenv("SECRET_KEY", "s3cret")

	cfg, err := LoadConfigFromEnv()
	if err != nil {
		t.Fatalf("LoadConfigFromEnv: %v", err)
	}
	if cfg.AccessTTL != 15*time.Minute {
		t.Fatalf("AccessTTL = %v", cfg.AccessTTL)
	}
	if cfg.RefreshTTL != 7*24*time.Hour {
		t.Fatalf("RefreshTTL = %v", cfg.RefreshTTL)
	}
	if cfg.Issuer != "sarir-backend" || cfg.AudienceAccess != "access" || cfg.AudienceRefresh != "refresh" {
		t.Fatalf("identity claims config = %+v", cfg)
	}
	if cfg.MaxActive != 2 {
		t.Fatalf("MaxActive = %d", cfg.MaxActive)
	}
}

func TestLoadConfigFromEnv_Overrides(t *testing.T) {
	t.Setenv("SECRET_KEY", "s3cret")
	t.Setenv("ACCESS_TOKEN_EXPIRE_MINUTES", "5")
	t.Setenv("REFRESH_TOKEN_EXPIRE_DAYS", "30")
	t.Setenv("JWT_LEEWAY_SECONDS", "0")
	t.Setenv("SARIR_SESSION_MAX_ACTIVE", "4")
	t.Setenv("SARIR_PRUNE_INTERVAL", "5m")

	cfg, err := LoadConfigFromEnv()
	if err != nil {
		t.Fatalf("LoadConfigFromEnv: %v", err)
	}
	if cfg.AccessTTL != 5*time.Minute || cfg.RefreshTTL != 30*24*time.Hour {
		t.Fatalf("ttls = %v / %v", cfg.AccessTTL, cfg.RefreshTTL)
	}
	if cfg.Leeway != 0 || cfg.MaxActive != 4 || cfg.PruneInterval != 5*time.Minute {
		t.Fatalf("cfg = %+v", cfg)
	}
}

func TestLoadConfigFromEnv_Invalid(t *testing.T) {
	cases := []struct {
		name string
		env  map[string]string
	}{
		{"missing secret", map[string]string{}},
		{"blank secret", map[string]string{"SECRET_KEY": "   "}},
		{"unsupported algorithm", map[string]string{"SECRET_KEY": "x", "JWT_ALGORITHM": "RS256"}},
		{"bad access ttl", map[string]string{"SECRET_KEY": "x", "ACCESS_TOKEN_EXPIRE_MINUTES": "zero"}},
		{"negative refresh ttl", map[string]string{"SECRET_KEY": "x", "REFRESH_TOKEN_EXPIRE_DAYS": "-1"}},
		{"colliding audiences", map[string]string{"SECRET_KEY": "x", "JWT_AUDIENCE_ACCESS": "same", "JWT_AUDIENCE_REFRESH": "same"}},
		{"bad prune interval", map[string]string{"SECRET_KEY": "x", "SARIR_PRUNE_INTERVAL": "soon"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("SECRET_KEY", "")
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			if _, err := LoadConfigFromEnv(); !errors.Is(err, ErrConfig) {
				t.Fatalf("err = %v, want ErrConfig", err)
			}
		})
	}
}
