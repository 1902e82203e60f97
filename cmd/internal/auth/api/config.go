package authapi

import (
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config controls auth API behavior and cookie transport attributes.
type Config struct {
	TrustProxy   bool
	MaxBodyBytes int64

	// Login throttle: sliding window per (ip, username).
	LoginLimit  int
	LoginWindow time.Duration

	// Cookie attributes shared by the refresh and access cookies.
	CookieDomain   string
	CookiePath     string
	CookieSecure   bool
	CookieSameSite http.SameSite

	// SetAccessCookie mirrors the access token into a readable cookie in
	// addition to the response body. The clearing path always runs.
	SetAccessCookie bool
}

// LoadConfigFromEnv loads auth API config from environment variables with
// safe defaults.
func LoadConfigFromEnv() Config {
	cfg := Config{
		TrustProxy:      envBool("SARIR_TRUST_PROXY", false),
		MaxBodyBytes:    envInt64("SARIR_MAX_BODY_BYTES", 1<<20), // 1 MiB
		LoginLimit:      envInt("SARIR_LOGIN_LIMIT", 7),
		LoginWindow:     envDuration("SARIR_LOGIN_WINDOW", 5*time.Minute),
		CookieDomain:    strings.TrimSpace(os.Getenv("COOKIE_DOMAIN")),
		CookiePath:      envString("COOKIE_PATH", "/"),
		CookieSecure:    envBool("COOKIE_SECURE", true),
		CookieSameSite:  parseSameSite(os.Getenv("COOKIE_SAMESITE")),
		SetAccessCookie: envBool("SARIR_ACCESS_COOKIE", false),
	}
	return cfg
}

func parseSameSite(v string) http.SameSite {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteLaxMode
	}
}

func envString(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func envInt64(key string, def int64) int64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func envDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
