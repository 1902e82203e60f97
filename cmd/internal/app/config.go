package app

import (
	"strings"
	"time"
)

// Config contains all runtime configuration loaded from environment variables.
type Config struct {
	HTTPAddr string
	LogLevel string

	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int

	DatabaseURL string
	DBMaxConns  int32
	DBMinConns  int32

	// CORS policy for browser clients. Credentials must stay allowed for the
	// refresh cookie to travel cross-origin.
	CORSAllowedOrigins   []string
	CORSAllowCredentials bool
	CORSMaxAgeSeconds    int

	// If true, SECRET_KEY must be at least 32 bytes at startup.
	RequireStrongSecret bool
}

// LoadConfig loads Config from environment variables with defaults.
func LoadConfig() Config {
	return Config{
		HTTPAddr: EnvString("SARIR_HTTP_ADDR", "0.0.0.0:8080"),
		LogLevel: EnvString("SARIR_LOG_LEVEL", "info"),

		ReadHeaderTimeout: EnvDuration("SARIR_HTTP_READ_HEADER_TIMEOUT", 5*time.Second),
		ReadTimeout:       EnvDuration("SARIR_HTTP_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:      EnvDuration("SARIR_HTTP_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:       EnvDuration("SARIR_HTTP_IDLE_TIMEOUT", 60*time.Second),

		MaxHeaderBytes: EnvInt("SARIR_HTTP_MAX_HEADER_BYTES", 1<<20),

		DatabaseURL: EnvString("SARIR_DATABASE_URL", ""),
		DBMaxConns:  EnvInt32("SARIR_DB_MAX_CONNS", 10),
		DBMinConns:  EnvInt32("SARIR_DB_MIN_CONNS", 0),

		CORSAllowedOrigins:   splitList(EnvString("SARIR_CORS_ORIGINS", "")),
		CORSAllowCredentials: EnvBool("SARIR_CORS_ALLOW_CREDENTIALS", true),
		CORSMaxAgeSeconds:    EnvInt("SARIR_CORS_MAX_AGE_SECONDS", 600),

		RequireStrongSecret: EnvBool("SARIR_REQUIRE_STRONG_SECRET", false),
	}
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if v := strings.TrimSpace(p); v != "" {
			out = append(out, v)
		}
	}
	return out
}
